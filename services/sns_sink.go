package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"tracking-service/models"
	awspkg "tracking-service/pkg/aws"
)

// TrackingEventType tags outbound tracking notifications.
const TrackingEventType = "order.tracking.updated"

type trackingNotification struct {
	EventType string `json:"event_type"`
	models.TrackingPush
}

// SNSTrackingSink publishes accepted tracking events to an SNS topic.
type SNSTrackingSink struct {
	publisher awspkg.SNSPublisher
	topicArn  string
}

func NewSNSTrackingSink(publisher awspkg.SNSPublisher, topicArn string) *SNSTrackingSink {
	return &SNSTrackingSink{publisher: publisher, topicArn: topicArn}
}

func (s *SNSTrackingSink) Name() string { return "sns" }

func (s *SNSTrackingSink) Send(ctx context.Context, push models.TrackingPush) error {
	body, err := json.Marshal(trackingNotification{EventType: TrackingEventType, TrackingPush: push})
	if err != nil {
		return fmt.Errorf("marshal tracking notification: %w", err)
	}
	return s.publisher.Publish(ctx, s.topicArn, body, map[string]string{
		"event_type": TrackingEventType,
		"status":     string(push.Status),
		"order_id":   strconv.FormatInt(push.OrderID, 10),
	})
}
