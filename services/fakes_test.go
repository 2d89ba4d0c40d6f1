package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"tracking-service/models"
	"tracking-service/repository"
)

// fakeRepo is an in-memory OrderRepository.
type fakeRepo struct {
	mu          sync.Mutex
	orders      map[int64]*models.Order
	events      map[int64][]models.TrackingEvent
	nextOrderID int64
	nextEventID int64
	clock       time.Time
	err         error
	appendErr   error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		orders: map[int64]*models.Order{},
		events: map[int64][]models.TrackingEvent{},
		clock:  time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (r *fakeRepo) addOrder(id, userID int64, status models.OrderStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[id] = &models.Order{ID: id, UserID: userID, Status: status}
}

func (r *fakeRepo) eventCount(orderID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events[orderID])
}

func (r *fakeRepo) status(orderID int64) models.OrderStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.orders[orderID].Status
}

func (r *fakeRepo) FindByID(_ context.Context, id int64) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	o, ok := r.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *fakeRepo) FindByIDWithDetails(ctx context.Context, id int64) (*models.Order, error) {
	o, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	o.TrackingEvents, _ = r.ListTrackingEvents(ctx, id)
	return o, nil
}

func (r *fakeRepo) FindByUserID(_ context.Context, userID int64, q models.OrderListQuery) ([]models.Order, int64, error) {
	return r.list(func(o *models.Order) bool { return o.UserID == userID }, q)
}

func (r *fakeRepo) FindAll(_ context.Context, q models.OrderListQuery) ([]models.Order, int64, error) {
	return r.list(func(*models.Order) bool { return true }, q)
}

func (r *fakeRepo) list(match func(*models.Order) bool, q models.OrderListQuery) ([]models.Order, int64, error) {
	page, limit := q.Page, q.Limit
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, 0, r.err
	}
	var all []models.Order
	for _, o := range r.orders {
		if match(o) && (q.Status == "" || o.Status == q.Status) {
			all = append(all, *o)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := int64(len(all))
	start := (page - 1) * limit
	if start >= len(all) {
		return []models.Order{}, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (r *fakeRepo) ListTrackingEvents(_ context.Context, orderID int64) ([]models.TrackingEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	stored := r.events[orderID]
	out := make([]models.TrackingEvent, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		out = append(out, stored[i])
	}
	return out, nil
}

func (r *fakeRepo) AppendTrackingEvent(_ context.Context, orderID int64, event *models.TrackingEvent, check repository.TransitionCheck) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.appendErr != nil {
		return nil, r.appendErr
	}
	o, ok := r.orders[orderID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if check != nil {
		if err := check(o); err != nil {
			return nil, err
		}
	}
	r.nextEventID++
	event.ID = r.nextEventID
	event.OrderID = orderID
	event.CreatedAt = r.clock.Add(time.Duration(r.nextEventID) * time.Second)
	r.events[orderID] = append(r.events[orderID], *event)
	o.Status = event.Status
	cp := *o
	return &cp, nil
}

func (r *fakeRepo) Create(_ context.Context, order *models.Order, initial *models.TrackingEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.nextOrderID++
	order.ID = r.nextOrderID
	cp := *order
	r.orders[order.ID] = &cp
	if initial != nil {
		r.nextEventID++
		initial.ID = r.nextEventID
		initial.OrderID = order.ID
		r.events[order.ID] = append(r.events[order.ID], *initial)
	}
	return nil
}

// recordingPublisher captures live pushes.
type recordingPublisher struct {
	mu     sync.Mutex
	pushes []models.TrackingPush
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, push models.TrackingPush) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushes = append(p.pushes, push)
	return p.err
}

func (p *recordingPublisher) published() []models.TrackingPush {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.TrackingPush(nil), p.pushes...)
}

// recordingSink captures sink deliveries.
type recordingSink struct {
	name string
	mu   sync.Mutex
	sent []models.TrackingPush
	err  error
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Send(_ context.Context, push models.TrackingPush) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, push)
	return s.err
}

// countingRecorder captures business counters.
type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *countingRecorder) RecordCount(_ context.Context, name string, _ map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = map[string]int{}
	}
	c.counts[name]++
	return nil
}

// mockSNS implements aws.SNSPublisher
type mockSNS struct {
	publishedArn string
	publishedMsg []byte
	attributes   map[string]string
}

func (m *mockSNS) Publish(_ context.Context, topicArn string, message []byte, attributes map[string]string) error {
	m.publishedArn = topicArn
	m.publishedMsg = append([]byte(nil), message...)
	m.attributes = attributes
	return nil
}
