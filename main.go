package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tracking-service/common/auth"
	apperrors "tracking-service/common/errors"
	"tracking-service/common/logger"
	"tracking-service/common/middleware"
	"tracking-service/controllers"
	"tracking-service/database"
	"tracking-service/kafka"
	"tracking-service/metrics"
	trackingmw "tracking-service/middleware"
	awspkg "tracking-service/pkg/aws"
	"tracking-service/realtime"
	"tracking-service/repository"
	"tracking-service/routes"
	"tracking-service/services"
)

const serviceName = "tracking-service"

func main() {
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	cfg, err := LoadConfig(ctx)
	if err != nil {
		panic("config load failed: " + err.Error())
	}

	awsCfg, awsErr := awspkg.LoadAWSConfig(ctx)

	var cwLogs *awspkg.CloudWatchLogsClient
	if awsErr == nil {
		cwLogs, err = awspkg.NewCloudWatchLogsClient(ctx, awsCfg, serviceName)
		if err != nil {
			cwLogs = nil
		}
	}

	var log *zap.Logger
	if cwLogs != nil && cwLogs.IsEnabled() {
		log, err = logger.InitializeWithWriter(cfg.Env, cwLogs)
	} else {
		log, err = logger.Initialize(cfg.Env)
	}
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	if awsErr != nil {
		log.Warn("AWS config unavailable, SNS/SQS/CloudWatch disabled", zap.Error(awsErr))
	}

	auth.SetSecret(cfg.JWTSecret)
	metrics.Register()

	db, err := database.Connect(cfg.DB, log)
	if err != nil {
		log.Fatal("DB connection failed", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal("DB pool unavailable", zap.Error(err))
	}

	var metricsClient *awspkg.MetricsClient
	if awsErr == nil {
		metricsClient = awspkg.NewMetricsClient(awsCfg)
	}

	orderRepo := repository.NewGormOrderRepository(db)
	ledger := services.NewOrderLedger(orderRepo, cfg.StrictStatusTransitions)
	guard := services.PermissionGuard{}

	// Live fan-out: local hub, optionally relayed through Redis to every instance.
	registry := realtime.NewRegistry(log)
	hub := realtime.NewHub(registry, cfg.BroadcastQueueSize, log)
	go hub.Run(ctx)

	var publisher services.Publisher = hub
	if cfg.RedisURL != "" {
		rdb, err := database.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal("Redis connection failed", zap.Error(err))
		}
		defer rdb.Close()
		relay := realtime.NewRedisRelay(rdb, hub, log)
		go relay.Run(ctx)
		publisher = relay
	}

	// Durable sinks
	var sinks []services.EventSink
	var producer *kafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTrackingTopic, log)
		sinks = append(sinks, producer)
	}
	if cfg.TrackingSNSTopicArn != "" && awsErr == nil {
		sinks = append(sinks, services.NewSNSTrackingSink(awspkg.NewSNSClient(awsCfg), cfg.TrackingSNSTopicArn))
	}

	dispatcher := services.NewUpdateDispatcher(ledger, publisher, sinks...)
	if metricsClient != nil {
		dispatcher.WithCounters(metricsClient)
	}
	orderService := services.NewOrderService(orderRepo, ledger)

	// Order intake
	var counters services.CountRecorder
	if metricsClient != nil {
		counters = metricsClient
	}
	queueURL := cfg.OrderPlacedQueueURL
	if queueURL == "" && cfg.OrderPlacedQueueName != "" && awsErr == nil {
		if queueURL, err = awspkg.GetQueueURL(ctx, awsCfg, cfg.OrderPlacedQueueName); err != nil {
			log.Warn("Order placed queue lookup failed, SQS intake disabled", zap.Error(err))
		}
	}
	if queueURL != "" && awsErr == nil {
		sqsConsumer := awspkg.NewSQSConsumer(awsCfg, queueURL, log)
		go services.NewOrderPlacedConsumer(sqsConsumer, ledger, counters).Start(ctx)
	}
	var intake *kafka.Consumer
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaOrderPlacedTopic != "" {
		intake = kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaOrderPlacedTopic, cfg.KafkaGroupID, log)
		go services.NewOrderPlacedConsumer(intake, ledger, counters).Start(ctx)
	}

	gateway := realtime.NewGateway(ledger, guard, registry, realtime.GatewayConfig{
		QueueSize:      cfg.SubscriberQueueSize,
		WriteTimeout:   cfg.WSWriteTimeout,
		AllowedOrigins: strings.Split(cfg.AllowedOrigins, ","),
	}, log)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(apperrors.ErrorMiddleware())
	r.Use(logger.RequestID())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(middleware.RateLimitMiddleware(ctx, cfg.RateLimitPerMinute, cfg.RateLimitBurst))
	if metricsClient != nil {
		r.Use(middleware.MetricsMiddleware(metricsClient, serviceName))
	}
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	routes.RegisterRoutes(r, routes.Handlers{
		Tracking: controllers.NewTrackingController(orderService, dispatcher),
		Orders:   controllers.NewOrderController(orderService, dispatcher),
		Health:   controllers.NewHealthController(sqlDB, registry),
		Gateway:  gateway,
		Auth:     trackingmw.AuthOptions{TrustGatewayHeaders: cfg.TrustGatewayHeaders},
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Tracking service listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down tracking service...")

	stop()
	registry.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Forced shutdown", zap.Error(err))
	}

	dispatcher.Wait()
	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Warn("Kafka producer close failed", zap.Error(err))
		}
	}
	if intake != nil {
		if err := intake.Close(); err != nil {
			log.Warn("Kafka consumer close failed", zap.Error(err))
		}
	}
	if err := database.Close(db); err != nil {
		log.Warn("DB close failed", zap.Error(err))
	}
	log.Info("Tracking service stopped")
}
