package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"event-lifecycle-service/internal/config"
	"event-lifecycle-service/internal/db"
	"event-lifecycle-service/internal/grpcserver"
	"event-lifecycle-service/internal/handlers"
	"event-lifecycle-service/internal/lifecycle"
	"event-lifecycle-service/internal/logging"
	"event-lifecycle-service/internal/middleware"
	"event-lifecycle-service/internal/observability"
	"event-lifecycle-service/internal/pubsub"
	"event-lifecycle-service/internal/push"
	"event-lifecycle-service/internal/rabbitmq"
	"event-lifecycle-service/internal/repositories"
	"event-lifecycle-service/internal/telemetry"
	"event-lifecycle-service/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}

	database, err := db.Connect(cfg.DBDSN, logger)
	if err != nil {
		logger.Fatal("failed to connect to db", zap.Error(err))
	}
	defer database.Close()

	eventRepo := repositories.NewEventRepo(database)
	conversationRepo := repositories.NewConversationRepo(database)
	notificationRepo := repositories.NewNotificationRepo(database)
	deviceTokenRepo := repositories.NewDeviceTokenRepo(database)

	auditPublisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AuditExchange, logger)
	defer auditPublisher.Close()
	auditEmitter := telemetry.NewAuditEmitter(auditPublisher, cfg.AuditRoutingKey, cfg.ServiceName, cfg.Environment, logger)

	var pushPublisher rabbitmq.Publisher
	if cfg.PushProvider == "amqp" {
		pushPublisher = rabbitmq.NewPublisher(cfg.AMQPURL, cfg.PushExchange, logger)
		defer pushPublisher.Close()
	}
	sender := push.NewSender(push.SenderConfig{
		Provider:        cfg.PushProvider,
		ExpoURL:         cfg.ExpoPushURL,
		ExpoAccessToken: cfg.ExpoAccessToken,
		RoutingKey:      cfg.PushRoutingKey,
		Timeout:         cfg.PushTimeout,
	}, pushPublisher, logger)
	gateway := push.NewGateway(deviceTokenRepo, sender, logger)

	domainPublisher := pubsub.NewPublisher(ctx, cfg.RedisURL, cfg.RedisChannel, logger)
	defer domainPublisher.Close()

	hub := ws.NewHub(logger)

	processor := lifecycle.NewProcessor(eventRepo, conversationRepo, notificationRepo, gateway, cfg.PushTimeout, logger,
		hub,
		lifecycle.NewDomainEventObserver(domainPublisher, logger),
		lifecycle.NewAuditObserver(auditEmitter),
	)
	registry := lifecycle.NewRegistry(processor, cfg.BackstopWindow, logger)
	recovery := lifecycle.NewRecovery(eventRepo, registry, processor, cfg.RecoveryLookback, logger)
	reconciler := lifecycle.NewReconciler(eventRepo, processor, cfg.ReconcileWindow, cfg.ReconcileInterval, logger)
	service := lifecycle.NewService(eventRepo, registry, recovery, reconciler, logger)

	logger.Info("starting lifecycle service",
		zap.String("env", cfg.Environment),
		zap.String("audit_publisher", rabbitmq.PublisherMode(auditPublisher)),
		zap.String("audit_noop_reason", rabbitmq.PublisherNoopReason(auditPublisher)),
		zap.String("push_provider", cfg.PushProvider),
		zap.Duration("backstop_window", cfg.BackstopWindow))

	if _, err := service.RecoverAll(ctx); err != nil {
		logger.Fatal("startup recovery failed", zap.Error(err))
	}
	if err := reconciler.Start(); err != nil {
		logger.Fatal("failed to start reconciler", zap.Error(err))
	}

	grpcSrv := grpcserver.New(logger)
	grpcLis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		logger.Fatal("failed to listen for grpc", zap.Error(err))
	}
	go func() {
		if err := grpcSrv.Serve(grpcLis); err != nil {
			logger.Error("grpc server stopped", zap.Error(err))
		}
	}()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(observability.HTTPMetricsMiddleware())

	lifecycleHandler := handlers.NewLifecycleHandler(service, auditEmitter)
	eventWS := ws.NewEventWebSocketHandler(hub, eventRepo, logger)

	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.PUT("/internal/events/:event_id/schedule", lifecycleHandler.ScheduleEvent)
	router.DELETE("/internal/events/:event_id/schedule", lifecycleHandler.CancelEvent)
	router.GET("/internal/timers", lifecycleHandler.ListTimers)
	router.POST("/admin/lifecycle/reconcile", lifecycleHandler.Reconcile)

	router.GET("/ws/events/:event_id", eventWS.Handle)

	handlers.RegisterDebugRoutes(router, auditEmitter, cfg.DebugRoutes)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("http server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()
	grpcSrv.SetServing(true)

	<-ctx.Done()
	logger.Info("shutting down")

	grpcSrv.SetServing(false)
	reconciler.Stop()
	registry.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	grpcSrv.Stop()
	if err := shutdownTracer(shutdownCtx); err != nil {
		logger.Warn("tracer shutdown", zap.Error(err))
	}
}
