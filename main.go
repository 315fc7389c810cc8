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
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"messaging-service/internal/config"
	"messaging-service/internal/db"
	"messaging-service/internal/engine"
	"messaging-service/internal/handlers"
	"messaging-service/internal/middleware"
	"messaging-service/internal/observability"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/repositories"
	"messaging-service/internal/scheduler"
	"messaging-service/internal/store"
	"messaging-service/internal/telemetry"
	"messaging-service/internal/ws"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.ServiceName, cfg.Environment, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}

	contentStore, closeStore := openStore(cfg)
	defer closeStore()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	log.Printf("publisher mode=%s reason=%q", rabbitmq.PublisherMode(publisher), rabbitmq.PublisherNoopReason(publisher))

	auditEmitter := telemetry.NewAuditEmitter(publisher, cfg.AuditRoutingKey, cfg.ServiceName, cfg.Environment)
	notifier := rabbitmq.NewNotifier(publisher, cfg.NotificationRoutingKey, cfg.ServiceName)

	core := engine.New(contentStore,
		engine.WithNotifier(notifier),
		engine.WithAuditor(auditEmitter),
	)

	chatRepo := repositories.NewChatRepo(contentStore)
	hub := ws.NewHub(contentStore, chatRepo)

	chatHandler := handlers.NewChatHandler(core)
	messageHandler := handlers.NewMessageHandler(core)
	inviteHandler := handlers.NewInviteHandler(core)
	chatWS := ws.NewChatWebSocketHandler(hub, chatRepo)

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(middleware.RequestIDMiddleware())

	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws/chats/:chat_id", middleware.IdentityMiddleware(), chatWS.Handle)
	handlers.RegisterDebugRoutes(router, auditEmitter, core, cfg.Debug)

	api := router.Group("/", middleware.IdentityMiddleware())
	api.POST("/chats", chatHandler.CreateChat)
	api.GET("/chats/:chat_id/members", chatHandler.ListMembers)
	api.POST("/chats/:chat_id/participants", chatHandler.AddParticipant)
	api.DELETE("/chats/:chat_id/participants/:user_id", chatHandler.RemoveParticipant)
	api.POST("/chats/:chat_id/leave", chatHandler.Leave)
	api.POST("/chats/:chat_id/admins", chatHandler.PromoteAdmin)
	api.PATCH("/chats/:chat_id/settings", chatHandler.UpdateSettings)
	api.PUT("/me/privacy", chatHandler.SetPrivacy)

	api.GET("/chats/:chat_id/messages", messageHandler.ListMessages)
	api.POST("/chats/:chat_id/messages", messageHandler.PostMessage)
	api.PATCH("/chats/:chat_id/messages/:message_id", messageHandler.EditMessage)
	api.DELETE("/chats/:chat_id/messages/:message_id", messageHandler.DeleteMessage)
	api.POST("/chats/:chat_id/read", messageHandler.MarkRead)

	api.POST("/chats/:chat_id/invites", inviteHandler.CreateInvite)
	api.POST("/invites/:code/redeem", inviteHandler.Redeem)
	api.DELETE("/invites/:code", inviteHandler.Revoke)

	httpServer := &http.Server{Addr: ":" + cfg.Port, Handler: router}
	go func() {
		log.Printf("http listening port=%s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	grpcServer, healthServer := newGRPCServer()
	go func() {
		lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
		if err != nil {
			log.Fatalf("grpc listen: %v", err)
		}
		log.Printf("grpc health listening port=%s", cfg.GRPCPort)
		if err := grpcServer.Serve(lis); err != nil {
			log.Printf("grpc server stopped: %v", err)
		}
	}()

	runner, err := scheduler.New(cfg.RedisURL, cfg.ReconcileInterval, core)
	if err != nil {
		log.Fatalf("failed to build scheduler: %v", err)
	}
	go func() {
		if err := runner.Run(ctx); err != nil {
			log.Printf("scheduler stopped: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	grpcServer.GracefulStop()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Printf("tracing shutdown: %v", err)
	}
}

// openStore returns the configured content store and its cleanup.
func openStore(cfg config.Config) (store.Store, func()) {
	if cfg.StoreBackend != config.StorePostgres {
		log.Printf("store backend=memory")
		return store.NewMemory(), func() {}
	}

	database, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	pg := store.NewPostgres(database, cfg.DBDSN)
	log.Printf("store backend=postgres")
	return pg, func() {
		if err := pg.Close(); err != nil {
			log.Printf("store listener close: %v", err)
		}
		_ = database.Close()
	}
}

func newGRPCServer() (*grpc.Server, *health.Server) {
	server := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.UnaryInterceptor(observability.GRPCServerMetricsUnaryInterceptor()),
	)
	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)
	return server, healthServer
}
