package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"realtime-service/internal/auth"
	"realtime-service/internal/config"
	"realtime-service/internal/db"
	"realtime-service/internal/handlers"
	"realtime-service/internal/kvstore"
	"realtime-service/internal/media"
	"realtime-service/internal/middleware"
	"realtime-service/internal/observability"
	"realtime-service/internal/presence"
	"realtime-service/internal/rabbitmq"
	"realtime-service/internal/repositories"
	"realtime-service/internal/services"
	"realtime-service/internal/telemetry"
	"realtime-service/internal/ws"
)

const serviceName = "realtime-service"

func main() {
	cfg := config.Load()
	ctx := context.Background()

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.OTLPEndpoint, serviceName, cfg.Environment)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	defer shutdownTracing(ctx)

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	log.Printf("audit publisher mode=%s", rabbitmq.PublisherMode(publisher))
	emitter := telemetry.NewAuditEmitter(publisher, cfg.AuditRoutingKey, serviceName, cfg.Environment)

	if cfg.AMQPURL != "" {
		wsPublisher, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Printf("ws event publisher disabled: %v", err)
		} else {
			observability.SetPublisher(wsPublisher)
			defer wsPublisher.Close()
		}
	}

	store := kvstore.New()
	store.StartSweeper(kvstore.DefaultSweepInterval)
	defer store.Stop()

	tracker := presence.NewTracker(store)
	hub := ws.NewHub(tracker)
	verifier := auth.NewJWTVerifier(cfg.JWTSecret)

	conversationRepo := repositories.NewConversationRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	storyRepo := repositories.NewStoryRepo(database)

	messageService := services.NewMessageService(conversationRepo, messageRepo, hub)
	storyService := services.NewStoryService(storyRepo, hub, cfg.StoryTTL)

	var uploader media.Uploader
	if cfg.CloudinaryName != "" {
		cloudinaryUploader, err := media.NewCloudinaryUploader(cfg.CloudinaryName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
		if err != nil {
			log.Fatalf("failed to init cloudinary: %v", err)
		}
		uploader = cloudinaryUploader
	} else {
		log.Printf("media uploads disabled: cloudinary not configured")
	}

	conversationHandler := handlers.NewConversationHandler(conversationRepo)
	messageHandler := handlers.NewMessageHandler(messageService, emitter)
	storyHandler := handlers.NewStoryHandler(storyService, uploader, emitter)
	socket := ws.NewSocketHandler(hub, tracker, verifier, conversationRepo, messageService, storyService)

	limiter := middleware.NewRateLimiter(cfg.RateLimitDisabled)
	authMiddleware := middleware.AuthMiddleware(verifier)

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(limiter.Middleware(middleware.GeneralBucket))

	conversations := router.Group("/conversations", authMiddleware)
	conversations.POST("/direct", conversationHandler.CreateDirect)
	conversations.POST("/group", conversationHandler.CreateGroup)
	conversations.GET("", conversationHandler.List)
	conversations.POST("/:conversation_id/archive", conversationHandler.SetArchived)
	conversations.POST("/:conversation_id/mute", conversationHandler.SetMuted)
	conversations.POST("/:conversation_id/pin", conversationHandler.SetPinned)
	conversations.GET("/:conversation_id/messages", messageHandler.List)
	conversations.POST("/:conversation_id/messages", messageHandler.Post)
	conversations.PATCH("/:conversation_id/messages/:message_id", messageHandler.Edit)
	conversations.DELETE("/:conversation_id/messages/:message_id/me", messageHandler.DeleteForMe)
	conversations.DELETE("/:conversation_id/messages/:message_id/all", messageHandler.DeleteForEveryone)
	conversations.POST("/:conversation_id/messages/:message_id/reactions", messageHandler.React)
	conversations.DELETE("/:conversation_id/messages/:message_id/reactions", messageHandler.RemoveReaction)
	conversations.POST("/:conversation_id/read", messageHandler.MarkConversationRead)

	stories := router.Group("/stories", authMiddleware)
	stories.POST("", storyHandler.Create)
	stories.GET("/feed", storyHandler.Feed)
	stories.GET("/mine", storyHandler.ListOwn)
	stories.GET("/:story_id", storyHandler.Get)
	stories.POST("/:story_id/view", storyHandler.View)
	stories.GET("/:story_id/viewers", storyHandler.Viewers)
	stories.POST("/:story_id/highlight", storyHandler.SetHighlight)
	stories.POST("/:story_id/archive", storyHandler.SetArchived)

	// The websocket handshake authenticates itself; only the tighter limiter
	// applies here.
	router.GET("/ws", limiter.Middleware(middleware.AuthBucket), socket.Handle)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterDebugRoutes(router, emitter, cfg.DebugRoutes)

	go func() {
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()
		for range ticker.C {
			if _, err := storyService.Purge(context.Background()); err != nil {
				log.Printf("story purge failed: %v", err)
			}
		}
	}()

	log.Printf("listening on :%s env=%s", cfg.Port, cfg.Environment)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
