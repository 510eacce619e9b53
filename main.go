package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"messaging-service/internal/attachments"
	"messaging-service/internal/config"
	"messaging-service/internal/db"
	"messaging-service/internal/handlers"
	"messaging-service/internal/middleware"
	"messaging-service/internal/observability"
	"messaging-service/internal/policy"
	"messaging-service/internal/presence"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/repositories"
	"messaging-service/internal/storage"
	"messaging-service/internal/telemetry"
	"messaging-service/internal/ws"
	"messaging-service/pkg/auth"
)

const serviceName = "messaging-service"

func main() {
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("invalid REDIS_URL: %v", err)
	}
	rdb := redis.NewClient(redisOpts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}

	shutdownTracing, err := observability.SetupTracing(context.Background(), serviceName, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	logger.Info("audit publisher ready", zap.String("mode", rabbitmq.PublisherMode(publisher)))

	audit := telemetry.NewAuditEmitter(publisher, "audit.messaging", serviceName, cfg.Environment)

	groupRepo := repositories.NewGroupRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	reactionRepo := repositories.NewReactionRepo(database)
	attachmentRepo := repositories.NewAttachmentRepo(database)

	store, err := storage.NewFSStore(cfg.StorageRoot)
	if err != nil {
		log.Fatalf("failed to open object store: %v", err)
	}
	signer := storage.NewURLSigner(cfg.JWTSecret)
	policyClient := policy.NewClient(cfg.PolicyFuncURL)
	attachmentManager := attachments.NewManager(policyClient, store, attachmentRepo, messageRepo, groupRepo, signer, logger)

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, 24*time.Hour)

	hub := ws.NewHub(logger)
	broadcaster := presence.NewBroadcaster(rdb, logger)
	typingSource := presence.NewSubscriber(rdb, logger)

	groupHandler := handlers.NewGroupHandler(groupRepo, messageRepo, hub, audit)
	messageHandler := handlers.NewMessageHandler(groupRepo, messageRepo, hub, broadcaster, audit)
	reactionHandler := handlers.NewReactionHandler(groupRepo, messageRepo, reactionRepo, hub)
	attachmentHandler := handlers.NewAttachmentHandler(attachmentManager, groupRepo, cfg.DownloadTokenTTL, audit)
	typingHandler := handlers.NewTypingHandler(groupRepo, broadcaster)
	sessionHandler := ws.NewSessionHandler(hub, messageRepo, typingSource, groupRepo, jwtManager, logger)

	router := gin.Default()
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterDebugRoutes(router, audit, cfg.DebugRoutes)

	authMiddleware := middleware.AuthMiddleware(jwtManager)

	router.POST("/groups", authMiddleware, groupHandler.CreateGroup)
	router.POST("/groups/direct", authMiddleware, groupHandler.StartDirectGroup)
	router.GET("/groups", authMiddleware, groupHandler.ListGroups)
	router.GET("/groups/:group_id", authMiddleware, groupHandler.GetGroup)
	router.POST("/groups/:group_id/archive", authMiddleware, groupHandler.ArchiveGroup)
	router.POST("/groups/:group_id/members", authMiddleware, groupHandler.AddMember)
	router.DELETE("/groups/:group_id/members/:user_id", authMiddleware, groupHandler.RemoveMember)
	router.POST("/groups/:group_id/read", authMiddleware, groupHandler.MarkRead)
	router.GET("/groups/:group_id/unread", authMiddleware, groupHandler.UnreadCount)

	router.GET("/groups/:group_id/messages", authMiddleware, messageHandler.ListMessages)
	router.POST("/groups/:group_id/messages", authMiddleware, messageHandler.PostMessage)
	router.PATCH("/groups/:group_id/messages/:message_id", authMiddleware, messageHandler.EditMessage)
	router.DELETE("/groups/:group_id/messages/:message_id", authMiddleware, messageHandler.DeleteMessage)

	router.POST("/messages/:message_id/reactions", authMiddleware, reactionHandler.AddReaction)
	router.DELETE("/messages/:message_id/reactions", authMiddleware, reactionHandler.RemoveReaction)
	router.GET("/messages/:message_id/reactions", authMiddleware, reactionHandler.ListReactions)

	router.POST("/groups/:group_id/attachments/validate", authMiddleware, attachmentHandler.ValidateUpload)
	router.POST("/groups/:group_id/messages/:message_id/attachments", authMiddleware, attachmentHandler.Upload)
	router.GET("/attachments/:attachment_id/url", authMiddleware, attachmentHandler.DownloadURL)
	router.GET("/attachments/:attachment_id/object", attachmentHandler.ServeObject)

	router.POST("/groups/:group_id/typing", authMiddleware, typingHandler.Announce)

	router.GET("/ws", sessionHandler.Handle)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
