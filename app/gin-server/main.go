package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/oselyuk/boardmate/config"
	"github.com/oselyuk/boardmate/internal/api/handlers"
	"github.com/oselyuk/boardmate/internal/api/middleware"
	"github.com/oselyuk/boardmate/internal/api/routes"
	"github.com/oselyuk/boardmate/internal/cache"
	"github.com/oselyuk/boardmate/internal/logger"
	"github.com/oselyuk/boardmate/internal/models"
	"github.com/oselyuk/boardmate/internal/providers/devops"
	"github.com/oselyuk/boardmate/internal/providers/embedding"
	"github.com/oselyuk/boardmate/internal/providers/graph"
	"github.com/oselyuk/boardmate/internal/providers/llm"
	"github.com/oselyuk/boardmate/internal/relevance"
	mongorepo "github.com/oselyuk/boardmate/internal/repositories/mongo"
	pgrepo "github.com/oselyuk/boardmate/internal/repositories/postgres"
	"github.com/oselyuk/boardmate/internal/services"
	"github.com/oselyuk/boardmate/internal/workers"
)

func main() {
	_ = godotenv.Load()

	l := logger.New()

	// Init MongoDB
	if err := config.InitMongo(); err != nil {
		log.Fatalf("MongoDB init error: %v", err)
	}
	if err := config.EnsureMongoIndexes(); err != nil {
		log.Fatalf("MongoDB index error: %v", err)
	}
	l.Info("MongoDB connected")

	// Init PostgreSQL
	if err := config.InitPostgres(); err != nil {
		log.Fatalf("PostgreSQL init error: %v", err)
	}
	if err := config.PostgresDB.AutoMigrate(&models.WorkItem{}, &models.SLARule{}, &models.User{}); err != nil {
		log.Fatalf("PostgreSQL migrate error: %v", err)
	}
	l.Info("PostgreSQL connected")

	// Init Redis
	if err := config.InitRedis(); err != nil {
		log.Fatalf("Redis init error: %v", err)
	}
	l.Info("Redis connected")

	// Providers
	embedder, err := embedding.NewAzureOpenAI(
		os.Getenv("AZURE_OPENAI_ENDPOINT"),
		os.Getenv("AZURE_OPENAI_EMBEDDING_DEPLOYMENT"),
		os.Getenv("AZURE_OPENAI_API_KEY"),
	)
	if err != nil {
		log.Fatalf("embedding provider init error: %v", err)
	}

	chat, err := llm.NewAzureOpenAI(
		os.Getenv("AZURE_OPENAI_ENDPOINT"),
		os.Getenv("AZURE_OPENAI_CHAT_DEPLOYMENT"),
		os.Getenv("AZURE_OPENAI_API_KEY"),
	)
	if err != nil {
		log.Fatalf("llm provider init error: %v", err)
	}
	defer chat.Close()

	ado, err := devops.NewClient(os.Getenv("ADO_ORGANIZATION"), os.Getenv("ADO_PAT"))
	if err != nil {
		log.Fatalf("azure devops client init error: %v", err)
	}

	teams, err := graph.NewClient(
		os.Getenv("GRAPH_TENANT_ID"),
		os.Getenv("GRAPH_CLIENT_ID"),
		os.Getenv("GRAPH_CLIENT_SECRET"),
	)
	if err != nil {
		log.Fatalf("graph client init error: %v", err)
	}

	// Context selection
	selectorCfg, err := config.ContextSelection()
	if err != nil {
		log.Fatalf("context selection config error: %v", err)
	}
	selector, err := relevance.NewSelector(selectorCfg, embedder, l)
	if err != nil {
		log.Fatalf("context selector init error: %v", err)
	}

	// Repositories
	mongoDB := config.MongoDatabase()
	convoRepo := mongorepo.NewConversationRepo(mongoDB)
	notifRepo := mongorepo.NewNotificationRepo(mongoDB)
	workItemRepo := pgrepo.NewWorkItemRepo(config.PostgresDB)
	ruleRepo := pgrepo.NewSLARuleRepo(config.PostgresDB)
	userRepo := pgrepo.NewUserRepo(config.PostgresDB)

	redisCache := cache.NewRedisCache(config.RedisClient)

	// Services
	convoSvc := services.NewConversationService(convoRepo)
	workItemSvc := services.NewWorkItemService(workItemRepo, ado, embedder, redisCache, l)
	assistantSvc := services.NewAssistantService(convoSvc, selector, workItemSvc, chat, config.RedisClient, l)
	slaSvc := services.NewSLAService(ruleRepo, workItemRepo, config.RedisClient, l)
	authSvc := services.NewAuthService(userRepo, os.Getenv("JWT_SECRET"), envDuration("JWT_TTL"))

	// Background workers
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := &workers.NotifyWorkerPool{
		Redis:          config.RedisClient,
		Graph:          teams,
		Notifications:  notifRepo,
		Throttle:       redisCache,
		Logger:         l,
		ThrottleWindow: envDuration("SLA_THROTTLE_WINDOW"),
	}
	if err := pool.Start(ctx); err != nil {
		log.Fatalf("notify worker init error: %v", err)
	}

	scanner := &workers.SLAScanner{
		SLA:      slaSvc,
		Interval: envDuration("SLA_SCAN_INTERVAL"),
		Logger:   l,
	}
	if err := scanner.Start(ctx); err != nil {
		log.Fatalf("sla scanner init error: %v", err)
	}

	// Handlers
	webhookHandler, err := handlers.NewWebhookHandler(assistantSvc, os.Getenv("TEAMS_WEBHOOK_SECRET"), l)
	if err != nil {
		log.Fatalf("teams webhook init error: %v", err)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(l))

	routes.RegisterRoutes(r, routes.Deps{
		Auth:     handlers.NewAuthHandler(authSvc),
		Chat:     handlers.NewChatHandler(assistantSvc, convoSvc),
		WS:       handlers.NewWSHandler(assistantSvc, config.RedisClient, l),
		Webhook:  webhookHandler,
		SLA:      handlers.NewSLAHandler(slaSvc, notifRepo),
		WorkItem: handlers.NewWorkItemHandler(workItemSvc),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// envDuration returns 0 for unset or malformed values so callers fall back
// to their own defaults.
func envDuration(key string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}
