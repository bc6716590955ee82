package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/medassist/backend/internal/api/handlers"
	"github.com/medassist/backend/internal/cache/redis"
	"github.com/medassist/backend/internal/citations"
	"github.com/medassist/backend/internal/ingestion"
	"github.com/medassist/backend/internal/llm"
	"github.com/medassist/backend/internal/metrics"
	"github.com/medassist/backend/internal/middleware/ratelimit"
	"github.com/medassist/backend/internal/middleware/security"
	"github.com/medassist/backend/internal/middleware/validation"
	"github.com/medassist/backend/internal/prompt"
	"github.com/medassist/backend/internal/query"
	"github.com/medassist/backend/internal/ranking"
	"github.com/medassist/backend/internal/retrieval"
	"github.com/medassist/backend/internal/storage/sqlite"
	"github.com/medassist/backend/internal/terms"
	"github.com/medassist/backend/internal/vector/milvus"
	"github.com/medassist/backend/pkg/config"
	appLogger "github.com/medassist/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting medical assistant API server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	milvusClient, err := milvus.NewClient(
		cfg.Milvus.Endpoint,
		cfg.Milvus.APIKey,
		cfg.Milvus.CollectionName,
		cfg.Milvus.VectorDim,
	)
	if err != nil {
		appLogger.Fatal("Failed to create Milvus client", zap.Error(err))
	}
	defer milvusClient.Close()

	if err := milvusClient.CreateCollection(context.Background()); err != nil {
		appLogger.Fatal("Failed to create collection", zap.Error(err))
	}

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.EmbeddingModel,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
	)

	var embeddingCache retrieval.EmbeddingCache
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Redis unavailable, continuing without embedding cache", zap.Error(err))
		} else {
			defer redisClient.Close()
			embeddingCache = redisClient
		}
	}

	retriever := retrieval.NewRetriever(llmClient, milvusClient, embeddingCache, cfg.LLM.EmbeddingDim)
	composer := prompt.NewComposer(
		cfg.Prompt.BaseInstructions,
		cfg.Prompt.MaxLength,
		sqliteClient,
		prompt.NewSpecialtyCache(),
	)

	engine := query.NewEngine(
		sqliteClient,
		terms.NewExtractor(),
		retriever,
		ranking.NewRanker(),
		composer,
		llmClient,
		citations.NewParser(),
		citations.NewPersister(sqliteClient),
	)

	processor := ingestion.NewProcessor(sqliteClient, milvusClient, llmClient, cfg.Ingestion.ChunkSize, cfg.Ingestion.ChunkOverlap)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))

	limiter := ratelimit.New(ratelimit.Config{Logger: appLogger.GetLogger()})
	defer limiter.Stop()
	app.Use(limiter.Middleware())

	app.Use(validation.Middleware(validation.Config{Logger: appLogger.GetLogger()}))

	queryHandler := handlers.NewQueryHandler(engine, cfg.Retrieval.SimilarityThreshold, cfg.Retrieval.Limit)
	citationHandler := handlers.NewCitationHandler(engine)
	documentHandler := handlers.NewDocumentHandler(processor)
	wsHandler := handlers.NewWebSocketHandler(engine)

	api := app.Group("/api/v1")

	api.Post("/query", queryHandler.HandleQuery)
	api.Get("/query/history", queryHandler.GetQueryHistory)
	api.Get("/messages/:messageID/citations", citationHandler.GetCitations)
	api.Post("/documents", documentHandler.UploadDocument)

	api.Get("/ws", websocket.New(wsHandler.HandleConnection))

	app.Get("/metrics", metrics.MetricsHandler())

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		if !engine.Available(c.Context()) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "retrieval unavailable",
			})
		}
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
