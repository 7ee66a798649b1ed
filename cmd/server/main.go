package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/stemforge/api/internal/client"
	"github.com/stemforge/api/internal/config"
	"github.com/stemforge/api/internal/handler"
	"github.com/stemforge/api/internal/middleware"
	"github.com/stemforge/api/internal/notify"
	"github.com/stemforge/api/internal/pipeline"
	"github.com/stemforge/api/internal/publisher"
	"github.com/stemforge/api/internal/service"
	"github.com/stemforge/api/internal/worker"
	ws "github.com/stemforge/api/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Working directory roots must exist before any task runs
	for _, dir := range []string{cfg.Paths.DownloadDir, cfg.Paths.OutputDir, cfg.Paths.UploadDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("Failed to create working directory %s: %v", dir, err)
		}
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Initialize webhook notifier
	notifier := notify.New(cfg.Callback.APIKey, cfg.Callback.QueueSize)
	go notifier.Run()
	defer notifier.Close()

	// Initialize external clients
	storageClient, err := client.NewStorageClient(&cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize storage client: %v", err)
	}
	spotifyClient := client.NewSpotifyClient(&cfg.Spotify, redisClient)

	// Initialize pipeline stages
	fetcher := pipeline.NewFetcher(cfg.Fetch, cfg.FFmpeg, cfg.Paths)
	separator := pipeline.NewSeparator(cfg.Separation)
	composer := pipeline.NewComposer(cfg.FFmpeg)
	artifactPublisher := publisher.New(
		storageClient,
		cfg.Publish.Concurrency,
		time.Duration(cfg.Storage.URLExpiryHours)*time.Hour,
	)

	// Initialize services
	separationService := service.NewSeparationService(asynqClient)
	catalogService := service.NewCatalogService(spotifyClient)
	storageService := service.NewStorageService(storageClient)

	// Initialize handlers
	separationHandler := handler.NewSeparationHandler(separationService, validate, cfg.Paths.UploadDir)
	metadataHandler := handler.NewMetadataHandler(catalogService)
	storageHandler := handler.NewStorageHandler(storageService)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    50 * 1024 * 1024, // 50MB
	})

	// Global middleware
	app.Use(recover.New())
	isDebug := strings.EqualFold(cfg.Server.LogLevel, "debug")
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if isDebug {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body} ${reqHeaders}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Base URL - timestamp
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"redis":   redisClient.Ping(c.Context()).Err() == nil,
				"storage": storageClient != nil,
				"spotify": cfg.Spotify.ClientID != "",
				"auth":    cfg.JWT.Secret != "",
			},
		})
	})

	// API routes
	api := app.Group("/api", authMiddleware.Authenticate())

	// Separation routes
	separation := api.Group("/separation", rateLimiter.SeparateLimit(cfg.RateLimit.SeparatePerHour))
	separation.Post("/link", separationHandler.FromLink)
	separation.Post("/file", separationHandler.FromFile)

	// Metadata routes
	metadata := api.Group("/metadata", rateLimiter.SearchLimit(cfg.RateLimit.SearchPerMin))
	metadata.Get("/search", metadataHandler.Search)

	// Storage routes
	storage := api.Group("/storage")
	storage.Get("/list", storageHandler.List)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/tasks/:taskId", websocket.New(func(c *websocket.Conn) {
		taskID := c.Params("taskId")
		hub.HandleConnection(c, taskID)
	}))

	// Start Asynq worker server
	separationWorker := worker.NewSeparationWorker(
		fetcher,
		separator,
		composer,
		artifactPublisher,
		notifier,
		hub,
		spotifyClient,
		cfg.Paths.OutputDir,
	)
	go startWorkerServer(cfg, separationWorker)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func startWorkerServer(cfg *config.Config, separationWorker *worker.SeparationWorker) {
	asynqLogLevel := asynq.InfoLevel
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		asynqLogLevel = asynq.DebugLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "warn") {
		asynqLogLevel = asynq.WarnLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "error") {
		asynqLogLevel = asynq.ErrorLevel
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			// Separation is CPU-bound; one task at a time keeps the
			// separation engine from thrashing the host.
			Concurrency: 1,
			Queues: map[string]int{
				"separate": 1,
			},
			LogLevel: asynqLogLevel,
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeSeparate, separationWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
