package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"smarthire/internal/config"
	"smarthire/internal/handlers"
	"smarthire/internal/logger"
	"smarthire/internal/models"
	"smarthire/internal/queue"
	"smarthire/internal/repositories"
	"smarthire/internal/services"
)

func main() {
	// Load configuration
	cfg := config.Load()
	log.Println("✅ Config loaded successfully")

	zlog, err := logger.New(cfg.Server.Env)
	if err != nil {
		log.Fatalf("❌ Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	// Initialize database
	db, err := config.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}

	// Initialize repositories
	docRepo := repositories.NewDocumentRepository(db)
	candidateRepo := repositories.NewCandidateRepository(db)
	personalityRepo := repositories.NewPersonalityRepository(db)
	responseRepo := repositories.NewResponseRepository(db)
	evalRepo := repositories.NewEvaluationRepository(db)
	jobRepo := repositories.NewJobRepository(db)
	log.Println("✅ Repositories initialized successfully")

	// Initialize services
	storageService := services.NewStorageService(cfg.Storage.UploadPath)
	if err := storageService.EnsureUploadDir(); err != nil {
		log.Fatalf("❌ Failed to create upload directory: %v", err)
	}

	extractor := services.NewResumeExtractor()
	traitScorer := services.NewTraitScorer()
	mediaService := services.NewMediaService(
		storageService,
		docRepo,
		cfg.Pipeline.MaxMediaSize,
		cfg.Pipeline.MaxMediaDuration,
	)
	log.Println("✅ Services initialized successfully")

	// Initialize Gemini AI
	geminiService, err := services.NewGeminiService(
		cfg.Gemini.APIKey,
		cfg.Gemini.Model,
		cfg.Gemini.EmbedModel,
	)
	if err != nil {
		log.Fatalf("❌ Failed to initialize Gemini AI: %v", err)
	}
	log.Println("✅ Gemini AI initialized successfully")

	// Initialize Qdrant. Optional: without it the requirement matcher falls
	// back to keyword overlap.
	var vectorStore services.VectorStore
	if cfg.Qdrant.URL != "" {
		vectorStore, err = services.NewQdrantStore(
			cfg.Qdrant.URL,
			cfg.Qdrant.APIKey,
			cfg.Qdrant.Collection,
		)
		if err != nil {
			log.Fatalf("❌ Failed to initialize Qdrant: %v", err)
		}
		if err := vectorStore.InitCollection(); err != nil {
			log.Fatalf("❌ Failed to initialize Qdrant collection: %v", err)
		}
		log.Println("✅ Qdrant initialized successfully")
	} else {
		log.Println("⚠️ Qdrant not configured, requirement matching uses keywords only")
	}

	matcher := services.NewRequirementMatcher(
		vectorStore,
		geminiService,
		cfg.Pipeline.RequirementKeywords,
		zlog,
	)

	// Initialize queue
	var q queue.Queue
	if cfg.Rabbit.URL != "" {
		q, err = queue.NewRabbit(cfg.Rabbit.URL, cfg.Rabbit.Queue, zlog)
		if err != nil {
			log.Fatalf("❌ Failed to connect to RabbitMQ: %v", err)
		}
		log.Println("✅ RabbitMQ connected successfully")
	} else {
		q = queue.NewMemory(256)
		log.Println("⚠️ RabbitMQ not configured, using in-process queue")
	}
	defer q.Close()

	// Initialize aggregator
	notify := func(eval *models.Evaluation) {
		zlog.Info("Evaluation ready for decision",
			zap.String("evaluationId", eval.ID.String()),
			zap.String("candidateId", eval.CandidateID.String()),
			zap.String("status", string(eval.Status)))
	}
	aggregator := services.NewAggregator(
		evalRepo,
		responseRepo,
		candidateRepo,
		personalityRepo,
		jobRepo,
		matcher,
		cfg.Pipeline,
		notify,
		zlog,
	)

	// Initialize orchestrator and start workers
	orchestrator := services.NewOrchestrator(
		responseRepo,
		jobRepo,
		docRepo,
		storageService,
		mediaService,
		geminiService,
		geminiService,
		aggregator,
		q,
		cfg.Worker,
		cfg.Pipeline,
		zlog,
	)

	ctx := context.Background()
	orchestrator.Start(ctx)
	log.Println("✅ Stage workers started successfully")

	// Initialize handlers
	candidateHandler := handlers.NewCandidateHandler(candidateRepo, docRepo, storageService, extractor)
	assessmentHandler := handlers.NewAssessmentHandler(candidateRepo, personalityRepo, traitScorer)
	responseHandler := handlers.NewResponseHandler(
		candidateRepo,
		responseRepo,
		evalRepo,
		docRepo,
		storageService,
		mediaService,
		orchestrator,
		zlog,
	)
	evaluationHandler := handlers.NewEvaluationHandler(aggregator)
	log.Println("✅ Handlers initialized")

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "SmartHire Evaluation API",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		BodyLimit:    int(cfg.Pipeline.MaxMediaSize) + 1024*1024,
		ErrorHandler: customErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	// Routes
	api := app.Group("/api/v1")

	// Health check
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now(),
		})
	})

	// API endpoints
	api.Post("/candidates", candidateHandler.HandleCreate)
	api.Post("/candidates/:id/resume", candidateHandler.HandleReplaceResume)
	api.Post("/candidates/:id/assessment", assessmentHandler.HandleSubmit)
	api.Post("/candidates/:id/responses", responseHandler.HandleSubmit)
	api.Get("/candidates/:id/evaluation", evaluationHandler.HandleGetEvaluation)

	// Root route
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "SmartHire Evaluation API",
			"version": "1.0.0",
			"endpoints": []string{
				"POST /api/v1/candidates",
				"POST /api/v1/candidates/:id/resume",
				"POST /api/v1/candidates/:id/assessment",
				"POST /api/v1/candidates/:id/responses",
				"GET /api/v1/candidates/:id/evaluation",
			},
		})
	})

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("\n🛑 Shutting down server...")
		orchestrator.Stop()
		if err := app.Shutdown(); err != nil {
			log.Printf("❌ Server forced to shutdown: %v", err)
		}
	}()

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Printf("🚀 Server starting on %s\n", addr)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}
