package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tallyboard/internal/api/handlers"
	"tallyboard/internal/auth"
	"tallyboard/internal/config"
	"tallyboard/internal/jobs"
	"tallyboard/internal/repository"
	"tallyboard/internal/service"
	"tallyboard/internal/store"
	"tallyboard/internal/websocket"
	"tallyboard/internal/worker"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	fiberws "github.com/gofiber/websocket/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize the key-value store backend
	kv, db, err := initStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	log.Printf("Store backend ready: %s", cfg.Store.Backend)

	// Initialize the optional relational mirror + worker pool
	var mirrorRepo *repository.MirrorRepository
	var workerPool *worker.WorkerPool
	if cfg.Mirror.Enabled {
		mirrorDB := db
		if mirrorDB == nil {
			mirrorDB, err = initPostgres(cfg)
			if err != nil {
				log.Fatalf("Failed to connect to PostgreSQL for mirror: %v", err)
			}
		}
		mirrorRepo = repository.NewMirrorRepository(mirrorDB)
		if err := mirrorRepo.AutoMigrate(); err != nil {
			log.Fatalf("Failed to migrate mirror table: %v", err)
		}

		workerPool = worker.NewWorkerPool(cfg.Mirror.Workers, cfg.Mirror.QueueSize, mirrorRepo)
		workerPool.Start()
		log.Println("Relational mirror enabled")
	}

	// Initialize repositories and service
	entryRepo := repository.NewEntryRepository(kv)
	adminRepo := repository.NewAdminRepository(kv)
	tallyService := service.NewTallyService(entryRepo, adminRepo, mirrorRepo, workerPool)

	// Run the deduplication pass before serving anything
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 10*time.Second)
	cleaned, err := tallyService.Deduplicate(startupCtx)
	startupCancel()
	if err != nil {
		log.Fatalf("Startup deduplication failed: %v", err)
	}
	log.Printf("Deduplication pass complete: %d entries", len(cleaned))

	// Session management
	checker := auth.NewSharedSecretChecker(cfg.Auth.AdminPassword)
	sessions := auth.NewSessionManager(kv, checker)

	// WebSocket hub
	hub := websocket.NewHub(tallyService)
	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	go hub.Run(hubCtx)

	// Optional periodic reconciler
	var reconciler *jobs.Reconciler
	if cfg.Reconcile.Enabled {
		reconciler = jobs.NewReconciler(tallyService, jobs.ReconcilerConfig{
			Interval: cfg.Reconcile.Interval,
		})
		recCtx, recCancel := context.WithCancel(context.Background())
		defer recCancel()
		if err := reconciler.Start(recCtx); err != nil {
			log.Printf("Failed to start reconciler: %v", err)
		}
	}

	// Handlers
	tallyHandler := handlers.NewTallyHandler(tallyService, hub)
	authHandler := handlers.NewAuthHandler(sessions, tallyService)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Tallyboard",
		ErrorHandler: customErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	// Routes
	api := app.Group("/api/v1")

	api.Post("/login/contributor", authHandler.LoginContributor)
	api.Post("/login/admin", authHandler.LoginAdmin)
	api.Post("/logout", sessions.RequireSession(), authHandler.Logout)
	api.Get("/session", sessions.RequireSession(), authHandler.GetSession)

	api.Post("/contributions", sessions.RequireSession(), tallyHandler.AddContribution)
	api.Get("/stats", sessions.RequireSession(), tallyHandler.GetStats)
	api.Get("/stats/total", sessions.RequireSession(), tallyHandler.GetGrandTotal)
	api.Get("/me/total", sessions.RequireSession(), tallyHandler.GetMyTotal)
	api.Put("/me/total", sessions.RequireSession(), tallyHandler.SetMyTotal)
	api.Get("/me/visibility", sessions.RequireSession(), tallyHandler.GetVisibility)
	api.Put("/me/visibility", sessions.RequireSession(), tallyHandler.SetVisibility)

	admin := sessions.RequireRole("admin")
	api.Get("/entries", admin, tallyHandler.GetHistory)
	api.Put("/entries/:id", admin, tallyHandler.UpdateEntry)
	api.Delete("/entries/:id", admin, tallyHandler.DeleteEntry)
	api.Delete("/entries", admin, tallyHandler.ClearAll)
	api.Get("/admin/dashboard", admin, tallyHandler.GetAdminDashboard)

	api.Get("/health", tallyHandler.HealthCheck)

	// WebSocket route with upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if fiberws.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", fiberws.New(func(c *fiberws.Conn) {
		tallyHandler.HandleWebSocket(c)
	}))

	// Root route
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Tallyboard API",
			"version": "1.0.0",
			"endpoints": []string{
				"POST /api/v1/login/contributor",
				"POST /api/v1/login/admin",
				"POST /api/v1/contributions",
				"GET /api/v1/stats",
				"GET /api/v1/entries",
				"GET /api/v1/admin/dashboard",
				"GET /api/v1/health",
				"WS /ws (WebSocket)",
			},
			"websocket_clients": hub.GetClientCount(),
		})
	})

	// Graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		log.Println("Shutting down server...")

		if reconciler != nil {
			reconciler.Stop()
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(ctx); err != nil {
			log.Printf("Server forced to shutdown: %v", err)
		}

		if workerPool != nil {
			log.Println("Flushing mirror worker pool...")
			if err := workerPool.Shutdown(30 * time.Second); err != nil {
				log.Printf("Worker pool shutdown error: %v", err)
			}
		}

		if mirrorRepo != nil {
			if err := mirrorRepo.Close(); err != nil {
				log.Printf("Error closing mirror: %v", err)
			}
		}
		if err := kv.Close(); err != nil {
			log.Printf("Error closing store: %v", err)
		}

		log.Println("Server shutdown complete")
	}()

	// Start server
	log.Printf("Server starting on port %d...", cfg.Server.Port)
	if err := app.Listen(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// initStore builds the configured key-value store. The *gorm.DB return is
// non-nil only for the postgres backend, so the mirror can share it.
func initStore(cfg *config.Config) (store.Store, *gorm.DB, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return store.NewMemoryStore(), nil, nil

	case config.BackendRedis:
		client, err := initRedis(cfg)
		if err != nil {
			return nil, nil, err
		}
		return store.NewRedisStore(client), nil, nil

	case config.BackendPostgres:
		db, err := initPostgres(cfg)
		if err != nil {
			return nil, nil, err
		}
		kv := store.NewGormStore(db)
		if err := kv.AutoMigrate(); err != nil {
			return nil, nil, err
		}
		return kv, db, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// initPostgres initializes PostgreSQL connection with connection pooling
func initPostgres(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.GetDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, err
	}

	return db, nil
}

// initRedis initializes Redis connection with connection pooling
func initRedis(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Username:     cfg.Redis.Username,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     20,
		MinIdleConns: 5,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return client, nil
}

// customErrorHandler handles errors globally
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   "Request failed",
		"message": err.Error(),
	})
}
