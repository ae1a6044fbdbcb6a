package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"clipper_app_echo/internal/config"
	"clipper_app_echo/internal/handlers"
	appMiddleware "clipper_app_echo/internal/middleware"
	"clipper_app_echo/internal/services"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	cfg := config.Load()

	// Initialize Firebase
	authClient, err := services.InitFirebase(cfg.FirebaseCredentialsPath)
	if err != nil {
		log.Printf("Warning: Firebase initialization failed: %v", err)
		log.Println("Auth features will not work until valid credentials are provided")
	}

	// Initialize Database
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}
	db, err := services.InitDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := services.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	// Initialize Redis (optional; clip URLs are presigned on every request
	// when the cache is absent)
	var cache *services.RedisCache
	if cfg.RedisURL != "" {
		cache, err = services.NewRedisCache(cfg.RedisURL)
		if err != nil {
			log.Printf("Warning: Redis initialization failed: %v", err)
			cache = nil
		}
	}

	// Initialize S3 presigner
	var signer services.ObjectURLSigner
	if cfg.S3BucketName != "" {
		storage, err := services.NewStorageService(context.Background(), cfg)
		if err != nil {
			log.Printf("Warning: S3 initialization failed: %v", err)
		} else {
			signer = storage
		}
	} else {
		log.Println("Warning: S3_BUCKET_NAME not set, clip playback disabled")
	}

	// Initialize Kafka producer for the processing pipeline
	var publisher services.VideoEventPublisher
	producer, err := services.NewPipelineProducer(cfg)
	if err != nil {
		log.Printf("Warning: Kafka initialization failed: %v", err)
	} else {
		publisher = producer
		defer producer.Close()
	}

	// Payment gateway + reconciler
	gateway := services.NewMidtransService(cfg)
	paymentService := services.NewPaymentService(db, gateway, cfg.PriceConfig)

	// Create Echo instance
	e := echo.New()
	e.HTTPErrorHandler = appMiddleware.CustomErrorHandler

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authClient, cfg.MidtransIsProduction)
	paymentHandler := handlers.NewPaymentHandler(db, paymentService)
	clipHandler := handlers.NewClipHandler(db, cache, signer)
	videoHandler := handlers.NewVideoHandler(db, publisher)
	userHandler := handlers.NewUserHandler(db)

	// Public routes
	e.POST("/auth/session", authHandler.HandleLogin)
	e.POST("/auth/logout", authHandler.HandleLogout)
	e.POST("/api/midtrans/webhook", paymentHandler.MidtransWebhook)

	// Protected routes
	api := e.Group("/api", appMiddleware.RequireAuth(authClient))
	api.GET("/me", userHandler.Me)
	api.GET("/billing", paymentHandler.Billing)
	api.POST("/checkout", paymentHandler.Checkout)
	api.GET("/clips", clipHandler.ListClips)
	api.GET("/clips/:id/url", clipHandler.ClipURL)
	api.POST("/process-video", videoHandler.ProcessVideo)
	api.GET("/uploads", videoHandler.ListUploads)

	log.Printf("Server starting on port %s", cfg.Port)
	e.Logger.Fatal(e.Start(":" + cfg.Port))
}
