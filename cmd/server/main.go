package main

import (
	"context"   // context package is needed for Redis operations
	"errors"    // Server shutdown errors
	"net/http"  // HTTP server
	"os/signal" // Graceful shutdown
	"syscall"   // Signals
	"time"      // Timeouts

	"cryptovault/internal/api"     // Custom package for API handlers
	"cryptovault/internal/chain"   // Chain client
	"cryptovault/internal/config"  // Custom package for configuration
	"cryptovault/internal/db"      // Database connection
	"cryptovault/internal/events"  // Domain events
	"cryptovault/internal/jobs"    // Background reconciler
	"cryptovault/internal/oauth"   // Google sign-in
	"cryptovault/internal/storage" // Blob storage

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
)

// Main function to set up and run the server
func main() {
	cfg := config.LoadConfig() // Load configuration

	// Setup logger
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if cfg.IsProd {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	if cfg.JWTSecret == "" {
		logrus.Fatal("JWT_SECRET must be set")
	}

	// Connect to the database
	gdb, err := db.Open(cfg)
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err) // Fatal error if DB connection fails
	}
	if cfg.DBDriver == "sqlite" {
		// Development databases migrate on start; MySQL uses cmd/migrate
		if err := db.Migrate(gdb); err != nil {
			logrus.Fatalf("failed to migrate DB: %v", err)
		}
	}

	// Setup Redis client when configured
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr, // Redis server address
			Password: cfg.RedisPass, // Redis password
			DB:       cfg.RedisDB,   // Redis database number
		})
		// Test Redis connection
		if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
			logrus.Fatalf("failed to connect to Redis: %v", err)
		}
	} else {
		logrus.Warn("REDIS_ADDR not set, listing cache disabled")
	}

	store, err := storage.NewLocalStore(cfg.UploadDir, cfg.MaxUploadBytes)
	if err != nil {
		logrus.Fatalf("failed to open upload dir: %v", err)
	}

	// Domain events go to RabbitMQ when configured
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.AMQPURL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logrus.Fatalf("failed to connect to RabbitMQ: %v", err)
		}
		publisher = amqpPublisher
	}
	defer publisher.Close()

	// Google sign-in is optional in development
	var provider oauth.Provider
	if cfg.OAuthEnabled() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.OutboundTimeout)
		google, err := oauth.NewGoogle(ctx, cfg.OIDCIssuer, cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.OAuthRedirectURL)
		cancel()
		if err != nil {
			logrus.Fatalf("failed to set up Google sign-in: %v", err)
		}
		provider = google
	} else {
		logrus.Warn("GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET not set, Google sign-in disabled")
	}

	reconciler := jobs.NewReconciler(gdb, store)
	if err := reconciler.Start(cfg.ReconcileInterval); err != nil {
		logrus.Fatalf("failed to start reconciler: %v", err)
	}
	defer reconciler.Stop()

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup Gin
	r := gin.Default() // Gin router instance
	r.MaxMultipartMemory = 8 << 20

	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}

	api.RegisterRoutes(r, api.Deps{
		DB:         gdb,
		Redis:      redisClient,
		Config:     cfg,
		Store:      store,
		Chain:      chain.NewMockClient(cfg.SuiNetwork, cfg.SuiPackageID, cfg.SuiModuleName, cfg.SuiMarketplaceID),
		Events:     publisher,
		OAuth:      provider,
		Reconciler: reconciler,
	})

	srv := &http.Server{Addr: ":" + cfg.AppPort, Handler: r}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		logrus.Info("Server running on " + cfg.AppPort) // Log server start
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logrus.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("shutdown: %v", err)
	}
}
