package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/whatsport/notification-core/internal/auth"
	"github.com/whatsport/notification-core/internal/config"
	"github.com/whatsport/notification-core/internal/logger"
	"github.com/whatsport/notification-core/internal/notify"
	"github.com/whatsport/notification-core/internal/push"
	"github.com/whatsport/notification-core/internal/reminder"
	"github.com/whatsport/notification-core/internal/storage/pg"
)

func main() {
	cfg := config.Load()

	appLogger := logger.New(logger.FromConfig(cfg.LogLevel, cfg.LogFormat))

	// Optional YAML overlay for feed/reconciler tuning.
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			appLogger.Error("failed to open config file", slog.String("path", path), slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := config.LoadConfigFile(f, cfg); err != nil {
			f.Close()
			appLogger.Error("failed to parse config file", slog.String("path", path), slog.String("error", err.Error()))
			os.Exit(1)
		}
		f.Close()
	}

	appLogger.Info("setting gin mode", slog.String("mode", cfg.GinMode))
	gin.SetMode(cfg.GinMode)

	// Firebase backs the Firestore store, the push token registry and FCM
	// delivery. Skipped entirely when no credentials are configured, which
	// leaves the Postgres store and polling feed as the only options.
	var firebaseClient *auth.FirebaseClient
	if cfg.FirebaseCredJSON != "" {
		var err error
		firebaseClient, err = auth.NewFirebaseClient(context.Background(), cfg.FirebaseProjectID, cfg.FirebaseCredJSON)
		if err != nil {
			appLogger.Error("failed to initialize firebase client", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer firebaseClient.Close()
	}

	tokenValidator, err := newTokenValidator(cfg, appLogger)
	if err != nil {
		appLogger.Error("failed to initialize token validator", slog.String("error", err.Error()))
		os.Exit(1)
	}
	authMiddleware := auth.NewMiddleware(tokenValidator)

	// Notification backend: Firestore in production, Postgres when running
	// self-hosted without Firebase.
	var backend notify.Backend
	var database *pg.Database
	switch cfg.NotificationStore {
	case config.NotificationStorePostgres:
		database, err = pg.InitDatabase(cfg)
		if err != nil {
			appLogger.Error("failed to initialize database", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer database.Close()
		backend = pg.NewNotificationStore(database)
		appLogger.Info("using postgres notification store")
	case config.NotificationStoreFirestore:
		if firebaseClient == nil {
			appLogger.Error("firestore notification store requires firebase credentials")
			os.Exit(1)
		}
		backend = notify.NewFirestoreBackend(firebaseClient.Firestore())
		appLogger.Info("using firestore notification store")
	default:
		appLogger.Error("invalid notification store", slog.String("store", cfg.NotificationStore))
		os.Exit(1)
	}

	// Clients build their per-user sync cores from this same config, so an
	// unusable feed transport selection should fail here instead of at the
	// first sign-in.
	var feedClient *firestore.Client
	if firebaseClient != nil {
		feedClient = firebaseClient.Firestore()
	}
	if _, err := notify.NewFeedSource(cfg, backend, feedClient); err != nil {
		appLogger.Error("invalid feed transport configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Push delivery. The service tolerates a disabled messaging client, so
	// the producer can always carry it when Firebase is configured.
	var pushService *push.Service
	if firebaseClient != nil {
		pushService = push.NewService(firebaseClient.Messaging(), firebaseClient.Firestore(), appLogger, cfg.PushNotificationsEnabled)
		if cfg.LogLevel == "debug" {
			pushService.EnableDebugCurl(cfg.FirebaseCredJSON, cfg.FirebaseProjectID)
		}
	}

	var pusher notify.Pusher
	if pushService != nil {
		pusher = pushService
	}
	producer := notify.NewProducer(backend, pusher, appLogger)

	// Event reminders need the events tables, so they only run on Postgres.
	var scheduler *reminder.Scheduler
	if database != nil {
		scheduler = reminder.NewScheduler(pg.NewEventStore(database), producer, cfg.ReminderCronSpec, cfg.ReminderWindow, appLogger)
		if err := scheduler.Start(); err != nil {
			appLogger.Error("failed to start reminder scheduler", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	notifyHandler := notify.NewHandler(backend, cfg.FeedSnapshotLimit, appLogger)

	router := gin.Default()

	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", cfg.CORSAllowedOrigins)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	api.Use(authMiddleware.RequireAuth())
	{
		notifyHandler.RegisterRoutes(api)
		if pushService != nil {
			pushHandler := push.NewHandler(pushService.TokenManager(), appLogger)
			pushHandler.RegisterRoutes(api)
		}
	}

	port := ":" + cfg.Port
	appLogger.Info("🔔 notification server listening", slog.String("port", port),
		slog.String("store", cfg.NotificationStore),
		slog.String("feed_transport", cfg.FeedTransport),
		slog.Bool("push_enabled", cfg.PushNotificationsEnabled && pushService != nil))

	srv := &http.Server{
		Addr:    port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("failed to start server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("🛑 shutting down server...")

	if scheduler != nil {
		scheduler.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ServerShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("server forced to shutdown", slog.String("error", err.Error()))
		os.Exit(1)
	}

	appLogger.Info("✅ server exited")
}

func newTokenValidator(cfg *config.Config, log *logger.Logger) (auth.TokenValidator, error) {
	switch cfg.ValidatorType {
	case "firebase":
		if cfg.FirebaseProjectID == "" {
			return nil, errors.New("firebase project ID is required")
		}
		log.Info("creating firebase token validator", slog.String("project_id", cfg.FirebaseProjectID))
		return auth.NewFirebaseTokenValidator(context.Background(), cfg.FirebaseCredJSON)

	case "jwk":
		return auth.NewJWTTokenValidator(cfg.JWTJWKSURL)

	default:
		return nil, errors.New("validator type must be either 'firebase' or 'jwk'")
	}
}
