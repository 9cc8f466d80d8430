package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/quantora/mlserve/internal/api"
	"github.com/quantora/mlserve/internal/cache"
	"github.com/quantora/mlserve/internal/config"
	"github.com/quantora/mlserve/internal/database"
	"github.com/quantora/mlserve/internal/features"
	"github.com/quantora/mlserve/internal/health"
	"github.com/quantora/mlserve/internal/lifecycle"
	"github.com/quantora/mlserve/internal/logging"
	"github.com/quantora/mlserve/internal/notify"
	"github.com/quantora/mlserve/internal/predictor"
	"github.com/quantora/mlserve/internal/registry"
	"github.com/quantora/mlserve/internal/store"
)

func main() {
	// Load .env file if present, environment variables take precedence.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	logger := logging.New(cfg.LogLevel, cfg.Environment)
	logger.WithFields(logrus.Fields{
		"environment": cfg.Environment,
		"port":        cfg.Server.Port,
		"models_dir":  cfg.Models.Dir,
	}).Info("Starting model serving server")

	builder := features.NewBuilder(logger)
	reg := registry.New(builder, logger, cfg.Models.HistorySize)

	manager := lifecycle.New(cfg.Models.Dir, reg, logger)
	reg.SetSaver(manager)

	gate := health.NewGate(health.Thresholds{
		MissingRatioLimit: cfg.HealthGate.MissingRatioLimit,
		ZScoreLimit:       cfg.HealthGate.ZScoreLimit,
		MahalanobisStop:   cfg.HealthGate.MahalanobisStop,
		MahalanobisWarn:   cfg.HealthGate.MahalanobisWarn,
		ConfidenceFloor:   cfg.HealthGate.ConfidenceFloor,
	}, health.NewReportExporter(cfg.HealthGate.ReportPath), buildNotifier(cfg, logger), logger)

	pipeline := predictor.New(reg, builder, gate, logger, predictor.Options{
		RelevanceThreshold: cfg.Models.RelevanceThreshold,
		BatchWorkers:       cfg.Models.BatchWorkers,
	})

	if cfg.Redis.Enabled {
		redisClient, err := database.NewRedisConnection(cfg.Redis)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer redisClient.Close()
		ttl, err := time.ParseDuration(cfg.Redis.TTL)
		if err != nil {
			ttl = 10 * time.Minute
		}
		pipeline.SetCache(cache.NewResultCache(redisClient.Client, ttl, logger))
		logger.Info("Prediction result cache enabled")
	}

	if cfg.Database.Enabled {
		db, err := database.NewPostgresConnection(cfg.Database)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to database")
		}
		defer db.Close()
		pipeline.SetStore(store.NewPredictionStore(db.Pool, logger))
		logger.Info("Prediction persistence enabled")
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	api.SetupRoutes(router, reg, pipeline, manager, gate, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		logger.WithField("addr", server.Addr).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Forced shutdown")
	}
	logger.Info("Server stopped")
}

// buildNotifier assembles the health notification sinks from configuration.
// Returns nil when nothing is configured.
func buildNotifier(cfg *config.Config, logger *logrus.Logger) notify.Notifier {
	var sinks notify.MultiNotifier

	if cfg.Notifications.WebhookURL != "" {
		timeout, err := time.ParseDuration(cfg.Notifications.WebhookTimeout)
		if err != nil {
			timeout = 5 * time.Second
		}
		sinks = append(sinks, notify.NewWebhookNotifier(cfg.Notifications.WebhookURL, timeout, logger))
	}
	if tg := notify.NewTelegramNotifier(cfg.Notifications.TelegramBotToken, cfg.Notifications.TelegramChatID, logger); tg != nil {
		sinks = append(sinks, tg)
	}

	if len(sinks) == 0 {
		return nil
	}
	return sinks
}
