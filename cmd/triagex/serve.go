package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/triagex/platform/pkg/common/config"
	"github.com/triagex/platform/pkg/common/database"
	"github.com/triagex/platform/pkg/common/kafka"
	"github.com/triagex/platform/pkg/common/logger"
	"github.com/triagex/platform/pkg/feed"
	"github.com/triagex/platform/pkg/gateway/httpclient"
	"github.com/triagex/platform/pkg/gateway/middleware"
	"github.com/triagex/platform/pkg/gemini"
	"github.com/triagex/platform/pkg/intake"
	"github.com/triagex/platform/pkg/storage"
	"github.com/triagex/platform/pkg/summary"
	"github.com/triagex/platform/pkg/triage"
	"gorm.io/gorm"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger.Init()
			return serve(config.Load())
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the intake tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger.Init()
			cfg := config.Load()

			db, err := database.GetPostgres(cfg)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer database.ClosePostgres()

			if err := intake.NewRepository(db).AutoMigrate(); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			logger.Log.Info("Migrations applied")
			return nil
		},
	}
}

func serve(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.GetPostgres(cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer database.ClosePostgres()

	repo := intake.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	cache := storage.NewVitalsCache(database.GetRedis(cfg), cfg.VitalsCacheTTL)
	defer database.CloseRedis()

	hub := feed.NewHub(cfg.CORSAllowedOrigin)
	go hub.Run(ctx)

	// With a topic configured, events go through kafka and come back to the
	// hub via the consumer so every replica's dashboards see them.
	var publisher intake.Publisher = hub
	if cfg.IntakeEventsTopic != "" {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.IntakeEventsTopic)
		defer producer.Close()
		publisher = producer

		consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.IntakeEventsTopic, cfg.KafkaGroupID)
		defer consumer.Close()
		go func() {
			if err := consumer.Consume(ctx, hub.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
				logger.Log.WithError(err).Error("Feed consumer stopped")
			}
		}()
	}

	intakeSvc := intake.NewService(repo, publisher, cache)

	rules, err := triage.LoadRules(cfg.TriageRulesPath)
	if err != nil {
		logger.Log.WithError(err).WithField("path", cfg.TriageRulesPath).Warn("Failed to load triage rules, using defaults")
	}
	triageSvc := triage.NewService(intakeSvc, triage.NewClassifier(rules))

	summarySvc := summary.NewService(summary.Settings{
		APIKey: cfg.GeminiAPIKey,
		Model:  cfg.GeminiModel,
	}, newGenerator(cfg))

	router := newRouter(cfg, routes{
		summary: summary.NewHTTPHandler(summarySvc, intakeSvc, cfg.MaxRequestBody),
		intake:  intake.NewHandler(intakeSvc),
		triage:  triage.NewHandler(triageSvc),
		feed:    hub,
		ready:   pingDB(db),
		cache:   database.PingRedis,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      middleware.TrimSlash(router),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("triagex server started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	logger.Log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
		return err
	}

	logger.Log.Info("Server exited")
	return nil
}

// newGenerator returns nil when the client cannot be built, which the
// summary service reports per request. An untyped nil is required here.
func newGenerator(cfg *config.Config) summary.Generator {
	client, err := gemini.NewClient(gemini.Options{
		APIKey:     cfg.GeminiAPIKey,
		Model:      cfg.GeminiModel,
		BaseURL:    cfg.GeminiBaseURL,
		Timeout:    cfg.GeminiTimeout,
		HTTPClient: httpclient.New(cfg.GeminiTimeout),
	})
	if err != nil {
		logger.Log.WithError(err).Warn("Gemini client disabled")
		return nil
	}
	return client
}

func pingDB(db *gorm.DB) func(context.Context) error {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}
