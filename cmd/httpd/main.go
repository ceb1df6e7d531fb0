// Command httpd runs the cybermed backend HTTP server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cybermed/agent/internal/api"
	"github.com/cybermed/agent/internal/auth"
	"github.com/cybermed/agent/internal/classifier"
	"github.com/cybermed/agent/internal/config"
	"github.com/cybermed/agent/internal/crawler"
	"github.com/cybermed/agent/internal/database"
	"github.com/cybermed/agent/internal/indexer"
	"github.com/cybermed/agent/internal/jobs"
	"github.com/cybermed/agent/internal/logging"
	"github.com/cybermed/agent/internal/telemetry"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "httpd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := os.Getenv("CONFIG_FILE")
	if configPath == "" {
		configPath = "config.yml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Service.Debug,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("starting cybermed backend",
		logging.String("version", cfg.Service.Version),
		logging.Int("port", cfg.Service.Port),
	)

	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	logger.Info("database ready", logging.String("driver", cfg.Database.Driver))

	documents := database.NewDocumentsRepository(db)
	results := database.NewClassificationsRepository(db)
	guidelines := database.NewGuidelinesRepository(db)
	users := database.NewUsersRepository(db)

	tel := telemetry.NewProvider()

	esClient, err := indexer.NewClient(cfg.Elasticsearch)
	if err != nil {
		return fmt.Errorf("create elasticsearch client: %w", err)
	}
	idx := indexer.New(esClient, cfg.Elasticsearch.Index, logger)

	// The keyword matcher is built once at startup from the guideline
	// dictionary; newly created guidelines take effect on restart.
	keywords, err := guidelines.AllKeywords(context.Background())
	if err != nil {
		return fmt.Errorf("load guideline keywords: %w", err)
	}
	matcher := classifier.NewKeywordMatcher(keywords)
	logger.Info("keyword dictionary loaded", logging.Int("terms", len(keywords)))

	docClassifier := classifier.New(cfg.Classifier, matcher, logger)

	store := jobs.NewStore(logger)
	worker := jobs.NewWorker(store, docClassifier, results, jobs.WorkerConfig{
		DocumentTimeout: cfg.Classifier.DocumentTimeout,
		RequestsPerSec:  cfg.Classifier.RequestsPerSec,
	}, logger, tel)

	crawl := crawler.New(documents, cfg.Crawler, logger, tel)
	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry)

	handler := api.NewHandler(api.HandlerConfig{
		Store:      store,
		Worker:     worker,
		Documents:  documents,
		Results:    results,
		Guidelines: guidelines,
		Users:      users,
		Crawler:    crawl,
		Indexer:    idx,
		JWT:        jwtManager,
		Telemetry:  tel,
		Logger:     logger,
	})

	server := api.NewServer(cfg.Service, handler, jwtManager, logger)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return err
	case sig := <-shutdown:
		logger.Info("shutdown signal received", logging.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
	}

	return nil
}
