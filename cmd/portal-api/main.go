// Package main provides the MediHope portal API entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/medihope/portal/internal/api"
	"github.com/medihope/portal/internal/backend"
	"github.com/medihope/portal/internal/config"
	"github.com/medihope/portal/internal/events"
	"github.com/medihope/portal/internal/infrastructure/redpanda"
	"github.com/medihope/portal/internal/observability/metrics"
	"github.com/medihope/portal/internal/observability/tracing"
	"github.com/medihope/portal/internal/preferences"
	"github.com/medihope/portal/internal/views"
	"github.com/medihope/portal/pkg/circuitbreaker"
	"github.com/medihope/portal/pkg/workerpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx := context.Background()

	// Tracing
	tcfg := tracing.DefaultConfig(api.ServiceName)
	tcfg.Endpoint = cfg.OTLPEndpoint
	tcfg.Environment = cfg.Environment
	tp, err := tracing.Init(ctx, tcfg)
	if err != nil {
		logger.Fatal("tracing init failed", zap.Error(err))
	}

	m := metrics.New()

	client, err := backend.New(backend.Config{BaseURL: cfg.BackendURL, Metrics: m}, logger)
	if err != nil {
		logger.Fatal("invalid backend configuration", zap.Error(err))
	}

	// Preferences
	var db *pgxpool.Pool
	var mongoClient *mongo.Client
	var store preferences.Store
	switch cfg.PreferencesBackend {
	case config.PreferencesPostgres:
		db, err = pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer db.Close()
		if err := db.Ping(ctx); err != nil {
			logger.Fatal("database ping failed", zap.Error(err))
		}
		pg := preferences.NewPostgresStore(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Fatal("preferences schema failed", zap.Error(err))
		}
		store = pg
		logger.Info("preferences stored in postgres")
	case config.PreferencesMongo:
		mc, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			logger.Fatal("failed to connect to mongo", zap.Error(err))
		}
		defer mc.Disconnect(context.Background())
		if err := mc.Ping(ctx, nil); err != nil {
			logger.Fatal("mongo ping failed", zap.Error(err))
		}
		mongoClient = mc
		store = preferences.NewMongoStore(mc.Database(cfg.MongoDatabase).Collection("portal_preferences"))
		logger.Info("preferences stored in mongo", zap.String("database", cfg.MongoDatabase))
	default:
		store = preferences.NewFileStore(cfg.PreferencesPath)
		logger.Info("preferences stored on disk", zap.String("path", cfg.PreferencesPath))
	}
	prefs := preferences.NewSettings(store, logger)
	if err := prefs.Load(ctx); err != nil {
		logger.Warn("preferences not loaded, using defaults", zap.Error(err))
	}

	// Events
	var publisher events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		pcfg := redpanda.DefaultProducerConfig()
		pcfg.Brokers = cfg.KafkaBrokers
		producer, err := redpanda.NewProducer(pcfg, logger)
		if err != nil {
			logger.Fatal("producer creation failed", zap.Error(err))
		}
		ensureTopics(ctx, cfg.KafkaBrokers, logger)
		publisher = events.NewKafkaPublisher(producer, m, logger)
		logger.Info("publishing submission events", zap.Strings("brokers", cfg.KafkaBrokers))
	}
	defer publisher.Close()

	pool := workerpool.New(workerpool.DefaultConfig(), logger)
	pool.Start()

	app := &views.AppContext{
		Prefs:   prefs,
		Backend: client,
		Pool:    pool,
		Events:  publisher,
		Metrics: m,
		Logger:  logger,
	}

	checks := map[string]api.ReadyCheck{
		"backend": func(context.Context) error {
			if h := client.Breaker().Health(); !h.Healthy {
				return fmt.Errorf("%w: %s is %s", circuitbreaker.ErrOpen, h.Name, h.State)
			}
			return nil
		},
		"workers": func(context.Context) error {
			if !pool.IsHealthy() {
				return errors.New("worker pool stopped")
			}
			return nil
		},
	}
	if db != nil {
		checks["database"] = func(ctx context.Context) error { return db.Ping(ctx) }
	}
	if mongoClient != nil {
		checks["mongo"] = func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) }
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewRouter(app, logger, checks),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("shutdown error", zap.Error(err))
		}
		if err := pool.Stop(); err != nil {
			logger.Error("worker pool shutdown error", zap.Error(err))
		}
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("tracer shutdown error", zap.Error(err))
		}
	}()

	logger.Info("starting portal API",
		zap.String("port", cfg.Port),
		zap.String("backend", cfg.BackendURL))
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}

	logger.Info("server stopped")
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = lvl
	return zcfg.Build()
}

// ensureTopics creates the submissions topic. The broker may auto-create
// topics, so a failure here is only logged.
func ensureTopics(ctx context.Context, brokers []string, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := redpanda.Ping(ctx, brokers); err != nil {
		logger.Warn("broker not reachable", zap.Error(err))
		return
	}
	admin, err := redpanda.NewAdmin(brokers, logger)
	if err != nil {
		logger.Warn("admin client failed", zap.Error(err))
		return
	}
	defer admin.Close()

	if err := admin.Ensure(ctx, redpanda.Topics()); err != nil {
		logger.Warn("topic setup failed", zap.Error(err))
	}
}
