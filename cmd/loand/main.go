package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ken860819/loan-ai-system/internal/config"
	"github.com/ken860819/loan-ai-system/internal/decision"
	"github.com/ken860819/loan-ai-system/internal/domain"
	"github.com/ken860819/loan-ai-system/internal/handler"
	"github.com/ken860819/loan-ai-system/internal/infra/cache"
	"github.com/ken860819/loan-ai-system/internal/infra/observability"
	"github.com/ken860819/loan-ai-system/internal/infra/sqlite"
	"github.com/ken860819/loan-ai-system/internal/scoring"
	"github.com/ken860819/loan-ai-system/internal/service"
)

const defaultConfigPath = "config/config.yaml"

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	configPath := os.Getenv("LOAN_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	// --- Logger ---
	logger := observability.NewLogger(cfg.Server.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Server.LogLevel),
		zap.String("database_path", cfg.Database.Path),
		zap.String("model_path", cfg.Model.Path),
		zap.Float64("reject_threshold", cfg.DecisionThresholds.Reject),
		zap.Float64("review_threshold", cfg.DecisionThresholds.Review),
		zap.Duration("session_ttl", cfg.SessionTTLDuration()),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.Server.OTLPEndpoint, "loan-decision-engine")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Store ---
	store, err := sqlite.New(cfg.Database.Path, logger)
	if err != nil {
		logger.Fatal("failed to open ledger store", zap.Error(err))
	}
	defer store.Close()

	// --- Scoring & decision engines ---
	// The rand source is shared by the feature engine and the fallback
	// predictor, so it must be the concurrency-safe one.
	rng := scoring.NewRand(time.Now().UnixNano())
	predictor, err := scoring.NewPredictor(cfg.Model, cfg.FeatureEngineering, rng, logger)
	if err != nil {
		logger.Fatal("failed to build predictor", zap.Error(err))
	}
	scorer := scoring.NewEngine(cfg.FeatureEngineering, predictor, rng, logger)

	decider, err := decision.NewEngine(cfg.DecisionThresholds, cfg.LimitRule)
	if err != nil {
		logger.Fatal("failed to build decision engine", zap.Error(err))
	}

	// --- Service ---
	pipeline := service.NewPipeline(store, scorer, decider, metrics, logger)

	// --- Sessions ---
	sessions := cache.New[*domain.Evaluation](cfg.SessionTTLDuration())
	defer sessions.Stop()

	// --- Router ---
	router := handler.NewRouter(pipeline, sessions, store, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}
