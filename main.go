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

	"github.com/xiaot623/gogo/container/internal/config"
	internalhttp "github.com/xiaot623/gogo/container/internal/http"
	"github.com/xiaot623/gogo/container/internal/hub"
	"github.com/xiaot623/gogo/container/internal/logging"
	"github.com/xiaot623/gogo/container/internal/metrics"
	"github.com/xiaot623/gogo/container/internal/policy"
	"github.com/xiaot623/gogo/container/internal/session"
	"github.com/xiaot623/gogo/container/internal/ws"
)

const purgeInterval = time.Minute

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting container service",
		zap.Int("http_port", cfg.HTTPPort),
		zap.Int("internal_port", cfg.InternalPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.String("agent_url", cfg.AgentURL),
		zap.String("database", cfg.DatabaseURL))

	ctx, cancelPages := context.WithCancel(context.Background())
	defer cancelPages()

	// Initialize state store
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize store", zap.Error(err))
	}
	defer store.Close()

	// Initialize forward policy
	var engine *policy.Engine
	if cfg.ForwardPolicyFile != "" {
		engine, err = policy.LoadEngine(ctx, cfg.ForwardPolicyFile)
	} else {
		engine, err = policy.NewEngine(ctx, policy.DefaultPolicy)
	}
	if err != nil {
		logger.Fatal("failed to initialize policy engine", zap.Error(err))
	}

	m := metrics.New()

	// Initialize hub
	connectionHub := hub.NewHub(logger)
	go connectionHub.Run(ctx)

	wsServer, err := ws.NewServer(ctx, cfg, connectionHub, ws.Deps{
		Store:   store,
		Policy:  engine,
		Metrics: m,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal("failed to initialize bridge server", zap.Error(err))
	}

	pageServer, err := internalhttp.NewPageServer(cfg, wsServer, logger)
	if err != nil {
		logger.Fatal("failed to initialize page server", zap.Error(err))
	}
	internalServer := internalhttp.NewServer(connectionHub, m, logger)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := pageServer.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start page server", zap.Error(err))
		}
	}()

	go func() {
		addr := fmt.Sprintf(":%d", cfg.InternalPort)
		if err := internalServer.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start internal server", zap.Error(err))
		}
	}()

	logger.Info("container service started")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down container service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := pageServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("failed to shutdown page server gracefully", zap.Error(err))
	}
	if err := internalServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("failed to shutdown internal server gracefully", zap.Error(err))
	}
	cancelPages()

	logger.Info("container service stopped")
}

// openStore returns the sqlite store when a database is configured and the
// in-memory store otherwise. Expired snapshots are purged in the background.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (session.Store, error) {
	var store session.Store
	if cfg.DatabaseURL == "" {
		store = session.NewMemoryStore()
	} else {
		db, err := session.NewSQLiteStore(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		store = db
	}
	if p, ok := store.(session.Purger); ok {
		go session.RunPurgeMonitor(ctx, p, cfg.StateMaxAge, purgeInterval, logger)
	}
	return store, nil
}
