// File: app/app.go
package app

import (
	"context"
	"database/sql"
	"errors"
	"go-ledger/config"
	"go-ledger/db"
	"go-ledger/handler"
	"go-ledger/logger"
	"go-ledger/repository"
	"go-ledger/router"
	"go-ledger/service"
	"net/http"
	"os"
	"os/signal"
	"syscall"
)

// TestApp exposes the wired router together with its database for
// end-to-end tests.
type TestApp struct {
	DB     *sql.DB
	Router http.Handler
	Ledger *service.LedgerService
}

func ledgerOptions(cfg config.LedgerConfig, cacheCfg config.RedisConfig) (service.LedgerOptions, error) {
	isolation, err := service.ParseIsolationLevel(cfg.Isolation)
	if err != nil {
		return service.LedgerOptions{}, err
	}
	return service.LedgerOptions{
		AllowNegativeInitialBalance: cfg.AllowNegativeInitialBalance,
		MaxAttempts:                 cfg.MaxAttempts,
		LockTimeout:                 cfg.LockTimeout,
		CacheTTL:                    cacheCfg.TTL,
		Isolation:                   isolation,
	}, nil
}

func build(database *sql.DB, cache service.ICacheClient, opts service.LedgerOptions) *TestApp {
	ledger := service.NewLedgerService(
		database,
		repository.NewAccountRepository(),
		repository.NewTransactionRepository(),
		cache,
		opts,
	)
	return &TestApp{
		DB:     database,
		Router: router.NewRouter(handler.NewLedgerHandler(ledger)),
		Ledger: ledger,
	}
}

// NewTestApp wires the ledger against an already migrated database using
// config.AppConfig for the ledger policy. cache may be nil.
func NewTestApp(database *sql.DB, cache service.ICacheClient) *TestApp {
	opts, err := ledgerOptions(config.AppConfig.Ledger, config.AppConfig.Redis)
	if err != nil {
		logger.Log.WithError(err).Warn("Invalid ledger config, using defaults")
		opts = service.LedgerOptions{AllowNegativeInitialBalance: true}
	}
	return build(database, cache, opts)
}

func Run() {
	logger.Init()
	if err := config.LoadConfig("."); err != nil {
		logger.Log.Fatalf("Error loading configuration: %v", err)
	}
	logger.SetLevel(config.AppConfig.Log.Level)
	logger.Log.Info("Configuration loaded successfully")

	opts, err := ledgerOptions(config.AppConfig.Ledger, config.AppConfig.Redis)
	if err != nil {
		logger.Log.Fatalf("Invalid ledger configuration: %v", err)
	}

	database, err := db.Connect(config.AppConfig.Database)
	if err != nil {
		logger.Log.Fatalf("Error connecting to the database: %v", err)
	}
	defer database.Close()

	startupCtx := context.Background()
	if err := db.Migrate(startupCtx, database); err != nil {
		logger.Log.Fatalf("Error migrating the database: %v", err)
	}

	var cache service.ICacheClient
	if config.AppConfig.Redis.Enabled {
		rdb, err := db.ConnectRedis(startupCtx, config.AppConfig.Redis)
		if err != nil {
			logger.Log.Fatalf("Error connecting to Redis: %v", err)
		}
		defer rdb.Close()
		cache = rdb
	} else {
		logger.Log.Info("Balance cache disabled")
	}

	a := build(database, cache, opts)

	port := config.AppConfig.Server.Port
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: a.Router,
	}

	go func() {
		logger.Log.Infof("Server starting on port :%s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Warn("Shutdown signal received. Starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), config.AppConfig.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Errorf("Server forced to shutdown: %v", err)
		return
	}

	logger.Log.Info("Server exited properly")
}
