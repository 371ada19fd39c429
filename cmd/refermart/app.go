package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nkiryanov/refermart/internal/db"
	"github.com/nkiryanov/refermart/internal/handlers"
	"github.com/nkiryanov/refermart/internal/logger"
	"github.com/nkiryanov/refermart/internal/repository/postgres"
	"github.com/nkiryanov/refermart/internal/service/account"
	"github.com/nkiryanov/refermart/internal/service/auth"
	"github.com/nkiryanov/refermart/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/refermart/internal/service/dashboard"
	"github.com/nkiryanov/refermart/internal/service/purchase"
	"github.com/nkiryanov/refermart/internal/service/referral"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	logger, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	// Initialize services
	tokenManager, err := tokenmanager.New(tokenmanager.Config{SecretKey: c.SecretKey}, storage.Refresh())
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}
	authService, err := auth.NewService(auth.Config{}, tokenManager, storage.Account())
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}
	accountService := account.NewService(nil, storage.Account())
	referralService, err := referral.NewService(referral.Config{RewardCredits: c.RewardCredits}, storage, accountService, logger)
	if err != nil {
		return nil, fmt.Errorf("error while creating referral service. Err: %w", err)
	}
	purchaseService, err := purchase.NewService(storage.Purchase(), storage.Referral(), referralService, logger)
	if err != nil {
		return nil, fmt.Errorf("error while creating purchase service. Err: %w", err)
	}
	dashboardService := dashboard.NewService(storage, c.BaseURL)

	mux := handlers.NewRouter(
		authService,
		accountService,
		referralService,
		purchaseService,
		dashboardService,
		logger,
	)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
	}, nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); err == context.DeadlineExceeded {
			// Consider to user logger dependency
			slog.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		// Consider to user logger dependency
		slog.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	slog.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	return err
}
