package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nkiryanov/secureauth/internal/db"
	"github.com/nkiryanov/secureauth/internal/handlers"
	"github.com/nkiryanov/secureauth/internal/logger"
	"github.com/nkiryanov/secureauth/internal/repository"
	"github.com/nkiryanov/secureauth/internal/repository/memory"
	"github.com/nkiryanov/secureauth/internal/repository/postgres"
	"github.com/nkiryanov/secureauth/internal/service/auth"
	"github.com/nkiryanov/secureauth/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/secureauth/internal/service/session"
	"github.com/nkiryanov/secureauth/internal/service/user"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	sweeper *session.Sweeper
	logger  logger.Logger

	// Release storage resources
	close func()
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	logger, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Secret checked before connecting anything
	tokenManager, err := tokenmanager.New(tokenmanager.Config{
		SecretKey:  c.SecretKey,
		AccessTTL:  c.AccessTokenTTL,
		RefreshTTL: c.RefreshTokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}

	storage, closeStorage, err := openStorage(ctx, c.DatabaseDSN, c.Environment, logger)
	if err != nil {
		return nil, err
	}

	// Initialize services
	sessionService, err := session.NewService(storage.Session(), session.Config{TTL: c.SessionTTL}, logger)
	if err != nil {
		closeStorage()
		return nil, fmt.Errorf("error while creating session service. Err: %w", err)
	}
	userService := user.NewService(user.DefaultHasher, storage)
	authService, err := auth.NewService(auth.Config{}, tokenManager, sessionService, userService, logger)
	if err != nil {
		closeStorage()
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    handlers.NewRouter(authService, logger),
		sweeper:    session.NewSweeper(sessionService, c.SweepInterval, logger),
		logger:     logger,
		close:      closeStorage,
	}, nil
}

// Postgres storage if DSN set. Memory storage is allowed only in development
func openStorage(ctx context.Context, dsn string, env string, log logger.Logger) (repository.Storage, func(), error) {
	if dsn == "" {
		if env != logger.EnvDevelopment {
			return nil, nil, fmt.Errorf("database is required in %q environment, memory storage is for development only", env)
		}
		log.Warn("Database is not set, using in-memory storage")
		return memory.NewStorage(), func() {}, nil
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	return postgres.NewStorage(pool), pool.Close, nil
}

// Run starts http server and sessions sweeper and stops them gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	defer s.close()

	httpServer := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           s.Handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	sweeperStopped := s.sweeper.Run(srvCtx)

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	<-sweeperStopped

	return err
}
