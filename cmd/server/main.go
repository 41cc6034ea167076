package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"chatapp/internal/config"
	"chatapp/internal/domain"
	"chatapp/internal/httpserver"
	"chatapp/internal/logger"
	"chatapp/internal/security"
	"chatapp/internal/service"
	"chatapp/internal/store/postgres"
	"chatapp/internal/store/sqlite"
	"chatapp/internal/ws"
)

// @title           Chat App API
// @version         1.0
// @description     REST and WebSocket backend for the chat application.
// @BasePath        /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 10 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// No connection can be live before the server starts.
	users := service.NewUserService(store.Users)
	if err := users.ResetStatuses(ctx); err != nil {
		return fmt.Errorf("reset statuses: %w", err)
	}

	// Security components
	tokenSvc := security.NewTokenService(cfg.JWT.Secret, cfg.JWT.ExpiresIn, cfg.JWT.Issuer)
	passwordHasher := security.NewPasswordHasher(0)

	authSvc := service.NewAuthService(store.Users, tokenSvc, passwordHasher)
	chatSvc := service.NewChatService(store)
	msgSvc := service.NewMessageService(store, zl)

	gateway := ws.NewGateway(ws.Deps{
		Auth:     authSvc,
		Chats:    chatSvc,
		Messages: msgSvc,
		Users:    users,
	}, ws.Options{
		AllowedOrigins: cfg.WebSocket.AllowedOrigins,
		SendBuffer:     cfg.WebSocket.SendBuffer,
		WriteWait:      cfg.WebSocket.WriteWait,
		PongWait:       cfg.WebSocket.PongWait,
		PingPeriod:     cfg.WebSocket.PingPeriod,
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
		AuthTimeout:    cfg.WebSocket.AuthTimeout,
	}, zl)

	// Build HTTP router
	router := httpserver.NewRouter(cfg, httpserver.Deps{
		Auth:     authSvc,
		Users:    users,
		Chats:    chatSvc,
		Messages: msgSvc,
		Notifier: gateway,
		Socket:   gateway.Handler(),
	}, zl)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zl.Info("starting server",
			zap.String("app", cfg.AppName),
			zap.String("addr", cfg.HTTPAddr()),
			zap.String("env", cfg.Env),
			zap.String("database", cfg.DB.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zl.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// Hijacked websocket connections are not tracked by Shutdown.
		err := srv.Shutdown(shutdownCtx)
		if gwErr := gateway.Close(shutdownCtx); gwErr != nil {
			zl.Warn("websocket connections did not drain", zap.Error(gwErr))
		}
		return err
	})

	return g.Wait()
}

func openStore(ctx context.Context, cfg *config.Config) (*sql.DB, *domain.Store, error) {
	switch cfg.DB.Driver {
	case "sqlite":
		db, err := sqlite.Open(ctx, cfg.DB.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		if err := sqlite.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		return db, sqlite.NewStore(db), nil
	default:
		db, err := postgres.Open(ctx, cfg.DB.DatabaseURL(), postgres.Options{
			MaxOpen: cfg.DB.MaxOpen,
			MaxIdle: cfg.DB.MaxIdle,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return db, postgres.NewStore(db), nil
	}
}
