package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/splitbook/splitbook/internal/accounts"
	"github.com/splitbook/splitbook/internal/app"
	"github.com/splitbook/splitbook/internal/auth"
	"github.com/splitbook/splitbook/internal/currency"
	"github.com/splitbook/splitbook/internal/debts"
	"github.com/splitbook/splitbook/internal/observability"
	"github.com/splitbook/splitbook/internal/platform/cache"
	"github.com/splitbook/splitbook/internal/platform/db"
	"github.com/splitbook/splitbook/internal/receipts"
	"github.com/splitbook/splitbook/internal/users"
	"github.com/splitbook/splitbook/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	if err := db.Migrate(ctx, cfg.PGDSN); err != nil {
		logger.Error("run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	mailClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := mailClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo, mailClient, auth.ServiceConfig{
		SessionTTL:         cfg.SessionTTL,
		SessionMaxLifetime: cfg.SessionMaxLifetime,
		ResetTTL:           cfg.ResetTokenTTL,
	})
	authMiddleware := &auth.Middleware{Logger: logger, Service: authService, Secure: cfg.IsProduction()}
	authHandler := auth.NewHandler(logger, authService, cfg.IsProduction())

	userRepo := users.NewRepository(pool)
	userService := users.NewService(userRepo)
	userHandler := users.NewHandler(logger, userService)

	accountRepo := accounts.NewRepository(pool)
	accountService := accounts.NewService(accountRepo, userRepo, mailClient)
	accountHandler := accounts.NewHandler(logger, accountService, authService)

	debtRepo := debts.NewRepository(pool)
	debtService := debts.NewService(debtRepo, userRepo, accountService)
	debtHandler := debts.NewHandler(logger, debtService)

	receiptRepo := receipts.NewRepository(pool)
	receiptService := receipts.NewService(receiptRepo, userRepo, debtService)
	receiptHandler := receipts.NewHandler(logger, receiptService)

	fxProvider := currency.NewHTTPProvider(cfg.FXAPIURL)
	fxService := currency.NewService(fxProvider, redisClient, cfg.FXCacheTTL)
	fxHandler := currency.NewHandler(logger, fxService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)
	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		AuthMiddleware:  authMiddleware,
		AuthHandler:     authHandler,
		AccountsHandler: accountHandler,
		UsersHandler:    userHandler,
		ReceiptsHandler: receiptHandler,
		DebtsHandler:    debtHandler,
		CurrencyHandler: fxHandler,
		JobHandler:      jobHandler,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
