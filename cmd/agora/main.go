package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/agora-qa/agora/internal/answers"
	"github.com/agora-qa/agora/internal/app"
	"github.com/agora-qa/agora/internal/auth"
	"github.com/agora-qa/agora/internal/authz"
	"github.com/agora-qa/agora/internal/comments"
	"github.com/agora-qa/agora/internal/groups"
	"github.com/agora-qa/agora/internal/observability"
	"github.com/agora-qa/agora/internal/platform/cache"
	"github.com/agora-qa/agora/internal/platform/db"
	"github.com/agora-qa/agora/internal/questions"
	"github.com/agora-qa/agora/internal/rbac"
	"github.com/agora-qa/agora/internal/users"
	"github.com/agora-qa/agora/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	bindings := auth.NewRedisBindingStore(redisClient)
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTTTL, bindings)

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo, tokens, logger)
	authHandler := auth.NewHandler(logger, authService, cfg.IsProduction())
	authMW := auth.Middleware{
		Tokens:         tokens,
		Bindings:       bindings,
		TrustedOrigins: cfg.TrustedOrigins,
		Logger:         logger,
		Metrics:        metrics,
	}

	rbacRepo := rbac.NewRepository(pool)
	resolver := rbac.NewResolver(rbacRepo, logger)
	rbacHandler := rbac.NewHandler(logger, rbacRepo)

	guard := authz.NewGuard(authz.NewRepository(pool), resolver, logger)
	authzMW := authz.Middleware{Guard: guard, Logger: logger, Metrics: metrics}

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo)
	usersHandler := users.NewHandler(logger, usersService, authService, authMW, jobsClient, cfg.IsProduction())

	groupsService := groups.NewService(groups.NewRepository(pool), guard)
	groupsHandler := groups.NewHandler(logger, groupsService, guard, authMW, authzMW)

	questionsService := questions.NewService(questions.NewRepository(pool), guard)
	questionsHandler := questions.NewHandler(logger, questionsService, authMW, authzMW)

	answersService := answers.NewService(answers.NewRepository(pool), guard)
	answersHandler := answers.NewHandler(logger, answersService, authMW, authzMW)

	commentsService := comments.NewService(comments.NewRepository(pool), guard)
	commentsHandler := comments.NewHandler(logger, commentsService, authMW, authzMW)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		AuthHandler:      authHandler,
		UsersHandler:     usersHandler,
		GroupsHandler:    groupsHandler,
		QuestionsHandler: questionsHandler,
		AnswersHandler:   answersHandler,
		CommentsHandler:  commentsHandler,
		RBACHandler:      rbacHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("http server", slog.Any("error", err))
		os.Exit(1)
	}
}
