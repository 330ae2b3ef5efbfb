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

	"supportchat/backend/internal/api/handler"
	"supportchat/backend/internal/auth"
	"supportchat/backend/internal/chathub"
	"supportchat/backend/internal/config"
	"supportchat/backend/internal/logger"
	"supportchat/backend/internal/moderation"
	"supportchat/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupDependencies(ctx context.Context, cfg *config.Config, log *zap.Logger) (*gorm.DB, *redis.Client, error) {
	db, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{})
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}

	log.Info("database and redis connections established")
	return db, rdb, nil
}

func newClassifier(cfg config.ClassifierConfig, log *zap.Logger) moderation.Classifier {
	if cfg.APIKey == "" {
		log.Warn("no classifier API key configured, all messages get neutral labels")
		return moderation.Unavailable{}
	}
	return moderation.NewLLMClassifier(cfg.BaseURL, cfg.APIKey, cfg.Model)
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()
	logger.SetGlobalLogger(log)
	mainLog := logger.Named("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mainLog.Info("starting support chat backend", zap.String("addr", cfg.HTTPAddr))

	db, rdb, err := setupDependencies(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()

	store := storage.NewStorageService(db, rdb, log)
	if err := store.Migrate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	guard := moderation.NewGuard(newClassifier(cfg.Classifier, log), cfg.Classifier.Timeout, log)
	hub := chathub.NewManagerService(store, guard, chathub.Options{
		EditWindow:      cfg.Session.EditWindow,
		ArchiveInterval: cfg.Session.ArchiveInterval,
		TypingTTL:       cfg.Session.TypingTTL,
		Mirror:          store,
		MirrorTTL:       cfg.Session.PresenceMirrorTTL,
		Logger:          log,
	})
	tokens := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)

	if cfg.LogMode == logger.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handler.NewHandler(hub, tokens, cfg.Session.SendBufferSize, log).Routes(r)

	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mainLog.Info("shutting down")
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
