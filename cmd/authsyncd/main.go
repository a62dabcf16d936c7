package main

import (
	"context"
	"fmt"
	"log"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/proggaming/authsync"
	"github.com/proggaming/authsync/api"
	"github.com/proggaming/authsync/config"
	"github.com/proggaming/authsync/flow"
	"github.com/proggaming/authsync/idp"
	"github.com/proggaming/authsync/internal/logger"
	"github.com/proggaming/authsync/persistence"
	"github.com/proggaming/authsync/session"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	zlog := logger.Init(cfg.LogLevel)
	defer zlog.Sync()

	zlog.Info("starting authsync",
		zap.Int("port", cfg.Port),
		zap.String("db_type", cfg.DBType),
	)

	store, err := persistence.NewStorage(cfg.DBType, cfg.DSN, nil)
	if err != nil {
		zlog.Fatal("failed to initialize storage", zap.Error(err))
	}

	core, err := authsync.NewCore(store.DB(), zlog)
	if err != nil {
		zlog.Fatal("failed to initialize controller core", zap.Error(err))
	}
	core.Controller.SetOperationLimit(cfg.OperationLimit())
	core.Controller.SetVerificationReturnURL(cfg.VerifyReturnURL)

	var promptStore flow.PromptStore = flow.NewMemoryPromptStore()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		promptStore = flow.NewRedisPromptStore(rdb, "", cfg.PromptInterval())
	}
	prompt := flow.NewVerifyPrompt(promptStore, nil, cfg.PromptInterval())

	tokens := session.NewTokenIssuer(cfg.SessionSecret, 0)

	h := api.NewHandler(core.Controller, core.Client, core.Resolver, tokens, zlog)
	h.SetVerifyPrompt(prompt)

	if len(cfg.OIDCProviders) > 0 {
		providers, err := idp.NewOIDCProviders(context.Background(), cfg.OIDCProviders)
		if err != nil {
			zlog.Error("failed to initialize OIDC providers", zap.Error(err))
		} else {
			h.SetOIDCProviders(providers)
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	g := e.Group("/api/v1")
	h.RegisterRoutes(g)

	if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		zlog.Fatal("server failed to start", zap.Error(err))
	}
}
