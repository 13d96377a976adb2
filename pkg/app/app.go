// Package app assembles the service from configuration for every entry point.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/wadjakorntonsri/shortlink/pkg/adapters/handler"
	"github.com/wadjakorntonsri/shortlink/pkg/adapters/quota"
	"github.com/wadjakorntonsri/shortlink/pkg/adapters/repository"
	"github.com/wadjakorntonsri/shortlink/pkg/auth"
	"github.com/wadjakorntonsri/shortlink/pkg/config"
	"github.com/wadjakorntonsri/shortlink/pkg/core/services"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
	"golang.org/x/crypto/bcrypt"
)

type App struct {
	Handler http.Handler
	Store   ports.Store
	redis   *redis.Client
}

// New opens the configured store and quota backend and builds the router.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	store, err := repository.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &App{Store: store}

	q, err := a.openQuota(ctx, cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	gen, err := services.NewRandomSlugs()
	if err != nil {
		a.Close()
		return nil, err
	}
	links := services.NewLinkService(store, services.NewSlugAllocator(store.SlugExists, gen), q, logger)
	accounts := services.NewAccountService(store, store, auth.NewPasswordHasher(bcrypt.DefaultCost), logger)
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)

	a.Handler = handler.NewRouter(cfg, links, accounts, tokens, logger)
	return a, nil
}

// openQuota shares counters through Redis when REDIS_URL is set and keeps them
// in memory otherwise. A non-positive limit disables the cap.
func (a *App) openQuota(ctx context.Context, cfg *config.Config) (ports.Quota, error) {
	if cfg.AnonLimit <= 0 {
		return nil, nil
	}
	if cfg.RedisURL == "" {
		return quota.NewMemoryQuota(cfg.AnonLimit, cfg.AnonWindow), nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	a.redis = client
	return quota.NewRedisQuota(client, cfg.AnonLimit, cfg.AnonWindow), nil
}

func (a *App) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	errs = append(errs, a.Store.Close())
	return errors.Join(errs...)
}
