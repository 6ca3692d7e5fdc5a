package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/example/passport-photo/internal/cloudinary"
	"github.com/example/passport-photo/internal/config"
	"github.com/example/passport-photo/internal/logging"
	"github.com/example/passport-photo/internal/poller"
	"github.com/example/passport-photo/internal/transform"
	"github.com/example/passport-photo/internal/usecase"
)

const readyCacheSize = 1024

type pipeline struct {
	usecase *usecase.PassportUseCase
	deriver *transform.Deriver
	closers []func() error
}

func (p *pipeline) Close() {
	for _, c := range p.closers {
		_ = c()
	}
}

// buildPipeline constructs every provider-facing component from one validated config.
// A nil registry disables metrics.
func buildPipeline(ctx context.Context, cfg *config.Config, registry prometheus.Registerer, logger *zap.Logger) (*pipeline, error) {
	profile, err := cfg.ActiveProfile()
	if err != nil {
		return nil, err
	}

	client, err := cloudinary.NewClient(cloudinary.Config{
		CloudName: cfg.CloudName,
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
		Folder:    cfg.UploadFolder,
		Eager:     profile,
	}, logger)
	if err != nil {
		return nil, err
	}

	deriver, err := transform.NewDeriver(cfg.DeliveryBaseURL, cfg.CloudName, profile)
	if err != nil {
		return nil, logging.NewOperationError("wire.deriver", "", err)
	}

	probeClient := &http.Client{Timeout: 10 * time.Second}
	awaiter, err := poller.New(poller.NewHTTPProber(probeClient), poller.Options{
		Interval:    cfg.PollInterval,
		MaxAttempts: cfg.PollMaxAttempts,
		Deadline:    cfg.PollDeadline,
	}, logger)
	if err != nil {
		return nil, err
	}

	p := &pipeline{deriver: deriver}
	cache, err := initReadyCache(ctx, cfg, logger, p)
	if err != nil {
		return nil, err
	}

	var observer usecase.Observer = usecase.NopObserver{}
	if registry != nil {
		o, err := usecase.NewPrometheusObserver("passport", registry)
		if err != nil {
			return nil, err
		}
		observer = o
	}

	p.usecase = usecase.NewPassportUseCase(client, deriver, awaiter, cache, observer, logger).WithReadyTTL(cfg.ReadyCacheTTL)
	logger.Info("pipeline ready",
		zap.String("profile", profile.ID()),
		zap.String("transformation", profile.Transformation()),
		zap.String("folder", cfg.UploadFolder),
	)
	return p, nil
}

func initReadyCache(ctx context.Context, cfg *config.Config, logger *zap.Logger, p *pipeline) (usecase.Cache, error) {
	if cfg.RedisAddr == "" {
		return usecase.NewLRUCache(readyCacheSize)
	}

	redisCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(redisCtx).Err(); err != nil {
		_ = client.Close()
		wrapped := logging.NewOperationError("wire.redis_ping", "", err)
		logger.Error("redis connection failed", zap.Error(wrapped), zap.String("addr", cfg.RedisAddr))
		return nil, wrapped
	}
	p.closers = append(p.closers, client.Close)
	return usecase.NewRedisCache(client), nil
}
