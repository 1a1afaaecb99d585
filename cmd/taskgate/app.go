package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	"github.com/mtlprog/taskgate/internal/cache"
	"github.com/mtlprog/taskgate/internal/config"
	"github.com/mtlprog/taskgate/internal/database"
	"github.com/mtlprog/taskgate/internal/metrics"
	"github.com/mtlprog/taskgate/internal/notify"
	"github.com/mtlprog/taskgate/internal/repository"
	"github.com/mtlprog/taskgate/internal/service"
)

// app holds the services shared by every command.
type app struct {
	db        *database.DB
	redis     *redis.Client
	locker    *cache.Locker
	metrics   *metrics.Metrics
	policies  *service.PolicyService
	approvals *service.ApprovalService
	sweeper   *service.Sweeper
}

// newApp connects to PostgreSQL (and Redis when configured), runs migrations and wires the services.
func newApp(ctx context.Context, c *cli.Context) (*app, error) {
	workers := c.Int("sweep-workers")
	maxConns := max(c.Int("max-conns"), workers+2)

	db, err := database.New(ctx, c.String("database-url"), int32(maxConns))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := database.RunMigrations(ctx, db.Pool()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	a := &app{
		db:      db,
		metrics: metrics.New(),
	}

	var (
		policyCache service.PolicyCache
		emitter     notify.Emitter = notify.LogEmitter{}
	)

	if redisURL := c.String("redis-url"); redisURL != "" {
		client, err := cache.NewRedisClient(ctx, redisURL)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.redis = client
		a.locker = cache.NewLocker(client)
		policyCache = cache.NewPolicyCache(client, c.Duration("policy-cache-ttl"))

		streamCfg := notify.DefaultStreamConfig()
		streamCfg.Stream = c.String("notify-stream")
		stream := notify.NewBreakerEmitter(notify.NewStreamEmitter(client, streamCfg), notify.DefaultBreakerConfig())
		emitter = notify.Multi{notify.LogEmitter{}, stream}
	} else {
		policyCache = cache.NewLocalPolicyCache(cache.DefaultLocalPolicyCacheSize, config.DefaultLocalPolicyCacheTTL)
		slog.Info("redis not configured, running with a local policy cache and without sweep lease or stream notifications")
	}

	pool := db.Pool()
	taskRepo := repository.NewTaskRepository(pool)
	eventRepo := repository.NewTaskEventRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	projectRepo := repository.NewProjectRepository(pool)
	policyRepo := repository.NewPolicyRepository(pool)

	validator := service.NewValidator(userRepo, projectRepo)
	a.policies = service.NewPolicyService(policyRepo, projectRepo, validator, policyCache)
	a.approvals = service.NewApprovalService(pool, taskRepo, eventRepo, projectRepo, a.policies, validator, emitter, a.metrics)
	a.sweeper = service.NewSweeper(a.approvals, taskRepo, a.metrics, workers)

	return a, nil
}

// Close releases the Redis client and the database pool.
func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			slog.Warn("failed to close redis client", "error", err)
		}
	}
	a.db.Close()
}
