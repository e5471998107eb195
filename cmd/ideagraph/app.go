package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/d60-Lab/ideagraph/config"
	"github.com/d60-Lab/ideagraph/internal/api/handler"
	"github.com/d60-Lab/ideagraph/internal/cacheperf"
	"github.com/d60-Lab/ideagraph/internal/metrics"
	"github.com/d60-Lab/ideagraph/internal/repository"
	"github.com/d60-Lab/ideagraph/internal/service"
	"github.com/d60-Lab/ideagraph/pkg/database"
	"github.com/d60-Lab/ideagraph/pkg/redisx"
)

// app holds the wired engine. Commands pick the parts they need.
type app struct {
	db       *gorm.DB
	rdb      *redis.Client
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	users    repository.UserRepository
	ideas    repository.IdeaRepository
	messages repository.MessageRepository
	outbox   repository.OutboxRepository

	rel        *service.RelationshipStore
	eng        *service.EngagementStore
	profiles   *cacheperf.ProfileCache
	replicator *service.Replicator
	reconciler *service.Reconciler
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	db, err := database.InitDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("init db: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	rdb, err := redisx.NewClient(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	a := &app{
		db:       db,
		rdb:      rdb,
		registry: reg,
		metrics:  m,
		users:    repository.NewUserRepository(db),
		ideas:    repository.NewIdeaRepository(db),
		messages: repository.NewMessageRepository(db),
		outbox:   repository.NewOutboxRepository(db),
	}
	a.rel = service.NewRelationshipStore(
		repository.NewFollowRepository(db),
		repository.NewFanRepository(db),
		repository.NewWishRepository(db),
	)
	a.eng = service.NewEngagementStore(repository.NewEngagementRepository(db), a.rel, cfg.Location())
	a.profiles = cacheperf.NewProfileCache(a.users, rdb, cfg.Redis.TTL)
	a.replicator = service.NewReplicator(a.rel, a.eng, a.outbox, m, cfg.Consistency.ReplicatorQueue)
	a.reconciler = service.NewReconciler(a.rel, a.eng, a.outbox, m, cfg.Consistency.ClaimLimit)
	return a, nil
}

func (a *app) toggles(cfg *config.Config, repairs service.RepairScheduler) *service.ToggleEngine {
	return service.NewToggleEngine(a.rel, a.eng, a.users, a.ideas, a.messages, repairs,
		service.WithMetrics(a.metrics),
		service.WithRetry(cfg.Consistency.MaxRetries, 0),
	)
}

func (a *app) handler(cfg *config.Config) *handler.Handler {
	return handler.NewHandler(
		service.NewRelationshipService(a.rel, a.users, a.profiles, a.profiles),
		a.toggles(cfg, a.replicator),
		service.NewAggregationEngine(a.rel, a.eng, a.ideas, a.messages, a.profiles, a.metrics),
		service.NewIdeaService(a.ideas, a.users, a.eng, a.profiles),
		service.NewChatService(a.messages, a.users),
	)
}

func (a *app) close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
