package main

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/hms-scope/internal/models"
	"github.com/noah-isme/hms-scope/internal/repository"
	"github.com/noah-isme/hms-scope/internal/service"
	"github.com/noah-isme/hms-scope/pkg/cache"
	"github.com/noah-isme/hms-scope/pkg/config"
	"github.com/noah-isme/hms-scope/pkg/database"
	"github.com/noah-isme/hms-scope/pkg/logger"
	"github.com/noah-isme/hms-scope/pkg/storage"
)

// app holds the wired services for one command invocation.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	db        *sqlx.DB
	cache     *repository.CacheRepository
	metrics   *service.MetricsService
	hierarchy *service.HierarchyService
	backfill  *service.BackfillService
	qc        *service.QCScopeService
	reports   *service.ReportService
}

func newApp(ctx context.Context, cfg *config.Config, logr *zap.Logger, extraSinks ...service.DecisionSink) (*app, error) {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		// the hierarchy cache is optional; run uncached
		logr.Warn("redis unavailable, hierarchy cache disabled", zap.Error(err))
		redisClient = nil
	}

	metrics := service.NewMetricsService()
	cacheRepo := repository.NewCacheRepository(redisClient, "hms-scope")
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Redis.HierarchyTTL, logr, cfg.Redis.Enabled && redisClient != nil)

	assignments := repository.NewScopeAssignmentRepository(db)
	items := repository.NewFeederPointRepository(db)
	decisions := repository.NewDecisionRepository(db)
	hierarchy := service.NewHierarchyService(repository.NewHierarchyRepository(db), cacheSvc, metrics, cfg.Redis.HierarchyTTL, logr)

	sinks := []service.DecisionSink{service.NewLogSink(logger.Audit(logr))}
	if cfg.Backfill.PersistAudit {
		sinks = append(sinks, service.NewStoreSink(decisions))
	}
	sinks = append(sinks, extraSinks...)

	backfill := service.NewBackfillService(db, assignments, items, hierarchy, service.BackfillOptions{
		StrictHierarchy: cfg.Backfill.StrictHierarchy,
		RetainDecisions: cfg.Backfill.RetainDecisions,
		Sinks:           sinks,
		Metrics:         metrics,
		Logger:          logr,
	})
	qc := service.NewQCScopeService(assignments, repository.NewModuleRepository(db), items, logr)

	var reports *service.ReportService
	if store, err := storage.NewLocalStorage(cfg.Reports.StorageDir); err != nil {
		logr.Warn("report storage unavailable", zap.Error(err))
	} else {
		reports = service.NewReportService(store, decisions, cfg.Reports.Retention, logr, nil, nil)
	}

	return &app{
		cfg:       cfg,
		logger:    logr,
		db:        db,
		cache:     cacheRepo,
		metrics:   metrics,
		hierarchy: hierarchy,
		backfill:  backfill,
		qc:        qc,
		reports:   reports,
	}, nil
}

func (a *app) request() service.BackfillRequest {
	return service.BackfillRequest{Kind: models.WorkItemKind(a.cfg.Backfill.Kind), CityID: a.cfg.Backfill.CityID}
}

func (a *app) Close() {
	if err := a.cache.Close(); err != nil {
		a.logger.Warn("failed to close redis", zap.Error(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close database", zap.Error(err))
	}
	_ = a.logger.Sync()
}
