package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/hms-scope/internal/models"
	"github.com/noah-isme/hms-scope/internal/repository"
	appErrors "github.com/noah-isme/hms-scope/pkg/errors"
	"github.com/noah-isme/hms-scope/pkg/ids"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type employeeScopeReader interface {
	FindCityAssignment(ctx context.Context, exec sqlx.QueryerContext, userID, cityID string, role models.ScopeRole) (*models.ScopeAssignment, error)
}

type workItemStore interface {
	ListMissingLocation(ctx context.Context, kind models.WorkItemKind, cityID string) (*repository.WorkItemCursor, error)
	SetLocation(ctx context.Context, exec sqlx.ExecerContext, kind models.WorkItemKind, id string, loc models.Location, updatedAt time.Time) error
}

type locationValidator interface {
	ValidateLocation(ctx context.Context, exec sqlx.QueryerContext, cityID string, loc models.Location) error
}

// BackfillRequest selects the work items a run repairs. An empty CityID
// covers every city.
type BackfillRequest struct {
	Kind   models.WorkItemKind
	CityID string
}

// BackfillOptions tunes a BackfillService.
type BackfillOptions struct {
	StrictHierarchy bool
	// RetainDecisions keeps every decision on the returned summary. Without
	// it only counts are kept and sinks carry the per-item detail.
	RetainDecisions bool
	Sinks           []DecisionSink
	Metrics         *MetricsService
	Logger          *zap.Logger
}

// BackfillService repairs work items whose zone or ward is missing by
// inferring the location from the submitter's employee scope.
type BackfillService struct {
	tx          txProvider
	assignments employeeScopeReader
	items       workItemStore
	hierarchy   locationValidator
	strict      bool
	retain      bool
	sinks       []DecisionSink
	metrics     *MetricsService
	logger      *zap.Logger
	now         func() time.Time

	mu     sync.RWMutex
	latest *models.BackfillSummary
}

// NewBackfillService constructs the engine. hierarchy may be nil when strict
// hierarchy checks are disabled.
func NewBackfillService(tx txProvider, assignments employeeScopeReader, items workItemStore, hierarchy locationValidator, opts BackfillOptions) *BackfillService {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BackfillService{
		tx:          tx,
		assignments: assignments,
		items:       items,
		hierarchy:   hierarchy,
		strict:      opts.StrictHierarchy && hierarchy != nil,
		retain:      opts.RetainDecisions,
		sinks:       opts.Sinks,
		metrics:     opts.Metrics,
		logger:      logger,
		now:         time.Now,
	}
}

// Run processes every work item missing a location, one at a time. Each item
// is decided independently: failures skip that item and the run continues.
// Once ctx is cancelled the remaining items are recorded as RUN_ABORTED
// without writes. Only a failure to read the work item list is returned as an
// error; the partial summary is returned alongside it.
func (s *BackfillService) Run(ctx context.Context, req BackfillRequest) (*models.BackfillSummary, error) {
	if !req.Kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown work item kind %q", req.Kind))
	}

	startedAt := s.now().UTC()
	summary := &models.BackfillSummary{
		RunID:     ids.NewRunID(startedAt),
		Kind:      req.Kind,
		CityID:    req.CityID,
		Strict:    s.strict,
		StartedAt: startedAt,
		Reasons:   map[string]int{},
	}
	logger := s.logger.With(zap.String("run_id", summary.RunID), zap.String("kind", string(req.Kind)), zap.String("city_id", req.CityID))
	logger.Info("backfill run started", zap.Bool("strict_hierarchy", s.strict))

	runErr := s.scan(ctx, req, summary, logger)

	summary.FinishedAt = s.now().UTC()
	s.metrics.ObserveRun(summary, runErr)
	s.setLatest(summary)

	fields := []zap.Field{
		zap.Int("scanned", summary.Scanned),
		zap.Int("updated", summary.Updated),
		zap.Int("skipped", summary.Skipped),
		zap.Any("reasons", summary.Reasons),
		zap.Bool("aborted", summary.Aborted),
		zap.Duration("duration", summary.FinishedAt.Sub(summary.StartedAt)),
	}
	if runErr != nil {
		logger.Error("backfill run failed", append(fields, zap.Error(runErr))...)
		return summary, runErr
	}
	logger.Info("backfill run completed", fields...)
	return summary, nil
}

// Latest returns the counts of the most recent run, or nil before the first.
// Decisions are never retained between runs.
func (s *BackfillService) Latest() *models.BackfillSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

func (s *BackfillService) setLatest(summary *models.BackfillSummary) {
	s.mu.Lock()
	s.latest = summary.WithoutDecisions()
	s.mu.Unlock()
}

func (s *BackfillService) scan(ctx context.Context, req BackfillRequest, summary *models.BackfillSummary, logger *zap.Logger) error {
	// The cursor outlives cancellation so aborted items can still be drained.
	scanCtx := context.WithoutCancel(ctx)

	start := time.Now()
	cursor, err := s.items.ListMissingLocation(scanCtx, req.Kind, req.CityID)
	s.metrics.ObserveDBQuery("list_missing_location", time.Since(start))
	if err != nil {
		return appErrors.WrapAs(err, appErrors.ErrScanFailed)
	}
	defer func() {
		if cerr := cursor.Close(); cerr != nil {
			logger.Warn("failed to close work item cursor", zap.Error(cerr))
		}
	}()

	for cursor.Next() {
		item := cursor.Item()
		var decision models.BackfillDecision
		if ctx.Err() != nil {
			summary.Aborted = true
			decision = s.skip(s.newDecision(summary.RunID, req.Kind, item), appErrors.Clone(appErrors.ErrRunAborted, "run cancelled before item was processed"))
		} else {
			decision = s.process(ctx, summary.RunID, req.Kind, item)
			if decision.Reason == appErrors.ErrPersistenceFailure.Code && ctx.Err() != nil {
				// cancelled mid-item; the transaction was rolled back
				summary.Aborted = true
				decision.Reason = appErrors.ErrRunAborted.Code
			}
		}
		s.emit(ctx, decision, logger)
		if s.retain {
			summary.Record(decision)
		} else {
			summary.Tally(decision)
		}
	}
	if err := cursor.Err(); err != nil {
		return appErrors.WrapAs(err, appErrors.ErrScanFailed)
	}
	if ctx.Err() != nil {
		summary.Aborted = true
	}
	return nil
}

func (s *BackfillService) process(ctx context.Context, runID string, kind models.WorkItemKind, item models.FeederPoint) models.BackfillDecision {
	decision := s.newDecision(runID, kind, item)
	if item.RequestedByID == nil || *item.RequestedByID == "" {
		return s.skip(decision, appErrors.Clone(appErrors.ErrScopeNotFound, "work item has no submitter"))
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return s.skip(decision, appErrors.WrapAs(err, appErrors.ErrPersistenceFailure))
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	start := time.Now()
	assignment, err := s.assignments.FindCityAssignment(ctx, tx, *item.RequestedByID, item.CityID, models.ScopeRoleEmployee)
	s.metrics.ObserveDBQuery("find_city_assignment", time.Since(start))
	if err != nil {
		return s.skip(decision, appErrors.WrapAs(err, appErrors.ErrPersistenceFailure))
	}

	loc, err := InferLocationFromScope(assignment)
	if err != nil {
		return s.skip(decision, err)
	}

	if s.strict {
		if err := s.hierarchy.ValidateLocation(ctx, tx, item.CityID, loc); err != nil {
			if !errors.Is(err, appErrors.ErrInconsistentHierarchy) {
				err = appErrors.WrapAs(err, appErrors.ErrPersistenceFailure)
			}
			decision.ZoneID, decision.WardID = &loc.ZoneID, &loc.WardID
			return s.skip(decision, err)
		}
	}

	start = time.Now()
	err = s.items.SetLocation(ctx, tx, kind, item.ID, loc, s.now().UTC())
	s.metrics.ObserveDBQuery("set_location", time.Since(start))
	if err != nil {
		if !errors.Is(err, appErrors.ErrLocationAlreadySet) {
			err = appErrors.WrapAs(err, appErrors.ErrPersistenceFailure)
		}
		return s.skip(decision, err)
	}
	if err := tx.Commit(); err != nil {
		return s.skip(decision, appErrors.WrapAs(err, appErrors.ErrPersistenceFailure))
	}
	committed = true

	decision.Decision = models.DecisionUpdated
	decision.ZoneID, decision.WardID = &loc.ZoneID, &loc.WardID
	return decision
}

func (s *BackfillService) newDecision(runID string, kind models.WorkItemKind, item models.FeederPoint) models.BackfillDecision {
	return models.BackfillDecision{
		RunID:         runID,
		Kind:          kind,
		WorkItemID:    item.ID,
		CityID:        item.CityID,
		RequestedByID: item.RequestedByID,
		DecidedAt:     s.now().UTC(),
	}
}

func (s *BackfillService) skip(decision models.BackfillDecision, err error) models.BackfillDecision {
	appErr := appErrors.FromError(err)
	decision.Decision = models.DecisionSkipped
	decision.Reason = appErr.Code
	if appErr.Code == appErrors.ErrInternal.Code {
		decision.Reason = appErrors.ErrPersistenceFailure.Code
	}
	decision.Detail = appErr.Error()
	return decision
}

func (s *BackfillService) emit(ctx context.Context, decision models.BackfillDecision, logger *zap.Logger) {
	s.metrics.RecordDecision(decision)
	for _, sink := range s.sinks {
		if err := sink.Record(ctx, decision); err != nil {
			logger.Warn("failed to record backfill decision", zap.String("work_item_id", decision.WorkItemID), zap.Error(err))
		}
	}
}
