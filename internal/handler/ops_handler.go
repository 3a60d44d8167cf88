package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hms-scope/internal/models"
	"github.com/noah-isme/hms-scope/internal/service"
	appErrors "github.com/noah-isme/hms-scope/pkg/errors"
	"github.com/noah-isme/hms-scope/pkg/jobs"
	"github.com/noah-isme/hms-scope/pkg/response"
)

type pinger interface {
	PingContext(ctx context.Context) error
}

type latestRunProvider interface {
	Latest() *models.BackfillSummary
}

type runTrigger interface {
	Trigger(reason string) error
}

type pendingReporter interface {
	PendingReport(ctx context.Context, kind models.WorkItemKind, cityID, moduleName string) (*models.PendingReport, error)
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// OpsConfig carries defaults for query parameters.
type OpsConfig struct {
	Kind       models.WorkItemKind
	ModuleName string
}

// OpsHandler exposes health, metrics and backfill run endpoints.
type OpsHandler struct {
	db      pinger
	metrics *service.MetricsService
	runs    latestRunProvider
	trigger runTrigger
	pending pendingReporter
	wards   cacheInvalidator
	cfg     OpsConfig
}

// NewOpsHandler constructs the handler. trigger, pending and wards may be nil.
func NewOpsHandler(db pinger, metrics *service.MetricsService, runs latestRunProvider, trigger runTrigger, pending pendingReporter, wards cacheInvalidator, cfg OpsConfig) *OpsHandler {
	if cfg.Kind == "" {
		cfg.Kind = models.WorkItemKindFeederPoint
	}
	if cfg.ModuleName == "" {
		cfg.ModuleName = "TASKFORCE"
	}
	return &OpsHandler{db: db, metrics: metrics, runs: runs, trigger: trigger, pending: pending, wards: wards, cfg: cfg}
}

// Register mounts the ops routes.
func (h *OpsHandler) Register(r gin.IRouter) {
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)
	r.GET("/metrics", h.Prometheus)
	r.GET("/runs/latest", h.LatestRun)
	r.POST("/runs", h.TriggerRun)
	r.GET("/pending", h.Pending)
	r.DELETE("/cache/hierarchy", h.InvalidateHierarchy)
}

// Health is the liveness probe.
func (h *OpsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready reports whether the database is reachable.
func (h *OpsHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.PingContext(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *OpsHandler) Prometheus(c *gin.Context) {
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// LatestRun returns the summary of the most recent backfill run without the
// per-item decisions.
func (h *OpsHandler) LatestRun(c *gin.Context) {
	latest := h.runs.Latest()
	if latest == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "no backfill run has completed yet"))
		return
	}
	response.JSON(c, http.StatusOK, latest.WithoutDecisions())
}

// TriggerRun queues an immediate backfill run.
func (h *OpsHandler) TriggerRun(c *gin.Context) {
	if h.trigger == nil {
		response.Error(c, appErrors.New("SCHEDULER_DISABLED", http.StatusServiceUnavailable, "scheduler is not running"))
		return
	}
	if err := h.trigger.Trigger("http"); err != nil {
		if errors.Is(err, jobs.ErrAlreadyQueued) {
			response.Error(c, appErrors.New("RUN_QUEUED", http.StatusConflict, "a backfill run is already queued"))
			return
		}
		response.Error(c, appErrors.Wrap(err, "SCHEDULER_DISABLED", http.StatusServiceUnavailable, "scheduler is not running"))
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{"queued": true})
}

// Pending returns the QC pending report for a city.
func (h *OpsHandler) Pending(c *gin.Context) {
	if h.pending == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "pending report is not enabled"))
		return
	}
	cityID := strings.TrimSpace(c.Query("city"))
	if cityID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "city query parameter is required"))
		return
	}
	kind := models.WorkItemKind(c.DefaultQuery("kind", string(h.cfg.Kind)))
	module := c.DefaultQuery("module", h.cfg.ModuleName)

	report, err := h.pending.PendingReport(c.Request.Context(), kind, cityID, module)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report)
}

// InvalidateHierarchy drops cached ward parents after the city hierarchy is edited.
func (h *OpsHandler) InvalidateHierarchy(c *gin.Context) {
	if h.wards == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "hierarchy cache is not enabled"))
		return
	}
	if err := h.wards.Invalidate(c.Request.Context()); err != nil {
		response.Error(c, appErrors.WrapAs(err, appErrors.ErrInternal))
		return
	}
	c.Status(http.StatusNoContent)
}
