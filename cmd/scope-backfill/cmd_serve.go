package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/hms-scope/internal/handler"
	"github.com/noah-isme/hms-scope/internal/middleware"
	"github.com/noah-isme/hms-scope/internal/models"
	"github.com/noah-isme/hms-scope/pkg/config"
	"github.com/noah-isme/hms-scope/pkg/jobs"
	"github.com/noah-isme/hms-scope/pkg/logger"
	reqidmiddleware "github.com/noah-isme/hms-scope/pkg/middleware/requestid"
)

// serveCmd runs the backfill on a schedule behind an ops server
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the backfill every BACKFILL_INTERVAL and expose ops endpoints",
	Long: `Starts the scheduler and an HTTP server on PORT with /health, /ready,
/metrics, /runs/latest, POST /runs, /pending and DELETE /cache/hierarchy.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logr, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	a, err := newApp(ctx, cfg, logr)
	if err != nil {
		return err
	}
	defer a.Close()

	scheduler := jobs.NewScheduler("scope-backfill", backfillJob(a), jobs.SchedulerConfig{
		Interval:   cfg.Backfill.Interval,
		RunOnStart: true,
		MaxRetries: 2,
		RetryDelay: time.Minute,
		Logger:     logr,
	})
	scheduler.Start(ctx)
	defer scheduler.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           newRouter(a, scheduler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// backfillJob runs one backfill pass and prunes expired reports. Only a scan
// failure is returned, so the scheduler retries just those.
func backfillJob(a *app) jobs.Handler {
	return func(ctx context.Context, job jobs.Job) error {
		a.logger.Info("scheduled backfill", zap.String("reason", job.Reason), zap.Int("attempt", job.Attempt))
		if _, err := a.backfill.Run(ctx, a.request()); err != nil {
			return err
		}
		if a.reports != nil {
			if _, err := a.reports.Cleanup(); err != nil {
				a.logger.Warn("report cleanup failed", zap.Error(err))
			}
		}
		return nil
	}
}

func newRouter(a *app, scheduler *jobs.Scheduler) *gin.Engine {
	if a.cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(a.logger))
	r.Use(middleware.Metrics(a.metrics))

	ops := handler.NewOpsHandler(a.db, a.metrics, a.backfill, scheduler, a.qc, a.hierarchy, handler.OpsConfig{
		Kind:       models.WorkItemKind(a.cfg.Backfill.Kind),
		ModuleName: a.cfg.Backfill.ModuleName,
	})
	ops.Register(r)
	return r
}
