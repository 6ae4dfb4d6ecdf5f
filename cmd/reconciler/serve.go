package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-reconciler/internal/service"
	"github.com/noah-isme/sma-adp-reconciler/pkg/config"
	"github.com/noah-isme/sma-adp-reconciler/pkg/jobs"
)

var serveNoScheduler bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler and the trigger API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if a.cfg.Env == config.EnvProduction {
			gin.SetMode(gin.ReleaseMode)
		}

		queue := a.newQueue()
		scheduler := service.NewScheduler(queue, a.logger.Named("scheduler"), a.scheduledJobs()...)
		schedule := a.cfg.Reconcile.SchedulerStart && !serveNoScheduler
		stopWorkers, err := startWorkers(ctx, queue, scheduler, schedule, a.logger)
		if err != nil {
			return err
		}
		defer stopWorkers()
		if !schedule {
			a.logger.Info("scheduler disabled, runs only start from the trigger API")
		}

		router := newRouter(routerDeps{
			apiPrefix: a.cfg.APIPrefix,
			logger:    a.logger,
			metrics:   a.metrics,
			verifier:  service.NewTokenVerifier(a.cfg.JWT.Secret),
			reconcile: a.newReconcileService(scheduler),
			checks:    a.readinessChecks(),
		})
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", a.cfg.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			a.logger.Sugar().Infow("server starting", "addr", srv.Addr, "env", a.cfg.Env, "reconcilers", a.runner.Names())
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("server failed: %w", err)
			}
		case <-ctx.Done():
		}

		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("graceful shutdown failed", zap.Error(err))
		}
		return nil
	},
}

// startWorkers starts the queue and, when schedule is set, the scheduler. The
// queue outlives ctx so late ticks still land; the returned func halts the
// scheduler before stopping the queue.
func startWorkers(ctx context.Context, queue *jobs.Queue, scheduler *service.Scheduler, schedule bool, log *zap.Logger) (func(), error) {
	queue.Start(context.WithoutCancel(ctx))
	if !schedule {
		return queue.Stop, nil
	}
	if err := scheduler.Start(); err != nil {
		queue.Stop()
		return nil, err
	}
	return func() {
		select {
		case <-scheduler.Stop().Done():
		case <-time.After(5 * time.Second):
			log.Warn("scheduler did not stop in time")
		}
		queue.Stop()
	}, nil
}

func init() {
	serveCmd.Flags().BoolVar(&serveNoScheduler, "no-scheduler", false, "Only accept runs from the trigger API")
	rootCmd.AddCommand(serveCmd)
}
