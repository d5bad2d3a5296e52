package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"course-tracker-backend/internal/api"
	"course-tracker-backend/internal/scheduler"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the scheduled check cycles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	var sched *scheduler.Scheduler
	if a.cfg.Schedule.Enabled {
		sched, err = scheduler.New(&a.cfg.Schedule, a.runner, a.log)
		if err != nil {
			return err
		}
		sched.Start(ctx)
	}

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(&a.cfg.Server, a.store, a.runner, a.webpush, a.registry, a.log)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		a.log.Info("HTTP server starting", zap.Int("port", a.cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		a.log.Info("shutdown signal received, stopping services")
	case err := <-serverErr:
		a.log.Error("HTTP server failed", zap.Error(err))
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		a.log.Error("HTTP server shutdown failed", zap.Error(err))
	}

	if sched != nil {
		select {
		case <-sched.Stop().Done():
		case <-shutdownCtx.Done():
			a.log.Warn("check cycle still running at shutdown, cancelling it")
			cancel()
		}
	}

	a.log.Info("server gracefully stopped")
	return nil
}
