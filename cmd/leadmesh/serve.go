package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/purplemerit/leadmesh/internal/api"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server with scheduled consolidation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	router := api.NewRouter(
		a.db, a.short, a.profiles, a.episodes,
		a.svc, a.consolidator, a.orch, a.res, a.embedder,
		a.cfg.APIKey, a.logger,
	)

	// Scheduled consolidation
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(a.cfg.ConsolidateCron, func() {
		report, err := a.consolidator.Run(context.Background())
		if err != nil {
			a.logger.Error("scheduled consolidation failed", "error", err)
			return
		}
		a.logger.Info("scheduled consolidation complete",
			"scanned", report.Scanned,
			"promoted", report.Promoted,
			"failures", report.Failures,
		)
	}); err != nil {
		return fmt.Errorf("schedule consolidation: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	addr := fmt.Sprintf(":%d", a.cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-done:
	}
	a.logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		a.logger.Error("shutdown error", "error", err)
	}

	a.logger.Info("server stopped")
	return nil
}
