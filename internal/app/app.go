package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"taskscheduler-go/internal/config"
	"taskscheduler-go/internal/scheduler"
	"taskscheduler-go/internal/storage"
	"taskscheduler-go/internal/webhook"
)

const shutdownTimeout = 5 * time.Second

// Application holds all the major components of the service.
type Application struct {
	Config        *config.Config
	Log           *zap.SugaredLogger
	Storage       *storage.SQLiteStorage
	Service       *scheduler.TaskService
	Dispatcher    *scheduler.Dispatcher
	HTTPServer    *http.Server
	MetricsServer *http.Server
}

// New creates and wires an Application: database, migrations, service,
// dispatcher, and both HTTP listeners.
func New(cfg *config.Config, log *zap.SugaredLogger) (*Application, error) {
	store, err := storage.OpenDatabase(storage.Config{
		Path:            cfg.DatabasePath(),
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: time.Hour,
		BusyTimeout:     cfg.DB.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	wake := make(chan struct{}, cfg.Scheduler.WakeBuffer)
	executor := webhook.NewExecutor(cfg.Scheduler.WebhookTimeout)
	service := scheduler.NewTaskService(store, executor, wake, log)
	dispatcher := scheduler.NewDispatcher(store, service, wake, cfg.Scheduler.IdlePoll, log)

	app := &Application{
		Config:     cfg,
		Log:        log,
		Storage:    store,
		Service:    service,
		Dispatcher: dispatcher,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /tasks", app.handleCreateTask)
	mux.HandleFunc("GET /tasks", app.handleListTasks)
	mux.HandleFunc("DELETE /tasks/{id}", app.handleDeleteTask)
	mux.HandleFunc("GET /tasks/{id}/executions", app.handleListExecutions)
	mux.HandleFunc("GET /healthz", app.handleHealth)
	mux.HandleFunc("GET /stats", app.handleStats)

	app.HTTPServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ServerPort),
		Handler: app.requestID(app.accessLog(mux)),
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	app.MetricsServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler: metricsMux,
	}

	return app, nil
}

// Run starts every component and blocks until ctx is cancelled or a
// listener fails. The database is closed on the way out.
func (a *Application) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Dispatcher.Run(ctx)
		return nil
	})

	g.Go(func() error {
		a.Log.Infow("HTTP server listening", "addr", a.HTTPServer.Addr)
		if err := a.HTTPServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		a.Log.Infow("metrics server listening", "addr", a.MetricsServer.Addr)
		if err := a.MetricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	if a.Config.Backup.Dir != "" {
		g.Go(func() error {
			a.runBackupLoop(ctx)
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.HTTPServer.Shutdown(shutdownCtx); err != nil {
			a.Log.Errorw("HTTP server shutdown error", "error", err)
		}
		if err := a.MetricsServer.Shutdown(shutdownCtx); err != nil {
			a.Log.Errorw("metrics server shutdown error", "error", err)
		}
		return nil
	})

	err := g.Wait()

	if cerr := a.Storage.Close(); cerr != nil {
		a.Log.Errorw("error closing database", "error", cerr)
	}
	return err
}

// runBackupLoop writes a timestamped snapshot on every interval tick.
func (a *Application) runBackupLoop(ctx context.Context) {
	a.Log.Infow("backup loop started",
		"dir", a.Config.Backup.Dir, "interval", a.Config.Backup.Interval)

	ticker := time.NewTicker(a.Config.Backup.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.Log.Infow("backup loop stopped")
			return
		case <-ticker.C:
			path := filepath.Join(a.Config.Backup.Dir,
				fmt.Sprintf("scheduler-%s.db", time.Now().UTC().Format("20060102T150405")))
			if err := a.Storage.Backup(ctx, path); err != nil {
				a.Log.Errorw("backup failed", "path", path, "error", err)
				continue
			}
			a.Log.Infow("backup written", "path", path)
		}
	}
}
