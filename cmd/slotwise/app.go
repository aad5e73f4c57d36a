package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tj/go-naturaldate"

	"github.com/christopherklint97/slotwise/internal/clock"
	"github.com/christopherklint97/slotwise/internal/config"
	"github.com/christopherklint97/slotwise/internal/metrics"
	"github.com/christopherklint97/slotwise/internal/pipeline"
	"github.com/christopherklint97/slotwise/internal/scheduler"
	"github.com/christopherklint97/slotwise/internal/smartguess"
	"github.com/christopherklint97/slotwise/internal/store"
)

// app holds the wired components shared by the subcommands.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *store.DB
	memory   *smartguess.Memory
	registry *prometheus.Registry
	metrics  *metrics.SlotMetrics
	events   *metrics.AsyncSink
	sink     *pipeline.PersistencySink
}

func openApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	path, err := cfg.DBPath()
	if err != nil {
		return nil, err
	}
	db, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	registry := prometheus.NewRegistry()
	slotMetrics, err := metrics.NewSlotMetrics(registry)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create slot metrics: %w", err)
	}

	sinks := metrics.Multi{metrics.NewLogSink(db, logger)}
	if cfg.Metrics.Enabled {
		sinks = append(sinks, slotMetrics)
	}
	events := metrics.NewAsyncSink(sinks, metrics.AsyncConfig{
		QueueSize: cfg.Metrics.QueueSize,
		OnDrop:    slotMetrics.RecordDropped,
	}, logger)

	clk := clock.System{}
	memory := smartguess.NewMemory(db, clk, cfg.SmartGuess.Policy(), logger)
	sink := pipeline.NewPersistencySink(db, db, memory, db, events, clk, logger)
	sink.UseProcessLock(db.WriterLock())

	return &app{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		memory:   memory,
		registry: registry,
		metrics:  slotMetrics,
		events:   events,
		sink:     sink,
	}, nil
}

// Close flushes queued analytics before closing the database they go to.
func (a *app) Close() {
	a.events.Close()
	a.db.Close()
}

func (a *app) scheduler() (*scheduler.Scheduler, error) {
	dir, err := a.cfg.InboxDir()
	if err != nil {
		return nil, err
	}
	return scheduler.New(dir, a.cfg.Inbox.Interval(), a.sink, a.memory, a.metrics, a.logger), nil
}

// serveMetrics exposes the registry until ctx is done.
func (a *app) serveMetrics(ctx context.Context) {
	if !a.cfg.Metrics.Enabled || a.cfg.Metrics.ListenAddr == "" {
		return
	}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{
		ErrorLog:      log.New(os.Stderr, "metrics handler: ", log.LstdFlags),
		ErrorHandling: promhttp.HTTPErrorOnError,
	}))
	srv := &http.Server{
		Addr:              a.cfg.Metrics.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("serving metrics", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
}

func newLogger(cfg config.LogConfig) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(cfg.Format) {
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	case "", "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}
}

// parseWhen reads an absolute or natural language time ("yesterday",
// "2 hours ago") relative to now. Empty means now.
func parseWhen(s string, now time.Time) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return now, nil
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04", s, now.Location()); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, now.Location()); err == nil {
		return t, nil
	}
	t, err := naturaldate.Parse(s, now, naturaldate.WithDirection(naturaldate.Past))
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing time %q: %w", s, err)
	}
	return t, nil
}
