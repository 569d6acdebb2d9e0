package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/FACorreiaa/statement-import/internal/domain/categorization"
	importservice "github.com/FACorreiaa/statement-import/internal/domain/import/service"
	"github.com/FACorreiaa/statement-import/internal/domain/transactions/repository"
	"github.com/FACorreiaa/statement-import/pkg/config"
	"github.com/FACorreiaa/statement-import/pkg/db"
	"github.com/FACorreiaa/statement-import/pkg/locale"
)

// Dependencies holds everything a command needs. The database is only
// opened by commands that write or read stored transactions.
type Dependencies struct {
	Config *config.Config
	Logger *slog.Logger

	Registry      *prometheus.Registry
	Metrics       *importservice.Metrics
	metricsServer *http.Server

	Pool *pgxpool.Pool
	Repo *repository.PostgresRepository

	Engine        *categorization.Engine
	ImportService *importservice.ImportService
}

// InitDependencies wires the import pipeline. withStore also connects to
// PostgreSQL and applies migrations.
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger, localeTag string, withStore bool) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
		Engine: categorization.NewEngine(categorization.DefaultTaxonomy()),
	}

	deps.initMetrics()

	if withStore {
		if err := deps.initDatabase(ctx); err != nil {
			deps.Close()
			return nil, fmt.Errorf("failed to init database: %w", err)
		}
	}

	if err := deps.initServices(localeTag); err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	logger.Debug("dependencies initialized", "store", withStore)
	return deps, nil
}

func (d *Dependencies) initMetrics() {
	d.Registry = prometheus.NewRegistry()
	d.Registry.MustRegister(collectors.NewGoCollector())
	d.Metrics = importservice.NewMetrics(d.Registry)

	if !d.Config.Observability.MetricsEnabled {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))
	d.metricsServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", d.Config.Observability.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := d.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.Logger.Warn("metrics server stopped", "error", err)
		}
	}()
	d.Logger.Info("metrics server started", "port", d.Config.Observability.MetricsPort)
}

func (d *Dependencies) initDatabase(ctx context.Context) error {
	pool, err := db.NewPool(ctx, d.Config.Database.DSN())
	if err != nil {
		return err
	}
	d.Pool = pool

	if err := db.Migrate(ctx, pool, d.Logger); err != nil {
		return err
	}

	d.Repo = repository.NewPostgresRepository(pool)
	return nil
}

func (d *Dependencies) initServices(localeTag string) error {
	var store importservice.TransactionStore
	if d.Repo != nil {
		store = newTransactionStoreAdapter(d.Repo)
	}

	svc := importservice.NewImportService(d.Engine, store, d.Logger).
		WithExcerptLength(d.Config.Import.ExcerptLength).
		WithMetrics(d.Metrics)

	auto := strings.EqualFold(localeTag, "auto")
	if localeTag == "" {
		localeTag = d.Config.Import.Locale
		auto = d.Config.Import.AutoLocale()
	}
	if auto {
		svc = svc.WithAutoLocale()
	} else {
		loc, err := locale.ByTag(localeTag)
		if err != nil {
			return err
		}
		if d.Config.Import.Currency != "" {
			loc.CurrencyCode = d.Config.Import.Currency
		}
		svc = svc.WithLocale(loc)
	}

	if r := d.Config.Import.CommitRate; r > 0 {
		svc = svc.WithRateLimit(rate.NewLimiter(rate.Limit(r), d.Config.Import.CommitBurst))
	}

	d.ImportService = svc
	return nil
}

// Close releases the pool and stops the metrics server.
func (d *Dependencies) Close() {
	if d.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = d.metricsServer.Shutdown(ctx)
	}
	if d.Pool != nil {
		d.Pool.Close()
	}
}

// newLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
