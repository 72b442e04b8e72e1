// Package bootstrap wires all dependencies and starts the application.
// Configuration comes from a YAML file plus USAGELEDGER_* environment
// overrides, and the limits, pricing, and log level sections reload at
// runtime without a restart.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/artpar/usageledger/adapters/clock"
	"github.com/artpar/usageledger/adapters/hasher"
	"github.com/artpar/usageledger/adapters/idgen"
	"github.com/artpar/usageledger/adapters/metrics"
	"github.com/artpar/usageledger/adapters/sqlite"
	"github.com/artpar/usageledger/app"
	"github.com/artpar/usageledger/config"
	"github.com/artpar/usageledger/ports"
	"github.com/artpar/usageledger/web"
)

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Holder
	DB         *sqlite.DB
	HTTPServer *http.Server
	Metrics    *metrics.Collector

	// Services, exported for CLI subcommands that run without the
	// HTTP server.
	Keys       *app.KeyService
	Aggregator *app.AggregatorService
	Projects   ports.ProjectStore

	limiter *app.LimiterService
	ingest  *app.IngestService
	clock   ports.Clock

	rollupStop chan struct{}
	rollupDone chan struct{}
}

// New creates and initializes the application from the config file at
// path. An empty path uses defaults plus environment overrides.
func New(path string) (*App, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	logger.Info().Msg("initializing usageledger")

	holder, err := config.NewHolder(path, logger)
	if err != nil {
		return nil, fmt.Errorf("config holder: %w", err)
	}

	a := &App{
		Logger: logger,
		Config: holder,
	}

	if err := a.initDatabase(cfg); err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New()
		logger.Info().Msg("prometheus metrics enabled")
	}

	a.initServices(cfg)
	a.initHTTPServer(cfg)
	a.wireReload()

	return a, nil
}

func (a *App) initDatabase(cfg *config.Config) error {
	db, err := sqlite.Open(cfg.Database.DSN)
	if err != nil {
		return err
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		return fmt.Errorf("migrate: %w", err)
	}

	a.DB = db
	a.Logger.Info().Str("dsn", cfg.Database.DSN).Msg("database initialized")
	return nil
}

func (a *App) initServices(cfg *config.Config) {
	clk := clock.Real{}
	ids := idgen.UUID{}
	a.clock = clk
	a.Projects = sqlite.NewProjectStore(a.DB)

	perMinute, perDay, aiPerDay := cfg.ToLimits()
	a.limiter = app.NewLimiterService(app.LimiterDeps{
		Counters: sqlite.NewCounterStore(a.DB),
		Clock:    clk,
		Metrics:  a.Metrics,
	}, app.Limits{PerMinute: perMinute, PerDay: perDay, AIPerDay: aiPerDay})

	table, err := cfg.Table()
	if err != nil {
		// Load already validated the pricing section; this is unreachable
		// unless the config changed underneath us.
		a.Logger.Error().Err(err).Msg("invalid pricing table, using defaults")
	}
	events := sqlite.NewEventStore(a.DB)
	a.ingest = app.NewIngestService(app.IngestDeps{
		Events:  events,
		Clock:   clk,
		IDGen:   ids,
		Metrics: a.Metrics,
	}, table)

	a.Aggregator = app.NewAggregatorService(app.AggregatorDeps{
		Events:  events,
		Rollups: sqlite.NewRollupStore(a.DB),
		Clock:   clk,
		Metrics: a.Metrics,
	})

	a.Keys = app.NewKeyService(app.KeyDeps{
		Keys:     sqlite.NewKeyStore(a.DB),
		Projects: a.Projects,
		Hasher:   hasher.NewBcrypt(0),
		Clock:    clk,
		IDGen:    ids,
		Metrics:  a.Metrics,
	})
}

func (a *App) initHTTPServer(cfg *config.Config) {
	handler := web.NewHandler(web.Deps{
		Keys:       a.Keys,
		Limiter:    a.limiter,
		Ingest:     a.ingest,
		Analytics:  app.NewAnalyticsService(sqlite.NewRollupStore(a.DB)),
		Aggregator: a.Aggregator,
		Events:     sqlite.NewEventStore(a.DB),
		Clock:      a.clock,
		Logger:     a.Logger,
		Metrics:    a.Metrics,
	})

	router := handler.Router(web.RouterConfig{
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsPath:    cfg.Metrics.Path,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	a.HTTPServer = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	a.Logger.Info().Str("addr", addr).Msg("http server configured")
}

// wireReload propagates config changes into the running services.
// Server address and database DSN are not reloadable.
func (a *App) wireReload() {
	a.Config.OnChange(func(cfg *config.Config) {
		perMinute, perDay, aiPerDay := cfg.ToLimits()
		a.limiter.UpdateLimits(app.Limits{
			PerMinute: perMinute,
			PerDay:    perDay,
			AIPerDay:  aiPerDay,
		})

		if table, err := cfg.Table(); err != nil {
			a.Logger.Error().Err(err).Msg("reloaded pricing invalid, keeping previous table")
		} else {
			a.ingest.UpdateTable(table)
		}

		if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
			zerolog.SetGlobalLevel(level)
		}

		if a.Metrics != nil {
			a.Metrics.ConfigReloads.Inc()
			a.Metrics.ConfigLastReload.SetToCurrentTime()
		}
	})
}

// Run starts the HTTP server and blocks until shutdown.
func (a *App) Run() error {
	if err := a.Config.WatchFile(); err != nil {
		a.Logger.Warn().Err(err).Msg("config file watch unavailable, SIGHUP reload only")
	}
	a.Config.WatchSignals()

	a.startRollupScheduler()

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", a.HTTPServer.Addr).Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// startRollupScheduler recomputes today's rollups on an interval, and
// once at startup when configured. Each run also covers the previous
// day so events landing just before a midnight boundary are not missed.
func (a *App) startRollupScheduler() {
	cfg := a.Config.Get()
	if !cfg.Rollup.OnStart && cfg.Rollup.Interval <= 0 {
		return
	}

	a.rollupStop = make(chan struct{})
	a.rollupDone = make(chan struct{})

	go func() {
		defer close(a.rollupDone)

		if cfg.Rollup.OnStart {
			a.runRollup()
		}

		if cfg.Rollup.Interval <= 0 {
			return
		}
		ticker := time.NewTicker(cfg.Rollup.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				a.runRollup()
			case <-a.rollupStop:
				return
			}
		}
	}()
}

func (a *App) runRollup() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	now := a.clock.Now().UTC()
	for _, date := range []time.Time{now.AddDate(0, 0, -1), now} {
		result, err := a.Aggregator.Recompute(ctx, date)
		if err != nil {
			a.Logger.Error().Err(err).
				Str("date", date.Format("2006-01-02")).
				Msg("scheduled rollup failed")
			continue
		}
		a.Logger.Info().
			Str("date", result.Date.Format("2006-01-02")).
			Int("events", result.Events).
			Msg("rollup complete")
	}
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.rollupStop != nil {
		close(a.rollupStop)
		<-a.rollupDone
	}

	a.Config.Stop()

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
