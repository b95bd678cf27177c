package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/openstatushq/pulse/internal/checking/health"
	"github.com/openstatushq/pulse/internal/checking/metrics"
	"github.com/openstatushq/pulse/internal/checking/scheduler"
	"github.com/openstatushq/pulse/internal/core/config"
	"github.com/openstatushq/pulse/internal/core/worker"
	"github.com/openstatushq/pulse/internal/infra/notify"
	"github.com/openstatushq/pulse/internal/infra/probe"
	redisclient "github.com/openstatushq/pulse/internal/infra/redis"
	"github.com/openstatushq/pulse/internal/infra/retry"
	"github.com/openstatushq/pulse/internal/infra/storage"
	"github.com/openstatushq/pulse/internal/infra/storage/memory"
	"github.com/openstatushq/pulse/internal/infra/storage/postgres"
)

// statusTTL bounds how long a cached status outlives the last check.
const statusTTL = 24 * time.Hour

// Pulse is the main application struct that manages the checker lifecycle.
type Pulse struct {
	cfg          *config.AppConfig
	store        *storage.Store
	db           *postgres.DB
	redisClient  *redisclient.Client
	checker      *probe.Checker
	dispatcher   *notify.Dispatcher
	scheduler    *scheduler.Scheduler
	pruner       *worker.Pruner
	healthMon    *health.Monitor
	healthServer *health.Server
	log          *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewPulse creates a new Pulse instance with all dependencies initialized.
func NewPulse(ctx context.Context, cfg *config.AppConfig) (*Pulse, error) {
	observer := metrics.NewRetryObserver()
	p := &Pulse{cfg: cfg, log: slog.Default()}

	// 1. Storage
	storageExec := retry.New(cfg.Retry.Storage,
		retry.WithName("storage"),
		retry.WithClassifier(postgres.Classify),
		retry.WithObserver(observer),
	)

	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(ctx, cfg.Database, storageExec)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		p.db = db
		p.store = postgres.NewStore(db)
		slog.Info("Using PostgreSQL storage")
	} else {
		p.store = memory.NewMemoryStorage().Store()
		slog.Info("Using Memory storage")
	}

	for _, mc := range cfg.Monitors {
		if err := p.store.Monitors.Save(ctx, mc.ToDomain()); err != nil {
			p.closeStores()
			return nil, fmt.Errorf("failed to save monitor %s: %w", mc.ID, err)
		}
	}

	// 2. Redis (optional)
	if cfg.Redis.URL != "" {
		client, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("Failed to connect to Redis, status sharing disabled", "error", err)
		} else {
			p.redisClient = client
		}
	}

	// 3. Checker
	probeOpts := []retry.Option{retry.WithObserver(observer)}
	if cfg.Retry.CheckTimeout > 0 {
		probeOpts = append(probeOpts, retry.WithTimeout(cfg.Retry.CheckTimeout))
	}
	p.checker = probe.NewChecker(cfg.Retry.Probe, probeOpts...)

	// 4. Notifications
	notifyExec := retry.New(cfg.Retry.Notify,
		retry.WithName("notify"),
		retry.WithClassifier(retry.HTTPClassifier),
		retry.WithObserver(observer),
	)
	var dispatchOpts []notify.DispatcherOption
	if p.redisClient != nil {
		dispatchOpts = append(dispatchOpts, notify.WithDeduper(p.redisClient, 10*time.Minute))
	}
	p.dispatcher = notify.NewDispatcher(notifyExec, dispatchOpts...)

	client := notify.DefaultHTTPClient()
	for _, nc := range cfg.Notifiers {
		n, err := notify.New(nc, client)
		if err != nil {
			p.closeStores()
			return nil, err
		}
		p.dispatcher.Add(n, nc.RatePerMinute)
		slog.Info("Notifier registered", "name", n.Name(), "type", nc.Type)
	}

	// 5. Scheduler
	schedOpts := []scheduler.Option{scheduler.WithDispatcher(p.dispatcher)}
	if p.redisClient != nil {
		schedOpts = append(schedOpts, scheduler.WithStatusCache(
			redisclient.NewStatusCache(p.redisClient, statusTTL),
			retry.New(cfg.Retry.Storage,
				retry.WithName("status_cache"),
				retry.WithObserver(observer),
			),
		))
	}
	p.scheduler = scheduler.New(scheduler.Config{
		RefreshInterval: cfg.Scheduler.RefreshInterval,
		DefaultInterval: cfg.Scheduler.DefaultInterval,
	}, p.checker, p.store, schedOpts...)

	// 6. Retention
	if cfg.Retention > 0 {
		p.pruner = worker.NewPruner(cfg.Retention, p.store.Checks)
	}

	// 7. Health
	p.healthMon = health.NewMonitor(p.scheduler, p.checker)
	if p.db != nil {
		p.healthMon.AddComponent("database", p.db.Health)
	}
	if p.redisClient != nil {
		p.healthMon.AddComponent("redis", p.redisClient.Ping)
	}
	p.healthServer = health.NewServer(p.healthMon, p.scheduler, p.store.Checks, cfg.Server.Port)

	return p, nil
}

// Start starts the checker and all its components. It returns once they are
// running.
func (p *Pulse) Start(ctx context.Context) error {
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})

	// Start Health Server
	go func() {
		if err := p.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.log.Error("Health server failed", "error", err)
		}
	}()

	// Start DB Metrics Collector
	if p.db != nil {
		p.db.StartMetricsCollector(ctx)
	}

	// Start Pruner
	if p.pruner != nil {
		p.log.Info("Starting pruner", "retention", p.cfg.Retention, "interval", p.pruner.Interval())
		go p.pruner.Start(ctx)
	}

	// Start Scheduler
	go func() {
		defer close(p.done)
		if err := p.scheduler.Start(ctx); err != nil {
			p.log.Error("Scheduler failed", "error", err)
		}
	}()

	return nil
}

// Stop stops the checker and releases its resources.
func (p *Pulse) Stop(ctx context.Context) error {
	p.log.Info("Stopping Pulse...")

	if p.cancel != nil {
		p.cancel()
		select {
		case <-p.done:
		case <-ctx.Done():
			p.log.Warn("Timed out waiting for scheduler to stop")
		}
	}

	var errs []error
	if err := p.healthServer.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("health server: %w", err))
	}
	if err := p.checker.Close(); err != nil {
		errs = append(errs, fmt.Errorf("checker: %w", err))
	}
	p.closeStores()
	return errors.Join(errs...)
}

// Store exposes the repositories, for CLI commands sharing the wiring.
func (p *Pulse) Store() *storage.Store {
	return p.store
}

// Scheduler exposes the scheduler.
func (p *Pulse) Scheduler() *scheduler.Scheduler {
	return p.scheduler
}

func (p *Pulse) closeStores() {
	if p.redisClient != nil {
		if err := p.redisClient.Close(); err != nil {
			p.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			p.log.Warn("Failed to close database", "error", err)
		}
	}
}
