package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/aoa-dev/aoa/internal/domain/learner"
	"github.com/aoa-dev/aoa/internal/domain/store"
	"github.com/aoa-dev/aoa/internal/domain/tagging"
	"github.com/aoa-dev/aoa/internal/domain/tracker"
	"github.com/aoa-dev/aoa/internal/infrastructure/config"
	"github.com/aoa-dev/aoa/internal/infrastructure/eventbus"
	"github.com/aoa-dev/aoa/internal/infrastructure/persistence"
	httpServer "github.com/aoa-dev/aoa/internal/interfaces/http"
	"github.com/aoa-dev/aoa/pkg/safego"
)

// App is the dependency-injection container and process lifecycle, adapted
// from the teacher's application.App: staged init, then Start/Stop.
type App struct {
	config *config.Config
	logger *zap.Logger

	bus        eventbus.Bus
	store      *store.Store
	library    *tagging.LibraryStore
	tracker    *tracker.Tracker
	learner    *learner.Learner
	service    *Service
	httpServer *httpServer.Server

	ctx    context.Context
	cancel context.CancelFunc
}

// New builds and wires every component. Bootstrap runs first so default
// config/pattern files exist on a clean checkout.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if err := config.Bootstrap(logger); err != nil {
		logger.Warn("bootstrap failed (non-fatal)", zap.Error(err))
	}

	a := &App{config: cfg, logger: logger}

	if err := a.initInfrastructure(); err != nil {
		return nil, fmt.Errorf("failed to init infrastructure: %w", err)
	}
	if err := a.initDomain(); err != nil {
		return nil, fmt.Errorf("failed to init domain components: %w", err)
	}
	a.initService()
	a.initInterfaces()

	return a, nil
}

func (a *App) initInfrastructure() error {
	a.logger.Info("initializing infrastructure")

	if a.config.EventBus.WALEnabled {
		bus, err := eventbus.NewPersistentBus(eventbus.PersistentBusConfig{
			WALDir:     a.config.EventBus.WALDir,
			BufferSize: 256,
		}, a.logger)
		if err != nil {
			a.logger.Warn("WAL event bus init failed, falling back to in-memory", zap.Error(err))
			a.bus = eventbus.NewInMemoryBus(a.logger, 256)
			return nil
		}
		a.bus = bus
		return nil
	}

	a.bus = eventbus.NewInMemoryBus(a.logger, 256)
	return nil
}

func (a *App) initDomain() error {
	a.logger.Info("initializing domain components")

	home := config.HomeDir()
	projectDir, _ := os.Getwd()

	storePath := a.config.Storage.Path
	if storePath == "" {
		storePath = filepath.Join(home, "intent_log.json")
	}
	a.store = store.New(storePath, a.config.Storage.MaxRecords, a.bus, a.logger)

	libPath := a.config.Patterns.Path
	if libPath == "" {
		libPath = tagging.ResolvePath(projectDir, home)
	}
	a.library = tagging.NewLibraryStore(libPath, a.logger)
	if a.config.Patterns.HotReload {
		if err := a.library.Watch(); err != nil {
			a.logger.Warn("pattern library watch failed (non-fatal)", zap.Error(err))
		}
	}

	db, err := persistence.NewDBConnection(&a.config.Database)
	if err != nil {
		a.logger.Warn("database connection failed, archiving disabled", zap.Error(err))
		db = nil
	}
	archiver := tracker.NewGormArchiver(db)
	a.tracker = tracker.New(a.config.Tracker.PredictionWindow, archiver, a.bus, a.logger)

	learnerPath := filepath.Join(home, "domain_state.json")
	a.learner = learner.New(learnerPath)

	return nil
}

func (a *App) initService() {
	a.service = NewService(a.store, a.library, a.tracker, a.learner, a.bus, a.logger)
}

func (a *App) initInterfaces() {
	a.httpServer = httpServer.NewServer(
		httpServer.Config{
			Host: a.config.Server.Host,
			Port: a.config.Server.Port,
			Mode: a.config.Server.Mode,
		},
		a.service,
		a.logger,
	)
}

// Start launches the HTTP server, the tracker's periodic sweeper, and
// returns immediately; background work runs via safego.Go.
func (a *App) Start(ctx context.Context) error {
	a.logger.Info("starting application")

	a.ctx, a.cancel = context.WithCancel(ctx)

	if err := a.httpServer.Start(a.ctx); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	a.tracker.StartSweeper(a.ctx, a.config.Tracker.SweepInterval)

	safego.Go(a.logger, "learner-tuning", func() {
		a.runTuningLoop(a.ctx, a.config.Learner.TuningInterval)
	})

	a.logger.Info("application started successfully")
	return nil
}

// runTuningLoop polls since_last_tune and fires the math-only tuning pass
// on its own, matching §4.6's "no external caller needed" — a manual
// POST /domains/tune/math still works for an operator who wants one early.
func (a *App) runTuningLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if a.service.DomainStats().TuningPending {
				result := a.service.RunMathTuning()
				a.logger.Info("math tuning pass completed",
					zap.Int("terms_pruned", result.TermsPruned),
					zap.Int("domains_deprecated", result.DomainsDeprecated),
				)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Stop drains the HTTP server and stops background goroutines.
func (a *App) Stop(ctx context.Context) error {
	a.logger.Info("stopping application")

	if a.cancel != nil {
		a.cancel()
	}

	if err := a.httpServer.Stop(ctx); err != nil {
		a.logger.Error("failed to stop HTTP server", zap.Error(err))
	}

	if err := a.library.Close(); err != nil {
		a.logger.Warn("failed to close pattern library watcher", zap.Error(err))
	}

	if a.bus != nil {
		a.bus.Close()
	}

	a.logger.Info("application stopped successfully")
	return nil
}

// Service exposes the orchestrating Service (used by the CLI).
func (a *App) Service() *Service {
	return a.service
}

// Logger exposes the application logger (used by the CLI).
func (a *App) Logger() *zap.Logger {
	return a.logger
}
