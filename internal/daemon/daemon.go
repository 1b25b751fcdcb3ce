// Package daemon wires every subsystem package into one running
// hostadvisord process: it owns the stores, the tool catalog and mutation
// engines, the background scheduler, and the IPC server that exposes all
// of it to hostctl. Structurally this mirrors cmd/pulse-agent/main.go's
// Runnable/errgroup supervision, moved into an internal package (rather
// than main) so it can be exercised directly by tests the way the teacher
// keeps most of its wiring in internal/ and leaves main() thin.
package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/hostadvisord/hostadvisord/internal/advisor"
	"github.com/hostadvisord/hostadvisord/internal/alertengine"
	"github.com/hostadvisord/hostadvisord/internal/casefile"
	"github.com/hostadvisord/hostadvisord/internal/config"
	"github.com/hostadvisord/hostadvisord/internal/historian"
	"github.com/hostadvisord/hostadvisord/internal/ipc"
	"github.com/hostadvisord/hostadvisord/internal/mutation"
	"github.com/hostadvisord/hostadvisord/internal/mutation/fileedit"
	"github.com/hostadvisord/hostadvisord/internal/mutation/serviceaction"
	"github.com/hostadvisord/hostadvisord/internal/recipe"
	"github.com/hostadvisord/hostadvisord/internal/telemetry"
	"github.com/hostadvisord/hostadvisord/internal/tools"
)

var (
	daemonUp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hostadvisord_up",
		Help: "Whether the hostadvisord daemon is running (1 = up, 0 = down)",
	})
	casesRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hostadvisord_cases_recorded_total",
		Help: "Total number of case files written since daemon start.",
	})
	alertsSurfaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hostadvisord_alerts_surfaced_total",
		Help: "Total number of alerts surfaced to the operator since daemon start.",
	})
)

// Daemon bundles every long-lived subsystem. All fields are built once by
// New and never replaced, matching spec §5's "global state is modeled as
// explicit context objects, not hidden singletons" guidance.
type Daemon struct {
	cfg    config.Config
	layout config.Layout
	logger zerolog.Logger

	historianStore *historian.Store
	telemetryStore *telemetry.Store
	sampler        *telemetry.Sampler
	alertEngine    *alertengine.Engine
	caseRecorder   *casefile.Recorder
	recipeStore    *recipe.Store
	recipeWatcher  *recipe.Watcher
	advisorEngine  *advisor.Engine

	toolRegistry *tools.Registry
	toolExecutor *tools.Executor

	scopePolicy   mutation.ScopePolicy
	bundleStore   *mutation.BundleStore
	caseLocks     *mutation.CaseLocks
	fileEdit      *fileedit.Engine
	serviceAction *serviceaction.Engine

	server        *ipc.Server
	configWatcher *config.Watcher

	startedAt time.Time

	mu               sync.Mutex
	previouslyActive []string // fingerprints surfaced on the last scheduler tick
}

// New opens every store and wires every subsystem, but does not start the
// background scheduler or the IPC listener — call Run for that.
func New(cfg config.Config, logger zerolog.Logger) (*Daemon, error) {
	layout := config.ResolveLayout(cfg.DataDir)
	if err := config.EnsureLayout(layout); err != nil {
		return nil, fmt.Errorf("daemon: ensure data layout: %w", err)
	}

	historianStore, err := historian.Open(layout.ContextDB)
	if err != nil {
		return nil, fmt.Errorf("daemon: open historian store: %w", err)
	}
	if pref, ok, err := historianStore.GetPreference(preferenceKeyPrefix + "autonomy"); err == nil && ok {
		switch level := config.AutonomyLevel(pref.Value); level {
		case config.AutonomyReadOnly, config.AutonomySuggestOnly, config.AutonomyFull:
			cfg.Autonomy = level
		}
	}

	telemetryStore, err := telemetry.Open(layout.TelemetryDB)
	if err != nil {
		historianStore.Close()
		return nil, fmt.Errorf("daemon: open telemetry store: %w", err)
	}

	recipeStore, err := recipe.Open(layout.RecipesDir)
	if err != nil {
		telemetryStore.Close()
		historianStore.Close()
		return nil, fmt.Errorf("daemon: open recipe store: %w", err)
	}
	recipeWatcher, err := recipe.NewWatcher(recipeStore)
	if err != nil {
		logger.Warn().Err(err).Msg("recipe watcher unavailable, recipes will require a restart to pick up manual edits")
	}

	caseRecorder := casefile.NewRecorder(layout.CasesDir)
	bundleStore := mutation.NewBundleStore(layout.RollbackDir)

	registry := tools.NewRegistry()
	tools.RegisterDefaults(registry)

	home := homeDirOrEmpty()
	scopePolicy := mutation.ScopePolicy{Home: home}

	reloadSentinel := filepath.Join(cfg.DataDir, "config.reload")
	if f, err := os.OpenFile(reloadSentinel, os.O_CREATE|os.O_RDONLY, 0o644); err == nil {
		f.Close()
	}
	initialSettings := config.MutableSettings{
		Autonomy:      cfg.Autonomy,
		RetentionDays: cfg.RetentionDays,
		AlertCooldown: int64(cfg.AlertCooldown.Seconds()),
	}
	configWatcher, err := config.NewWatcher(reloadSentinel, initialSettings, func() (config.MutableSettings, error) {
		reloaded, err := config.Load()
		if err != nil {
			return config.MutableSettings{}, err
		}
		return config.MutableSettings{
			Autonomy:      reloaded.Autonomy,
			RetentionDays: reloaded.RetentionDays,
			AlertCooldown: int64(reloaded.AlertCooldown.Seconds()),
		}, nil
	})
	if err != nil {
		logger.Warn().Err(err).Msg("config watcher unavailable, hot-reload of autonomy/retention/cooldown is disabled")
	}

	d := &Daemon{
		cfg:            cfg,
		layout:         layout,
		logger:         logger,
		historianStore: historianStore,
		telemetryStore: telemetryStore,
		sampler:        telemetry.NewSampler(telemetryStore, cfg.TelemetryInterval, logger),
		alertEngine:    alertengine.NewEngine(historianStore, cfg.AlertCooldown),
		caseRecorder:   caseRecorder,
		recipeStore:    recipeStore,
		recipeWatcher:  recipeWatcher,
		advisorEngine:  advisor.NewEngine(),
		toolRegistry:   registry,
		toolExecutor:   tools.NewExecutor(registry),
		scopePolicy:    scopePolicy,
		bundleStore:    bundleStore,
		caseLocks:      &mutation.CaseLocks{},
		fileEdit:       fileedit.NewEngine(scopePolicy, bundleStore),
		serviceAction:  serviceaction.NewEngine(bundleStore),
		server:         ipc.NewServer(cfg.SocketPath, controlGID()),
		configWatcher:  configWatcher,
		startedAt:      time.Now(),
	}

	d.registerReadOnlyMethods()
	d.registerMutatingMethods()
	d.registerDiagnosticMethods()
	d.registerConfigMethods()
	d.registerDoctorMethods()
	d.registerStubMethods()
	d.registerAskMethod()

	return d, nil
}

// Run starts the background scheduler and the IPC listener, and blocks
// until ctx is cancelled or a subsystem fails irrecoverably (spec §5:
// cooperative scheduling of the socket, SQLite work, and sampler ticks
// under one errgroup).
func (d *Daemon) Run(ctx context.Context) error {
	daemonUp.Set(1)
	defer daemonUp.Set(0)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return d.sampler.Run(ctx)
	})
	g.Go(func() error {
		d.runAlertScheduler(ctx)
		return nil
	})
	g.Go(func() error {
		d.runRetentionLoop(ctx)
		return nil
	})
	if d.recipeWatcher != nil {
		g.Go(func() error {
			d.recipeWatcher.Run(ctx)
			return nil
		})
	}
	if d.configWatcher != nil {
		g.Go(func() error {
			d.configWatcher.Run(ctx)
			return nil
		})
	}
	g.Go(func() error {
		return d.server.ListenAndServe(ctx)
	})

	d.logger.Info().Str("socket", d.cfg.SocketPath).Str("data_dir", d.cfg.DataDir).Msg("hostadvisord started")

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// Close releases every store and watcher. Safe to call after Run returns.
func (d *Daemon) Close() error {
	if d.recipeWatcher != nil {
		_ = d.recipeWatcher.Close()
	}
	if d.configWatcher != nil {
		_ = d.configWatcher.Close()
	}
	_ = d.server.Close()
	if err := d.telemetryStore.Close(); err != nil {
		d.logger.Warn().Err(err).Msg("error closing telemetry store")
	}
	if err := d.historianStore.Close(); err != nil {
		d.logger.Warn().Err(err).Msg("error closing historian store")
	}
	return nil
}
