package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"snag/internal/config"
	"snag/internal/events"
	"snag/internal/jobs"
	"snag/internal/logging"
	"snag/internal/orchestrator"
	"snag/internal/provision"
	"snag/internal/supervise"
)

// Daemon owns the long-lived collaborators behind the operation surface.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	bus      *events.Bus
	registry *jobs.Registry
	store    *jobs.Store
	prov     *provision.Provisioner
	sup      *supervise.Supervisor
	orch     *orchestrator.Orchestrator
	api      *apiServer

	mu        sync.Mutex
	running   bool
	startedAt time.Time
	cancel    context.CancelFunc
}

// New builds a daemon from validated configuration. Directories are created
// and the job history store is opened here; Start only brings up listeners.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires configuration")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	store, err := jobs.OpenStore(cfg.HistoryDBPath())
	if err != nil {
		return nil, fmt.Errorf("open job history: %w", err)
	}

	bus := events.NewBus()
	registry := jobs.NewRegistry()

	prov := provision.New(provision.Config{
		Dir:               cfg.Paths.BinariesDir,
		BundleIndexURL:    cfg.Provision.BinaryIndexURL,
		FetcherReleaseURL: cfg.Provision.FetcherReleaseURL,
		RequestTimeout:    time.Duration(cfg.Provision.RequestTimeout) * time.Second,
	},
		provision.WithLogger(logger),
		provision.WithStatusFunc(func(s provision.Status) {
			bus.Publish(events.Event{
				Type:    events.TypeToolStatus,
				Tool:    s.Tool,
				Status:  s.Phase,
				Percent: s.Percent,
				Detail:  s.Detail,
			})
		}),
	)

	sup := supervise.New(registry, logger)
	orch := orchestrator.New(cfg, prov, sup, store, bus, logger)

	d := &Daemon{
		cfg:      cfg,
		logger:   logging.WithComponent(logger, "daemon"),
		bus:      bus,
		registry: registry,
		store:    store,
		prov:     prov,
		sup:      sup,
		orch:     orch,
	}
	d.api = newAPIServer(cfg.Paths.APIBind, d, logger)
	return d, nil
}

// Start brings up the HTTP observer endpoint. Safe to call once.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return errors.New("daemon already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		return err
	}
	d.cancel = cancel
	d.running = true
	d.startedAt = time.Now()
	d.logger.Info("daemon started", logging.Int("pid", os.Getpid()))
	return nil
}

// Stop terminates live jobs, shuts down listeners, and closes the history
// store. Idempotent.
func (d *Daemon) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	cancel := d.cancel
	d.cancel = nil
	d.mu.Unlock()

	for _, id := range d.registry.IDs() {
		if d.sup.Stop(id) {
			d.logger.Info("stopped live job during shutdown", logging.String(logging.FieldJobID, id))
		}
	}
	if cancel != nil {
		cancel()
	}
	d.api.stop()
	if err := d.store.Close(); err != nil {
		d.logger.Warn("job history close failed", logging.Error(err))
	}
	d.logger.Info("daemon stopped")
}

// Orchestrator exposes the operation facade to the IPC layer.
func (d *Daemon) Orchestrator() *orchestrator.Orchestrator {
	return d.orch
}

// Bus exposes the event bus for observer transports.
func (d *Daemon) Bus() *events.Bus {
	return d.bus
}

// APIAddr reports the bound HTTP observer address, empty before Start.
func (d *Daemon) APIAddr() string {
	return d.api.addr()
}

// Status is a point-in-time snapshot for the CLI and HTTP status endpoint.
type Status struct {
	Running       bool                      `json:"running"`
	PID           int                       `json:"pid"`
	StartedAt     time.Time                 `json:"started_at"`
	LiveJobs      []string                  `json:"live_jobs"`
	JobCounts     map[jobs.State]int        `json:"job_counts"`
	HistoryDBPath string                    `json:"history_db_path"`
	APIBind       string                    `json:"api_bind"`
	Tools         []provision.ManagedBinary `json:"tools"`
}

// Status reports current daemon state. History counts are best-effort; a
// failing store turns them into an empty map rather than an error.
func (d *Daemon) Status(ctx context.Context) Status {
	d.mu.Lock()
	running := d.running
	startedAt := d.startedAt
	d.mu.Unlock()

	counts, err := d.store.CountByState(ctx)
	if err != nil {
		d.logger.Warn("job history counts unavailable", logging.Error(err))
		counts = map[jobs.State]int{}
	}
	return Status{
		Running:       running,
		PID:           os.Getpid(),
		StartedAt:     startedAt,
		LiveJobs:      d.registry.IDs(),
		JobCounts:     counts,
		HistoryDBPath: d.store.Path(),
		APIBind:       d.cfg.Paths.APIBind,
		Tools:         d.prov.Installed(),
	}
}

// ListJobs returns recent history records, newest first.
func (d *Daemon) ListJobs(ctx context.Context, limit int) ([]jobs.Record, error) {
	return d.store.List(ctx, limit)
}

// GetJob returns one history record by id.
func (d *Daemon) GetJob(ctx context.Context, id string) (jobs.Record, error) {
	return d.store.Get(ctx, id)
}
