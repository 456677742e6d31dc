package scenario

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/qt2/oxwalk/internal/crowd"
	"github.com/qt2/oxwalk/internal/navfield"
	"github.com/qt2/oxwalk/internal/telemetry"
	"github.com/qt2/oxwalk/logging"
	simevents "github.com/qt2/oxwalk/logging/simulation"
)

// Metric keys reported by the driver.
const (
	MetricPedestriansSpawned = "pedestrians_spawned"
	MetricPedestriansArrived = "pedestrians_arrived"
	MetricPedestriansActive  = "pedestrians_active"
	MetricTicks              = "ticks"
)

// Deps carries the ambient collaborators of a Driver.
type Deps struct {
	Publisher logging.Publisher
	Metrics   telemetry.Metrics
	Logger    telemetry.Logger
}

// Stats summarises the driver's progress.
type Stats struct {
	Tick    uint64 `json:"tick"`
	Steps   int    `json:"steps"`
	Active  int    `json:"active"`
	Total   int    `json:"total"`
	Arrived int    `json:"arrived"`
}

// Driver owns a crowd.State and advances it one step at a time: spawn new
// pedestrians, tick the model, then publish lifecycle events. All methods are
// safe for concurrent use; Step serialises with Snapshot and Stats.
type Driver struct {
	cfg      Config
	deps     Deps
	speeds   *SpeedSampler
	spawners []*spawnSource
	field    *navfield.Field

	mu        sync.RWMutex
	state     *crowd.State
	tick      uint64
	spawnedAt []uint64
	arrived   int
}

// NewDriver validates cfg and builds the initial state. When navigation is
// enabled the eikonal field is solved up front and one field_solved event is
// published per destination.
func NewDriver(ctx context.Context, cfg Config, deps Deps) (*Driver, error) {
	cfg = cfg.normalized()
	state, err := cfg.BuildState()
	if err != nil {
		return nil, err
	}
	if deps.Publisher == nil {
		deps.Publisher = logging.NopPublisher()
	}
	if deps.Metrics == nil {
		deps.Metrics = telemetry.NopMetrics()
	}
	if deps.Logger == nil {
		deps.Logger = telemetry.Discard()
	}

	d := &Driver{
		cfg:    cfg,
		deps:   deps,
		state:  state,
		speeds: NewSpeedSampler(cfg.Speed, NewDeterministicSource(cfg.Seed, "speed")),
	}
	for i, spawner := range cfg.Spawners {
		d.spawners = append(d.spawners, newSpawnSource(spawner, cfg.Seed, i))
	}

	if cfg.Navigation.Enabled {
		if err := d.solveNavigation(ctx); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *Driver) solveNavigation(ctx context.Context) error {
	navCfg := navfield.Config{
		Min:       d.cfg.Bounds.Min.Vec(),
		Max:       d.cfg.Bounds.Max.Vec(),
		CellSize:  d.cfg.Navigation.CellSize,
		Clearance: d.cfg.Navigation.Clearance,
	}
	start := time.Now()
	field, err := navfield.ForState(navCfg, d.state)
	if err != nil {
		return fmt.Errorf("build navigation field: %w", err)
	}
	elapsed := time.Since(start).Milliseconds()
	for _, stats := range field.Stats() {
		simevents.FieldSolved(ctx, d.deps.Publisher, stats.Destination, simevents.FieldSolvedPayload{
			Rows:           stats.Rows,
			Cols:           stats.Cols,
			Sources:        stats.Sources,
			Blocked:        stats.Blocked,
			Reachable:      stats.Reachable,
			MaxTime:        stats.MaxTime,
			DurationMillis: elapsed,
		})
	}
	d.field = field
	d.state.Navigation = field
	return nil
}

// Config returns the normalised configuration in use.
func (d *Driver) Config() Config { return d.cfg }

// Field returns the navigation field, or nil when navigation is disabled.
func (d *Driver) Field() *navfield.Field { return d.field }

// Done reports whether the configured number of steps has run.
func (d *Driver) Done() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.tick >= uint64(d.cfg.Steps)
}

// Tick returns the number of completed steps.
func (d *Driver) Tick() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.tick
}

// Step advances the scenario by one step.
func (d *Driver) Step() {
	d.StepContext(context.Background())
}

// StepContext is Step with a context for the published events.
func (d *Driver) StepContext(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	step := d.tick
	pub := d.deps.Publisher

	for _, spawner := range d.spawners {
		for _, p := range spawner.emit(d.speeds) {
			index := d.state.AddPedestrian(p)
			d.spawnedAt = append(d.spawnedAt, step)
			d.deps.Metrics.Add(MetricPedestriansSpawned, 1)
			simevents.PedestrianSpawned(ctx, pub, step, index, p.DestinationID, simevents.PedestrianSpawnedPayload{
				X:            p.Position.X,
				Y:            p.Position.Y,
				DesiredSpeed: p.DesiredSpeed,
			})
		}
	}

	wasActive := make([]bool, len(d.state.Pedestrians))
	for i := range d.state.Pedestrians {
		wasActive[i] = d.state.Pedestrians[i].Active
	}

	d.state.Tick()

	for i, p := range d.state.Pedestrians {
		if !wasActive[i] || p.Active {
			continue
		}
		d.arrived++
		d.deps.Metrics.Add(MetricPedestriansArrived, 1)
		simevents.PedestrianArrived(ctx, pub, step, i, p.DestinationID, simevents.PedestrianArrivedPayload{
			X:           p.Position.X,
			Y:           p.Position.Y,
			TravelTicks: step - d.spawnedAt[i] + 1,
		})
	}

	active := d.state.ActiveCount()
	d.deps.Metrics.Store(MetricPedestriansActive, uint64(active))
	d.deps.Metrics.Add(MetricTicks, 1)

	if step%uint64(d.cfg.ProgressInterval) == 0 {
		total := len(d.state.Pedestrians)
		d.deps.Logger.Printf("step %d: %d pedestrians", step, total)
		simevents.Progress(ctx, pub, step, simevents.ProgressPayload{
			Step:    step,
			Active:  active,
			Total:   total,
			Arrived: d.arrived,
		})
	}

	d.tick++
}

// Snapshot copies the current state for concurrent readers.
func (d *Driver) Snapshot() crowd.Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state.Snapshot()
}

// Stats reports population counters.
func (d *Driver) Stats() Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Stats{
		Tick:    d.tick,
		Steps:   d.cfg.Steps,
		Active:  d.state.ActiveCount(),
		Total:   len(d.state.Pedestrians),
		Arrived: d.arrived,
	}
}

// StepHook observes the driver after every step. step is the index of the
// step that just ran.
type StepHook func(step uint64, snapshot crowd.Snapshot) error

// Run steps the driver as fast as possible until the configured number of
// steps has run, the context is cancelled or a hook fails.
func (d *Driver) Run(ctx context.Context, hook StepHook) error {
	for !d.Done() {
		if err := ctx.Err(); err != nil {
			return err
		}
		d.StepContext(ctx)
		if hook != nil {
			if err := hook(d.Tick()-1, d.Snapshot()); err != nil {
				return err
			}
		}
	}
	return nil
}
