package sim

import (
	"time"

	"github.com/qt2/oxwalk/internal/crowd"
	"github.com/qt2/oxwalk/logging"
)

// MetricTickOverruns counts ticks that took longer than the tick budget.
const MetricTickOverruns = "tick_overruns"

// LoopConfig tunes the real-time runner.
type LoopConfig struct {
	// TickRate is the number of engine steps per wall-clock second.
	TickRate int
	// CatchupMaxTicks bounds the delta reported after a stall.
	CatchupMaxTicks int
}

// LoopTickContext describes the tick about to run.
type LoopTickContext struct {
	Tick  uint64
	Now   time.Time
	Delta float64
}

// LoopStepResult is handed to AfterStep once the engine has stepped.
type LoopStepResult struct {
	Tick         uint64
	Now          time.Time
	Delta        float64
	Duration     time.Duration
	Budget       time.Duration
	ClampedDelta bool
	MaxDelta     float64
	Snapshot     crowd.Snapshot
}

// LoopHooks are optional callbacks.
type LoopHooks struct {
	Prepare   func(LoopTickContext)
	AfterStep func(LoopStepResult)
	// OnOverrun fires when a step exceeds its budget. streak counts
	// consecutive overruns.
	OnOverrun func(result LoopStepResult, streak uint64)
}

// Loop steps an Engine on a ticker.
type Loop struct {
	engine Engine
	hooks  LoopHooks
	config LoopConfig
	deps   Deps

	overrunStreak uint64
}

// NewLoop wraps engine. It returns nil for a nil engine.
func NewLoop(engine Engine, cfg LoopConfig, deps Deps, hooks LoopHooks) *Loop {
	if engine == nil {
		return nil
	}
	if cfg.TickRate <= 0 {
		cfg.TickRate = 10
	}
	if deps.Clock == nil {
		deps.Clock = logging.SystemClock{}
	}
	return &Loop{engine: engine, hooks: hooks, config: cfg, deps: deps}
}

// TickRateFor converts a simulated time step into the matching real-time
// tick rate.
func TickRateFor(timeStep float64) int {
	if timeStep <= 0 {
		return 10
	}
	rate := int(1/timeStep + 0.5)
	if rate < 1 {
		rate = 1
	}
	return rate
}

// Advance executes a single engine step.
func (l *Loop) Advance(ctx LoopTickContext) LoopStepResult {
	if l == nil {
		return LoopStepResult{}
	}
	if l.hooks.Prepare != nil {
		l.hooks.Prepare(ctx)
	}
	l.engine.Step()
	return LoopStepResult{
		Tick:     l.engine.Tick(),
		Now:      ctx.Now,
		Delta:    ctx.Delta,
		Snapshot: l.engine.Snapshot(),
	}
}

// Run drives the fixed-timestep loop until stop closes or the engine
// reports Done.
func (l *Loop) Run(stop <-chan struct{}) {
	if l == nil {
		return
	}
	tickRate := l.config.TickRate
	budgetDuration := time.Second / time.Duration(tickRate)
	ticker := time.NewTicker(budgetDuration)
	defer ticker.Stop()

	clock := l.deps.Clock
	last := clock.Now()
	budgetSeconds := budgetDuration.Seconds()
	maxDt := budgetSeconds
	if l.config.CatchupMaxTicks > 1 {
		maxDt = budgetSeconds * float64(l.config.CatchupMaxTicks)
	}

	for !l.engine.Done() {
		select {
		case <-stop:
			return
		case <-ticker.C:
			now := clock.Now()
			dt := now.Sub(last).Seconds()
			clamped := false
			if dt <= 0 {
				dt = budgetSeconds
			} else if dt > maxDt {
				dt = maxDt
				clamped = true
			}
			last = now

			start := clock.Now()
			result := l.Advance(LoopTickContext{Tick: l.engine.Tick(), Now: now, Delta: dt})
			result.Duration = clock.Now().Sub(start)
			result.Budget = budgetDuration
			result.ClampedDelta = clamped
			result.MaxDelta = maxDt

			l.checkBudget(result)
			if l.hooks.AfterStep != nil {
				l.hooks.AfterStep(result)
			}
		}
	}
}

func (l *Loop) checkBudget(result LoopStepResult) {
	if result.Budget <= 0 || result.Duration <= result.Budget {
		l.overrunStreak = 0
		return
	}
	l.overrunStreak++
	if l.deps.Metrics != nil {
		l.deps.Metrics.Add(MetricTickOverruns, 1)
	}
	if l.hooks.OnOverrun != nil {
		l.hooks.OnOverrun(result, l.overrunStreak)
	}
}
