package sim

import (
	"sync"
	"testing"
	"time"

	"github.com/qt2/oxwalk/internal/crowd"
	"github.com/qt2/oxwalk/logging"
)

type countingEngine struct {
	mu    sync.Mutex
	ticks uint64
	limit uint64
}

func (e *countingEngine) Step() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ticks++
}

func (e *countingEngine) Tick() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ticks
}

func (e *countingEngine) Done() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.limit > 0 && e.ticks >= e.limit
}

func (e *countingEngine) Snapshot() crowd.Snapshot {
	return crowd.Snapshot{Pedestrians: make([]crowd.Pedestrian, e.Tick())}
}

type steppingClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

func TestLoopAdvanceStepsEngine(t *testing.T) {
	engine := &countingEngine{}
	var prepared []uint64
	loop := NewLoop(engine, LoopConfig{}, Deps{}, LoopHooks{
		Prepare: func(ctx LoopTickContext) { prepared = append(prepared, ctx.Tick) },
	})

	first := loop.Advance(LoopTickContext{Tick: 0})
	second := loop.Advance(LoopTickContext{Tick: 1})

	if first.Tick != 1 || second.Tick != 2 {
		t.Fatalf("unexpected ticks: %d, %d", first.Tick, second.Tick)
	}
	if len(second.Snapshot.Pedestrians) != 2 {
		t.Fatalf("expected snapshot taken after the step")
	}
	if len(prepared) != 2 || prepared[1] != 1 {
		t.Fatalf("prepare hook not invoked per tick: %v", prepared)
	}
}

func TestLoopRunStopsWhenEngineIsDone(t *testing.T) {
	engine := &countingEngine{limit: 5}
	var results []LoopStepResult
	loop := NewLoop(engine, LoopConfig{TickRate: 1000}, Deps{}, LoopHooks{
		AfterStep: func(result LoopStepResult) { results = append(results, result) },
	})

	done := make(chan struct{})
	go func() {
		loop.Run(make(chan struct{}))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("loop did not stop after the engine finished")
	}

	if len(results) != 5 || results[4].Tick != 5 {
		t.Fatalf("unexpected results: %d steps", len(results))
	}
	if results[0].Budget != time.Millisecond {
		t.Fatalf("expected 1ms budget, got %s", results[0].Budget)
	}
}

func TestLoopRunStopsOnSignal(t *testing.T) {
	engine := &countingEngine{}
	loop := NewLoop(engine, LoopConfig{TickRate: 1000}, Deps{}, LoopHooks{})
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		loop.Run(stop)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	close(stop)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("loop ignored stop signal")
	}
}

func TestLoopReportsBudgetOverruns(t *testing.T) {
	engine := &countingEngine{limit: 3}
	metrics := &logging.Metrics{}
	var streaks []uint64
	loop := NewLoop(engine, LoopConfig{TickRate: 1000}, Deps{
		Clock:   &steppingClock{now: time.Unix(0, 0), step: 50 * time.Millisecond},
		Metrics: metrics,
	}, LoopHooks{
		OnOverrun: func(result LoopStepResult, streak uint64) {
			if result.Duration <= result.Budget {
				t.Errorf("overrun reported for a step within budget: %+v", result)
			}
			streaks = append(streaks, streak)
		},
	})
	loop.Run(make(chan struct{}))

	if len(streaks) != 3 || streaks[2] != 3 {
		t.Fatalf("expected growing overrun streak, got %v", streaks)
	}
	if got := metrics.Snapshot()[MetricTickOverruns]; got != 3 {
		t.Fatalf("expected 3 overruns counted, got %d", got)
	}
}

func TestTickRateFor(t *testing.T) {
	for _, tc := range []struct {
		step float64
		want int
	}{
		{step: 0.1, want: 10},
		{step: 0.05, want: 20},
		{step: 0, want: 10},
		{step: 5, want: 1},
	} {
		if got := TickRateFor(tc.step); got != tc.want {
			t.Fatalf("TickRateFor(%g) = %d, want %d", tc.step, got, tc.want)
		}
	}
}

func TestNewLoopRejectsNilEngine(t *testing.T) {
	if NewLoop(nil, LoopConfig{}, Deps{}, LoopHooks{}) != nil {
		t.Fatalf("expected nil loop for nil engine")
	}
}
