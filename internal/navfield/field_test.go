package navfield

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/qt2/oxwalk/internal/crowd"
)

func testConfig() Config {
	return Config{Max: r2.Vec{X: 10, Y: 10}, CellSize: 0.25, Clearance: 0.25}
}

func mustBuild(t *testing.T, obstacles []crowd.Obstacle, destinations ...crowd.Destination) *Field {
	t.Helper()
	field, err := Build(testConfig(), obstacles, destinations)
	if err != nil {
		t.Fatalf("build field: %v", err)
	}
	return field
}

func wall() []crowd.Obstacle {
	return []crowd.Obstacle{crowd.NewObstacle(r2.Vec{X: 5, Y: 0}, r2.Vec{X: 5, Y: 7})}
}

func TestOpenFieldPointsAtDestination(t *testing.T) {
	field := mustBuild(t, nil, crowd.NewDestination(r2.Vec{X: 9, Y: 5}))

	dir, ok := field.Direction(0, r2.Vec{X: 2, Y: 5})
	if !ok {
		t.Fatalf("expected a direction in open space")
	}
	if dir.X < 0.999 {
		t.Fatalf("expected heading along +x, got %+v", dir)
	}

	stats := field.Stats()
	if len(stats) != 1 {
		t.Fatalf("expected stats for one destination, got %d", len(stats))
	}
	if stats[0].Sources != 4 || stats[0].Reachable != 1600 || stats[0].Blocked != 0 {
		t.Fatalf("unexpected stats: %+v", stats[0])
	}
}

func TestDirectionDetoursAroundWall(t *testing.T) {
	field := mustBuild(t, wall(), crowd.NewDestination(r2.Vec{X: 9, Y: 5}))

	for _, tc := range []struct {
		name     string
		position r2.Vec
		check    func(r2.Vec) bool
	}{
		{name: "behind-wall", position: r2.Vec{X: 3, Y: 5}, check: func(d r2.Vec) bool { return d.X > 0 && d.Y > 0.5 }},
		{name: "low-behind-wall", position: r2.Vec{X: 2, Y: 2}, check: func(d r2.Vec) bool { return d.Y > 0.5 }},
		{name: "past-tip", position: r2.Vec{X: 5, Y: 8}, check: func(d r2.Vec) bool { return d.X > 0 && d.Y < 0 }},
		{name: "clear-side", position: r2.Vec{X: 6, Y: 5}, check: func(d r2.Vec) bool { return d.X > 0.99 }},
		{name: "inside-clearance", position: r2.Vec{X: 5, Y: 3}, check: func(d r2.Vec) bool { return d.X > 0 }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			dir, ok := field.Direction(0, tc.position)
			if !ok {
				t.Fatalf("expected a direction at %+v", tc.position)
			}
			if math.Abs(r2.Norm(dir)-1) > 1e-9 {
				t.Fatalf("direction not normalised: %+v", dir)
			}
			if !tc.check(dir) {
				t.Fatalf("unexpected direction %+v at %+v", dir, tc.position)
			}
		})
	}
}

func TestArrivalTimeAccountsForDetour(t *testing.T) {
	field := mustBuild(t, wall(), crowd.NewDestination(r2.Vec{X: 9, Y: 5}))

	open, ok := field.ArrivalTime(0, r2.Vec{X: 6, Y: 5})
	if !ok || math.Abs(open-2.75) > 1e-9 {
		t.Fatalf("expected 2.75 on the open side, got %g (ok=%v)", open, ok)
	}
	detour, ok := field.ArrivalTime(0, r2.Vec{X: 3, Y: 5})
	if !ok || detour < 6.5 {
		t.Fatalf("expected detour longer than the straight line, got %g (ok=%v)", detour, ok)
	}
	if _, ok := field.ArrivalTime(0, r2.Vec{X: 5, Y: 3}); ok {
		t.Fatalf("blocked cell should have no arrival time")
	}
}

func TestDirectionWithoutAnswer(t *testing.T) {
	field := mustBuild(t, nil, crowd.NewDestination(r2.Vec{X: 9, Y: 5}))

	for _, tc := range []struct {
		name     string
		id       int
		position r2.Vec
	}{
		{name: "at-source", id: 0, position: r2.Vec{X: 9, Y: 5}},
		{name: "left-of-grid", id: 0, position: r2.Vec{X: -1, Y: 5}},
		{name: "right-of-grid", id: 0, position: r2.Vec{X: 10.5, Y: 5}},
		{name: "unknown-destination", id: 3, position: r2.Vec{X: 2, Y: 5}},
		{name: "negative-destination", id: -1, position: r2.Vec{X: 2, Y: 5}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if dir, ok := field.Direction(tc.id, tc.position); ok {
				t.Fatalf("expected no direction, got %+v", dir)
			}
		})
	}
}

func TestEnclosedDestinationIsUnreachable(t *testing.T) {
	box := crowd.NewObstacle(r2.Vec{X: 7, Y: 3}, r2.Vec{X: 9, Y: 3}, r2.Vec{X: 9, Y: 5}, r2.Vec{X: 7, Y: 5}, r2.Vec{X: 7, Y: 3})
	field := mustBuild(t, []crowd.Obstacle{box}, crowd.NewDestination(r2.Vec{X: 8, Y: 4}))

	if dir, ok := field.Direction(0, r2.Vec{X: 2, Y: 2}); ok {
		t.Fatalf("expected no direction outside the enclosure, got %+v", dir)
	}
	if _, ok := field.ArrivalTime(0, r2.Vec{X: 2, Y: 2}); ok {
		t.Fatalf("expected unreachable outside the enclosure")
	}
	if got := field.Stats()[0].Reachable; got != 36 {
		t.Fatalf("expected 36 reachable cells inside the enclosure, got %d", got)
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	for _, tc := range []struct {
		name string
		cfg  Config
	}{
		{name: "zero-cell", cfg: Config{Max: r2.Vec{X: 1, Y: 1}}},
		{name: "empty-domain", cfg: Config{Max: r2.Vec{X: 1}, CellSize: 0.1}},
		{name: "negative-clearance", cfg: Config{Max: r2.Vec{X: 1, Y: 1}, CellSize: 0.1, Clearance: -1}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Build(tc.cfg, nil, nil); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestFieldSteersCrowdState(t *testing.T) {
	state := crowd.NewState(crowd.DefaultParams())
	state.AddDestination(crowd.NewDestination(r2.Vec{X: 9, Y: 5}))
	state.AddObstacle(wall()[0])
	state.AddPedestrian(crowd.NewPedestrian(r2.Vec{X: 3, Y: 5}, 0, 1.34))

	field, err := ForState(testConfig(), state)
	if err != nil {
		t.Fatalf("build field: %v", err)
	}
	state.Navigation = field
	state.Tick()

	if v := state.Pedestrians[0].Velocity; v.Y <= 0 {
		t.Fatalf("expected pedestrian to start around the wall, got velocity %+v", v)
	}
}
