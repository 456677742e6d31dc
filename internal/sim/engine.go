// Package sim drives an Engine in real time at a fixed tick rate.
package sim

import (
	"github.com/qt2/oxwalk/internal/crowd"
	"github.com/qt2/oxwalk/internal/telemetry"
	"github.com/qt2/oxwalk/logging"
)

// Engine is the simulation advanced by the loop. scenario.Driver satisfies it.
type Engine interface {
	Step()
	Tick() uint64
	Snapshot() crowd.Snapshot
	Done() bool
}

// Deps bundles the infrastructure shared by the loop.
type Deps struct {
	Logger  telemetry.Logger
	Metrics telemetry.Metrics
	Clock   logging.Clock
}
