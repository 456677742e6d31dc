package simulation

import (
	"context"
	"strconv"

	"github.com/qt2/oxwalk/logging"
)

const (
	// EventPedestrianSpawned is emitted when the driver adds a pedestrian.
	EventPedestrianSpawned logging.EventType = "simulation.pedestrian_spawned"
	// EventPedestrianArrived is emitted on the tick a pedestrian reaches its destination.
	EventPedestrianArrived logging.EventType = "simulation.pedestrian_arrived"
	// EventProgress reports population counts at a fixed step interval.
	EventProgress logging.EventType = "simulation.progress"
	// EventFieldSolved is emitted once per destination after the navigation field is built.
	EventFieldSolved logging.EventType = "simulation.field_solved"
	// EventTickBudgetOverrun is emitted when the real-time loop exceeds its tick budget.
	EventTickBudgetOverrun logging.EventType = "simulation.tick_budget_overrun"
)

// PedestrianRef identifies a pedestrian by its index in the state.
func PedestrianRef(index int) logging.EntityRef {
	return logging.EntityRef{ID: strconv.Itoa(index), Kind: logging.EntityKindPedestrian}
}

// DestinationRef identifies a destination by id.
func DestinationRef(id int) logging.EntityRef {
	return logging.EntityRef{ID: strconv.Itoa(id), Kind: logging.EntityKindDestination}
}

type PedestrianSpawnedPayload struct {
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	DesiredSpeed float64 `json:"desiredSpeed"`
}

func PedestrianSpawned(ctx context.Context, pub logging.Publisher, tick uint64, index, destination int, payload PedestrianSpawnedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventPedestrianSpawned,
		Tick:     tick,
		Actor:    PedestrianRef(index),
		Targets:  []logging.EntityRef{DestinationRef(destination)},
		Severity: logging.SeverityDebug,
		Category: logging.CategorySimulation,
		Payload:  payload,
	})
}

type PedestrianArrivedPayload struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	TravelTicks uint64  `json:"travelTicks"`
}

func PedestrianArrived(ctx context.Context, pub logging.Publisher, tick uint64, index, destination int, payload PedestrianArrivedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventPedestrianArrived,
		Tick:     tick,
		Actor:    PedestrianRef(index),
		Targets:  []logging.EntityRef{DestinationRef(destination)},
		Severity: logging.SeverityDebug,
		Category: logging.CategorySimulation,
		Payload:  payload,
	})
}

type ProgressPayload struct {
	Step    uint64 `json:"step"`
	Active  int    `json:"active"`
	Total   int    `json:"total"`
	Arrived int    `json:"arrived"`
}

// Progress publishes the periodic population summary.
func Progress(ctx context.Context, pub logging.Publisher, tick uint64, payload ProgressPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventProgress,
		Tick:     tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindWorld},
		Severity: logging.SeverityInfo,
		Category: logging.CategorySimulation,
		Payload:  payload,
	})
}

type FieldSolvedPayload struct {
	Rows           int     `json:"rows"`
	Cols           int     `json:"cols"`
	Sources        int     `json:"sources"`
	Blocked        int     `json:"blocked"`
	Reachable      int     `json:"reachable"`
	MaxTime        float64 `json:"maxTime"`
	DurationMillis int64   `json:"durationMillis"`
}

// FieldSolved reports a solved navigation field. A destination without any
// source cell is published as a warning since agents bound to it fall back
// to straight-line steering.
func FieldSolved(ctx context.Context, pub logging.Publisher, destination int, payload FieldSolvedPayload) {
	if pub == nil {
		return
	}
	severity := logging.SeverityInfo
	if payload.Sources == 0 {
		severity = logging.SeverityWarn
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventFieldSolved,
		Actor:    logging.EntityRef{Kind: logging.EntityKindField},
		Targets:  []logging.EntityRef{DestinationRef(destination)},
		Severity: severity,
		Category: logging.CategoryNavigation,
		Payload:  payload,
	})
}

// TickBudgetOverrunPayload captures timing details for a tick budget breach.
type TickBudgetOverrunPayload struct {
	DurationMillis int64   `json:"durationMillis"`
	BudgetMillis   int64   `json:"budgetMillis"`
	Ratio          float64 `json:"ratio"`
	Streak         uint64  `json:"streak"`
}

// TickBudgetOverrun publishes a warning when the loop exceeds its tick budget.
func TickBudgetOverrun(ctx context.Context, pub logging.Publisher, tick uint64, payload TickBudgetOverrunPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventTickBudgetOverrun,
		Tick:     tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindWorld},
		Severity: logging.SeverityWarn,
		Category: logging.CategorySystem,
		Payload:  payload,
	})
}
