// Package logging routes structured simulation events to pluggable sinks.
//
// Producers publish through the Publisher interface and never block: the
// Router queues events and hands each one to a delivery lane per sink.
package logging

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

type EventType string

type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarn
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarn:
		return "warn"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText lets severities appear by name in JSON and TOML.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSeverity accepts the names produced by Severity.String.
func ParseSeverity(raw string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return SeverityDebug, nil
	case "info", "":
		return SeverityInfo, nil
	case "warn", "warning":
		return SeverityWarn, nil
	case "error":
		return SeverityError, nil
	default:
		return SeverityInfo, fmt.Errorf("unknown severity %q", raw)
	}
}

type EntityKind string

const (
	EntityKindPedestrian  EntityKind = "pedestrian"
	EntityKindDestination EntityKind = "destination"
	EntityKindField       EntityKind = "field"
	EntityKindWorld       EntityKind = "world"
)

type Event struct {
	Type     EventType      `json:"type"`
	Tick     uint64         `json:"tick"`
	Time     time.Time      `json:"time"`
	Actor    EntityRef      `json:"actor"`
	Targets  []EntityRef    `json:"targets,omitempty"`
	Severity Severity       `json:"severity"`
	Category string         `json:"category,omitempty"`
	Payload  any            `json:"payload,omitempty"`
	Extra    map[string]any `json:"extra,omitempty"`
}

type EntityRef struct {
	ID   string     `json:"id"`
	Kind EntityKind `json:"kind"`
}

const (
	CategorySimulation = "simulation"
	CategoryNavigation = "navigation"
	CategorySystem     = "system"
)

type Publisher interface {
	Publish(ctx context.Context, event Event)
}

type PublisherFunc func(ctx context.Context, event Event)

func (f PublisherFunc) Publish(ctx context.Context, event Event) {
	if f == nil {
		return
	}
	f(ctx, event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) {}

func NopPublisher() Publisher {
	return nopPublisher{}
}

// decoratingPublisher stamps run-wide fields such as the scenario name and
// seed onto every event.
type decoratingPublisher struct {
	next   Publisher
	fields map[string]any
}

func (p decoratingPublisher) Publish(ctx context.Context, event Event) {
	p.next.Publish(ctx, decorate(event, p.fields))
}

// decorate copies fields into event.Extra without overriding keys the
// producer already set.
func decorate(event Event, fields map[string]any) Event {
	if len(fields) == 0 {
		return event
	}
	event = CloneEvent(event)
	if event.Extra == nil {
		event.Extra = make(map[string]any, len(fields))
	}
	for k, v := range fields {
		if _, exists := event.Extra[k]; !exists {
			event.Extra[k] = v
		}
	}
	return event
}

// CloneEvent copies the slices and maps of event so the copy can be handed
// to another goroutine.
func CloneEvent(event Event) Event {
	event.Targets = slices.Clone(event.Targets)
	event.Extra = maps.Clone(event.Extra)
	return event
}

// WithFields wraps p so that every event carries fields in Extra. Keys set
// by the producer win.
func WithFields(p Publisher, fields map[string]any) Publisher {
	if p == nil {
		return NopPublisher()
	}
	if len(fields) == 0 {
		return p
	}
	return decoratingPublisher{next: p, fields: maps.Clone(fields)}
}
