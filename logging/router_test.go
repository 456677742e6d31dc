package logging_test

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/qt2/oxwalk/logging"
	"github.com/qt2/oxwalk/logging/sinks"
)

var fixedTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newTestRouter(t *testing.T, cfg logging.Config, named map[string]logging.Sink) *logging.Router {
	t.Helper()
	router, err := logging.NewRouter(cfg, logging.ClockFunc(func() time.Time { return fixedTime }), quietLogger(), named)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	return router
}

func closeRouter(t *testing.T, router *logging.Router) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := router.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestRouterFansOutToEverySink(t *testing.T) {
	first := sinks.NewMemory()
	second := sinks.NewMemory()
	cfg := logging.DefaultConfig()
	cfg.EnabledSinks = []string{"a", "b"}
	router := newTestRouter(t, cfg, map[string]logging.Sink{"a": first, "b": second})

	for i := 0; i < 3; i++ {
		router.Publish(context.Background(), logging.Event{Type: "test.event", Tick: uint64(i), Severity: logging.SeverityInfo})
	}
	closeRouter(t, router)

	for name, sink := range map[string]*sinks.Memory{"a": first, "b": second} {
		events := sink.Events()
		if len(events) != 3 {
			t.Fatalf("sink %s: expected 3 events, got %d", name, len(events))
		}
		for i, event := range events {
			if event.Tick != uint64(i) {
				t.Fatalf("sink %s: events out of order: %+v", name, events)
			}
			if !event.Time.Equal(fixedTime) {
				t.Fatalf("sink %s: expected clock time to be stamped, got %v", name, event.Time)
			}
		}
	}

	stats := router.Stats()
	if stats.EventsTotal != 3 || stats.DroppedTotal != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(stats.Sinks) != 2 || stats.Sinks[0].Name != "a" || stats.Sinks[0].Written != 3 {
		t.Fatalf("unexpected sink stats: %+v", stats.Sinks)
	}
}

func TestRouterFiltersBySeverity(t *testing.T) {
	memory := sinks.NewMemory()
	cfg := logging.DefaultConfig()
	cfg.EnabledSinks = []string{logging.SinkMemory}
	cfg.MinimumSeverity = logging.SeverityWarn
	router := newTestRouter(t, cfg, map[string]logging.Sink{logging.SinkMemory: memory})

	router.Publish(context.Background(), logging.Event{Type: "debug", Severity: logging.SeverityDebug})
	router.Publish(context.Background(), logging.Event{Type: "info", Severity: logging.SeverityInfo})
	router.Publish(context.Background(), logging.Event{Type: "warn", Severity: logging.SeverityWarn})
	router.Publish(context.Background(), logging.Event{Type: "error", Severity: logging.SeverityError})
	router.Publish(context.Background(), logging.Event{Severity: logging.SeverityError})
	closeRouter(t, router)

	events := memory.Events()
	if len(events) != 2 || events[0].Type != "warn" || events[1].Type != "error" {
		t.Fatalf("unexpected events after filtering: %+v", events)
	}
}

func TestRouterDecoratesWithFields(t *testing.T) {
	memory := sinks.NewMemory()
	cfg := logging.DefaultConfig()
	cfg.EnabledSinks = nil
	cfg.Fields = map[string]any{"run": "r1", "scenario": "router"}
	router := newTestRouter(t, cfg, map[string]logging.Sink{logging.SinkMemory: memory})

	pub := logging.WithFields(router, map[string]any{"scenario": "corridor", "seed": 7})
	pub.Publish(context.Background(), logging.Event{Type: "decorated", Severity: logging.SeverityInfo, Extra: map[string]any{"seed": 1}})
	closeRouter(t, router)

	events := memory.Events()
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	extra := events[0].Extra
	if extra["run"] != "r1" || extra["scenario"] != "corridor" || extra["seed"] != 1 {
		t.Fatalf("unexpected extra fields: %+v", extra)
	}
}

func TestNewRouterRequiresEnabledSinks(t *testing.T) {
	cfg := logging.DefaultConfig()
	cfg.EnabledSinks = []string{logging.SinkJSON}
	if _, err := logging.NewRouter(cfg, nil, quietLogger(), nil); err == nil {
		t.Fatalf("expected error for missing json sink")
	}
}

func TestRouterIgnoresPublishAfterClose(t *testing.T) {
	memory := sinks.NewMemory()
	cfg := logging.DefaultConfig()
	cfg.EnabledSinks = nil
	router := newTestRouter(t, cfg, map[string]logging.Sink{logging.SinkMemory: memory})
	closeRouter(t, router)
	closeRouter(t, router)

	router.Publish(context.Background(), logging.Event{Type: "late", Severity: logging.SeverityInfo})
	if got := len(memory.Events()); got != 0 {
		t.Fatalf("expected no events after close, got %d", got)
	}
}

type failingSink struct{}

func (failingSink) Write(logging.Event) error   { return errors.New("disk full") }
func (failingSink) Close(context.Context) error { return nil }

func TestRouterBacksOffFailingSink(t *testing.T) {
	cfg := logging.DefaultConfig()
	cfg.EnabledSinks = nil
	healthy := sinks.NewMemory()
	router := newTestRouter(t, cfg, map[string]logging.Sink{"broken": failingSink{}, "healthy": healthy})
	for i := 0; i < 3; i++ {
		router.Publish(context.Background(), logging.Event{Type: "doomed", Severity: logging.SeverityInfo, Tick: uint64(i)})
	}
	closeRouter(t, router)

	stats := router.Stats()
	if len(stats.Sinks) != 2 {
		t.Fatalf("expected two lanes, got %+v", stats.Sinks)
	}
	broken := stats.Sinks[0]
	if broken.Name != "broken" {
		t.Fatalf("expected lanes ordered by name, got %+v", stats.Sinks)
	}
	// The clock never advances, so the lane stays paused after the first failure.
	if broken.Failed != 1 || broken.Skipped != 2 || broken.Written != 0 {
		t.Fatalf("unexpected broken lane stats: %+v", broken)
	}
	if got := len(healthy.Events()); got != 3 {
		t.Fatalf("expected healthy sink to receive 3 events, got %d", got)
	}
}

func TestSeverityText(t *testing.T) {
	for _, sev := range []logging.Severity{logging.SeverityDebug, logging.SeverityInfo, logging.SeverityWarn, logging.SeverityError} {
		text, err := sev.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText: %v", err)
		}
		var parsed logging.Severity
		if err := parsed.UnmarshalText(text); err != nil || parsed != sev {
			t.Fatalf("round trip of %s gave %v (%v)", text, parsed, err)
		}
	}
	if _, err := logging.ParseSeverity("loud"); err == nil {
		t.Fatalf("expected error for unknown severity")
	}
}
