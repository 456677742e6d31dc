package sinks

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/qt2/oxwalk/logging"
)

func sampleEvent() logging.Event {
	return logging.Event{
		Type:     "simulation.progress",
		Tick:     5,
		Time:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Actor:    logging.EntityRef{ID: "3", Kind: logging.EntityKindPedestrian},
		Severity: logging.SeverityWarn,
		Category: logging.CategorySimulation,
		Payload:  map[string]int{"active": 2},
		Extra:    map[string]any{"seed": 9},
	}
}

func TestJSONWritesOneObjectPerLine(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSON(&buf, 0)
	if err := sink.Write(sampleEvent()); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := sink.Write(sampleEvent()); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}

	scanner := bufio.NewScanner(&buf)
	lines := 0
	for scanner.Scan() {
		lines++
		var decoded map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
			t.Fatalf("line %d is not JSON: %v", lines, err)
		}
		if decoded["type"] != "simulation.progress" || decoded["severity"] != "warn" {
			t.Fatalf("unexpected record: %+v", decoded)
		}
		if decoded["time"] != "2024-03-01T12:00:00Z" {
			t.Fatalf("unexpected time: %v", decoded["time"])
		}
	}
	if lines != 2 {
		t.Fatalf("expected 2 lines, got %d", lines)
	}
}

func TestJSONBuffersUntilClose(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSON(&buf, time.Hour)
	if err := sink.Write(sampleEvent()); err != nil {
		t.Fatalf("write: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected buffered output before close")
	}
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatalf("expected flushed output after close")
	}
}

func TestConsoleRendersKeyValues(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsole(&buf, logging.ConsoleConfig{})
	if err := sink.Write(sampleEvent()); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"simulation.progress", "tick=5", "actor=pedestrian:3", "seed=9"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in console output %q", want, out)
		}
	}
}

func TestMemoryFiltersByType(t *testing.T) {
	sink := NewMemory()
	sink.Write(sampleEvent())
	sink.Write(logging.Event{Type: "other"})
	if got := len(sink.OfType("simulation.progress")); got != 1 {
		t.Fatalf("expected one progress event, got %d", got)
	}
	sink.Reset()
	if len(sink.Events()) != 0 {
		t.Fatalf("expected reset to clear events")
	}
}
