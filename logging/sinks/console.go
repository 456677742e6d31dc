package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	charmlog "github.com/charmbracelet/log"

	"github.com/qt2/oxwalk/logging"
)

// Console renders events as human readable key/value lines.
type Console struct {
	logger *charmlog.Logger
}

func NewConsole(w io.Writer, cfg logging.ConsoleConfig) *Console {
	logger := charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: cfg.ShowTimestamp,
		TimeFormat:      "15:04:05.000",
		Prefix:          cfg.Prefix,
		Level:           charmlog.DebugLevel,
	})
	return &Console{logger: logger}
}

func (s *Console) Write(event logging.Event) error {
	if s.logger == nil {
		return nil
	}
	keyvals := []any{"tick", event.Tick}
	if actor := formatEntity(event.Actor); actor != "" {
		keyvals = append(keyvals, "actor", actor)
	}
	if len(event.Targets) > 0 {
		keyvals = append(keyvals, "targets", formatTargets(event.Targets))
	}
	if event.Category != "" {
		keyvals = append(keyvals, "category", event.Category)
	}
	if event.Payload != nil {
		keyvals = append(keyvals, "payload", formatPayload(event.Payload))
	}
	keys := make([]string, 0, len(event.Extra))
	for k := range event.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		keyvals = append(keyvals, k, event.Extra[k])
	}
	s.logger.Log(level(event.Severity), string(event.Type), keyvals...)
	return nil
}

func (s *Console) Close(context.Context) error {
	return nil
}

func level(sev logging.Severity) charmlog.Level {
	switch sev {
	case logging.SeverityDebug:
		return charmlog.DebugLevel
	case logging.SeverityWarn:
		return charmlog.WarnLevel
	case logging.SeverityError:
		return charmlog.ErrorLevel
	default:
		return charmlog.InfoLevel
	}
}

func formatEntity(ref logging.EntityRef) string {
	if ref.ID == "" {
		return string(ref.Kind)
	}
	if ref.Kind == "" {
		return ref.ID
	}
	return fmt.Sprintf("%s:%s", ref.Kind, ref.ID)
}

func formatTargets(targets []logging.EntityRef) string {
	parts := make([]string, 0, len(targets))
	for _, target := range targets {
		parts = append(parts, formatEntity(target))
	}
	return strings.Join(parts, ",")
}

func formatPayload(payload any) string {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("%v", payload)
	}
	return string(data)
}
