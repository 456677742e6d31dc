// Package telemetry holds the operational logger and counter interfaces
// shared by the driver, the real-time loop and the HTTP layer.
package telemetry

import (
	"io"
	"log"

	charmlog "github.com/charmbracelet/log"

	"github.com/qt2/oxwalk/logging"
)

// Logger receives operational messages such as progress lines and server
// status.
type Logger interface {
	Printf(format string, args ...any)
}

// LoggerFunc adapts functions into the Logger interface.
type LoggerFunc func(format string, args ...any)

func (f LoggerFunc) Printf(format string, args ...any) {
	if f == nil {
		return
	}
	f(format, args...)
}

// Discard returns a Logger that drops everything.
func Discard() Logger { return LoggerFunc(nil) }

// NewLogger writes timestamped lines to w through charmbracelet/log.
func NewLogger(w io.Writer, prefix string) Logger {
	return &charmLogger{logger: charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Prefix:          prefix,
	})}
}

type charmLogger struct {
	logger *charmlog.Logger
}

func (l *charmLogger) Printf(format string, args ...any) {
	l.logger.Printf(format, args...)
}

func (l *charmLogger) StandardLogger() *log.Logger {
	return l.logger.StandardLog(charmlog.StandardLogOptions{ForceLevel: charmlog.WarnLevel})
}

// WrapLogger adapts a standard library logger.
func WrapLogger(logger *log.Logger) Logger {
	if logger == nil {
		return Discard()
	}
	return stdLogger{logger}
}

type stdLogger struct{ *log.Logger }

func (l stdLogger) StandardLogger() *log.Logger { return l.Logger }

// StandardLogger returns the *log.Logger behind logger, or nil when it does
// not expose one. The logging router uses it as its fallback.
func StandardLogger(logger Logger) *log.Logger {
	if provider, ok := logger.(interface{ StandardLogger() *log.Logger }); ok {
		return provider.StandardLogger()
	}
	return nil
}

// Metrics is the counter sink the driver, loop and hub report into.
// *logging.Metrics implements it.
type Metrics interface {
	Add(key string, delta uint64)
	Store(key string, value uint64)
}

type nopMetrics struct{}

func (nopMetrics) Add(string, uint64)   {}
func (nopMetrics) Store(string, uint64) {}

// NopMetrics discards every update.
func NopMetrics() Metrics { return nopMetrics{} }

var _ Metrics = (*logging.Metrics)(nil)
