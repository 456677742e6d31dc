package logging

import (
	"maps"
	"slices"
	"time"
)

// Config controls which sinks receive events and how the router buffers them.
type Config struct {
	EnabledSinks     []string       `toml:"sinks" json:"sinks"`
	BufferSize       int            `toml:"buffer_size" json:"bufferSize"`
	MinimumSeverity  Severity       `toml:"minimum_severity" json:"minimumSeverity"`
	Fields           map[string]any `toml:"fields" json:"fields,omitempty"`
	JSON             JSONConfig     `toml:"json" json:"json"`
	Console          ConsoleConfig  `toml:"console" json:"console"`
	DropWarnInterval time.Duration  `toml:"-" json:"-"`
}

// JSONConfig configures the newline-delimited JSON sink.
type JSONConfig struct {
	FilePath      string        `toml:"path" json:"path,omitempty"`
	FlushInterval time.Duration `toml:"-" json:"-"`
}

// ConsoleConfig configures the console sink.
type ConsoleConfig struct {
	Prefix        string `toml:"prefix" json:"prefix,omitempty"`
	ShowTimestamp bool   `toml:"timestamp" json:"timestamp"`
}

const (
	SinkConsole = "console"
	SinkJSON    = "json"
	SinkMemory  = "memory"
)

func DefaultConfig() Config {
	return Config{
		EnabledSinks:     []string{SinkConsole},
		BufferSize:       512,
		MinimumSeverity:  SeverityInfo,
		DropWarnInterval: 5 * time.Second,
		JSON: JSONConfig{
			FlushInterval: 2 * time.Second,
		},
		Console: ConsoleConfig{ShowTimestamp: true},
	}
}

func (c Config) HasSink(name string) bool {
	return slices.Contains(c.EnabledSinks, name)
}

func (c Config) CloneFields() map[string]any {
	if len(c.Fields) == 0 {
		return nil
	}
	return maps.Clone(c.Fields)
}
