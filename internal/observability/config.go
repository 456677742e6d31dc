// Package observability carries opt-in diagnostics for the HTTP server.
package observability

import (
	"fmt"
	"strconv"
)

// EnvPprofTrace toggles Config.EnablePprofTrace from the environment.
const EnvPprofTrace = "ENABLE_PPROF_TRACE"

type Config struct {
	// EnablePprofTrace mounts net/http/pprof under /debug/pprof/.
	EnablePprofTrace bool
}

// ApplyEnv overrides cfg from lookup (usually os.LookupEnv). An unparseable
// value leaves cfg unchanged and is returned as an error.
func (cfg Config) ApplyEnv(lookup func(string) (string, bool)) (Config, error) {
	raw, ok := lookup(EnvPprofTrace)
	if !ok || raw == "" {
		return cfg, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return cfg, fmt.Errorf("invalid %s=%q: %w", EnvPprofTrace, raw, err)
	}
	cfg.EnablePprofTrace = value
	return cfg, nil
}
