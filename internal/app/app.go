package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/qt2/oxwalk/internal/crowd"
	oxnet "github.com/qt2/oxwalk/internal/net"
	"github.com/qt2/oxwalk/internal/observability"
	"github.com/qt2/oxwalk/internal/render"
	"github.com/qt2/oxwalk/internal/scenario"
	"github.com/qt2/oxwalk/internal/sim"
	"github.com/qt2/oxwalk/internal/telemetry"
	"github.com/qt2/oxwalk/logging"
	loggingSinks "github.com/qt2/oxwalk/logging/sinks"
	simevents "github.com/qt2/oxwalk/logging/simulation"
)

// Config selects what a run produces. The zero value renders the default
// corridor scenario into output/<timestamp>.gif.
type Config struct {
	Logger        telemetry.Logger
	Observability observability.Config
	Logging       *logging.Config
	// Stdout receives console sink output. Defaults to os.Stdout.
	Stdout io.Writer

	// ScenarioPath names a TOML or JSON scenario file. Empty uses the
	// built-in corridor.
	ScenarioPath string
	Seed         string
	Steps        int
	Navigation   bool

	// GIFPath overrides the default output path. DisableGIF skips rendering.
	GIFPath    string
	DisableGIF bool

	// ListenAddr starts the HTTP/websocket server when non-empty.
	ListenAddr string
	// Realtime paces steps to the physics time step instead of running
	// as fast as possible.
	Realtime bool
}

func Run(ctx context.Context, cfg Config) error {
	telemetryLogger := cfg.Logger
	if telemetryLogger == nil {
		telemetryLogger = telemetry.NewLogger(os.Stderr, "oxwalk")
	}

	fallbackLogger := telemetry.StandardLogger(telemetryLogger)
	if fallbackLogger == nil {
		fallbackLogger = log.Default()
	}

	scenarioCfg, err := loadScenario(cfg, telemetryLogger)
	if err != nil {
		return err
	}

	observabilityCfg, err := cfg.Observability.ApplyEnv(os.LookupEnv)
	if err != nil {
		telemetryLogger.Printf("%v", err)
	}

	logConfig := logging.DefaultConfig()
	if cfg.Logging != nil {
		logConfig = *cfg.Logging
	}
	stdout := cfg.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	sinks, err := buildSinks(logConfig, stdout)
	if err != nil {
		return err
	}

	router, err := logging.NewRouter(logConfig, logging.SystemClock{}, fallbackLogger, sinks)
	if err != nil {
		return fmt.Errorf("failed to construct logging router: %w", err)
	}
	defer func() {
		if cerr := router.Close(context.Background()); cerr != nil {
			telemetryLogger.Printf("failed to close logging router: %v", cerr)
		}
	}()

	metrics := &logging.Metrics{}

	publisher := logging.WithFields(router, map[string]any{
		"scenario": scenarioCfg.Name,
		"seed":     scenarioCfg.Seed,
	})
	driver, err := scenario.NewDriver(ctx, scenarioCfg, scenario.Deps{
		Publisher: publisher,
		Metrics:   metrics,
		Logger:    telemetryLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to construct scenario driver: %w", err)
	}
	timeStep := scenarioCfg.Params().TimeStep

	var frames *render.GIF
	if !cfg.DisableGIF {
		frames, err = render.NewGIF(render.Config{
			Min:   scenarioCfg.Bounds.Min.Vec(),
			Max:   scenarioCfg.Bounds.Max.Vec(),
			Scale: scenarioCfg.Render.Scale,
			Delay: scenarioCfg.Render.FrameDelay,
		})
		if err != nil {
			return fmt.Errorf("failed to construct renderer: %w", err)
		}
	}

	var hub *oxnet.Hub
	if cfg.ListenAddr != "" {
		hub = oxnet.NewHub(oxnet.HubConfig{
			TimeStep: timeStep,
			Logger:   telemetryLogger,
			Metrics:  metrics,
		})
		handler := oxnet.NewHTTPHandler(hub, oxnet.HTTPHandlerConfig{
			Logger:        telemetryLogger,
			Observability: observabilityCfg,
			Stats:         driver.Stats,
			Telemetry: func() any {
				return diagnostics{Router: router.Stats(), Metrics: metrics.Snapshot()}
			},
		})
		srv := &http.Server{Addr: cfg.ListenAddr, Handler: handler}
		telemetryLogger.Printf("server listening on %s", srv.Addr)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				telemetryLogger.Printf("server failed: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				telemetryLogger.Printf("server shutdown failed: %v", err)
			}
		}()
	}

	interval := uint64(scenarioCfg.Render.Interval)
	observe := func(step uint64, snapshot crowd.Snapshot) error {
		if frames != nil && step%interval == 0 {
			frames.Render(snapshot)
		}
		if hub != nil {
			if err := hub.Broadcast(step, snapshot); err != nil {
				return fmt.Errorf("broadcast step %d: %w", step, err)
			}
		}
		return nil
	}

	if cfg.Realtime {
		runRealtime(ctx, driver, timeStep, publisher, metrics, telemetryLogger, observe)
		if err := ctx.Err(); err != nil {
			return err
		}
	} else if err := driver.Run(ctx, observe); err != nil {
		return fmt.Errorf("simulation stopped: %w", err)
	}

	if frames == nil || frames.Frames() == 0 {
		telemetryLogger.Printf("simulation finished after %d steps", driver.Tick())
		return nil
	}
	outputPath := cfg.GIFPath
	if outputPath == "" {
		outputPath = DefaultGIFPath(time.Now())
	}
	if err := frames.Save(outputPath); err != nil {
		return fmt.Errorf("failed to save %s: %w", outputPath, err)
	}
	telemetryLogger.Printf("simulation finished, output saved to %s", outputPath)
	return nil
}

type diagnostics struct {
	Router  logging.RouterStats `json:"router"`
	Metrics map[string]uint64   `json:"metrics"`
}

// DefaultGIFPath names the output file after the run's start time.
func DefaultGIFPath(now time.Time) string {
	return filepath.Join("output", now.Format("2006-01-02_15-04-05")+".gif")
}

func loadScenario(cfg Config, logger telemetry.Logger) (scenario.Config, error) {
	scenarioCfg := scenario.DefaultConfig()
	if cfg.ScenarioPath != "" {
		loaded, err := scenario.LoadConfig(cfg.ScenarioPath)
		if err != nil {
			return scenario.Config{}, err
		}
		scenarioCfg = loaded
	}

	if cfg.Seed != "" {
		scenarioCfg.Seed = cfg.Seed
	}
	if cfg.Steps > 0 {
		scenarioCfg.Steps = cfg.Steps
	}
	if cfg.Navigation {
		scenarioCfg.Navigation.Enabled = true
	}

	if raw := os.Getenv("OXWALK_SEED"); raw != "" {
		scenarioCfg.Seed = raw
	}
	if raw := os.Getenv("OXWALK_STEPS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			scenarioCfg.Steps = value
		} else {
			logger.Printf("invalid OXWALK_STEPS=%q", raw)
		}
	}

	scenarioCfg = scenarioCfg.Normalized()
	if err := scenarioCfg.Validate(); err != nil {
		return scenario.Config{}, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenarioCfg, nil
}

func buildSinks(cfg logging.Config, stdout io.Writer) (map[string]logging.Sink, error) {
	sinks := make(map[string]logging.Sink)
	if cfg.HasSink(logging.SinkConsole) {
		sinks[logging.SinkConsole] = loggingSinks.NewConsole(stdout, cfg.Console)
	}
	if cfg.HasSink(logging.SinkJSON) {
		if cfg.JSON.FilePath == "" {
			return nil, errors.New("json sink enabled without a file path")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.JSON.FilePath), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		file, err := os.Create(cfg.JSON.FilePath)
		if err != nil {
			return nil, fmt.Errorf("open json log: %w", err)
		}
		sinks[logging.SinkJSON] = loggingSinks.NewJSON(file, cfg.JSON.FlushInterval)
	}
	if cfg.HasSink(logging.SinkMemory) {
		sinks[logging.SinkMemory] = loggingSinks.NewMemory()
	}
	return sinks, nil
}

// runRealtime paces the driver with sim.Loop until it finishes or ctx ends.
func runRealtime(
	ctx context.Context,
	driver *scenario.Driver,
	timeStep float64,
	pub logging.Publisher,
	metrics telemetry.Metrics,
	logger telemetry.Logger,
	observe scenario.StepHook,
) {
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			close(stop)
		case <-done:
		}
	}()
	defer close(done)

	loop := sim.NewLoop(driver, sim.LoopConfig{
		TickRate:        sim.TickRateFor(timeStep),
		CatchupMaxTicks: 3,
	}, sim.Deps{
		Logger:  logger,
		Metrics: metrics,
	}, sim.LoopHooks{
		AfterStep: func(result sim.LoopStepResult) {
			if err := observe(result.Tick-1, result.Snapshot); err != nil {
				logger.Printf("%v", err)
			}
		},
		OnOverrun: func(result sim.LoopStepResult, streak uint64) {
			ratio := 0.0
			if result.Budget > 0 {
				ratio = float64(result.Duration) / float64(result.Budget)
			}
			simevents.TickBudgetOverrun(ctx, pub, result.Tick-1, simevents.TickBudgetOverrunPayload{
				DurationMillis: result.Duration.Milliseconds(),
				BudgetMillis:   result.Budget.Milliseconds(),
				Ratio:          ratio,
				Streak:         streak,
			})
		},
	})
	loop.Run(stop)
}
