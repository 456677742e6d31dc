package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/qt2/oxwalk/internal/app"
	"github.com/qt2/oxwalk/logging"
)

func main() {
	cfg, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, cfg); err != nil {
		log.Fatalf("%v", err)
	}
}

func parseFlags(args []string, output io.Writer) (app.Config, error) {
	fs := flag.NewFlagSet("oxwalk", flag.ContinueOnError)
	fs.SetOutput(output)

	var (
		cfg        app.Config
		eventsPath string
		quiet      bool
	)
	logCfg := logging.DefaultConfig()
	fs.StringVar(&cfg.ScenarioPath, "config", "", "scenario file (.toml or .json); defaults to the built-in corridor")
	fs.IntVar(&cfg.Steps, "steps", 0, "number of steps to simulate")
	fs.StringVar(&cfg.Seed, "seed", "", "seed for spawn and speed sampling")
	fs.StringVar(&cfg.GIFPath, "gif", "", "output GIF path (default output/<timestamp>.gif)")
	fs.BoolVar(&cfg.DisableGIF, "no-gif", false, "skip GIF rendering")
	fs.StringVar(&cfg.ListenAddr, "listen", "", "serve /health, /diagnostics and /ws on this address")
	fs.BoolVar(&cfg.Realtime, "realtime", false, "pace steps to the simulated time step")
	fs.BoolVar(&cfg.Navigation, "navfield", false, "steer pedestrians with the eikonal navigation field")
	fs.StringVar(&eventsPath, "events", "", "also write structured events as JSON lines to this file")
	fs.BoolVar(&quiet, "quiet", false, "disable the console event sink")
	fs.TextVar(&logCfg.MinimumSeverity, "log-level", logCfg.MinimumSeverity, "minimum event severity: debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		return app.Config{}, err
	}

	if quiet {
		logCfg.EnabledSinks = nil
	}
	if eventsPath != "" {
		logCfg.EnabledSinks = append(logCfg.EnabledSinks, logging.SinkJSON)
		logCfg.JSON.FilePath = eventsPath
	}
	cfg.Logging = &logCfg
	return cfg, nil
}
