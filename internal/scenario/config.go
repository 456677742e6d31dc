package scenario

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/qt2/oxwalk/internal/crowd"
)

const (
	DefaultSeed             = "corridor"
	DefaultSteps            = 1000
	DefaultProgressInterval = 100
	DefaultSpeedMean        = 1.34
	DefaultSpeedStdDev      = 0.26
	DefaultSpeedMin         = 0.1
	DefaultSpawnRate        = 0.1
	DefaultRenderInterval   = 2
	DefaultRenderScale      = 64.0
	DefaultFrameDelay       = 5
	DefaultCellSize         = 0.1
	DefaultClearance        = 0.2
)

// Point is a 2D coordinate in world units.
type Point struct {
	X float64 `toml:"x" json:"x"`
	Y float64 `toml:"y" json:"y"`
}

func (p Point) Vec() r2.Vec { return r2.Vec{X: p.X, Y: p.Y} }

// Path is a polyline given by its vertices.
type Path struct {
	Points []Point `toml:"points" json:"points" jsonschema:"minItems=1"`
}

func (p Path) vecs() []r2.Vec {
	out := make([]r2.Vec, len(p.Points))
	for i, pt := range p.Points {
		out[i] = pt.Vec()
	}
	return out
}

// Bounds is an axis aligned rectangle.
type Bounds struct {
	Min Point `toml:"min" json:"min"`
	Max Point `toml:"max" json:"max"`
}

func (b Bounds) valid() bool {
	return b.Max.X > b.Min.X && b.Max.Y > b.Min.Y
}

// Spawner emits pedestrians at a uniformly random point of the segment
// From-To. The number spawned per step is Poisson distributed with mean Rate.
type Spawner struct {
	Destination int     `toml:"destination" json:"destination" jsonschema:"minimum=0"`
	Rate        float64 `toml:"rate" json:"rate" jsonschema:"minimum=0"`
	From        Point   `toml:"from" json:"from"`
	To          Point   `toml:"to" json:"to"`
}

// Speed configures the normal distribution of desired speeds. Samples below
// Min are clamped to Min.
type Speed struct {
	Mean   float64 `toml:"mean" json:"mean"`
	StdDev float64 `toml:"stddev" json:"stddev" jsonschema:"minimum=0"`
	Min    float64 `toml:"min" json:"min"`
}

// Physics overrides social force parameters. Zero fields keep the defaults.
type Physics struct {
	TimeStep          float64 `toml:"time_step" json:"timeStep,omitempty"`
	RelaxationTime    float64 `toml:"relaxation_time" json:"relaxationTime,omitempty"`
	InteractionRadius float64 `toml:"interaction_radius" json:"interactionRadius,omitempty"`
	ObstacleStrength  float64 `toml:"obstacle_strength" json:"obstacleStrength,omitempty"`
	ArrivalRadius     float64 `toml:"arrival_radius" json:"arrivalRadius,omitempty"`
}

// Navigation enables the eikonal navigation field.
type Navigation struct {
	Enabled   bool    `toml:"enabled" json:"enabled"`
	CellSize  float64 `toml:"cell_size" json:"cellSize"`
	Clearance float64 `toml:"clearance" json:"clearance"`
}

// Render configures the GIF output.
type Render struct {
	Interval   int     `toml:"interval" json:"interval"`
	Scale      float64 `toml:"scale" json:"scale"`
	FrameDelay int     `toml:"frame_delay" json:"frameDelay"`
}

// Config describes a complete scenario.
type Config struct {
	Name             string     `toml:"name" json:"name"`
	Seed             string     `toml:"seed" json:"seed"`
	Steps            int        `toml:"steps" json:"steps"`
	ProgressInterval int        `toml:"progress_interval" json:"progressInterval"`
	Bounds           Bounds     `toml:"bounds" json:"bounds"`
	Destinations     []Path     `toml:"destinations" json:"destinations" jsonschema:"minItems=1"`
	Obstacles        []Path     `toml:"obstacles" json:"obstacles"`
	Spawners         []Spawner  `toml:"spawners" json:"spawners"`
	Speed            Speed      `toml:"speed" json:"speed"`
	Physics          Physics    `toml:"physics" json:"physics"`
	Navigation       Navigation `toml:"navigation" json:"navigation"`
	Render           Render     `toml:"render" json:"render"`
}

// DefaultConfig is the 10×4 corridor with counter flowing streams.
func DefaultConfig() Config {
	return Config{
		Name:             "corridor",
		Seed:             DefaultSeed,
		Steps:            DefaultSteps,
		ProgressInterval: DefaultProgressInterval,
		Bounds:           Bounds{Max: Point{X: 10, Y: 4}},
		Destinations: []Path{
			{Points: []Point{{X: 1, Y: 1}, {X: 1, Y: 3}}},
			{Points: []Point{{X: 9, Y: 1}, {X: 9, Y: 3}}},
		},
		Obstacles: []Path{
			{Points: []Point{{X: 0, Y: 0}, {X: 10, Y: 0}}},
			{Points: []Point{{X: 0, Y: 4}, {X: 10, Y: 4}}},
		},
		Spawners: []Spawner{
			{Destination: 1, Rate: DefaultSpawnRate, From: Point{X: 1, Y: 1}, To: Point{X: 1, Y: 3}},
			{Destination: 0, Rate: DefaultSpawnRate, From: Point{X: 9, Y: 1}, To: Point{X: 9, Y: 3}},
		},
		Speed: Speed{Mean: DefaultSpeedMean, StdDev: DefaultSpeedStdDev, Min: DefaultSpeedMin},
		Navigation: Navigation{
			CellSize:  DefaultCellSize,
			Clearance: DefaultClearance,
		},
		Render: Render{
			Interval:   DefaultRenderInterval,
			Scale:      DefaultRenderScale,
			FrameDelay: DefaultFrameDelay,
		},
	}
}

func (cfg Config) normalized() Config {
	normalized := cfg
	normalized.Name = strings.TrimSpace(normalized.Name)
	normalized.Seed = strings.TrimSpace(normalized.Seed)
	if normalized.Seed == "" {
		normalized.Seed = DefaultSeed
	}
	if normalized.Steps <= 0 {
		normalized.Steps = DefaultSteps
	}
	if normalized.ProgressInterval <= 0 {
		normalized.ProgressInterval = DefaultProgressInterval
	}
	if !normalized.Bounds.valid() {
		normalized.Bounds = DefaultConfig().Bounds
	}
	if normalized.Speed.Mean <= 0 {
		normalized.Speed.Mean = DefaultSpeedMean
	}
	if normalized.Speed.StdDev < 0 {
		normalized.Speed.StdDev = 0
	}
	if normalized.Speed.Min <= 0 {
		normalized.Speed.Min = DefaultSpeedMin
	}
	if len(cfg.Spawners) > 0 {
		normalized.Spawners = append([]Spawner(nil), cfg.Spawners...)
		for i := range normalized.Spawners {
			if normalized.Spawners[i].Rate < 0 {
				normalized.Spawners[i].Rate = 0
			}
		}
	}
	if normalized.Navigation.CellSize <= 0 {
		normalized.Navigation.CellSize = DefaultCellSize
	}
	if normalized.Navigation.Clearance <= 0 {
		normalized.Navigation.Clearance = DefaultClearance
	}
	if normalized.Render.Interval <= 0 {
		normalized.Render.Interval = DefaultRenderInterval
	}
	if normalized.Render.Scale <= 0 {
		normalized.Render.Scale = DefaultRenderScale
	}
	if normalized.Render.FrameDelay <= 0 {
		normalized.Render.FrameDelay = DefaultFrameDelay
	}
	return normalized
}

// restoreLists puts back the default geometry for every list the file left out.
func (cfg *Config) restoreLists(defaults Config, defined func(key string) bool) {
	if !defined("destinations") {
		cfg.Destinations = defaults.Destinations
	}
	if !defined("obstacles") {
		cfg.Obstacles = defaults.Obstacles
	}
	if !defined("spawners") {
		cfg.Spawners = defaults.Spawners
	}
}

func (cfg Config) Normalized() Config {
	return cfg.normalized()
}

// Validate reports structural problems that normalisation cannot repair.
func (cfg Config) Validate() error {
	var errs []error
	if len(cfg.Destinations) == 0 {
		errs = append(errs, errors.New("at least one destination is required"))
	}
	for i, d := range cfg.Destinations {
		if len(d.Points) == 0 {
			errs = append(errs, fmt.Errorf("destination %d has no points", i))
		}
	}
	for i, o := range cfg.Obstacles {
		if len(o.Points) == 0 {
			errs = append(errs, fmt.Errorf("obstacle %d has no points", i))
		}
	}
	for i, s := range cfg.Spawners {
		if s.Destination < 0 || s.Destination >= len(cfg.Destinations) {
			errs = append(errs, fmt.Errorf("spawner %d targets unknown destination %d", i, s.Destination))
		}
	}
	return errors.Join(errs...)
}

// Params merges the physics overrides into the default parameters.
func (cfg Config) Params() crowd.Params {
	params := crowd.DefaultParams()
	if cfg.Physics.TimeStep > 0 {
		params.TimeStep = cfg.Physics.TimeStep
	}
	if cfg.Physics.RelaxationTime > 0 {
		params.RelaxationTime = cfg.Physics.RelaxationTime
	}
	if cfg.Physics.InteractionRadius > 0 {
		params.InteractionRadius = cfg.Physics.InteractionRadius
	}
	if cfg.Physics.ObstacleStrength > 0 {
		params.ObstacleStrength = cfg.Physics.ObstacleStrength
	}
	if cfg.Physics.ArrivalRadius > 0 {
		params.ArrivalRadius = cfg.Physics.ArrivalRadius
	}
	return params
}

// BuildState creates the static part of the scenario: destinations then
// obstacles, in file order so destination ids match their index.
func (cfg Config) BuildState() (*crowd.State, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	state := crowd.NewState(cfg.Params())
	for _, d := range cfg.Destinations {
		state.AddDestination(crowd.NewDestination(d.vecs()...))
	}
	for _, o := range cfg.Obstacles {
		state.AddObstacle(crowd.NewObstacle(o.vecs()...))
	}
	return state, nil
}

// LoadConfig reads a scenario from a TOML or JSON file. Values present in the
// file replace the corresponding defaults; lists are replaced wholesale and
// their entries start from zero values.
func LoadConfig(path string) (Config, error) {
	defaults := DefaultConfig()
	cfg := defaults
	cfg.Destinations, cfg.Obstacles, cfg.Spawners = nil, nil, nil
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read scenario: %w", err)
		}
		var present map[string]json.RawMessage
		if err := json.Unmarshal(data, &present); err != nil {
			return Config{}, fmt.Errorf("decode scenario %s: %w", path, err)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode scenario %s: %w", path, err)
		}
		cfg.restoreLists(defaults, func(key string) bool {
			_, ok := present[key]
			return ok
		})
	default:
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("decode scenario %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, key := range undecoded {
				keys[i] = key.String()
			}
			sort.Strings(keys)
			return Config{}, fmt.Errorf("decode scenario %s: unknown keys %s", path, strings.Join(keys, ", "))
		}
		cfg.restoreLists(defaults, func(key string) bool { return md.IsDefined(key) })
	}
	cfg = cfg.normalized()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return cfg, nil
}
