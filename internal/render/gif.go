// Package render rasterises crowd snapshots into an animated GIF.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/fogleman/gg"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/qt2/oxwalk/internal/crowd"
)

const (
	// DefaultScale is pixels per world unit.
	DefaultScale = 64
	// DefaultDelay is the frame delay in hundredths of a second.
	DefaultDelay = 5

	strokeWidth      = 0.25
	pedestrianRadius = 0.2
)

var (
	background       = color.RGBA{255, 255, 255, 255}
	obstacleColor    = color.RGBA{158, 158, 158, 255}
	destinationColor = color.RGBA{0, 0, 0, 255}

	// Pedestrians are coloured by destination id modulo the palette length.
	destinationPalette = []color.RGBA{
		{0, 0, 255, 255},
		{255, 0, 0, 255},
		{0, 255, 0, 255},
		{255, 255, 0, 255},
		{0, 255, 255, 255},
		{255, 0, 255, 255},
	}
)

type Config struct {
	// Min and Max bound the rendered world rectangle.
	Min, Max r2.Vec
	Scale    float64
	Delay    int
}

// GIF collects frames in memory until Encode or Save is called.
type GIF struct {
	cfg     Config
	width   int
	height  int
	palette color.Palette
	frames  []*image.Paletted
	delays  []int
}

func NewGIF(cfg Config) (*GIF, error) {
	if cfg.Scale <= 0 {
		cfg.Scale = DefaultScale
	}
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultDelay
	}
	size := r2.Scale(cfg.Scale, r2.Sub(cfg.Max, cfg.Min))
	width, height := int(size.X), int(size.Y)
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("render: empty image for bounds %v..%v", cfg.Min, cfg.Max)
	}
	return &GIF{
		cfg:     cfg,
		width:   width,
		height:  height,
		palette: newPalette(),
	}, nil
}

// newPalette holds the fixed drawing colours followed by blends of each
// against the background so anti-aliased edges quantise cleanly.
func newPalette() color.Palette {
	base := []color.RGBA{background, obstacleColor, destinationColor}
	base = append(base, destinationPalette...)

	p := make(color.Palette, 0, 256)
	for _, c := range base {
		p = append(p, c)
	}
	for _, c := range base[1:] {
		for _, t := range []float64{0.25, 0.5, 0.75} {
			p = append(p, blend(c, background, t))
		}
	}
	return p
}

func blend(a, b color.RGBA, t float64) color.RGBA {
	mix := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x)*(1-t) + float64(y)*t))
	}
	return color.RGBA{mix(a.R, b.R), mix(a.G, b.G), mix(a.B, b.B), 255}
}

// Size reports the frame dimensions in pixels.
func (g *GIF) Size() (int, int) { return g.width, g.height }

// Frames reports how many frames have been rendered.
func (g *GIF) Frames() int { return len(g.frames) }

// Render draws one frame: obstacles, then destinations, then active
// pedestrians.
func (g *GIF) Render(snapshot crowd.Snapshot) {
	dc := gg.NewContext(g.width, g.height)
	dc.SetColor(background)
	dc.Clear()

	dc.SetLineCap(gg.LineCapButt)
	dc.SetLineWidth(strokeWidth * g.cfg.Scale)
	dc.SetColor(obstacleColor)
	for _, o := range snapshot.Obstacles {
		g.strokePath(dc, o.Points())
	}
	dc.SetColor(destinationColor)
	for _, d := range snapshot.Destinations {
		g.strokePath(dc, d.Points())
	}

	for _, p := range snapshot.Pedestrians {
		if !p.Active {
			continue
		}
		dc.SetColor(destinationPalette[p.DestinationID%len(destinationPalette)])
		x, y := g.pixel(p.Position)
		dc.DrawCircle(x, y, pedestrianRadius*g.cfg.Scale)
		dc.Fill()
	}

	frame := image.NewPaletted(image.Rect(0, 0, g.width, g.height), g.palette)
	draw.Draw(frame, frame.Bounds(), dc.Image(), image.Point{}, draw.Src)
	g.frames = append(g.frames, frame)
	g.delays = append(g.delays, g.cfg.Delay)
}

func (g *GIF) strokePath(dc *gg.Context, points []r2.Vec) {
	if len(points) < 2 {
		return
	}
	dc.NewSubPath()
	for _, p := range points {
		x, y := g.pixel(p)
		dc.LineTo(x, y)
	}
	dc.Stroke()
}

func (g *GIF) pixel(p r2.Vec) (float64, float64) {
	v := r2.Scale(g.cfg.Scale, r2.Sub(p, g.cfg.Min))
	return v.X, v.Y
}

// Encode writes the animation to w.
func (g *GIF) Encode(w io.Writer) error {
	if len(g.frames) == 0 {
		return errors.New("render: no frames")
	}
	return gif.EncodeAll(w, &gif.GIF{
		Image: g.frames,
		Delay: g.delays,
		Config: image.Config{
			ColorModel: g.palette,
			Width:      g.width,
			Height:     g.height,
		},
	})
}

// Save encodes into a temporary file beside path and renames it into place.
func (g *GIF) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".oxwalk-*.gif")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if err := g.Encode(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("encode gif: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
