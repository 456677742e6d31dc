package scenario

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/qt2/oxwalk/internal/crowd"
)

// spawnSource draws how many pedestrians appear on a step and where.
type spawnSource struct {
	cfg   Spawner
	count *CountSampler
	along distuv.Uniform
}

func newSpawnSource(cfg Spawner, seed string, index int) *spawnSource {
	label := fmt.Sprintf("spawner/%d", index)
	return &spawnSource{
		cfg:   cfg,
		count: NewCountSampler(cfg.Rate, NewDeterministicSource(seed, label+"/count")),
		along: distuv.Uniform{Min: 0, Max: 1, Src: NewDeterministicSource(seed, label+"/position")},
	}
}

// emit returns the pedestrians for one step. Speeds come from the shared
// sampler so that the stream order matches spawn order.
func (s *spawnSource) emit(speeds *SpeedSampler) []crowd.Pedestrian {
	n := s.count.Sample()
	if n == 0 {
		return nil
	}
	from, to := s.cfg.From.Vec(), s.cfg.To.Vec()
	out := make([]crowd.Pedestrian, 0, n)
	for i := 0; i < n; i++ {
		t := s.along.Rand()
		position := r2.Add(from, r2.Scale(t, r2.Sub(to, from)))
		out = append(out, crowd.NewPedestrian(position, s.cfg.Destination, speeds.Sample()))
	}
	return out
}
