package scenario

import (
	"hash/fnv"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// DeterministicSeedValue derives a stream seed from the scenario seed and a
// label so that every random consumer gets an independent, reproducible
// stream.
func DeterministicSeedValue(rootSeed, label string) uint64 {
	hasher := fnv.New64a()
	hasher.Write([]byte(rootSeed))
	hasher.Write([]byte{0})
	hasher.Write([]byte(label))
	sum := hasher.Sum64()
	if sum == 0 {
		sum = 1
	}
	return sum
}

// NewDeterministicSource returns a seeded source for the labelled stream.
func NewDeterministicSource(rootSeed, label string) rand.Source {
	return rand.NewSource(DeterministicSeedValue(rootSeed, label))
}

// SpeedSampler draws desired walking speeds from a normal distribution,
// clamped below so every pedestrian keeps a positive speed.
type SpeedSampler struct {
	dist distuv.Normal
	min  float64
}

// NewSpeedSampler samples speeds from cfg using src.
func NewSpeedSampler(cfg Speed, src rand.Source) *SpeedSampler {
	return &SpeedSampler{
		dist: distuv.Normal{Mu: cfg.Mean, Sigma: cfg.StdDev, Src: src},
		min:  cfg.Min,
	}
}

// Sample returns the next desired speed, never below the configured minimum.
func (s *SpeedSampler) Sample() float64 {
	if s.dist.Sigma == 0 {
		return math.Max(s.dist.Mu, s.min)
	}
	return math.Max(s.dist.Rand(), s.min)
}

// CountSampler draws per-step spawn counts from a Poisson distribution.
type CountSampler struct {
	dist distuv.Poisson
}

// NewCountSampler samples counts with mean rate using src.
func NewCountSampler(rate float64, src rand.Source) *CountSampler {
	return &CountSampler{dist: distuv.Poisson{Lambda: rate, Src: src}}
}

// Sample returns the number of pedestrians to spawn this step. A rate of zero
// or less always yields zero.
func (s *CountSampler) Sample() int {
	if s.dist.Lambda <= 0 {
		return 0
	}
	return int(s.dist.Rand())
}
