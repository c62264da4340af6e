// Package duration samples plausible task durations for the simulation.
//
// Multi-worker tasks draw from their template's [min, max] time window and are
// scaled down as more workers are assigned. Single-worker picks are predicted from
// a six-value feature vector weighted by externally supplied importance scores.
// Every random draw comes from the *rand.Rand handed to New, so a fixed seed
// reproduces a run exactly.
package duration

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// NumFeatures is the length of a pick feature vector.
const NumFeatures = 6

// DefaultJitter is the symmetric multiplicative jitter applied to sampled features.
const DefaultJitter = 0.05

// DefaultScalingExponent shapes PowerScaling when nothing else is configured.
const DefaultScalingExponent = 0.7

// ErrInvalidParams is returned by Params.Validate.
var ErrInvalidParams = errors.New("invalid duration params")

// Features is the feature vector of a pick. The field order is fixed and
// matches the index order of Params.Weights and Params.Ranges.
type Features struct {
	Distance   float64 `json:"distance" yaml:"distance"`
	PackAmount float64 `json:"pack_amount" yaml:"pack_amount"`
	Lines      float64 `json:"lines" yaml:"lines"`
	Weight     float64 `json:"weight" yaml:"weight"`
	Volume     float64 `json:"volume" yaml:"volume"`
	AvgHeight  float64 `json:"avg_height" yaml:"avg_height"`
}

// Vector returns the features in canonical order.
func (f Features) Vector() [NumFeatures]float64 {
	return [NumFeatures]float64{f.Distance, f.PackAmount, f.Lines, f.Weight, f.Volume, f.AvgHeight}
}

// FeaturesFromVector is the inverse of Features.Vector.
func FeaturesFromVector(v [NumFeatures]float64) Features {
	return Features{
		Distance:   v[0],
		PackAmount: v[1],
		Lines:      v[2],
		Weight:     v[3],
		Volume:     v[4],
		AvgHeight:  v[5],
	}
}

// Range is an inclusive [Min, Max] interval.
type Range struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Params are the learned importance weights and per-feature ranges for one
// zone category. Weights convert feature units into seconds.
type Params struct {
	Weights [NumFeatures]float64 `json:"weights" yaml:"weights"`
	Ranges  [NumFeatures]Range   `json:"ranges" yaml:"ranges"`
}

// Validate rejects negative or non-finite weights and inverted ranges.
func (p Params) Validate() error {
	for i := range NumFeatures {
		w := p.Weights[i]
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return fmt.Errorf("%w: weight %d is %v", ErrInvalidParams, i, w)
		}
		r := p.Ranges[i]
		if math.IsNaN(r.Min) || math.IsNaN(r.Max) || r.Min > r.Max {
			return fmt.Errorf("%w: range %d is [%v, %v]", ErrInvalidParams, i, r.Min, r.Max)
		}
	}
	return nil
}

// ScalingFunc returns the factor applied to a base duration when workers are
// assigned to a task whose template needs at least minWorkers.
type ScalingFunc func(workers, minWorkers int) float64

// PowerScaling returns (minWorkers/workers)^exp. With 0 < exp < 1 every extra
// worker still helps but by less than the one before.
func PowerScaling(exp float64) ScalingFunc {
	return func(workers, minWorkers int) float64 {
		if workers <= 0 || minWorkers <= 0 || workers <= minWorkers {
			return 1
		}
		return math.Pow(float64(minWorkers)/float64(workers), exp)
	}
}

// NoScaling ignores headcount.
func NoScaling(int, int) float64 { return 1 }

// Model samples durations.
type Model struct {
	rng     *rand.Rand
	scaling ScalingFunc
	jitter  float64
}

// Option configures a Model.
type Option func(*Model)

// WithScaling sets the headcount scaling policy.
func WithScaling(fn ScalingFunc) Option {
	return func(m *Model) {
		if fn != nil {
			m.scaling = fn
		}
	}
}

// WithJitter sets the relative feature jitter. Negative values are ignored.
func WithJitter(j float64) Option {
	return func(m *Model) {
		if j >= 0 {
			m.jitter = j
		}
	}
}

// New creates a model drawing from rng.
func New(rng *rand.Rand, opts ...Option) *Model {
	if rng == nil {
		rng = rand.New(rand.NewPCG(0, 0))
	}
	m := &Model{
		rng:     rng,
		scaling: PowerScaling(DefaultScalingExponent),
		jitter:  DefaultJitter,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SampleMulti draws a duration for a multi-worker task. The base is uniform in
// [minTime, maxTime], scaled by headcount and divided by the mean efficiency
// of the assigned workers. The result is rounded to hundredths of a minute.
func (m *Model) SampleMulti(minTime, maxTime time.Duration, minWorkers int, efficiencies []float64) time.Duration {
	if maxTime < minTime {
		minTime, maxTime = maxTime, minTime
	}
	lo, hi := minTime.Minutes(), maxTime.Minutes()
	base := lo + m.rng.Float64()*(hi-lo)

	minutes := base * m.scaling(len(efficiencies), minWorkers) / meanEfficiency(efficiencies)
	return minutesToDuration(Round2(minutes))
}

// SampleUniform draws a feature vector uniformly within p.Ranges, rounded to
// two decimals and not jittered.
func (m *Model) SampleUniform(p Params) Features {
	var v [NumFeatures]float64
	for i, r := range p.Ranges {
		v[i] = Round2(r.Min + m.rng.Float64()*(r.Max-r.Min))
	}
	return FeaturesFromVector(v)
}

// SampleFeatures draws a feature vector uniformly within p.Ranges and jitters it.
func (m *Model) SampleFeatures(p Params) Features {
	return m.Jitter(m.SampleUniform(p))
}

// Jitter perturbs each feature by a symmetric multiplicative factor and rounds
// to two decimals.
func (m *Model) Jitter(f Features) Features {
	v := f.Vector()
	for i := range v {
		factor := 1 + (m.rng.Float64()*2-1)*m.jitter
		v[i] = Round2(v[i] * factor)
	}
	return FeaturesFromVector(v)
}

// PredictSingle returns the weighted feature sum as a duration, never negative.
func PredictSingle(f Features, p Params) time.Duration {
	v := f.Vector()
	var seconds float64
	for i := range v {
		seconds += p.Weights[i] * v[i]
	}
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	seconds = Round2(seconds)
	if seconds >= maxSeconds {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(seconds * float64(time.Second))
}

// maxSeconds is the longest duration time.Duration can hold, in seconds.
const maxSeconds = float64(math.MaxInt64) / float64(time.Second)

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// meanEfficiency treats missing or non-positive efficiencies as 1.
func meanEfficiency(efficiencies []float64) float64 {
	if len(efficiencies) == 0 {
		return 1
	}
	var sum float64
	for _, e := range efficiencies {
		if e <= 0 || math.IsNaN(e) {
			e = 1
		}
		sum += e
	}
	return sum / float64(len(efficiencies))
}

func minutesToDuration(minutes float64) time.Duration {
	return time.Duration(math.Round(minutes * float64(time.Minute)))
}
