package csmaca

// dist.go holds the small family of scalar distributions used for payload
// sizes, source inter-arrival intervals, and the holding times of the
// absorbing chain.  All randomness flows through rngstream streams passed
// in explicitly, so a model built from a fixed set of stream names replays
// identically.

import (
	"fmt"
	"math"

	"github.com/iti/rngstream"
)

// Dist is a scalar distribution that can be sampled and that knows its mean.
type Dist interface {
	Sample(rng *rngstream.RngStream) float64
	Mean() float64
}

// ConstDist is a degenerate distribution
type ConstDist struct {
	Value float64
}

func (cd *ConstDist) Sample(rng *rngstream.RngStream) float64 { return cd.Value }
func (cd *ConstDist) Mean() float64                           { return cd.Value }

// UniformDist draws uniformly from [Low, High)
type UniformDist struct {
	Low, High float64
}

func (ud *UniformDist) Sample(rng *rngstream.RngStream) float64 {
	return ud.Low + (ud.High-ud.Low)*rng.RandU01()
}

func (ud *UniformDist) Mean() float64 {
	return 0.5 * (ud.Low + ud.High)
}

// ExpDist draws exponentially with the given mean
type ExpDist struct {
	MeanValue float64
}

func (ed *ExpDist) Sample(rng *rngstream.RngStream) float64 {
	return -ed.MeanValue * math.Log(1.0-rng.RandU01())
}

func (ed *ExpDist) Mean() float64 {
	return ed.MeanValue
}

// ChoiceDist draws one of its component distributions with the given
// weights, then samples it.  Weights need not be normalized.
type ChoiceDist struct {
	Dists   []Dist
	Weights []float64
}

// CreateChoiceDist is a constructor.  Component and weight counts must agree.
func CreateChoiceDist(dists []Dist, weights []float64) *ChoiceDist {
	if len(dists) != len(weights) {
		panic("choice distribution needs one weight per component")
	}
	return &ChoiceDist{Dists: dists, Weights: weights}
}

func (chd *ChoiceDist) total() float64 {
	var sum float64
	for _, w := range chd.Weights {
		sum += w
	}
	return sum
}

func (chd *ChoiceDist) Sample(rng *rngstream.RngStream) float64 {
	u := rng.RandU01() * chd.total()
	var acc float64
	for idx, w := range chd.Weights {
		acc += w
		if u < acc {
			return chd.Dists[idx].Sample(rng)
		}
	}
	// u landed on the accumulated total through rounding
	return chd.Dists[len(chd.Dists)-1].Sample(rng)
}

func (chd *ChoiceDist) Mean() float64 {
	var mean float64
	total := chd.total()
	for idx, w := range chd.Weights {
		mean += (w / total) * chd.Dists[idx].Mean()
	}
	return mean
}

// LinCombDist is a fixed-coefficient linear combination of component
// distributions: Sample() = sum_i Coeffs[i] * Dists[i].Sample().
type LinCombDist struct {
	Dists  []Dist
	Coeffs []float64
}

// CreateLinCombDist is a constructor
func CreateLinCombDist(dists []Dist, coeffs []float64) *LinCombDist {
	if len(dists) != len(coeffs) {
		panic("linear combination needs one coefficient per component")
	}
	return &LinCombDist{Dists: dists, Coeffs: coeffs}
}

func (lcd *LinCombDist) Sample(rng *rngstream.RngStream) float64 {
	var sum float64
	for idx, d := range lcd.Dists {
		sum += lcd.Coeffs[idx] * d.Sample(rng)
	}
	return sum
}

func (lcd *LinCombDist) Mean() float64 {
	var sum float64
	for idx, d := range lcd.Dists {
		sum += lcd.Coeffs[idx] * d.Mean()
	}
	return sum
}

// CreateDist builds a distribution from the (kind, value, spread) triple
// carried in NetConfig.  Recognized kinds are "const", "uniform" (value is
// the mean, spread the half-width), and "exp" (value is the mean).
func CreateDist(kind string, value, spread float64) (Dist, error) {
	switch kind {
	case "", "const":
		return &ConstDist{Value: value}, nil
	case "uniform":
		return &UniformDist{Low: value - spread, High: value + spread}, nil
	case "exp":
		return &ExpDist{MeanValue: value}, nil
	}
	return nil, fmt.Errorf("unknown distribution kind %q", kind)
}
