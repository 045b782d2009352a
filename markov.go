package csmaca

// markov.go holds the absorbing semi-Markov chain used by the analytic
// service-time model.  States are (backoff stage, backoff counter) pairs
// packed by ChainStateIndex; transition mass missing from a row is the
// absorption probability (a successful transmission leaves the chain).

import (
	"fmt"

	"github.com/iti/rngstream"
	"gonum.org/v1/gonum/mat"
)

// ChainStateIndex packs a (stage, backoff) pair into a state index.  Each
// stage i contributes cwmin * 2^i states; backoff 0 is the transmission
// state of the stage.
func ChainStateIndex(stage, backoff, cwmin int) int {
	return cwmin*(1<<stage-1) + backoff
}

// BackoffChainOrder gives the state count of a chain with stages 0..m and
// initial window w
func BackoffChainOrder(m, w int) int {
	return w * (1<<(m+1) - 1)
}

// BackoffChainMatrix builds the transition matrix of the backoff process:
// within a stage the counter decrements deterministically; a transmission
// state moves to the next stage (or stays in the last) with total mass p
// spread uniformly over that stage's window, and absorbs with mass 1-p.
func BackoffChainMatrix(m, w int, p float64) *mat.Dense {
	order := BackoffChainOrder(m, w)
	trans := mat.NewDense(order, order, nil)

	cw := w
	for i := 0; i <= m; i++ {
		for b := 1; b < cw; b++ {
			trans.Set(ChainStateIndex(i, b, w), ChainStateIndex(i, b-1, w), 1.0)
		}
		nextStage := i
		if i < m {
			cw *= 2
			nextStage = i + 1
		}
		spread := p / float64(cw)
		for b := 0; b < cw; b++ {
			trans.Set(ChainStateIndex(i, 0, w), ChainStateIndex(nextStage, b, w), spread)
		}
	}
	return trans
}

// SemiMarkovAbsorb is an absorbing semi-Markov process: a transition
// matrix whose row deficits are absorption probabilities, a holding-time
// distribution per state, and an initial distribution.
type SemiMarkovAbsorb struct {
	trans   *mat.Dense
	holding []Dist
	p0      []float64
	order   int
}

// CreateSemiMarkovAbsorb is a constructor.  It fails fast on dimension
// mismatches and on rows carrying more than unit mass.
func CreateSemiMarkovAbsorb(trans *mat.Dense, holding []Dist, p0 []float64) (*SemiMarkovAbsorb, error) {
	rows, cols := trans.Dims()
	if rows != cols {
		return nil, fmt.Errorf("transition matrix must be square, got %dx%d", rows, cols)
	}
	if len(holding) != rows {
		return nil, fmt.Errorf("need %d holding-time distributions, got %d", rows, len(holding))
	}
	if len(p0) != rows {
		return nil, fmt.Errorf("need %d initial probabilities, got %d", rows, len(p0))
	}

	const eps = 1e-9
	for i := 0; i < rows; i++ {
		var sum float64
		for j := 0; j < cols; j++ {
			v := trans.At(i, j)
			if v < 0.0 {
				return nil, fmt.Errorf("negative transition probability at (%d,%d)", i, j)
			}
			sum += v
		}
		if sum > 1.0+eps {
			return nil, fmt.Errorf("row %d carries mass %f > 1", i, sum)
		}
	}

	var p0sum float64
	for _, v := range p0 {
		if v < 0.0 {
			return nil, fmt.Errorf("negative initial probability")
		}
		p0sum += v
	}
	if p0sum < 1.0-eps || p0sum > 1.0+eps {
		return nil, fmt.Errorf("initial distribution sums to %f", p0sum)
	}

	return &SemiMarkovAbsorb{trans: trans, holding: holding, p0: p0, order: rows}, nil
}

// Order gives the number of transient states
func (smc *SemiMarkovAbsorb) Order() int {
	return smc.order
}

func (smc *SemiMarkovAbsorb) drawInitial(rng *rngstream.RngStream) int {
	u := rng.RandU01()
	var acc float64
	for idx, v := range smc.p0 {
		acc += v
		if u < acc {
			return idx
		}
	}
	return smc.order - 1
}

// samplePath walks the chain from a p0 draw until absorption and returns
// the accumulated holding time
func (smc *SemiMarkovAbsorb) samplePath(rng *rngstream.RngStream) float64 {
	state := smc.drawInitial(rng)
	var total float64
	for {
		total += smc.holding[state].Sample(rng)

		u := rng.RandU01()
		var acc float64
		next := -1
		for j := 0; j < smc.order; j++ {
			acc += smc.trans.At(state, j)
			if u < acc {
				next = j
				break
			}
		}
		if next < 0 {
			// the remaining mass is absorption
			return total
		}
		state = next
	}
}

// Generate draws n independent absorption-time samples
func (smc *SemiMarkovAbsorb) Generate(n int, rng *rngstream.RngStream) []float64 {
	samples := make([]float64, n)
	for idx := range samples {
		samples[idx] = smc.samplePath(rng)
	}
	return samples
}
