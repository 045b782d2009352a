package csmaca

import (
	"testing"

	"github.com/iti/rngstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestChainStateIndex(t *testing.T) {
	assert.Equal(t, 0, ChainStateIndex(0, 0, 2))
	assert.Equal(t, 3, ChainStateIndex(0, 3, 4))
	assert.Equal(t, 10, ChainStateIndex(1, 2, 8))
	assert.Equal(t, 22, ChainStateIndex(2, 10, 4))
}

func TestBackoffChainOrder(t *testing.T) {
	assert.Equal(t, 4, BackoffChainOrder(0, 4))
	assert.Equal(t, 14, BackoffChainOrder(2, 2))
	assert.Equal(t, 24, BackoffChainOrder(1, 8))
}

func TestBackoffChainMatrixSingleStage(t *testing.T) {
	p := 0.5
	trans := BackoffChainMatrix(0, 4, p)
	rows, cols := trans.Dims()
	require.Equal(t, 4, rows)
	require.Equal(t, 4, cols)

	// the transmission state retries into its own stage with mass p
	for b := 0; b < 4; b++ {
		assert.InDelta(t, p/4.0, trans.At(0, b), 1e-12)
	}
	// countdown states decrement deterministically
	for b := 1; b < 4; b++ {
		for j := 0; j < 4; j++ {
			want := 0.0
			if j == b-1 {
				want = 1.0
			}
			assert.InDelta(t, want, trans.At(b, j), 1e-12)
		}
	}
}

func TestBackoffChainMatrixThreeStages(t *testing.T) {
	p := 0.2
	trans := BackoffChainMatrix(2, 2, p)
	rows, cols := trans.Dims()
	require.Equal(t, 14, rows)
	require.Equal(t, 14, cols)

	// stage 0: states 0..1, transmission spreads p over stage 1 (states 2..5)
	assert.InDelta(t, 1.0, trans.At(1, 0), 1e-12)
	for j := 2; j < 6; j++ {
		assert.InDelta(t, p/4.0, trans.At(0, j), 1e-12)
	}

	// stage 1: states 2..5, transmission spreads p over stage 2 (states 6..13)
	for b := 1; b < 4; b++ {
		assert.InDelta(t, 1.0, trans.At(2+b, 2+b-1), 1e-12)
	}
	for j := 6; j < 14; j++ {
		assert.InDelta(t, p/8.0, trans.At(2, j), 1e-12)
	}

	// stage 2 is last: the transmission state retries into its own window
	for b := 1; b < 8; b++ {
		assert.InDelta(t, 1.0, trans.At(6+b, 6+b-1), 1e-12)
	}
	for j := 6; j < 14; j++ {
		assert.InDelta(t, p/8.0, trans.At(6, j), 1e-12)
	}

	// every transmission row carries mass p, leaving 1-p for absorption;
	// every countdown row carries full mass
	for i := 0; i < rows; i++ {
		var sum float64
		for j := 0; j < cols; j++ {
			sum += trans.At(i, j)
		}
		if i == 0 || i == 2 || i == 6 {
			assert.InDelta(t, p, sum, 1e-12)
		} else {
			assert.InDelta(t, 1.0, sum, 1e-12)
		}
	}
}

func TestCreateSemiMarkovAbsorbValidation(t *testing.T) {
	holding := []Dist{&ConstDist{Value: 1.0}, &ConstDist{Value: 1.0}}
	p0 := []float64{1.0, 0.0}

	_, err := CreateSemiMarkovAbsorb(mat.NewDense(2, 3, nil), holding, p0)
	assert.Error(t, err)

	_, err = CreateSemiMarkovAbsorb(mat.NewDense(2, 2, nil), holding[:1], p0)
	assert.Error(t, err)

	_, err = CreateSemiMarkovAbsorb(mat.NewDense(2, 2, nil), holding, []float64{1.0})
	assert.Error(t, err)

	overloaded := mat.NewDense(2, 2, []float64{0.8, 0.8, 0.0, 0.0})
	_, err = CreateSemiMarkovAbsorb(overloaded, holding, p0)
	assert.Error(t, err)

	_, err = CreateSemiMarkovAbsorb(mat.NewDense(2, 2, nil), holding, []float64{0.4, 0.4})
	assert.Error(t, err)

	smc, err := CreateSemiMarkovAbsorb(
		mat.NewDense(2, 2, []float64{0.0, 0.5, 0.0, 0.0}), holding, p0)
	require.NoError(t, err)
	assert.Equal(t, 2, smc.Order())
}

func TestSemiMarkovAbsorbDeterministicPath(t *testing.T) {
	rng := rngstream.New("markov-test-path")

	// state 0 always moves to state 1, state 1 always absorbs
	trans := mat.NewDense(2, 2, []float64{0.0, 1.0, 0.0, 0.0})
	holding := []Dist{&ConstDist{Value: 1.0}, &ConstDist{Value: 3.0}}
	smc, err := CreateSemiMarkovAbsorb(trans, holding, []float64{1.0, 0.0})
	require.NoError(t, err)

	for _, sample := range smc.Generate(100, rng) {
		assert.InDelta(t, 4.0, sample, 1e-12)
	}
}

func TestSemiMarkovAbsorbGeometricRetries(t *testing.T) {
	rng := rngstream.New("markov-test-geom")

	// a single state that retries itself with probability 0.5: the visit
	// count is geometric with mean 2
	trans := mat.NewDense(1, 1, []float64{0.5})
	holding := []Dist{&ConstDist{Value: 1.0}}
	smc, err := CreateSemiMarkovAbsorb(trans, holding, []float64{1.0})
	require.NoError(t, err)

	st := CreateStatistic()
	for _, sample := range smc.Generate(50000, rng) {
		st.Append(sample)
	}
	assert.InDelta(t, 2.0, st.Mean(), 0.05)
}
