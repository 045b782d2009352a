package csmaca

import (
	"testing"

	"github.com/iti/rngstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstDist(t *testing.T) {
	rng := rngstream.New("dist-test-const")
	cd := &ConstDist{Value: 3.5}
	assert.Equal(t, 3.5, cd.Mean())
	for i := 0; i < 10; i++ {
		assert.Equal(t, 3.5, cd.Sample(rng))
	}
}

func TestUniformDistRangeAndMean(t *testing.T) {
	rng := rngstream.New("dist-test-uniform")
	ud := &UniformDist{Low: 2.0, High: 6.0}
	assert.Equal(t, 4.0, ud.Mean())

	st := CreateStatistic()
	for i := 0; i < 20000; i++ {
		x := ud.Sample(rng)
		assert.GreaterOrEqual(t, x, 2.0)
		assert.Less(t, x, 6.0)
		st.Append(x)
	}
	assert.InDelta(t, 4.0, st.Mean(), 0.05)
}

func TestExpDistMean(t *testing.T) {
	rng := rngstream.New("dist-test-exp")
	ed := &ExpDist{MeanValue: 2.0}
	assert.Equal(t, 2.0, ed.Mean())

	st := CreateStatistic()
	for i := 0; i < 50000; i++ {
		x := ed.Sample(rng)
		assert.GreaterOrEqual(t, x, 0.0)
		st.Append(x)
	}
	assert.InDelta(t, 2.0, st.Mean(), 0.05)
}

func TestChoiceDist(t *testing.T) {
	rng := rngstream.New("dist-test-choice")
	chd := CreateChoiceDist(
		[]Dist{&ConstDist{Value: 1.0}, &ConstDist{Value: 10.0}},
		[]float64{3.0, 1.0})

	// weighted mean, weights unnormalized
	assert.InDelta(t, 0.75*1.0+0.25*10.0, chd.Mean(), 1e-12)

	counts := map[float64]int{}
	for i := 0; i < 40000; i++ {
		counts[chd.Sample(rng)] += 1
	}
	assert.InDelta(t, 0.75, float64(counts[1.0])/40000.0, 0.02)
	assert.InDelta(t, 0.25, float64(counts[10.0])/40000.0, 0.02)
}

func TestChoiceDistMismatchPanics(t *testing.T) {
	require.Panics(t, func() {
		CreateChoiceDist([]Dist{&ConstDist{Value: 1.0}}, []float64{0.5, 0.5})
	})
}

func TestLinCombDist(t *testing.T) {
	rng := rngstream.New("dist-test-lincomb")
	lcd := CreateLinCombDist(
		[]Dist{&ConstDist{Value: 2.0}, &ConstDist{Value: 1000.0}},
		[]float64{1.0, 0.001})

	assert.InDelta(t, 3.0, lcd.Mean(), 1e-12)
	assert.InDelta(t, 3.0, lcd.Sample(rng), 1e-12)
}

func TestCreateDist(t *testing.T) {
	d, err := CreateDist("", 5.0, 0.0)
	require.NoError(t, err)
	assert.Equal(t, 5.0, d.Mean())

	d, err = CreateDist("const", 7.0, 0.0)
	require.NoError(t, err)
	assert.Equal(t, 7.0, d.Mean())

	d, err = CreateDist("uniform", 10.0, 2.0)
	require.NoError(t, err)
	ud := d.(*UniformDist)
	assert.Equal(t, 8.0, ud.Low)
	assert.Equal(t, 12.0, ud.High)

	d, err = CreateDist("exp", 0.5, 0.0)
	require.NoError(t, err)
	assert.Equal(t, 0.5, d.Mean())

	_, err = CreateDist("zipf", 1.0, 0.0)
	require.Error(t, err)
}
