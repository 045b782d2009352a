package csmaca

import (
	"testing"

	"github.com/iti/rngstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolveBianchiParamsFixedPoints(t *testing.T) {
	params, err := SolveBianchiParams(5, 4, 4)
	require.NoError(t, err)
	assert.Equal(t, 0, params.M)
	assert.Equal(t, 4, params.W)
	assert.InDelta(t, 0.870, params.P, 0.005)
	assert.InDelta(t, 0.400, params.Tau, 0.005)

	params, err = SolveBianchiParams(5, 2, 8)
	require.NoError(t, err)
	assert.Equal(t, 2, params.M)
	assert.InDelta(t, 0.753, params.P, 0.005)
	assert.InDelta(t, 0.295, params.Tau, 0.005)

	params, err = SolveBianchiParams(3, 8, 16)
	require.NoError(t, err)
	assert.Equal(t, 1, params.M)
	assert.InDelta(t, 0.317, params.P, 0.005)
	assert.InDelta(t, 0.173, params.Tau, 0.005)
}

func TestSolveBianchiParamsSingleClient(t *testing.T) {
	params, err := SolveBianchiParams(1, 4, 16)
	require.NoError(t, err)
	assert.Equal(t, 0.0, params.P)
	// tau = 2 / (1 + W) with no collisions
	assert.InDelta(t, 2.0/5.0, params.Tau, 1e-12)
}

func TestSolveBianchiParamsRejectsBadWindows(t *testing.T) {
	_, err := SolveBianchiParams(5, 5, 7)
	assert.Error(t, err)
	_, err = SolveBianchiParams(5, 3, 4)
	assert.Error(t, err)
}

func TestGetBianchiSlotTimes(t *testing.T) {
	payload := &ConstDist{Value: 1000.0}
	times := GetBianchiSlotTimes(payload, 250, 100, 50,
		0.05, 500.0, 0.5, 0.25, 0.1, 10.0, 200.0)

	propagation := 10.0 / 200.0
	tDataCtrl := 0.05 + 150.0/500.0
	tAck := 0.05 + 300.0/500.0

	assert.InDelta(t, 0.1, times.Empty.Mean(), 1e-12)
	assert.InDelta(t, 0.5+0.25+2.0*propagation+tDataCtrl+tAck+2.0,
		times.Data.Mean(), 1e-12)
	assert.InDelta(t, 0.5+0.25+6.0*propagation+tDataCtrl+tAck+2.0,
		times.Collided.Mean(), 1e-12)
}

func TestGetBianchiSlotProbs(t *testing.T) {
	params, err := SolveBianchiParams(5, 4, 4)
	require.NoError(t, err)

	probs := GetBianchiSlotProbs(params)
	assert.InDelta(t, 1.0,
		probs.WaitEmpty+probs.WaitSuccess+probs.WaitCollided, 1e-9)
	assert.InDelta(t, 1.0, probs.TransSuccess+probs.TransCollided, 1e-9)
	assert.InDelta(t, params.P, probs.TransCollided, 1e-12)
	assert.Greater(t, probs.WaitCollided, 0.0)
}

func TestGetBianchiSlotProbsSingleClient(t *testing.T) {
	params, err := SolveBianchiParams(1, 2, 8)
	require.NoError(t, err)

	probs := GetBianchiSlotProbs(params)
	assert.Equal(t, 1.0, probs.WaitEmpty)
	assert.Equal(t, 0.0, probs.WaitSuccess)
	assert.Equal(t, 0.0, probs.WaitCollided)
	assert.Equal(t, 1.0, probs.TransSuccess)
	assert.Equal(t, 0.0, probs.TransCollided)
}

func TestEstimateBianchiServiceTimeSingleClient(t *testing.T) {
	rng := rngstream.New("bianchi-test-single")
	payload := &ConstDist{Value: 1000.0}

	est, err := EstimateBianchiServiceTime(1, payload,
		100, 50, 25, // ack, mac header, phy header
		1e-3, 1000.0, // preamble, bitrate
		0.2, 0.1, 0.05, // difs, sifs, slot
		2, 8, // cwmin, cwmax
		100.0, 1e5, // distance, propagation speed
		10000, rng)
	require.NoError(t, err)

	// with one client the chain absorbs after the first transmission: the
	// service time is one data slot plus the initial countdown, on average
	// half an empty slot with cwmin 2
	tData := 0.2 + 0.1 + 2.0*(100.0/1e5) +
		(1e-3 + 75.0/1000.0) + (1e-3 + 125.0/1000.0) + 1000.0/1000.0
	assert.InDelta(t, tData+0.5*0.05, est.Mean, 0.005)
	assert.InEpsilon(t, 1.504, est.Mean, 0.10)
	assert.Equal(t, 0.0, est.PCollision)
	assert.Greater(t, est.Throughput, 0.0)
}

func TestEstimateBianchiServiceTimeContention(t *testing.T) {
	rng := rngstream.New("bianchi-test-contention")
	payload := &ConstDist{Value: 1000.0}

	single, err := EstimateBianchiServiceTime(1, payload,
		100, 50, 25, 1e-3, 1000.0, 0.2, 0.1, 0.05, 2, 8,
		100.0, 1e5, 5000, rng)
	require.NoError(t, err)

	crowded, err := EstimateBianchiServiceTime(5, payload,
		100, 50, 25, 1e-3, 1000.0, 0.2, 0.1, 0.05, 2, 8,
		100.0, 1e5, 5000, rng)
	require.NoError(t, err)

	// contention stretches the service time and makes collisions likely
	assert.Greater(t, crowded.Mean, single.Mean)
	assert.Greater(t, crowded.PCollision, 0.0)
	assert.LessOrEqual(t, crowded.PCollision, 1.0)
	assert.Greater(t, crowded.Std, 0.0)
	assert.Less(t, crowded.Throughput, single.Throughput)
}
