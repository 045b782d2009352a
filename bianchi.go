package csmaca

// bianchi.go holds the analytic saturated-throughput model: the fixed
// point over collision probability p and transmission probability tau,
// the slot-type time and probability tables, and the service-time
// estimate built by sampling the absorbing backoff chain.

import (
	"math"

	"github.com/iti/rngstream"
	"github.com/pkg/errors"
)

// BianchiParams carries the solved model parameters: M backoff stages,
// N contending clients, initial window W, collision probability P and
// per-slot transmission probability Tau.
type BianchiParams struct {
	M   int
	N   int
	W   int
	P   float64
	Tau float64
}

// tauFromP evaluates tau = 2 / (1 + W + p W sum_{i<m} (2p)^i)
func tauFromP(p float64, m, w int) float64 {
	var sum float64
	for i := 0; i < m; i++ {
		sum += math.Pow(2.0*p, float64(i))
	}
	return 2.0 / (1.0 + float64(w) + p*float64(w)*sum)
}

// SolveBianchiParams solves the two-equation fixed point
//
//	p   = 1 - (1 - tau)^(n-1)
//	tau = 2 / (1 + W + p W sum_{i<m} (2p)^i)
//
// by damped iteration from (0.5, 0.5)
func SolveBianchiParams(numClients, cwmin, cwmax int) (BianchiParams, error) {
	stages := math.Log2(float64(cwmax) / float64(cwmin))
	if math.Abs(stages-math.Round(stages)) > 1e-9 {
		return BianchiParams{}, errors.New("cwmax must be cwmin times a power of two")
	}
	m := int(math.Round(stages))

	params := BianchiParams{M: m, N: numClients, W: cwmin}
	if numClients <= 1 {
		// a lone client never collides
		params.P = 0.0
		params.Tau = tauFromP(0.0, m, cwmin)
		return params, nil
	}

	p := 0.5
	tau := 0.5
	for iter := 0; iter < 100000; iter++ {
		tauNext := tauFromP(p, m, cwmin)
		pNext := 1.0 - math.Pow(1.0-tauNext, float64(numClients-1))

		dp := pNext - p
		dtau := tauNext - tau
		p += 0.5 * dp
		tau += 0.5 * dtau
		if math.Abs(dp) < 1e-12 && math.Abs(dtau) < 1e-12 {
			break
		}
	}
	params.P = p
	params.Tau = tau
	return params, nil
}

// BianchiSlotTimes holds the duration distribution of each slot type an
// observing station can see
type BianchiSlotTimes struct {
	Empty    Dist
	Data     Dist
	Collided Dist
}

// GetBianchiSlotTimes builds the slot duration distributions.  A data slot
// covers DIFS, the data frame overheads, SIFS, the ACK and two propagation
// legs; a collided slot is the same with the worst-case six-leg margin the
// ACK timeout carries.
func GetBianchiSlotTimes(payload Dist, ack, machdr, phyhdr int,
	preamble, bitrate, difs, sifs, slot, distance, c float64) BianchiSlotTimes {

	propagation := distance / c
	tDataCtrl := preamble + float64(machdr+phyhdr)/bitrate
	tAck := preamble + float64(phyhdr+ack)/bitrate

	dataFixed := difs + sifs + 2.0*propagation + tDataCtrl + tAck
	collFixed := difs + sifs + 6.0*propagation + tDataCtrl + tAck

	return BianchiSlotTimes{
		Empty: &ConstDist{Value: slot},
		Data: CreateLinCombDist(
			[]Dist{&ConstDist{Value: dataFixed}, payload},
			[]float64{1.0, 1.0 / bitrate}),
		Collided: CreateLinCombDist(
			[]Dist{&ConstDist{Value: collFixed}, payload},
			[]float64{1.0, 1.0 / bitrate}),
	}
}

// BianchiSlotProbs holds the slot-type probabilities seen by a station:
// while counting down (wait) and while transmitting (trans)
type BianchiSlotProbs struct {
	WaitEmpty     float64
	WaitSuccess   float64
	WaitCollided  float64
	TransSuccess  float64
	TransCollided float64
}

// GetBianchiSlotProbs evaluates the slot-type probabilities.  The wait
// rows use n-1 contenders because the observed station is in backoff.
func GetBianchiSlotProbs(params BianchiParams) BianchiSlotProbs {
	if params.N <= 1 {
		return BianchiSlotProbs{
			WaitEmpty:     1.0,
			TransSuccess:  1.0 - params.P,
			TransCollided: params.P,
		}
	}
	n := float64(params.N)
	tau := params.Tau
	pTr := 1.0 - math.Pow(1.0-tau, n-1.0)
	pS := (n - 1.0) * tau * math.Pow(1.0-tau, n-2.0) / pTr
	return BianchiSlotProbs{
		WaitEmpty:     1.0 - pTr,
		WaitSuccess:   pTr * pS,
		WaitCollided:  pTr * (1.0 - pS),
		TransSuccess:  1.0 - params.P,
		TransCollided: params.P,
	}
}

// BianchiCollisionProbability gives the probability that a busy slot of
// the whole network carries a collision
func BianchiCollisionProbability(params BianchiParams) float64 {
	n := float64(params.N)
	tau := params.Tau
	pTr := 1.0 - math.Pow(1.0-tau, n)
	pS := n * tau * math.Pow(1.0-tau, n-1.0) / pTr
	return pTr * (1.0 - pS)
}

// BianchiThroughput gives the saturated payload throughput in bits per
// second for the given mean slot durations
func BianchiThroughput(params BianchiParams, payloadMean, tEmpty, tData, tColl float64) float64 {
	n := float64(params.N)
	tau := params.Tau
	pTr := 1.0 - math.Pow(1.0-tau, n)
	pS := n * tau * math.Pow(1.0-tau, n-1.0) / pTr
	pC := pTr * (1.0 - pS)
	return pS * pTr * payloadMean /
		((1.0-pTr)*tEmpty + pTr*pS*tData + pC*tColl)
}

// buildServiceChain assembles the absorbing chain for the given parameters
// and slot tables.  Holding times are assigned for every stage 0..m; the
// last stage keeps its window on retry.
func buildServiceChain(params BianchiParams, times BianchiSlotTimes,
	probs BianchiSlotProbs) (*SemiMarkovAbsorb, error) {

	order := BackoffChainOrder(params.M, params.W)
	trans := BackoffChainMatrix(params.M, params.W, params.P)

	waitDist := CreateChoiceDist(
		[]Dist{times.Empty, times.Data, times.Collided},
		[]float64{probs.WaitEmpty, probs.WaitSuccess, probs.WaitCollided})
	transDist := CreateChoiceDist(
		[]Dist{times.Collided, times.Data},
		[]float64{probs.TransCollided, probs.TransSuccess})

	holding := make([]Dist, order)
	for i := 0; i <= params.M; i++ {
		cw := params.W * (1 << i)
		for b := 1; b < cw; b++ {
			holding[ChainStateIndex(i, b, params.W)] = waitDist
		}
		holding[ChainStateIndex(i, 0, params.W)] = transDist
	}

	p0 := make([]float64, order)
	for b := 0; b < params.W; b++ {
		p0[b] = 1.0 / float64(params.W)
	}

	return CreateSemiMarkovAbsorb(trans, holding, p0)
}

// BianchiServiceTime is the analytic estimate of the saturated MAC
// service time and its companions
type BianchiServiceTime struct {
	Mean       float64
	Std        float64
	PCollision float64
	Throughput float64
	Params     BianchiParams
}

// EstimateBianchiServiceTime solves the model for the given network and
// estimates the service time by sampling numSamples absorption paths of
// the backoff chain
func EstimateBianchiServiceTime(numClients int, payload Dist,
	ackSize, macHeaderSize, phyHeaderSize int,
	preamble, bitrate, difs, sifs, slot float64, cwmin, cwmax int,
	distance, c float64, numSamples int,
	rng *rngstream.RngStream) (BianchiServiceTime, error) {

	params, perr := SolveBianchiParams(numClients, cwmin, cwmax)
	if perr != nil {
		return BianchiServiceTime{}, perr
	}

	times := GetBianchiSlotTimes(payload, ackSize, macHeaderSize, phyHeaderSize,
		preamble, bitrate, difs, sifs, slot, distance, c)
	probs := GetBianchiSlotProbs(params)

	chain, cerr := buildServiceChain(params, times, probs)
	if cerr != nil {
		return BianchiServiceTime{}, errors.Wrap(cerr, "building service-time chain")
	}

	st := CreateStatistic()
	for _, sample := range chain.Generate(numSamples, rng) {
		st.Append(sample)
	}

	ret := BianchiServiceTime{
		Mean:   st.Mean(),
		Std:    st.StdDev(),
		Params: params,
	}
	if numClients > 1 {
		ret.PCollision = BianchiCollisionProbability(params)
	}
	ret.Throughput = BianchiThroughput(params, payload.Mean(),
		times.Empty.Mean(), times.Data.Mean(), times.Collided.Mean())
	return ret, nil
}
