package csmaca

// stats.go holds the statistics accumulators the protocol modules feed:
// plain sample collections, time-weighted step traces, and inter-event
// interval recorders.

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Statistic accumulates scalar samples and reports moments over them.
type Statistic struct {
	samples []float64
}

// CreateStatistic is a constructor
func CreateStatistic() *Statistic {
	st := new(Statistic)
	st.samples = make([]float64, 0)
	return st
}

// Append adds one sample
func (st *Statistic) Append(x float64) {
	st.samples = append(st.samples, x)
}

// Count gives the number of samples recorded so far
func (st *Statistic) Count() int {
	return len(st.samples)
}

// Mean gives the sample mean, zero when empty
func (st *Statistic) Mean() float64 {
	if len(st.samples) == 0 {
		return 0.0
	}
	return stat.Mean(st.samples, nil)
}

// Variance gives the unbiased sample variance, zero when fewer than two samples
func (st *Statistic) Variance() float64 {
	if len(st.samples) < 2 {
		return 0.0
	}
	return stat.Variance(st.samples, nil)
}

// StdDev gives the sample standard deviation
func (st *Statistic) StdDev() float64 {
	return math.Sqrt(st.Variance())
}

// Samples exposes the raw sample slice, e.g. for quantile work in drivers
func (st *Statistic) Samples() []float64 {
	return st.samples
}

// TimeTrace records a right-continuous step function of virtual time, the
// representation behind busy traces and queue-size traces.  Records with
// non-decreasing timestamps are assumed; the protocol code guarantees that
// because the kernel clock never runs backwards.
type TimeTrace struct {
	times  []float64
	values []float64
}

// CreateTimeTrace is a constructor
func CreateTimeTrace() *TimeTrace {
	tt := new(TimeTrace)
	tt.times = make([]float64, 0)
	tt.values = make([]float64, 0)
	return tt
}

// Record notes that the traced quantity took value v at time t
func (tt *TimeTrace) Record(t, v float64) {
	tt.times = append(tt.times, t)
	tt.values = append(tt.values, v)
}

// Count gives the number of recorded points
func (tt *TimeTrace) Count() int {
	return len(tt.times)
}

// Last gives the most recently recorded value, zero when empty
func (tt *TimeTrace) Last() float64 {
	if len(tt.values) == 0 {
		return 0.0
	}
	return tt.values[len(tt.values)-1]
}

// TimeAvg integrates the step function up to time until and divides by the
// elapsed span.  A trace whose span is empty reports zero.
func (tt *TimeTrace) TimeAvg(until float64) float64 {
	if len(tt.times) == 0 || until <= tt.times[0] {
		return 0.0
	}
	var area float64
	for idx := 0; idx < len(tt.times); idx++ {
		end := until
		if idx+1 < len(tt.times) && tt.times[idx+1] < until {
			end = tt.times[idx+1]
		}
		if end > tt.times[idx] {
			area += tt.values[idx] * (end - tt.times[idx])
		}
	}
	span := until - tt.times[0]
	return area / span
}

// Intervals records the gaps between successive event timestamps, e.g.
// packet inter-arrival times at a sink.
type Intervals struct {
	last     float64
	recorded bool
	stat     *Statistic
}

// CreateIntervals is a constructor
func CreateIntervals() *Intervals {
	iv := new(Intervals)
	iv.stat = CreateStatistic()
	return iv
}

// Record notes an event at time t; every call after the first contributes
// one interval sample
func (iv *Intervals) Record(t float64) {
	if iv.recorded {
		iv.stat.Append(t - iv.last)
	}
	iv.last = t
	iv.recorded = true
}

// Statistic gives the accumulated interval samples
func (iv *Intervals) Statistic() *Statistic {
	return iv.stat
}
