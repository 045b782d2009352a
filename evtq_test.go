package csmaca

import (
	"testing"

	"github.com/iti/evt/vrtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventsFireInTimeOrder(t *testing.T) {
	evtMgr := CreateEventManager()
	fired := make([]int, 0)

	mark := func(evtMgr *EventManager, cxt any, data any) any {
		fired = append(fired, data.(int))
		return nil
	}

	evtMgr.Schedule(nil, 3, mark, vrtime.SecondsToTime(3.0))
	evtMgr.Schedule(nil, 1, mark, vrtime.SecondsToTime(1.0))
	evtMgr.Schedule(nil, 2, mark, vrtime.SecondsToTime(2.0))

	evtMgr.Run(10.0)
	assert.Equal(t, []int{1, 2, 3}, fired)
	assert.Equal(t, 3.0, evtMgr.CurrentSeconds())
}

func TestEqualTimeFIFO(t *testing.T) {
	evtMgr := CreateEventManager()
	fired := make([]int, 0)

	mark := func(evtMgr *EventManager, cxt any, data any) any {
		fired = append(fired, data.(int))
		return nil
	}

	for idx := 0; idx < 10; idx++ {
		evtMgr.Schedule(nil, idx, mark, vrtime.SecondsToTime(5.0))
	}

	evtMgr.Run(10.0)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, fired)
}

func TestZeroDelayNotInline(t *testing.T) {
	evtMgr := CreateEventManager()
	order := make([]string, 0)

	inner := func(evtMgr *EventManager, cxt any, data any) any {
		order = append(order, "inner")
		return nil
	}
	outer := func(evtMgr *EventManager, cxt any, data any) any {
		evtMgr.Schedule(nil, nil, inner, vrtime.SecondsToTime(0.0))
		order = append(order, "outer-done")
		return nil
	}

	evtMgr.Schedule(nil, nil, outer, vrtime.SecondsToTime(1.0))
	evtMgr.Run(10.0)

	// the zero-delay event runs after the scheduling callback returns
	assert.Equal(t, []string{"outer-done", "inner"}, order)
}

func TestZeroDelayChainKeepsScheduleOrder(t *testing.T) {
	evtMgr := CreateEventManager()
	order := make([]int, 0)

	mark := func(evtMgr *EventManager, cxt any, data any) any {
		order = append(order, data.(int))
		return nil
	}
	spawn := func(evtMgr *EventManager, cxt any, data any) any {
		evtMgr.Schedule(nil, 1, mark, vrtime.SecondsToTime(0.0))
		evtMgr.Schedule(nil, 2, mark, vrtime.SecondsToTime(0.0))
		evtMgr.Schedule(nil, 3, mark, vrtime.SecondsToTime(0.0))
		return nil
	}

	evtMgr.Schedule(nil, nil, spawn, vrtime.SecondsToTime(2.0))
	evtMgr.Run(10.0)
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestCancelEvent(t *testing.T) {
	evtMgr := CreateEventManager()
	firedA := false
	firedB := false

	markA := func(evtMgr *EventManager, cxt any, data any) any {
		firedA = true
		return nil
	}
	markB := func(evtMgr *EventManager, cxt any, data any) any {
		firedB = true
		return nil
	}

	evtA := evtMgr.Schedule(nil, nil, markA, vrtime.SecondsToTime(1.0))
	evtMgr.Schedule(nil, nil, markB, vrtime.SecondsToTime(2.0))

	evtMgr.CancelEvent(evtA)
	assert.True(t, evtA.Canceled())

	evtMgr.Run(10.0)
	assert.False(t, firedA)
	assert.True(t, firedB)
}

func TestCancelIsIdempotentAndNilSafe(t *testing.T) {
	evtMgr := CreateEventManager()

	noop := func(evtMgr *EventManager, cxt any, data any) any { return nil }
	evt := evtMgr.Schedule(nil, nil, noop, vrtime.SecondsToTime(1.0))

	evtMgr.CancelEvent(nil)
	evtMgr.CancelEvent(evt)
	evtMgr.CancelEvent(evt)
	evtMgr.Run(10.0)

	// canceling after the fact stays a no-op
	evtMgr.CancelEvent(evt)
}

func TestNegativeDelayPanics(t *testing.T) {
	evtMgr := CreateEventManager()
	noop := func(evtMgr *EventManager, cxt any, data any) any { return nil }

	require.Panics(t, func() {
		evtMgr.Schedule(nil, nil, noop, vrtime.SecondsToTime(-0.5))
	})
}

func TestRunStopsAtLimit(t *testing.T) {
	evtMgr := CreateEventManager()
	fired := 0

	mark := func(evtMgr *EventManager, cxt any, data any) any {
		fired += 1
		return nil
	}

	evtMgr.Schedule(nil, nil, mark, vrtime.SecondsToTime(1.0))
	evtMgr.Schedule(nil, nil, mark, vrtime.SecondsToTime(20.0))

	evtMgr.Run(10.0)
	assert.Equal(t, 1, fired)
	// the clock lands on the limit so time-normalized statistics see the
	// whole run
	assert.Equal(t, 10.0, evtMgr.CurrentSeconds())
}

func TestRunResumesAfterLimit(t *testing.T) {
	evtMgr := CreateEventManager()
	fired := make([]int, 0)

	mark := func(evtMgr *EventManager, cxt any, data any) any {
		fired = append(fired, data.(int))
		return nil
	}

	evtMgr.Schedule(nil, 1, mark, vrtime.SecondsToTime(1.0))
	evtMgr.Schedule(nil, 2, mark, vrtime.SecondsToTime(20.0))

	evtMgr.Run(10.0)
	assert.Equal(t, []int{1}, fired)
	assert.Equal(t, 10.0, evtMgr.CurrentSeconds())

	// the event beyond the first limit stayed queued
	evtMgr.Run(30.0)
	assert.Equal(t, []int{1, 2}, fired)
	assert.Equal(t, 20.0, evtMgr.CurrentSeconds())
}

func TestStopEndsRun(t *testing.T) {
	evtMgr := CreateEventManager()
	fired := 0

	stopAfterTwo := func(evtMgr *EventManager, cxt any, data any) any {
		fired += 1
		if fired == 2 {
			evtMgr.Stop()
		}
		return nil
	}

	for idx := 0; idx < 5; idx++ {
		evtMgr.Schedule(nil, nil, stopAfterTwo, vrtime.SecondsToTime(float64(idx+1)))
	}

	evtMgr.Run(100.0)
	assert.Equal(t, 2, fired)
}
