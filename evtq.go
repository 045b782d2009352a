package csmaca

// evtq.go holds the simulation event kernel: a priority queue of
// timestamped callbacks, the virtual clock, and the run loop.
//
// The kernel is single-threaded and non-preemptive.  One callback runs to
// completion before the next event is considered, and callbacks are free to
// schedule or cancel other events while they run.  Scheduling with a zero
// offset never executes inline; the new event fires strictly after the
// current callback returns, in the order it was scheduled relative to other
// events carrying the same timestamp.

import (
	"container/heap"
	"fmt"

	"github.com/iti/evt/vrtime"
)

// EventHandlerFunction is the signature of every scheduled callback.
// context identifies the object the event belongs to, data carries the
// event payload; both are recovered by type assertion in the handler.
type EventHandlerFunction func(evtMgr *EventManager, context any, data any) any

// Event is a scheduled callback.  It is owned by the EventManager from the
// Schedule call until it fires or is canceled.  Cancellation tombstones the
// event in place; the heap is not restructured.
type Event struct {
	time     vrtime.Time
	seq      int64
	context  any
	data     any
	hdlr     EventHandlerFunction
	canceled bool
	fired    bool
}

// Time gives the virtual time at which the event fires (or would have).
func (evt *Event) Time() vrtime.Time {
	return evt.time
}

// Canceled reports whether the event was tombstoned before firing.
func (evt *Event) Canceled() bool {
	return evt.canceled
}

// evtHeap implements a min-heap ordered by firing time, with the
// scheduling sequence number breaking ties.  The tie-break is load-bearing:
// protocol code relies on equal-timestamp events firing in schedule order
// (e.g., the zero-delay notification chain after an ACK).
type evtHeap []*Event

func (h evtHeap) Len() int { return len(h) }

func (h evtHeap) Less(i, j int) bool {
	if h[i].time.Ticks() != h[j].time.Ticks() {
		return h[i].time.Ticks() < h[j].time.Ticks()
	}
	return h[i].seq < h[j].seq
}

func (h evtHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *evtHeap) Push(x any) {
	*h = append(*h, x.(*Event))
}

func (h *evtHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[0 : n-1]
	return x
}

// EventManager owns the event queue and the virtual clock.  The clock is
// monotonically non-decreasing and advances only when an event is popped.
type EventManager struct {
	evtQueue evtHeap
	now      vrtime.Time
	nxtSeq   int64
	running  bool
}

// CreateEventManager is a constructor.  The clock starts at virtual zero.
func CreateEventManager() *EventManager {
	evtMgr := new(EventManager)
	evtMgr.evtQueue = make(evtHeap, 0)
	evtMgr.now = vrtime.SecondsToTime(0.0)
	heap.Init(&evtMgr.evtQueue)
	return evtMgr
}

// CurrentTime gives the virtual clock as a vrtime.Time
func (evtMgr *EventManager) CurrentTime() vrtime.Time {
	return evtMgr.now
}

// CurrentSeconds gives the virtual clock in seconds
func (evtMgr *EventManager) CurrentSeconds() float64 {
	return evtMgr.now.Seconds()
}

// Schedule creates an event that calls hdlr(evtMgr, cxt, data) offset time
// units after the current clock value, and returns a handle usable with
// CancelEvent.  A negative offset is a modeling bug and panics immediately.
func (evtMgr *EventManager) Schedule(cxt any, data any,
	hdlr EventHandlerFunction, offset vrtime.Time) *Event {

	if offset.Seconds() < 0.0 {
		panic(fmt.Sprintf("event scheduled with negative offset %f", offset.Seconds()))
	}

	evt := &Event{
		time:    vrtime.SecondsToTime(evtMgr.now.Seconds() + offset.Seconds()),
		seq:     evtMgr.nxtSeq,
		context: cxt,
		data:    data,
		hdlr:    hdlr,
	}
	evtMgr.nxtSeq += 1

	heap.Push(&evtMgr.evtQueue, evt)
	return evt
}

// CancelEvent tombstones a pending event.  Canceling a nil handle, an
// already-fired event, or an already-canceled event is silently ignored;
// the outcome those timers guarded has simply been superseded.
func (evtMgr *EventManager) CancelEvent(evt *Event) {
	if evt == nil || evt.fired || evt.canceled {
		return
	}
	evt.canceled = true
}

// Stop makes the run loop return after the currently-executing callback.
func (evtMgr *EventManager) Stop() {
	evtMgr.running = false
}

// Run pops events in time order and executes their callbacks until the
// queue drains, Stop is called, or the next event lies beyond tmax seconds.
// When the limit is hit the clock is left at tmax, so statistics that
// normalize by elapsed time see the full run length; events beyond the
// limit stay queued, so a later Run with a larger limit resumes cleanly.
func (evtMgr *EventManager) Run(tmax float64) {
	evtMgr.running = true

	for evtMgr.running && len(evtMgr.evtQueue) > 0 {
		if evtMgr.evtQueue[0].time.Seconds() > tmax {
			evtMgr.now = vrtime.SecondsToTime(tmax)
			break
		}
		evt := heap.Pop(&evtMgr.evtQueue).(*Event)

		// tombstoned events are discarded when they surface
		if evt.canceled {
			evt.fired = true
			continue
		}

		evtMgr.now = evt.time
		evt.fired = true
		evt.hdlr(evtMgr, evt.context, evt.data)
	}
	evtMgr.running = false
}

// RunToEmpty executes every scheduled event with no time limit.  Intended
// for models that are known to terminate (e.g., chain sampling harnesses).
func (evtMgr *EventManager) RunToEmpty() {
	evtMgr.running = true
	for evtMgr.running && len(evtMgr.evtQueue) > 0 {
		evt := heap.Pop(&evtMgr.evtQueue).(*Event)
		if evt.canceled {
			evt.fired = true
			continue
		}
		evtMgr.now = evt.time
		evt.fired = true
		evt.hdlr(evtMgr, evt.context, evt.data)
	}
	evtMgr.running = false
}
