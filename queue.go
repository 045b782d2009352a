package csmaca

// queue.go holds the interface queues.  Both variants follow the same
// pull contract: a consumer asks once with GetNext and receives exactly one
// packet through one zero-delay scheduled callback, either immediately (the
// queue held a packet) or later when a packet arrives for the remembered
// request.  Delivery is never inline with GetNext or Push.

import (
	"github.com/iti/evt/vrtime"
	"github.com/simonlingoogle/go-simplelogger"
)

// deliverFromQueue is the event handler that hands a popped packet to the
// consumer that asked for it
func deliverFromQueue(evtMgr *EventManager, cxt any, data any) any {
	consumer := cxt.(QueueConsumer)
	consumer.AcceptFromQueue(evtMgr, data.(*NetworkPacket))
	return nil
}

// Queue is a FIFO packet buffer, optionally bounded.  A push against a full
// queue drops the packet and counts the drop.
type Queue struct {
	id       int
	name     string
	capacity int // <= 0 means unbounded

	packets  []*NetworkPacket
	requests []QueueConsumer

	numDropped   int
	sizeTrace    *TimeTrace
	bitsizeTrace *TimeTrace
}

// createQueue is a constructor
func createQueue(et *entityTable, name string, capacity int) *Queue {
	q := new(Queue)
	q.name = name
	q.id = et.assignID(name, q)
	q.capacity = capacity
	q.packets = make([]*NetworkPacket, 0)
	q.requests = make([]QueueConsumer, 0)
	q.sizeTrace = CreateTimeTrace()
	q.bitsizeTrace = CreateTimeTrace()
	q.sizeTrace.Record(0.0, 0.0)
	q.bitsizeTrace.Record(0.0, 0.0)
	return q
}

// GetNext delivers the head packet to consumer via a zero-delay event, or
// remembers the request if the queue is empty
func (q *Queue) GetNext(evtMgr *EventManager, consumer QueueConsumer) {
	if len(q.packets) > 0 {
		pkt := q.packets[0]
		q.packets = q.packets[1:]
		q.recordSize(evtMgr.CurrentSeconds())
		evtMgr.Schedule(consumer, pkt, deliverFromQueue, vrtime.SecondsToTime(0.0))
		return
	}
	q.requests = append(q.requests, consumer)
}

// Push accepts a packet from the network layer.  A pending request consumes
// it directly; otherwise it is buffered, or dropped when the buffer is full.
func (q *Queue) Push(evtMgr *EventManager, pkt *NetworkPacket) {
	if len(q.requests) > 0 {
		consumer := q.requests[0]
		q.requests = q.requests[1:]
		evtMgr.Schedule(consumer, pkt, deliverFromQueue, vrtime.SecondsToTime(0.0))
		return
	}
	if q.capacity > 0 && len(q.packets) >= q.capacity {
		q.numDropped += 1
		simplelogger.Warnf("%.6f %s: queue full, packet dropped",
			evtMgr.CurrentSeconds(), q.name)
		return
	}
	q.packets = append(q.packets, pkt)
	q.recordSize(evtMgr.CurrentSeconds())
}

// Size gives the number of buffered packets
func (q *Queue) Size() int {
	return len(q.packets)
}

// NumDropped gives the number of packets discarded against a full buffer
func (q *Queue) NumDropped() int {
	return q.numDropped
}

// SizeTrace gives the queue length as a step function of time
func (q *Queue) SizeTrace() *TimeTrace {
	return q.sizeTrace
}

// BitSizeTrace gives the buffered payload volume as a step function of time
func (q *Queue) BitSizeTrace() *TimeTrace {
	return q.bitsizeTrace
}

func (q *Queue) recordSize(now float64) {
	q.sizeTrace.Record(now, float64(len(q.packets)))
	var bits int
	for _, pkt := range q.packets {
		bits += pkt.Size()
	}
	q.bitsizeTrace.Record(now, float64(bits))
}

// SaturatedQueue models a station that always has a fresh packet the moment
// its transmitter asks for one.  Instead of buffering, GetNext prods a
// ControlledSource to generate; the generated packet flows down through the
// network layer and meets the remembered request in Push.
type SaturatedQueue struct {
	id   int
	name string

	source *ControlledSource

	packets  []*NetworkPacket
	requests []QueueConsumer
}

// createSaturatedQueue is a constructor.  The source reference is wired in
// by the topology builder after the source exists.
func createSaturatedQueue(et *entityTable, name string) *SaturatedQueue {
	sq := new(SaturatedQueue)
	sq.name = name
	sq.id = et.assignID(name, sq)
	sq.packets = make([]*NetworkPacket, 0)
	sq.requests = make([]QueueConsumer, 0)
	return sq
}

// GetNext remembers the request and asks the bound source for one packet
func (sq *SaturatedQueue) GetNext(evtMgr *EventManager, consumer QueueConsumer) {
	if len(sq.packets) > 0 {
		pkt := sq.packets[0]
		sq.packets = sq.packets[1:]
		evtMgr.Schedule(consumer, pkt, deliverFromQueue, vrtime.SecondsToTime(0.0))
		return
	}
	sq.requests = append(sq.requests, consumer)
	sq.source.GetNext(evtMgr)
}

// Push matches an arriving packet against the oldest remembered request
func (sq *SaturatedQueue) Push(evtMgr *EventManager, pkt *NetworkPacket) {
	if len(sq.requests) > 0 {
		consumer := sq.requests[0]
		sq.requests = sq.requests[1:]
		evtMgr.Schedule(consumer, pkt, deliverFromQueue, vrtime.SecondsToTime(0.0))
		return
	}
	sq.packets = append(sq.packets, pkt)
}

// Size gives the number of buffered packets, normally zero
func (sq *SaturatedQueue) Size() int {
	return len(sq.packets)
}

// NumDropped is always zero; a saturated queue never discards
func (sq *SaturatedQueue) NumDropped() int {
	return 0
}
