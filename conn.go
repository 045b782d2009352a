package csmaca

// conn.go holds the typed contracts between simulation entities and the
// per-network lookup table that maps entity ids and names to objects.
//
// The entity graph is cyclic (every station's transmitter points at its own
// receiver and vice versa, and radios point at every peer in range), so
// components hold plain references resolved once at topology-build time.
// The table exists for introspection and tracing, not for routing calls.

import "fmt"

// QueueConsumer is anything that pulls packets from a PacketQueue.  The
// queue delivers through one zero-delay scheduled callback, never inline.
type QueueConsumer interface {
	AcceptFromQueue(evtMgr *EventManager, pkt *NetworkPacket)
}

// PacketQueue is the pull-based buffer between the network layer and an
// interface's transmitter.
type PacketQueue interface {
	// GetNext delivers the head packet to consumer via one zero-delay
	// scheduled callback if the queue is non-empty; otherwise the request
	// is remembered and fulfilled by the next Push.
	GetNext(evtMgr *EventManager, consumer QueueConsumer)

	// Push accepts a packet from above.  A bounded queue that is full
	// drops the packet and counts it; Push never fails loudly.
	Push(evtMgr *EventManager, pkt *NetworkPacket)

	Size() int
	NumDropped() int
}

// NetIface is a station-attachable network interface (wireless or wired)
type NetIface interface {
	Address() int

	// PushDown hands a packet from the switch to the interface queue
	PushDown(evtMgr *EventManager, pkt *NetworkPacket)

	attachSwitch(swtch *NetworkSwitch)
}

// AppSource is the statistics surface common to traffic generators
type AppSource interface {
	SourceID() int
	NumPackets() int
	NumBits() int
	ArrivalIntervals() *Intervals
	SizeStat() *Statistic
}

// entityTable assigns ids and remembers every entity of one network, so
// trace records and diagnostics can resolve "who is who" without the
// components owning each other.
type entityTable struct {
	nxtID  int
	byID   map[int]any
	byName map[string]any
}

// createEntityTable is a constructor
func createEntityTable() *entityTable {
	et := new(entityTable)
	et.byID = make(map[int]any)
	et.byName = make(map[string]any)
	return et
}

// assignID enters the entity under a fresh id and its name, and returns the id.
// Reusing a name is a topology-construction bug.
func (et *entityTable) assignID(name string, obj any) int {
	_, present := et.byName[name]
	if present {
		panic(fmt.Sprintf("entity name %s over-used in entity table", name))
	}
	et.nxtID += 1
	et.byID[et.nxtID] = obj
	et.byName[name] = obj
	return et.nxtID
}

// entityByName looks an entity up by the name it was registered under
func (et *entityTable) entityByName(name string) any {
	return et.byName[name]
}
