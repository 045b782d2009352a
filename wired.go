package csmaca

// wired.go holds the point-to-point wired transport: a full-duplex
// transceiver pair joined by a fixed-delay link.  No contention, no
// acknowledgments; a frame sent is a frame delivered.

import (
	"github.com/iti/evt/vrtime"
	"github.com/simonlingoogle/go-simplelogger"
)

// WireFrame carries one network packet across a wire
type WireFrame struct {
	packet     *NetworkPacket
	duration   float64
	headerSize int
	preamble   float64
}

// Size gives the frame size in bits
func (wf *WireFrame) Size() int {
	if wf.packet == nil {
		return wf.headerSize
	}
	return wf.headerSize + wf.packet.Size()
}

// WiredTransceiver is one end of a full-duplex link.  It pulls packets
// from its interface queue, frames them, and waits an inter-frame space
// after each transmission before pulling again.
type WiredTransceiver struct {
	id   int
	name string

	bitrate    float64
	headerSize int
	preamble   float64
	ifs        float64

	// link, wired by connectWiredTransceivers
	peer      *WiredTransceiver
	linkDelay float64

	queue PacketQueue
	iface *WiredInterface

	txFrame *WireFrame
	waitIfs bool
	rxFrame *WireFrame

	// measurements
	numReceivedFrames     int
	numReceivedBits       int
	rxBusyTrace           *TimeTrace
	numTransmittedPackets int
	numTransmittedBits    int
	txBusyTrace           *TimeTrace
	serviceTime           *Statistic
	serviceStart          float64
}

// createWiredTransceiver is a constructor.  Start must be called once the
// queue is wired.
func createWiredTransceiver(et *entityTable, name string, cfg *NetConfig) *WiredTransceiver {
	trx := new(WiredTransceiver)
	trx.name = name
	trx.id = et.assignID(name, trx)
	trx.bitrate = cfg.Bitrate
	trx.headerSize = cfg.WireHeaderSize
	trx.preamble = cfg.Preamble
	trx.ifs = cfg.WireIfs

	trx.rxBusyTrace = CreateTimeTrace()
	trx.rxBusyTrace.Record(0.0, 0.0)
	trx.txBusyTrace = CreateTimeTrace()
	trx.txBusyTrace.Record(0.0, 0.0)
	trx.serviceTime = CreateStatistic()
	return trx
}

// Start schedules the first pull from the queue at the current time
func (trx *WiredTransceiver) Start(evtMgr *EventManager) {
	evtMgr.Schedule(trx, nil, startWiredTransceiver, vrtime.SecondsToTime(0.0))
}

func startWiredTransceiver(evtMgr *EventManager, cxt any, data any) any {
	trx := cxt.(*WiredTransceiver)
	trx.queue.GetNext(evtMgr, trx)
	return nil
}

// TxBusy reports whether a transmission or its trailing IFS is in progress
func (trx *WiredTransceiver) TxBusy() bool {
	return trx.txFrame != nil || trx.waitIfs
}

// RxBusy reports whether a frame is arriving
func (trx *WiredTransceiver) RxBusy() bool {
	return trx.rxFrame != nil
}

// NumReceivedFrames counts frames fully received
func (trx *WiredTransceiver) NumReceivedFrames() int { return trx.numReceivedFrames }

// NumReceivedBits counts bits fully received, headers included
func (trx *WiredTransceiver) NumReceivedBits() int { return trx.numReceivedBits }

// NumTransmittedPackets counts packets fully sent
func (trx *WiredTransceiver) NumTransmittedPackets() int { return trx.numTransmittedPackets }

// NumTransmittedBits counts bits fully sent, headers included
func (trx *WiredTransceiver) NumTransmittedBits() int { return trx.numTransmittedBits }

// TxBusyTrace gives the 0/1 transmit-side occupancy trace
func (trx *WiredTransceiver) TxBusyTrace() *TimeTrace { return trx.txBusyTrace }

// RxBusyTrace gives the 0/1 receive-side occupancy trace
func (trx *WiredTransceiver) RxBusyTrace() *TimeTrace { return trx.rxBusyTrace }

// ServiceTime gives per-packet transmit service times, IFS included
func (trx *WiredTransceiver) ServiceTime() *Statistic { return trx.serviceTime }

// AcceptFromQueue starts transmitting a freshly pulled packet.  A delivery
// while transmission is running violates the pull contract.
func (trx *WiredTransceiver) AcceptFromQueue(evtMgr *EventManager, pkt *NetworkPacket) {
	if trx.TxBusy() {
		simplelogger.Panicf("%s: new packet while another TX running", trx.name)
	}
	duration := float64(trx.headerSize+pkt.Size())/trx.bitrate + trx.preamble
	frame := &WireFrame{
		packet:     pkt,
		duration:   duration,
		headerSize: trx.headerSize,
		preamble:   trx.preamble,
	}

	evtMgr.Schedule(trx.peer, frame, handleWireFrameArrival,
		vrtime.SecondsToTime(trx.linkDelay))
	evtMgr.Schedule(trx, nil, handleWireTxEnd, vrtime.SecondsToTime(duration))

	trx.txFrame = frame
	now := evtMgr.CurrentSeconds()
	trx.txBusyTrace.Record(now, 1.0)
	trx.serviceStart = now
	simplelogger.Debugf("%.6f %s: start transmitting %d bits", now, trx.name, frame.Size())
}

// handleWireFrameArrival fires at the peer when the frame's leading edge
// arrives
func handleWireFrameArrival(evtMgr *EventManager, cxt any, data any) any {
	trx := cxt.(*WiredTransceiver)
	frame := data.(*WireFrame)
	trx.rxFrame = frame
	trx.rxBusyTrace.Record(evtMgr.CurrentSeconds(), 1.0)
	evtMgr.Schedule(trx, frame, handleWireRxEnd, vrtime.SecondsToTime(frame.duration))
	return nil
}

// handleWireTxEnd fires at the sender when the last bit leaves
func handleWireTxEnd(evtMgr *EventManager, cxt any, data any) any {
	trx := cxt.(*WiredTransceiver)
	trx.numTransmittedPackets += 1
	trx.numTransmittedBits += trx.txFrame.Size()
	trx.waitIfs = true
	trx.txFrame = nil
	evtMgr.Schedule(trx, nil, handleWireIfsEnd, vrtime.SecondsToTime(trx.ifs))
	return nil
}

// handleWireIfsEnd closes the service interval and pulls the next packet
func handleWireIfsEnd(evtMgr *EventManager, cxt any, data any) any {
	trx := cxt.(*WiredTransceiver)
	trx.waitIfs = false
	trx.queue.GetNext(evtMgr, trx)

	now := evtMgr.CurrentSeconds()
	trx.txBusyTrace.Record(now, 0.0)
	trx.serviceTime.Append(now - trx.serviceStart)
	return nil
}

// handleWireRxEnd fires at the receiver when the last bit arrives and
// hands the packet up
func handleWireRxEnd(evtMgr *EventManager, cxt any, data any) any {
	trx := cxt.(*WiredTransceiver)
	frame := data.(*WireFrame)

	if trx.iface != nil {
		trx.iface.DeliverUp(evtMgr, frame.packet)
	}
	trx.rxFrame = nil
	trx.numReceivedFrames += 1
	trx.numReceivedBits += frame.Size()
	trx.rxBusyTrace.Record(evtMgr.CurrentSeconds(), 0.0)
	return nil
}

// WiredInterface binds a queue and a transceiver into one switch-attachable
// interface
type WiredInterface struct {
	id   int
	name string
	addr int

	queue PacketQueue
	trx   *WiredTransceiver
	swtch *NetworkSwitch
}

// createWiredInterface is a constructor
func createWiredInterface(et *entityTable, name string, addr int,
	queue PacketQueue, trx *WiredTransceiver) *WiredInterface {

	iface := new(WiredInterface)
	iface.name = name
	iface.id = et.assignID(name, iface)
	iface.addr = addr
	iface.queue = queue
	iface.trx = trx
	trx.iface = iface
	trx.queue = queue
	return iface
}

// Address gives the interface MAC address
func (iface *WiredInterface) Address() int { return iface.addr }

// Queue gives the interface queue
func (iface *WiredInterface) Queue() PacketQueue { return iface.queue }

// Transceiver gives the wire-facing half
func (iface *WiredInterface) Transceiver() *WiredTransceiver { return iface.trx }

// PushDown accepts a packet from the switch
func (iface *WiredInterface) PushDown(evtMgr *EventManager, pkt *NetworkPacket) {
	iface.queue.Push(evtMgr, pkt)
}

// DeliverUp hands a received packet to the switch
func (iface *WiredInterface) DeliverUp(evtMgr *EventManager, pkt *NetworkPacket) {
	iface.swtch.HandlePacket(evtMgr, pkt, iface)
}

func (iface *WiredInterface) attachSwitch(swtch *NetworkSwitch) {
	iface.swtch = swtch
}

// connectWiredTransceivers joins two transceivers with a link of the given
// one-way propagation delay
func connectWiredTransceivers(a, b *WiredTransceiver, delay float64) {
	a.peer = b
	b.peer = a
	a.linkDelay = delay
	b.linkDelay = delay
}
