package csmaca

// receiver.go holds the receiving half of the wireless MAC.  The receiver
// tracks every frame currently on the air at this radio; any overlap of two
// in-flight frames is a collision, and a frame that was ever part of an
// overlap is unreadable even after the other frames end.

import (
	"fmt"

	"github.com/iti/evt/vrtime"
	"github.com/simonlingoogle/go-simplelogger"
)

// ReceiverState enumerates the receiver FSM states.  RxTx1 is a local
// transmission started from an idle medium, RxTx2 one started while frames
// were arriving (those frames are lost at this station).
type ReceiverState int

const (
	RxIdle ReceiverState = iota
	RxReceiving
	RxTx1
	RxTx2
	RxCollided
	RxWaitSendAck
	RxSendAck
)

func (rs ReceiverState) String() string {
	switch rs {
	case RxIdle:
		return "IDLE"
	case RxReceiving:
		return "RX"
	case RxTx1:
		return "TX1"
	case RxTx2:
		return "TX2"
	case RxCollided:
		return "COLLIDED"
	case RxWaitSendAck:
		return "WAIT_SEND_ACK"
	case RxSendAck:
		return "SEND_ACK"
	}
	return fmt.Sprintf("ReceiverState(%d)", int(rs))
}

// Receiver drives one wireless interface's inbound side and the ACK replies
type Receiver struct {
	id   int
	name string
	addr int

	state ReceiverState

	// frames currently on the air at this radio
	rxbuf map[PDU]bool

	// the data PDU being acknowledged, valid in WAIT_SEND_ACK and SEND_ACK
	curPDU *DataPDU

	sifs          float64
	phyHeaderSize int
	ackSize       int

	// peers, wired by the topology builder
	channel     *ChannelState
	radio       *Radio
	transmitter *Transmitter
	up          *WirelessInterface

	traceMgr *TraceManager

	// measurements
	numCollisions int
	numReceived   int
	busyTrace     *TimeTrace
}

// createReceiver is a constructor
func createReceiver(et *entityTable, name string, addr int, cfg *NetConfig,
	traceMgr *TraceManager) *Receiver {

	rcvr := new(Receiver)
	rcvr.name = name
	rcvr.id = et.assignID(name, rcvr)
	rcvr.addr = addr
	rcvr.state = RxIdle
	rcvr.rxbuf = make(map[PDU]bool)

	rcvr.sifs = cfg.Sifs
	rcvr.phyHeaderSize = cfg.PhyHeaderSize
	rcvr.ackSize = cfg.AckSize

	rcvr.traceMgr = traceMgr
	if traceMgr != nil {
		traceMgr.AddName(rcvr.id, name, "receiver")
	}
	rcvr.busyTrace = CreateTimeTrace()
	rcvr.busyTrace.Record(0.0, 0.0)
	return rcvr
}

// State gives the current FSM state
func (rcvr *Receiver) State() ReceiverState {
	return rcvr.state
}

// NumCollisions counts entries into the COLLIDED state
func (rcvr *Receiver) NumCollisions() int {
	return rcvr.numCollisions
}

// NumReceived counts data PDUs successfully received and acknowledged
func (rcvr *Receiver) NumReceived() int {
	return rcvr.numReceived
}

// BusyTrace gives the 0/1 trace of the receiver being away from IDLE
func (rcvr *Receiver) BusyTrace() *TimeTrace {
	return rcvr.busyTrace
}

func (rcvr *Receiver) transition(evtMgr *EventManager, newState ReceiverState) {
	if rcvr.state == newState {
		return
	}
	simplelogger.Debugf("%.6f %s: %v -> %v",
		evtMgr.CurrentSeconds(), rcvr.name, rcvr.state, newState)
	AddMacTrace(rcvr.traceMgr, evtMgr.CurrentTime(), rcvr.id,
		"transition", rcvr.state.String(), newState.String())

	now := evtMgr.CurrentSeconds()
	if rcvr.state == RxIdle {
		rcvr.busyTrace.Record(now, 1.0)
	} else if newState == RxIdle {
		rcvr.busyTrace.Record(now, 0.0)
	}
	if newState == RxCollided {
		rcvr.numCollisions += 1
	}
	rcvr.state = newState
}

// startReceive is called by the radio when the leading edge of a frame
// arrives.  The same PDU arriving twice is a propagation-model bug.
func (rcvr *Receiver) startReceive(evtMgr *EventManager, pdu PDU) {
	if rcvr.rxbuf[pdu] {
		simplelogger.Panicf("%s: frame start for PDU already in flight", rcvr.name)
	}

	if rcvr.state == RxIdle && len(rcvr.rxbuf) == 0 {
		rcvr.transition(evtMgr, RxReceiving)
		rcvr.channel.SetBusy(evtMgr)
	} else if rcvr.state == RxReceiving || (rcvr.state == RxIdle && len(rcvr.rxbuf) > 0) {
		rcvr.transition(evtMgr, RxCollided)
	}
	rcvr.rxbuf[pdu] = true
}

// finishReceive is called by the radio at the trailing edge of a frame.
// Frame ends for PDUs no longer tracked are ignored.
func (rcvr *Receiver) finishReceive(evtMgr *EventManager, pdu PDU) {
	if !rcvr.rxbuf[pdu] {
		return
	}
	delete(rcvr.rxbuf, pdu)

	switch rcvr.state {
	case RxReceiving:
		// a cleanly received frame
		switch pdu.Kind() {
		case DataPDUKind:
			if pdu.ReceiverAddr() == rcvr.addr {
				rcvr.curPDU = pdu.(*DataPDU)
				rcvr.transition(evtMgr, RxWaitSendAck)
				evtMgr.Schedule(rcvr, nil, handleSendAckTimer,
					vrtime.SecondsToTime(rcvr.sifs))
			} else {
				// overheard traffic between other stations
				rcvr.transition(evtMgr, RxIdle)
				rcvr.channel.SetReady(evtMgr)
			}
		case AckPDUKind:
			if pdu.ReceiverAddr() == rcvr.addr {
				rcvr.transmitter.acknowledged(evtMgr)
			}
			rcvr.transition(evtMgr, RxIdle)
			rcvr.channel.SetReady(evtMgr)
		default:
			simplelogger.Panicf("%s: unsupported PDU kind %d", rcvr.name, pdu.Kind())
		}

	case RxCollided:
		// collided frames are unreadable; wait for the air to clear
		if len(rcvr.rxbuf) == 0 {
			rcvr.transition(evtMgr, RxIdle)
			rcvr.channel.SetReady(evtMgr)
		}

	default:
		// frame ends while transmitting, acknowledging, or with only
		// residual frames in flight are purged without a state change
	}
}

// startTransmit is called by the radio when the local transmitter (or the
// ACK path) begins sending.  A local transmission from IDLE does not mark
// the channel: the transmitter is past carrier sense and the channel flag
// only matters to it.
func (rcvr *Receiver) startTransmit(evtMgr *EventManager) {
	if rcvr.state == RxWaitSendAck {
		simplelogger.Panicf("%s: transmission started while waiting to send ack", rcvr.name)
	}
	if rcvr.state == RxIdle {
		rcvr.transition(evtMgr, RxTx1)
	} else if rcvr.state == RxReceiving || rcvr.state == RxCollided {
		rcvr.transition(evtMgr, RxTx2)
	}
}

// finishTransmit is called by the radio when the local transmission ends
func (rcvr *Receiver) finishTransmit(evtMgr *EventManager) {
	switch rcvr.state {
	case RxTx1:
		// frames that arrived during our transmission are already lost;
		// whatever is still on the air stays unreadable
		if len(rcvr.rxbuf) > 0 {
			rcvr.channel.SetBusy(evtMgr)
			rcvr.transition(evtMgr, RxCollided)
		} else {
			rcvr.transition(evtMgr, RxIdle)
		}

	case RxTx2:
		if len(rcvr.rxbuf) > 0 {
			rcvr.transition(evtMgr, RxCollided)
		} else {
			rcvr.channel.SetReady(evtMgr)
			rcvr.transition(evtMgr, RxIdle)
		}

	case RxSendAck:
		// the ACK is out; hand the payload up and clear the medium
		pkt := rcvr.curPDU.Packet()
		rcvr.curPDU = nil
		rcvr.numReceived += 1
		evtMgr.Schedule(rcvr, pkt, deliverReceivedPacket, vrtime.SecondsToTime(0.0))
		rcvr.transition(evtMgr, RxIdle)
		rcvr.channel.SetReady(evtMgr)
	}
}

// handleSendAckTimer fires SIFS after a clean data reception and launches
// the acknowledgment
func handleSendAckTimer(evtMgr *EventManager, cxt any, data any) any {
	rcvr := cxt.(*Receiver)
	if rcvr.state != RxWaitSendAck {
		simplelogger.Panicf("%s: send-ack timer fired in state %v", rcvr.name, rcvr.state)
	}
	ack := createAckPDU(rcvr.phyHeaderSize, rcvr.ackSize,
		rcvr.addr, rcvr.curPDU.SenderAddr())
	rcvr.transition(evtMgr, RxSendAck)
	rcvr.radio.Transmit(evtMgr, ack)
	return nil
}

// deliverReceivedPacket hands a received packet up to the interface
func deliverReceivedPacket(evtMgr *EventManager, cxt any, data any) any {
	rcvr := cxt.(*Receiver)
	rcvr.up.DeliverUp(evtMgr, data.(*NetworkPacket))
	return nil
}
