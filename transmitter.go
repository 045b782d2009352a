package csmaca

// transmitter.go holds the sending half of the wireless MAC: the CSMA/CA
// state machine with binary exponential backoff and a retransmit-forever
// ARQ loop.  All timers live here; the receiver and channel state call in
// synchronously, frame boundaries arrive through the radio.

import (
	"fmt"

	"github.com/iti/evt/vrtime"
	"github.com/iti/rngstream"
	"github.com/simonlingoogle/go-simplelogger"
)

// TransmitterState enumerates the sender FSM states
type TransmitterState int

const (
	TxIdle TransmitterState = iota
	TxBusy
	TxBackoff
	TxTransmitting
	TxWaitAck
)

func (ts TransmitterState) String() string {
	switch ts {
	case TxIdle:
		return "IDLE"
	case TxBusy:
		return "BUSY"
	case TxBackoff:
		return "BACKOFF"
	case TxTransmitting:
		return "TX"
	case TxWaitAck:
		return "WAIT_ACK"
	}
	return fmt.Sprintf("TransmitterState(%d)", int(ts))
}

// Transmitter drives one wireless interface's outbound side
type Transmitter struct {
	id   int
	name string
	addr int

	state TransmitterState

	// contention window state
	cwMin      int
	cwMax      int
	cw         int
	backoff    int
	numRetries int

	// frame being serviced, nil when idle
	pdu  *DataPDU
	seqn int

	// the single armed timer (DIFS, slot countdown, or ACK timeout)
	timeout *Event

	// timing parameters
	difs           float64
	sifs           float64
	slot           float64
	preamble       float64
	bitrate        float64
	maxPropagation float64
	ackMargin      float64
	phyHeaderSize  int
	macHeaderSize  int
	ackSize        int

	// peers, wired by the topology builder
	channel *ChannelState
	radio   *Radio
	queue   PacketQueue

	rng      *rngstream.RngStream
	traceMgr *TraceManager

	// measurements
	serviceStart float64
	backoffStat  *Statistic
	serviceTime  *Statistic
	retriesStat  *Statistic
	busyTrace    *TimeTrace
	numSent      int
}

// createTransmitter is a constructor.  addr is the MAC address of the
// owning interface; channel, radio and queue are wired in afterwards.
func createTransmitter(et *entityTable, name string, addr int, cfg *NetConfig,
	traceMgr *TraceManager) *Transmitter {

	txmtr := new(Transmitter)
	txmtr.name = name
	txmtr.id = et.assignID(name, txmtr)
	txmtr.addr = addr
	txmtr.state = TxIdle

	txmtr.cwMin = cfg.CWMin
	txmtr.cwMax = cfg.CWMax
	txmtr.cw = cfg.CWMin

	txmtr.difs = cfg.Difs
	txmtr.sifs = cfg.Sifs
	txmtr.slot = cfg.Slot
	txmtr.preamble = cfg.Preamble
	txmtr.bitrate = cfg.Bitrate
	txmtr.maxPropagation = cfg.MaxPropagation()
	txmtr.ackMargin = cfg.AckMarginFactor
	txmtr.phyHeaderSize = cfg.PhyHeaderSize
	txmtr.macHeaderSize = cfg.MacHeaderSize
	txmtr.ackSize = cfg.AckSize

	txmtr.rng = rngstream.New(name)
	txmtr.traceMgr = traceMgr
	if traceMgr != nil {
		traceMgr.AddName(txmtr.id, name, "transmitter")
	}

	txmtr.backoffStat = CreateStatistic()
	txmtr.serviceTime = CreateStatistic()
	txmtr.retriesStat = CreateStatistic()
	txmtr.busyTrace = CreateTimeTrace()
	txmtr.busyTrace.Record(0.0, 0.0)
	return txmtr
}

// Start schedules the first pull from the queue at the current time
func (txmtr *Transmitter) Start(evtMgr *EventManager) {
	evtMgr.Schedule(txmtr, nil, startTransmitter, vrtime.SecondsToTime(0.0))
}

// startTransmitter issues the initial queue request
func startTransmitter(evtMgr *EventManager, cxt any, data any) any {
	txmtr := cxt.(*Transmitter)
	txmtr.queue.GetNext(evtMgr, txmtr)
	return nil
}

// State gives the current FSM state
func (txmtr *Transmitter) State() TransmitterState {
	return txmtr.state
}

// NumSent gives the count of packets acknowledged and retired
func (txmtr *Transmitter) NumSent() int {
	return txmtr.numSent
}

// BackoffStat gives the distribution of drawn backoff slot counts
func (txmtr *Transmitter) BackoffStat() *Statistic {
	return txmtr.backoffStat
}

// ServiceTime gives per-packet service time samples, from arrival at the
// transmitter to the matching ACK
func (txmtr *Transmitter) ServiceTime() *Statistic {
	return txmtr.serviceTime
}

// RetriesStat gives per-packet attempt counts
func (txmtr *Transmitter) RetriesStat() *Statistic {
	return txmtr.retriesStat
}

// BusyTrace gives the 0/1 trace of the transmitter holding a packet
func (txmtr *Transmitter) BusyTrace() *TimeTrace {
	return txmtr.busyTrace
}

func (txmtr *Transmitter) transition(evtMgr *EventManager, newState TransmitterState) {
	if txmtr.state == newState {
		return
	}
	simplelogger.Debugf("%.6f %s: %v -> %v",
		evtMgr.CurrentSeconds(), txmtr.name, txmtr.state, newState)
	AddMacTrace(txmtr.traceMgr, evtMgr.CurrentTime(), txmtr.id,
		"transition", txmtr.state.String(), newState.String())
	txmtr.state = newState
}

// drawBackoff samples uniformly from {0, ..., cw-1}
func (txmtr *Transmitter) drawBackoff() int {
	return int(txmtr.rng.RandU01() * float64(txmtr.cw))
}

// AcceptFromQueue begins service of a new packet.  A delivery while a
// previous packet is still in service is a queue contract violation.
func (txmtr *Transmitter) AcceptFromQueue(evtMgr *EventManager, pkt *NetworkPacket) {
	if txmtr.state != TxIdle {
		simplelogger.Panicf("%s: packet delivered while in state %v", txmtr.name, txmtr.state)
	}

	txmtr.seqn += 1
	txmtr.numRetries = 1
	txmtr.cw = txmtr.cwMin
	txmtr.backoff = txmtr.drawBackoff()
	txmtr.backoffStat.Append(float64(txmtr.backoff))

	txmtr.pdu = createDataPDU(pkt, txmtr.phyHeaderSize+txmtr.macHeaderSize,
		txmtr.seqn, txmtr.numRetries, txmtr.addr, pkt.ReceiverAddr())

	now := evtMgr.CurrentSeconds()
	txmtr.serviceStart = now
	txmtr.busyTrace.Record(now, 1.0)

	txmtr.armAfterDraw(evtMgr)
}

// armAfterDraw moves to BUSY or BACKOFF depending on the medium, arming the
// DIFS timer in the latter case.  Shared by new-packet arrival and ACK
// timeout since both end with a fresh draw.
func (txmtr *Transmitter) armAfterDraw(evtMgr *EventManager) {
	if txmtr.channel.IsBusy() {
		txmtr.transition(evtMgr, TxBusy)
		return
	}
	txmtr.transition(evtMgr, TxBackoff)
	txmtr.timeout = evtMgr.Schedule(txmtr, nil, handleBackoffTimer,
		vrtime.SecondsToTime(txmtr.difs))
}

// channelBusy is called synchronously by the channel state when the medium
// becomes busy.  A running backoff countdown freezes and its timer dies.
func (txmtr *Transmitter) channelBusy(evtMgr *EventManager) {
	if txmtr.state == TxBackoff {
		evtMgr.CancelEvent(txmtr.timeout)
		txmtr.timeout = nil
		txmtr.transition(evtMgr, TxBusy)
	}
}

// channelReady is called synchronously when the medium clears.  A frozen
// countdown resumes after a full DIFS.
func (txmtr *Transmitter) channelReady(evtMgr *EventManager) {
	if txmtr.state == TxBusy {
		txmtr.transition(evtMgr, TxBackoff)
		txmtr.timeout = evtMgr.Schedule(txmtr, nil, handleBackoffTimer,
			vrtime.SecondsToTime(txmtr.difs))
	}
}

// handleBackoffTimer fires after DIFS and then once per slot.  Zero
// remaining slots means transmit; otherwise decrement and re-arm.
func handleBackoffTimer(evtMgr *EventManager, cxt any, data any) any {
	txmtr := cxt.(*Transmitter)
	if txmtr.state != TxBackoff {
		simplelogger.Panicf("%s: backoff timer fired in state %v", txmtr.name, txmtr.state)
	}

	if txmtr.backoff == 0 {
		txmtr.timeout = nil
		txmtr.transition(evtMgr, TxTransmitting)
		txmtr.radio.Transmit(evtMgr, txmtr.pdu)
		return nil
	}

	txmtr.backoff -= 1
	txmtr.timeout = evtMgr.Schedule(txmtr, nil, handleBackoffTimer,
		vrtime.SecondsToTime(txmtr.slot))
	return nil
}

// finishTransmit is called by the radio when the data frame leaves the air.
// The transmitter arms the ACK timeout: SIFS, the ACK frame time, and a
// propagation margin.
func (txmtr *Transmitter) finishTransmit(evtMgr *EventManager) {
	if txmtr.state != TxTransmitting {
		return
	}
	ackAirTime := float64(txmtr.ackSize+txmtr.macHeaderSize+txmtr.phyHeaderSize)/txmtr.bitrate +
		txmtr.preamble
	wait := txmtr.sifs + ackAirTime + txmtr.ackMargin*txmtr.maxPropagation

	txmtr.transition(evtMgr, TxWaitAck)
	txmtr.timeout = evtMgr.Schedule(txmtr, nil, handleAckTimeout,
		vrtime.SecondsToTime(wait))
}

// handleAckTimeout gives up on the outstanding attempt: double the window,
// redraw, and go again with a fresh PDU carrying the bumped attempt count.
func handleAckTimeout(evtMgr *EventManager, cxt any, data any) any {
	txmtr := cxt.(*Transmitter)
	if txmtr.state != TxWaitAck {
		simplelogger.Panicf("%s: ack timeout fired in state %v", txmtr.name, txmtr.state)
	}
	txmtr.timeout = nil

	txmtr.numRetries += 1
	if 2*txmtr.cw <= txmtr.cwMax {
		txmtr.cw = 2 * txmtr.cw
	} else {
		txmtr.cw = txmtr.cwMax
	}
	txmtr.backoff = txmtr.drawBackoff()
	txmtr.backoffStat.Append(float64(txmtr.backoff))

	simplelogger.Debugf("%.6f %s: no ack for seqn %d, retry %d cw %d",
		evtMgr.CurrentSeconds(), txmtr.name, txmtr.pdu.Seqn(), txmtr.numRetries, txmtr.cw)

	txmtr.pdu = createDataPDU(txmtr.pdu.Packet(), txmtr.phyHeaderSize+txmtr.macHeaderSize,
		txmtr.pdu.Seqn(), txmtr.numRetries, txmtr.addr, txmtr.pdu.ReceiverAddr())

	txmtr.armAfterDraw(evtMgr)
	return nil
}

// acknowledged is called by the receiver when an ACK addressed to this
// interface finishes.  An ACK outside WAIT_ACK is stale (the timeout
// already fired and a retransmission is underway) and is ignored.
func (txmtr *Transmitter) acknowledged(evtMgr *EventManager) {
	if txmtr.state != TxWaitAck {
		simplelogger.Debugf("%.6f %s: stale ack ignored in state %v",
			evtMgr.CurrentSeconds(), txmtr.name, txmtr.state)
		return
	}
	evtMgr.CancelEvent(txmtr.timeout)
	txmtr.timeout = nil

	now := evtMgr.CurrentSeconds()
	txmtr.numSent += 1
	txmtr.serviceTime.Append(now - txmtr.serviceStart)
	txmtr.retriesStat.Append(float64(txmtr.numRetries))
	txmtr.busyTrace.Record(now, 0.0)
	txmtr.pdu = nil

	txmtr.transition(evtMgr, TxIdle)
	txmtr.queue.GetNext(evtMgr, txmtr)
}
