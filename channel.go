package csmaca

import (
	"github.com/iti/evt/vrtime"
	"github.com/simonlingoogle/go-simplelogger"
)

// ChannelState is a station-local carrier-sense flag shared by the
// station's receiver (which writes it) and transmitter (which reads it).
// Notification is synchronous: SetBusy and SetReady call straight into the
// transmitter so the carrier-sense view never lags the receiver by even a
// zero-delay event.
type ChannelState struct {
	id       int
	name     string
	busy     bool
	txmtr    *Transmitter
	traceMgr *TraceManager
}

// createChannelState is a constructor.  The transmitter reference is wired
// in afterwards by the topology builder, once both ends exist.
func createChannelState(et *entityTable, name string, traceMgr *TraceManager) *ChannelState {
	cs := new(ChannelState)
	cs.name = name
	cs.id = et.assignID(name, cs)
	cs.traceMgr = traceMgr
	if traceMgr != nil {
		traceMgr.AddName(cs.id, name, "channel")
	}
	return cs
}

// IsBusy reports the current carrier-sense state
func (cs *ChannelState) IsBusy() bool {
	return cs.busy
}

// SetBusy marks the medium busy and notifies the transmitter.  Redundant
// sets are absorbed without notifying: overlapping frames and residual
// frames outliving the receiver's own transmission can each report the
// same medium state, and only a change carries information.
func (cs *ChannelState) SetBusy(evtMgr *EventManager) {
	if cs.busy {
		return
	}
	cs.busy = true
	cs.mark(evtMgr.CurrentTime(), "busy")
	cs.txmtr.channelBusy(evtMgr)
}

// SetReady marks the medium idle and notifies the transmitter, again only
// on an actual change
func (cs *ChannelState) SetReady(evtMgr *EventManager) {
	if !cs.busy {
		return
	}
	cs.busy = false
	cs.mark(evtMgr.CurrentTime(), "ready")
	cs.txmtr.channelReady(evtMgr)
}

func (cs *ChannelState) mark(vrt vrtime.Time, op string) {
	simplelogger.Debugf("%.6f %s: %s", vrt.Seconds(), cs.name, op)
	AddMacTrace(cs.traceMgr, vrt, cs.id, op, "", "")
}
