package csmaca

// radio.go holds the PHY-level propagation model.  A radio transmitting a
// PDU wraps it in an AirFrame, schedules the frame's leading edge at every
// peer after the per-link propagation delay, and schedules its own
// transmission end one frame duration out.  Frame starts and ends are the
// only wireless events that cross station boundaries.

import (
	"math"

	"github.com/iti/evt/vrtime"
	"github.com/simonlingoogle/go-simplelogger"
	"golang.org/x/exp/slices"
)

// Radio is the PHY of one wireless interface
type Radio struct {
	id   int
	name string

	connMgr *ConnectionManager
	posX    float64
	posY    float64

	preamble         float64
	bitrate          float64
	connectionRadius float64
	speedOfLight     float64

	// peers, wired by the topology builder
	receiver    *Receiver
	transmitter *Transmitter

	traceMgr *TraceManager
}

// createRadio is a constructor.  Registration with the connection manager
// happens through a scheduled event at time zero, so peer lists are built
// only once every radio of the network exists.
func createRadio(et *entityTable, name string, evtMgr *EventManager,
	connMgr *ConnectionManager, posX, posY float64, cfg *NetConfig,
	traceMgr *TraceManager) *Radio {

	rdo := new(Radio)
	rdo.name = name
	rdo.id = et.assignID(name, rdo)
	rdo.connMgr = connMgr
	rdo.posX = posX
	rdo.posY = posY
	rdo.preamble = cfg.Preamble
	rdo.bitrate = cfg.Bitrate
	rdo.connectionRadius = cfg.ConnectionRadius
	rdo.speedOfLight = cfg.SpeedOfLightMps
	rdo.traceMgr = traceMgr
	if traceMgr != nil {
		traceMgr.AddName(rdo.id, name, "radio")
	}

	evtMgr.Schedule(rdo, nil, registerRadio, vrtime.SecondsToTime(0.0))
	return rdo
}

// registerRadio enters the radio into the connection manager's peer tables
func registerRadio(evtMgr *EventManager, cxt any, data any) any {
	rdo := cxt.(*Radio)
	rdo.connMgr.AddRadio(rdo)
	return nil
}

// Position gives the radio's antenna coordinates
func (rdo *Radio) Position() (float64, float64) {
	return rdo.posX, rdo.posY
}

func (rdo *Radio) distanceTo(peer *Radio) float64 {
	return math.Hypot(rdo.posX-peer.posX, rdo.posY-peer.posY)
}

// Transmit puts a PDU on the air.  The local receiver learns of the
// transmission synchronously; peers learn after their propagation delays.
func (rdo *Radio) Transmit(evtMgr *EventManager, pdu PDU) {
	frame := createAirFrame(pdu, rdo.preamble, rdo.bitrate)
	simplelogger.Debugf("%.6f %s: transmitting %v",
		evtMgr.CurrentSeconds(), rdo.name, frame)
	AddMacTrace(rdo.traceMgr, evtMgr.CurrentTime(), rdo.id, "frame-start", "", "")

	for _, peer := range rdo.connMgr.Peers(rdo) {
		delay := rdo.distanceTo(peer) / rdo.speedOfLight
		evtMgr.Schedule(peer, frame, handleFrameArrival, vrtime.SecondsToTime(delay))
	}
	evtMgr.Schedule(rdo, nil, handleFrameTransmitted,
		vrtime.SecondsToTime(frame.Duration()))
	rdo.receiver.startTransmit(evtMgr)
}

// handleFrameArrival fires when a frame's leading edge reaches this radio
func handleFrameArrival(evtMgr *EventManager, cxt any, data any) any {
	rdo := cxt.(*Radio)
	frame := data.(*AirFrame)
	rdo.receiver.startReceive(evtMgr, frame.PDU())
	evtMgr.Schedule(rdo, frame, handleFrameEnd,
		vrtime.SecondsToTime(frame.Duration()))
	return nil
}

// handleFrameEnd fires when the frame's trailing edge passes this radio
func handleFrameEnd(evtMgr *EventManager, cxt any, data any) any {
	rdo := cxt.(*Radio)
	frame := data.(*AirFrame)
	AddMacTrace(rdo.traceMgr, evtMgr.CurrentTime(), rdo.id, "frame-end", "", "")
	rdo.receiver.finishReceive(evtMgr, frame.PDU())
	return nil
}

// handleFrameTransmitted fires at the sending radio when its own
// transmission completes
func handleFrameTransmitted(evtMgr *EventManager, cxt any, data any) any {
	rdo := cxt.(*Radio)
	simplelogger.Debugf("%.6f %s: finished transmit", evtMgr.CurrentSeconds(), rdo.name)
	rdo.transmitter.finishTransmit(evtMgr)
	rdo.receiver.finishTransmit(evtMgr)
	return nil
}

// ConnectionManager keeps the who-hears-whom relation of one network.
// Two radios are peers when each lies within the other's connection radius.
type ConnectionManager struct {
	radios []*Radio
	peers  map[*Radio][]*Radio
}

// CreateConnectionManager is a constructor
func CreateConnectionManager() *ConnectionManager {
	cm := new(ConnectionManager)
	cm.radios = make([]*Radio, 0)
	cm.peers = make(map[*Radio][]*Radio)
	return cm
}

// AddRadio enters a radio and links it with every earlier-registered radio
// in mutual range
func (cm *ConnectionManager) AddRadio(rdo *Radio) {
	if _, present := cm.peers[rdo]; !present {
		cm.radios = append(cm.radios, rdo)
		cm.peers[rdo] = make([]*Radio, 0)
	}

	for _, peer := range cm.radios {
		if peer == rdo {
			continue
		}
		d := rdo.distanceTo(peer)
		if d <= rdo.connectionRadius && d <= peer.connectionRadius {
			if !slices.Contains(cm.peers[rdo], peer) {
				cm.peers[rdo] = append(cm.peers[rdo], peer)
			}
			if !slices.Contains(cm.peers[peer], rdo) {
				cm.peers[peer] = append(cm.peers[peer], rdo)
			}
			simplelogger.Debugf("connected radio %s to radio %s", rdo.name, peer.name)
		}
	}
}

// Peers gives the radios that hear rdo
func (cm *ConnectionManager) Peers(rdo *Radio) []*Radio {
	return cm.peers[rdo]
}
