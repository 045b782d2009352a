package csmaca

// station.go assembles the per-station entity graph: a wireless interface
// from its MAC and PHY parts, and a station from its application layer,
// network layer, and interfaces.

import "fmt"

// WirelessInterface binds queue, transmitter, receiver, channel state and
// radio into one switch-attachable interface
type WirelessInterface struct {
	id   int
	name string
	addr int

	queue       PacketQueue
	transmitter *Transmitter
	receiver    *Receiver
	channel     *ChannelState
	radio       *Radio
	swtch       *NetworkSwitch
}

// createWirelessInterface builds the interface and all its parts and wires
// them to each other.  posX, posY place the radio; queue is supplied by the
// caller because the saturated and buffered variants differ.
func createWirelessInterface(et *entityTable, name string, addr int,
	evtMgr *EventManager, connMgr *ConnectionManager, queue PacketQueue,
	posX, posY float64, cfg *NetConfig, traceMgr *TraceManager) *WirelessInterface {

	iface := new(WirelessInterface)
	iface.name = name
	iface.id = et.assignID(name, iface)
	iface.addr = addr
	iface.queue = queue

	iface.channel = createChannelState(et, name+".channel", traceMgr)
	iface.transmitter = createTransmitter(et, name+".transmitter", addr, cfg, traceMgr)
	iface.receiver = createReceiver(et, name+".receiver", addr, cfg, traceMgr)
	iface.radio = createRadio(et, name+".radio", evtMgr, connMgr, posX, posY, cfg, traceMgr)

	iface.channel.txmtr = iface.transmitter

	iface.transmitter.channel = iface.channel
	iface.transmitter.radio = iface.radio
	iface.transmitter.queue = queue

	iface.receiver.channel = iface.channel
	iface.receiver.radio = iface.radio
	iface.receiver.transmitter = iface.transmitter
	iface.receiver.up = iface

	iface.radio.receiver = iface.receiver
	iface.radio.transmitter = iface.transmitter

	iface.transmitter.Start(evtMgr)
	return iface
}

// Address gives the interface MAC address
func (iface *WirelessInterface) Address() int { return iface.addr }

// Queue gives the interface queue
func (iface *WirelessInterface) Queue() PacketQueue { return iface.queue }

// Transmitter gives the MAC sending half
func (iface *WirelessInterface) Transmitter() *Transmitter { return iface.transmitter }

// Receiver gives the MAC receiving half
func (iface *WirelessInterface) Receiver() *Receiver { return iface.receiver }

// Radio gives the PHY
func (iface *WirelessInterface) Radio() *Radio { return iface.radio }

// PushDown accepts a packet from the switch
func (iface *WirelessInterface) PushDown(evtMgr *EventManager, pkt *NetworkPacket) {
	iface.queue.Push(evtMgr, pkt)
}

// DeliverUp hands a received packet to the switch
func (iface *WirelessInterface) DeliverUp(evtMgr *EventManager, pkt *NetworkPacket) {
	iface.swtch.HandlePacket(evtMgr, pkt, iface)
}

func (iface *WirelessInterface) attachSwitch(swtch *NetworkSwitch) {
	iface.swtch = swtch
}

// Station is one network node: application endpoints above a switch above
// one or more interfaces.  Source is nil on pure servers and relays.
type Station struct {
	id   int
	name string

	Source  AppSource
	Sink    *Sink
	Service *NetworkService
	Switch  *NetworkSwitch
	Ifaces  []NetIface
}

// createStation builds the layers every station shares.  Interfaces and a
// source are attached afterwards by the topology builder.
func createStation(et *entityTable, index int) *Station {
	stn := new(Station)
	stn.name = fmt.Sprintf("station-%d", index)
	stn.id = et.assignID(stn.name, stn)

	stn.Sink = createSink(et, stn.name+".sink")
	stn.Service = createNetworkService(et, stn.name+".service")
	stn.Switch = createNetworkSwitch(et, stn.name+".switch")
	stn.Service.swtch = stn.Switch
	stn.Service.sink = stn.Sink
	stn.Switch.service = stn.Service
	stn.Ifaces = make([]NetIface, 0)
	return stn
}

// Name gives the station's table name
func (stn *Station) Name() string { return stn.name }

// AttachIface adds an interface to the station and its switch
func (stn *Station) AttachIface(iface NetIface) {
	stn.Ifaces = append(stn.Ifaces, iface)
	stn.Switch.AttachIface(iface)
}

// WirelessIface gives the station's first wireless interface, nil if none
func (stn *Station) WirelessIface() *WirelessInterface {
	for _, iface := range stn.Ifaces {
		if wiface, ok := iface.(*WirelessInterface); ok {
			return wiface
		}
	}
	return nil
}

// CollisionRatio gives collisions / (collisions + successes) at the
// station's wireless receiver, zero before any of either
func (stn *Station) CollisionRatio() float64 {
	wiface := stn.WirelessIface()
	if wiface == nil {
		return 0.0
	}
	rcvr := wiface.Receiver()
	ops := rcvr.NumCollisions() + rcvr.NumReceived()
	if ops == 0 {
		return 0.0
	}
	return float64(rcvr.NumCollisions()) / float64(ops)
}
