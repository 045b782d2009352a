package csmaca

// netlayer.go holds the network layer of a station: the packet format, the
// encapsulation service between the application layer and the switch, and
// the static-route switch itself.
//
// Addresses at this layer are interface MAC addresses.  The switch tracks
// originator sequence numbers (OSN) per originator address and silently
// drops packets whose OSN does not advance, so a packet looping through a
// multi-hop topology dies at the first switch that has already seen it.

import (
	"fmt"

	"github.com/iti/evt/vrtime"
	"github.com/simonlingoogle/go-simplelogger"
)

// addrUnset marks an address or OSN field not yet filled in
const addrUnset = -1

// NetworkPacket is the network-layer envelope around one AppData
type NetworkPacket struct {
	destinationAddr int
	originatorAddr  int
	senderAddr      int
	receiverAddr    int
	osn             int
	data            *AppData
}

// createNetworkPacket is a constructor; every field except destination and
// payload starts unset
func createNetworkPacket(destinationAddr int, data *AppData) *NetworkPacket {
	return &NetworkPacket{
		destinationAddr: destinationAddr,
		originatorAddr:  addrUnset,
		senderAddr:      addrUnset,
		receiverAddr:    addrUnset,
		osn:             addrUnset,
		data:            data,
	}
}

// Size gives the payload size in bits; network headers are accounted at
// the MAC layer
func (pkt *NetworkPacket) Size() int {
	if pkt.data == nil {
		return 0
	}
	return pkt.data.Size()
}

// DestinationAddr gives the final destination interface address
func (pkt *NetworkPacket) DestinationAddr() int { return pkt.destinationAddr }

// OriginatorAddr gives the address of the interface that first sent the packet
func (pkt *NetworkPacket) OriginatorAddr() int { return pkt.originatorAddr }

// SenderAddr gives the address of the interface that last sent the packet
func (pkt *NetworkPacket) SenderAddr() int { return pkt.senderAddr }

// ReceiverAddr gives the next-hop interface address
func (pkt *NetworkPacket) ReceiverAddr() int { return pkt.receiverAddr }

// OSN gives the originator sequence number
func (pkt *NetworkPacket) OSN() int { return pkt.osn }

// Data gives the payload
func (pkt *NetworkPacket) Data() *AppData { return pkt.data }

func (pkt *NetworkPacket) String() string {
	return fmt.Sprintf("NetPkt{DST=%d,ORIGIN=%d,SND=%d,RCV=%d,OSN=%d}",
		pkt.destinationAddr, pkt.originatorAddr, pkt.senderAddr,
		pkt.receiverAddr, pkt.osn)
}

// SwitchLink is one static route entry: the interface to send through and
// the next-hop address on that interface
type SwitchLink struct {
	iface   NetIface
	nextHop int
}

// NetworkService encapsulates AppData into NetworkPackets on the way down
// and strips the envelope on the way up
type NetworkService struct {
	id   int
	name string

	swtch *NetworkSwitch
	sink  *Sink
}

// createNetworkService is a constructor
func createNetworkService(et *entityTable, name string) *NetworkService {
	svc := new(NetworkService)
	svc.name = name
	svc.id = et.assignID(name, svc)
	return svc
}

// HandleAppData wraps a payload and hands it to the switch
func (svc *NetworkService) HandleAppData(evtMgr *EventManager, ad *AppData) {
	pkt := createNetworkPacket(ad.destAddr, ad)
	svc.swtch.HandlePacket(evtMgr, pkt, svc)
}

// deliverToSink is the event handler for the switch-to-service hop on the
// receive path
func deliverToSink(evtMgr *EventManager, cxt any, data any) any {
	svc := cxt.(*NetworkService)
	svc.sink.Receive(evtMgr, data.(*NetworkPacket).Data())
	return nil
}

// NetworkSwitch forwards packets between a station's interfaces and its
// network service, using a static route table
type NetworkSwitch struct {
	id   int
	name string

	service  *NetworkService
	ifaces   []NetIface
	table    map[int]SwitchLink
	osnTable map[int]int
}

// createNetworkSwitch is a constructor
func createNetworkSwitch(et *entityTable, name string) *NetworkSwitch {
	swtch := new(NetworkSwitch)
	swtch.name = name
	swtch.id = et.assignID(name, swtch)
	swtch.ifaces = make([]NetIface, 0)
	swtch.table = make(map[int]SwitchLink)
	swtch.osnTable = make(map[int]int)
	return swtch
}

// AttachIface registers an interface with the switch and points the
// interface back at it
func (swtch *NetworkSwitch) AttachIface(iface NetIface) {
	swtch.ifaces = append(swtch.ifaces, iface)
	iface.attachSwitch(swtch)
}

// AddRoute installs a static route: packets for dst leave through iface
// toward nextHop
func (swtch *NetworkSwitch) AddRoute(dst int, iface NetIface, nextHop int) {
	swtch.table[dst] = SwitchLink{iface: iface, nextHop: nextHop}
}

// HandlePacket routes one packet.  from identifies where it came in: the
// station's own NetworkService or one of the interfaces.
func (swtch *NetworkSwitch) HandlePacket(evtMgr *EventManager, pkt *NetworkPacket, from any) {
	// packets from the network carry an OSN; one that does not advance the
	// per-originator high-water mark has been seen before and dies here
	if pkt.originatorAddr != addrUnset {
		if pkt.osn == addrUnset {
			simplelogger.Panicf("%s: originator set but no OSN on %v", swtch.name, pkt)
		}
		stored, present := swtch.osnTable[pkt.originatorAddr]
		if !present {
			swtch.osnTable[pkt.originatorAddr] = pkt.osn
		} else if pkt.osn <= stored {
			simplelogger.Debugf("%.6f %s: dropping stale %v",
				evtMgr.CurrentSeconds(), swtch.name, pkt)
			return
		} else {
			swtch.osnTable[pkt.originatorAddr] = pkt.osn
		}
	}

	// local delivery when any attached interface owns the destination
	for _, iface := range swtch.ifaces {
		if iface.Address() == pkt.destinationAddr {
			evtMgr.Schedule(swtch.service, pkt, deliverToSink, vrtime.SecondsToTime(0.0))
			return
		}
	}

	link, routed := swtch.table[pkt.destinationAddr]
	if !routed {
		simplelogger.Debugf("%.6f %s: no route for %v, dropped",
			evtMgr.CurrentSeconds(), swtch.name, pkt)
		return
	}

	if from == swtch.service {
		// a locally originated packet gets its originator address and a
		// fresh OSN here
		pkt.originatorAddr = link.iface.Address()
		_, present := swtch.osnTable[pkt.originatorAddr]
		if !present {
			swtch.osnTable[pkt.originatorAddr] = 0
		} else {
			swtch.osnTable[pkt.originatorAddr] += 1
		}
		pkt.osn = swtch.osnTable[pkt.originatorAddr]
	} else if pkt.originatorAddr == addrUnset || pkt.osn == addrUnset {
		simplelogger.Panicf("%s: forwarded packet missing originator or OSN: %v",
			swtch.name, pkt)
	}

	pkt.receiverAddr = link.nextHop
	pkt.senderAddr = link.iface.Address()
	simplelogger.Debugf("%.6f %s: forwarding %v via interface %d",
		evtMgr.CurrentSeconds(), swtch.name, pkt, link.iface.Address())
	link.iface.PushDown(evtMgr, pkt)
}
