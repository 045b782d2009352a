package csmaca

// topo.go holds the topology builders.  A builder takes a NetConfig,
// constructs every entity of the network, wires the cross references, and
// returns a Network handle that owns the event manager for the run.
//
// Interface addresses are assigned sequentially starting at 1 in station
// order, so in single-interface topologies station i's interface has
// address i+1.

import (
	"fmt"
	"math"

	"github.com/iti/rngstream"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

// Network is a fully built simulation model
type Network struct {
	Cfg      NetConfig
	EvtMgr   *EventManager
	TraceMgr *TraceManager
	ConnMgr  *ConnectionManager
	Stations []*Station

	// DestAddr is the interface address all traffic is destined to
	DestAddr int

	serverIndex int
	et          *entityTable
}

// Run executes the model for tmax seconds of virtual time
func (net *Network) Run(tmax float64) {
	net.EvtMgr.Run(tmax)
}

// Server gives the station all traffic converges on
func (net *Network) Server() *Station {
	return net.Stations[net.serverIndex]
}

// Clients gives every station except the server, in station order
func (net *Network) Clients() []*Station {
	clients := make([]*Station, 0, len(net.Stations)-1)
	for idx, stn := range net.Stations {
		if idx != net.serverIndex {
			clients = append(clients, stn)
		}
	}
	return clients
}

// normalizeConfig fills the defaulted fields of a hand-built config
func normalizeConfig(cfg *NetConfig) {
	if cfg.SpeedOfLightMps <= 0.0 {
		cfg.SpeedOfLightMps = SpeedOfLight
	}
	if cfg.AckMarginFactor <= 0.0 {
		cfg.AckMarginFactor = 6.0
	}
}

// sourceActive reports whether station index generates traffic in the
// unsaturated builders.  An empty ActiveSources list means every client does.
func sourceActive(cfg *NetConfig, index int, clients []int) bool {
	if len(cfg.ActiveSources) == 0 {
		for _, cli := range clients {
			if cli == index {
				return true
			}
		}
		return false
	}
	for _, act := range cfg.ActiveSources {
		if act == index {
			return true
		}
	}
	return false
}

func newNetworkShell(cfg NetConfig, traceMgr *TraceManager) *Network {
	net := new(Network)
	net.Cfg = cfg
	net.EvtMgr = CreateEventManager()
	net.TraceMgr = traceMgr
	net.ConnMgr = CreateConnectionManager()
	net.et = createEntityTable()
	return net
}

// buildCollisionDomain builds the single-hop star: station 0 is the server,
// every other station sends straight to it.  saturated selects
// ControlledSource+SaturatedQueue clients over RandomSource+Queue ones.
func buildCollisionDomain(cfg NetConfig, traceMgr *TraceManager, saturated bool) (*Network, error) {
	normalizeConfig(&cfg)
	if cfg.ConnectionRadius <= 0.0 {
		if cfg.Distance <= 0.0 {
			return nil, errors.New("collision domain needs a distance or connection radius")
		}
		// the circle diameter bounds every pairwise distance
		cfg.ConnectionRadius = cfg.Distance
	}
	if verr := cfg.Validate(); verr != nil {
		return nil, errors.Wrap(verr, "building collision domain network")
	}

	payloadDist, derr := CreateDist(cfg.PayloadSizeKind, cfg.PayloadSize, cfg.PayloadSpread)
	if derr != nil {
		return nil, errors.Wrap(derr, "payload size distribution")
	}
	var intervalDist Dist
	if !saturated {
		intervalDist, derr = CreateDist(cfg.SourceIntervalKind, cfg.SourceInterval, cfg.SourceSpread)
		if derr != nil {
			return nil, errors.Wrap(derr, "source interval distribution")
		}
	}

	net := newNetworkShell(cfg, traceMgr)
	net.serverIndex = 0
	net.DestAddr = 1

	clients := make([]int, 0, cfg.NumStations-1)
	for i := 1; i < cfg.NumStations; i++ {
		clients = append(clients, i)
	}

	posRng := rngstream.New("collision-domain-positions")
	circleRadius := cfg.Distance / 2.0

	for i := 0; i < cfg.NumStations; i++ {
		stn := createStation(net.et, i)
		addr := i + 1

		var posX, posY float64
		if saturated {
			angle := 2.0 * math.Pi * float64(i) / float64(cfg.NumStations)
			posX = circleRadius * math.Cos(angle)
			posY = circleRadius * math.Sin(angle)
		} else {
			// scatter within a disc small enough that everyone hears everyone
			areaRadius := cfg.ConnectionRadius / 2.1
			r := (0.1 + 0.9*posRng.RandU01()) * areaRadius
			angle := 2.0 * math.Pi * posRng.RandU01()
			posX = r * math.Cos(angle)
			posY = r * math.Sin(angle)
		}

		var queue PacketQueue
		if i == net.serverIndex {
			queue = createQueue(net.et, stn.Name()+".queue", cfg.QueueCapacity)
		} else if saturated {
			src := createControlledSource(net.et, stn.Name()+".source", i, net.DestAddr, payloadDist)
			src.service = stn.Service
			sq := createSaturatedQueue(net.et, stn.Name()+".queue")
			sq.source = src
			queue = sq
			stn.Source = src
		} else {
			queue = createQueue(net.et, stn.Name()+".queue", cfg.QueueCapacity)
			if sourceActive(&cfg, i, clients) {
				src := createRandomSource(net.et, stn.Name()+".source", i, net.DestAddr,
					payloadDist, intervalDist)
				src.service = stn.Service
				src.Start(net.EvtMgr)
				stn.Source = src
			}
		}

		iface := createWirelessInterface(net.et, stn.Name()+".iface", addr,
			net.EvtMgr, net.ConnMgr, queue, posX, posY, &cfg, traceMgr)
		stn.AttachIface(iface)

		if i != net.serverIndex {
			stn.Switch.AddRoute(net.DestAddr, iface, net.DestAddr)
		}
		net.Stations = append(net.Stations, stn)
	}
	return net, nil
}

// CreateCollisionDomainSaturatedNetwork builds a star of always-backlogged
// clients around the server, stations evenly spaced on a circle of diameter
// Distance
func CreateCollisionDomainSaturatedNetwork(cfg NetConfig, traceMgr *TraceManager) (*Network, error) {
	return buildCollisionDomain(cfg, traceMgr, true)
}

// CreateCollisionDomainNetwork builds a star of randomly placed clients
// generating traffic on independent clocks
func CreateCollisionDomainNetwork(cfg NetConfig, traceMgr *TraceManager) (*Network, error) {
	return buildCollisionDomain(cfg, traceMgr, false)
}

// wirelessNextHop finds the next station on a shortest path from each
// station to dst, over the hear-each-other graph with distance weights
func wirelessNextHop(positions [][2]float64, connRadius float64, dst int) (map[int]int, error) {
	g := simple.NewWeightedUndirectedGraph(0.0, math.Inf(1))
	for i := range positions {
		g.AddNode(simple.Node(int64(i)))
	}
	for i := range positions {
		for j := i + 1; j < len(positions); j++ {
			d := math.Hypot(positions[i][0]-positions[j][0], positions[i][1]-positions[j][1])
			if d <= connRadius {
				g.SetWeightedEdge(simple.WeightedEdge{
					F: simple.Node(int64(i)),
					T: simple.Node(int64(j)),
					W: d,
				})
			}
		}
	}

	nextHop := make(map[int]int)
	for i := range positions {
		if i == dst {
			continue
		}
		spTree := path.DijkstraFrom(simple.Node(int64(i)), g)
		nodes, _ := spTree.To(int64(dst))
		if len(nodes) < 2 {
			return nil, fmt.Errorf("station %d has no path to station %d", i, dst)
		}
		nextHop[i] = int(nodes[1].ID())
	}
	return nextHop, nil
}

// CreateWirelessLineNetwork builds a chain of stations Distance apart, with
// every active source routing hop-by-hop to the last station
func CreateWirelessLineNetwork(cfg NetConfig, traceMgr *TraceManager) (*Network, error) {
	normalizeConfig(&cfg)
	if cfg.Distance <= 0.0 {
		return nil, errors.New("wireless line needs a positive distance")
	}
	if cfg.ConnectionRadius <= 0.0 {
		// neighbors hear each other, two hops away does not
		cfg.ConnectionRadius = 1.5 * cfg.Distance
	}
	if verr := cfg.Validate(); verr != nil {
		return nil, errors.Wrap(verr, "building wireless line network")
	}

	payloadDist, derr := CreateDist(cfg.PayloadSizeKind, cfg.PayloadSize, cfg.PayloadSpread)
	if derr != nil {
		return nil, errors.Wrap(derr, "payload size distribution")
	}
	intervalDist, derr := CreateDist(cfg.SourceIntervalKind, cfg.SourceInterval, cfg.SourceSpread)
	if derr != nil {
		return nil, errors.Wrap(derr, "source interval distribution")
	}

	net := newNetworkShell(cfg, traceMgr)
	net.serverIndex = cfg.NumStations - 1
	net.DestAddr = cfg.NumStations

	positions := make([][2]float64, cfg.NumStations)
	for i := range positions {
		positions[i] = [2]float64{float64(i) * cfg.Distance, 0.0}
	}
	nextHop, rerr := wirelessNextHop(positions, cfg.ConnectionRadius, net.serverIndex)
	if rerr != nil {
		return nil, errors.Wrap(rerr, "routing wireless line network")
	}

	clients := make([]int, 0, cfg.NumStations-1)
	for i := 0; i < cfg.NumStations-1; i++ {
		clients = append(clients, i)
	}

	for i := 0; i < cfg.NumStations; i++ {
		stn := createStation(net.et, i)
		addr := i + 1

		queue := createQueue(net.et, stn.Name()+".queue", cfg.QueueCapacity)
		iface := createWirelessInterface(net.et, stn.Name()+".iface", addr,
			net.EvtMgr, net.ConnMgr, queue, positions[i][0], positions[i][1],
			&cfg, traceMgr)
		stn.AttachIface(iface)

		if i != net.serverIndex {
			stn.Switch.AddRoute(net.DestAddr, iface, nextHop[i]+1)
			if sourceActive(&cfg, i, clients) {
				src := createRandomSource(net.et, stn.Name()+".source", i, net.DestAddr,
					payloadDist, intervalDist)
				src.service = stn.Service
				src.Start(net.EvtMgr)
				stn.Source = src
			}
		}
		net.Stations = append(net.Stations, stn)
	}
	return net, nil
}

// CreateWiredLineNetwork builds a chain of stations joined by full-duplex
// wires.  Interior stations carry two interfaces; addresses run
// sequentially along the chain, so the destination is 2 + (n-2)*2.
func CreateWiredLineNetwork(cfg NetConfig, traceMgr *TraceManager) (*Network, error) {
	normalizeConfig(&cfg)
	if verr := cfg.Validate(); verr != nil {
		return nil, errors.Wrap(verr, "building wired line network")
	}

	payloadDist, derr := CreateDist(cfg.PayloadSizeKind, cfg.PayloadSize, cfg.PayloadSpread)
	if derr != nil {
		return nil, errors.Wrap(derr, "payload size distribution")
	}
	intervalDist, derr := CreateDist(cfg.SourceIntervalKind, cfg.SourceInterval, cfg.SourceSpread)
	if derr != nil {
		return nil, errors.Wrap(derr, "source interval distribution")
	}

	net := newNetworkShell(cfg, traceMgr)
	n := cfg.NumStations
	net.serverIndex = n - 1
	net.DestAddr = 2 + (n-2)*2

	clients := make([]int, 0, n-1)
	for i := 0; i < n-1; i++ {
		clients = append(clients, i)
	}

	nextAddress := 1
	for i := 0; i < n; i++ {
		stn := createStation(net.et, i)

		numIfaces := 1
		if i > 0 && i < n-1 {
			numIfaces = 2
		}
		for k := 0; k < numIfaces; k++ {
			name := fmt.Sprintf("%s.iface-%d", stn.Name(), k)
			queue := createQueue(net.et, name+".queue", cfg.QueueCapacity)
			trx := createWiredTransceiver(net.et, name+".trx", &cfg)
			iface := createWiredInterface(net.et, name, nextAddress, queue, trx)
			nextAddress += 1
			stn.AttachIface(iface)
			trx.Start(net.EvtMgr)
		}

		if i < n-1 {
			out := stn.Ifaces[len(stn.Ifaces)-1]
			stn.Switch.AddRoute(net.DestAddr, out, out.Address()+1)
			if sourceActive(&cfg, i, clients) {
				src := createRandomSource(net.et, stn.Name()+".source", i, net.DestAddr,
					payloadDist, intervalDist)
				src.service = stn.Service
				src.Start(net.EvtMgr)
				stn.Source = src
			}
		}
		net.Stations = append(net.Stations, stn)
	}

	// join neighboring stations with wires
	linkDelay := cfg.Distance / cfg.SpeedOfLightMps
	for i := 0; i < n-1; i++ {
		left := net.Stations[i].Ifaces[len(net.Stations[i].Ifaces)-1].(*WiredInterface)
		right := net.Stations[i+1].Ifaces[0].(*WiredInterface)
		connectWiredTransceivers(left.Transceiver(), right.Transceiver(), linkDelay)
	}
	return net, nil
}

// ClientStats is a per-client measurement snapshot
type ClientStats struct {
	Index            int
	SourceID         int
	ServiceTime      float64
	NumRetries       float64
	QueueSize        float64
	TxBusy           float64
	RxBusy           float64
	ArrivalIntervals float64
	NumPacketsSent   int
	Delay            float64
	NumRxCollided    int
	NumRxSuccess     int
}

// ServerStats is the measurement snapshot at the traffic sink
type ServerStats struct {
	ArrivalIntervals   float64
	NumRxCollided      int
	NumRxSuccess       int
	NumPacketsReceived int
	Throughput         float64
}

// ClientStats gathers the snapshot for every client with a wireless
// interface, evaluated at the current virtual time
func (net *Network) ClientStats() []ClientStats {
	now := net.EvtMgr.CurrentSeconds()
	server := net.Server()

	out := make([]ClientStats, 0, len(net.Stations)-1)
	for idx, stn := range net.Stations {
		if idx == net.serverIndex {
			continue
		}
		wiface := stn.WirelessIface()
		if wiface == nil {
			continue
		}

		cs := ClientStats{
			Index:          idx,
			SourceID:       -1,
			ServiceTime:    wiface.Transmitter().ServiceTime().Mean(),
			NumRetries:     wiface.Transmitter().RetriesStat().Mean(),
			TxBusy:         wiface.Transmitter().BusyTrace().TimeAvg(now),
			RxBusy:         wiface.Receiver().BusyTrace().TimeAvg(now),
			NumPacketsSent: wiface.Transmitter().NumSent(),
			NumRxCollided:  wiface.Receiver().NumCollisions(),
			NumRxSuccess:   wiface.Receiver().NumReceived(),
		}
		if q, ok := wiface.Queue().(*Queue); ok {
			cs.QueueSize = q.SizeTrace().TimeAvg(now)
		}
		if stn.Source != nil {
			cs.SourceID = stn.Source.SourceID()
			cs.ArrivalIntervals = stn.Source.ArrivalIntervals().Statistic().Mean()
			if delays, present := server.Sink.SourceDelays()[stn.Source.SourceID()]; present {
				cs.Delay = delays.Mean()
			}
		}
		out = append(out, cs)
	}
	return out
}

// ServerStats gathers the snapshot at the server, evaluated at the current
// virtual time
func (net *Network) ServerStats() ServerStats {
	now := net.EvtMgr.CurrentSeconds()
	server := net.Server()

	ss := ServerStats{
		ArrivalIntervals:   server.Sink.ArrivalIntervals().Statistic().Mean(),
		NumPacketsReceived: server.Sink.NumPackets(),
	}
	if wiface := server.WirelessIface(); wiface != nil {
		ss.NumRxCollided = wiface.Receiver().NumCollisions()
		ss.NumRxSuccess = wiface.Receiver().NumReceived()
	}
	if now > 0.0 {
		ss.Throughput = float64(server.Sink.NumBits()) / now
	}
	return ss
}
