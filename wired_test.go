package csmaca

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wiredScenarioConfig(numStations int) NetConfig {
	cfg := DefaultNetConfig()
	cfg.NumStations = numStations
	cfg.PayloadSizeKind = "const"
	cfg.PayloadSize = 1000.0
	cfg.SourceIntervalKind = "const"
	cfg.SourceInterval = 0.5
	cfg.Bitrate = 1e5
	cfg.Slot = 0.05
	cfg.CWMin = 2
	cfg.CWMax = 8
	cfg.Distance = 1000.0
	cfg.SpeedOfLightMps = 2e8
	cfg.WireHeaderSize = 100
	cfg.WireIfs = 1e-4
	return cfg
}

func TestWiredTransceiverPointToPoint(t *testing.T) {
	et := createEntityTable()
	evtMgr := CreateEventManager()
	cfg := wiredScenarioConfig(2)

	stnA := createStation(et, 0)
	stnB := createStation(et, 1)

	qA := createQueue(et, "wire-a.queue", 0)
	trxA := createWiredTransceiver(et, "wire-a.trx", &cfg)
	ifaceA := createWiredInterface(et, "wire-a", 1, qA, trxA)
	stnA.AttachIface(ifaceA)

	qB := createQueue(et, "wire-b.queue", 0)
	trxB := createWiredTransceiver(et, "wire-b.trx", &cfg)
	ifaceB := createWiredInterface(et, "wire-b", 2, qB, trxB)
	stnB.AttachIface(ifaceB)

	connectWiredTransceivers(trxA, trxB, 1e-6)

	trxA.AcceptFromQueue(evtMgr, testPacket(2, 500))
	assert.True(t, trxA.TxBusy())

	// a second delivery while transmitting violates the pull contract
	require.Panics(t, func() {
		trxA.AcceptFromQueue(evtMgr, testPacket(2, 500))
	})

	evtMgr.RunToEmpty()

	assert.False(t, trxA.TxBusy())
	assert.False(t, trxB.RxBusy())
	assert.Equal(t, 1, trxA.NumTransmittedPackets())
	assert.Equal(t, cfg.WireHeaderSize+500, trxA.NumTransmittedBits())
	assert.Equal(t, 1, trxB.NumReceivedFrames())
	assert.Equal(t, cfg.WireHeaderSize+500, trxB.NumReceivedBits())

	// the frame landed on station B's sink via local delivery
	assert.Equal(t, 1, stnB.Sink.NumPackets())
	assert.Equal(t, 500, stnB.Sink.NumBits())

	// service time covers wire occupancy plus the inter-frame space
	duration := float64(cfg.WireHeaderSize+500)/cfg.Bitrate + cfg.Preamble
	require.Equal(t, 1, trxA.ServiceTime().Count())
	assert.InDelta(t, duration+cfg.WireIfs, trxA.ServiceTime().Mean(), 1e-9)
}

func TestWiredLineNetworkDelivery(t *testing.T) {
	cfg := wiredScenarioConfig(3)
	cfg.ActiveSources = []int{0}

	tm := CreateTraceManager("wired-line", false)
	net, err := CreateWiredLineNetwork(cfg, tm)
	require.NoError(t, err)

	// interior stations carry two interfaces and addresses run down the chain
	assert.Len(t, net.Stations[0].Ifaces, 1)
	assert.Len(t, net.Stations[1].Ifaces, 2)
	assert.Len(t, net.Stations[2].Ifaces, 1)
	assert.Equal(t, 4, net.DestAddr)

	const stime = 100.0
	net.Run(stime)

	server := net.Server()
	generated := net.Stations[0].Source.NumPackets()
	delivered := server.Sink.NumPackets()

	// one packet every half second, nothing lost but the one in flight
	assert.InDelta(t, stime/cfg.SourceInterval, float64(generated), 1.0)
	assert.GreaterOrEqual(t, delivered, generated-2)
	assert.LessOrEqual(t, delivered, generated)
	assert.InDelta(t, cfg.PayloadSize, server.Sink.SizeStat().Mean(), 1e-9)

	// the relay repeats every frame on its outbound wire
	relayOut := net.Stations[1].Ifaces[1].(*WiredInterface).Transceiver()
	assert.InDelta(t, float64(delivered), float64(relayOut.NumTransmittedPackets()), 1.0)

	// end-to-end delay is two store-and-forward hops over an idle line
	hop := (cfg.PayloadSize+float64(cfg.WireHeaderSize))/cfg.Bitrate + cfg.Preamble +
		cfg.Distance/cfg.SpeedOfLightMps
	delays := server.Sink.SourceDelays()[0]
	require.NotNil(t, delays)
	assert.InDelta(t, 2.0*hop, delays.Mean(), 1e-6)
}
