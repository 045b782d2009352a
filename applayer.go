package csmaca

// applayer.go holds the traffic endpoints: sources that create application
// data units and the sink that consumes them and measures end-to-end
// behavior.  Sources speak to a NetworkService, never to an interface
// directly.

import (
	"github.com/iti/evt/vrtime"
	"github.com/iti/rngstream"
	"github.com/simonlingoogle/go-simplelogger"
)

// AppData is one application payload.  Size is in bits; createdAt is the
// virtual time of generation, the anchor for end-to-end delay.
type AppData struct {
	destAddr  int
	size      int
	sourceID  int
	createdAt float64
}

// createAppData is a constructor
func createAppData(destAddr, size, sourceID int, createdAt float64) *AppData {
	return &AppData{destAddr: destAddr, size: size, sourceID: sourceID, createdAt: createdAt}
}

// Size gives the payload size in bits
func (ad *AppData) Size() int { return ad.size }

// SourceID identifies the generating source
func (ad *AppData) SourceID() int { return ad.sourceID }

// CreatedAt gives the generation time
func (ad *AppData) CreatedAt() float64 { return ad.createdAt }

// sourceCore carries what RandomSource and ControlledSource share: the
// size distribution, the addressing, and generation statistics.
type sourceCore struct {
	id   int
	name string

	sourceID int
	destAddr int
	sizeDist Dist
	rng      *rngstream.RngStream

	service *NetworkService

	arrivalIntervals *Intervals
	sizeStat         *Statistic
	numPackets       int
	numBits          int
}

// init fills the embedded core.  owner is the enclosing source, the object
// registered in the entity table.
func (core *sourceCore) init(et *entityTable, name string, owner any,
	sourceID, destAddr int, sizeDist Dist) {

	core.name = name
	core.id = et.assignID(name, owner)
	core.sourceID = sourceID
	core.destAddr = destAddr
	core.sizeDist = sizeDist
	core.rng = rngstream.New(name)
	core.arrivalIntervals = CreateIntervals()
	core.sizeStat = CreateStatistic()
}

// generate creates one AppData and hands it to the network service
func (core *sourceCore) generate(evtMgr *EventManager) {
	size := int(core.sizeDist.Sample(core.rng))
	now := evtMgr.CurrentSeconds()
	ad := createAppData(core.destAddr, size, core.sourceID, now)

	core.arrivalIntervals.Record(now)
	core.sizeStat.Append(float64(size))
	core.numPackets += 1
	core.numBits += size

	simplelogger.Debugf("%.6f %s: generated packet for %d, %d bits",
		now, core.name, core.destAddr, size)
	core.service.HandleAppData(evtMgr, ad)
}

func (core *sourceCore) SourceID() int                { return core.sourceID }
func (core *sourceCore) NumPackets() int              { return core.numPackets }
func (core *sourceCore) NumBits() int                 { return core.numBits }
func (core *sourceCore) ArrivalIntervals() *Intervals { return core.arrivalIntervals }
func (core *sourceCore) SizeStat() *Statistic         { return core.sizeStat }

// RandomSource generates packets on its own clock, with independent size
// and inter-arrival distributions
type RandomSource struct {
	sourceCore
	intervalDist Dist
}

// createRandomSource is a constructor.  Start must be called once the
// service is wired.
func createRandomSource(et *entityTable, name string, sourceID, destAddr int,
	sizeDist, intervalDist Dist) *RandomSource {

	src := new(RandomSource)
	src.sourceCore.init(et, name, src, sourceID, destAddr, sizeDist)
	src.intervalDist = intervalDist
	return src
}

// Start schedules the first arrival
func (src *RandomSource) Start(evtMgr *EventManager) {
	evtMgr.Schedule(src, nil, handleSourceArrival,
		vrtime.SecondsToTime(src.intervalDist.Sample(src.rng)))
}

// handleSourceArrival generates one packet and schedules the next arrival
func handleSourceArrival(evtMgr *EventManager, cxt any, data any) any {
	src := cxt.(*RandomSource)
	src.generate(evtMgr)
	evtMgr.Schedule(src, nil, handleSourceArrival,
		vrtime.SecondsToTime(src.intervalDist.Sample(src.rng)))
	return nil
}

// ControlledSource generates a packet only when asked, the demand half of
// a saturated station
type ControlledSource struct {
	sourceCore
}

// createControlledSource is a constructor
func createControlledSource(et *entityTable, name string, sourceID, destAddr int,
	sizeDist Dist) *ControlledSource {

	src := new(ControlledSource)
	src.sourceCore.init(et, name, src, sourceID, destAddr, sizeDist)
	return src
}

// GetNext schedules one generation at the current time
func (src *ControlledSource) GetNext(evtMgr *EventManager) {
	evtMgr.Schedule(src, nil, handleControlledGenerate, vrtime.SecondsToTime(0.0))
}

func handleControlledGenerate(evtMgr *EventManager, cxt any, data any) any {
	src := cxt.(*ControlledSource)
	src.generate(evtMgr)
	return nil
}

// Sink consumes AppData and measures end-to-end delay per source, overall
// inter-arrival intervals, and received sizes
type Sink struct {
	id   int
	name string

	sourceDelays     map[int]*Statistic
	arrivalIntervals *Intervals
	sizeStat         *Statistic
	numPackets       int
	numBits          int
}

// createSink is a constructor
func createSink(et *entityTable, name string) *Sink {
	snk := new(Sink)
	snk.name = name
	snk.id = et.assignID(name, snk)
	snk.sourceDelays = make(map[int]*Statistic)
	snk.arrivalIntervals = CreateIntervals()
	snk.sizeStat = CreateStatistic()
	return snk
}

// Receive accepts one delivered payload
func (snk *Sink) Receive(evtMgr *EventManager, ad *AppData) {
	now := evtMgr.CurrentSeconds()

	_, present := snk.sourceDelays[ad.SourceID()]
	if !present {
		snk.sourceDelays[ad.SourceID()] = CreateStatistic()
	}
	snk.sourceDelays[ad.SourceID()].Append(now - ad.CreatedAt())

	snk.arrivalIntervals.Record(now)
	snk.sizeStat.Append(float64(ad.Size()))
	snk.numPackets += 1
	snk.numBits += ad.Size()

	simplelogger.Debugf("%.6f %s: received packet from source %d",
		now, snk.name, ad.SourceID())
}

// SourceDelays gives per-source end-to-end delay statistics
func (snk *Sink) SourceDelays() map[int]*Statistic { return snk.sourceDelays }

// ArrivalIntervals gives inter-arrival intervals over all sources
func (snk *Sink) ArrivalIntervals() *Intervals { return snk.arrivalIntervals }

// SizeStat gives received payload size samples
func (snk *Sink) SizeStat() *Statistic { return snk.sizeStat }

// NumPackets gives the count of payloads delivered
func (snk *Sink) NumPackets() int { return snk.numPackets }

// NumBits gives the total payload volume delivered
func (snk *Sink) NumBits() int { return snk.numBits }
