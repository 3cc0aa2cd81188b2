package fw

import (
	"time"

	"github.com/named-data/ndnd-ncc/fw/core"
	"github.com/named-data/ndnd-ncc/fw/defn"
	"github.com/named-data/ndnd-ncc/fw/table"
	enc "github.com/named-data/ndnd-ncc/std/encoding"
	"github.com/named-data/ndnd-ncc/std/types/optional"
)

// Tunables fixed at the protocol level rather than per-deployment
// (core.NccConfig carries the ones spec.md §6 marks as implementer
// choices: the measurement-walk depth and the prediction shift amounts).
const (
	DeferFirstWithoutBestFace = 4000 * time.Microsecond
	DeferRangeWithoutBestFace = 75000 * time.Microsecond
	InitialPrediction         = 8192 * time.Microsecond
	MinPrediction             = 127 * time.Microsecond
	MaxPrediction             = 160000 * time.Microsecond
)

// DefaultNccConfig is consulted by every Ncc strategy instance created
// through strategyInit. A forwarder wires its loaded configuration into
// this var before constructing its Thread; tests may overwrite it
// directly for deterministic shifts and a fixed Rng seed.
var DefaultNccConfig = core.DefaultConfig().Fw.Ncc

func init() {
	strategyInit = append(strategyInit, func() Strategy { return &Ncc{} })
	StrategyVersions["ncc"] = []uint64{1}
}

// MeasurementInfo is the per-namespace learning record spec.md §3
// describes: an adaptive prediction and the best/previous face memory
// it uses to pick an upstream before falling back to blind fan-out.
//
// bestFace and previousFace are non-owning: this module has no face
// table that can invalidate a face ID out from under a MeasurementInfo,
// so "alive" degrades to "is set" here (spec.md §2's weak-reference
// requirement is about not keeping a face's connection resources alive,
// which is a face-table concern entirely external to this record).
type MeasurementInfo struct {
	prediction   time.Duration
	bestFace     optional.Optional[defn.FaceId]
	previousFace optional.Optional[defn.FaceId]
}

func newMeasurementInfo() *MeasurementInfo {
	return &MeasurementInfo{prediction: InitialPrediction}
}

// inheritFrom copies parent's fields verbatim (spec.md §3's inheritance
// rule), field-for-field as spec.md §8 property 8 requires.
func (m *MeasurementInfo) inheritFrom(parent *MeasurementInfo) {
	m.prediction = parent.prediction
	m.bestFace = parent.bestFace
	m.previousFace = parent.previousFace
}

// adjustPredictUp is the penalty/slow-path adjustment (spec.md §4.1).
func (m *MeasurementInfo) adjustPredictUp(cfg core.NccConfig) {
	p := m.prediction
	p += p >> cfg.AdjustPredictUpShift
	if p > MaxPrediction {
		p = MaxPrediction
	}
	m.prediction = p
}

// adjustPredictDown is the reward/confirmation adjustment (spec.md §4.1).
func (m *MeasurementInfo) adjustPredictDown(cfg core.NccConfig) {
	p := m.prediction
	p -= p >> cfg.AdjustPredictDownShift
	if p < MinPrediction {
		p = MinPrediction
	}
	m.prediction = p
}

// getBestFace returns bestFace if alive, else promotes previousFace into
// bestFace and returns that (spec.md §4.2).
func (m *MeasurementInfo) getBestFace() optional.Optional[defn.FaceId] {
	if _, ok := m.bestFace.Get(); ok {
		return m.bestFace
	}
	m.bestFace = m.previousFace
	return m.bestFace
}

// updateBestFace is invoked on Data arrival (spec.md §4.2).
func (m *MeasurementInfo) updateBestFace(face defn.FaceId, cfg core.NccConfig) {
	best, ok := m.bestFace.Get()
	if !ok {
		m.bestFace = optional.Some(face)
		return
	}
	if best == face {
		m.adjustPredictDown(cfg)
		return
	}
	m.previousFace = m.bestFace
	m.bestFace = optional.Some(face)
}

// ageBestFace demotes the current best into previous and clears best.
// Not on any call path the core strategy drives; exposed for tests per
// spec.md §4.2's "an implementer MAY expose it for testing".
func (m *MeasurementInfo) ageBestFace() {
	m.previousFace = m.bestFace
	m.bestFace = optional.None[defn.FaceId]()
}

// pitInfo is the per-PIT-entry propagation state machine spec.md §3 and
// §4.7 describe. Both timer cancel functions are nil until armed; calling
// a nil cancel is always safe.
type pitInfo struct {
	isNewInterest   bool
	maxInterval     time.Duration
	cancelTimeout   func() error
	cancelPropagate func() error
}

func newPitInfo() *pitInfo {
	return &pitInfo{isNewInterest: true}
}

// cancelTimers cancels both outstanding timers, the action spec.md §3
// and §4.6 require on PitInfo destruction (satisfied, expired, or
// rejected). Go has no destructors, so every call site that retires a
// PIT entry's decision must call this explicitly.
func (p *pitInfo) cancelTimers() {
	if p.cancelTimeout != nil {
		_ = p.cancelTimeout()
		p.cancelTimeout = nil
	}
	if p.cancelPropagate != nil {
		_ = p.cancelPropagate()
		p.cancelPropagate = nil
	}
}

// Ncc is the NCC forwarding strategy: it learns, per namespace, which
// upstream face tends to answer fastest, sends there first, and falls
// back to a time-sliced fan-out over the remaining nexthops if the best
// face misses its predicted window.
type Ncc struct {
	StrategyBase
	cfg core.NccConfig
	rng Rng
}

// Instantiate binds the strategy to its thread and snapshots the
// current DefaultNccConfig, seeding its Rng from the configured seed (or
// the current time, if unset, per spec.md §9's reproducibility note).
func (s *Ncc) Instantiate(fwThread *Thread) {
	s.NewStrategyBase(fwThread, "ncc", 1)
	s.cfg = DefaultNccConfig
	seed := s.cfg.RngSeed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	s.rng = NewRng(seed)
}

// AfterContentStoreHit forwards a cached Data packet, identical in
// effect to the kept Multicast strategy's handling: NCC's learning is
// about upstream face choice and has nothing more to add once content is
// already local.
func (s *Ncc) AfterContentStoreHit(packet *defn.Pkt, pitEntry table.PitEntry, inFace uint64) {
	core.Log.Trace(s, "AfterContentStoreHit", "name", packet.Name, "faceid", inFace)
	s.SendData(packet, pitEntry, inFace, 0)
}

// AfterReceiveData just forwards, identical to Multicast's handling: the
// ground truth's afterReceiveData is the strategy base class's default
// (plain forward), and does not learn. Learning happens once, in
// BeforeSatisfyInterest, which the forwarding pipeline also invokes for
// this same Data - duplicating the walk here would double-apply
// updateBestFace (spec.md §4.6 runs it "on Data arrival", singular).
func (s *Ncc) AfterReceiveData(packet *defn.Pkt, pitEntry table.PitEntry, inFace uint64) {
	for faceID := range pitEntry.InRecords() {
		s.SendData(packet, pitEntry, faceID, inFace)
	}
}

// BeforeSatisfyInterest is the sole measurement-update site for a
// returning Data (spec.md §4.6): it walks the measurement tree rewarding
// the face Data arrived on, then retires the PitInfo, cancelling both
// timers spec.md §4.7's Terminal transition requires (the original C++
// relied on destructor-driven cancellation the Go port doesn't have; see
// DESIGN.md).
func (s *Ncc) BeforeSatisfyInterest(pitEntry table.PitEntry, inFace uint64) {
	s.updateMeasurementsOnData(pitEntry.EncName(), inFace)
	s.retirePitInfo(pitEntry)
}

func (s *Ncc) retirePitInfo(pitEntry table.PitEntry) {
	infoRaw := pitEntry.GetStrategyInfo()
	if infoRaw == nil {
		return
	}
	if info, ok := infoRaw.(*pitInfo); ok {
		info.cancelTimers()
	}
}

// updateMeasurementsOnData implements spec.md §4.6's ancestor walk.
func (s *Ncc) updateMeasurementsOnData(name enc.Name, inFace uint64) {
	entry, _ := s.Thread().Measurements.Get(name, core.MeasurementsLifetime)
	var cur table.MeasurementsEntry = entry
	for i := 0; i < s.cfg.UpdateMeasurementsNLevels; i++ {
		if cur == nil {
			return
		}
		s.Thread().Measurements.ExtendLifetime(cur, core.MeasurementsLifetime)
		mi := s.getMeasurementsEntryInfo(cur)
		mi.updateBestFace(inFace, s.cfg)

		parent, ok := s.Thread().Measurements.GetParent(cur)
		if !ok {
			return
		}
		cur = parent
	}
}

// AfterReceiveInterest is the on-Interest decision engine (spec.md §4.3).
func (s *Ncc) AfterReceiveInterest(
	packet *defn.Pkt,
	pitEntry table.PitEntry,
	inFace uint64,
	nexthops []*table.FibNextHopEntry,
) {
	if len(nexthops) == 0 {
		core.Log.Debug(s, "No nexthop for Interest - rejecting", "name", packet.Name)
		s.Thread().RejectPendingInterest(pitEntry.EncName())
		return
	}

	infoRaw := pitEntry.GetOrCreateStrategyInfo(func() table.StrategyInfo { return newPitInfo() })
	info := infoRaw.(*pitInfo)
	if !info.isNewInterest {
		// Retransmission: the first visit's decision stands.
		return
	}
	info.isNewInterest = false

	mi := s.getMeasurementsEntryInfoForName(pitEntry.EncName())

	deferFirst := DeferFirstWithoutBestFace
	deferRange := DeferRangeWithoutBestFace
	nUpstreams := len(nexthops)

	name := pitEntry.EncName()

	if bestFace, ok := mi.getBestFace().Get(); ok && hasNextHop(nexthops, bestFace) && pitEntry.CanForwardTo(bestFace) {
		deferFirst = mi.prediction
		deferRange = (mi.prediction + 1) / 2
		nUpstreams--

		s.SendInterest(packet, pitEntry, bestFace, inFace)
		s.Thread().publish(core.TraceEvent{
			Time: time.Now(), Strategy: s.String(), Event: "send-best-face",
			Name: name.String(), FaceId: bestFace,
		})
		info.cancelTimeout = s.Thread().Timer.Schedule(mi.prediction, func() {
			s.timeoutOnBestFace(name)
		})
	} else {
		// Fall back to the first nexthop that is not the Interest's own
		// inFace. spec.md §9 calls out the original's failure to filter
		// inFace here (`// TODO avoid sending to inFace`) as a bug this
		// implementation fixes.
		face := firstNextHopExcluding(nexthops, inFace)
		s.SendInterest(packet, pitEntry, face, inFace)
		s.Thread().publish(core.TraceEvent{
			Time: time.Now(), Strategy: s.String(), Event: "send-first-nexthop",
			Name: name.String(), FaceId: face,
		})
	}

	if previousFace, ok := mi.previousFace.Get(); ok && hasNextHop(nexthops, previousFace) && pitEntry.CanForwardTo(previousFace) {
		nUpstreams--
	}

	if nUpstreams > 0 {
		interval := ceilDiv(2*deferRange, nUpstreams)
		if interval < time.Microsecond {
			interval = time.Microsecond
		}
		info.maxInterval = interval
	}

	info.cancelPropagate = s.Thread().Timer.Schedule(deferFirst, func() {
		s.doPropagate(name)
	})
}

// timeoutOnBestFace is the best-face-timeout penalty walk (spec.md §4.4).
// It re-resolves the PIT entry by name rather than holding it directly,
// so an already-satisfied/expired/rejected entry is simply absent here
// instead of kept artificially alive by this closure.
func (s *Ncc) timeoutOnBestFace(name enc.Name) {
	pitEntry, ok := s.Thread().Pit.Find(name)
	if !ok {
		return
	}

	entry, _ := s.Thread().Measurements.Get(pitEntry.EncName(), core.MeasurementsLifetime)
	var cur table.MeasurementsEntry = entry
	for i := 0; i < s.cfg.UpdateMeasurementsNLevels; i++ {
		if cur == nil {
			return
		}
		s.Thread().Measurements.ExtendLifetime(cur, core.MeasurementsLifetime)
		mi := s.getMeasurementsEntryInfo(cur)
		mi.adjustPredictUp(s.cfg)
		s.Thread().publish(core.TraceEvent{
			Time: time.Now(), Strategy: s.String(), Event: "best-face-timeout",
			Name: name.String(), Detail: mi.prediction.String(),
		})

		parent, ok := s.Thread().Measurements.GetParent(cur)
		if !ok {
			return
		}
		cur = parent
	}
}

// doPropagate is the deferred-propagation tick (spec.md §4.5). Both the
// PIT entry and the FIB entry are re-resolved by name/longest-prefix
// rather than held directly - the weak-lookup discipline spec.md §4.5
// step 1 requires ("Both must be verified; no assumption that surviving
// one implies surviving the other").
func (s *Ncc) doPropagate(name enc.Name) {
	pitEntry, ok := s.Thread().Pit.Find(name)
	if !ok {
		return
	}
	fibEntry, ok := s.Thread().Fib.FindLongestPrefixMatch(pitEntry.EncName())
	if !ok {
		return
	}

	infoRaw := pitEntry.GetStrategyInfo()
	info, ok := infoRaw.(*pitInfo)
	if !ok || info == nil {
		return
	}

	mi := s.getMeasurementsEntryInfoForName(pitEntry.EncName())
	packet := defn.NewInterestPkt(pitEntry.Interest())

	if previousFace, ok := mi.previousFace.Get(); ok && fibEntry.HasNextHop(previousFace) && pitEntry.CanForwardTo(previousFace) {
		s.SendInterest(packet, pitEntry, previousFace, 0)
		s.Thread().publish(core.TraceEvent{
			Time: time.Now(), Strategy: s.String(), Event: "propagate-previous-face",
			Name: name.String(), FaceId: previousFace,
		})
	}

	isForwarded := false
	for _, nh := range fibEntry.GetNextHops() {
		if pitEntry.CanForwardTo(nh.Nexthop) {
			s.SendInterest(packet, pitEntry, nh.Nexthop, 0)
			s.Thread().publish(core.TraceEvent{
				Time: time.Now(), Strategy: s.String(), Event: "propagate-nexthop",
				Name: name.String(), FaceId: nh.Nexthop,
			})
			isForwarded = true
			break
		}
	}

	if !isForwarded {
		// Namespace exhausted; let the PIT's own lifetime end the Interest.
		return
	}

	interval := info.maxInterval
	if interval <= 0 {
		interval = time.Microsecond
	}
	next := time.Duration(s.rng.UintN(uint64(interval)))
	info.cancelPropagate = s.Thread().Timer.Schedule(next, func() {
		s.doPropagate(name)
	})
}

// getMeasurementsEntryInfo returns entry's attached MeasurementInfo,
// creating and inheriting it from the parent namespace on first access
// (spec.md §3's inheritance rule, §4's getMeasurementsEntryInfo).
func (s *Ncc) getMeasurementsEntryInfo(entry table.MeasurementsEntry) *MeasurementInfo {
	if existing := entry.GetStrategyInfo(); existing != nil {
		return existing.(*MeasurementInfo)
	}

	info := newMeasurementInfo()
	entry.SetStrategyInfo(info)

	if parent, ok := s.Thread().Measurements.GetParent(entry); ok {
		info.inheritFrom(s.getMeasurementsEntryInfo(parent))
	}

	return info
}

func (s *Ncc) getMeasurementsEntryInfoForName(name enc.Name) *MeasurementInfo {
	entry, _ := s.Thread().Measurements.Get(name, core.MeasurementsLifetime)
	return s.getMeasurementsEntryInfo(entry)
}

func hasNextHop(nexthops []*table.FibNextHopEntry, face defn.FaceId) bool {
	for _, nh := range nexthops {
		if nh.Nexthop == face {
			return true
		}
	}
	return false
}

func firstNextHopExcluding(nexthops []*table.FibNextHopEntry, exclude defn.FaceId) defn.FaceId {
	for _, nh := range nexthops {
		if nh.Nexthop != exclude {
			return nh.Nexthop
		}
	}
	return nexthops[0].Nexthop
}

// ceilDiv computes max(1µs, ceil(total/n)) without intermediate
// truncation, as integer durations; AfterReceiveInterest passes
// total = 2*deferRange and n = nUpstreams.
func ceilDiv(total time.Duration, n int) time.Duration {
	if n <= 0 {
		return time.Microsecond
	}
	d := int64(total)
	nn := int64(n)
	r := time.Duration((d + nn - 1) / nn)
	if r < time.Microsecond {
		r = time.Microsecond
	}
	return r
}
