package fw

import (
	"fmt"

	"github.com/named-data/ndnd-ncc/fw/core"
	"github.com/named-data/ndnd-ncc/fw/defn"
	"github.com/named-data/ndnd-ncc/fw/table"
	enc "github.com/named-data/ndnd-ncc/std/encoding"
	"github.com/named-data/ndnd-ncc/std/ndn"
)

// Faces is the face table's send surface, the only piece of face I/O a
// strategy ever touches (spec.md §1 places face I/O itself out of
// scope). A real deployment backs this with actual sockets/transports;
// tests back it with a recording fake.
type Faces interface {
	SendInterest(face defn.FaceId, pkt *defn.Pkt) error
	SendData(face defn.FaceId, pkt *defn.Pkt) error
}

// Strategy is the decision-making surface a forwarding thread drives.
// Every method is invoked from the single cooperative event loop
// described in spec.md §5 - implementations need no internal locking.
type Strategy interface {
	fmt.Stringer

	// Instantiate binds the strategy to its owning thread, so it can reach
	// the Pit/FibStrategyTable/Measurements/Faces/Timer it needs.
	Instantiate(fwThread *Thread)

	AfterContentStoreHit(packet *defn.Pkt, pitEntry table.PitEntry, inFace uint64)
	AfterReceiveData(packet *defn.Pkt, pitEntry table.PitEntry, inFace uint64)
	AfterReceiveInterest(
		packet *defn.Pkt,
		pitEntry table.PitEntry,
		inFace uint64,
		nexthops []*table.FibNextHopEntry,
	)
	BeforeSatisfyInterest(pitEntry table.PitEntry, inFace uint64)
}

// strategyInit collects the zero-arg constructors every strategy
// implementation registers itself under in its package init(), mirroring
// how the kept Multicast strategy already registers itself.
var strategyInit []func() Strategy

// StrategyVersions maps a strategy's short name to the versions
// registered for it, so the strategy-choice table can resolve
// "<name>/v=<n>" names to a concrete implementation.
var StrategyVersions = make(map[string][]uint64)

// Thread is a single forwarding worker: the tables and capabilities the
// spec's external interfaces (§6) describe, bound together so a strategy
// can reach all of them through its StrategyBase. spec.md §5 allows
// multiple threads provided each partitions its own PIT/FIB/Measurements
// state and a name is always routed to the same one; this module runs a
// single thread, which trivially satisfies that constraint.
type Thread struct {
	Pit          *table.Pit
	Fib          *table.FibStrategyTable
	Measurements *table.Measurements
	Cs           *table.Cs
	Faces        Faces
	Timer        ndn.Timer

	strategies map[string]Strategy
	trace      *core.TraceBus
}

// SetTrace wires a TraceBus that strategies publish decision events to,
// for the debug websocket surface. Safe to leave unset; publish is then
// simply a no-op.
func (t *Thread) SetTrace(bus *core.TraceBus) {
	t.trace = bus
}

// publish fans a trace event out to the wired TraceBus, if any.
func (t *Thread) publish(ev core.TraceEvent) {
	if t.trace != nil {
		t.trace.Publish(ev)
	}
}

// NewThread wires together one forwarding thread from its external
// collaborators, instantiating and registering every strategy in
// strategyInit.
func NewThread(pit *table.Pit, fib *table.FibStrategyTable, measurements *table.Measurements, cs *table.Cs, faces Faces, timer ndn.Timer) *Thread {
	t := &Thread{
		Pit:          pit,
		Fib:          fib,
		Measurements: measurements,
		Cs:           cs,
		Faces:        faces,
		Timer:        timer,
		strategies:   make(map[string]Strategy),
	}
	for _, newStrategy := range strategyInit {
		s := newStrategy()
		s.Instantiate(t)
		t.strategies[s.String()] = s
	}
	return t
}

// Strategy returns the registered strategy instance with the given
// "<name>/v=<version>" identity, or nil if none is registered.
func (t *Thread) Strategy(identity string) Strategy {
	return t.strategies[identity]
}

// RejectPendingInterest erases the PIT entry for name, the external
// `rejectPendingInterest(pitEntry)` capability spec.md §4.3 step 1 and §6
// describe: downstream is left to time out and receive a nack from its
// own retransmission logic, since this module's PIT is not wired to a
// nack-generation path.
func (t *Thread) RejectPendingInterest(name enc.Name) {
	t.Pit.Erase(name)
}

// StrategyBase is the common plumbing every Strategy implementation
// embeds: identity, its owning thread, and the send helpers (SendInterest
// also performs the PIT out-record bookkeeping a raw Faces.SendInterest
// call would skip).
type StrategyBase struct {
	thread  *Thread
	name    string
	version uint64
}

// NewStrategyBase records the strategy's identity and owning thread.
// Concrete strategies call this from their own Instantiate.
func (s *StrategyBase) NewStrategyBase(fwThread *Thread, name string, version uint64) {
	s.thread = fwThread
	s.name = name
	s.version = version
}

// String returns the strategy's "<name>/v=<version>" identity, used both
// as its Thread.strategies key and as the fmt.Stringer subject passed to
// core.Log. (StrategyVersions is keyed by the short name alone.)
func (s *StrategyBase) String() string {
	return fmt.Sprintf("%s/v=%d", s.name, s.version)
}

// Thread returns the forwarding thread this strategy is bound to.
func (s *StrategyBase) Thread() *Thread { return s.thread }

// SendInterest forwards packet to face, recording an out-record on
// pitEntry first so a returning Data or a later canForwardTo check sees
// it immediately.
func (s *StrategyBase) SendInterest(packet *defn.Pkt, pitEntry table.PitEntry, nexthop defn.FaceId, inFace uint64) {
	pitEntry.InsertOutRecord(packet.L3.Interest, nexthop)
	core.Log.Trace(s, "Forwarding Interest", "name", packet.Name, "faceid", nexthop)
	if err := s.thread.Faces.SendInterest(nexthop, packet); err != nil {
		core.Log.Debug(s, "Failed to send Interest", "faceid", nexthop, "err", err)
	}
}

// SendData forwards packet to face to satisfy a pending Interest.
// source carries the upstream face the Data arrived on (0 for a
// Content Store hit), purely for logging.
func (s *StrategyBase) SendData(packet *defn.Pkt, pitEntry table.PitEntry, face uint64, source uint64) {
	core.Log.Trace(s, "Sending Data", "name", packet.Name, "faceid", face, "source", source)
	if err := s.thread.Faces.SendData(face, packet); err != nil {
		core.Log.Debug(s, "Failed to send Data", "faceid", face, "err", err)
	}
}
