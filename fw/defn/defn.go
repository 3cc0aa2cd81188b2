// Package defn holds the small set of wire-adjacent value types the
// forwarding strategy touches directly. Packet parsing itself, and the
// face/URI machinery that turns bytes into bytes on a wire, are external
// collaborators per the strategy's own scope (consumed through the
// table.PitEntry / table.FibNextHopEntry interfaces) and are not
// reconstructed here.
package defn

import (
	enc "github.com/named-data/ndnd-ncc/std/encoding"
	"github.com/named-data/ndnd-ncc/std/types/optional"
)

// MaxNDNPacketSize is the largest encoded NDN packet a transport accepts.
const MaxNDNPacketSize = 8800

// FaceId identifies a face in the (external) face table. The strategy
// never dereferences one directly - it only compares, stores, and passes
// it back to table.PitEntry / the forwarder.
type FaceId = uint64

// FwInterest is the strategy-visible projection of a parsed Interest.
type FwInterest struct {
	NameV             enc.Name
	CanBePrefixV      bool
	MustBeFreshV      bool
	NonceV            optional.Optional[uint32]
	ForwardingHintV   enc.Name
	InterestLifetimeV optional.Optional[uint64]
}

// FwData is the strategy-visible projection of a parsed Data packet.
type FwData struct {
	NameV enc.Name
}

// l3Pkt groups the parsed layer-3 packet variants a Pkt may carry, mirroring
// the shape callers already use (packet.L3.Interest.NonceV).
type l3Pkt struct {
	Interest *FwInterest
	Data     *FwData
}

// Pkt is the unit of work handed to a strategy callback: a decoded packet
// plus its encoded name, exactly as the forwarder's pipeline would have
// already resolved it before dispatch.
type Pkt struct {
	Name enc.Name
	L3   l3Pkt
}

// NewInterestPkt wraps a FwInterest for dispatch to a strategy.
func NewInterestPkt(i *FwInterest) *Pkt {
	return &Pkt{Name: i.NameV, L3: l3Pkt{Interest: i}}
}

// NewDataPkt wraps a FwData for dispatch to a strategy.
func NewDataPkt(d *FwData) *Pkt {
	return &Pkt{Name: d.NameV, L3: l3Pkt{Data: d}}
}

// LOCAL_PREFIX is the root of all management Interests accepted only from
// local applications (/localhost/nfd).
var LOCAL_PREFIX = enc.Name{
	enc.NewGenericComponent("localhost"),
	enc.NewGenericComponent("nfd"),
}

// STRATEGY_PREFIX is the root under which forwarding strategies register
// themselves (/localhost/nfd/strategy/<name>[/<version>]).
var STRATEGY_PREFIX = enc.Name{
	enc.NewGenericComponent("localhost"),
	enc.NewGenericComponent("nfd"),
	enc.NewGenericComponent("strategy"),
}
