package table

import (
	"time"

	"github.com/named-data/ndnd-ncc/fw/defn"
	enc "github.com/named-data/ndnd-ncc/std/encoding"
)

// typeData is the NDN Data packet's outer TLV type. The strategy never
// touches Content Store entries directly (spec.md §1 places the Content
// Store's storage engine out of scope, same as the PIT/FIB/Measurements
// tables); this package keeps only a minimal sliver: decoding a cached
// Data's name back out of its stored wire.
const typeData enc.TLNum = 0x06

// baseCsEntry is one cached Data packet: its table index, staleness
// deadline, and raw wire bytes.
type baseCsEntry struct {
	index     uint64
	staleTime time.Time
	wire      []byte
}

// Index returns the entry's table key.
func (e *baseCsEntry) Index() uint64 { return e.index }

// StaleTime returns when the cached Data becomes stale and is no longer
// eligible to satisfy a MustBeFresh Interest.
func (e *baseCsEntry) StaleTime() time.Time { return e.staleTime }

// Copy decodes the entry's stored wire back into a defn.FwData plus the
// raw bytes, for re-sending on a content store hit.
func (e *baseCsEntry) Copy() (*defn.FwData, []byte, error) {
	name, err := decodeCsWireName(e.wire)
	if err != nil {
		return nil, nil, err
	}
	return &defn.FwData{NameV: name}, e.wire, nil
}

// encodeCsWire packages a name into the minimal Data-shaped wire this
// package stores and decodes; full MetaInfo/Content/Signature fields are
// the external packet codec's concern, not the strategy's.
func encodeCsWire(name enc.Name) []byte {
	inner := name.Bytes()
	buf := make([]byte, typeData.EncodingLength()+enc.Nat(len(inner)).EncodingLength()+len(inner))
	p1 := typeData.EncodeInto(buf)
	p2 := enc.Nat(len(inner)).EncodeInto(buf[p1:])
	copy(buf[p1+p2:], inner)
	return buf
}

func decodeCsWireName(wire []byte) (enc.Name, error) {
	r := enc.NewBufferView(wire)
	t, err := r.ReadTLNum()
	if err != nil {
		return nil, err
	}
	if t != typeData {
		return nil, enc.ErrFormat{Msg: "table.decodeCsWireName: given bytes is not a Data packet"}
	}
	if _, err := r.ReadTLNum(); err != nil {
		return nil, err
	}
	return enc.NameFromBytes(wire[r.Pos():])
}

// CsEntry is the cached-Data lookup surface Cs.Find returns.
type CsEntry interface {
	Index() uint64
	StaleTime() time.Time
	Copy() (*defn.FwData, []byte, error)
}

type csEntry struct {
	baseCsEntry
}

// Cs is a minimal in-memory Content Store keyed by name hash. A real
// deployment's cache admission/eviction policy is explicitly out of this
// module's scope (spec.md §1 Non-goals). Thread carries one, but no
// strategy in this module calls Insert or Find; AfterContentStoreHit
// receives the cached packet from its caller.
type Cs struct {
	entries map[uint64]*csEntry
}

// NewCs constructs an empty Cs.
func NewCs() *Cs {
	return &Cs{entries: make(map[uint64]*csEntry)}
}

// Insert caches data under name until staleTime.
func (c *Cs) Insert(name enc.Name, staleTime time.Time) {
	key := nameHash(name)
	c.entries[key] = &csEntry{baseCsEntry{
		index:     key,
		staleTime: staleTime,
		wire:      encodeCsWire(name),
	}}
}

// Find returns the cache entry for name, if present and not stale.
func (c *Cs) Find(name enc.Name) (CsEntry, bool) {
	e, ok := c.entries[nameHash(name)]
	if !ok || time.Now().After(e.staleTime) {
		return nil, false
	}
	return e, true
}
