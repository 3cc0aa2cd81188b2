package table

import (
	"time"

	"github.com/named-data/ndnd-ncc/fw/defn"
	enc "github.com/named-data/ndnd-ncc/std/encoding"
)

// PitInRecord tracks one downstream face that has an outstanding Interest
// recorded for a PIT entry: the breadcrumb a returning Data follows back.
type PitInRecord struct {
	Face            defn.FaceId
	LatestNonce     uint32
	LatestTimestamp time.Time
	PitToken        []byte
	ExpirationTime  time.Time
}

// PitOutRecord tracks one upstream face a PIT entry has forwarded an
// Interest to, and when it may be retried.
type PitOutRecord struct {
	Face            defn.FaceId
	LatestNonce     uint32
	LatestTimestamp time.Time
	ExpirationTime  time.Time
}

// StrategyInfo is the marker interface strategy-attached per-entry state
// (table.PitEntry / table.MeasurementsEntry slots) must implement. It
// carries no methods of its own - any type may serve as strategy info.
type StrategyInfo interface{}

// basePitEntry is the common state of a pending Interest, shared by every
// PIT entry regardless of which thread or shard owns it.
type basePitEntry struct {
	encname           enc.Name
	canBePrefix       bool
	mustBeFresh       bool
	forwardingHintNew enc.Name
	inRecords         map[uint64]*PitInRecord
	outRecords        map[uint64]*PitOutRecord
	expirationTime    time.Time
	satisfied         bool
	token             uint32
	strategyInfo      StrategyInfo
	interest          *defn.FwInterest
}

// EncName returns the entry's encoded Interest name.
func (e *basePitEntry) EncName() enc.Name { return e.encname }

// CanBePrefix reports whether the Interest carries the CanBePrefix flag.
func (e *basePitEntry) CanBePrefix() bool { return e.canBePrefix }

// MustBeFresh reports whether the Interest carries the MustBeFresh flag.
func (e *basePitEntry) MustBeFresh() bool { return e.mustBeFresh }

// ForwardingHintNew returns the Interest's forwarding hint, if any.
func (e *basePitEntry) ForwardingHintNew() enc.Name { return e.forwardingHintNew }

// Interest returns the pending Interest this entry was created for, the
// copy a strategy resends on retry and on deferred propagation.
func (e *basePitEntry) Interest() *defn.FwInterest { return e.interest }

// InRecords returns the entry's downstream in-records, keyed by face.
func (e *basePitEntry) InRecords() map[uint64]*PitInRecord {
	if e.inRecords == nil {
		return map[uint64]*PitInRecord{}
	}
	return e.inRecords
}

// OutRecords returns the entry's upstream out-records, keyed by face.
func (e *basePitEntry) OutRecords() map[uint64]*PitOutRecord {
	if e.outRecords == nil {
		return map[uint64]*PitOutRecord{}
	}
	return e.outRecords
}

// ExpirationTime returns when the entry's lifetime expires.
func (e *basePitEntry) ExpirationTime() time.Time { return e.expirationTime }

func (e *basePitEntry) setExpirationTime(t time.Time) { e.expirationTime = t }

// Satisfied reports whether the entry has already been satisfied by Data.
func (e *basePitEntry) Satisfied() bool { return e.satisfied }

// SetSatisfied marks (or unmarks) the entry as satisfied.
func (e *basePitEntry) SetSatisfied(v bool) { e.satisfied = v }

// Token returns the entry's PIT token, used to correlate returning Data
// with the in-records it should satisfy without a name lookup.
func (e *basePitEntry) Token() uint32 { return e.token }

// ClearInRecords removes all downstream in-records.
func (e *basePitEntry) ClearInRecords() {
	e.inRecords = make(map[uint64]*PitInRecord)
}

// ClearOutRecords removes all upstream out-records.
func (e *basePitEntry) ClearOutRecords() {
	e.outRecords = make(map[uint64]*PitOutRecord)
}

// InsertInRecord inserts or updates the in-record for faceID from an
// incoming Interest, returning the (possibly updated) record, whether a
// record already existed for that face, and the nonce it previously held
// (valid only when alreadyExists is true).
func (e *basePitEntry) InsertInRecord(
	interest *defn.FwInterest,
	faceID uint64,
	pitToken []byte,
) (record *PitInRecord, alreadyExists bool, prevNonce uint32) {
	if e.inRecords == nil {
		e.inRecords = make(map[uint64]*PitInRecord)
	}

	now := time.Now()
	nonce := interest.NonceV.Unwrap()

	if existing, ok := e.inRecords[faceID]; ok {
		prevNonce = existing.LatestNonce
		existing.LatestNonce = nonce
		existing.LatestTimestamp = now
		existing.PitToken = pitToken
		return existing, true, prevNonce
	}

	record = &PitInRecord{
		Face:            faceID,
		LatestNonce:     nonce,
		LatestTimestamp: now,
		PitToken:        pitToken,
	}
	e.inRecords[faceID] = record
	return record, false, 0
}

// InsertOutRecord inserts or updates the out-record for faceID, recording
// that an Interest was just forwarded there.
func (e *basePitEntry) InsertOutRecord(interest *defn.FwInterest, faceID uint64) *PitOutRecord {
	if e.outRecords == nil {
		e.outRecords = make(map[uint64]*PitOutRecord)
	}
	now := time.Now()
	if existing, ok := e.outRecords[faceID]; ok {
		existing.LatestNonce = interest.NonceV.Unwrap()
		existing.LatestTimestamp = now
		return existing
	}
	record := &PitOutRecord{
		Face:            faceID,
		LatestNonce:     interest.NonceV.Unwrap(),
		LatestTimestamp: now,
	}
	e.outRecords[faceID] = record
	return record
}

// PitEntry is the external collaborator spec.md §6 describes: a pending
// Interest with in/out-record bookkeeping, per-strategy scratch state, and
// the forwarding-eligibility check the strategy consults before sending.
type PitEntry interface {
	EncName() enc.Name
	CanBePrefix() bool
	MustBeFresh() bool
	ForwardingHintNew() enc.Name
	Interest() *defn.FwInterest
	InRecords() map[uint64]*PitInRecord
	OutRecords() map[uint64]*PitOutRecord
	ExpirationTime() time.Time
	Satisfied() bool
	SetSatisfied(bool)
	Token() uint32

	// InsertOutRecord records that the Forwarder is sending the Interest
	// to faceID (spec.md §6's "sendInterest... updating the PIT's
	// out-record").
	InsertOutRecord(interest *defn.FwInterest, faceID uint64) *PitOutRecord

	// CanForwardTo reports whether the Interest may still be sent to
	// face: not already sent there, not the Interest's sole in-face, and
	// not past the entry's expiration (spec.md §6).
	CanForwardTo(face defn.FaceId) bool

	// GetStrategyInfo returns the strategy-attached scratch state
	// previously stored with SetStrategyInfo, or nil.
	GetStrategyInfo() StrategyInfo
	// GetOrCreateStrategyInfo returns the existing strategy info, or
	// stores and returns make() if none is attached yet.
	GetOrCreateStrategyInfo(make func() StrategyInfo) StrategyInfo
	SetStrategyInfo(info StrategyInfo)
}

// pitEntry is the concrete PitEntry used by the in-memory Pit below.
type pitEntry struct {
	basePitEntry
}

// CanForwardTo reports whether face may still receive this Interest: it
// must not already hold an out-record, and it must not be the Interest's
// only recorded in-face (the PIT's own loop-prevention, per spec.md §6).
func (e *pitEntry) CanForwardTo(face defn.FaceId) bool {
	if time.Now().After(e.expirationTime) {
		return false
	}
	if _, sent := e.outRecords[face]; sent {
		return false
	}
	if _, isInFace := e.inRecords[face]; isInFace && len(e.inRecords) == 1 {
		return false
	}
	return true
}

func (e *pitEntry) GetStrategyInfo() StrategyInfo { return e.strategyInfo }

func (e *pitEntry) GetOrCreateStrategyInfo(make func() StrategyInfo) StrategyInfo {
	if e.strategyInfo == nil {
		e.strategyInfo = make()
	}
	return e.strategyInfo
}

func (e *pitEntry) SetStrategyInfo(info StrategyInfo) { e.strategyInfo = info }

// Pit is a minimal in-memory Pending Interest Table indexed by encoded
// name. It exists to host and exercise the PitEntry contract above; a
// production table would also index by selectors and token, and would be
// sharded per forwarding thread.
type Pit struct {
	entries map[uint64]*pitEntry
}

// NewPit constructs an empty Pit.
func NewPit() *Pit {
	return &Pit{entries: make(map[uint64]*pitEntry)}
}

// FindOrInsert returns the existing PIT entry for name, or creates one
// with the given lifetime.
func (p *Pit) FindOrInsert(interest *defn.FwInterest, lifetime time.Duration) (PitEntry, bool) {
	name := interest.NameV
	key := nameHash(name)
	if e, ok := p.entries[key]; ok {
		return e, true
	}
	e := &pitEntry{basePitEntry: basePitEntry{
		encname:        name,
		canBePrefix:    interest.CanBePrefixV,
		mustBeFresh:    interest.MustBeFreshV,
		expirationTime: time.Now().Add(lifetime),
		token:          uint32(key),
		interest:       interest,
	}}
	p.entries[key] = e
	return e, false
}

// Find looks up the PIT entry for name without creating one. Timer
// callbacks use this rather than holding the entry itself, so a deferred
// propagation or best-face timeout never keeps an otherwise-expired PIT
// entry artificially alive (spec.md §5's weak-reference requirement):
// once Erase removes the map entry, Find simply reports absence.
func (p *Pit) Find(name enc.Name) (PitEntry, bool) {
	e, ok := p.entries[nameHash(name)]
	if !ok {
		return nil, false
	}
	return e, true
}

// Erase removes a PIT entry (satisfied, expired, or rejected), the
// trigger point at which every timer a PitInfo holds must be cancelled.
func (p *Pit) Erase(name enc.Name) {
	delete(p.entries, nameHash(name))
}
