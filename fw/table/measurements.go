package table

import (
	"time"

	"github.com/dgraph-io/badger/v4"
	enc "github.com/named-data/ndnd-ncc/std/encoding"
)

// MeasurementsEntry is one namespace node in the measurement tree: the
// external collaborator spec.md §6 describes as `measurements::Entry`,
// carrying a single strategy-info attach point plus the lifetime the
// table extends on every touch.
type MeasurementsEntry interface {
	Name() enc.Name
	GetStrategyInfo() StrategyInfo
	GetOrCreateStrategyInfo(make func() StrategyInfo) StrategyInfo
	SetStrategyInfo(info StrategyInfo)
}

type measurementsEntry struct {
	name           enc.Name
	expirationTime time.Time
	strategyInfo   StrategyInfo
}

func (e *measurementsEntry) Name() enc.Name { return e.name }

func (e *measurementsEntry) GetStrategyInfo() StrategyInfo { return e.strategyInfo }

func (e *measurementsEntry) GetOrCreateStrategyInfo(make func() StrategyInfo) StrategyInfo {
	if e.strategyInfo == nil {
		e.strategyInfo = make()
	}
	return e.strategyInfo
}

func (e *measurementsEntry) SetStrategyInfo(info StrategyInfo) { e.strategyInfo = info }

// Measurements is the namespace-tree side store NCC learns against: an
// in-memory tree indexed by name prefix (the strategy's hot path),
// mirrored to badger with a per-key TTL. The mirror records only that a
// name was touched (a one-byte marker value, no strategy info) and is
// never read back: NewMeasurements starts from an empty tree, so after a
// restart every prediction starts again from INITIAL_PREDICTION.
//
// Entries are created lazily - a namespace the strategy has never
// touched has no entry and getParent walks simply stop there, per
// spec.md §4.4/§4.6's "going out of this strategy's namespace" exit.
type Measurements struct {
	entries map[uint64]*measurementsEntry
	db      *badger.DB
}

// NewMeasurements constructs a Measurements table. dbPath, if non-empty,
// opens a badger database backing durable lifetime extension; "" keeps
// the table purely in-memory (what every unit test in this module uses).
func NewMeasurements(dbPath string) (*Measurements, error) {
	m := &Measurements{entries: make(map[uint64]*measurementsEntry)}
	if dbPath == "" {
		return m, nil
	}
	opts := badger.DefaultOptions(dbPath)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	m.db = db
	return m, nil
}

// Close releases the badger handle, if one was opened.
func (m *Measurements) Close() error {
	if m.db == nil {
		return nil
	}
	return m.db.Close()
}

// Get returns the measurements entry for name, creating it (with an
// initial MEASUREMENTS_LIFETIME) if this is the first touch. The caller
// (the strategy's getMeasurementsEntryInfo) is responsible for inheriting
// strategy info from the parent on a fresh entry.
func (m *Measurements) Get(name enc.Name, lifetime time.Duration) (MeasurementsEntry, bool) {
	key := nameHash(name)
	if e, ok := m.entries[key]; ok {
		return e, false
	}
	e := &measurementsEntry{
		name:           name,
		expirationTime: time.Now().Add(lifetime),
	}
	m.entries[key] = e
	m.persistTouch(name, lifetime)
	return e, true
}

// GetParent returns the measurements entry for entry's immediate parent
// namespace, or false if the parent has never been touched (the walk's
// natural stopping point, per spec.md §4.4/§4.6).
func (m *Measurements) GetParent(entry MeasurementsEntry) (MeasurementsEntry, bool) {
	name := entry.Name()
	if len(name) == 0 {
		return nil, false
	}
	parentName := name.Prefix(len(name) - 1)
	e, ok := m.entries[nameHash(parentName)]
	if !ok {
		return nil, false
	}
	return e, true
}

// ExtendLifetime pushes entry's expiration out by duration from now,
// refreshing both the in-memory record and its durable mirror.
func (m *Measurements) ExtendLifetime(entry MeasurementsEntry, duration time.Duration) {
	e, ok := entry.(*measurementsEntry)
	if !ok {
		return
	}
	newExpiry := time.Now().Add(duration)
	if newExpiry.After(e.expirationTime) {
		e.expirationTime = newExpiry
	}
	m.persistTouch(e.name, duration)
}

// persistTouch refreshes the durable TTL mirror for name, best-effort:
// a failed write only costs durability across a restart, never
// correctness of the live in-memory walk the strategy relies on.
func (m *Measurements) persistTouch(name enc.Name, ttl time.Duration) {
	if m.db == nil {
		return
	}
	_ = m.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(name.Bytes(), []byte{1}).WithTTL(ttl)
		return txn.SetEntry(entry)
	})
}

// Evict drops expired in-memory entries. A real deployment would run this
// periodically off the scheduler; it is exposed here so tests can assert
// eviction behavior deterministically without a live timer.
func (m *Measurements) Evict(now time.Time) {
	for k, e := range m.entries {
		if now.After(e.expirationTime) {
			delete(m.entries, k)
		}
	}
}
