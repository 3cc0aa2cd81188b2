package table

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"

	"github.com/named-data/ndnd-ncc/fw/defn"
	enc "github.com/named-data/ndnd-ncc/std/encoding"

	_ "github.com/mattn/go-sqlite3"
)

// FibNextHopEntry is one upstream candidate for a namespace: a face and
// its routing cost, exactly as the kept fib-strategy_test.go constructs
// it.
type FibNextHopEntry struct {
	Nexthop defn.FaceId
	Cost    uint64
}

// baseFibStrategyEntry is the common state of a merged FIB/strategy-choice
// node: a namespace's ordered nexthops plus the strategy assigned to it.
type baseFibStrategyEntry struct {
	component enc.Component
	name      enc.Name
	nexthops  []*FibNextHopEntry
	strategy  enc.Name
}

// Name returns the namespace this entry governs.
func (e *baseFibStrategyEntry) Name() enc.Name { return e.name }

// Component returns the last name component of the namespace this entry
// governs (the trie edge label a prefix-tree FIB would key children by).
func (e *baseFibStrategyEntry) Component() enc.Component { return e.component }

// GetStrategy returns the versioned strategy name assigned to this
// namespace.
func (e *baseFibStrategyEntry) GetStrategy() enc.Name { return e.strategy }

// GetNextHops returns the entry's ordered nexthop list.
func (e *baseFibStrategyEntry) GetNextHops() []*FibNextHopEntry { return e.nexthops }

// FibEntry is the external collaborator spec.md §6 describes: an ordered
// nexthop list plus membership testing, resolved for an Interest's name
// before the strategy is invoked.
type FibEntry interface {
	Name() enc.Name
	GetStrategy() enc.Name
	GetNextHops() []*FibNextHopEntry
	// HasNextHop reports whether face is one of this entry's nexthops.
	HasNextHop(face defn.FaceId) bool
}

type fibStrategyEntry struct {
	baseFibStrategyEntry
}

// HasNextHop reports whether face is among this entry's nexthops.
func (e *fibStrategyEntry) HasNextHop(face defn.FaceId) bool {
	for _, nh := range e.nexthops {
		if nh.Nexthop == face {
			return true
		}
	}
	return false
}

// FibStrategyTable is a longest-prefix-match table merging the FIB
// (namespace -> nexthops) and the strategy choice table (namespace ->
// assigned strategy), mirroring the real forwarder's single lookup for
// both. Strategy assignments are mirrored to sqlite so they survive a
// restart; nexthops are process-local (faces do not survive a restart,
// so there is nothing durable to persist there).
type FibStrategyTable struct {
	mu      sync.RWMutex
	entries map[uint64]*fibStrategyEntry
	db      *sql.DB
}

// NewFibStrategyTable constructs a FibStrategyTable. dbPath, if non-empty,
// opens (creating if needed) a sqlite database used to persist strategy
// assignments across restarts; "" keeps the table in-memory only (the
// default, and what every test in this module uses).
func NewFibStrategyTable(dbPath string) *FibStrategyTable {
	t := &FibStrategyTable{entries: make(map[uint64]*fibStrategyEntry)}
	if dbPath == "" {
		return t
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return t
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return t
	}
	_, _ = db.Exec(`CREATE TABLE IF NOT EXISTS strategy_choice (
		name TEXT PRIMARY KEY,
		strategy TEXT NOT NULL
	)`)
	t.db = db
	t.loadPersisted()
	return t
}

// Close releases the sqlite handle, if one was opened.
func (t *FibStrategyTable) Close() error {
	if t.db == nil {
		return nil
	}
	return t.db.Close()
}

func (t *FibStrategyTable) loadPersisted() {
	if t.db == nil {
		return
	}
	rows, err := t.db.Query(`SELECT name, strategy FROM strategy_choice`)
	if err != nil {
		return
	}
	defer rows.Close()
	for rows.Next() {
		var nameStr, strategyStr string
		if err := rows.Scan(&nameStr, &strategyStr); err != nil {
			continue
		}
		name, err := enc.NameFromStr(nameStr)
		if err != nil {
			continue
		}
		strategy, err := enc.NameFromStr(strategyStr)
		if err != nil {
			continue
		}
		t.setStrategy(name, strategy)
	}
}

func (t *FibStrategyTable) getOrCreate(name enc.Name) *fibStrategyEntry {
	key := nameHash(name)
	e, ok := t.entries[key]
	if !ok {
		var comp enc.Component
		if len(name) > 0 {
			comp = name[len(name)-1]
		}
		e = &fibStrategyEntry{baseFibStrategyEntry: baseFibStrategyEntry{
			component: comp,
			name:      name,
		}}
		t.entries[key] = e
	}
	return e
}

// InsertNextHop adds or updates a nexthop for name, ordering nexthops by
// ascending cost (cheapest first), which is what the strategy's "first
// nexthop" fallback (spec.md §4.3 step 5) relies on.
func (t *FibStrategyTable) InsertNextHop(name enc.Name, face defn.FaceId, cost uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.getOrCreate(name)
	for _, nh := range e.nexthops {
		if nh.Nexthop == face {
			nh.Cost = cost
			t.sortNextHops(e)
			return
		}
	}
	e.nexthops = append(e.nexthops, &FibNextHopEntry{Nexthop: face, Cost: cost})
	t.sortNextHops(e)
}

func (t *FibStrategyTable) sortNextHops(e *fibStrategyEntry) {
	nh := e.nexthops
	for i := 1; i < len(nh); i++ {
		for j := i; j > 0 && nh[j].Cost < nh[j-1].Cost; j-- {
			nh[j], nh[j-1] = nh[j-1], nh[j]
		}
	}
}

// RemoveNextHop removes face from name's nexthop list, if present.
func (t *FibStrategyTable) RemoveNextHop(name enc.Name, face defn.FaceId) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := nameHash(name)
	e, ok := t.entries[key]
	if !ok {
		return
	}
	out := e.nexthops[:0]
	for _, nh := range e.nexthops {
		if nh.Nexthop != face {
			out = append(out, nh)
		}
	}
	e.nexthops = out
}

// FindLongestPrefixMatch resolves the FIB entry governing name: the
// longest registered prefix of name that carries at least one nexthop or
// an explicit strategy assignment. Returns false if no ancestor (down to
// the empty name) has ever been populated.
func (t *FibStrategyTable) FindLongestPrefixMatch(name enc.Name) (FibEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for n := len(name); n >= 0; n-- {
		if e, ok := t.entries[nameHash(name[:n])]; ok && (len(e.nexthops) > 0 || e.strategy != nil) {
			return e, true
		}
	}
	return nil, false
}

func (t *FibStrategyTable) setStrategy(name, strategy enc.Name) {
	e := t.getOrCreate(name)
	e.strategy = strategy
}

// SetStrategyEnc assigns a strategy (with version component) to name,
// persisting the assignment if a backing store was configured.
func (t *FibStrategyTable) SetStrategyEnc(name, strategy enc.Name) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setStrategy(name, strategy)
	if t.db != nil {
		_, _ = t.db.Exec(
			`INSERT INTO strategy_choice(name, strategy) VALUES (?, ?)
			 ON CONFLICT(name) DO UPDATE SET strategy=excluded.strategy`,
			name.String(), strategy.String())
	}
}

// UnSetStrategyEnc removes the per-namespace strategy assignment for
// name, reverting lookups under it to whatever ancestor is assigned.
func (t *FibStrategyTable) UnSetStrategyEnc(name enc.Name) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := nameHash(name)
	if e, ok := t.entries[key]; ok {
		e.strategy = nil
	}
	if t.db != nil {
		_, _ = t.db.Exec(`DELETE FROM strategy_choice WHERE name = ?`, name.String())
	}
}

// FindStrategyEnc resolves the strategy assigned to name by longest
// ancestor match, matching the FIB's own longest-prefix-match semantics.
func (t *FibStrategyTable) FindStrategyEnc(name enc.Name) (enc.Name, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for n := len(name); n >= 0; n-- {
		if e, ok := t.entries[nameHash(name[:n])]; ok && e.strategy != nil {
			return e.strategy, true
		}
	}
	return nil, false
}

// GetAllForwardingStrategies returns every entry carrying an explicit
// strategy assignment, for the strategy-choice "list" management verb.
func (t *FibStrategyTable) GetAllForwardingStrategies() []FibEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]FibEntry, 0, len(t.entries))
	for _, e := range t.entries {
		if e.strategy != nil {
			out = append(out, e)
		}
	}
	return out
}
