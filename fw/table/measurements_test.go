package table

import (
	"testing"
	"time"

	enc "github.com/named-data/ndnd-ncc/std/encoding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Get creates an entry lazily on first touch and returns the same entry
// on every subsequent lookup for the same name.
func TestMeasurementsGetCreatesOnce(t *testing.T) {
	m, err := NewMeasurements("")
	require.NoError(t, err)

	name, _ := enc.NameFromStr("/a/b/c")
	first, created := m.Get(name, 16*time.Second)
	assert.True(t, created)

	second, created := m.Get(name, 16*time.Second)
	assert.False(t, created)
	assert.Same(t, first, second)
}

// GetParent resolves the immediate parent namespace's entry only if it
// has itself already been touched; an untouched ancestor reports false,
// the walk's natural stopping point.
func TestMeasurementsGetParent(t *testing.T) {
	m, err := NewMeasurements("")
	require.NoError(t, err)

	parentName, _ := enc.NameFromStr("/a/b")
	childName, _ := enc.NameFromStr("/a/b/c")

	child, _ := m.Get(childName, 16*time.Second)
	_, ok := m.GetParent(child)
	assert.False(t, ok, "parent was never touched")

	parent, _ := m.Get(parentName, 16*time.Second)
	got, ok := m.GetParent(child)
	assert.True(t, ok)
	assert.Same(t, parent, got)
}

// ExtendLifetime only ever pushes an entry's expiration further out, never
// pulls it in.
func TestMeasurementsExtendLifetimeNeverShortens(t *testing.T) {
	m, err := NewMeasurements("")
	require.NoError(t, err)

	name, _ := enc.NameFromStr("/a")
	entry, _ := m.Get(name, 16*time.Second)
	e := entry.(*measurementsEntry)
	longExpiry := e.expirationTime

	m.ExtendLifetime(entry, time.Microsecond)
	assert.Equal(t, longExpiry, e.expirationTime, "a shorter extension must not shorten the entry")

	m.ExtendLifetime(entry, 32*time.Second)
	assert.True(t, e.expirationTime.After(longExpiry))
}

// Evict drops only entries whose lifetime has actually elapsed.
func TestMeasurementsEvict(t *testing.T) {
	m, err := NewMeasurements("")
	require.NoError(t, err)

	staleName, _ := enc.NameFromStr("/stale")
	freshName, _ := enc.NameFromStr("/fresh")

	m.Get(staleName, -time.Second)
	m.Get(freshName, time.Hour)

	m.Evict(time.Now())

	_, freshFound := m.entries[nameHash(freshName)]
	assert.True(t, freshFound)
	_, staleFound := m.entries[nameHash(staleName)]
	assert.False(t, staleFound)
}

// GetOrCreateStrategyInfo on a MeasurementsEntry lazily creates exactly
// once, mirroring the PIT entry's contract.
func TestMeasurementsEntryGetOrCreateStrategyInfo(t *testing.T) {
	name, _ := enc.NameFromStr("/a")
	e := &measurementsEntry{name: name}

	calls := 0
	makeInfo := func() StrategyInfo {
		calls++
		return "info"
	}

	got := e.GetOrCreateStrategyInfo(makeInfo)
	assert.Equal(t, "info", got)
	assert.Equal(t, 1, calls)

	got = e.GetOrCreateStrategyInfo(makeInfo)
	assert.Equal(t, "info", got)
	assert.Equal(t, 1, calls, "second call must not invoke make again")
}
