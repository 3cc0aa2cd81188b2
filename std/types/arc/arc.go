// Package arc provides a small atomically-refcounted object pool, used to
// recycle heap allocations (wire buffers, entry structs) under GC pressure
// without requiring a full sync.Pool shape at every call site.
package arc

import "sync/atomic"

// Arc is a reference-counted handle into a Pool. The zero value is not
// usable; obtain one via Pool.Get.
type Arc[T any] struct {
	pool *ArcPool[T]
	val  *T
	refs *int32
}

// Load returns the underlying value. Valid as long as the caller (or
// someone it shared the Arc with) still holds a reference.
func (a Arc[T]) Load() *T {
	return a.val
}

// Inc increments the reference count and returns the new value.
func (a Arc[T]) Inc() int32 {
	return atomic.AddInt32(a.refs, 1)
}

// Dec decrements the reference count and returns the new value. When the
// count reaches zero, the value is returned to the pool for reuse (it is
// reset when next handed out); it must not be accessed again through this
// Arc.
func (a Arc[T]) Dec() int32 {
	n := atomic.AddInt32(a.refs, -1)
	if n <= 0 {
		a.pool.put(a.val, a.refs)
	}
	return n
}

type pooledEntry[T any] struct {
	val  *T
	refs int32
}

// ArcPool recycles values of type T behind reference-counted Arc handles.
type ArcPool[T any] struct {
	new   func() *T
	reset func(*T)
	free  []*pooledEntry[T]
}

// NewArcPool constructs a pool; new allocates a fresh T, reset puts a T
// (fresh or released) into its initial state before it is handed out.
func NewArcPool[T any](new func() *T, reset func(*T)) *ArcPool[T] {
	return &ArcPool[T]{new: new, reset: reset}
}

// Get returns an Arc wrapping either a recycled or freshly allocated T.
// The reference count starts at zero; callers that want to keep the value
// alive across a Dec must Inc first.
func (p *ArcPool[T]) Get() Arc[T] {
	if n := len(p.free); n > 0 {
		e := p.free[n-1]
		p.free = p.free[:n-1]
		p.reset(e.val)
		e.refs = 0
		return Arc[T]{pool: p, val: e.val, refs: &e.refs}
	}
	val := p.new()
	p.reset(val)
	refs := int32(0)
	return Arc[T]{pool: p, val: val, refs: &refs}
}

func (p *ArcPool[T]) put(val *T, refs *int32) {
	p.free = append(p.free, &pooledEntry[T]{val: val, refs: *refs})
}
