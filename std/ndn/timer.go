package ndn

import "time"

// Timer is the monotonic clock and deferred-callback capability the
// forwarding thread injects into everything that needs to schedule
// future work - the scheduler spec.md §6 describes as
// `schedule(duration, callback) → handle`; `cancel(handle)`.
type Timer interface {
	// Sleep blocks the calling goroutine for d.
	Sleep(d time.Duration)
	// Schedule arms f to run after d, returning a cancel function. The
	// cancel function is idempotent and safe to call after f has fired.
	Schedule(d time.Duration, f func()) func() error
	// Now returns the timer's current time.
	Now() time.Time
	// Nonce returns a fresh Interest nonce.
	Nonce() []byte
}
