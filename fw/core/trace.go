package core

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// TraceEvent is one strategy decision point, published by strategies at
// the same call sites they already log through (Log.Trace/Debug): sends,
// propagate ticks, best-face timeouts. It exists purely for observability;
// nothing in the decision engine reads it back.
type TraceEvent struct {
	Time     time.Time `json:"time"`
	Strategy string    `json:"strategy"`
	Event    string    `json:"event"`
	Name     string    `json:"name"`
	FaceId   uint64    `json:"face_id,omitempty"`
	Detail   string    `json:"detail,omitempty"`
}

// TraceBus fans out TraceEvents to any number of connected websocket
// clients. A bus with no subscribers drops events rather than blocking the
// forwarding thread that published them.
type TraceBus struct {
	mu   sync.RWMutex
	subs map[*traceSub]struct{}
}

type traceSub struct {
	ch chan TraceEvent
}

// NewTraceBus constructs an empty TraceBus.
func NewTraceBus() *TraceBus {
	return &TraceBus{subs: make(map[*traceSub]struct{})}
}

// Publish fans out an event to all current subscribers without blocking;
// a slow subscriber simply misses events rather than stalling the strategy.
func (b *TraceBus) Publish(ev TraceEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		select {
		case s.ch <- ev:
		default:
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeHTTP upgrades the connection to a websocket and streams TraceEvents
// to it as JSON until the client disconnects.
func (b *TraceBus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		Log.Warn(traceBusSubject{}, "Failed to upgrade trace websocket", "err", err)
		return
	}
	defer conn.Close()

	sub := &traceSub{ch: make(chan TraceEvent, 64)}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.subs, sub)
		b.mu.Unlock()
	}()

	for ev := range sub.ch {
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

type traceBusSubject struct{}

// String identifies log records emitted by the trace bus itself.
func (traceBusSubject) String() string { return "core-trace" }
