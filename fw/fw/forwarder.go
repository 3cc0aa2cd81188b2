package fw

import (
	"github.com/named-data/ndnd-ncc/fw/core"
	"github.com/named-data/ndnd-ncc/fw/defn"
	"github.com/named-data/ndnd-ncc/fw/table"
	"github.com/named-data/ndnd-ncc/std/engine/basic"
)

// logFaces is the Faces stand-in this daemon runs against. Actual face
// I/O - sockets, tunnels, app channels - is an external collaborator
// this module only consumes through the Faces interface; wiring a real
// transport (UDP/TCP/Unix/WebSocket listeners, as the teacher's dropped
// fw/face package did) is future work tracked outside this strategy's
// scope. Every send is logged instead of transmitted, so a forwarder
// built from this package is observable end-to-end without a live link.
type logFaces struct{}

func (logFaces) SendInterest(face defn.FaceId, pkt *defn.Pkt) error {
	core.Log.Trace(logFacesSubject{}, "Interest would be sent", "faceid", face, "name", pkt.Name)
	return nil
}

func (logFaces) SendData(face defn.FaceId, pkt *defn.Pkt) error {
	core.Log.Trace(logFacesSubject{}, "Data would be sent", "faceid", face, "name", pkt.Name)
	return nil
}

type logFacesSubject struct{}

func (logFacesSubject) String() string { return "faces" }

// Forwarder is one running instance of the daemon: its tables, its
// forwarding thread, and the lifecycle cobra's run() drives.
type Forwarder struct {
	config *core.Config
	thread *Thread
	trace  *core.TraceBus
}

// NewForwarder wires one forwarding thread's tables together from
// config, exactly as NewThread's doc comment describes, and registers
// every strategy package init() has contributed to strategyInit
// (multicast, ncc).
func NewForwarder(config *core.Config) *Forwarder {
	config.ApplyLogLevel()
	DefaultNccConfig = config.Fw.Ncc

	measurements, err := table.NewMeasurements(config.Core.MeasurementsDBPath())
	if err != nil {
		core.Log.Fatal(forwarderSubject{}, "Unable to open measurements store", "err", err)
	}

	fib := table.NewFibStrategyTable(config.Core.FibStrategyDBPath())

	thread := NewThread(
		table.NewPit(),
		fib,
		measurements,
		table.NewCs(),
		logFaces{},
		basic.NewTimer(),
	)

	trace := core.NewTraceBus()
	thread.SetTrace(trace)

	return &Forwarder{config: config, thread: thread, trace: trace}
}

type forwarderSubject struct{}

func (forwarderSubject) String() string { return "forwarder" }

// String identifies this Forwarder as a core.Log subject.
func (f *Forwarder) String() string { return "forwarder" }

// Thread exposes the forwarder's single forwarding thread, e.g. for the
// management HTTP surface to resolve strategy identities against.
func (f *Forwarder) Thread() *Thread { return f.thread }

// Trace exposes the forwarder's TraceBus, so a debug HTTP surface can
// expose its websocket stream alongside the management API.
func (f *Forwarder) Trace() *core.TraceBus { return f.trace }

// Fib exposes the forwarder's FIB/strategy-choice table, e.g. for the
// management HTTP surface to assign and list strategy choices against.
func (f *Forwarder) Fib() *table.FibStrategyTable { return f.thread.Fib }

// Start brings up the forwarder. With face I/O out of scope, there is no
// listener to bind; this exists as the lifecycle hook a real transport
// layer would extend.
func (f *Forwarder) Start() {
	core.Log.Info(f, "Forwarder started", "threads", f.config.Fw.Threads)
}

// Stop tears down the forwarder's resources.
func (f *Forwarder) Stop() {
	if err := f.thread.Measurements.Close(); err != nil {
		core.Log.Warn(f, "Error closing measurements store", "err", err)
	}
	if err := f.thread.Fib.Close(); err != nil {
		core.Log.Warn(f, "Error closing strategy-choice store", "err", err)
	}
	core.Log.Info(f, "Forwarder stopped")
}
