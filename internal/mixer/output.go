package mixer

import (
	"log"
	"sync/atomic"
	"time"
)

// Route selects which decks an output hears.
type Route int

const (
	Audience Route = iota // every deck
	Monitor               // decks routed to the monitor
)

func (r Route) String() string {
	if r == Monitor {
		return "monitor"
	}
	return "audience"
}

// Output is one device's side of the handshake.
type Output struct {
	name    string
	route   Route
	timeout time.Duration
	c       *Coordinator

	reg       Register
	detached  atomic.Bool
	reads     atomic.Uint64
	underruns atomic.Uint64
}

func (o *Output) Name() string   { return o.name }
func (o *Output) Route() Route   { return o.route }
func (o *Output) Status() Status { return o.reg.Load() }

// Reads returns the number of blocks delivered; Underruns the number of
// periods that timed out and were filled with silence.
func (o *Output) Reads() uint64     { return o.reads.Load() }
func (o *Output) Underruns() uint64 { return o.underruns.Load() }

// Detach removes the output from the handshake, so the coordinator stops
// waiting for it. Used when its device stops.
func (o *Output) Detach() {
	o.detached.Store(true)
	if o.reg.CompareAndSwap(ReadyForReading, FinishedReading) {
		o.c.notify()
	}
}

// Fill writes the next mixed block into dst, which must be one block long.
// It is called from the device's real-time callback and never takes a lock:
// it polls for ReadyForReading, sleeping SpinInterval between polls. When no
// block is ready within the timeout it writes silence and reports false.
func (o *Output) Fill(dst []float32) bool {
	deadline := time.Now().Add(o.timeout)
	for !o.reg.CompareAndSwap(ReadyForReading, BeingRead) {
		if o.detached.Load() || o.c.stopped.Load() || time.Now().After(deadline) {
			clear(dst)
			if n := o.underruns.Add(1); n == 1 || n%100 == 0 {
				log.Printf("Output %s: underrun (%d total)", o.name, n)
			}
			return false
		}
		time.Sleep(SpinInterval)
	}

	clear(dst)
	for _, t := range o.c.tracks {
		if o.route == Monitor && !t.RoutedToMonitor() {
			continue
		}
		mix(dst, t.Block())
	}
	o.reads.Add(1)
	o.reg.Store(FinishedReading)
	o.c.notify()
	return true
}

func mix(dst, src []float32) {
	n := min(len(dst), len(src))
	for i := range n {
		dst[i] += src[i]
	}
}
