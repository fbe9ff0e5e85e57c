// Package mixer coordinates the decks and the output devices.
//
// Every callback period the coordinator takes every deck's sample lock,
// marks each output ReadyForReading and waits until every output has summed
// the deck blocks into its own buffer. It then hands the locks to one refill
// goroutine per deck, which renders the next block and releases the lock.
// Outputs never block on a mutex: they poll their status register with
// short sleeps and give up with silence after one callback period.
package mixer

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

var ErrNoOutputs = errors.New("mixer has no outputs")

const (
	// SpinInterval is the sleep between status polls in an output callback.
	SpinInterval = 500 * time.Microsecond
	// PollInterval bounds how long the coordinator sleeps without a wake-up.
	PollInterval = 5 * time.Millisecond
)

// Status is the handshake state of one output.
type Status int32

const (
	ReadingBlocked Status = iota
	ReadyForReading
	BeingRead
	FinishedReading
)

func (s Status) String() string {
	switch s {
	case ReadingBlocked:
		return "blocked"
	case ReadyForReading:
		return "ready"
	case BeingRead:
		return "reading"
	case FinishedReading:
		return "finished"
	}
	return "unknown"
}

// Register is an atomically updated Status.
type Register struct{ v atomic.Int32 }

func (r *Register) Load() Status   { return Status(r.v.Load()) }
func (r *Register) Store(s Status) { r.v.Store(int32(s)) }
func (r *Register) CompareAndSwap(from, to Status) bool {
	return r.v.CompareAndSwap(int32(from), int32(to))
}

// Track is a deck as seen by the mixer.
type Track interface {
	TryLock() bool
	Unlock()
	// RefreshBlock renders the next block; the caller holds the lock.
	RefreshBlock() error
	// Block returns the current block; the caller holds the lock.
	Block() []float32
	RoutedToMonitor() bool
}

// Coordinator drives the read/refill cycle.
type Coordinator struct {
	tracks  []Track
	outputs []*Output

	wake    chan struct{}
	poll    time.Duration
	reading bool // deck locks are held and outputs may read
	refills sync.WaitGroup
	stopped atomic.Bool
	cycles  atomic.Uint64
}

func NewCoordinator(tracks []Track) *Coordinator {
	return &Coordinator{
		tracks: tracks,
		wake:   make(chan struct{}, 1),
		poll:   PollInterval,
	}
}

// AddOutput registers an output before Run is called. Outputs on the
// Monitor route only hear decks routed to the monitor. timeout bounds how
// long Fill waits for a block, normally one callback period.
func (c *Coordinator) AddOutput(name string, route Route, timeout time.Duration) *Output {
	o := &Output{name: name, route: route, timeout: timeout, c: c}
	c.outputs = append(c.outputs, o)
	return o
}

// Cycles returns the number of completed read/refill cycles.
func (c *Coordinator) Cycles() uint64 { return c.cycles.Load() }

func (c *Coordinator) notify() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Run drives the handshake until ctx is done. On return no deck lock is
// held by the mixer.
func (c *Coordinator) Run(ctx context.Context) error {
	if len(c.outputs) == 0 {
		return ErrNoOutputs
	}
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()
	defer c.shutdown()

	for {
		c.step()
		select {
		case <-ctx.Done():
			return nil
		case <-c.wake:
		case <-ticker.C:
		}
	}
}

func (c *Coordinator) shutdown() {
	c.stopped.Store(true)
	for _, o := range c.outputs {
		deadline := time.Now().Add(o.timeout)
		for o.reg.Load() == BeingRead && time.Now().Before(deadline) {
			time.Sleep(SpinInterval)
		}
	}
	if c.reading {
		for _, t := range c.tracks {
			t.Unlock()
		}
		c.reading = false
	}
	c.refills.Wait()
}

// step advances the handshake as far as it can without blocking.
func (c *Coordinator) step() {
	if !c.reading {
		if !c.lockAll() {
			return
		}
		c.reading = true
		for _, o := range c.outputs {
			o.reg.Store(ReadyForReading)
		}
		return
	}

	for _, o := range c.outputs {
		if !o.detached.Load() && o.reg.Load() != FinishedReading {
			return
		}
	}
	for _, o := range c.outputs {
		o.reg.Store(ReadingBlocked)
	}
	c.reading = false
	c.cycles.Add(1)

	// Lock ownership passes to the refill goroutines.
	for _, t := range c.tracks {
		c.refills.Add(1)
		go func(t Track) {
			defer c.refills.Done()
			if err := t.RefreshBlock(); err != nil {
				log.Printf("Refill warning: %v", err)
			}
			t.Unlock()
			c.notify()
		}(t)
	}
}

func (c *Coordinator) lockAll() bool {
	for i, t := range c.tracks {
		if !t.TryLock() {
			for _, held := range c.tracks[:i] {
				held.Unlock()
			}
			return false
		}
	}
	return true
}
