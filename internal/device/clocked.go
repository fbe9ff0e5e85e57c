package device

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/satindergrewal/djdeck/internal/audio"
	"github.com/satindergrewal/djdeck/internal/mixer"
)

// Sink receives whole mixed blocks from a Clocked driver.
type Sink interface {
	WriteBlock(block []float32) error
	Close() error
}

// Clocked drives an output from a ticker instead of a sound card callback:
// once per period it fills one block and hands it to the sink.
type Clocked struct {
	out    *mixer.Output
	sink   Sink
	period time.Duration
	block  []float32
}

func NewClocked(out *mixer.Output, sink Sink, blockFrames int, period time.Duration) *Clocked {
	return &Clocked{
		out:    out,
		sink:   sink,
		period: period,
		block:  make([]float32, blockFrames*audio.Channels),
	}
}

func (c *Clocked) Name() string { return c.out.Name() }

// Run blocks until ctx is cancelled or the sink fails.
func (c *Clocked) Run(ctx context.Context) (err error) {
	defer func() {
		c.out.Detach()
		err = errors.Join(err, c.sink.Close())
	}()

	ticker := time.NewTicker(c.period)
	defer ticker.Stop()
	log.Printf("Device %s: clocked output started (%v per block)", c.Name(), c.period)

	for {
		c.out.Fill(c.block)
		if err := c.sink.WriteBlock(c.block); err != nil {
			return fmt.Errorf("device %s: %w", c.Name(), err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Null discards every block.
type Null struct{}

func (Null) WriteBlock([]float32) error { return nil }
func (Null) Close() error               { return nil }
