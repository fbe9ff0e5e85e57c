package device

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/satindergrewal/djdeck/internal/audio"
	"github.com/satindergrewal/djdeck/internal/mixer"
)

// Streamer turns an output's blocks into 20ms int16 frames paced at real
// time, for the stream broadcaster.
type Streamer struct {
	*Clocked
	queue   chan []int16
	frameCh chan []int16
	partial []int16 // samples short of a whole frame, used by the sink only
	dropped atomic.Uint64
}

func NewStreamer(out *mixer.Output, blockFrames int, period time.Duration) *Streamer {
	s := &Streamer{
		queue:   make(chan []int16, 100),
		frameCh: make(chan []int16, 100),
	}
	s.Clocked = NewClocked(out, (*frameSink)(s), blockFrames, period)
	return s
}

// Frames returns the channel of outgoing PCM frames (20ms each).
func (s *Streamer) Frames() <-chan []int16 {
	return s.frameCh
}

// Dropped returns the number of frames discarded because nothing read them.
func (s *Streamer) Dropped() uint64 { return s.dropped.Load() }

// Run drives the output and paces frames until ctx is cancelled.
func (s *Streamer) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.Clocked.Run(ctx) })
	g.Go(func() error {
		s.pace(ctx)
		return nil
	})
	return g.Wait()
}

func (s *Streamer) pace(ctx context.Context) {
	defer close(s.frameCh)

	ticker := time.NewTicker(audio.FrameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-s.queue:
			if !s.sendFrame(ctx, ticker, frame) {
				return
			}
		}
	}
}

// sendFrame waits for the ticker then sends a frame. Returns false on cancel.
func (s *Streamer) sendFrame(ctx context.Context, ticker *time.Ticker, frame []int16) bool {
	select {
	case <-ctx.Done():
		return false
	case <-ticker.C:
	}

	select {
	case s.frameCh <- frame:
		return true
	case <-ctx.Done():
		return false
	}
}

type frameSink Streamer

func (f *frameSink) WriteBlock(block []float32) error {
	pcm := append(f.partial, audio.FloatsToInt16(block)...)
	for len(pcm) >= audio.FrameSamples {
		frame := make([]int16, audio.FrameSamples)
		copy(frame, pcm)
		pcm = pcm[audio.FrameSamples:]
		select {
		case f.queue <- frame:
		default:
			if n := f.dropped.Add(1); n == 1 || n%500 == 0 {
				log.Printf("Stream: frame queue full, dropped %d frames", n)
			}
		}
	}
	f.partial = append(f.partial[:0], pcm...)
	return nil
}

func (f *frameSink) Close() error { return nil }
