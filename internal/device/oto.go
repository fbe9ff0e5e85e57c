//go:build !headless

package device

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/satindergrewal/djdeck/internal/audio"
	"github.com/satindergrewal/djdeck/internal/mixer"
)

// Oto plays an output on the local sound card. oto pulls bytes through
// Read from its own goroutine, which is the real-time callback: each time
// the local block runs out, Read fills the next one from the mixer.
type Oto struct {
	out    *mixer.Output
	ctx    *oto.Context
	player *oto.Player
	block  []float32
	pos    int
}

// NewOto opens the sound card. oto allows one context per process.
func NewOto(out *mixer.Output, blockFrames int, period time.Duration) (*Oto, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   audio.SampleRate,
		ChannelCount: audio.Channels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   period,
	})
	if err != nil {
		return nil, fmt.Errorf("open sound card: %w", err)
	}
	<-ready

	d := &Oto{
		out:   out,
		ctx:   ctx,
		block: make([]float32, blockFrames*audio.Channels),
	}
	d.pos = len(d.block)
	d.player = ctx.NewPlayer(d)
	return d, nil
}

func (d *Oto) Name() string { return d.out.Name() }

// Read implements io.Reader for the oto player.
func (d *Oto) Read(p []byte) (int, error) {
	n := 0
	for len(p)-n >= 4 {
		if d.pos == len(d.block) {
			d.out.Fill(d.block)
			d.pos = 0
		}
		k := min((len(p)-n)/4, len(d.block)-d.pos)
		audio.PutFloats(p[n:], d.block[d.pos:d.pos+k])
		d.pos += k
		n += k * 4
	}
	return n, nil
}

// Run plays until ctx is cancelled.
func (d *Oto) Run(ctx context.Context) error {
	d.player.Play()
	log.Printf("Device %s: sound card output started", d.Name())
	<-ctx.Done()

	d.out.Detach()
	if err := d.player.Close(); err != nil {
		return fmt.Errorf("device %s: %w", d.Name(), err)
	}
	return nil
}
