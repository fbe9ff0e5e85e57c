package deck

import (
	"errors"
	"fmt"
	"math"

	"github.com/satindergrewal/djdeck/internal/audio"
	"github.com/satindergrewal/djdeck/internal/pcm"
)

var errRefill = errors.New("source refill failed")

// RefreshBlock renders the next block. The caller must hold the sample lock.
//
// A paused deck, a deck without a track and a deck whose source has ended
// render silence. A source error silences the deck and is returned once;
// later blocks stay silent until a new track is loaded.
func (d *Deck) RefreshBlock() error {
	d.state.Lock()
	defer d.state.Unlock()

	want := d.blockFrames * audio.Channels
	if d.src == nil || d.mode == NoPlayback || d.src.Status() != pcm.StatusOK {
		d.silence(want)
		if d.src != nil && d.src.Status() != pcm.StatusOK {
			d.mode = NoPlayback
		}
		return nil
	}

	d.block = d.block[:0]
	if err := d.fill(want); err != nil {
		d.silence(want)
		d.mode = NoPlayback
		return fmt.Errorf("deck %d: %s: %w", d.id, d.name, err)
	}
	d.pad(want)
	d.fx.Apply(d.block, d.fxKind)
	return nil
}

func (d *Deck) silence(want int) {
	d.block = d.block[:want]
	clear(d.block)
}

func (d *Deck) pad(want int) {
	n := len(d.block)
	d.block = d.block[:want]
	clear(d.block[n:])
}

// fill synthesizes frames until the block holds want samples, the track
// ends or a beat preview reaches its stop point. Looping wraps the play head
// back to the loop start whenever it leaves the loop.
func (d *Deck) fill(want int) error {
	if d.outsideLoop() {
		d.cur = float64(d.loopBegin)
	}

	for len(d.block) < want {
		switch d.src.Refill(d.windowStart()) {
		case pcm.StatusEOF:
			d.mode = NoPlayback
			return nil
		case pcm.StatusError:
			if err := d.src.Err(); err != nil {
				return err
			}
			return errRefill
		}
		win := d.src.Window()

		synthesized, wrapped := 0, false
		for len(d.block) < want {
			if d.mode == BeatPreview && d.cur >= float64(d.previewEnd) {
				d.cur = float64(d.previewStart)
				d.mode = NoPlayback
				return nil
			}
			if !d.synthesize(win) {
				break
			}
			synthesized++
			// Wrap before the next frame so the play head never rests
			// outside the loop, whichever way it is moving.
			if d.outsideLoop() {
				d.cur = float64(d.loopBegin)
				wrapped = true
				break
			}
		}
		if synthesized == 0 && !wrapped {
			// The source cannot serve the play head; treat it as the end.
			d.mode = NoPlayback
			return nil
		}
	}
	return nil
}

// outsideLoop reports whether a queued loop no longer contains the play head.
func (d *Deck) outsideLoop() bool {
	return d.loopQueued && (d.cur < float64(d.loopBegin) || d.cur >= float64(d.loopEnd))
}

func (d *Deck) windowStart() uint32 {
	if d.cur <= 0 {
		return 0
	}
	return uint32(math.Floor(d.cur))
}

// synthesize appends one linearly interpolated stereo frame at the play head
// and advances it. It reports false when the window does not hold both
// neighbours of the play head.
func (d *Deck) synthesize(w pcm.Window) bool {
	pos := max(d.cur, 0)
	fl := math.Floor(pos)
	ce := math.Ceil(pos)
	if fl < float64(w.First) || ce >= float64(w.End()) {
		return false
	}

	last := len(w.Samples) - 1
	i := min(int(fl-float64(w.First))*audio.Channels, last-1)
	j := min(int(ce-float64(w.First))*audio.Channels, last-1)
	t := float32(pos - fl)

	l := w.Samples[i] + t*(w.Samples[j]-w.Samples[i])
	r := w.Samples[i+1] + t*(w.Samples[j+1]-w.Samples[i+1])
	d.block = append(d.block, l, r)

	d.cur = pos + d.speed
	d.ease()
	return true
}

// ease moves the actual speed one step toward the destination speed.
func (d *Deck) ease() {
	gap := d.dest - d.speed
	if math.Abs(gap) < SpeedEpsilon || math.Abs(gap) <= d.step {
		d.speed = d.dest
		return
	}
	if d.step <= 0 {
		d.retarget()
	}
	d.speed += math.Copysign(d.step, gap)
}
