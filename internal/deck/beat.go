package deck

import (
	"math"

	"github.com/samber/lo"

	"github.com/satindergrewal/djdeck/internal/audio"
)

// FramesPerBeat returns the beat length in engine frames, or 0 for bpm <= 0.
func FramesPerBeat(bpm float32) float64 {
	if bpm <= 0 {
		return 0
	}
	return audio.SampleRate * 60 / float64(bpm)
}

// BeatsAround returns the beat at or before pos and the first beat after it
// on the grid anchored at first. Positions before the first beat map both to
// the first beat.
func BeatsAround(pos float64, first uint32, fpb float64) (earlier, later float64) {
	f := float64(first)
	if pos < f || fpb <= 0 {
		return f, f
	}
	k := math.Floor((pos-f)/fpb) + 1
	later = f + k*fpb
	earlier = max(later-fpb, f)
	return earlier, later
}

// NearestBeat returns whichever of the surrounding beats is closer to pos,
// preferring the earlier one on a tie.
func NearestBeat(pos float64, first uint32, fpb float64) float64 {
	earlier, later := BeatsAround(pos, first, fpb)
	if pos-earlier <= later-pos {
		return earlier
	}
	return later
}

func toFrame(v float64) uint32 {
	if v <= 0 {
		return 0
	}
	if v >= math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(math.Round(v))
}

// framesPerBeat is the beat length for the current grid. Caller holds the
// state lock.
func (d *Deck) framesPerBeat() float64 { return FramesPerBeat(d.bpm) }

// withGrid runs fn with the beat length while holding the source read lock.
// Caller holds the state lock.
func (d *Deck) withGrid(fn func(fpb float64) error) error {
	if d.src == nil {
		return ErrNoTrack
	}
	fpb := d.framesPerBeat()
	if fpb < 1 {
		return ErrBeatGridUnavailable
	}
	if !d.src.TryRLock() {
		return ErrBeatGridUnavailable
	}
	defer d.src.RUnlock()
	return fn(fpb)
}

func (d *Deck) loopEndFrom(begin uint32, fpb float64) uint32 {
	end := toFrame(float64(begin) + fpb*float64(d.beatsPerLoop))
	return max(end, begin+1)
}

// CueToNearest moves the play head back to the beat at or before it.
func (d *Deck) CueToNearest() error {
	d.state.Lock()
	defer d.state.Unlock()
	return d.withGrid(func(fpb float64) error {
		earlier, _ := BeatsAround(d.cur, d.firstBeat, fpb)
		d.cur = float64(toFrame(earlier))
		return nil
	})
}

// InitiateCuePlay starts playing from one beat past the beat at or before the
// play head, remembering that point so StopCuePlay can return to it.
func (d *Deck) InitiateCuePlay() error {
	d.state.Lock()
	defer d.state.Unlock()
	if d.src != nil && d.mode != NoPlayback {
		return ErrInvalidMode
	}
	return d.withGrid(func(fpb float64) error {
		earlier, _ := BeatsAround(d.cur, d.firstBeat, fpb)
		d.cueBegin = toFrame(earlier + fpb)
		d.cur = float64(d.cueBegin)
		d.mode = CuePlay
		return nil
	})
}

// StopCuePlay pauses a cue-playing deck and rewinds it to where cue play began.
func (d *Deck) StopCuePlay() error {
	d.state.Lock()
	defer d.state.Unlock()
	if d.mode != CuePlay {
		return ErrInvalidMode
	}
	d.mode = NoPlayback
	d.cur = float64(d.cueBegin)
	return nil
}

// PlayNextBeat plays exactly the beat after the one under the play head and
// then pauses at its start.
func (d *Deck) PlayNextBeat() error { return d.previewBeat(1) }

// PlayPrevBeat plays exactly the beat before the one under the play head.
func (d *Deck) PlayPrevBeat() error { return d.previewBeat(-1) }

func (d *Deck) previewBeat(dir int) error {
	d.state.Lock()
	defer d.state.Unlock()
	if d.src != nil && d.mode != NoPlayback && d.mode != CuePlay {
		return ErrInvalidMode
	}
	return d.withGrid(func(fpb float64) error {
		earlier, _ := BeatsAround(d.cur, d.firstBeat, fpb)
		start := earlier + fpb
		if dir < 0 {
			start = max(earlier-fpb, float64(d.firstBeat))
		}
		d.previewStart = toFrame(start)
		d.previewEnd = toFrame(start + fpb)
		d.cur = float64(d.previewStart)
		d.mode = BeatPreview
		return nil
	})
}

// SetLoop starts looping beatsPerLoop beats from the beat nearest the play head.
func (d *Deck) SetLoop() error {
	d.state.Lock()
	defer d.state.Unlock()
	return d.withGrid(func(fpb float64) error {
		d.loopBegin = toFrame(NearestBeat(d.cur, d.firstBeat, fpb))
		d.loopEnd = d.loopEndFrom(d.loopBegin, fpb)
		d.loopQueued = true
		return nil
	})
}

// CancelLoop stops looping; playback continues past the loop end.
func (d *Deck) CancelLoop() {
	d.state.Lock()
	defer d.state.Unlock()
	d.loopQueued = false
}

// Looping reports whether a loop is active.
func (d *Deck) Looping() bool {
	d.state.Lock()
	defer d.state.Unlock()
	return d.loopQueued
}

// IncreaseLoop multiplies the loop length by the loop step and returns the
// new length in beats.
func (d *Deck) IncreaseLoop() float32 {
	d.state.Lock()
	defer d.state.Unlock()
	return d.setBeatsPerLoop(d.beatsPerLoop * d.loopStep)
}

// DecreaseLoop divides the loop length by the loop step.
func (d *Deck) DecreaseLoop() float32 {
	d.state.Lock()
	defer d.state.Unlock()
	return d.setBeatsPerLoop(d.beatsPerLoop / d.loopStep)
}

// SetBeatsPerLoop sets the loop length in beats.
func (d *Deck) SetBeatsPerLoop(beats float32) float32 {
	d.state.Lock()
	defer d.state.Unlock()
	return d.setBeatsPerLoop(beats)
}

func (d *Deck) setBeatsPerLoop(beats float32) float32 {
	if math.IsNaN(float64(beats)) || beats <= 0 {
		return d.beatsPerLoop
	}
	d.beatsPerLoop = lo.Clamp(beats, MinBeatsPerLoop, MaxBeatsPerLoop)
	if fpb := d.framesPerBeat(); d.loopQueued && fpb > 0 {
		d.loopEnd = d.loopEndFrom(d.loopBegin, fpb)
	}
	return d.beatsPerLoop
}
