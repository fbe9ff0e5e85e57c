// Package deck is the per-deck playback engine: a play head moving through a
// PCM source at a variable speed, with beat-aligned cueing, looping and an
// effect stage, rendered one fixed-size block per callback period.
//
// A Deck has two locks. The sample lock (Lock/TryLock/Unlock) guards the
// rendered block and is held by the mixer from the moment it hands the
// block to the output devices until the next block has been rendered. The
// state lock guards everything else and is taken by every command, so
// commands take effect at the next block boundary.
package deck

import (
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/lo"

	"github.com/satindergrewal/djdeck/internal/audio"
	"github.com/satindergrewal/djdeck/internal/effect"
	"github.com/satindergrewal/djdeck/internal/pcm"
)

var (
	ErrBeatGridUnavailable = errors.New("beat grid unavailable")
	ErrNoTrack             = errors.New("no track loaded")
	ErrInvalidMode         = errors.New("not allowed in the current play mode")
)

// PlayMode is the playback intent of a deck, independent of looping.
type PlayMode int32

const (
	NoPlayback PlayMode = iota
	RegularPlay
	CuePlay
	BeatPreview
	// SlowdownToHalt is reserved for a motor-stop emulation and is never entered.
	SlowdownToHalt
)

func (m PlayMode) String() string {
	switch m {
	case NoPlayback:
		return "paused"
	case RegularPlay:
		return "playing"
	case CuePlay:
		return "cue play"
	case BeatPreview:
		return "beat preview"
	case SlowdownToHalt:
		return "slowing down"
	}
	return fmt.Sprintf("mode(%d)", int32(m))
}

const (
	// RecoveryFrames is how long the actual speed takes to reach a new
	// destination speed: half a second at the engine rate.
	RecoveryFrames = audio.SampleRate / 2
	SpeedEpsilon   = 0.01
	FineStep       = 0.05
	MaxSpeed       = 4.0

	DefaultBeatsPerLoop = 4
	DefaultLoopStep     = 2
	MinBeatsPerLoop     = 1.0 / 32
	MaxBeatsPerLoop     = 32
)

// Options configures a deck at construction.
type Options struct {
	BlockFrames  int     // frames rendered per callback period
	BeatsPerLoop float32 // initial loop length
	LoopStep     float32 // factor applied by IncreaseLoop/DecreaseLoop
}

type Deck struct {
	id          int
	blockFrames int

	mu    sync.Mutex // sample lock
	block []float32

	state sync.Mutex
	src   pcm.Source // replaced only while both locks are held
	name  string

	mode  PlayMode
	cur   float64
	speed float64
	dest  float64
	step  float64 // per-frame easing increment toward dest

	bpm       float32
	firstBeat uint32

	loopQueued   bool
	loopBegin    uint32
	loopEnd      uint32
	beatsPerLoop float32
	loopStep     float32

	cueBegin     uint32
	previewStart uint32
	previewEnd   uint32

	fxKind effect.Kind
	fx     *effect.Container

	monitor atomic.Bool
}

func New(id int, opts Options) *Deck {
	if opts.BlockFrames < 1 {
		opts.BlockFrames = audio.FramesPer(100 * time.Millisecond)
	}
	if opts.BeatsPerLoop <= 0 {
		opts.BeatsPerLoop = DefaultBeatsPerLoop
	}
	if opts.LoopStep <= 1 {
		opts.LoopStep = DefaultLoopStep
	}
	return &Deck{
		id:           id,
		blockFrames:  opts.BlockFrames,
		block:        make([]float32, opts.BlockFrames*audio.Channels),
		speed:        1,
		dest:         1,
		beatsPerLoop: lo.Clamp(opts.BeatsPerLoop, MinBeatsPerLoop, MaxBeatsPerLoop),
		loopStep:     opts.LoopStep,
		fx:           effect.NewContainer(),
	}
}

func (d *Deck) ID() int { return d.id }

// BlockFrames returns the number of frames in every rendered block.
func (d *Deck) BlockFrames() int { return d.blockFrames }

// Lock, TryLock and Unlock operate the sample lock.
func (d *Deck) Lock()         { d.mu.Lock() }
func (d *Deck) TryLock() bool { return d.mu.TryLock() }
func (d *Deck) Unlock()       { d.mu.Unlock() }

// Block returns the last rendered block. The caller must hold the sample lock
// and must not modify the slice.
func (d *Deck) Block() []float32 { return d.block }

// Load binds a new source to the deck, closing the previous one. The play
// head rewinds to the start, looping is cancelled and the beat grid is
// cleared until SetBeatGrid is called.
func (d *Deck) Load(src pcm.Source, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.Lock()
	defer d.state.Unlock()

	if d.src != nil {
		if err := d.src.Close(); err != nil {
			log.Printf("Deck %d: closing %s: %v", d.id, d.name, err)
		}
	}
	d.src = src
	d.name = name
	d.mode = NoPlayback
	d.cur = 0
	d.loopQueued = false
	d.bpm = 0
	d.firstBeat = 0
	d.fx.Clear()
	clear(d.block)
}

// Unload releases the bound source and silences the deck.
func (d *Deck) Unload() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.Lock()
	defer d.state.Unlock()

	if d.src != nil {
		if err := d.src.Close(); err != nil {
			log.Printf("Deck %d: closing %s: %v", d.id, d.name, err)
		}
	}
	d.src = nil
	d.name = ""
	d.mode = NoPlayback
	d.loopQueued = false
	clear(d.block)
}

// SetBeatGrid sets the tempo and first beat used by cueing and looping.
// A non-positive or non-finite bpm disables beat operations.
func (d *Deck) SetBeatGrid(bpm float32, firstBeatFrame uint32) {
	d.state.Lock()
	defer d.state.Unlock()
	if bpm <= 0 || math.IsNaN(float64(bpm)) || math.IsInf(float64(bpm), 0) {
		bpm = 0
	}
	d.bpm = bpm
	d.firstBeat = firstBeatFrame
	if d.loopQueued && bpm > 0 {
		d.loopEnd = d.loopEndFrom(d.loopBegin, d.framesPerBeat())
	}
}

// TogglePlayPause starts a paused deck or pauses a playing one. Starting a
// deck that stopped at the end of its track rewinds it first.
func (d *Deck) TogglePlayPause() error {
	d.state.Lock()
	defer d.state.Unlock()
	if d.src == nil {
		return ErrNoTrack
	}

	if d.mode == NoPlayback && d.src.Status() == pcm.StatusEOF {
		d.cur = 0
		d.src.ClearEOF()
	}
	if d.mode != RegularPlay {
		d.mode = RegularPlay
	} else {
		d.mode = NoPlayback
	}
	return nil
}

// Mode returns the current play mode.
func (d *Deck) Mode() PlayMode {
	d.state.Lock()
	defer d.state.Unlock()
	return d.mode
}

// SetDestinationSpeed sets the speed the deck eases toward.
func (d *Deck) SetDestinationSpeed(v float64) {
	if math.IsNaN(v) {
		return
	}
	d.state.Lock()
	defer d.state.Unlock()
	d.dest = lo.Clamp(v, 0, MaxSpeed)
	d.retarget()
}

// FineStepForward nudges the actual speed up; easing then pulls it back
// toward the destination speed.
func (d *Deck) FineStepForward() {
	d.state.Lock()
	defer d.state.Unlock()
	d.speed += FineStep
	d.retarget()
}

func (d *Deck) FineStepBackward() {
	d.state.Lock()
	defer d.state.Unlock()
	d.speed -= FineStep
	d.retarget()
}

// SetEffect selects the effect and its two parameters.
func (d *Deck) SetEffect(kind effect.Kind, mix, param float32) {
	d.state.Lock()
	defer d.state.Unlock()
	d.fxKind = kind
	d.fx.SetParams(mix, param)
}

// ToggleMonitor flips monitor routing and returns the new value.
func (d *Deck) ToggleMonitor() bool {
	for {
		old := d.monitor.Load()
		if d.monitor.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

func (d *Deck) RoutedToMonitor() bool { return d.monitor.Load() }

// retarget recomputes the easing step so the remaining gap closes in
// RecoveryFrames frames. Caller holds the state lock.
func (d *Deck) retarget() {
	d.step = math.Abs(d.dest-d.speed) / RecoveryFrames
}
