// Package pcm holds the decoded audio a deck plays from.
//
// A Source exposes a sliding window of interleaved stereo float32 frames at the
// engine sample rate. The deck asks for a window starting at a given frame with
// Refill, reads the samples out of Window, and repeats as the play head moves.
package pcm

import (
	"errors"
	"sync"

	"github.com/satindergrewal/djdeck/internal/audio"
)

var (
	ErrFileNotFound = errors.New("audio file not found")
	ErrFormat       = errors.New("unsupported or corrupt audio format")
)

// Status is the outcome of the most recent Refill.
type Status int

const (
	StatusOK Status = iota
	StatusEOF
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusEOF:
		return "eof"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// Window is the block of frames currently loaded from a source.
type Window struct {
	First   uint32    // first frame index in the window
	Frames  uint32    // number of frames in the window
	Samples []float32 // Frames*audio.Channels interleaved samples
}

// End returns one past the last frame index held in the window.
func (w Window) End() uint32 { return w.First + w.Frames }

// Source is the deck's view of a loaded file.
type Source interface {
	// Refill loads the window starting at frame first. It may block on I/O.
	Refill(first uint32) Status
	// Window returns the window loaded by the last Refill.
	Window() Window
	Status() Status
	// Err returns the error behind StatusError.
	Err() error
	// ClearEOF resets a StatusEOF so playback can restart.
	ClearEOF()
	// TryRLock takes the window read lock without blocking.
	TryRLock() bool
	RUnlock()
	Close() error
}

// Buffer is a Source over a fully decoded track held in memory.
type Buffer struct {
	mu sync.RWMutex

	name         string
	samples      []float32
	frames       uint32
	windowFrames uint32

	win    Window
	status Status
	err    error
}

// NewBuffer wraps interleaved stereo samples. windowFrames is the number of
// frames each Refill exposes.
func NewBuffer(name string, samples []float32, windowFrames int) *Buffer {
	if windowFrames < 2 {
		windowFrames = 2
	}
	return &Buffer{
		name:         name,
		samples:      samples,
		frames:       uint32(len(samples) / audio.Channels),
		windowFrames: uint32(windowFrames),
	}
}

func (b *Buffer) Name() string { return b.name }

// Frames returns the length of the track in frames.
func (b *Buffer) Frames() uint32 { return b.frames }

func (b *Buffer) Refill(first uint32) Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.status == StatusError {
		return b.status
	}
	// Interpolation needs a frame after the play head, so the last frame
	// alone is already the end of the track.
	if uint64(first)+1 >= uint64(b.frames) {
		b.win = Window{First: first}
		b.status = StatusEOF
		return b.status
	}

	n := min(b.windowFrames, b.frames-first)
	lo := int(first) * audio.Channels
	hi := int(first+n) * audio.Channels
	b.win = Window{First: first, Frames: n, Samples: b.samples[lo:hi]}
	b.status = StatusOK
	return b.status
}

func (b *Buffer) Window() Window { return b.win }

func (b *Buffer) Status() Status {
	return b.status
}

func (b *Buffer) Err() error { return b.err }

func (b *Buffer) ClearEOF() {
	if b.status == StatusEOF {
		b.status = StatusOK
	}
}

func (b *Buffer) TryRLock() bool { return b.mu.TryRLock() }

func (b *Buffer) RUnlock() { b.mu.RUnlock() }

// Close drops the decoded samples.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples = nil
	b.frames = 0
	b.win = Window{}
	return nil
}
