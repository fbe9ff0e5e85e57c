package command

import (
	"errors"
	"fmt"
	"testing"

	"github.com/satindergrewal/djdeck/internal/deck"
	"github.com/satindergrewal/djdeck/internal/effect"
	"github.com/satindergrewal/djdeck/internal/pcm"
)

func TestParse(t *testing.T) {
	tests := []struct {
		line string
		want Command
	}{
		{"p 0", Command{Deck: 0, Op: TogglePlay}},
		{"  ff 1 ", Command{Deck: 1, Op: FineForward}},
		{"l 1 /music/my track.mp3", Command{Deck: 1, Op: Load, Path: "/music/my track.mp3"}},
		{"s 0 1.25", Command{Deck: 0, Op: SetSpeed, Value: 1.25}},
		{"lc 1 0.5", Command{Deck: 1, Op: LoopBeats, Value: 0.5}},
		{"e 0 echo 0.3 0.5", Command{Deck: 0, Op: SetEffect, Effect: effect.Echo, Mix: 0.3, Param: 0.5}},
		{"e 1 3 0 4", Command{Deck: 1, Op: SetEffect, Effect: effect.Bitcrush, Mix: 0, Param: 4}},
		{"i", Command{Deck: AllDecks, Op: Info}},
		{"i 1", Command{Deck: 1, Op: Info}},
		{"tm 0", Command{Deck: 0, Op: ToggleMonitor}},
		{"l+ 0", Command{Deck: 0, Op: LoopLonger}},
		{"l- 0", Command{Deck: 0, Op: LoopShorter}},
		{"q", Command{Op: Quit}},
	}
	for _, tt := range tests {
		got, err := Parse(tt.line)
		if err != nil {
			t.Errorf("Parse(%q) error: %v", tt.line, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Parse(%q) = %+v, want %+v", tt.line, got, tt.want)
		}
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		line string
		want error
	}{
		{"", ErrUnknownCommand},
		{"jump 0", ErrUnknownCommand},
		{"p", ErrUsage},
		{"p x", ErrUsage},
		{"p -1", ErrUsage},
		{"p 0 1", ErrUsage},
		{"l 0", ErrUsage},
		{"s 0", ErrUsage},
		{"s 0 fast", ErrUsage},
		{"s 0 -1", ErrUsage},
		{"e 0 echo 0.5", ErrUsage},
		{"e 0 reverb 0.5 1", ErrUsage},
		{"e 0 echo x 1", ErrUsage},
		{"i 0 1", ErrUsage},
		{"q now", ErrUsage},
	}
	for _, tt := range tests {
		if _, err := Parse(tt.line); !errors.Is(err, tt.want) {
			t.Errorf("Parse(%q) error = %v, want %v", tt.line, err, tt.want)
		}
	}
}

func TestStringParsesBack(t *testing.T) {
	for _, line := range []string{"p 0", "l 1 a b.wav", "s 0 0.75", "e 1 lowsr 0.5 4", "i", "i 1", "q", "lc 0 8"} {
		c, err := Parse(line)
		if err != nil {
			t.Fatalf("Parse(%q): %v", line, err)
		}
		again, err := Parse(c.String())
		if err != nil || again != c {
			t.Errorf("Parse(%q.String()) = %+v, %v, want %+v", line, again, err, c)
		}
	}
}

func TestHelpCoversEveryOp(t *testing.T) {
	if got, want := len(Help()), int(Quit)+1; got != want {
		t.Errorf("Help lines = %d, want %d", got, want)
	}
}

var errDeckIndex = errors.New("no such deck")

type fakeTarget struct {
	decks  []*deck.Deck
	loaded map[int]string
	exit   bool
}

func newTarget(n int) *fakeTarget {
	f := &fakeTarget{loaded: make(map[int]string)}
	for i := range n {
		f.decks = append(f.decks, deck.New(i, deck.Options{BlockFrames: 480}))
	}
	return f
}

func (f *fakeTarget) Deck(i int) (*deck.Deck, error) {
	if i < 0 || i >= len(f.decks) {
		return nil, fmt.Errorf("%w: %d", errDeckIndex, i)
	}
	return f.decks[i], nil
}

func (f *fakeTarget) Load(i int, path string) error {
	d, err := f.Deck(i)
	if err != nil {
		return err
	}
	d.Load(pcm.NewBuffer(path, make([]float32, 96000*2), 4800), path)
	f.loaded[i] = path
	return nil
}

func (f *fakeTarget) Snapshots() []deck.Snapshot {
	var s []deck.Snapshot
	for _, d := range f.decks {
		s = append(s, d.Snapshot())
	}
	return s
}

func (f *fakeTarget) RequestExit() { f.exit = true }

func dispatch(t *testing.T, target Target, line string) (Result, error) {
	t.Helper()
	c, err := Parse(line)
	if err != nil {
		t.Fatalf("Parse(%q): %v", line, err)
	}
	return Dispatch(target, c)
}

func TestDispatch(t *testing.T) {
	target := newTarget(2)

	if _, err := dispatch(t, target, "p 0"); !errors.Is(err, deck.ErrNoTrack) {
		t.Errorf("play without a track: %v, want ErrNoTrack", err)
	}
	if _, err := dispatch(t, target, "l 0 song.wav"); err != nil {
		t.Fatal(err)
	}
	if target.loaded[0] != "song.wav" {
		t.Errorf("loaded = %v", target.loaded)
	}
	if r, err := dispatch(t, target, "p 0"); err != nil || r.Message != "deck 0: playing" {
		t.Errorf("p 0 = %q, %v", r.Message, err)
	}
	if _, err := dispatch(t, target, "c 0"); !errors.Is(err, deck.ErrBeatGridUnavailable) {
		t.Errorf("cue without bpm: %v, want ErrBeatGridUnavailable", err)
	}
	if _, err := dispatch(t, target, "s 0 1.5"); err != nil {
		t.Fatal(err)
	}
	if got := target.decks[0].Snapshot().DestSpeed; got != 1.5 {
		t.Errorf("DestSpeed = %v, want 1.5", got)
	}
	if _, err := dispatch(t, target, "e 1 bitcrush 0.5 4"); err != nil {
		t.Fatal(err)
	}
	if s := target.decks[1].Snapshot(); s.Effect != "bitcrush" || s.EffectMix != 0.5 {
		t.Errorf("effect = %s mix %v, want bitcrush mix 0.5", s.Effect, s.EffectMix)
	}
	if r, _ := dispatch(t, target, "tm 1"); r.Message != "deck 1: routed to monitor" {
		t.Errorf("tm 1 = %q", r.Message)
	}
	if r, _ := dispatch(t, target, "l+ 0"); r.Message != "deck 0: 8 beats per loop" {
		t.Errorf("l+ 0 = %q", r.Message)
	}
	if _, err := dispatch(t, target, "p 5"); !errors.Is(err, errDeckIndex) {
		t.Errorf("p 5: %v, want deck index error", err)
	}
}

func TestDispatchInfo(t *testing.T) {
	target := newTarget(2)
	r, err := dispatch(t, target, "i")
	if err != nil || len(r.Decks) != 2 {
		t.Fatalf("i = %d decks, %v, want 2", len(r.Decks), err)
	}
	r, err = dispatch(t, target, "i 1")
	if err != nil || len(r.Decks) != 1 || r.Decks[0].ID != 1 {
		t.Fatalf("i 1 = %+v, %v", r.Decks, err)
	}
	if _, err := dispatch(t, target, "i 7"); !errors.Is(err, errDeckIndex) {
		t.Errorf("i 7: %v, want deck index error", err)
	}
}

func TestDispatchQuit(t *testing.T) {
	target := newTarget(1)
	if _, err := dispatch(t, target, "q"); err != nil {
		t.Fatal(err)
	}
	if !target.exit {
		t.Error("quit did not request exit")
	}
}
