package command

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/satindergrewal/djdeck/internal/deck"
)

// Target is what commands act on.
type Target interface {
	Deck(i int) (*deck.Deck, error)
	Load(i int, path string) error
	Snapshots() []deck.Snapshot
	RequestExit()
}

// Result is what a command reports back to its caller.
type Result struct {
	Message string          `json:"message"`
	Decks   []deck.Snapshot `json:"decks,omitempty"`
}

// Dispatch applies c to t. Errors from the deck, such as an unavailable
// beat grid, are returned unchanged so callers can test them with errors.Is.
func Dispatch(t Target, c Command) (Result, error) {
	switch c.Op {
	case Quit:
		t.RequestExit()
		return Result{Message: "exiting"}, nil
	case Info:
		all := t.Snapshots()
		if c.Deck == AllDecks {
			return Result{Decks: all}, nil
		}
		s, ok := lo.Find(all, func(s deck.Snapshot) bool { return s.ID == c.Deck })
		if !ok {
			// Deck reports the index error.
			_, err := t.Deck(c.Deck)
			return Result{}, err
		}
		return Result{Decks: []deck.Snapshot{s}}, nil
	case Load:
		if err := t.Load(c.Deck, c.Path); err != nil {
			return Result{}, err
		}
		return Result{Message: fmt.Sprintf("deck %d: loaded %s", c.Deck, c.Path)}, nil
	}

	d, err := t.Deck(c.Deck)
	if err != nil {
		return Result{}, err
	}
	msg, err := apply(d, c)
	if err != nil {
		return Result{}, err
	}
	return Result{Message: fmt.Sprintf("deck %d: %s", c.Deck, msg)}, nil
}

func apply(d *deck.Deck, c Command) (string, error) {
	switch c.Op {
	case TogglePlay:
		if err := d.TogglePlayPause(); err != nil {
			return "", err
		}
		return d.Mode().String(), nil
	case SetSpeed:
		d.SetDestinationSpeed(c.Value)
		return fmt.Sprintf("speed -> %.3f", c.Value), nil
	case FineForward:
		d.FineStepForward()
		return "nudged forward", nil
	case FineBackward:
		d.FineStepBackward()
		return "nudged backward", nil
	case Cue:
		return "cued", d.CueToNearest()
	case CuePlay:
		return "cue play", d.InitiateCuePlay()
	case CueStop:
		return "cue play stopped", d.StopCuePlay()
	case NextBeat:
		return "next beat", d.PlayNextBeat()
	case PrevBeat:
		return "previous beat", d.PlayPrevBeat()
	case SetLoop:
		return "looping", d.SetLoop()
	case CancelLoop:
		d.CancelLoop()
		return "loop cancelled", nil
	case LoopLonger:
		return fmt.Sprintf("%g beats per loop", d.IncreaseLoop()), nil
	case LoopShorter:
		return fmt.Sprintf("%g beats per loop", d.DecreaseLoop()), nil
	case LoopBeats:
		return fmt.Sprintf("%g beats per loop", d.SetBeatsPerLoop(float32(c.Value))), nil
	case SetEffect:
		d.SetEffect(c.Effect, c.Mix, c.Param)
		return fmt.Sprintf("effect %s mix %g param %g", c.Effect, c.Mix, c.Param), nil
	case ToggleMonitor:
		if d.ToggleMonitor() {
			return "routed to monitor", nil
		}
		return "removed from monitor", nil
	}
	return "", fmt.Errorf("%w: %v", ErrUnknownCommand, c.Op)
}
