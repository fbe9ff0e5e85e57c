package control

import (
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/satindergrewal/djdeck/internal/command"
)

// Translator holds the state of every sensor and turns readings into deck
// commands.
type Translator struct {
	decks   int
	sensors map[int]Sensor
}

// NewTranslator creates the sensors for up to two decks.
func NewTranslator(decks int) *Translator {
	t := &Translator{decks: min(decks, 2), sensors: make(map[int]Sensor)}
	for d := range t.decks {
		base := d * RightDeckBase
		for k := PlayPauseButton; k <= LoopOutButton; k++ {
			var s Sensor
			switch k {
			case TempoPot:
				s = &Pot{}
			case JogEncoder:
				s = &Encoder{}
			default:
				s = &Button{kind: k}
			}
			t.sensors[base+int(k)] = s
		}
	}
	return t
}

// Sensor returns the sensor with the given id.
func (t *Translator) Sensor(id int) (Sensor, error) {
	d, _, err := Locate(id)
	if err != nil {
		return nil, err
	}
	s, ok := t.sensors[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d for deck %d", ErrUnknownSensor, id, d)
	}
	return s, nil
}

// Handle applies one reading and returns the commands it triggers.
func (t *Translator) Handle(r Reading, now time.Time) ([]command.Command, error) {
	s, err := t.Sensor(r.ID)
	if err != nil {
		return nil, err
	}
	d, _, _ := Locate(r.ID)

	switch s := s.(type) {
	case *Button:
		if !s.Write(r.Value, now) {
			return nil, nil
		}
		return t.buttonCommands(d, s), nil
	case *Pot:
		if s.touched && s.value == r.Value {
			return nil, nil
		}
		s.value, s.touched = r.Value, true
		return []command.Command{{Deck: d, Op: command.SetSpeed, Value: Speed(r.Value)}}, nil
	case *Encoder:
		return t.jogCommands(d, r.Value), nil
	}
	return nil, nil
}

// Tick advances button hold timers and returns the commands that held
// buttons trigger.
func (t *Translator) Tick(now time.Time) []command.Command {
	var cmds []command.Command
	for id, s := range t.sensors {
		b, ok := s.(*Button)
		if !ok || !b.Tick(now) {
			continue
		}
		d, _, _ := Locate(id)
		cmds = append(cmds, t.buttonCommands(d, b)...)
	}
	return cmds
}

func (t *Translator) buttonCommands(deck int, b *Button) []command.Command {
	op, ok := buttonOp(b)
	if !ok {
		return nil
	}
	return []command.Command{{Deck: deck, Op: op}}
}

// buttonOp decides what a button transition does. Most buttons act on
// release; the cue button starts cue play when held and stops it on release.
func buttonOp(b *Button) (command.Op, bool) {
	switch b.kind {
	case CueButton:
		switch {
		case b.state == Held:
			return command.CuePlay, true
		case b.state == Released && b.wasHeld:
			return command.CueStop, true
		case b.state == Released:
			return command.Cue, true
		}
	case PlayPauseButton:
		return command.TogglePlay, b.state == Released
	case LoopInButton:
		return command.SetLoop, b.state == Released
	case LoopOutButton:
		return command.CancelLoop, b.state == Released
	}
	return 0, false
}

// jogCommands nudges the speed, or changes the loop length while the
// deck's loop-in button is held.
func (t *Translator) jogCommands(deck, detent int) []command.Command {
	if detent != 1 && detent != -1 {
		return nil
	}
	loopIn, _ := t.sensors[deck*RightDeckBase+int(LoopInButton)].(*Button)
	holding := loopIn != nil && loopIn.state == Held

	op := lo.Ternary(detent == 1, command.FineForward, command.FineBackward)
	if holding {
		op = lo.Ternary(detent == 1, command.LoopLonger, command.LoopShorter)
	}
	return []command.Command{{Deck: deck, Op: op}}
}
