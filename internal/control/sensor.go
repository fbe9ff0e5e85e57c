package control

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrUnknownSensor = errors.New("unknown sensor")

// SensorKind is the control a sensor reads. The Arduino numbers each deck's
// sensors consecutively in this order, starting at 0 for the left deck and
// at RightDeckBase for the right one.
type SensorKind int

const (
	PlayPauseButton SensorKind = iota
	CueButton
	TempoPot
	JogEncoder
	LoopInButton
	LoopOutButton

	sensorsPerDeck = 6
)

const RightDeckBase = 25

// HoldDuration is how long a button stays down before it counts as held.
const HoldDuration = 125 * time.Millisecond

// The tempo potentiometer reads PotCentre at 1x and covers ±MaxTempoDelta.
const (
	PotCentre     = 480
	MaxTempoDelta = 0.125
)

func (k SensorKind) String() string {
	switch k {
	case PlayPauseButton:
		return "play/pause"
	case CueButton:
		return "cue"
	case TempoPot:
		return "tempo"
	case JogEncoder:
		return "jog"
	case LoopInButton:
		return "loop in"
	case LoopOutButton:
		return "loop out"
	}
	return "sensor(" + strconv.Itoa(int(k)) + ")"
}

// Locate maps a sensor id to its deck and kind.
func Locate(id int) (deck int, kind SensorKind, err error) {
	switch {
	case id >= 0 && id < sensorsPerDeck:
		return 0, SensorKind(id), nil
	case id >= RightDeckBase && id < RightDeckBase+sensorsPerDeck:
		return 1, SensorKind(id - RightDeckBase), nil
	}
	return 0, 0, fmt.Errorf("%w: id %d", ErrUnknownSensor, id)
}

// Reading is one "id,value" line from the serial port.
type Reading struct {
	ID    int
	Value int
}

func ParseReading(line string) (Reading, error) {
	idText, valueText, ok := strings.Cut(strings.TrimSpace(line), ",")
	if !ok {
		return Reading{}, fmt.Errorf("no comma in %q", line)
	}
	id, err := strconv.Atoi(strings.TrimSpace(idText))
	if err != nil {
		return Reading{}, fmt.Errorf("bad sensor id in %q", line)
	}
	v, err := strconv.Atoi(strings.TrimSpace(valueText))
	if err != nil {
		return Reading{}, fmt.Errorf("bad sensor value in %q", line)
	}
	return Reading{ID: id, Value: v}, nil
}

// ButtonState is the debounced state of a push button.
type ButtonState int

const (
	Untouched ButtonState = iota
	Pressed
	Held
	Released
)

func (s ButtonState) String() string {
	switch s {
	case Untouched:
		return "untouched"
	case Pressed:
		return "pressed"
	case Held:
		return "held"
	case Released:
		return "released"
	}
	return "unknown"
}

// Sensor is one of Button, Pot or Encoder.
type Sensor interface {
	Kind() SensorKind
	isSensor()
}

// Button debounces a digital input into Untouched, Pressed, Held and
// Released.
type Button struct {
	kind      SensorKind
	state     ButtonState
	wasHeld   bool
	pressedAt time.Time
}

// Pot is the tempo potentiometer.
type Pot struct {
	value   int
	touched bool
}

// Encoder is the jog wheel; each reading is one detent, +1 or -1.
type Encoder struct{}

func (b *Button) Kind() SensorKind { return b.kind }
func (*Pot) Kind() SensorKind      { return TempoPot }
func (*Encoder) Kind() SensorKind  { return JogEncoder }

func (*Button) isSensor()  {}
func (*Pot) isSensor()     {}
func (*Encoder) isSensor() {}

func (b *Button) State() ButtonState { return b.state }

// Write feeds a raw reading (non-zero is down) and reports whether the
// state changed.
func (b *Button) Write(value int, now time.Time) bool {
	down := value != 0
	switch {
	case down && (b.state == Untouched || b.state == Released):
		b.state = Pressed
		b.wasHeld = false
		b.pressedAt = now
		return true
	case down && b.state == Pressed:
		return b.Tick(now)
	case !down && (b.state == Pressed || b.state == Held):
		b.wasHeld = b.state == Held
		b.state = Released
		return true
	}
	return false
}

// Tick promotes a pressed button to held once HoldDuration has passed.
func (b *Button) Tick(now time.Time) bool {
	if b.state == Pressed && now.Sub(b.pressedAt) >= HoldDuration {
		b.state = Held
		return true
	}
	return false
}

// Speed maps a potentiometer reading to a playback speed.
func Speed(value int) float64 {
	return 1 + float64(value-PotCentre)/(PotCentre/MaxTempoDelta)
}
