// Package effect implements the per-deck effect stage applied to every
// rendered block.
package effect

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/satindergrewal/djdeck/internal/audio"
)

// Kind selects the effect applied by a Container.
type Kind uint8

const (
	None Kind = iota
	Echo
	LowerSamplerate
	Bitcrush
)

var kindNames = map[Kind]string{
	None:            "none",
	Echo:            "echo",
	LowerSamplerate: "lowsr",
	Bitcrush:        "bitcrush",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// ParseKind accepts an effect name or its numeric id.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		if n >= 0 && n <= int(Bitcrush) {
			return Kind(n), nil
		}
		return None, fmt.Errorf("unknown effect id %d", n)
	}
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	switch s {
	case "lowersamplerate", "samplerate", "hold":
		return LowerSamplerate, nil
	case "crush":
		return Bitcrush, nil
	}
	return None, fmt.Errorf("unknown effect %q", s)
}

const (
	DefaultMix   = 0.25
	DefaultParam = 1.0
	// MaxParam bounds the parameter knob: two seconds of frames, the echo ring length.
	MaxParam = 2 * audio.SampleRate

	ringLen = 2 * audio.SampleRate * audio.Channels
)

// Container holds the effect parameters and the echo delay line for one deck.
// It is not safe for concurrent use; the deck serialises access.
type Container struct {
	mix   float32
	param float32

	ring  []float32
	write int
}

func NewContainer() *Container {
	return &Container{
		mix:   DefaultMix,
		param: DefaultParam,
		ring:  make([]float32, ringLen),
	}
}

// SetParams sets the wet/dry mix (clamped to [0,1]) and the effect parameter
// (clamped to [0,MaxParam]).
func (c *Container) SetParams(mix, param float32) {
	c.mix = lo.Clamp(mix, 0, 1)
	c.param = lo.Clamp(param, 0, MaxParam)
}

func (c *Container) Mix() float32   { return c.mix }
func (c *Container) Param() float32 { return c.param }

// Clear silences the echo delay line.
func (c *Container) Clear() {
	clear(c.ring)
	c.write = 0
}

// Apply transforms samples in place.
func (c *Container) Apply(samples []float32, kind Kind) {
	switch kind {
	case Echo:
		c.echo(samples)
	case LowerSamplerate:
		c.lowerSamplerate(samples)
	case Bitcrush:
		c.bitcrush(samples)
	}
}

func (c *Container) echo(s []float32) {
	delay := int(math.Round(float64(c.param))) * audio.Channels
	for i := range s {
		s[i] += c.ring[(i+c.write)%ringLen] * c.mix
	}
	for i := range s {
		c.ring[(i+delay+c.write)%ringLen] = s[i]
	}
	c.write = (c.write + len(s)) % ringLen
}

// lowerSamplerate holds each channel's value for round(param) frames.
// The held value restarts at the beginning of every block.
func (c *Container) lowerSamplerate(s []float32) {
	hold := int(math.Round(float64(c.param)))
	if hold <= 0 {
		return
	}
	var held [audio.Channels]float32
	for i := range s {
		ch := i % audio.Channels
		if (i/audio.Channels)%hold == 0 {
			held[ch] = s[i]
		}
		s[i] = c.mix*held[ch] + (1-c.mix)*s[i]
	}
}

func (c *Container) bitcrush(s []float32) {
	levels := c.param*c.param - 1
	if levels <= 0 {
		return
	}
	for i, v := range s {
		q := float32(math.Ceil(float64(v*levels))) / levels
		s[i] = c.mix*q + (1-c.mix)*v
	}
}
