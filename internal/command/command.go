// Package command defines deck commands as plain values, the text language
// typed at the console or posted to the HTTP API, and their dispatch.
package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/satindergrewal/djdeck/internal/effect"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrUsage          = errors.New("bad arguments")
)

// AllDecks selects every deck for Info.
const AllDecks = -1

// Op is a deck operation.
type Op int

const (
	Load Op = iota
	TogglePlay
	SetSpeed
	FineForward
	FineBackward
	Cue
	CuePlay
	CueStop
	NextBeat
	PrevBeat
	SetLoop
	CancelLoop
	LoopLonger
	LoopShorter
	LoopBeats
	SetEffect
	ToggleMonitor
	Info
	Quit
)

type syntax struct {
	word  string
	usage string
	// args counts the arguments after the deck index.
	args int
	help string
}

var syntaxes = map[Op]syntax{
	Load:          {"l", "l DECK PATH", 0, "load a file"},
	TogglePlay:    {"p", "p DECK", 0, "toggle play/pause"},
	SetSpeed:      {"s", "s DECK SPEED", 1, "set destination speed"},
	FineForward:   {"ff", "ff DECK", 0, "nudge speed up"},
	FineBackward:  {"fb", "fb DECK", 0, "nudge speed down"},
	Cue:           {"c", "c DECK", 0, "cue to the nearest beat"},
	CuePlay:       {"cp", "cp DECK", 0, "start cue play"},
	CueStop:       {"cs", "cs DECK", 0, "stop cue play"},
	NextBeat:      {"nb", "nb DECK", 0, "preview the next beat"},
	PrevBeat:      {"pb", "pb DECK", 0, "preview the previous beat"},
	SetLoop:       {"lp", "lp DECK", 0, "loop from the current beat"},
	CancelLoop:    {"lx", "lx DECK", 0, "cancel the loop"},
	LoopLonger:    {"l+", "l+ DECK", 0, "lengthen the loop"},
	LoopShorter:   {"l-", "l- DECK", 0, "shorten the loop"},
	LoopBeats:     {"lc", "lc DECK BEATS", 1, "set beats per loop"},
	SetEffect:     {"e", "e DECK EFFECT MIX PARAM", 3, "set the effect"},
	ToggleMonitor: {"tm", "tm DECK", 0, "toggle monitor routing"},
	Info:          {"i", "i [DECK]", 0, "show deck info"},
	Quit:          {"q", "q", 0, "quit"},
}

var byWord = func() map[string]Op {
	m := make(map[string]Op, len(syntaxes))
	for op, s := range syntaxes {
		m[s.word] = op
	}
	return m
}()

func (o Op) String() string {
	if s, ok := syntaxes[o]; ok {
		return s.word
	}
	return "op(" + strconv.Itoa(int(o)) + ")"
}

// Command is one deck operation with its arguments. Value carries the
// speed for SetSpeed and the beat count for LoopBeats.
type Command struct {
	Deck   int
	Op     Op
	Path   string
	Value  float64
	Effect effect.Kind
	Mix    float32
	Param  float32
}

func (c Command) String() string {
	switch c.Op {
	case Quit:
		return "q"
	case Info:
		if c.Deck == AllDecks {
			return "i"
		}
	case Load:
		return fmt.Sprintf("l %d %s", c.Deck, c.Path)
	case SetSpeed, LoopBeats:
		return fmt.Sprintf("%s %d %g", c.Op, c.Deck, c.Value)
	case SetEffect:
		return fmt.Sprintf("e %d %s %g %g", c.Deck, c.Effect, c.Mix, c.Param)
	}
	return fmt.Sprintf("%s %d", c.Op, c.Deck)
}

// Parse reads one command line. Deck indices are only checked for being
// non-negative; the engine checks the upper bound.
func Parse(line string) (Command, error) {
	line = strings.TrimSpace(line)
	word, rest, _ := strings.Cut(line, " ")
	if word == "" {
		return Command{}, fmt.Errorf("%w: empty line", ErrUnknownCommand)
	}
	op, ok := byWord[word]
	if !ok {
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, word)
	}
	s := syntaxes[op]
	cmd := Command{Op: op}

	switch op {
	case Quit:
		if strings.TrimSpace(rest) != "" {
			return Command{}, usage(s)
		}
		return cmd, nil
	case Info:
		fields := strings.Fields(rest)
		switch len(fields) {
		case 0:
			cmd.Deck = AllDecks
			return cmd, nil
		case 1:
			d, err := parseDeck(fields[0])
			if err != nil {
				return Command{}, usage(s)
			}
			cmd.Deck = d
			return cmd, nil
		}
		return Command{}, usage(s)
	case Load:
		deckWord, path, _ := strings.Cut(strings.TrimSpace(rest), " ")
		d, err := parseDeck(deckWord)
		path = strings.TrimSpace(path)
		if err != nil || path == "" {
			return Command{}, usage(s)
		}
		cmd.Deck, cmd.Path = d, path
		return cmd, nil
	}

	fields := strings.Fields(rest)
	if len(fields) != 1+s.args {
		return Command{}, usage(s)
	}
	d, err := parseDeck(fields[0])
	if err != nil {
		return Command{}, usage(s)
	}
	cmd.Deck = d

	switch op {
	case SetSpeed, LoopBeats:
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil || v < 0 {
			return Command{}, usage(s)
		}
		cmd.Value = v
	case SetEffect:
		kind, err := effect.ParseKind(fields[1])
		if err != nil {
			return Command{}, fmt.Errorf("%w (%s): %v", ErrUsage, s.usage, err)
		}
		mix, err1 := strconv.ParseFloat(fields[2], 32)
		param, err2 := strconv.ParseFloat(fields[3], 32)
		if err1 != nil || err2 != nil {
			return Command{}, usage(s)
		}
		cmd.Effect, cmd.Mix, cmd.Param = kind, float32(mix), float32(param)
	}
	return cmd, nil
}

func parseDeck(s string) (int, error) {
	d, err := strconv.Atoi(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("bad deck index %q", s)
	}
	return d, nil
}

func usage(s syntax) error {
	return fmt.Errorf("%w: usage: %s", ErrUsage, s.usage)
}

// Help lists every command with its usage, in a fixed order.
func Help() []string {
	lines := make([]string, 0, len(syntaxes))
	for op := Load; op <= Quit; op++ {
		s := syntaxes[op]
		lines = append(lines, fmt.Sprintf("%-24s %s", s.usage, s.help))
	}
	return lines
}
