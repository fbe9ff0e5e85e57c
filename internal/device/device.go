// Package device drives the mixer's outputs: the local sound card through
// oto's pull callback, and clocked sinks for streaming, recording and tests.
package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/satindergrewal/djdeck/internal/mixer"
)

var ErrUnknownKind = errors.New("unknown device kind")

// Kind names an output device implementation.
type Kind string

const (
	KindOto    Kind = "oto"
	KindStream Kind = "stream"
	KindWAV    Kind = "wav"
	KindNull   Kind = "null"
)

// Kinds lists every supported device kind.
var Kinds = []Kind{KindOto, KindStream, KindWAV, KindNull}

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !lo.Contains(Kinds, k) {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}

// Device pulls mixed blocks from one mixer output until ctx is done.
// Run detaches the output before returning so the mixer never waits on a
// stopped device.
type Device interface {
	Name() string
	Run(ctx context.Context) error
}

// Options configures New.
type Options struct {
	BlockFrames int
	Period      time.Duration
	RecordPath  string // wav
}

// New builds a device of the given kind reading from out. Stream devices
// are built with NewStreamer so the caller can reach their frame channel.
func New(kind Kind, out *mixer.Output, opts Options) (Device, error) {
	switch kind {
	case KindOto:
		d, err := NewOto(out, opts.BlockFrames, opts.Period)
		if err != nil {
			return nil, err
		}
		return d, nil
	case KindStream:
		return NewStreamer(out, opts.BlockFrames, opts.Period), nil
	case KindWAV:
		rec, err := NewRecorder(opts.RecordPath)
		if err != nil {
			return nil, err
		}
		return NewClocked(out, rec, opts.BlockFrames, opts.Period), nil
	case KindNull:
		return NewClocked(out, Null{}, opts.BlockFrames, opts.Period), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}
