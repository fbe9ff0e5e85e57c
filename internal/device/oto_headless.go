//go:build headless

package device

import (
	"context"
	"errors"
	"time"

	"github.com/satindergrewal/djdeck/internal/mixer"
)

var errNoSoundCard = errors.New("built without sound card support")

// Oto is unavailable in headless builds; use a stream, wav or null device.
type Oto struct{}

func NewOto(*mixer.Output, int, time.Duration) (*Oto, error) {
	return nil, errNoSoundCard
}

func (*Oto) Name() string              { return "" }
func (*Oto) Run(context.Context) error { return errNoSoundCard }
