package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/satindergrewal/djdeck/internal/device"
)

var ErrInvalid = errors.New("invalid configuration")

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// Engine
	Decks          int
	CallbackPeriod time.Duration // one block per device callback

	// Output devices: oto, stream, wav or null
	AudienceDevice string
	MonitorDevice  string
	RecordPath     string // wav device output file

	// Server
	Port int

	// Arduino controller
	SerialPort string // empty disables sensor input
	SerialBaud int

	// Deck behavior
	LoopBeats      float64 // initial beats per loop
	LoopStepFactor float64 // loop length multiplier for l+ / l-
	WatchMetadata  bool    // reload bpm/first_beat when a sidecar changes

	Console bool // read commands from the keyboard
}

// Load reads configuration from environment variables with sane defaults.
func Load() Config {
	return Config{
		Decks:          envInt("DJDECK_DECKS", 2),
		CallbackPeriod: time.Duration(envInt("DJDECK_CALLBACK_MS", 100)) * time.Millisecond,

		AudienceDevice: envStr("DJDECK_AUDIENCE_DEVICE", "oto"),
		MonitorDevice:  envStr("DJDECK_MONITOR_DEVICE", "stream"),
		RecordPath:     envStr("DJDECK_RECORD_PATH", "djdeck-recording.wav"),

		Port: envInt("DJDECK_PORT", 8080),

		SerialPort: envStr("DJDECK_SERIAL_PORT", ""),
		SerialBaud: envInt("DJDECK_SERIAL_BAUD", 9600),

		LoopBeats:      envFloat("DJDECK_LOOP_BEATS", 4),
		LoopStepFactor: envFloat("DJDECK_LOOP_STEP", 2),
		WatchMetadata:  envBool("DJDECK_WATCH_METADATA", true),

		Console: envBool("DJDECK_CONSOLE", true),
	}
}

// Validate reports every setting the engine cannot run with.
func (c Config) Validate() error {
	var problems []string
	if c.Decks < 1 {
		problems = append(problems, fmt.Sprintf("decks = %d, need at least 1", c.Decks))
	}
	if c.CallbackPeriod <= 0 {
		problems = append(problems, fmt.Sprintf("callback period = %v, must be positive", c.CallbackPeriod))
	}
	for _, d := range []string{c.AudienceDevice, c.MonitorDevice} {
		if _, err := device.ParseKind(d); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if c.Port < 0 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("port %d out of range", c.Port))
	}
	if c.SerialBaud <= 0 {
		problems = append(problems, fmt.Sprintf("serial baud = %d, must be positive", c.SerialBaud))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
