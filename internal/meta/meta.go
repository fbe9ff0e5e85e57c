// Package meta reads the beat-grid sidecar that sits next to an audio file.
//
// The sidecar is a plain text file named after the track with a .txt
// extension, holding whitespace separated key/value pairs:
//
//	bpm 128
//	first_beat 0:01.250
package meta

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/satindergrewal/djdeck/internal/audio"
)

var ErrNoSidecar = errors.New("no metadata file")

// Metadata is the beat grid of one track. A zero BPM disables beat operations.
type Metadata struct {
	BPM       float32
	FirstBeat float64 // seconds
}

// FirstBeatFrame returns the first beat as an engine frame index.
func (m Metadata) FirstBeatFrame() uint32 {
	return audio.SecondsToFrames(m.FirstBeat)
}

// SidecarPath returns the metadata file for an audio file: the same path
// with the extension replaced by .txt.
func SidecarPath(audioPath string) string {
	ext := filepath.Ext(audioPath)
	return strings.TrimSuffix(audioPath, ext) + ".txt"
}

// Load reads the sidecar for audioPath. A missing file yields zero Metadata
// and ErrNoSidecar.
func Load(audioPath string) (Metadata, error) {
	f, err := os.Open(SidecarPath(audioPath))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Metadata{}, ErrNoSidecar
		}
		return Metadata{}, fmt.Errorf("open metadata: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads key/value pairs from r. Unknown keys are ignored and values
// that fail to parse are logged and skipped.
func Parse(r io.Reader) (Metadata, error) {
	var m Metadata
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)

	for sc.Scan() {
		key := sc.Text()
		if !sc.Scan() {
			break
		}
		value := sc.Text()

		switch key {
		case "bpm":
			bpm, err := strconv.ParseFloat(value, 32)
			if err != nil || bpm < 0 {
				log.Printf("Metadata: bpm %q is not a valid number", value)
				continue
			}
			m.BPM = float32(bpm)
		case "first_beat":
			sec, err := ParseFirstBeat(value)
			if err != nil {
				log.Printf("Metadata: %v", err)
				continue
			}
			m.FirstBeat = sec
		}
	}
	if err := sc.Err(); err != nil {
		return m, fmt.Errorf("read metadata: %w", err)
	}
	return m, nil
}

// ParseFirstBeat converts a [[mm:]ss][.mss] timestamp to seconds.
// The part after the dot is a decimal fraction of a second.
func ParseFirstBeat(s string) (float64, error) {
	if s == "" {
		return 0, fmt.Errorf("first_beat: empty value")
	}
	bad := func() (float64, error) {
		return 0, fmt.Errorf("first_beat %q: want [[mm:]ss][.mss]", s)
	}

	rest := s
	var seconds float64

	if mm, after, ok := strings.Cut(rest, ":"); ok {
		minutes, err := parseDigits(mm)
		if err != nil {
			return bad()
		}
		seconds += float64(minutes) * 60
		rest = after
	}

	ss, frac, hasFrac := strings.Cut(rest, ".")
	if ss != "" {
		v, err := parseDigits(ss)
		if err != nil {
			return bad()
		}
		seconds += float64(v)
	}
	if hasFrac {
		if frac == "" {
			return bad()
		}
		if _, err := parseDigits(frac); err != nil {
			return bad()
		}
		f, _ := strconv.ParseFloat("0."+frac, 64)
		seconds += f
	}
	if ss == "" && !hasFrac {
		return bad()
	}
	return seconds, nil
}

func parseDigits(s string) (int, error) {
	if s == "" {
		return 0, errors.New("empty")
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%q is not a number", s)
		}
	}
	return strconv.Atoi(s)
}
