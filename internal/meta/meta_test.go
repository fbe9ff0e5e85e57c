package meta

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseFirstBeat(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"12", 12},
		{"1:30", 90},
		{"2.5", 2.5},
		{"2.250", 2.25},
		{"1:02.500", 62.5},
		{".750", 0.75},
		{"0", 0},
		{"10:00", 600},
	}
	for _, tt := range tests {
		got, err := ParseFirstBeat(tt.in)
		if err != nil {
			t.Errorf("ParseFirstBeat(%q) error: %v", tt.in, err)
			continue
		}
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("ParseFirstBeat(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseFirstBeatRejects(t *testing.T) {
	for _, in := range []string{"", "abc", "1:x", "1.", ":", "-3", "1.2.3", "1:2:3"} {
		if _, err := ParseFirstBeat(in); err == nil {
			t.Errorf("ParseFirstBeat(%q) should fail", in)
		}
	}
}

func TestParse(t *testing.T) {
	m, err := Parse(strings.NewReader("bpm 120\nfirst_beat 0:00.500\ngenre house\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.BPM != 120 {
		t.Errorf("BPM = %v, want 120", m.BPM)
	}
	if m.FirstBeat != 0.5 {
		t.Errorf("FirstBeat = %v, want 0.5", m.FirstBeat)
	}
	if m.FirstBeatFrame() != 24000 {
		t.Errorf("FirstBeatFrame = %d, want 24000", m.FirstBeatFrame())
	}
}

func TestParseSkipsBadValues(t *testing.T) {
	m, err := Parse(strings.NewReader("bpm fast first_beat 1.5"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.BPM != 0 {
		t.Errorf("BPM = %v, want 0 after bad value", m.BPM)
	}
	if m.FirstBeat != 1.5 {
		t.Errorf("FirstBeat = %v, want 1.5", m.FirstBeat)
	}
}

func TestSidecarPath(t *testing.T) {
	tests := []struct{ in, want string }{
		{"music/track.mp3", "music/track.txt"},
		{"track.flac", "track.txt"},
		{"noext", "noext.txt"},
		{"dir.v2/track.ogg", "dir.v2/track.txt"},
	}
	for _, tt := range tests {
		if got := SidecarPath(tt.in); got != tt.want {
			t.Errorf("SidecarPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoadMissing(t *testing.T) {
	m, err := Load(filepath.Join(t.TempDir(), "track.mp3"))
	if !errors.Is(err, ErrNoSidecar) {
		t.Errorf("Load error = %v, want ErrNoSidecar", err)
	}
	if m.BPM != 0 {
		t.Errorf("BPM = %v, want 0", m.BPM)
	}
}

func TestWatcherReloads(t *testing.T) {
	dir := t.TempDir()
	track := filepath.Join(dir, "track.wav")
	side := SidecarPath(track)
	if err := os.WriteFile(side, []byte("bpm 100"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	got := make(chan Metadata, 4)
	if err := w.Watch(track, func(m Metadata) { got <- m }); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	if err := os.WriteFile(side, []byte("bpm 126 first_beat 1"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case m := <-got:
			if m.BPM == 126 {
				if m.FirstBeat != 1 {
					t.Errorf("FirstBeat = %v, want 1", m.FirstBeat)
				}
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for metadata reload")
		}
	}
}
