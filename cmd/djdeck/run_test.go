package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/satindergrewal/djdeck/internal/config"
)

func TestRunParamsApply(t *testing.T) {
	cfg := config.Config{
		Decks:          2,
		CallbackPeriod: 100 * time.Millisecond,
		AudienceDevice: "oto",
		MonitorDevice:  "stream",
		Port:           8080,
		SerialBaud:     9600,
		WatchMetadata:  true,
		Console:        true,
	}
	p := RunParams{
		Decks:     3,
		Monitor:   "wav",
		Record:    "set.wav",
		Period:    20,
		Serial:    "/dev/ttyACM0",
		NoConsole: true,
	}
	p.apply(&cfg)

	if cfg.Decks != 3 {
		t.Errorf("Decks = %d, want 3", cfg.Decks)
	}
	if cfg.AudienceDevice != "oto" {
		t.Errorf("AudienceDevice = %q, want oto (unchanged)", cfg.AudienceDevice)
	}
	if cfg.MonitorDevice != "wav" || cfg.RecordPath != "set.wav" {
		t.Errorf("monitor = %q/%q, want wav/set.wav", cfg.MonitorDevice, cfg.RecordPath)
	}
	if cfg.CallbackPeriod != 20*time.Millisecond {
		t.Errorf("CallbackPeriod = %v, want 20ms", cfg.CallbackPeriod)
	}
	if cfg.Port != 8080 || cfg.SerialBaud != 9600 {
		t.Errorf("port/baud = %d/%d, want 8080/9600 (unchanged)", cfg.Port, cfg.SerialBaud)
	}
	if cfg.SerialPort != "/dev/ttyACM0" {
		t.Errorf("SerialPort = %q", cfg.SerialPort)
	}
	if cfg.Console {
		t.Error("Console still enabled")
	}
	if !cfg.WatchMetadata {
		t.Error("WatchMetadata disabled without --no-watch")
	}
}

func TestRunParamsPort(t *testing.T) {
	for _, tt := range []struct {
		flag, env, want int
	}{
		{0, 8080, 8080},
		{9000, 8080, 9000},
		{-1, 8080, 0},
	} {
		cfg := config.Config{Port: tt.env}
		p := RunParams{Port: tt.flag}
		p.apply(&cfg)
		if cfg.Port != tt.want {
			t.Errorf("--port %d over %d: Port = %d, want %d", tt.flag, tt.env, cfg.Port, tt.want)
		}
	}
}

func writeWav(t *testing.T, path string, frames int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	enc := wav.NewEncoder(f, 48000, 16, 2, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 2, SampleRate: 48000},
		Data:           make([]int, frames*2),
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProbe(t *testing.T) {
	dir := t.TempDir()
	track := filepath.Join(dir, "intro.wav")
	writeWav(t, track, 96000)
	if err := os.WriteFile(filepath.Join(dir, "intro.txt"), []byte("bpm 124\nfirst_beat 0.25\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if !probe([]string{track}, &out) {
		t.Fatal("probe reported a failure")
	}
	for _, want := range []string{"intro.wav", "96000", "2.00s", "124.00", "0.250s"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("probe output missing %q:\n%s", want, out.String())
		}
	}
}

func TestProbeMissingFile(t *testing.T) {
	var out bytes.Buffer
	if probe([]string{filepath.Join(t.TempDir(), "nope.wav")}, &out) {
		t.Error("probe succeeded on a missing file")
	}
}
