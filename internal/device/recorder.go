package device

import (
	"fmt"
	"log"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"

	"github.com/satindergrewal/djdeck/internal/audio"
)

// Recorder writes every block to a 16-bit stereo WAV file.
type Recorder struct {
	id     string
	path   string
	f      *os.File
	enc    *wav.Encoder
	buf    *goaudio.IntBuffer
	frames int
}

func NewRecorder(path string) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create recording: %w", err)
	}
	r := &Recorder{
		id:   uuid.NewString(),
		path: path,
		f:    f,
		enc:  wav.NewEncoder(f, audio.SampleRate, 16, audio.Channels, 1),
		buf: &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: audio.Channels, SampleRate: audio.SampleRate},
			SourceBitDepth: 16,
		},
	}
	log.Printf("Recording session %s to %s", r.id, path)
	return r, nil
}

// ID identifies the recording session in logs.
func (r *Recorder) ID() string { return r.id }

func (r *Recorder) WriteBlock(block []float32) error {
	r.buf.Data = r.buf.Data[:0]
	for _, s := range block {
		r.buf.Data = append(r.buf.Data, int(audio.FloatToInt16(s)))
	}
	if err := r.enc.Write(r.buf); err != nil {
		return fmt.Errorf("write recording: %w", err)
	}
	r.frames += len(block) / audio.Channels
	return nil
}

// Close finalizes the WAV header and closes the file.
func (r *Recorder) Close() error {
	encErr := r.enc.Close()
	fileErr := r.f.Close()
	log.Printf("Recording session %s closed: %s (%.1fs)", r.id, r.path, audio.FramesToSeconds(float64(r.frames)))
	if encErr != nil {
		return fmt.Errorf("finalize recording: %w", encErr)
	}
	return fileErr
}
