package pcm

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	pbx "github.com/ik5/audpbx/audio"
	"github.com/ik5/audpbx/formats/mp3"
	"github.com/ik5/audpbx/formats/vorbis"

	"github.com/satindergrewal/djdeck/internal/audio"
)

// maxEmptyReads bounds decoders that keep returning (0, nil) at the end of a stream.
const maxEmptyReads = 64

var decoders = newRegistry()

func newRegistry() *pbx.Registry {
	r := pbx.NewRegistry()
	r.Register("mp3", mp3.Decoder{})
	r.Register("ogg", vorbis.Decoder{})
	r.Register("oga", vorbis.Decoder{})
	r.Register("wav", wavDecoder{})
	return r
}

// Open decodes the file at path into memory and returns a Buffer exposing
// windowFrames frames per refill. wav, mp3 and ogg are decoded natively;
// anything else goes through ffmpeg.
func Open(path string, windowFrames int) (*Buffer, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	samples, err := Decode(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFormat, filepath.Base(path), err)
	}
	if len(samples) < 2*audio.Channels {
		return nil, fmt.Errorf("%w: %s: no audio frames", ErrFormat, filepath.Base(path))
	}
	return NewBuffer(filepath.Base(path), samples, windowFrames), nil
}

// Decode returns the whole file as interleaved stereo float32 at the engine rate.
func Decode(path string) ([]float32, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if dec, ok := decoders.Get(ext); ok {
		samples, err := decodeWith(dec, path)
		if err == nil {
			return samples, nil
		}
		log.Printf("Native %s decode of %s failed (%v), trying ffmpeg", ext, filepath.Base(path), err)
	}
	return audio.DecodeFile(path)
}

func decodeWith(dec pbx.Decoder, path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, err := dec.Decode(f)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return readAll(src)
}

// readAll drains src, resampling to the engine rate and folding the channel
// layout to stereo: mono is duplicated, extra channels are dropped.
func readAll(src pbx.Source) ([]float32, error) {
	var s pbx.Source = src
	if src.SampleRate() != audio.SampleRate {
		s = pbx.NewResampler(src, audio.SampleRate)
	}
	ch := s.Channels()
	if ch < 1 {
		return nil, fmt.Errorf("invalid channel count %d", ch)
	}

	buf := make([]float32, 4096*ch)
	out := make([]float32, 0, 1<<20)
	empty := 0
	for {
		n, err := s.ReadSamples(buf)
		n -= n % ch
		out = appendStereo(out, buf[:n], ch)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if n == 0 {
			empty++
			if empty >= maxEmptyReads {
				break
			}
			continue
		}
		empty = 0
	}
	return out, nil
}

func appendStereo(dst, src []float32, ch int) []float32 {
	if ch == audio.Channels {
		return append(dst, src...)
	}
	for i := 0; i+ch <= len(src); i += ch {
		l := src[i]
		r := l
		if ch > 1 {
			r = src[i+1]
		}
		dst = append(dst, l, r)
	}
	return dst
}

// wavDecoder reads any PCM bit depth go-audio/wav understands.
type wavDecoder struct{}

func (wavDecoder) Decode(r io.Reader) (pbx.Source, error) {
	rs, ok := r.(io.ReadSeeker)
	if !ok {
		return nil, errors.New("wav decoding needs a seekable reader")
	}
	d := wav.NewDecoder(rs)
	if !d.IsValidFile() {
		return nil, errors.New("not a valid wav file")
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, err
	}
	depth := int(d.SampleBitDepth())
	if depth == 0 {
		depth = buf.SourceBitDepth
	}
	if depth == 0 {
		return nil, errors.New("unknown wav bit depth")
	}
	return newIntSource(buf, depth), nil
}

// intSource serves a decoded go-audio IntBuffer as float32 samples.
type intSource struct {
	buf   *goaudio.IntBuffer
	scale float32
	pos   int
}

func newIntSource(buf *goaudio.IntBuffer, depth int) *intSource {
	return &intSource{buf: buf, scale: float32(1 / math.Pow(2, float64(depth-1)))}
}

func (s *intSource) SampleRate() int { return s.buf.Format.SampleRate }
func (s *intSource) Channels() int   { return s.buf.Format.NumChannels }
func (s *intSource) BufSize() int    { return 4096 }
func (s *intSource) Close() error    { return nil }

func (s *intSource) ReadSamples(dst []float32) (int, error) {
	if s.pos >= len(s.buf.Data) {
		return 0, io.EOF
	}
	n := min(len(dst), len(s.buf.Data)-s.pos)
	for i := range n {
		dst[i] = float32(s.buf.Data[s.pos+i]) * s.scale
	}
	s.pos += n
	return n, nil
}
