package audio

import "time"

const (
	SampleRate = 48000
	Channels   = 2
	BitDepth   = 16

	// Network stream framing (Opus/MP3 listeners).
	FrameDuration = 20 * time.Millisecond
	FrameSize     = 960                  // samples per channel per 20ms frame
	FrameSamples  = FrameSize * Channels // total interleaved samples per frame
	FrameBytes    = FrameSamples * 2     // bytes per frame (int16 = 2 bytes)
)

// FramesPer returns the number of frames that fit in d at the engine rate.
func FramesPer(d time.Duration) int {
	return int(int64(SampleRate) * int64(d) / int64(time.Second))
}

// SecondsToFrames converts a position in seconds to an engine frame index.
func SecondsToFrames(seconds float64) uint32 {
	if seconds <= 0 {
		return 0
	}
	return uint32(seconds * SampleRate)
}

// FramesToSeconds converts an engine frame position to seconds.
func FramesToSeconds(frames float64) float64 {
	return frames / SampleRate
}
