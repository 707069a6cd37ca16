// ABOUTME: Sine wave test tone frame source
// ABOUTME: Grounded on the reference server's 440Hz test tone generator, extended to arbitrary frequency/duration
package source

import (
	"math"
	"sync"
)

// Sine is a FrameSource that generates a continuous tone at a fixed
// frequency. Seek is exact since the waveform is computed directly
// from the sample index, with no decode state to discard.
type Sine struct {
	mu        sync.Mutex
	sampleIdx int64

	sampleRate int
	channels   int
	frequency  float64
	amplitude  float64

	// durationFrames is the tone's length in frames, or -1 for an
	// endless tone (the common case for smoke-testing the engine).
	durationFrames int64
}

// NewSine constructs a tone generator. amplitude is clamped to [0,1].
// durationSeconds <= 0 means the tone never reports eof.
func NewSine(sampleRate, channels int, frequencyHz, amplitude, durationSeconds float64) *Sine {
	if amplitude < 0 {
		amplitude = 0
	}
	if amplitude > 1 {
		amplitude = 1
	}
	durationFrames := int64(-1)
	if durationSeconds > 0 {
		durationFrames = int64(durationSeconds * float64(sampleRate))
	}
	return &Sine{
		sampleRate:     sampleRate,
		channels:       channels,
		frequency:      frequencyHz,
		amplitude:      amplitude,
		durationFrames: durationFrames,
	}
}

func (s *Sine) Channels() int { return s.channels }

func (s *Sine) Seek(frame int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if frame < 0 {
		frame = 0
	}
	s.sampleIdx = frame
	return nil
}

func (s *Sine) Fill(dst []float32) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frames := len(dst) / s.channels
	if s.durationFrames >= 0 {
		remaining := s.durationFrames - s.sampleIdx
		if remaining <= 0 {
			return 0, true, nil
		}
		if int64(frames) > remaining {
			frames = int(remaining)
		}
	}

	for i := 0; i < frames; i++ {
		t := float64(s.sampleIdx+int64(i)) / float64(s.sampleRate)
		v := float32(math.Sin(2*math.Pi*s.frequency*t) * s.amplitude)
		for c := 0; c < s.channels; c++ {
			dst[i*s.channels+c] = v
		}
	}
	s.sampleIdx += int64(frames)

	eof := s.durationFrames >= 0 && s.sampleIdx >= s.durationFrames
	return frames, eof, nil
}

func (s *Sine) Close() error { return nil }
