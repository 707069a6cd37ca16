// ABOUTME: FLAC frame source via mewkiz/flac
// ABOUTME: Decodes frame-by-frame, de-planarizing subframes into interleaved float32
package source

import (
	"fmt"
	"io"

	"github.com/mewkiz/flac"
	flacframe "github.com/mewkiz/flac/frame"
)

// Flac decodes a FLAC stream into interleaved float32 frames, scaling
// each channel's integer samples by its bit depth the way the
// reference decoders scale fixed-point PCM to the render path's float
// convention.
type Flac struct {
	stream *flac.Stream

	scale    float64
	pending  *flacframe.Frame
	pendingI int
}

// NewFlac opens a seekable FLAC stream.
func NewFlac(r io.ReadSeeker) (*Flac, error) {
	stream, err := flac.NewSeek(r)
	if err != nil {
		return nil, fmt.Errorf("source: open flac: %w", err)
	}
	bits := stream.Info.BitsPerSample
	if bits == 0 {
		bits = 16
	}
	return &Flac{
		stream: stream,
		scale:  float64(int64(1) << (bits - 1)),
	}, nil
}

func (s *Flac) SampleRate() int { return int(s.stream.Info.SampleRate) }

func (s *Flac) Channels() int { return int(s.stream.Info.NChannels) }

func (s *Flac) Seek(frame int64) error {
	if frame < 0 {
		frame = 0
	}
	_, err := s.stream.Seek(uint64(frame))
	s.pending = nil
	s.pendingI = 0
	return err
}

func (s *Flac) Fill(dst []float32) (int, bool, error) {
	channels := s.Channels()
	want := len(dst) / channels
	produced := 0

	for produced < want {
		if s.pending == nil || s.pendingI >= int(s.pending.BlockSize) {
			fr, err := s.stream.ParseNext()
			if err == io.EOF {
				return produced, true, nil
			}
			if err != nil {
				return produced, false, fmt.Errorf("source: flac decode: %w", err)
			}
			s.pending = fr
			s.pendingI = 0
		}

		for s.pendingI < int(s.pending.BlockSize) && produced < want {
			for c := 0; c < channels && c < len(s.pending.Subframes); c++ {
				sample := s.pending.Subframes[c].Samples[s.pendingI]
				dst[produced*channels+c] = float32(float64(sample) / s.scale)
			}
			s.pendingI++
			produced++
		}
	}

	return produced, false, nil
}

func (s *Flac) Close() error { return s.stream.Close() }
