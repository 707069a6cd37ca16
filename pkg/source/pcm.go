// ABOUTME: Raw interleaved PCM frame sources
// ABOUTME: Float32 passthrough and int16 upconversion, grounded on the reference decoder's bit-depth conversions
package source

import (
	"encoding/binary"
	"fmt"
	"io"
)

// RawFloat32 reads raw little-endian interleaved float32 PCM straight
// off an io.ReadSeeker: the device's own frame format, so Fill is a
// direct byte copy with no sample conversion.
type RawFloat32 struct {
	r        io.ReadSeeker
	channels int
	scratch  []byte
}

// NewRawFloat32 wraps r as a frame source of channels-channel
// interleaved float32 samples.
func NewRawFloat32(r io.ReadSeeker, channels int) *RawFloat32 {
	return &RawFloat32{r: r, channels: channels}
}

func (s *RawFloat32) Channels() int { return s.channels }

func (s *RawFloat32) Seek(frame int64) error {
	_, err := s.r.Seek(frame*int64(s.channels)*4, io.SeekStart)
	return err
}

func (s *RawFloat32) Fill(dst []float32) (int, bool, error) {
	need := len(dst) * 4
	if cap(s.scratch) < need {
		s.scratch = make([]byte, need)
	}
	buf := s.scratch[:need]

	n, err := io.ReadFull(s.r, buf)
	frames := (n / 4) / s.channels
	usable := frames * s.channels * 4

	for i := 0; i < usable/4; i++ {
		bits := binary.LittleEndian.Uint32(buf[i*4 : i*4+4])
		dst[i] = float32FromBits(bits)
	}

	eof := err == io.EOF || err == io.ErrUnexpectedEOF
	if err != nil && !eof {
		return frames, false, fmt.Errorf("source: raw float32 read: %w", err)
	}
	return frames, eof, nil
}

func (s *RawFloat32) Close() error { return nil }

// RawInt16 reads raw little-endian interleaved signed 16-bit PCM and
// up-converts each sample to float32 in [-1,1], the mirror of the
// render worker's clamp-and-scale on the way out.
type RawInt16 struct {
	r        io.ReadSeeker
	channels int
	scratch  []byte
}

// NewRawInt16 wraps r as a frame source of channels-channel
// interleaved int16 samples.
func NewRawInt16(r io.ReadSeeker, channels int) *RawInt16 {
	return &RawInt16{r: r, channels: channels}
}

func (s *RawInt16) Channels() int { return s.channels }

func (s *RawInt16) Seek(frame int64) error {
	_, err := s.r.Seek(frame*int64(s.channels)*2, io.SeekStart)
	return err
}

func (s *RawInt16) Fill(dst []float32) (int, bool, error) {
	need := len(dst) * 2
	if cap(s.scratch) < need {
		s.scratch = make([]byte, need)
	}
	buf := s.scratch[:need]

	n, err := io.ReadFull(s.r, buf)
	frames := (n / 2) / s.channels
	usable := frames * s.channels * 2

	for i := 0; i < usable/2; i++ {
		v := int16(binary.LittleEndian.Uint16(buf[i*2 : i*2+2]))
		dst[i] = float32(v) / 32768.0
	}

	eof := err == io.EOF || err == io.ErrUnexpectedEOF
	if err != nil && !eof {
		return frames, false, fmt.Errorf("source: raw int16 read: %w", err)
	}
	return frames, eof, nil
}

func (s *RawInt16) Close() error { return nil }
