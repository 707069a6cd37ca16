// ABOUTME: MP3 frame source via hajimehoshi/go-mp3
// ABOUTME: go-mp3 decodes to stereo 16-bit PCM regardless of the source file's own channel count
package source

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
)

// Mp3 decodes an MP3 stream into interleaved float32 frames. go-mp3
// always produces 16-bit stereo PCM internally, so Channels is fixed
// at 2 regardless of the source encoding.
type Mp3 struct {
	dec     *mp3.Decoder
	scratch []byte
}

// NewMp3 constructs a decoder over r, which must also support Seek:
// go-mp3's Decoder seeks in decoded-PCM byte space, which this source
// translates from frame indices.
func NewMp3(r io.ReadSeeker) (*Mp3, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("source: open mp3: %w", err)
	}
	return &Mp3{dec: dec}, nil
}

// SampleRate reports the stream's native sample rate, for sizing the
// engine's ring buffer and negotiating the endpoint format.
func (s *Mp3) SampleRate() int { return s.dec.SampleRate() }

func (s *Mp3) Channels() int { return 2 }

func (s *Mp3) Seek(frame int64) error {
	byteOffset := frame * 2 * 2 // 2 channels, 2 bytes per int16 sample
	_, err := s.dec.Seek(byteOffset, io.SeekStart)
	return err
}

func (s *Mp3) Fill(dst []float32) (int, bool, error) {
	need := len(dst) * 2 // int16 bytes per float32 slot
	if cap(s.scratch) < need {
		s.scratch = make([]byte, need)
	}
	buf := s.scratch[:need]

	n, err := io.ReadFull(s.dec, buf)
	frames := (n / 2) / 2
	usable := frames * 2 * 2

	for i := 0; i < usable/2; i++ {
		v := int16(binary.LittleEndian.Uint16(buf[i*2 : i*2+2]))
		dst[i] = float32(v) / 32768.0
	}

	eof := err == io.EOF || err == io.ErrUnexpectedEOF
	if err != nil && !eof {
		return frames, false, fmt.Errorf("source: mp3 decode: %w", err)
	}
	return frames, eof, nil
}

func (s *Mp3) Close() error { return nil }
