// ABOUTME: Opus frame source via hraban/opus
// ABOUTME: Operates on a pre-demuxed packet sequence; Ogg container parsing is a caller concern
package source

import (
	"fmt"
	"io"

	"gopkg.in/hraban/opus.v2"
)

// PacketReader supplies Opus packets in stream order, e.g. an Ogg
// demuxer's payload stream. This package stays below that layer: it
// decodes packets it is handed, and never parses a container.
type PacketReader interface {
	NextPacket() ([]byte, error) // io.EOF when exhausted
}

// Opus decodes a packet-at-a-time Opus stream into interleaved
// float32 frames.
type Opus struct {
	dec      *opus.Decoder
	packets  PacketReader
	channels int

	scratch  []float32
	pending  []float32
	pendingN int
}

// NewOpus constructs a decoder at sampleRate/channels, consuming
// packets from packets. Seek does not reposition the packet stream;
// see Seek.
func NewOpus(sampleRate, channels int, packets PacketReader) (*Opus, error) {
	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("source: new opus decoder: %w", err)
	}
	return &Opus{
		dec:      dec,
		packets:  packets,
		channels: channels,
		scratch:  make([]float32, 5760*channels), // largest Opus frame: 120ms at 48kHz
	}, nil
}

func (s *Opus) Channels() int { return s.channels }

// Seek discards any decoded samples still pending from the current
// packet and otherwise does nothing: Opus packets carry no frame index
// of their own, so repositioning requires a container-aware
// PacketReader that seeks its underlying stream before the next
// NextPacket call.
func (s *Opus) Seek(frame int64) error {
	s.pending = nil
	s.pendingN = 0
	return nil
}

func (s *Opus) Fill(dst []float32) (int, bool, error) {
	channels := s.channels
	want := len(dst) / channels
	produced := 0

	for produced < want {
		if s.pendingN == 0 {
			pkt, err := s.packets.NextPacket()
			if err == io.EOF {
				return produced, true, nil
			}
			if err != nil {
				return produced, false, fmt.Errorf("source: read opus packet: %w", err)
			}
			n, err := s.dec.DecodeFloat32(pkt, s.scratch)
			if err != nil {
				return produced, false, fmt.Errorf("source: opus decode: %w", err)
			}
			s.pending = s.scratch[:n*channels]
			s.pendingN = n
		}

		take := s.pendingN
		if take > want-produced {
			take = want - produced
		}
		copy(dst[produced*channels:(produced+take)*channels], s.pending[:take*channels])

		s.pending = s.pending[take*channels:]
		s.pendingN -= take
		produced += take
	}

	return produced, false, nil
}

func (s *Opus) Close() error { return nil }
