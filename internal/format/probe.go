// ABOUTME: Endpoint mix format classification and float32 format selection
// ABOUTME: Classifies a native mix descriptor and negotiates a shared-mode render format
package format

import "fmt"

// SampleFormat is the classification of a render endpoint's samples.
type SampleFormat int

const (
	Unsupported SampleFormat = iota
	Float32
	Pcm16
)

func (f SampleFormat) String() string {
	switch f {
	case Float32:
		return "Float32"
	case Pcm16:
		return "Pcm16"
	default:
		return "Unsupported"
	}
}

// MixDescriptor mirrors the handful of fields a host audio API exposes
// for a device's native mix format, including the WAVE_FORMAT_EXTENSIBLE
// case where the real tag lives in an embedded subformat GUID.
type MixDescriptor struct {
	IsIEEEFloat       bool
	IsLinearPCM       bool
	BitsPerSample     int
	IsExtensible      bool
	SubIsIEEEFloat    bool
	SubIsLinearPCM    bool
	SubBitsPerSample  int
	SampleRate        int
	Channels          int
	ChannelMask       uint32
}

// Classify applies the spec's classification rules in order: extensible
// containers are unwrapped to their embedded subformat before the two
// float/PCM rules are applied; anything else is Unsupported.
func Classify(d MixDescriptor) SampleFormat {
	isFloat, isPCM, bits := d.IsIEEEFloat, d.IsLinearPCM, d.BitsPerSample
	if d.IsExtensible {
		isFloat, isPCM, bits = d.SubIsIEEEFloat, d.SubIsLinearPCM, d.SubBitsPerSample
	}

	switch {
	case isFloat && bits == 32:
		return Float32
	case isPCM && bits == 16:
		return Pcm16
	default:
		return Unsupported
	}
}

// EndpointFormat is the negotiated render format, immutable once set.
type EndpointFormat struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	BlockAlign    int
	Sample        SampleFormat
}

// Supporter is the minimal capability a host endpoint must expose to
// confirm whether a requested format is exactly supported in shared
// mode. Kept as a one-method interface so callers can fake it in tests
// without a real device.
type Supporter interface {
	IsFormatSupported(req EndpointFormat) (exact EndpointFormat, ok bool, err error)
}

// SelectFloat32SharedMode requests a float32 shared-mode format at the
// device's native rate and channel count, and fails initialization
// unless the endpoint confirms an exact match. nativeMask is accepted
// but not forwarded: EndpointFormat has no channel-mask field, so the
// request carries no channel mask.
func SelectFloat32SharedMode(nativeRate, nativeChannels int, nativeMask uint32, s Supporter) (EndpointFormat, error) {
	req := EndpointFormat{
		SampleRate:    nativeRate,
		Channels:      nativeChannels,
		BitsPerSample: 32,
		BlockAlign:    4 * nativeChannels,
		Sample:        Float32,
	}

	exact, ok, err := s.IsFormatSupported(req)
	if err != nil {
		return EndpointFormat{}, fmt.Errorf("format negotiation failed: %w", err)
	}
	if !ok || exact != req {
		return EndpointFormat{}, fmt.Errorf("endpoint did not confirm exact float32 shared-mode format %+v", req)
	}
	return exact, nil
}
