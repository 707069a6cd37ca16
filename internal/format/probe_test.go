// ABOUTME: Tests for mix format classification and format selection
package format

import "testing"

func TestClassifyFloat32(t *testing.T) {
	got := Classify(MixDescriptor{IsIEEEFloat: true, BitsPerSample: 32})
	if got != Float32 {
		t.Fatalf("expected Float32, got %v", got)
	}
}

func TestClassifyPcm16(t *testing.T) {
	got := Classify(MixDescriptor{IsLinearPCM: true, BitsPerSample: 16})
	if got != Pcm16 {
		t.Fatalf("expected Pcm16, got %v", got)
	}
}

func TestClassifyExtensibleUnwrapsSubformat(t *testing.T) {
	got := Classify(MixDescriptor{
		IsExtensible:     true,
		SubIsIEEEFloat:   true,
		SubBitsPerSample: 32,
		// Outer tag fields intentionally left false to prove the
		// subformat is what's inspected.
	})
	if got != Float32 {
		t.Fatalf("expected Float32 from extensible subformat, got %v", got)
	}
}

func TestClassifyUnsupported(t *testing.T) {
	cases := []MixDescriptor{
		{IsIEEEFloat: true, BitsPerSample: 64},
		{IsLinearPCM: true, BitsPerSample: 24},
		{},
	}
	for _, c := range cases {
		if got := Classify(c); got != Unsupported {
			t.Fatalf("expected Unsupported for %+v, got %v", c, got)
		}
	}
}

type fakeSupporter struct {
	exact EndpointFormat
	ok    bool
	err   error
}

func (f fakeSupporter) IsFormatSupported(EndpointFormat) (EndpointFormat, bool, error) {
	return f.exact, f.ok, f.err
}

func TestSelectFloat32SharedModeExactMatch(t *testing.T) {
	want := EndpointFormat{SampleRate: 48000, Channels: 2, BitsPerSample: 32, BlockAlign: 8, Sample: Float32}
	got, err := SelectFloat32SharedMode(48000, 2, 0, fakeSupporter{exact: want, ok: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestSelectFloat32SharedModeRejected(t *testing.T) {
	_, err := SelectFloat32SharedMode(48000, 2, 0, fakeSupporter{ok: false})
	if err == nil {
		t.Fatal("expected error when endpoint rejects format")
	}
}
