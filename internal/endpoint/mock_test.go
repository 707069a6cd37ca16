// ABOUTME: Sanity tests for the Mock adapter used throughout render/engine tests
package endpoint

import (
	"errors"
	"testing"

	"github.com/tfhammond/tomplayer/internal/format"
)

var (
	_ Adapter = (*Mock)(nil)
	_ Adapter = (*Malgo)(nil)
	_ Adapter = (*Oto)(nil)
)

func TestMockInitializeReturnsBufferFrames(t *testing.T) {
	m := NewMock(256, 2, 64)
	n, err := m.Initialize(true, format.EndpointFormat{Sample: format.Float32, Channels: 2, SampleRate: 48000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 256 {
		t.Fatalf("expected 256, got %d", n)
	}
}

func TestMockGetReleaseRoundTrip(t *testing.T) {
	m := NewMock(256, 2, 64)
	region, err := m.GetBuffer(10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(region) != 20 {
		t.Fatalf("expected region of 20 samples, got %d", len(region))
	}
	if err := m.ReleaseBuffer(10, FlagsNone); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	frames, flags := m.LastRelease()
	if frames != 10 || flags != FlagsNone {
		t.Fatalf("expected (10, none), got (%d, %v)", frames, flags)
	}
}

func TestMockFailInjection(t *testing.T) {
	m := NewMock(256, 2, 64)
	injected := errors.New("boom")
	m.FailGetBuffer(injected)
	if _, err := m.GetBuffer(10); !errors.Is(err, injected) {
		t.Fatalf("expected injected error, got %v", err)
	}
	// Failure is one-shot: the next call should succeed.
	if _, err := m.GetBuffer(10); err != nil {
		t.Fatalf("expected no error on second call, got %v", err)
	}
}

func TestMockPaddingDrainsOnTick(t *testing.T) {
	m := NewMock(256, 1, 64)
	m.ReleaseBuffer(200, FlagsNone)
	pad, _ := m.CurrentPadding()
	if pad != 200 {
		t.Fatalf("expected padding 200, got %d", pad)
	}
	m.Tick()
	pad, _ = m.CurrentPadding()
	if pad != 136 {
		t.Fatalf("expected padding 136 after one tick, got %d", pad)
	}
}
