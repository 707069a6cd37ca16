// ABOUTME: Tests for the render worker's per-cycle contract
package render

import (
	"testing"
	"time"

	"github.com/tfhammond/tomplayer/internal/endpoint"
	"github.com/tfhammond/tomplayer/internal/format"
	"github.com/tfhammond/tomplayer/internal/ring"
)

func newMockWithInit(t *testing.T, bufferFrames, channels, drainPerTick int, sample format.SampleFormat) *endpoint.Mock {
	t.Helper()
	m := endpoint.NewMock(bufferFrames, channels, drainPerTick)
	if _, err := m.Initialize(true, format.EndpointFormat{Sample: sample, Channels: channels, SampleRate: 48000}); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return m
}

func TestRenderCycleFloat32ProducesFramesAndReleasesNonSilent(t *testing.T) {
	ep := newMockWithInit(t, 8, 1, 0, format.Float32)
	r := ring.New(16, 1)

	src := make([]float32, 6)
	for i := range src {
		src[i] = 0.25
	}
	r.Write(src, 6)

	w := New(ep, r, format.Float32, 1, 8)
	w.renderCycle()

	frames, flags := ep.LastRelease()
	if frames != 8 {
		t.Fatalf("expected release(8), got release(%d)", frames)
	}
	if flags != endpoint.FlagsNone {
		t.Fatalf("expected flags=none, got %v", flags)
	}

	region, _ := ep.GetBuffer(8)
	_ = region // region reused; verify via rendered count instead
	if w.RenderedFrames() != 8 {
		t.Fatalf("expected 8 rendered frames, got %d", w.RenderedFrames())
	}
}

func TestRenderCycleUnderrunZeroFillsTail(t *testing.T) {
	ep := newMockWithInit(t, 8, 1, 0, format.Float32)
	r := ring.New(16, 1)
	r.Write([]float32{0.25, 0.25, 0.25, 0.25, 0.25, 0.25}, 6)

	w := New(ep, r, format.Float32, 1, 8)

	region, _ := ep.GetBuffer(8)
	for i := range region {
		region[i] = 9 // stale data the cycle must overwrite
	}
	w.renderCycle()

	for i := 6; i < 8; i++ {
		if region[i] != 0 {
			t.Fatalf("sample %d: expected zero-filled tail, got %v", i, region[i])
		}
	}
	stats := w.Stats()
	if stats.UnderrunWakes != 1 {
		t.Fatalf("expected 1 underrun wake, got %d", stats.UnderrunWakes)
	}
	if stats.UnderrunFrames != 2 {
		t.Fatalf("expected 2 underrun frames, got %d", stats.UnderrunFrames)
	}
}

func TestRenderCyclePcm16Conversion(t *testing.T) {
	ep := newMockWithInit(t, 4, 1, 0, format.Pcm16)
	r := ring.New(16, 1)
	src := []float32{0.5, 0.5, 0.5, 0.5}
	r.Write(src, 4)

	w := New(ep, r, format.Pcm16, 1, 4)
	w.renderCycle()

	frames, flags := ep.LastRelease()
	if frames != 4 || flags != endpoint.FlagsNone {
		t.Fatalf("expected release(4, none), got release(%d, %v)", frames, flags)
	}
	for i := 0; i < 4; i++ {
		if w.pcmScratch[i] != 16383 {
			t.Fatalf("sample %d: expected 16383, got %d", i, w.pcmScratch[i])
		}
	}
}

func TestRenderCyclePcm16Clamping(t *testing.T) {
	ep := newMockWithInit(t, 2, 1, 0, format.Pcm16)
	r := ring.New(16, 1)
	r.Write([]float32{2.0, -2.0}, 2)

	w := New(ep, r, format.Pcm16, 1, 2)
	w.renderCycle()

	if w.pcmScratch[0] != 32767 {
		t.Fatalf("expected saturation at 32767, got %d", w.pcmScratch[0])
	}
	if w.pcmScratch[1] != -32767 {
		t.Fatalf("expected saturation at -32767, got %d", w.pcmScratch[1])
	}
}

func TestRenderCycleNoDataReleasesSilent(t *testing.T) {
	ep := newMockWithInit(t, 8, 1, 0, format.Float32)
	r := ring.New(16, 1) // empty

	w := New(ep, r, format.Float32, 1, 8)
	w.renderCycle()

	frames, flags := ep.LastRelease()
	if frames != 8 {
		t.Fatalf("expected release(8), got release(%d)", frames)
	}
	if flags != endpoint.FlagsSilent {
		t.Fatalf("expected silent flag, got %v", flags)
	}
}

func TestRenderCyclePaddingAtOrAboveBufferIsNoop(t *testing.T) {
	ep := newMockWithInit(t, 8, 1, 8, format.Float32)
	ep.ReleaseBuffer(8, endpoint.FlagsNone) // fill padding to the buffer size

	r := ring.New(16, 1)
	r.Write([]float32{0.1}, 1)

	w := New(ep, r, format.Float32, 1, 8)
	w.renderCycle()

	if releases, _ := ep.Stats(); releases != 1 {
		t.Fatalf("expected no additional release when padding >= buffer, got %d total releases", releases)
	}
}

func TestRunExitsOnStop(t *testing.T) {
	ep := newMockWithInit(t, 8, 1, 0, format.Float32)
	r := ring.New(16, 1)
	w := New(ep, r, format.Float32, 1, 8)

	done := make(chan struct{})
	go func() {
		w.Run()
		close(done)
	}()

	w.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("render worker did not exit within 1s of Stop")
	}
}

func TestRunRendersOnEventTicks(t *testing.T) {
	ep := newMockWithInit(t, 8, 1, 0, format.Float32)
	r := ring.New(32, 1)
	src := make([]float32, 8)
	for i := range src {
		src[i] = 0.1
	}
	r.Write(src, 8)

	w := New(ep, r, format.Float32, 1, 8)
	go w.Run()

	ep.Tick()

	deadline := time.After(time.Second)
	for w.RenderedFrames() == 0 {
		select {
		case <-deadline:
			t.Fatal("expected a render cycle after a tick")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	w.Stop()
}
