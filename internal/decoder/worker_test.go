// ABOUTME: Tests for the decoder worker's mode handling, epoch adoption, and pacing
package decoder

import (
	"sync"
	"testing"
	"time"

	"github.com/tfhammond/tomplayer/internal/control"
	"github.com/tfhammond/tomplayer/internal/ring"
)

// fakeSource produces a deterministic ramp and records every Seek
// call, to verify epoch-triggered repositioning.
type fakeSource struct {
	mu       sync.Mutex
	channels int
	cursor   int64
	length   int64 // -1 == infinite
	seeks    []int64
	closed   bool
}

func newFakeSource(channels int, length int64) *fakeSource {
	return &fakeSource{channels: channels, length: length}
}

func (f *fakeSource) Channels() int { return f.channels }

func (f *fakeSource) Seek(frame int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeks = append(f.seeks, frame)
	f.cursor = frame
	return nil
}

func (f *fakeSource) Fill(dst []float32) (int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	frames := len(dst) / f.channels
	if f.length >= 0 && f.cursor >= f.length {
		return 0, true, nil
	}
	if f.length >= 0 && f.cursor+int64(frames) > f.length {
		frames = int(f.length - f.cursor)
	}
	for i := 0; i < frames*f.channels; i++ {
		dst[i] = float32(f.cursor) + float32(i)
	}
	f.cursor += int64(frames)

	eof := f.length >= 0 && f.cursor >= f.length
	return frames, eof, nil
}

func (f *fakeSource) Close() error {
	f.closed = true
	return nil
}

func (f *fakeSource) Seeks() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.seeks...)
}

func TestWorkerIdleWhenStopped(t *testing.T) {
	dc := control.NewDecodeControl()
	src := newFakeSource(1, -1)
	dst := ring.New(4096, 1)
	w := New(dc, src, dst, 48000)

	go w.Run()
	defer func() {
		dc.SetMode(control.Quit)
		<-w.Done()
	}()

	w.WaitForIdle() // Stopped is the default mode; should report idle quickly
}

func TestWorkerProducesWhileRunning(t *testing.T) {
	dc := control.NewDecodeControl()
	src := newFakeSource(1, -1)
	dst := ring.New(1 << 16, 1)
	w := New(dc, src, dst, 48000)

	go w.Run()
	defer func() {
		dc.SetMode(control.Quit)
		<-w.Done()
	}()

	dc.SetMode(control.Running)

	deadline := time.After(2 * time.Second)
	for w.ProducedFrames() == 0 {
		select {
		case <-deadline:
			t.Fatal("expected decoder to produce frames while Running")
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestWorkerAdoptsEpochAndSeeksAtNextTick(t *testing.T) {
	dc := control.NewDecodeControl()
	src := newFakeSource(1, -1)
	dst := ring.New(1 << 16, 1)
	w := New(dc, src, dst, 48000)

	go w.Run()
	defer func() {
		dc.SetMode(control.Quit)
		<-w.Done()
	}()

	dc.SetTargetFrame(48000)
	dc.BumpEpoch()
	dc.SetMode(control.Running)

	deadline := time.After(2 * time.Second)
	for len(src.Seeks()) == 0 {
		select {
		case <-deadline:
			t.Fatal("expected a seek to the new target frame")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	seeks := src.Seeks()
	if seeks[0] != 48000 {
		t.Fatalf("expected seek to 48000, got %d", seeks[0])
	}
	// TargetFrame is the engine's persistent record of the last seek
	// (read back by Status), not a handshake flag the decoder clears.
	if dc.TargetFrame() != 48000 {
		t.Fatalf("expected target frame to remain 48000 after adoption, got %d", dc.TargetFrame())
	}
}

func TestWorkerQuitExitsPromptly(t *testing.T) {
	dc := control.NewDecodeControl()
	src := newFakeSource(1, -1)
	dst := ring.New(4096, 1)
	w := New(dc, src, dst, 48000)

	go w.Run()
	dc.SetMode(control.Quit)

	select {
	case <-w.Done():
	case <-time.After(time.Second):
		t.Fatal("decoder worker did not exit within 1s of Quit")
	}
}

func TestWorkerShortWriteDropsFramesWithoutError(t *testing.T) {
	dc := control.NewDecodeControl()
	src := newFakeSource(1, -1)
	dst := ring.New(512, 1) // smaller than one chunk, forces overrun
	w := New(dc, src, dst, 48000)

	go w.Run()
	defer func() {
		dc.SetMode(control.Quit)
		<-w.Done()
	}()

	dc.SetMode(control.Running)

	deadline := time.After(2 * time.Second)
	for w.DroppedFrames() == 0 {
		select {
		case <-deadline:
			t.Fatal("expected dropped frames once the ring overruns")
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestWorkerSourceExhaustedSetsFlag(t *testing.T) {
	dc := control.NewDecodeControl()
	src := newFakeSource(1, 100) // exhausts after 100 frames
	dst := ring.New(1 << 16, 1)
	w := New(dc, src, dst, 48000)

	go w.Run()
	defer func() {
		dc.SetMode(control.Quit)
		<-w.Done()
	}()

	dc.SetMode(control.Running)

	deadline := time.After(2 * time.Second)
	for !dc.SourceExhausted() {
		select {
		case <-deadline:
			t.Fatal("expected source-exhausted flag to be set")
		default:
			time.Sleep(time.Millisecond)
		}
	}
}
