// ABOUTME: Tests for the engine's command-driven state machine
package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/tfhammond/tomplayer/internal/control"
	"github.com/tfhammond/tomplayer/internal/endpoint"
	"github.com/tfhammond/tomplayer/internal/format"
)

// fakeSource produces an endless constant signal (every sample 0.1),
// so the engine's priming logic always has something to wait for.
type fakeSource struct {
	mu       sync.Mutex
	channels int
	cursor   int64
	seeks    []int64
}

func newFakeSource(channels int) *fakeSource { return &fakeSource{channels: channels} }

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
	for i := range dst {
		dst[i] = 0.1
	}
	f.cursor += int64(frames)
	return frames, false, nil
}

func (f *fakeSource) Close() error { return nil }

// finiteSource produces exactly length frames and then reports eof
// forever, for exercising the Finished transition.
type finiteSource struct {
	mu       sync.Mutex
	channels int
	cursor   int64
	length   int64
}

func newFiniteSource(channels int, length int64) *finiteSource {
	return &finiteSource{channels: channels, length: length}
}

func (f *finiteSource) Channels() int { return f.channels }

func (f *finiteSource) Seek(frame int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cursor = frame
	return nil
}

func (f *finiteSource) Fill(dst []float32) (int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	frames := len(dst) / f.channels
	remaining := f.length - f.cursor
	if remaining <= 0 {
		return 0, true, nil
	}
	if int64(frames) > remaining {
		frames = int(remaining)
	}
	for i := 0; i < frames*f.channels; i++ {
		dst[i] = 0.1
	}
	f.cursor += int64(frames)
	return frames, f.cursor >= f.length, nil
}

func (f *finiteSource) Close() error { return nil }

func newTestEngine(t *testing.T) (*Engine, *endpoint.Mock) {
	t.Helper()
	ep := endpoint.NewMock(480, 1, 0)
	cfg := Config{
		SampleRate: 48000,
		Channels:   1,
		Sample:     format.Float32,
		Endpoint:   ep,
		Source:     newFakeSource(1),
	}
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e, ep
}

func waitForState(t *testing.T, e *Engine, want control.PlayerState, within time.Duration) {
	t.Helper()
	deadline := time.After(within)
	for {
		if e.GetState() == want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("state did not reach %v within %v, got %v", want, within, e.GetState())
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

// waitForEpochAbove blocks until the decode epoch exceeds prev, i.e.
// until the engine thread has applied a Seek queued after prev was read.
func waitForEpochAbove(t *testing.T, e *Engine, prev int64, within time.Duration) {
	t.Helper()
	deadline := time.After(within)
	for e.dc.Epoch() <= prev {
		select {
		case <-deadline:
			t.Fatalf("decode epoch did not advance past %d within %v", prev, within)
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestEnginePlayReachesPlaying(t *testing.T) {
	e, _ := newTestEngine(t)
	defer e.Quit()

	e.Play()
	waitForState(t, e, Playing, 2*time.Second)
}

func TestEnginePauseThenResume(t *testing.T) {
	e, _ := newTestEngine(t)
	defer e.Quit()

	e.Play()
	waitForState(t, e, Playing, 2*time.Second)

	e.Pause()
	waitForState(t, e, Paused, time.Second)

	e.Resume()
	waitForState(t, e, Playing, time.Second)
}

func TestEngineStopResetsPositionAndMode(t *testing.T) {
	e, _ := newTestEngine(t)
	defer e.Quit()

	e.Play()
	waitForState(t, e, Playing, 2*time.Second)

	e.Stop()
	waitForState(t, e, Stopped, time.Second)

	st := e.Status()
	if st.PositionSeconds != 0 {
		t.Fatalf("expected position reset to 0 after Stop, got %v", st.PositionSeconds)
	}
	if st.DecodeMode != control.Stopped.String() {
		t.Fatalf("expected decode mode Stopped, got %s", st.DecodeMode)
	}
	if st.SeekTarget != -1 {
		t.Fatalf("expected seek target cleared to -1 after Stop, got %d", st.SeekTarget)
	}
}

func TestEngineSeekWhilePlayingStaysPlaying(t *testing.T) {
	e, _ := newTestEngine(t)
	defer e.Quit()

	e.Play()
	waitForState(t, e, Playing, 2*time.Second)

	before := e.dc.Epoch()
	e.Seek(10.0)
	waitForEpochAbove(t, e, before, time.Second)
	waitForState(t, e, Playing, time.Second)

	// SeekTarget is a persistent record of the last seek, not a
	// handshake flag: it stays at the requested frame (10s @ 48kHz)
	// even once the decoder has adopted it and moved on.
	const wantTarget = int64(10 * 48000)
	st := e.Status()
	if st.SeekTarget != wantTarget {
		t.Fatalf("expected seek target to remain %d, got %d", wantTarget, st.SeekTarget)
	}
}

func TestEngineSeekWhilePausedStaysPaused(t *testing.T) {
	e, _ := newTestEngine(t)
	defer e.Quit()

	e.Play()
	waitForState(t, e, Playing, 2*time.Second)
	e.Pause()
	waitForState(t, e, Paused, time.Second)

	before := e.dc.Epoch()
	e.Seek(5.0)
	waitForEpochAbove(t, e, before, time.Second)
	waitForState(t, e, Paused, time.Second)

	if got := e.dc.Mode(); got != control.Paused {
		t.Fatalf("expected decode mode Paused after seek-while-paused, got %v", got)
	}
}

func TestEngineReplayAlwaysEndsPlaying(t *testing.T) {
	e, _ := newTestEngine(t)
	defer e.Quit()

	e.Play()
	waitForState(t, e, Playing, 2*time.Second)
	e.Pause()
	waitForState(t, e, Paused, time.Second)

	e.Replay()
	waitForState(t, e, Playing, 2*time.Second)
}

func TestEngineQuitTearsDownFromPlaying(t *testing.T) {
	e, _ := newTestEngine(t)

	e.Play()
	waitForState(t, e, Playing, 2*time.Second)

	done := make(chan struct{})
	go func() {
		e.Quit()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Quit did not complete within 3s")
	}

	if got := e.dc.Mode(); got != control.Quit {
		t.Fatalf("expected decode mode Quit, got %v", got)
	}
}

func TestEngineFinishesWhenSourceExhausted(t *testing.T) {
	ep := endpoint.NewMock(300, 1, 0)
	cfg := Config{
		SampleRate:  1000,
		Channels:    1,
		Sample:      format.Float32,
		Endpoint:    ep,
		Source:      newFiniteSource(1, 300),
		RingSeconds: 2.0,
	}
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Quit()

	e.Play()
	waitForState(t, e, Playing, 2*time.Second)

	deadline := time.After(time.Second)
	for e.ringBuf.AvailableToRead() > 0 {
		ep.Tick()
		select {
		case <-deadline:
			t.Fatal("ring never drained")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	waitForState(t, e, Finished, 2*time.Second)
}

func TestEngineRejectsMissingCollaborators(t *testing.T) {
	if _, err := New(Config{SampleRate: 48000, Channels: 1, Endpoint: endpoint.NewMock(480, 1, 0)}); err == nil {
		t.Fatal("expected error with nil Source")
	}
	if _, err := New(Config{SampleRate: 48000, Channels: 1, Source: newFakeSource(1)}); err == nil {
		t.Fatal("expected error with nil Endpoint")
	}
}
