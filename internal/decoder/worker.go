// ABOUTME: Decoder worker thread
// ABOUTME: Polls DecodeControl, paces chunk production against the ring, and publishes idle state via a condition variable
package decoder

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/tfhammond/tomplayer/internal/control"
	"github.com/tfhammond/tomplayer/internal/ring"
)

// ChunkFrames is the fixed chunk size the worker produces per
// Running tick (spec.md §4.5: "implementation-defined, e.g., 1024
// frames").
const ChunkFrames = 1024

// pollInterval is how long the worker sleeps between polls while the
// commanded mode is Stopped or Paused.
const pollInterval = 20 * time.Millisecond

// Worker produces frames from a FrameSource into a ring buffer,
// reacting to DecodeControl's mode and epoch.
type Worker struct {
	dc     *control.DecodeControl
	src    FrameSource
	dst    *ring.Buffer
	sampleRate int

	idleMu   sync.Mutex
	idleCond *sync.Cond
	idle     bool

	cursor     atomic.Int64
	localEpoch int64

	droppedFrames  atomic.Uint64
	producedFrames atomic.Uint64

	done chan struct{}
}

// New constructs a decoder worker writing into dst, reading from src,
// driven by dc.
func New(dc *control.DecodeControl, src FrameSource, dst *ring.Buffer, sampleRate int) *Worker {
	w := &Worker{
		dc:         dc,
		src:        src,
		dst:        dst,
		sampleRate: sampleRate,
		idle:       true,
		done:       make(chan struct{}),
	}
	w.idleCond = sync.NewCond(&w.idleMu)
	return w
}

// DroppedFrames returns the cumulative frames dropped to ring overrun.
func (w *Worker) DroppedFrames() uint64 { return w.droppedFrames.Load() }

// Cursor returns the source-frame position the worker has advanced
// to, safe to read from any goroutine (the engine's status snapshot).
func (w *Worker) Cursor() int64 { return w.cursor.Load() }

// ProducedFrames returns the cumulative frames written into the ring.
func (w *Worker) ProducedFrames() uint64 { return w.producedFrames.Load() }

// WaitForIdle blocks until the worker has observed a non-Running mode
// and published idle.
func (w *Worker) WaitForIdle() {
	w.idleMu.Lock()
	defer w.idleMu.Unlock()
	for !w.idle {
		w.idleCond.Wait()
	}
}

// Done returns a channel closed once Run has returned (observed Quit).
func (w *Worker) Done() <-chan struct{} { return w.done }

func (w *Worker) setIdle(v bool) {
	w.idleMu.Lock()
	w.idle = v
	w.idleMu.Unlock()
	if v {
		w.idleCond.Broadcast()
	}
}

// Run is the decoder thread's body.
func (w *Worker) Run() {
	defer close(w.done)

	chunk := make([]float32, ChunkFrames*w.src.Channels())

	for {
		switch w.dc.Mode() {
		case control.Quit:
			w.setIdle(true)
			return

		case control.Stopped, control.Paused:
			w.setIdle(true)
			time.Sleep(pollInterval)

		case control.Running:
			w.setIdle(false)
			w.adoptEpochIfChanged()
			w.produceChunk(chunk)
		}
	}
}

// adoptEpochIfChanged repositions the logical cursor at the next tick
// rather than mid-chunk, per spec.md's epoch-invalidation protocol.
// TargetFrame is left as-is once adopted: it is the engine's published
// record of the last seek, read back by Status, not a handshake flag
// between the decoder and the engine.
func (w *Worker) adoptEpochIfChanged() {
	observed := w.dc.Epoch()
	if observed == w.localEpoch {
		return
	}
	w.localEpoch = observed

	if target := w.dc.TargetFrame(); target >= 0 {
		if err := w.src.Seek(target); err == nil {
			w.cursor.Store(target)
		}
	}
}

// produceChunk fills one fixed-size chunk from the source and writes
// it into the ring, then sleeps proportionally to pace production
// against real time so the ring never overfills.
func (w *Worker) produceChunk(chunk []float32) {
	n, eof, err := w.src.Fill(chunk)
	if err != nil || n == 0 {
		if eof {
			w.dc.SetSourceExhausted(true)
		}
		time.Sleep(pollInterval)
		return
	}

	w.cursor.Add(int64(n))
	w.producedFrames.Add(uint64(n))

	written := w.dst.Write(chunk, n)
	if written < n {
		w.droppedFrames.Add(uint64(n - written))
	}

	if eof {
		w.dc.SetSourceExhausted(true)
	}

	pace := time.Duration(float64(n) / float64(w.sampleRate) * float64(time.Second))
	time.Sleep(pace)
}
