// ABOUTME: Real-time render worker
// ABOUTME: Drains the SPSC ring into the endpoint buffer under a strict allocation-free contract
// Package render implements the dedicated thread that pulls frames out
// of the decode ring and hands them to the endpoint adapter. Every
// render cycle is allocation-free: scratch buffers are sized once at
// construction and reused for the worker's lifetime.
package render

import (
	"sync"
	"sync/atomic"

	"github.com/tfhammond/tomplayer/internal/endpoint"
	"github.com/tfhammond/tomplayer/internal/format"
	"github.com/tfhammond/tomplayer/internal/ring"
)

// Stats are the render worker's diagnostic counters, safe to sample
// from any goroutine.
type Stats struct {
	RenderedFrames uint64
	UnderrunWakes  uint64
	UnderrunFrames uint64
}

// Worker pulls frames from a ring buffer into an endpoint adapter.
type Worker struct {
	ep       endpoint.Adapter
	src      *ring.Buffer
	sample   format.SampleFormat
	channels int

	bufferFrames int
	floatScratch []float32 // pre-allocated once, sized for one full endpoint buffer
	pcmScratch   []int16

	stop chan struct{}
	done chan struct{}

	// cycleMu guards renderCycle against Pause/Resume: Pause takes the
	// lock before returning, so by the time it returns no render cycle
	// is in flight and none will start until Resume runs, regardless of
	// whether the endpoint keeps waking the event handle in the
	// meantime. This is what lets the engine call ring.Reset safely on
	// Stop/Seek/Replay without the render worker racing it as the ring's
	// consumer.
	cycleMu sync.Mutex
	paused  bool

	renderedFrames atomic.Uint64
	underrunWakes  atomic.Uint64
	underrunFrames atomic.Uint64
}

// New constructs a render worker. bufferFrames is the endpoint buffer
// size in frames returned by Adapter.Initialize; the worker's scratch
// buffers are sized for it here so the render loop never allocates.
func New(ep endpoint.Adapter, src *ring.Buffer, sample format.SampleFormat, channels, bufferFrames int) *Worker {
	return &Worker{
		ep:           ep,
		src:          src,
		sample:       sample,
		channels:     channels,
		bufferFrames: bufferFrames,
		floatScratch: make([]float32, bufferFrames*channels),
		pcmScratch:   make([]int16, bufferFrames*channels),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// RenderedFrames returns the cumulative frames released to the
// endpoint in non-silent cycles (a zero-filled underrun tail included),
// for the engine's position clock. Silent releases are not counted.
func (w *Worker) RenderedFrames() uint64 {
	return w.renderedFrames.Load()
}

// ResetRenderedFrames zeroes the rendered-frame counter. Called by the
// engine on Stop and Seek, once the render worker is known idle
// (endpoint stopped), so position starts fresh from the new offset.
func (w *Worker) ResetRenderedFrames() {
	w.renderedFrames.Store(0)
}

// Stats snapshots the worker's diagnostic counters.
func (w *Worker) Stats() Stats {
	return Stats{
		RenderedFrames: w.renderedFrames.Load(),
		UnderrunWakes:  w.underrunWakes.Load(),
		UnderrunFrames: w.underrunFrames.Load(),
	}
}

// Stop signals the render loop to exit and waits for it to do so.
func (w *Worker) Stop() {
	close(w.stop)
	<-w.done
}

// Pause blocks until any render cycle currently in flight has finished,
// then holds the worker idle (no further cycles run, even if the
// endpoint keeps waking the event handle) until Resume is called. The
// caller is guaranteed, once Pause returns, that the worker will not
// touch the ring until it calls Resume.
func (w *Worker) Pause() {
	w.cycleMu.Lock()
	w.paused = true
	w.cycleMu.Unlock()
}

// Resume clears a prior Pause, letting the render loop service the
// endpoint's event handle again.
func (w *Worker) Resume() {
	w.cycleMu.Lock()
	w.paused = false
	w.cycleMu.Unlock()
}

// Run is the dedicated render thread's body. It waits on the
// endpoint's per-tick event and the stop signal; any wake on stop
// exits, and a closed event channel also exits rather than spin.
func (w *Worker) Run() {
	defer close(w.done)

	for {
		select {
		case <-w.stop:
			return
		case _, ok := <-w.ep.EventHandle():
			if !ok {
				return
			}
			w.cycleMu.Lock()
			if !w.paused {
				w.renderCycle()
			}
			w.cycleMu.Unlock()
		}
	}
}

// renderCycle executes exactly one audio wake's worth of work, per
// spec.md §4.4 steps 1-7.
func (w *Worker) renderCycle() {
	padding, err := w.ep.CurrentPadding()
	if err != nil {
		// RenderCycleFault: swallowed, the endpoint will wake us again.
		return
	}
	if padding >= w.bufferFrames {
		return
	}

	framesAvailable := w.bufferFrames - padding
	if framesAvailable <= 0 {
		return
	}

	region, err := w.ep.GetBuffer(framesAvailable)
	if err != nil || region == nil {
		return
	}

	var produced int
	switch w.sample {
	case format.Float32:
		produced = w.fillFloat32(region, framesAvailable)
	case format.Pcm16:
		produced = w.fillPcm16(region, framesAvailable)
	default:
		produced = 0
	}

	flags := endpoint.FlagsNone
	if produced == 0 {
		flags = endpoint.FlagsSilent
	}

	if err := w.ep.ReleaseBuffer(framesAvailable, flags); err != nil {
		return
	}

	w.renderedFrames.Add(uint64(produced))
}

// fillFloat32 reads directly into the endpoint's region. Any shortfall
// is zero-filled in place and counted once as an underrun wake, with
// the shortfall's frame count added to the underrun-frames counter.
// Returns framesAvailable when at least one frame came from the ring
// (the zero-filled tail counts toward it), and 0 iff nothing was
// available.
func (w *Worker) fillFloat32(region []float32, framesAvailable int) int {
	got := w.src.Read(region, framesAvailable)
	if got < framesAvailable {
		for i := got * w.channels; i < framesAvailable*w.channels; i++ {
			region[i] = 0
		}
		w.underrunWakes.Add(1)
		w.underrunFrames.Add(uint64(framesAvailable - got))
	}
	if got == 0 {
		return 0
	}
	return framesAvailable
}

// fillPcm16 renders into the pre-allocated float scratch buffer, then
// clamps and scales into int16 (kept in pcmScratch) and writes each
// value back into the endpoint's region as an integer-valued float32
// slot, so the render path never touches raw device byte layout. None
// of the adapters in internal/endpoint repacks these slots into 16-bit
// device bytes: Oto and Malgo negotiate Float32 only. Returns the same
// count as fillFloat32.
func (w *Worker) fillPcm16(region []float32, framesAvailable int) int {
	got := w.src.Read(w.floatScratch[:framesAvailable*w.channels], framesAvailable)
	if got < framesAvailable {
		for i := got * w.channels; i < framesAvailable*w.channels; i++ {
			w.floatScratch[i] = 0
		}
		w.underrunWakes.Add(1)
		w.underrunFrames.Add(uint64(framesAvailable - got))
	}
	if got == 0 {
		return 0
	}

	n := framesAvailable * w.channels
	for i := 0; i < n; i++ {
		w.pcmScratch[i] = clampToInt16(w.floatScratch[i])
		region[i] = float32(w.pcmScratch[i])
	}
	return framesAvailable
}

// clampToInt16 converts f ∈ [-1,1] to int16(f*32767); out-of-range
// values saturate at ±32767.
func clampToInt16(f float32) int16 {
	if f > 1 {
		return 32767
	}
	if f < -1 {
		return -32767
	}
	return int16(f * 32767)
}
