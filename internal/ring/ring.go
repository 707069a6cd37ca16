// ABOUTME: Lock-free SPSC frame ring buffer for the render path
// ABOUTME: Fixed-capacity interleaved float32 storage, no allocation after construction
// Package ring implements the wait-free single-producer/single-consumer
// frame queue that carries interleaved float32 PCM between the decoder
// worker and the render worker.
//
// Exactly one goroutine may call Write (the producer) and exactly one
// goroutine may call Read (the consumer). Cursors are frame-counted,
// monotonic, and never wrapped; storage indexing wraps via modulo.
package ring

import "sync/atomic"

// Buffer is a fixed-capacity interleaved float32 frame queue.
//
// Thread assignment:
//   - Write: producer goroutine only
//   - Read, Reset: consumer-adjacent, see Reset's precondition
//   - available counters: either side, relaxed semantics
type Buffer struct {
	capacity uint64
	channels int

	write atomic.Uint64
	_pad1 [56]byte
	read  atomic.Uint64
	_pad2 [56]byte

	storage []float32

	overrunCount    atomic.Uint64
	underrunCount   atomic.Uint64
	invariantCount  atomic.Uint64
}

// New constructs a ring buffer sized for capacity frames of channels
// samples each. Storage is allocated once, here, and never again.
func New(capacityFrames, channels int) *Buffer {
	if capacityFrames <= 0 || channels <= 0 {
		return &Buffer{}
	}
	return &Buffer{
		capacity: uint64(capacityFrames),
		channels: channels,
		storage:  make([]float32, capacityFrames*channels),
	}
}

// Capacity returns the frame capacity.
func (b *Buffer) Capacity() int { return int(b.capacity) }

// Channels returns the configured channel count.
func (b *Buffer) Channels() int { return b.channels }

// AvailableToWrite returns free frame slots: capacity - (write - read).
func (b *Buffer) AvailableToWrite() int {
	w := b.write.Load()
	r := b.read.Load()
	return int(b.capacity - (w - r))
}

// AvailableToRead returns queued frames: write - read.
func (b *Buffer) AvailableToRead() int {
	w := b.write.Load()
	r := b.read.Load()
	return int(w - r)
}

// Write copies up to n frames from src (interleaved, len(src) must be
// >= n*channels) into the ring. Returns the number of frames actually
// written. A short write bumps the overrun counter exactly once,
// regardless of the shortfall size. Call only from the producer.
func (b *Buffer) Write(src []float32, n int) int {
	if b.storage == nil || b.channels == 0 || n <= 0 {
		return 0
	}

	r := b.read.Load()
	w := b.write.Load()

	free := b.capacity - (w - r)
	avail := uint64(n)
	short := avail > free
	if short {
		avail = free
	}
	if avail == 0 {
		if short {
			b.overrunCount.Add(1)
		}
		return 0
	}

	b.copyIn(w, src, avail)
	b.write.Store(w + avail)

	if short {
		b.overrunCount.Add(1)
	}
	return int(avail)
}

// Read copies up to n frames from the ring into dst (interleaved,
// len(dst) must be >= n*channels). Returns the number of frames
// actually read. A short read bumps the underrun counter exactly
// once. Call only from the consumer.
func (b *Buffer) Read(dst []float32, n int) int {
	if b.storage == nil || b.channels == 0 || n <= 0 {
		return 0
	}

	w := b.write.Load()
	r := b.read.Load()

	available := w - r
	if r > w || available > b.capacity {
		// Release-build soft failure: clamp and record, never panic.
		b.invariantCount.Add(1)
		available = 0
	}

	want := uint64(n)
	short := want > available
	if short {
		want = available
	}
	if want == 0 {
		if short {
			b.underrunCount.Add(1)
		}
		return 0
	}

	b.copyOut(r, dst, want)
	b.read.Store(r + want)

	if short {
		b.underrunCount.Add(1)
	}
	return int(want)
}

// Reset clears cursors and counters. Only safe when neither the
// producer nor the consumer thread is active.
func (b *Buffer) Reset() {
	b.write.Store(0)
	b.read.Store(0)
	b.overrunCount.Store(0)
	b.underrunCount.Store(0)
	b.invariantCount.Store(0)
}

// Counters returns diagnostic counters: overrun, underrun, invariant
// violations. Relaxed ordering; safe to call from any thread.
func (b *Buffer) Counters() (overrun, underrun, invariantViolations uint64) {
	return b.overrunCount.Load(), b.underrunCount.Load(), b.invariantCount.Load()
}

// copyIn writes n frames starting at the storage offset for cursor w,
// splitting across the wrap point when necessary.
func (b *Buffer) copyIn(w uint64, src []float32, n uint64) {
	frameOff := w % b.capacity
	framesToEnd := b.capacity - frameOff
	ch := uint64(b.channels)

	if framesToEnd >= n {
		copy(b.storage[frameOff*ch:(frameOff+n)*ch], src[:n*ch])
		return
	}

	copy(b.storage[frameOff*ch:b.capacity*ch], src[:framesToEnd*ch])
	copy(b.storage[0:(n-framesToEnd)*ch], src[framesToEnd*ch:n*ch])
}

// copyOut reads n frames starting at the storage offset for cursor r,
// splitting across the wrap point when necessary.
func (b *Buffer) copyOut(r uint64, dst []float32, n uint64) {
	frameOff := r % b.capacity
	framesToEnd := b.capacity - frameOff
	ch := uint64(b.channels)

	if framesToEnd >= n {
		copy(dst[:n*ch], b.storage[frameOff*ch:(frameOff+n)*ch])
		return
	}

	copy(dst[:framesToEnd*ch], b.storage[frameOff*ch:b.capacity*ch])
	copy(dst[framesToEnd*ch:n*ch], b.storage[0:(n-framesToEnd)*ch])
}
