// ABOUTME: Endpoint adapter interface — the render/start-stop test seam
// ABOUTME: Thin trait over a host audio client, modeled as a Go interface rather than a function-pointer table
// Package endpoint abstracts the host audio client the render worker
// drives. Every call below is host-provided in production; the
// interface exists so the render and engine logic are testable without
// a real device (spec's "redesign" note: the source's polymorphic
// function-pointer table becomes an interface here).
package endpoint

import (
	"errors"

	"github.com/tfhammond/tomplayer/internal/format"
)

// ReleaseFlags mirrors the single bit the render path needs.
type ReleaseFlags uint32

const (
	FlagsNone   ReleaseFlags = 0
	FlagsSilent ReleaseFlags = 1 << 0
)

// Sentinel errors for the small fixed taxonomy in the spec's error
// handling design. Callers use errors.Is against these.
var (
	ErrEndpointInit  = errors.New("endpoint: initialization rejected")
	ErrEndpointStart = errors.New("endpoint: start rejected")
	ErrNoBuffer      = errors.New("endpoint: no buffer available this cycle")
)

// Adapter is the capability set a render worker needs from a host
// audio client: initialize, start/stop/reset, padding, get/release
// buffer, and an event handle to wake the render thread.
type Adapter interface {
	// Initialize negotiates shared-mode event-driven streaming at the
	// given format and returns the endpoint buffer size in frames.
	Initialize(eventDriven bool, f format.EndpointFormat) (bufferFrames int, err error)

	Start() error
	Stop() error
	Reset() error

	// CurrentPadding returns frames currently queued at the hardware.
	CurrentPadding() (frames int, err error)

	// GetBuffer returns a writable interleaved region for exactly
	// frames frames, or an error/nil region for a no-op render cycle.
	GetBuffer(frames int) (region []float32, err error)

	// ReleaseBuffer commits frames written into the most recent
	// GetBuffer region. frames must equal the value passed to
	// GetBuffer. flags may carry FlagsSilent.
	ReleaseBuffer(frames int, flags ReleaseFlags) error

	// EventHandle returns a channel the render worker waits on; it
	// receives one value per hardware period tick.
	EventHandle() <-chan struct{}

	// Close tears down the endpoint. Safe to call after Stop.
	Close() error
}
