// ABOUTME: Atomically shared engine<->worker state
// ABOUTME: DecodeControl and PlayerState as plain atomic fields, never mutex-protected
// Package control holds the small set of primitive-typed fields the
// engine publishes for the decoder and render workers to observe.
// Every field is an atomic; there is deliberately no mutex here —
// mutexes are reserved for the dynamically-sized command queue in
// pkg/engine.
package control

import "sync/atomic"

// DecodeMode is the decoder worker's commanded mode.
type DecodeMode int32

const (
	Stopped DecodeMode = iota
	Running
	Paused
	Quit
)

func (m DecodeMode) String() string {
	switch m {
	case Running:
		return "Running"
	case Paused:
		return "Paused"
	case Quit:
		return "Quit"
	default:
		return "Stopped"
	}
}

// DecodeControl is mutated only by the engine thread and observed with
// acquire semantics by the decoder worker. TargetFrame of -1 means "no
// explicit target, continue from current cursor."
type DecodeControl struct {
	epoch           atomic.Int64
	mode            atomic.Int32
	targetFrame     atomic.Int64
	sourceExhausted atomic.Bool
}

// NewDecodeControl returns a DecodeControl in Stopped mode with no
// pending target.
func NewDecodeControl() *DecodeControl {
	dc := &DecodeControl{}
	dc.targetFrame.Store(-1)
	return dc
}

// Epoch returns the current generation counter.
func (c *DecodeControl) Epoch() int64 { return c.epoch.Load() }

// BumpEpoch increments the generation counter, invalidating any
// in-flight decoded work from the prior generation.
func (c *DecodeControl) BumpEpoch() int64 { return c.epoch.Add(1) }

// Mode returns the commanded decode mode.
func (c *DecodeControl) Mode() DecodeMode { return DecodeMode(c.mode.Load()) }

// SetMode publishes a new decode mode.
func (c *DecodeControl) SetMode(m DecodeMode) { c.mode.Store(int32(m)) }

// TargetFrame returns the last published seek target, or -1 if none.
// The decoder does not clear it after adopting it; Stop resets it to -1.
func (c *DecodeControl) TargetFrame() int64 { return c.targetFrame.Load() }

// SetTargetFrame publishes a new seek target (or -1 to clear it).
func (c *DecodeControl) SetTargetFrame(f int64) { c.targetFrame.Store(f) }

// SourceExhausted reports whether the decoder has observed end-of-stream
// from its FrameSource in the current epoch.
func (c *DecodeControl) SourceExhausted() bool { return c.sourceExhausted.Load() }

// SetSourceExhausted is called by the decoder worker when its
// FrameSource reports eof, and cleared by the engine when it bumps the
// epoch on Stop, Seek and Replay (discarding that signal along with
// everything else from the stale generation). Quit bumps the epoch
// without clearing it.
func (c *DecodeControl) SetSourceExhausted(v bool) { c.sourceExhausted.Store(v) }

// PlayerState is the engine's externally observable lifecycle state.
type PlayerState int32

const (
	Idle PlayerState = iota
	StateStopped
	Starting
	Playing
	StatePaused
	Seeking
	StoppingState
	Finished
	ErrorState
)

func (s PlayerState) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case Starting:
		return "Starting"
	case Playing:
		return "Playing"
	case StatePaused:
		return "Paused"
	case Seeking:
		return "Seeking"
	case StoppingState:
		return "Stopping"
	case Finished:
		return "Finished"
	case ErrorState:
		return "Error"
	default:
		return "Idle"
	}
}

// State is a single atomically-published PlayerState, owned exclusively
// by the engine thread.
type State struct {
	v atomic.Int32
}

// NewState returns a State initialized to Idle.
func NewState() *State { return &State{} }

// Load returns the current state.
func (s *State) Load() PlayerState { return PlayerState(s.v.Load()) }

// Store publishes a new state.
func (s *State) Store(v PlayerState) { s.v.Store(int32(v)) }
