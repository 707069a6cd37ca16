// ABOUTME: Engine status snapshot
// ABOUTME: Wait-free read assembled from the atomics the render and decoder workers publish
package engine

import (
	"github.com/google/uuid"

	"github.com/tfhammond/tomplayer/internal/control"
)

// Status is a point-in-time snapshot of everything external callers
// can observe about a running engine. Every field behind it is an
// atomic or a worker-owned counter, so assembling a Status never
// blocks on the engine thread.
type Status struct {
	SessionID uuid.UUID

	State PlayerState

	PositionSeconds float64
	BufferedSeconds float64

	UnderrunWakes  uint64
	UnderrunFrames uint64
	DroppedFrames  uint64

	DecodeEpoch  int64
	DecodeMode   string
	SeekTarget   int64
	DecodedFrame int64

	ProducedFramesTotal uint64

	LastError string
}

// PlayerState re-exports internal/control's lifecycle enum so callers
// of pkg/engine never need to import internal/control directly.
type PlayerState = control.PlayerState

const (
	Idle     = control.Idle
	Stopped  = control.StateStopped
	Starting = control.Starting
	Playing  = control.Playing
	Paused   = control.StatePaused
	Seeking  = control.Seeking
	Stopping = control.StoppingState
	Finished = control.Finished
	Errored  = control.ErrorState
)
