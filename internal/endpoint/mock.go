// ABOUTME: In-memory endpoint adapter for render/engine tests
// ABOUTME: Simulates padding drain over simulated ticks without any real hardware
package endpoint

import (
	"sync"

	"github.com/tfhammond/tomplayer/internal/format"
)

// Mock is a fully in-process Adapter used by render and engine tests.
// Padding is simulated: each call to Tick() drains drainPerTick frames
// from the simulated hardware queue, the way a real device would
// consume queued frames between render cycles.
type Mock struct {
	mu sync.Mutex

	bufferFrames  int
	drainPerTick  int
	padding       int
	started       bool
	initErr       error
	startErr      error
	getBufferErr  error
	releaseErr    error
	paddingErr    error

	region []float32
	ev     chan struct{}

	lastReleaseFrames int
	lastReleaseFlags  ReleaseFlags
	releaseCount      int
	silentCount       int
}

// NewMock returns a Mock sized for bufferFrames-frame endpoint buffer,
// draining drainPerTick frames every call to Tick.
func NewMock(bufferFrames, channels, drainPerTick int) *Mock {
	return &Mock{
		bufferFrames: bufferFrames,
		drainPerTick: drainPerTick,
		region:       make([]float32, bufferFrames*channels),
		ev:           make(chan struct{}, 1),
	}
}

// FailInit forces the next Initialize to fail.
func (m *Mock) FailInit(err error) { m.initErr = err }

// FailStart forces the next Start to fail.
func (m *Mock) FailStart(err error) { m.startErr = err }

// FailGetBuffer forces the next GetBuffer to fail.
func (m *Mock) FailGetBuffer(err error) { m.getBufferErr = err }

// FailRelease forces the next ReleaseBuffer to fail.
func (m *Mock) FailRelease(err error) { m.releaseErr = err }

// FailPadding forces the next CurrentPadding to fail.
func (m *Mock) FailPadding(err error) { m.paddingErr = err }

// Tick simulates one hardware period: drains queued frames and wakes
// the render worker's event channel.
func (m *Mock) Tick() {
	m.mu.Lock()
	if m.padding > m.drainPerTick {
		m.padding -= m.drainPerTick
	} else {
		m.padding = 0
	}
	m.mu.Unlock()

	select {
	case m.ev <- struct{}{}:
	default:
	}
}

func (m *Mock) Initialize(eventDriven bool, f format.EndpointFormat) (int, error) {
	if m.initErr != nil {
		err := m.initErr
		m.initErr = nil
		return 0, err
	}
	return m.bufferFrames, nil
}

func (m *Mock) Start() error {
	if m.startErr != nil {
		err := m.startErr
		m.startErr = nil
		return err
	}
	m.mu.Lock()
	m.started = true
	m.mu.Unlock()
	return nil
}

func (m *Mock) Stop() error {
	m.mu.Lock()
	m.started = false
	m.mu.Unlock()
	return nil
}

func (m *Mock) Reset() error {
	m.mu.Lock()
	m.padding = 0
	m.mu.Unlock()
	return nil
}

func (m *Mock) CurrentPadding() (int, error) {
	if m.paddingErr != nil {
		err := m.paddingErr
		m.paddingErr = nil
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.padding, nil
}

func (m *Mock) GetBuffer(frames int) ([]float32, error) {
	if m.getBufferErr != nil {
		err := m.getBufferErr
		m.getBufferErr = nil
		return nil, err
	}
	channels := 0
	if m.bufferFrames > 0 {
		channels = len(m.region) / m.bufferFrames
	}
	if frames <= 0 || channels == 0 || frames*channels > len(m.region) {
		return nil, ErrNoBuffer
	}
	return m.region[:frames*channels], nil
}

func (m *Mock) ReleaseBuffer(frames int, flags ReleaseFlags) error {
	if m.releaseErr != nil {
		err := m.releaseErr
		m.releaseErr = nil
		return err
	}
	m.mu.Lock()
	m.padding += frames
	m.lastReleaseFrames = frames
	m.lastReleaseFlags = flags
	m.releaseCount++
	if flags&FlagsSilent != 0 {
		m.silentCount++
	}
	m.mu.Unlock()
	return nil
}

func (m *Mock) EventHandle() <-chan struct{} { return m.ev }

func (m *Mock) Close() error { return nil }

// LastRelease returns the frames/flags passed to the most recent
// ReleaseBuffer call, for assertions in render tests.
func (m *Mock) LastRelease() (frames int, flags ReleaseFlags) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastReleaseFrames, m.lastReleaseFlags
}

// Stats returns release/silent-release counts for assertions.
func (m *Mock) Stats() (releases, silent int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.releaseCount, m.silentCount
}
