// ABOUTME: malgo/miniaudio-backed endpoint adapter
// ABOUTME: Bridges the get-buffer/release-buffer contract onto malgo's pull-style data callback
package endpoint

import (
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/tfhammond/tomplayer/internal/format"
	"github.com/tfhammond/tomplayer/internal/ring"
)

// Malgo adapts the render worker's get/release-buffer contract onto
// malgo's callback-driven device. The render worker is the producer
// into a staging ring; malgo's own hardware-pull callback is the sole
// consumer, so the staging ring's backlog is the real hardware
// padding — not an approximation, the way the teacher's
// pkg/audio/output/malgo.go bridges its own RingBuffer into
// dataCallback.
type Malgo struct {
	mu       sync.Mutex
	ctx      *malgo.AllocatedContext
	device   *malgo.Device
	staging  *ring.Buffer
	channels int
	scratch  []float32
	ev       chan struct{}
	region   []float32
}

// NewMalgo constructs an uninitialized malgo-backed adapter.
func NewMalgo() *Malgo {
	return &Malgo{ev: make(chan struct{}, 1)}
}

// IsFormatSupported reports whether req is exactly the Float32
// shared-mode format this backend can render; malgo always can, at
// whatever rate/channel count is requested.
func (m *Malgo) IsFormatSupported(req format.EndpointFormat) (format.EndpointFormat, bool, error) {
	if req.Sample != format.Float32 || req.BitsPerSample != 32 {
		return format.EndpointFormat{}, false, nil
	}
	return req, true, nil
}

func (m *Malgo) Initialize(eventDriven bool, f format.EndpointFormat) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	exact, err := format.SelectFloat32SharedMode(f.SampleRate, f.Channels, 0, m)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrEndpointInit, err)
	}
	f = exact

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrEndpointInit, err)
	}
	m.ctx = ctx
	m.channels = f.Channels

	bufferFrames := f.SampleRate / 100 // 10ms hardware period
	if bufferFrames <= 0 {
		bufferFrames = 480
	}

	m.staging = ring.New(bufferFrames*4, f.Channels)
	m.scratch = make([]float32, bufferFrames*f.Channels)
	m.region = make([]float32, bufferFrames*f.Channels)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = uint32(f.Channels)
	deviceConfig.SampleRate = uint32(f.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(bufferFrames)

	callbacks := malgo.DeviceCallbacks{
		Data: m.dataCallback,
	}

	device, err := malgo.InitDevice(m.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrEndpointInit, err)
	}
	m.device = device

	return bufferFrames, nil
}

func (m *Malgo) dataCallback(pOutputSample, pInputSamples []byte, frameCount uint32) {
	frames := int(frameCount)
	if frames*m.channels > len(m.scratch) {
		frames = len(m.scratch) / m.channels
	}
	got := m.staging.Read(m.scratch[:frames*m.channels], frames)

	const bytesPerSample = 4
	for i := 0; i < got*m.channels; i++ {
		putFloat32LE(pOutputSample[i*bytesPerSample:], m.scratch[i])
	}
	for i := got * m.channels; i < int(frameCount)*m.channels; i++ {
		putFloat32LE(pOutputSample[i*bytesPerSample:], 0)
	}

	select {
	case m.ev <- struct{}{}:
	default:
	}
}

func putFloat32LE(b []byte, v float32) {
	bits := math.Float32bits(v)
	b[0] = byte(bits)
	b[1] = byte(bits >> 8)
	b[2] = byte(bits >> 16)
	b[3] = byte(bits >> 24)
}

func (m *Malgo) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device == nil {
		return fmt.Errorf("%w: not initialized", ErrEndpointStart)
	}
	if err := m.device.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrEndpointStart, err)
	}
	return nil
}

func (m *Malgo) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device == nil {
		return nil
	}
	return m.device.Stop()
}

func (m *Malgo) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.staging != nil {
		m.staging.Reset()
	}
	return nil
}

func (m *Malgo) CurrentPadding() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.staging == nil {
		return 0, nil
	}
	return m.staging.AvailableToRead(), nil
}

func (m *Malgo) GetBuffer(frames int) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if frames <= 0 || m.region == nil || frames*m.channels > len(m.region) {
		return nil, ErrNoBuffer
	}
	return m.region[:frames*m.channels], nil
}

func (m *Malgo) ReleaseBuffer(frames int, flags ReleaseFlags) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.staging == nil {
		return fmt.Errorf("endpoint: release before initialize")
	}
	if flags&FlagsSilent != 0 {
		for i := range m.region[:frames*m.channels] {
			m.region[i] = 0
		}
	}
	m.staging.Write(m.region[:frames*m.channels], frames)
	return nil
}

func (m *Malgo) EventHandle() <-chan struct{} { return m.ev }

func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		_ = m.device.Stop()
		m.device.Uninit()
		m.device = nil
	}
	if m.ctx != nil {
		_ = m.ctx.Uninit()
		m.ctx.Free()
		m.ctx = nil
	}
	return nil
}
