// ABOUTME: oto-backed endpoint adapter
// ABOUTME: Bridges get-buffer/release-buffer onto oto's persistent pipe-fed player, paced by a software hardware-period ticker
package endpoint

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/tfhammond/tomplayer/internal/format"
	"github.com/tfhammond/tomplayer/internal/ring"
)

// Oto adapts the render worker's get/release-buffer contract onto the
// oto library, which only exposes a push/io.Writer model. A staging
// ring plays the producer/consumer role the teacher's oto.go plays
// with its io.Pipe: the render worker writes into the ring, and a
// dedicated drain goroutine paced at the nominal hardware period reads
// out of it and feeds the pipe oto's player reads from.
type Oto struct {
	mu         sync.Mutex
	ctx        context.Context
	cancel     context.CancelFunc
	otoCtx     *oto.Context
	player     *oto.Player
	pipeWriter *io.PipeWriter
	staging    *ring.Buffer
	channels   int
	bufFrames  int
	scratch    []float32
	drainBytes []byte
	period     time.Duration
	ev         chan struct{}
	region     []float32
	stopDrain  chan struct{}
}

// NewOto constructs an uninitialized oto-backed adapter.
func NewOto() *Oto {
	ctx, cancel := context.WithCancel(context.Background())
	return &Oto{ctx: ctx, cancel: cancel, ev: make(chan struct{}, 1)}
}

// IsFormatSupported reports whether req is exactly the Float32
// shared-mode format this backend can render; oto always can, at
// whatever rate/channel count is requested.
func (o *Oto) IsFormatSupported(req format.EndpointFormat) (format.EndpointFormat, bool, error) {
	if req.Sample != format.Float32 || req.BitsPerSample != 32 {
		return format.EndpointFormat{}, false, nil
	}
	return req, true, nil
}

func (o *Oto) Initialize(eventDriven bool, f format.EndpointFormat) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	exact, err := format.SelectFloat32SharedMode(f.SampleRate, f.Channels, 0, o)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrEndpointInit, err)
	}
	f = exact

	op := &oto.NewContextOptions{
		SampleRate:   f.SampleRate,
		ChannelCount: f.Channels,
		Format:       oto.FormatFloat32LE,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrEndpointInit, err)
	}
	<-ready

	o.otoCtx = ctx
	o.channels = f.Channels
	o.bufFrames = f.SampleRate / 100
	if o.bufFrames <= 0 {
		o.bufFrames = 480
	}
	o.period = time.Second * time.Duration(o.bufFrames) / time.Duration(f.SampleRate)

	o.staging = ring.New(o.bufFrames*4, f.Channels)
	o.scratch = make([]float32, o.bufFrames*f.Channels)
	o.drainBytes = make([]byte, o.bufFrames*f.Channels*4)
	o.region = make([]float32, o.bufFrames*f.Channels)

	var reader *io.PipeReader
	reader, o.pipeWriter = io.Pipe()
	o.player = o.otoCtx.NewPlayer(reader)

	o.stopDrain = make(chan struct{})
	go o.drainLoop(o.stopDrain)

	return o.bufFrames, nil
}

// drainLoop is the staging ring's sole consumer: it ticks at the
// nominal hardware period, pulls exactly one period's worth of frames
// out of the ring (zero-filling any shortfall), and hands them to
// oto's pipe. The tick is also republished as the adapter's event
// handle, the way a real device wakes the render worker once per
// period.
func (o *Oto) drainLoop(stop chan struct{}) {
	ticker := time.NewTicker(o.period)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			got := o.staging.Read(o.scratch, o.bufFrames)
			for i := got * o.channels; i < o.bufFrames*o.channels; i++ {
				o.scratch[i] = 0
			}
			for i := 0; i < o.bufFrames*o.channels; i++ {
				bits := math.Float32bits(o.scratch[i])
				binary.LittleEndian.PutUint32(o.drainBytes[i*4:], bits)
			}
			if _, err := o.pipeWriter.Write(o.drainBytes); err != nil {
				return
			}

			select {
			case o.ev <- struct{}{}:
			default:
			}
		}
	}
}

func (o *Oto) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.player == nil {
		return fmt.Errorf("%w: not initialized", ErrEndpointStart)
	}
	o.player.Play()
	return nil
}

func (o *Oto) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.player != nil {
		o.player.Pause()
	}
	return nil
}

func (o *Oto) Reset() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.staging != nil {
		o.staging.Reset()
	}
	return nil
}

func (o *Oto) CurrentPadding() (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.staging == nil {
		return 0, nil
	}
	return o.staging.AvailableToRead(), nil
}

func (o *Oto) GetBuffer(frames int) ([]float32, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if frames <= 0 || o.region == nil || frames*o.channels > len(o.region) {
		return nil, ErrNoBuffer
	}
	return o.region[:frames*o.channels], nil
}

func (o *Oto) ReleaseBuffer(frames int, flags ReleaseFlags) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.staging == nil {
		return fmt.Errorf("endpoint: release before initialize")
	}
	if flags&FlagsSilent != 0 {
		for i := range o.region[:frames*o.channels] {
			o.region[i] = 0
		}
	}
	o.staging.Write(o.region[:frames*o.channels], frames)
	return nil
}

func (o *Oto) EventHandle() <-chan struct{} { return o.ev }

func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.stopDrain != nil {
		close(o.stopDrain)
		o.stopDrain = nil
	}
	if o.pipeWriter != nil {
		_ = o.pipeWriter.Close()
		o.pipeWriter = nil
	}
	if o.player != nil {
		_ = o.player.Close()
		o.player = nil
	}
	if o.otoCtx != nil {
		o.otoCtx.Suspend()
		o.otoCtx = nil
	}
	o.cancel()
	return nil
}
