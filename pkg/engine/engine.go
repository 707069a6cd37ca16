// ABOUTME: Engine state machine tying the ring, decoder, render worker, and endpoint together
// ABOUTME: The only public surface: Play/Pause/Resume/Stop/Seek/Replay/Quit, Status, Stats
package engine

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tfhammond/tomplayer/internal/control"
	"github.com/tfhammond/tomplayer/internal/decoder"
	"github.com/tfhammond/tomplayer/internal/endpoint"
	"github.com/tfhammond/tomplayer/internal/format"
	"github.com/tfhammond/tomplayer/internal/render"
	"github.com/tfhammond/tomplayer/internal/ring"
)

// primePollInterval is how often priming re-checks the ring's backlog.
const primePollInterval = 2 * time.Millisecond

// Config configures a new Engine. Endpoint and Source are the two
// collaborators the engine does not implement itself: a host audio
// client and a frame producer, respectively.
type Config struct {
	SampleRate int
	Channels   int

	// Sample is the negotiated device sample format. Defaults to
	// Float32.
	Sample format.SampleFormat

	Endpoint endpoint.Adapter
	Source   decoder.FrameSource

	// RingSeconds sizes the decode ring's capacity. Defaults to 2.0.
	RingSeconds float64

	// OnStateChange, if set, is called from the engine thread every
	// time PlayerState changes.
	OnStateChange func(control.PlayerState)

	// OnError is called from the engine thread whenever a command
	// application fails. Defaults to a log.Printf if left nil.
	OnError func(error)
}

// Engine is the command-driven audio playback core. One Engine owns
// exactly one ring buffer, one decoder worker, one render worker (once
// started), and one endpoint.
type Engine struct {
	cfg       Config
	sessionID uuid.UUID

	dc    *control.DecodeControl
	state *control.State

	ringBuf      *ring.Buffer
	decWorker    *decoder.Worker
	renderWorker *render.Worker
	bufferFrames int

	renderFrameOffset atomic.Int64

	queue *commandQueue

	lastErrMu sync.Mutex
	lastErr   string

	workersWG sync.WaitGroup
	loopDone  chan struct{}
}

// New constructs an Engine and starts its command-consuming thread and
// decoder worker. The endpoint itself is not initialized until the
// first command that starts playback (Play, Replay, or a Seek that
// resumes playing).
func New(cfg Config) (*Engine, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("engine: sample rate must be positive")
	}
	if cfg.Channels <= 0 {
		return nil, fmt.Errorf("engine: channel count must be positive")
	}
	if cfg.Endpoint == nil {
		return nil, fmt.Errorf("engine: endpoint is required")
	}
	if cfg.Source == nil {
		return nil, fmt.Errorf("engine: source is required")
	}
	if cfg.Sample == format.Unsupported {
		cfg.Sample = format.Float32
	}
	if cfg.RingSeconds <= 0 {
		cfg.RingSeconds = 2.0
	}
	if cfg.OnError == nil {
		cfg.OnError = func(err error) { log.Printf("engine: %v", err) }
	}

	ringFrames := int(cfg.RingSeconds * float64(cfg.SampleRate))
	e := &Engine{
		cfg:       cfg,
		sessionID: uuid.New(),
		dc:        control.NewDecodeControl(),
		state:     control.NewState(),
		ringBuf:   ring.New(ringFrames, cfg.Channels),
		loopDone:  make(chan struct{}),
	}
	e.decWorker = decoder.New(e.dc, cfg.Source, e.ringBuf, cfg.SampleRate)
	e.queue = newCommandQueue()

	e.workersWG.Add(1)
	go func() {
		defer e.workersWG.Done()
		e.decWorker.Run()
	}()

	go e.run()

	return e, nil
}

// Play starts or resumes playback from any non-Playing state.
func (e *Engine) Play() { e.queue.push(command{kind: cmdPlay}) }

// Pause pauses playback.
func (e *Engine) Pause() { e.queue.push(command{kind: cmdPause}) }

// Resume resumes playback from Paused.
func (e *Engine) Resume() { e.queue.push(command{kind: cmdResume}) }

// Stop halts playback and resets position to the start.
func (e *Engine) Stop() { e.queue.push(command{kind: cmdStop}) }

// Seek repositions playback to the given offset in seconds, clamped to
// zero, resuming playback unless the engine was Paused.
func (e *Engine) Seek(seconds float64) { e.queue.push(command{kind: cmdSeek, seconds: seconds}) }

// Replay is equivalent to Seek(0) followed by Play, regardless of the
// prior state.
func (e *Engine) Replay() { e.queue.push(command{kind: cmdReplay}) }

// Quit tears the engine down: the command-consuming thread exits,
// the decoder and render workers are joined, and the endpoint and ring
// buffer are released. Quit blocks until teardown completes.
func (e *Engine) Quit() {
	e.queue.push(command{kind: cmdQuit})
	<-e.loopDone
}

// GetState returns the current lifecycle state without blocking on the
// engine thread.
func (e *Engine) GetState() control.PlayerState { return e.state.Load() }

// Status snapshots everything external callers can observe about a
// running engine.
func (e *Engine) Status() Status {
	var rs render.Stats
	if e.renderWorker != nil {
		rs = e.renderWorker.Stats()
	}

	offset := e.renderFrameOffset.Load()
	position := float64(rs.RenderedFrames+uint64(offset)) / float64(e.cfg.SampleRate)
	buffered := float64(e.ringBuf.AvailableToRead()) / float64(e.cfg.SampleRate)

	e.lastErrMu.Lock()
	lastErr := e.lastErr
	e.lastErrMu.Unlock()

	return Status{
		SessionID:           e.sessionID,
		State:               e.state.Load(),
		PositionSeconds:     position,
		BufferedSeconds:     buffered,
		UnderrunWakes:       rs.UnderrunWakes,
		UnderrunFrames:      rs.UnderrunFrames,
		DroppedFrames:       e.decWorker.DroppedFrames(),
		DecodeEpoch:         e.dc.Epoch(),
		DecodeMode:          e.dc.Mode().String(),
		SeekTarget:          e.dc.TargetFrame(),
		DecodedFrame:        e.decWorker.Cursor(),
		ProducedFramesTotal: e.decWorker.ProducedFrames(),
		LastError:           lastErr,
	}
}

// Stats is an alias of Status, matching the teacher's dual naming for
// the same snapshot.
func (e *Engine) Stats() Status { return e.Status() }

// run is the engine thread's body: dequeue, apply, repeat, until Quit.
func (e *Engine) run() {
	for {
		cmd, ok := e.queue.dequeue()
		if !ok {
			close(e.loopDone)
			return
		}
		e.apply(cmd)
		if cmd.kind == cmdQuit {
			close(e.loopDone)
			return
		}
	}
}

func (e *Engine) apply(cmd command) {
	switch cmd.kind {
	case cmdPlay:
		e.doPlay()
	case cmdPause:
		e.doPause()
	case cmdResume:
		e.doResume()
	case cmdStop:
		e.doStop()
	case cmdSeek:
		e.doSeek(cmd.seconds)
	case cmdReplay:
		e.doReplay()
	case cmdQuit:
		e.doQuit()
	case cmdTick:
		e.checkFinished()
	}
}

// checkFinished implements DecoderSourceExhausted: once the decoder
// has observed end-of-stream and the ring has fully drained, a
// Playing engine transitions to Finished on its own, with no caller
// command involved.
func (e *Engine) checkFinished() {
	if e.state.Load() != control.Playing {
		return
	}
	if !e.dc.SourceExhausted() || e.ringBuf.AvailableToRead() > 0 {
		return
	}

	_ = e.cfg.Endpoint.Stop()
	e.dc.SetMode(control.Paused)
	e.decWorker.WaitForIdle()
	e.setState(control.Finished)
}

func (e *Engine) setState(s control.PlayerState) {
	e.state.Store(s)
	if e.cfg.OnStateChange != nil {
		e.cfg.OnStateChange(s)
	}
}

func (e *Engine) fail(err error) {
	e.lastErrMu.Lock()
	e.lastErr = err.Error()
	e.lastErrMu.Unlock()
	e.setState(control.ErrorState)
	e.cfg.OnError(err)
}

// ensureEndpointInitialized negotiates the device format and starts
// the render worker on the first call; subsequent calls are no-ops.
func (e *Engine) ensureEndpointInitialized() error {
	if e.renderWorker != nil {
		return nil
	}

	ef := format.EndpointFormat{
		SampleRate: e.cfg.SampleRate,
		Channels:   e.cfg.Channels,
		Sample:     e.cfg.Sample,
	}
	if e.cfg.Sample == format.Pcm16 {
		ef.BitsPerSample = 16
	} else {
		ef.BitsPerSample = 32
	}
	ef.BlockAlign = (ef.BitsPerSample / 8) * e.cfg.Channels

	bufferFrames, err := e.cfg.Endpoint.Initialize(true, ef)
	if err != nil {
		return fmt.Errorf("engine: endpoint initialize: %w", err)
	}
	e.bufferFrames = bufferFrames

	e.renderWorker = render.New(e.cfg.Endpoint, e.ringBuf, e.cfg.Sample, e.cfg.Channels, bufferFrames)
	e.workersWG.Add(1)
	go func() {
		defer e.workersWG.Done()
		e.renderWorker.Run()
	}()
	return nil
}

// prime blocks the engine thread until the ring holds at least
// thresholdFrames, or (when allowEmpty) until it holds anything at all
// or a short budget elapses. There is no overall deadline beyond that:
// on a Running decoder and a live source, priming always completes.
func (e *Engine) prime(thresholdFrames int, allowEmpty bool) {
	if allowEmpty {
		deadline := time.Now().Add(50 * time.Millisecond)
		for {
			avail := e.ringBuf.AvailableToRead()
			if avail >= thresholdFrames || avail > 0 || time.Now().After(deadline) {
				return
			}
			time.Sleep(primePollInterval)
		}
	}
	for e.ringBuf.AvailableToRead() < thresholdFrames {
		time.Sleep(primePollInterval)
	}
}

func (e *Engine) doPlay() {
	if e.state.Load() == control.Playing {
		return
	}
	e.setState(control.Starting)

	if err := e.ensureEndpointInitialized(); err != nil {
		e.fail(err)
		return
	}
	if e.renderWorker != nil {
		e.renderWorker.Resume()
	}

	e.dc.SetMode(control.Running)
	e.prime(e.cfg.SampleRate/5, false)

	if err := e.cfg.Endpoint.Start(); err != nil {
		e.fail(fmt.Errorf("engine: endpoint start: %w", err))
		return
	}
	e.setState(control.Playing)
}

func (e *Engine) doPause() {
	if e.state.Load() != control.Playing {
		return
	}
	if err := e.cfg.Endpoint.Stop(); err != nil {
		e.fail(fmt.Errorf("engine: endpoint stop: %w", err))
		return
	}
	if e.renderWorker != nil {
		e.renderWorker.Pause()
	}
	e.dc.SetMode(control.Paused)
	e.setState(control.StatePaused)
}

func (e *Engine) doResume() {
	if e.state.Load() != control.StatePaused {
		return
	}
	e.setState(control.Starting)

	if err := e.ensureEndpointInitialized(); err != nil {
		e.fail(err)
		return
	}
	if e.renderWorker != nil {
		e.renderWorker.Resume()
	}

	e.dc.SetMode(control.Running)
	e.prime(e.cfg.SampleRate/20, true)

	if err := e.cfg.Endpoint.Start(); err != nil {
		e.fail(fmt.Errorf("engine: endpoint start: %w", err))
		return
	}
	e.setState(control.Playing)
}

func (e *Engine) doStop() {
	_ = e.cfg.Endpoint.Stop()
	if e.renderWorker != nil {
		e.renderWorker.Pause()
		e.renderWorker.ResetRenderedFrames()
	}
	e.renderFrameOffset.Store(0)
	e.dc.SetMode(control.Stopped)
	e.decWorker.WaitForIdle()
	// Both ring sides are now provably idle: the decoder worker has
	// published idle (non-Running mode observed), and the render
	// worker's Pause above blocked until any in-flight cycle finished
	// and none will start again until Resume.
	e.ringBuf.Reset()
	e.dc.BumpEpoch()
	e.dc.SetSourceExhausted(false)
	e.dc.SetTargetFrame(-1)
	e.setState(control.StateStopped)
}

// seekInternal performs the shared portion of Seek and Replay: stop
// the endpoint, idle the decoder, discard the stale epoch, and publish
// a fresh target. It returns the state observed before the seek began.
func (e *Engine) seekInternal(seconds float64) control.PlayerState {
	prior := e.state.Load()
	e.setState(control.Seeking)

	if seconds < 0 {
		seconds = 0
	}
	target := int64(seconds * float64(e.cfg.SampleRate))

	_ = e.cfg.Endpoint.Stop()
	if e.renderWorker != nil {
		e.renderWorker.Pause()
		e.renderWorker.ResetRenderedFrames()
	}
	e.renderFrameOffset.Store(target)

	e.dc.SetMode(control.Paused)
	e.decWorker.WaitForIdle()
	// As in doStop: the decoder has published idle and the render
	// worker's Pause guarantees no cycle is in flight or will start,
	// so both sides of the ring are provably idle here.
	e.ringBuf.Reset()

	e.dc.BumpEpoch()
	e.dc.SetSourceExhausted(false)
	e.dc.SetTargetFrame(target)

	return prior
}

// resumePlaybackAfterSeek re-primes and restarts the endpoint, the
// tail shared by both Seek's "was playing" branch and Replay.
func (e *Engine) resumePlaybackAfterSeek() {
	if err := e.ensureEndpointInitialized(); err != nil {
		e.fail(err)
		return
	}
	if e.renderWorker != nil {
		e.renderWorker.Resume()
	}
	e.dc.SetMode(control.Running)
	e.prime(e.cfg.SampleRate/5, false)

	if err := e.cfg.Endpoint.Start(); err != nil {
		e.fail(fmt.Errorf("engine: endpoint start: %w", err))
		return
	}
	e.setState(control.Playing)
}

func (e *Engine) doSeek(seconds float64) {
	prior := e.seekInternal(seconds)
	if prior == control.StatePaused {
		e.dc.SetMode(control.Paused)
		e.setState(control.StatePaused)
		return
	}
	e.resumePlaybackAfterSeek()
}

func (e *Engine) doReplay() {
	e.seekInternal(0)
	e.resumePlaybackAfterSeek()
}

func (e *Engine) doQuit() {
	e.dc.SetMode(control.Quit)
	e.dc.BumpEpoch()

	_ = e.cfg.Endpoint.Stop()

	<-e.decWorker.Done()
	if e.renderWorker != nil {
		e.renderWorker.Stop()
	}
	_ = e.cfg.Endpoint.Close()

	e.workersWG.Wait()
	e.queue.close()

	e.setState(control.StateStopped)
}
