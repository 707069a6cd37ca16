// ABOUTME: Entry point for the playback engine demo binary
// ABOUTME: Parses CLI flags and drives an Engine instance through a playback cycle
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tfhammond/tomplayer/internal/control"
	"github.com/tfhammond/tomplayer/internal/endpoint"
	"github.com/tfhammond/tomplayer/internal/format"
	"github.com/tfhammond/tomplayer/pkg/engine"
	"github.com/tfhammond/tomplayer/pkg/source"
)

const (
	defaultSampleRate = 48000
	defaultChannels   = 2
)

var (
	repeat      = flag.Int("repeat", 1, "Number of times to play the tone")
	seconds     = flag.Float64("seconds", 3.0, "Duration of the generated tone, in seconds")
	frequency   = flag.Float64("frequency", 440.0, "Tone frequency in Hz")
	stress      = flag.Bool("stress", false, "Run a rapid Play/Pause/Seek stress sequence instead of a plain playthrough")
	engineSmoke = flag.Bool("engine_smoke", false, "Drive the engine against an in-process mock endpoint, no audio hardware required")
	help        = flag.Bool("help", false, "Show this message")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "  --repeat N          play the tone N times (default 1)")
		fmt.Fprintln(os.Stderr, "  --seconds S         tone duration in seconds (default 3.0)")
		fmt.Fprintln(os.Stderr, "  --frequency F       tone frequency in Hz (default 440.0)")
		fmt.Fprintln(os.Stderr, "  --stress            run a rapid play/pause/seek stress sequence")
		fmt.Fprintln(os.Stderr, "  --engine_smoke      use an in-process mock endpoint, no audio hardware")
		fmt.Fprintln(os.Stderr, "  --help              show this message")
	}
	flag.Parse()

	if *help {
		flag.Usage()
		os.Exit(0)
	}

	if *seconds <= 0 {
		fmt.Fprintln(os.Stderr, "playcore-demo: --seconds must be positive")
		os.Exit(1)
	}
	if *frequency <= 0 {
		fmt.Fprintln(os.Stderr, "playcore-demo: --frequency must be positive")
		os.Exit(1)
	}
	if *repeat < 1 {
		fmt.Fprintln(os.Stderr, "playcore-demo: --repeat must be at least 1")
		os.Exit(1)
	}

	os.Exit(run())
}

func run() int {
	sampleRate := defaultSampleRate
	channels := defaultChannels

	tone := source.NewSine(sampleRate, channels, *frequency, 0.2, *seconds)

	var ep endpoint.Adapter
	var mock *endpoint.Mock
	if *engineSmoke {
		bufferFrames := sampleRate / 100
		mock = endpoint.NewMock(bufferFrames, channels, bufferFrames)
		ep = mock
	} else {
		ep = endpoint.NewOto()
	}

	tui := NewPlaybackTUI()

	cfg := engine.Config{
		SampleRate: sampleRate,
		Channels:   channels,
		Sample:     format.Float32,
		Endpoint:   ep,
		Source:     tone,
		OnStateChange: func(s control.PlayerState) {
			log.Printf("engine state -> %s", s)
		},
		OnError: func(err error) {
			log.Printf("engine error: %v", err)
		},
	}

	eng, err := engine.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "playcore-demo: failed to initialize engine: %v\n", err)
		return 1
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	tuiDone := make(chan struct{})
	go func() {
		defer close(tuiDone)
		if err := tui.Start("playcore-demo"); err != nil {
			log.Printf("tui exited: %v", err)
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if *stress {
			runStress(eng, mock)
		} else {
			runPlaythrough(eng, mock, *repeat, *seconds)
		}
	}()

	statsDone := make(chan struct{})
	go func() {
		defer close(statsDone)
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				tui.Update(eng.Status())
			case <-done:
				tui.Update(eng.Status())
				return
			}
		}
	}()

	select {
	case <-done:
	case <-sigChan:
		log.Printf("shutdown signal received")
	case <-tui.QuitChan():
		log.Printf("quit requested from tui")
	}

	eng.Quit()
	<-statsDone
	tui.Stop()
	<-tuiDone

	return 0
}

// runPlaythrough plays the tone once, waits for it to finish or for the
// requested duration to elapse repeat times (via Replay), then stops.
func runPlaythrough(eng *engine.Engine, mock *endpoint.Mock, repeat int, seconds float64) {
	eng.Play()
	waitForNonStarting(eng, 2*time.Second)

	for i := 0; i < repeat; i++ {
		pump(eng, mock, time.Duration(seconds*float64(time.Second))+500*time.Millisecond)
		if i < repeat-1 {
			eng.Replay()
			waitForNonStarting(eng, 2*time.Second)
		}
	}

	eng.Stop()
	waitForState(eng, engine.Stopped, time.Second)
}

// runStress exercises the transition table with a rapid sequence of
// Play/Pause/Resume/Seek/Replay commands, the way an interactive client
// might under user-driven mashing of controls.
func runStress(eng *engine.Engine, mock *endpoint.Mock) {
	eng.Play()
	pump(eng, mock, 300*time.Millisecond)

	eng.Pause()
	pump(eng, mock, 100*time.Millisecond)

	eng.Resume()
	pump(eng, mock, 300*time.Millisecond)

	eng.Seek(1.0)
	pump(eng, mock, 300*time.Millisecond)

	eng.Pause()
	pump(eng, mock, 100*time.Millisecond)

	eng.Seek(0.5)
	pump(eng, mock, 100*time.Millisecond)

	eng.Replay()
	pump(eng, mock, 300*time.Millisecond)

	eng.Stop()
	waitForState(eng, engine.Stopped, time.Second)
}

// pump keeps a mock endpoint's simulated hardware clock advancing for
// the given duration; a real endpoint drives itself and needs no such
// pump.
func pump(eng *engine.Engine, mock *endpoint.Mock, d time.Duration) {
	if mock == nil {
		time.Sleep(d)
		return
	}
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		mock.Tick()
		time.Sleep(5 * time.Millisecond)
	}
}

func waitForState(eng *engine.Engine, want control.PlayerState, within time.Duration) {
	deadline := time.Now().Add(within)
	for eng.GetState() != want {
		if time.Now().After(deadline) {
			return
		}
		time.Sleep(time.Millisecond)
	}
}

func waitForNonStarting(eng *engine.Engine, within time.Duration) {
	deadline := time.Now().Add(within)
	for eng.GetState() == control.Starting {
		if time.Now().After(deadline) {
			return
		}
		time.Sleep(time.Millisecond)
	}
}
