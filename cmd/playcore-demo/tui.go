// ABOUTME: Demo driver's live status display
// ABOUTME: Real-time engine status using bubbletea, styled with lipgloss
package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tfhammond/tomplayer/pkg/engine"
)

// PlaybackTUI displays a running Engine's status snapshot, refreshed
// on a fixed tick, the same shape as the reference server's client
// list display.
type PlaybackTUI struct {
	program  *tea.Program
	updates  chan engine.Status
	quitChan chan struct{}
}

// NewPlaybackTUI constructs a TUI that has not yet been started.
func NewPlaybackTUI() *PlaybackTUI {
	return &PlaybackTUI{
		updates:  make(chan engine.Status, 10),
		quitChan: make(chan struct{}, 1),
	}
}

type tickMsg time.Time
type statusMsg engine.Status

type tuiModel struct {
	label     string
	status    engine.Status
	startTime time.Time
	quitting  bool
	quitChan  chan struct{}
}

func tickEvery() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tickEvery()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			m.quitting = true
			select {
			case m.quitChan <- struct{}{}:
			default:
			}
			return m, tea.Quit
		}

	case tickMsg:
		return m, tickEvery()

	case statusMsg:
		m.status = engine.Status(msg)
	}

	return m, nil
}

func (m tuiModel) View() string {
	if m.quitting {
		return "Stopping playback...\n"
	}

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).MarginBottom(1)
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	errStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))

	var b strings.Builder
	b.WriteString(titleStyle.Render(m.label))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("State:    "))
	b.WriteString(valueStyle.Render(m.status.State.String()))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Position: "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%.2fs", m.status.PositionSeconds)))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Buffered: "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%.2fs", m.status.BufferedSeconds)))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Decode:   "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("mode=%s epoch=%d", m.status.DecodeMode, m.status.DecodeEpoch)))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Underruns:"))
	b.WriteString(valueStyle.Render(fmt.Sprintf(" %d wakes, %d frames", m.status.UnderrunWakes, m.status.UnderrunFrames)))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Dropped:  "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%d frames", m.status.DroppedFrames)))
	b.WriteString("\n")

	if m.status.LastError != "" {
		b.WriteString(errStyle.Render("Error: " + m.status.LastError))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Faint(true).Render("Press 'q' or Ctrl+C to quit"))

	return b.String()
}

// Start runs the TUI until the program quits (user keypress or Stop).
func (t *PlaybackTUI) Start(label string) error {
	m := tuiModel{
		label:     label,
		startTime: time.Now(),
		quitChan:  t.quitChan,
	}
	t.program = tea.NewProgram(m, tea.WithAltScreen())

	go func() {
		for status := range t.updates {
			if t.program != nil {
				t.program.Send(statusMsg(status))
			}
		}
	}()

	_, err := t.program.Run()
	return err
}

// Update pushes a fresh status snapshot to the TUI, dropping it if the
// display is behind rather than blocking the caller.
func (t *PlaybackTUI) Update(status engine.Status) {
	select {
	case t.updates <- status:
	default:
	}
}

// Stop tears the TUI down.
func (t *PlaybackTUI) Stop() {
	if t.program != nil {
		t.program.Quit()
	}
	close(t.updates)
}

// QuitChan reports when the user asked to quit from within the TUI.
func (t *PlaybackTUI) QuitChan() <-chan struct{} { return t.quitChan }
