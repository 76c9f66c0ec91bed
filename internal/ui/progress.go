// Package ui provides terminal feedback for long-running engine passes.
package ui

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Progress shows a spinner while the engine analyzes, plans, or optimizes.
// A disabled indicator (quiet mode, non-interactive output) is a no-op, so
// callers never need to guard their Start/Done calls.
type Progress struct {
	out     io.Writer
	enabled bool
	spinner *spinner
}

// NewProgress creates an indicator writing to out. Pass enabled=false for
// quiet mode or when out is not a terminal.
func NewProgress(out io.Writer, enabled bool) *Progress {
	return &Progress{out: out, enabled: enabled}
}

// Start begins the spinner animation with the given message. A running
// spinner is replaced.
func (p *Progress) Start(message string) {
	if !p.enabled {
		return
	}
	if p.spinner != nil {
		p.spinner.stop()
	}
	p.spinner = newSpinner(p.out, message)
	p.spinner.start()
}

// Done stops the spinner and prints a success line.
func (p *Progress) Done(message string) {
	if p.spinner == nil {
		return
	}
	p.spinner.stop()
	p.spinner = nil
	fmt.Fprintf(p.out, "\r\033[K✓ %s\n", message)
}

// Fail stops the spinner and prints a failure line.
func (p *Progress) Fail(message string) {
	if p.spinner == nil {
		return
	}
	p.spinner.stop()
	p.spinner = nil
	fmt.Fprintf(p.out, "\r\033[K✗ %s\n", message)
}

type spinner struct {
	out     io.Writer
	message string
	frames  []string

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func newSpinner(out io.Writer, message string) *spinner {
	return &spinner{
		out:     out,
		message: message,
		frames:  []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

func (s *spinner) start() {
	go s.animate()
}

func (s *spinner) stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
}

func (s *spinner) animate() {
	defer close(s.doneCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	frame := 0
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			fmt.Fprintf(s.out, "\r%s %s", s.frames[frame%len(s.frames)], s.message)
			frame++
		}
	}
}
