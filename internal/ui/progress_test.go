package ui

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"
)

// syncBuffer serializes writes from the spinner goroutine and the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestProgressDisabledIsSilent(t *testing.T) {
	var buf syncBuffer
	p := NewProgress(&buf, false)

	p.Start("analyzing tasks")
	p.Done("analysis complete")
	p.Fail("never shown")

	if got := buf.String(); got != "" {
		t.Errorf("disabled progress wrote %q", got)
	}
}

func TestProgressDoneWritesSuccessLine(t *testing.T) {
	var buf syncBuffer
	p := NewProgress(&buf, true)

	p.Start("planning 4 tasks")
	time.Sleep(250 * time.Millisecond)
	p.Done("plan ready")

	out := buf.String()
	if !strings.Contains(out, "planning 4 tasks") {
		t.Errorf("spinner frames missing from output: %q", out)
	}
	if !strings.Contains(out, "✓ plan ready") {
		t.Errorf("success line missing from output: %q", out)
	}
}

func TestProgressFailWritesFailureLine(t *testing.T) {
	var buf syncBuffer
	p := NewProgress(&buf, true)

	p.Start("optimizing")
	p.Fail("optimization failed")

	if out := buf.String(); !strings.Contains(out, "✗ optimization failed") {
		t.Errorf("failure line missing from output: %q", out)
	}
}

func TestProgressDoneWithoutStartIsNoop(t *testing.T) {
	var buf syncBuffer
	p := NewProgress(&buf, true)

	p.Done("nothing started")
	if got := buf.String(); got != "" {
		t.Errorf("unexpected output: %q", got)
	}
}
