package execs

import (
	"context"
	"strings"
	"sync"
)

// Capture accumulates lines delivered by a single stream pump. It records
// end-of-stream at most once, and exposes it as a closed channel rather
// than a sentinel value, so consumers block instead of polling.
type Capture struct {
	done  chan struct{}
	lines []string
	mu    sync.Mutex
	once  sync.Once
}

// NewCapture creates an empty [Capture].
func NewCapture() *Capture {
	return &Capture{done: make(chan struct{})}
}

// Line is a [LineFunc] that appends real lines and records end-of-stream.
func (c *Capture) Line(line string, eof bool) {
	if eof {
		c.once.Do(func() { close(c.done) })

		return
	}

	c.mu.Lock()
	c.lines = append(c.lines, line)
	c.mu.Unlock()
}

// Done returns a channel that is closed once end-of-stream was recorded.
func (c *Capture) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until end-of-stream was recorded, or ctx is done.
func (c *Capture) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Lines returns a copy of the captured lines so far.
func (c *Capture) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, len(c.lines))
	copy(out, c.lines)

	return out
}

// Text joins the captured lines and trims surrounding whitespace.
func (c *Capture) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return strings.TrimSpace(strings.Join(c.lines, "\n"))
}
