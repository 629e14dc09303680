package execs_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/krun/pkg/execs"
)

func TestCapture_Text(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		lines []string
		want  string
	}{
		"joins and trims": {
			lines: []string{"a", "b", "c"},
			want:  "a\nb\nc",
		},
		"trims surrounding whitespace": {
			lines: []string{"", "  hello  ", ""},
			want:  "hello",
		},
		"empty": {
			lines: nil,
			want:  "",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			c := execs.NewCapture()
			for _, line := range tc.lines {
				c.Line(line, false)
			}
			c.Line("", true)

			assert.Equal(t, tc.want, c.Text())
		})
	}
}

func TestCapture_WaitBlocksUntilEOF(t *testing.T) {
	t.Parallel()

	c := execs.NewCapture()

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	// No EOF yet: Wait must not return early.
	require.ErrorIs(t, c.Wait(ctx), context.DeadlineExceeded)

	c.Line("late", false)
	c.Line("", true)

	require.NoError(t, c.Wait(t.Context()))
	assert.Equal(t, []string{"late"}, c.Lines())
}

func TestCapture_EOFIdempotent(t *testing.T) {
	t.Parallel()

	c := execs.NewCapture()
	c.Line("x", false)
	c.Line("", true)

	// A second end-of-stream marker must be ignored, not panic.
	assert.NotPanics(t, func() { c.Line("", true) })
	require.NoError(t, c.Wait(t.Context()))
}

func TestCapture_LinesCopy(t *testing.T) {
	t.Parallel()

	c := execs.NewCapture()
	c.Line("a", false)

	lines := c.Lines()
	lines[0] = "mutated"

	assert.Equal(t, []string{"a"}, c.Lines())
}
