package log_test

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/krun/pkg/log"
)

func TestSession_WriteFormats(t *testing.T) {
	t.Parallel()

	var buf strings.Builder

	s := log.NewSession(&buf)
	s.Write("Starting up")
	s.WritePrefixed("007", "captured line")
	s.Writef("exit %d in %.2f secs", 3, 1.5)

	out := buf.String()
	assert.Contains(t, out, " KRN | Starting up\n")
	assert.Contains(t, out, " 007 | captured line\n")
	assert.Contains(t, out, " KRN | exit 3 in 1.50 secs\n")

	// The history mirror holds the same lines.
	assert.Equal(t, out, s.Recent())
}

func TestSession_NilWriterKeepsHistory(t *testing.T) {
	t.Parallel()

	s := log.NewSession(nil)
	s.Write("only in history")

	assert.Contains(t, s.Recent(), "only in history")
}

func TestSession_ConcurrentWriters(t *testing.T) {
	t.Parallel()

	var buf strings.Builder

	s := log.NewSession(&buf)

	const (
		writers = 8
		lines   = 50
	)

	var wg sync.WaitGroup
	for w := range writers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			prefix := fmt.Sprintf("%03d", w+1)
			for i := range lines {
				s.WritePrefixed(prefix, fmt.Sprintf("line %d", i))
			}
		}()
	}

	wg.Wait()

	// Writes are serialized: every line is intact.
	out := strings.TrimRight(buf.String(), "\n")
	got := strings.Split(out, "\n")
	require.Len(t, got, writers*lines)

	for _, line := range got {
		assert.Regexp(t, `^\s*\d+\.\d \d{3} \| line \d+$`, line)
	}
}

func TestSession_RecentIsBounded(t *testing.T) {
	t.Parallel()

	s := log.NewSession(nil)
	for i := range 600 {
		s.Writef("line %d", i)
	}

	recent := s.Recent()
	assert.NotContains(t, recent, "| line 0\n", "oldest lines are evicted")
	assert.Contains(t, recent, "line 599")
}
