package log

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// DefaultPrefix tags session status lines that do not belong to a
// particular child process stream.
const DefaultPrefix = "KRN"

// defaultHistory is the number of session lines retained for Recent.
const defaultHistory = 500

// Session is the append-only log sink for one supervision session. Each
// line carries the elapsed session time and a short prefix, either
// [DefaultPrefix] for status lines or a track prefix for child output.
//
// Writes are serialized internally; stream pumps from concurrent
// invocations may call it without external locking. Every line is both
// written to the underlying writer and retained in a ring buffer for
// [Session.Recent].
type Session struct {
	start   time.Time
	w       io.Writer
	history *CircularBuffer
	mu      sync.Mutex
}

// NewSession creates a [Session] writing to w, typically the session
// logfile. A nil w retains history only.
func NewSession(w io.Writer) *Session {
	if w == nil {
		w = io.Discard
	}

	return &Session{
		start:   time.Now(),
		w:       w,
		history: NewCircularBuffer(defaultHistory),
	}
}

// Write appends a status line under [DefaultPrefix].
func (s *Session) Write(message string) {
	s.WritePrefixed(DefaultPrefix, message)
}

// Writef appends a formatted status line under [DefaultPrefix].
func (s *Session) Writef(format string, args ...any) {
	s.WritePrefixed(DefaultPrefix, fmt.Sprintf(format, args...))
}

// WritePrefixed appends one line under the given prefix.
func (s *Session) WritePrefixed(prefix, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	line := fmt.Sprintf("%6.1f %s | %s\n", time.Since(s.start).Seconds(), prefix, message)

	// Best effort: a failing logfile must not break the supervised run.
	_, _ = io.WriteString(s.w, line)
	_, _ = s.history.Write([]byte(line))
}

// Recent returns the retained tail of the session log as a single string.
func (s *Session) Recent() string {
	var b strings.Builder
	for _, entry := range s.history.Entries() {
		b.Write(entry)
	}

	return b.String()
}

// Elapsed returns the time since the session started.
func (s *Session) Elapsed() time.Duration {
	return time.Since(s.start)
}
