package execs

import (
	"fmt"
	"sync/atomic"
)

// Track identifies a single invocation. Tracks are positive, strictly
// increasing, and never reused within a session.
type Track int64

// String renders the track as a status-line tag, e.g. "[7]".
func (t Track) String() string {
	return fmt.Sprintf("[%d]", int64(t))
}

// Prefix renders the track as a zero-padded log line prefix, e.g. "007".
func (t Track) Prefix() string {
	return fmt.Sprintf("%03d", int64(t))
}

// Sequencer issues tracks. The zero value is ready to use; the first call
// to Next returns 1, and each subsequent call returns exactly one more,
// even under concurrent callers.
type Sequencer struct {
	n atomic.Int64
}

// Next returns the next track.
func (s *Sequencer) Next() Track {
	return Track(s.n.Add(1))
}
