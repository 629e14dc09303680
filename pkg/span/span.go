// Package span records named timing intervals around supervised work.
//
// Spans nest through [context.Context]: starting a span under a context
// that already carries one makes the new span its child, both in the
// local summary and in the exported OpenTelemetry trace. The registry
// aggregates durations per name so a session can end with a compact
// timing summary.
package span

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Registry aggregates span durations for one session.
type Registry struct {
	tracer trace.Tracer
	stats  map[string]*stat
	mu     sync.Mutex
}

type stat struct {
	total time.Duration
	min   time.Duration
	max   time.Duration
	count int
}

// NewRegistry creates an empty [Registry].
func NewRegistry() *Registry {
	return &Registry{
		tracer: otel.Tracer("krun"),
		stats:  make(map[string]*stat),
	}
}

// Span is one open interval. It must be ended exactly once.
type Span struct {
	start time.Time
	reg   *Registry
	otel  trace.Span
	name  string
}

// Start opens a span named name. The returned context carries the span, so
// spans started under it become children in the exported trace.
func (r *Registry) Start(ctx context.Context, name string, attrs ...trace.SpanStartOption) (context.Context, *Span) {
	ctx, otelSpan := r.tracer.Start(ctx, name, attrs...)

	return ctx, &Span{
		reg:   r,
		name:  name,
		start: time.Now(),
		otel:  otelSpan,
	}
}

// End closes the span and returns its duration.
func (s *Span) End() time.Duration {
	dur := time.Since(s.start)
	s.otel.End()
	s.reg.record(s.name, dur)

	return dur
}

func (r *Registry) record(name string, dur time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.stats[name]
	if !ok {
		st = &stat{min: dur, max: dur}
		r.stats[name] = st
	}

	st.count++
	st.total += dur
	if dur < st.min {
		st.min = dur
	}
	if dur > st.max {
		st.max = dur
	}
}

// Summary renders a per-name timing table, slowest total first. It returns
// an empty string when no spans were recorded.
func (r *Registry) Summary() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.stats) == 0 {
		return ""
	}

	names := make([]string, 0, len(r.stats))
	for name := range r.stats {
		names = append(names, name)
	}

	sort.Slice(names, func(i, j int) bool {
		return r.stats[names[i]].total > r.stats[names[j]].total
	})

	var b strings.Builder

	b.WriteString("span summary (total/count/min/max):\n")

	for _, name := range names {
		st := r.stats[name]
		fmt.Fprintf(&b, "  %8.2fs %4d %8.2fs %8.2fs  %s\n",
			st.total.Seconds(), st.count, st.min.Seconds(), st.max.Seconds(), name)
	}

	return strings.TrimRight(b.String(), "\n")
}
