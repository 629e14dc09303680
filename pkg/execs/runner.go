package execs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/macropower/krun/pkg/log"
	"github.com/macropower/krun/pkg/span"
)

// Runner is the context for supervised command execution. It stamps every
// invocation with a fresh track, wires the stream pumps to the session log,
// and records a timing span per command.
type Runner struct {
	session *log.Session
	spans   *span.Registry
	seq     Sequencer
	verbose bool
}

// RunnerOpt is a functional option for configuring a [Runner].
type RunnerOpt func(*Runner)

// WithVerbose echoes captured stdout to the session log even without an
// explicit reveal.
func WithVerbose(v bool) RunnerOpt {
	return func(r *Runner) {
		r.verbose = v
	}
}

// WithSpans uses the given registry instead of a private one, so multiple
// components can share one timing summary.
func WithSpans(reg *span.Registry) RunnerOpt {
	return func(r *Runner) {
		r.spans = reg
	}
}

// NewRunner creates a [Runner] logging to session.
func NewRunner(session *log.Session, opts ...RunnerOpt) *Runner {
	r := &Runner{
		session: session,
		spans:   span.NewRegistry(),
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Session returns the runner's log sink.
func (r *Runner) Session() *log.Session {
	return r.session
}

// Spans returns the runner's span registry.
func (r *Runner) Spans() *span.Registry {
	return r.spans
}

// Check runs spec synchronously, logging both streams, and returns a
// [*CommandError] if the child exits nonzero.
func (r *Runner) Check(ctx context.Context, spec Spec) error {
	track := r.seq.Next()
	fn := r.lineLogger(track)

	return r.runCommand(ctx, track, "Running", "ran", fn, fn, spec)
}

// Output runs spec synchronously and returns the child's stdout, joined
// and trimmed. stderr is logged as usual; stdout is captured, and echoed
// to the session log only when reveal or the runner's verbose flag is set.
// On nonzero exit the returned [*CommandError] carries whatever stdout
// text had been gathered. The spec must leave stdout piped; overriding it
// returns [ErrStdoutRedirected].
func (r *Runner) Output(ctx context.Context, spec Spec, reveal bool) (string, error) {
	if spec.Stdout != nil {
		return "", ErrStdoutRedirected
	}

	track := r.seq.Next()
	capture := NewCapture()

	outFn := capture.Line
	if reveal || r.verbose {
		outFn = r.captureLogger(track, capture)
	}

	var cmdErr *CommandError

	err := r.runCommand(ctx, track, "Capturing", "captured", outFn, r.lineLogger(track), spec)
	if err != nil && !errors.As(err, &cmdErr) {
		return "", err
	}

	// Process exit can be observed before the stdout pump has flushed its
	// final buffered lines; block until end-of-stream was recorded.
	err = capture.Wait(ctx)
	if err != nil {
		return "", fmt.Errorf("await captured output: %w", err)
	}

	text := capture.Text()
	if cmdErr != nil {
		cmdErr.Output = text

		return "", cmdErr
	}

	return text, nil
}

// Start launches spec and returns immediately. Once both stream pumps have
// reached end-of-stream, a completion watcher logs the observed exit code.
func (r *Runner) Start(ctx context.Context, spec Spec) (*Handle, error) {
	track := r.seq.Next()
	fn := r.lineLogger(track)

	r.session.Writef("%s Launching: %s", track, shortCommand(spec.Args))

	return r.launch(ctx, track, spec, fn, fn, func(h *Handle) {
		_ = h.Wait()

		if code := h.ExitCode(); code >= 0 {
			r.session.Writef("%s exit %d", track, code)
		}
	})
}

// Probe launches a best-effort diagnostic command, e.g. a version report
// at session start. Spawn failures are ignored; their absence is non-fatal.
func (r *Runner) Probe(ctx context.Context, args ...string) {
	_, err := r.Start(ctx, Spec{Args: args})
	if err != nil {
		log.WithContext(ctx).Debug("diagnostic probe failed",
			slog.String("command", shortCommand(args)),
			slog.Any("err", err),
		)
	}
}

// runCommand launches spec, blocks until the child exits and both pumps
// are done, and applies the shared exit protocol.
func (r *Runner) runCommand(ctx context.Context, track Track, verb1, verb2 string, outFn, errFn LineFunc, spec Spec) error {
	r.session.Writef("%s %s: %s", track, verb1, shortCommand(spec.Args))

	ctx, sp := r.spans.Start(ctx, fmt.Sprintf("%d %s", track, shortCommand(spec.Args)),
		trace.WithAttributes(
			attribute.Int64("track", int64(track)),
			attribute.String("command", shortCommand(spec.Args)),
		))

	h, err := r.launch(ctx, track, spec, outFn, errFn, nil)
	if err != nil {
		sp.End()

		return err
	}

	waitErr := h.Wait()
	spent := sp.End()

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		return fmt.Errorf("wait for %q: %w", spec.Args[0], waitErr)
	}

	if code := h.ExitCode(); code != 0 {
		r.session.Writef("%s exit %d in %.2f secs", track, code, spent.Seconds())

		return &CommandError{Args: spec.Args, Code: code}
	}

	// Sub-second successes are not logged, to reduce noise.
	if spent > time.Second {
		r.session.Writef("%s %s in %.2f secs", track, verb2, spent.Seconds())
	}

	return nil
}

// launch wraps [Launch], logging spawn failures under the track.
func (r *Runner) launch(ctx context.Context, track Track, spec Spec, outFn, errFn LineFunc, onComplete func(*Handle)) (*Handle, error) {
	h, err := Launch(ctx, spec, outFn, errFn, onComplete)
	if err != nil {
		r.session.Writef("%s %v", track, err)

		return nil, err
	}

	return h, nil
}

// lineLogger returns a [LineFunc] that writes every line to the session
// log under the track prefix.
func (r *Runner) lineLogger(track Track) LineFunc {
	prefix := track.Prefix()

	return func(line string, eof bool) {
		if !eof {
			r.session.WritePrefixed(prefix, line)
		}
	}
}

// captureLogger returns a [LineFunc] that both captures and logs.
func (r *Runner) captureLogger(track Track, c *Capture) LineFunc {
	logFn := r.lineLogger(track)

	return func(line string, eof bool) {
		c.Line(line, eof)
		logFn(line, eof)
	}
}
