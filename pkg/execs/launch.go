package execs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
)

var (
	// ErrSpawn is returned when the child process could not be started,
	// e.g. the executable is missing or not permitted.
	ErrSpawn = errors.New("spawn")

	// ErrEmptyArgs is returned when a launch spec has no argument vector.
	ErrEmptyArgs = errors.New("empty argument vector")

	// ErrStdinConflict is returned when a launch spec carries both an input
	// payload and an explicit stdin reader.
	ErrStdinConflict = errors.New("stdin already configured")

	// ErrStdoutRedirected is returned when captured execution is requested
	// for a spec that overrides stdout, leaving no stream to capture.
	ErrStdoutRedirected = errors.New("stdout already configured")
)

// Spec describes a single child process launch.
type Spec struct {
	// Stdin overrides the child's input stream. Mutually exclusive with
	// Input. When neither is set, the child reads from the null device.
	Stdin io.Reader
	// Stdout overrides the child's output stream. When nil, stdout is
	// piped and pumped line-by-line to the out callback.
	Stdout io.Writer
	// Stderr overrides the child's error stream. When nil, stderr is
	// piped and pumped line-by-line to the err callback.
	Stderr io.Writer
	// Dir is the working directory. Empty means the caller's directory.
	Dir string
	// Args is the argument vector, executable first.
	Args []string
	// Env is the child's environment. Nil inherits the caller's.
	Env []string
	// Input is a payload written to the child's stdin pipe, which is then
	// closed, before Launch returns.
	Input []byte
}

// Handle is a started child process. It is returned by [Launch] before the
// child exits; the caller owns waiting and polling from then on.
type Handle struct {
	cmd      *exec.Cmd
	waitErr  error
	pumps    sync.WaitGroup
	waitOnce sync.Once
}

// Wait blocks until every stream pump has reached end-of-stream and the
// child has exited. It is safe to call from multiple goroutines; all of
// them observe the same result.
//
// Joining the pumps first keeps the underlying pipes open until the last
// buffered line has been delivered.
func (h *Handle) Wait() error {
	h.pumps.Wait()
	h.waitOnce.Do(func() {
		h.waitErr = h.cmd.Wait()
	})

	return h.waitErr
}

// ExitCode returns the child's exit code, or -1 if it has not been waited
// for yet (or was terminated by a signal).
func (h *Handle) ExitCode() int {
	if ps := h.cmd.ProcessState; ps != nil {
		return ps.ExitCode()
	}

	return -1
}

// Pid returns the child's process id.
func (h *Handle) Pid() int {
	return h.cmd.Process.Pid
}

// Signal sends sig to the child.
func (h *Handle) Signal(sig os.Signal) error {
	err := h.cmd.Process.Signal(sig)
	if err != nil {
		return fmt.Errorf("signal process %d: %w", h.Pid(), err)
	}

	return nil
}

// Launch spawns the child described by spec and starts one stream pump per
// piped stream. When onComplete is non-nil and at least one pump was
// started, a completion watcher joins every pump and then invokes
// onComplete exactly once. When no stream is piped, onComplete is never
// invoked; callers that redirect both streams must arrange their own
// completion signal.
//
// If spec carries an input payload, the full payload is written to the
// child's stdin pipe and the pipe is closed before Launch returns. The
// write can block briefly on a full pipe buffer.
//
// Launch returns without waiting for the child to exit.
func Launch(ctx context.Context, spec Spec, outFn, errFn LineFunc, onComplete func(*Handle)) (*Handle, error) {
	if len(spec.Args) == 0 {
		return nil, ErrEmptyArgs
	}
	if spec.Input != nil && spec.Stdin != nil {
		return nil, ErrStdinConflict
	}

	//nolint:gosec // G204: Subprocess launched with a potential tainted input or cmd arguments.
	cmd := exec.CommandContext(ctx, spec.Args[0], spec.Args[1:]...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env

	var stdin io.WriteCloser
	if spec.Input != nil {
		pipe, err := cmd.StdinPipe()
		if err != nil {
			return nil, fmt.Errorf("%w: stdin pipe: %w", ErrSpawn, err)
		}

		stdin = pipe
	} else if spec.Stdin != nil {
		cmd.Stdin = spec.Stdin
	}
	// A nil cmd.Stdin attaches the null device, so an unconfigured child
	// sees immediate end-of-input.

	var outPipe, errPipe io.ReadCloser

	if spec.Stdout != nil {
		cmd.Stdout = spec.Stdout
	} else {
		pipe, err := cmd.StdoutPipe()
		if err != nil {
			return nil, fmt.Errorf("%w: stdout pipe: %w", ErrSpawn, err)
		}

		outPipe = pipe
	}

	if spec.Stderr != nil {
		cmd.Stderr = spec.Stderr
	} else {
		pipe, err := cmd.StderrPipe()
		if err != nil {
			return nil, fmt.Errorf("%w: stderr pipe: %w", ErrSpawn, err)
		}

		errPipe = pipe
	}

	err := cmd.Start()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSpawn, err)
	}

	h := &Handle{cmd: cmd}

	pumps := 0
	for _, p := range []struct {
		pipe io.ReadCloser
		fn   LineFunc
	}{
		{outPipe, outFn},
		{errPipe, errFn},
	} {
		if p.pipe == nil {
			continue
		}

		pumps++
		h.pumps.Add(1)

		go func() {
			defer h.pumps.Done()
			pumpLines(p.pipe, p.fn)
		}()
	}

	if onComplete != nil && pumps > 0 {
		go func() {
			h.pumps.Wait()
			onComplete(h)
		}()
	}

	if stdin != nil {
		_, err := stdin.Write(spec.Input)
		if err != nil {
			slog.Debug("write stdin payload", slog.Any("err", err))
		}

		err = stdin.Close()
		if err != nil {
			slog.Debug("close stdin pipe", slog.Any("err", err))
		}
	}

	return h, nil
}
