package execs_test

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/krun/pkg/execs"
)

// lineRecorder collects callback invocations from one stream pump.
type lineRecorder struct {
	mu    sync.Mutex
	lines []string
	eofs  int
}

func (lr *lineRecorder) fn(line string, eof bool) {
	lr.mu.Lock()
	defer lr.mu.Unlock()

	if eof {
		lr.eofs++

		return
	}

	lr.lines = append(lr.lines, line)
}

func (lr *lineRecorder) snapshot() ([]string, int) {
	lr.mu.Lock()
	defer lr.mu.Unlock()

	lines := make([]string, len(lr.lines))
	copy(lines, lr.lines)

	return lines, lr.eofs
}

func discardLines(string, bool) {}

func TestLaunch_StdoutLineOrder(t *testing.T) {
	t.Parallel()

	var out, errs lineRecorder

	h, err := execs.Launch(t.Context(), execs.Spec{
		Args: []string{"sh", "-c", "echo a; echo b; echo c"},
	}, out.fn, errs.fn, nil)
	require.NoError(t, err)
	require.NoError(t, h.Wait())

	lines, eofs := out.snapshot()
	assert.Equal(t, []string{"a", "b", "c"}, lines)
	assert.Equal(t, 1, eofs, "end-of-stream marker must be delivered exactly once")

	errLines, errEOFs := errs.snapshot()
	assert.Empty(t, errLines)
	assert.Equal(t, 1, errEOFs)
}

func TestLaunch_StderrSeparateStream(t *testing.T) {
	t.Parallel()

	var out, errs lineRecorder

	h, err := execs.Launch(t.Context(), execs.Spec{
		Args: []string{"sh", "-c", "echo out; echo err >&2"},
	}, out.fn, errs.fn, nil)
	require.NoError(t, err)
	require.NoError(t, h.Wait())

	outLines, _ := out.snapshot()
	errLines, _ := errs.snapshot()
	assert.Equal(t, []string{"out"}, outLines)
	assert.Equal(t, []string{"err"}, errLines)
}

func TestLaunch_InputPayload(t *testing.T) {
	t.Parallel()

	var out lineRecorder

	h, err := execs.Launch(t.Context(), execs.Spec{
		Args:  []string{"cat"},
		Input: []byte("hello"),
	}, out.fn, discardLines, nil)
	require.NoError(t, err)
	require.NoError(t, h.Wait())

	lines, _ := out.snapshot()
	assert.Equal(t, []string{"hello"}, lines)
}

func TestLaunch_LinesLongerThanBufferDelivered(t *testing.T) {
	t.Parallel()

	var out lineRecorder

	// One 2 MiB line followed by a short one. The pump must deliver both
	// intact and keep draining so the child can exit.
	h, err := execs.Launch(t.Context(), execs.Spec{
		Args: []string{"sh", "-c", `head -c 2097152 /dev/zero | tr '\0' x; echo; echo marker`},
	}, out.fn, discardLines, nil)
	require.NoError(t, err)
	require.NoError(t, h.Wait())

	lines, eofs := out.snapshot()
	require.Len(t, lines, 2)
	assert.Len(t, lines[0], 2*1024*1024)
	assert.Equal(t, "marker", lines[1])
	assert.Equal(t, 1, eofs)
}

func TestLaunch_NoInputMeansImmediateEOF(t *testing.T) {
	t.Parallel()

	var out lineRecorder

	// cat with no configured stdin reads the null device and exits at once.
	h, err := execs.Launch(t.Context(), execs.Spec{
		Args: []string{"cat"},
	}, out.fn, discardLines, nil)
	require.NoError(t, err)
	require.NoError(t, h.Wait())

	lines, eofs := out.snapshot()
	assert.Empty(t, lines)
	assert.Equal(t, 1, eofs)
	assert.Equal(t, 0, h.ExitCode())
}

func TestLaunch_StdinConflict(t *testing.T) {
	t.Parallel()

	_, err := execs.Launch(t.Context(), execs.Spec{
		Args:  []string{"cat"},
		Input: []byte("x"),
		Stdin: io.LimitReader(nil, 0),
	}, discardLines, discardLines, nil)
	require.ErrorIs(t, err, execs.ErrStdinConflict)
}

func TestLaunch_EmptyArgs(t *testing.T) {
	t.Parallel()

	_, err := execs.Launch(t.Context(), execs.Spec{}, discardLines, discardLines, nil)
	require.ErrorIs(t, err, execs.ErrEmptyArgs)
}

func TestLaunch_SpawnFailure(t *testing.T) {
	t.Parallel()

	_, err := execs.Launch(t.Context(), execs.Spec{
		Args: []string{"definitely-not-a-real-binary-krun"},
	}, discardLines, discardLines, nil)
	require.ErrorIs(t, err, execs.ErrSpawn)
}

func TestLaunch_CompletionAfterBothPumps(t *testing.T) {
	t.Parallel()

	var (
		eofs       atomic.Int32
		completed  atomic.Int32
		eofsAtFire atomic.Int32
	)

	countEOF := func(_ string, eof bool) {
		if eof {
			eofs.Add(1)
		}
	}

	done := make(chan struct{})

	h, err := execs.Launch(t.Context(), execs.Spec{
		Args: []string{"sh", "-c", "echo out; echo err >&2"},
	}, countEOF, countEOF, func(_ *execs.Handle) {
		eofsAtFire.Store(eofs.Load())
		if completed.Add(1) == 1 {
			close(done)
		}
	})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("completion callback never fired")
	}

	require.NoError(t, h.Wait())

	assert.Equal(t, int32(2), eofsAtFire.Load(),
		"completion must fire only after both pumps delivered end-of-stream")
	assert.Equal(t, int32(1), completed.Load(), "completion must fire exactly once")
}

func TestLaunch_NoPipesNoCompletion(t *testing.T) {
	t.Parallel()

	var completed atomic.Int32

	h, err := execs.Launch(t.Context(), execs.Spec{
		Args:   []string{"sh", "-c", "true"},
		Stdout: io.Discard,
		Stderr: io.Discard,
	}, discardLines, discardLines, func(_ *execs.Handle) {
		completed.Add(1)
	})
	require.NoError(t, err)
	require.NoError(t, h.Wait())

	// With no piped streams there are no pumps to join, so the completion
	// callback is never invoked.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), completed.Load())
}

func TestHandle_ExitCode(t *testing.T) {
	t.Parallel()

	h, err := execs.Launch(t.Context(), execs.Spec{
		Args: []string{"sh", "-c", "exit 3"},
	}, discardLines, discardLines, nil)
	require.NoError(t, err)

	err = h.Wait()
	require.Error(t, err)
	assert.Equal(t, 3, h.ExitCode())
}

func TestHandle_WaitIdempotent(t *testing.T) {
	t.Parallel()

	h, err := execs.Launch(t.Context(), execs.Spec{
		Args: []string{"sh", "-c", "exit 1"},
	}, discardLines, discardLines, nil)
	require.NoError(t, err)

	first := h.Wait()
	second := h.Wait()
	assert.Equal(t, first, second)
	assert.Equal(t, 1, h.ExitCode())
}

func TestLaunch_CallbackPanicIsolated(t *testing.T) {
	t.Parallel()

	var errs lineRecorder

	panicky := func(line string, eof bool) {
		if !eof {
			panic("boom: " + line)
		}
	}

	h, err := execs.Launch(t.Context(), execs.Spec{
		Args: []string{"sh", "-c", "echo a; echo b >&2; echo c >&2"},
	}, panicky, errs.fn, nil)
	require.NoError(t, err)
	require.NoError(t, h.Wait())

	// The panicking stdout callback must not corrupt stderr delivery.
	lines, eofs := errs.snapshot()
	assert.Equal(t, []string{"b", "c"}, lines)
	assert.Equal(t, 1, eofs)
}

func TestLaunch_ContextCancelKillsChild(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())

	h, err := execs.Launch(ctx, execs.Spec{
		Args: []string{"sleep", "60"},
	}, discardLines, discardLines, nil)
	require.NoError(t, err)

	cancel()

	waitDone := make(chan error, 1)
	go func() { waitDone <- h.Wait() }()

	select {
	case err := <-waitDone:
		require.Error(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("child survived context cancellation")
	}
}
