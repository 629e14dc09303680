package execs

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"strings"
)

// LineFunc receives successive lines from one process stream, in the order
// the child wrote them, with line terminators stripped. After the stream is
// exhausted it is invoked one final time with eof set (and an empty line).
type LineFunc func(line string, eof bool)

const pumpBufferSize = 64 * 1024

// pumpLines reads r until end-of-stream, invoking fn once per line and then
// exactly once with eof set. Lines may be arbitrarily long; no length cap
// is applied. If the read fails mid-stream, the remainder is drained so a
// child blocked writing into a full pipe can still exit. A panicking
// callback is recovered per call, so a failure on one stream cannot
// suppress delivery on the other, nor the final eof marker.
func pumpLines(r io.Reader, fn LineFunc) {
	br := bufio.NewReaderSize(r, pumpBufferSize)

	for {
		line, err := br.ReadString('\n')
		if line != "" {
			line = strings.TrimSuffix(line, "\n")
			line = strings.TrimSuffix(line, "\r")
			deliver(fn, line, false)
		}

		if err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Debug("stream pump stopped", slog.Any("err", err))
				_, _ = io.Copy(io.Discard, br)
			}

			break
		}
	}

	deliver(fn, "", true)
}

func deliver(fn LineFunc, line string, eof bool) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("line callback panicked",
				slog.Any("panic", p),
				slog.Bool("eof", eof),
			)
		}
	}()

	fn(line, eof)
}
