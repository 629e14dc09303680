// Package execs supervises external commands. It launches a child process,
// pumps its stdout/stderr streams line-by-line to callbacks, and joins on
// completion. The [Runner] builds three execution modes on top of [Launch]:
// checked (wait, error on nonzero exit), captured (wait, collect stdout),
// and fire-and-forget (return immediately, log the exit code later).
//
// Every invocation is stamped with a monotonically increasing track number,
// which prefixes all of its log lines for correlation.
package execs
