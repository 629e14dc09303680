package execs

import (
	"fmt"
	"unicode/utf8"

	"github.com/kballard/go-shellquote"
)

// CommandError reports a child process that exited with a nonzero status.
type CommandError struct {
	// Output holds the captured stdout text gathered before the failure.
	// It is only populated by the captured execution mode and may be empty.
	Output string
	// Args is the argument vector of the failed command.
	Args []string
	// Code is the child's exit code, propagated verbatim.
	Code int
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %q: exit status %d", shellquote.Join(e.Args...), e.Code)
}

// shortCommand renders an argument vector as a shell-quoted string,
// truncated on a rune boundary for log and span tags.
func shortCommand(args []string) string {
	const maxLen = 80

	s := shellquote.Join(args...)
	if len(s) <= maxLen {
		return s
	}

	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}

	return s[:cut]
}
