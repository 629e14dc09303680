package cli

import (
	"fmt"
	"io"
	"strings"

	shellwords "github.com/mattn/go-shellwords"
	"github.com/spf13/cobra"

	"github.com/macropower/krun/pkg/execs"
)

type ExecArgs struct {
	*RootArgs

	Cwd     string
	Input   string
	Capture bool
	Reveal  bool
	Detach  bool
	ShowLog bool
}

func NewExecArgs(rootArgs *RootArgs) *ExecArgs {
	return &ExecArgs{RootArgs: rootArgs}
}

func (ea *ExecArgs) AddFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&ea.Capture, "capture", false, "Capture stdout and print it on success")
	cmd.Flags().BoolVar(&ea.Reveal, "reveal", false, "Echo captured stdout to the session log")
	cmd.Flags().BoolVar(&ea.Detach, "detach", false, "Do not fail on nonzero exit; the exit code is only logged")
	cmd.Flags().StringVar(&ea.Cwd, "cwd", "", "Working directory for the command")
	cmd.Flags().StringVar(&ea.Input, "input", "", "Payload fed to the command's stdin ('-' reads krun's stdin)")
	cmd.Flags().BoolVar(&ea.ShowLog, "show-log", false, "Print the session log tail when done")
}

func NewExecCmd(ra *RootArgs) *cobra.Command {
	ea := NewExecArgs(ra)

	cmd := &cobra.Command{
		Use:   "exec [flags] -- COMMAND [ARG...]",
		Short: "Run one command under supervision",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(cmd, ea, args)
		},
	}
	ea.AddFlags(cmd)

	bindEnvVars(cmd)

	return cmd
}

func runExec(cmd *cobra.Command, ea *ExecArgs, args []string) error {
	ctx := cmd.Context()

	// A single quoted command string is split shell-style.
	if len(args) == 1 && strings.ContainsAny(args[0], " \t") {
		parsed, err := shellwords.Parse(args[0])
		if err != nil {
			return fmt.Errorf("parse command %q: %w", args[0], err)
		}

		args = parsed
	}

	s, err := openSession(ctx, ea.RootArgs)
	if err != nil {
		return err
	}
	defer s.close(ctx)

	spec := execs.Spec{Args: args, Dir: ea.Cwd}

	switch ea.Input {
	case "":
	case "-":
		payload, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read stdin payload: %w", err)
		}

		spec.Input = payload
	default:
		spec.Input = []byte(ea.Input)
	}

	runErr := runSpec(cmd, s, ea, spec)

	if ea.ShowLog {
		mustN(fmt.Fprint(cmd.ErrOrStderr(), s.sink.Recent()))
	}

	return runErr
}

func runSpec(cmd *cobra.Command, s *session, ea *ExecArgs, spec execs.Spec) error {
	ctx := cmd.Context()

	switch {
	case ea.Detach:
		h, err := s.runner.Start(ctx, spec)
		if err != nil {
			return err
		}

		// The completion watcher logs the exit code; it is not an error here.
		_ = h.Wait()

		return nil

	case ea.Capture:
		out, err := s.runner.Output(ctx, spec, ea.Reveal)
		if err != nil {
			return err
		}

		if out != "" {
			mustN(fmt.Fprintln(cmd.OutOrStdout(), out))
		}

		return nil

	default:
		return s.runner.Check(ctx, spec)
	}
}
