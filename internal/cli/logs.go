package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/macropower/krun/pkg/config"
)

type LogsArgs struct {
	*RootArgs

	Lines  int
	Follow bool
}

func NewLogsArgs(rootArgs *RootArgs) *LogsArgs {
	return &LogsArgs{RootArgs: rootArgs}
}

func (la *LogsArgs) AddFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&la.Lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&la.Follow, "follow", "f", false, "Wait for and print new session log lines")
}

func NewLogsCmd(ra *RootArgs) *cobra.Command {
	la := NewLogsArgs(ra)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the tail of the session log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogs(cmd, la)
		},
	}
	la.AddFlags(cmd)

	bindEnvVars(cmd)

	return cmd
}

func runLogs(cmd *cobra.Command, la *LogsArgs) error {
	configPath := la.ConfigPath
	if configPath == "" {
		configPath = config.GetPath()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config %q: %w", configPath, err)
	}

	data, err := os.ReadFile(cfg.LogFile)
	if err != nil {
		return fmt.Errorf("read session log: %w", err)
	}

	slog.Debug("read session log",
		slog.String("path", cfg.LogFile),
		slog.String("size", humanize.Bytes(uint64(len(data)))),
	)

	mustN(fmt.Fprint(cmd.OutOrStdout(), tailLines(string(data), la.Lines)))

	if la.Follow {
		return followLog(cmd, cfg.LogFile, int64(len(data)))
	}

	return nil
}

// tailLines returns the last n lines of s, newline-terminated.
func tailLines(s string, n int) string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return ""
	}

	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}

	return strings.Join(lines, "\n") + "\n"
}

// followLog watches the session log and streams appended bytes to stdout
// until the command's context is canceled.
func followLog(cmd *cobra.Command, path string, offset int64) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer func() {
		err := watcher.Close()
		if err != nil {
			slog.Debug("close watcher", slog.Any("err", err))
		}
	}()

	err = watcher.Add(path)
	if err != nil {
		return fmt.Errorf("watch %q: %w", path, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open session log: %w", err)
	}
	defer func() {
		err := f.Close()
		if err != nil {
			slog.Debug("close session log", slog.Any("err", err))
		}
	}()

	_, err = f.Seek(offset, io.SeekStart)
	if err != nil {
		return fmt.Errorf("seek session log: %w", err)
	}

	for {
		select {
		case <-cmd.Context().Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) {
				continue
			}

			_, err := io.Copy(cmd.OutOrStdout(), f)
			if err != nil {
				return fmt.Errorf("stream session log: %w", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			slog.Warn("watch session log", slog.Any("err", err))
		}
	}
}
