package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/macropower/krun/pkg/cache"
	"github.com/macropower/krun/pkg/config"
	"github.com/macropower/krun/pkg/execs"
	"github.com/macropower/krun/pkg/log"
	"github.com/macropower/krun/pkg/span"
)

// session bundles everything one supervised CLI invocation needs: the
// loaded config, the session log sink, the runner, the span registry, and
// the on-disk cache.
type session struct {
	cfg     *config.Config
	logFile *os.File
	sink    *log.Session
	runner  *execs.Runner
	spans   *span.Registry
	cache   *cache.Cache

	shutdownTracing func(context.Context) error
}

// openSession loads the config and assembles the runner stack.
func openSession(ctx context.Context, ra *RootArgs) (*session, error) {
	configPath := ra.ConfigPath
	if configPath == "" {
		configPath = config.GetPath()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", configPath, err)
	}

	s := &session{cfg: cfg}

	if cfg.OTLPEndpoint != "" {
		s.shutdownTracing, err = setupTracing(ctx, cfg.OTLPEndpoint)
		if err != nil {
			return nil, err
		}
	}

	logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open session log %q: %w", cfg.LogFile, err)
	}

	s.logFile = logFile
	s.sink = log.NewSession(logFile)
	s.spans = span.NewRegistry()
	s.runner = execs.NewRunner(s.sink,
		execs.WithVerbose(cfg.Verbose),
		execs.WithSpans(s.spans),
	)

	cachePath, err := cache.DefaultPath()
	if err != nil {
		return nil, err
	}

	s.cache = cache.Load(cachePath)

	ttl, err := cfg.TTL()
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ttl)

	return s, nil
}

// close flushes the session: span summary into the log, cache back to
// disk, exported traces out the door.
func (s *session) close(ctx context.Context) {
	if summary := s.spans.Summary(); summary != "" {
		s.sink.Write(summary)
	}

	err := s.cache.Save()
	if err != nil {
		slog.Warn("save cache", slog.Any("err", err))
	}

	if s.shutdownTracing != nil {
		err := s.shutdownTracing(ctx)
		if err != nil {
			slog.Warn("shutdown tracing", slog.Any("err", err))
		}
	}

	err = s.logFile.Close()
	if err != nil {
		slog.Warn("close session log", slog.Any("err", err))
	}
}
