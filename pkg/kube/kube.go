// Package kube assembles and runs kubectl-style command lines on top of
// the execs supervision core. It supports kubectl itself as well as
// drop-in replacements like oc.
package kube

import (
	"context"
	"fmt"

	"github.com/macropower/krun/pkg/execs"
)

// Builder assembles argument vectors for a kubectl-style tool.
type Builder struct {
	// Tool is the executable name, e.g. "kubectl" or "oc".
	Tool string
	// Verbose adds client-side verbosity to every invocation.
	Verbose bool
}

// Build returns the full argument vector for running the tool against the
// given context and namespace: the tool name, an optional verbosity flag,
// the context and namespace flags, then args.
func (b Builder) Build(kubeContext, namespace string, args ...string) []string {
	out := make([]string, 0, len(args)+6)

	out = append(out, b.Tool)
	if b.Verbose {
		out = append(out, "--v=4")
	}

	out = append(out, "--context", kubeContext)
	out = append(out, "--namespace", namespace)
	out = append(out, args...)

	return out
}

// Kubectl binds a [Builder] to a runner and a cluster context.
type Kubectl struct {
	runner    *execs.Runner
	builder   Builder
	Context   string
	Namespace string
}

// NewKubectl creates a [Kubectl] for the given cluster context and
// namespace.
func NewKubectl(runner *execs.Runner, builder Builder, kubeContext, namespace string) *Kubectl {
	return &Kubectl{
		runner:    runner,
		builder:   builder,
		Context:   kubeContext,
		Namespace: namespace,
	}
}

// Get runs the tool with args and returns its captured stdout.
func (k *Kubectl) Get(ctx context.Context, args ...string) (string, error) {
	out, err := k.runner.Output(ctx, execs.Spec{Args: k.builder.Build(k.Context, k.Namespace, args...)}, false)
	if err != nil {
		return "", fmt.Errorf("%s: %w", k.builder.Tool, err)
	}

	return out, nil
}

// Check runs the tool with args and returns an error on nonzero exit.
func (k *Kubectl) Check(ctx context.Context, args ...string) error {
	err := k.runner.Check(ctx, execs.Spec{Args: k.builder.Build(k.Context, k.Namespace, args...)})
	if err != nil {
		return fmt.Errorf("%s: %w", k.builder.Tool, err)
	}

	return nil
}

// Apply feeds manifest to the tool's stdin via "apply -f -".
func (k *Kubectl) Apply(ctx context.Context, manifest []byte) error {
	err := k.runner.Check(ctx, execs.Spec{
		Args:  k.builder.Build(k.Context, k.Namespace, "apply", "-f", "-"),
		Input: manifest,
	})
	if err != nil {
		return fmt.Errorf("%s apply: %w", k.builder.Tool, err)
	}

	return nil
}

// ReportVersions launches best-effort version probes for the tool and the
// host, for the session log. Missing binaries are ignored.
func (k *Kubectl) ReportVersions(ctx context.Context) {
	k.runner.Probe(ctx, k.builder.Tool, "version", "--client")
	k.runner.Probe(ctx, "oc", "version")
	k.runner.Probe(ctx, "uname", "-a")
}
