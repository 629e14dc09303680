package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/macropower/krun/pkg/execs"
	"github.com/macropower/krun/pkg/kube"
)

type KubectlArgs struct {
	*RootArgs

	Context   string
	Namespace string
	Capture   bool
	Versions  bool
}

func NewKubectlArgs(rootArgs *RootArgs) *KubectlArgs {
	return &KubectlArgs{RootArgs: rootArgs}
}

func (ka *KubectlArgs) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&ka.Context, "context", "", "Cluster context (defaults to the current context, cached)")
	cmd.Flags().StringVar(&ka.Namespace, "namespace", "default", "Namespace to operate in")
	cmd.Flags().BoolVar(&ka.Capture, "capture", false, "Capture stdout and print it on success")
	cmd.Flags().BoolVar(&ka.Versions, "versions", false, "Log tool and host version reports before running")
}

func NewKubectlCmd(ra *RootArgs) *cobra.Command {
	ka := NewKubectlArgs(ra)

	cmd := &cobra.Command{
		Use:   "kubectl [flags] -- ARG...",
		Short: "Run the wrapped kubectl-style tool under supervision",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKubectl(cmd, ka, args)
		},
	}
	ka.AddFlags(cmd)

	bindEnvVars(cmd)

	return cmd
}

func runKubectl(cmd *cobra.Command, ka *KubectlArgs, args []string) error {
	ctx := cmd.Context()

	s, err := openSession(ctx, ka.RootArgs)
	if err != nil {
		return err
	}
	defer s.close(ctx)

	builder := kube.Builder{
		Tool:    s.cfg.Kubectl,
		Verbose: s.cfg.Verbose,
	}

	kubeContext := ka.Context
	if kubeContext == "" {
		kubeContext, err = s.cache.LookupString("context", func() (string, error) {
			return s.runner.Output(ctx, execs.Spec{
				Args: []string{s.cfg.Kubectl, "config", "current-context"},
			}, false)
		})
		if err != nil {
			return fmt.Errorf("resolve current context: %w", err)
		}
	}

	k := kube.NewKubectl(s.runner, builder, kubeContext, ka.Namespace)

	if ka.Versions {
		k.ReportVersions(ctx)
	}

	if ka.Capture {
		out, err := k.Get(ctx, args...)
		if err != nil {
			return err
		}

		if out != "" {
			mustN(fmt.Fprintln(cmd.OutOrStdout(), out))
		}

		return nil
	}

	return k.Check(ctx, args...)
}
