package main

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/automaton-review/internal/bootstrap"
	"github.com/bryanwahyu/automaton-review/internal/config"
	"github.com/bryanwahyu/automaton-review/internal/infra/httpserver"
)

// Exit codes
const (
	ExitSuccess      = 0
	ExitUsageError   = 2
	ExitAuthError    = 3
	ExitRuntimeError = 4
)

type serviceFactory func(ctx context.Context, cfg *config.Config) httpserver.Analyzer

func defaultService(ctx context.Context, cfg *config.Config) httpserver.Analyzer {
	return bootstrap.NewReviewService(ctx, cfg)
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, defaultService))
}

func run(args []string, stdin io.Reader, stdout io.Writer, newService serviceFactory) int {
	exitCode := ExitSuccess
	root := newRootCmd(newService, stdin, stdout, &exitCode)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		// cobra already printed the error
		return ExitUsageError
	}
	return exitCode
}

func newRootCmd(newService serviceFactory, stdin io.Reader, stdout io.Writer, exitCode *int) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "reviewctl",
		Short:        "Run the code review pipeline from the command line",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Config file (yaml or toml)")
	root.SetOut(stdout)
	root.SetIn(stdin)

	root.AddCommand(newAnalyzeCmd(newService, &configPath, exitCode))
	return root
}
