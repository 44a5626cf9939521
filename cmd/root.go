// Package cmd contains the go-ioc CLI commands.
package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/km-arc/go-ioc/examples/events"
	"github.com/km-arc/go-ioc/framework/app"
	"github.com/km-arc/go-ioc/framework/config"
	"github.com/km-arc/go-ioc/internal/output"
)

var (
	envFiles  []string
	colorFlag string
	verbose   bool
	printer   *output.Printer
)

var rootCmd = &cobra.Command{
	Use:   "go-ioc",
	Short: "Verifiable dependency-injection container",
	Long: `go-ioc builds the application container from its service providers and
inspects it.

Example usage:
  go-ioc verify                         # build and check every registration
  go-ioc registrations --lifestyle scoped
  go-ioc serve --env-file .env.local    # serve HTTP on APP_PORT`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		mode, err := output.ParseColorMode(colorFlag)
		if err != nil {
			return err
		}
		printer = output.NewPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "env files to load (default .env)")
	rootCmd.PersistentFlags().StringVar(&colorFlag, "color", "auto", "color output: auto, always, never")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log container activity to stderr")
}

// application loads the configuration and registers every provider the CLI
// knows about. The container is not booted.
func application(ctx context.Context) (*app.Application, error) {
	var opts []app.Option
	if !verbose {
		opts = append(opts, app.WithLogger(zap.NewNop()))
	}
	a, err := app.New(config.Load(envFiles...), opts...)
	if err != nil {
		return nil, err
	}
	if err := a.Register(ctx, &events.Provider{}); err != nil {
		return nil, err
	}
	return a, nil
}
