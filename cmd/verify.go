package cmd

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/km-arc/go-ioc/framework/container"
	"github.com/km-arc/go-ioc/framework/diagnostics"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Build and check every registration",
	Long: `Boot the providers, then build every registration, construct each one
once in a private scope and report the first failure with its dependency
chain. Lifestyle diagnostics are printed as warnings.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := application(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = a.Shutdown(ctx) }()

		if err := a.Providers.Boot(ctx); err != nil {
			return err
		}
		if err := a.Verify(ctx); err != nil {
			printer.Error("%s", err)
			var re *container.ResolutionError
			if errors.As(err, &re) && len(re.Chain) > 0 {
				printer.Error("  chain: %s", chainOf(re.Chain))
			}
			return err
		}

		results := diagnostics.Analyze(a.Container)
		for _, r := range results {
			if r.Severity == diagnostics.Warning {
				printer.Warning("%s", r.Message)
			} else {
				printer.Info("%s", r.Message)
			}
		}
		printer.Success("container verified: %d registrations", len(a.Registrations()))
		return nil
	},
}

func chainOf(chain []container.Descriptor) string {
	names := make([]string, len(chain))
	for i, d := range chain {
		names[i] = d.String()
	}
	return strings.Join(names, " -> ")
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
