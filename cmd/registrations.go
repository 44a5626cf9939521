package cmd

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/km-arc/go-ioc/framework/diagnostics"
	"github.com/km-arc/go-ioc/internal/output"
)

var registrationsCmd = &cobra.Command{
	Use:     "registrations",
	Aliases: []string{"ls"},
	Short:   "List the verified registrations",
	Long: `Verify the container, then list every root registration with its
implementation, lifestyle, decorators and dependencies.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		jsonOutput, _ := cmd.Flags().GetBool("json")
		service, _ := cmd.Flags().GetString("service")
		lifestyle, _ := cmd.Flags().GetString("lifestyle")

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
			return err
		}

		entries := diagnostics.Filter(diagnostics.Report(a.Container), service, lifestyle)
		if entries == nil {
			entries = []diagnostics.Entry{}
		}
		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}

		table := output.NewTable(printer.Out(), "SERVICE", "IMPLEMENTATION", "LIFESTYLE", "DECORATORS", "DEPENDENCIES")
		for _, e := range entries {
			service := e.Service
			if e.Collection {
				service = "[]" + service
			}
			table.AddRow(
				service,
				printer.Dim(orDash(e.Implementation)),
				printer.Lifestyle(e.Lifestyle),
				orDash(strings.Join(e.Decorators, ", ")),
				orDash(strings.Join(e.Dependencies, ", ")),
			)
		}
		return table.Render()
	},
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	rootCmd.AddCommand(registrationsCmd)

	registrationsCmd.Flags().Bool("json", false, "output as JSON")
	registrationsCmd.Flags().String("service", "", "only services starting with this prefix")
	registrationsCmd.Flags().String("lifestyle", "", "only this lifestyle: transient, singleton, scoped")
}
