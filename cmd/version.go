package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/km-arc/go-ioc/framework/app"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "go-ioc version %s (%s, %s/%s)\n",
			app.Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
