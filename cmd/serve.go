package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve HTTP on APP_PORT",
	Long: `Boot the application and serve HTTP until interrupted. Every request runs
in its own container scope. /metrics is always mounted; the /_container
diagnostics routes are mounted when APP_DEBUG is true.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := application(ctx)
		if err != nil {
			return err
		}
		printer.Info("%s listening on :%s [%s]", a.Config().App.Name, a.Config().App.Port, a.Environment())
		return a.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
