package main

import (
	"github.com/spf13/cobra"

	"github.com/vadim/linkpilot/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the automation scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		// blocks until shutdown
		return withApp(cmd.Context(), func(a *app.App) error {
			return a.Run(cmd.Context())
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
