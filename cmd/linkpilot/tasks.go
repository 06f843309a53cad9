package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vadim/linkpilot/internal/app"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List the scheduled automation tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TASK\tSCHEDULE")
			for _, st := range a.Scheduler().Status() {
				fmt.Fprintf(w, "%s\t%s\n", st.Name, st.Schedule)
			}
			return w.Flush()
		})
	},
}

var runTaskCmd = &cobra.Command{
	Use:   "run-task <name>",
	Short: "Run one automation task immediately and exit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			if err := a.Scheduler().RunOnce(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("task %s: %w", args[0], err)
			}
			fmt.Printf("task %s completed\n", args[0])
			return nil
		})
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := app.Migrate(cmd.Context(), cfg); err != nil {
			return err
		}
		fmt.Printf("%s schema is up to date\n", cfg.Database.Driver)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tasksCmd, runTaskCmd, migrateCmd)
}
