// Package health provides the on-demand health check command.
package health

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tphakala/pokerwatch/internal/app"
	"github.com/tphakala/pokerwatch/internal/conf"
)

// Command creates the health command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Run the health check once",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(cmd.Context(), settings)
			if err != nil {
				return err
			}
			defer a.Close()

			report := a.Orchestrator.CheckHealth(cmd.Context())
			out := cmd.OutOrStdout()
			if report.Healthy {
				fmt.Fprintln(out, "healthy")
				return nil
			}
			for _, p := range report.Problems {
				fmt.Fprintf(out, "problem: %s\n", p)
			}
			return fmt.Errorf("health check found %d problem(s)", len(report.Problems))
		},
	}
}
