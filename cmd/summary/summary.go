// Package summary provides the command printing the weekly summary.
package summary

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/tphakala/pokerwatch/internal/app"
	"github.com/tphakala/pokerwatch/internal/conf"
	"github.com/tphakala/pokerwatch/internal/datastore"
)

// Command creates the summary command.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		date string
		send bool
	)

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the weekly summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(cmd.Context(), settings)
			if err != nil {
				return err
			}
			defer a.Close()

			if send {
				return a.Orchestrator.SendWeeklySummary(cmd.Context())
			}

			day := time.Now().In(settings.Location())
			if date != "" {
				if day, err = time.ParseInLocation(datastore.DateLayout, date, settings.Location()); err != nil {
					return fmt.Errorf("invalid --date %q: %w", date, err)
				}
			}

			s, err := a.Orchestrator.BuildWeeklySummary(day)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), s.Render())
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Last day of the week YYYY-MM-DD (default: today)")
	cmd.Flags().BoolVar(&send, "send", false, "Send through notifications instead of printing")
	return cmd
}
