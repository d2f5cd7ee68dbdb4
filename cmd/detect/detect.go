// Package detect provides the command that re-runs detection for a date.
package detect

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/tphakala/pokerwatch/internal/app"
	"github.com/tphakala/pokerwatch/internal/conf"
	"github.com/tphakala/pokerwatch/internal/datastore"
)

// Command creates the detect command.
func Command(settings *conf.Settings) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Re-run change detection and correlation for a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			if date == "" {
				date = time.Now().In(settings.Location()).Format(datastore.DateLayout)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, settings)
			if err != nil {
				return err
			}
			defer a.Close()

			events, correlations, err := a.Orchestrator.Reanalyze(ctx, date)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(events) == 0 {
				fmt.Fprintf(out, "No change events on %s\n", date)
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "SITE\tMETRIC\tPREVIOUS\tCURRENT\tCHANGE\tMAGNITUDE")
			for i := range events {
				e := &events[i]
				fmt.Fprintf(tw, "%s\t%s\t%d (%s)\t%d\t%+.2f%%\t%s\n",
					e.SiteName, e.Metric, e.Previous, e.PreviousDate, e.Current, e.PctChange, e.Magnitude)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\n%d event(s), %d correlation(s)\n", len(events), len(correlations))
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Detection date YYYY-MM-DD (default: today)")
	return cmd
}
