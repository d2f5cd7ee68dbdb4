// Package status provides the command printing recent pipeline activity.
package status

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/tphakala/pokerwatch/internal/app"
	"github.com/tphakala/pokerwatch/internal/conf"
	"github.com/tphakala/pokerwatch/internal/orchestrator"
)

// Command creates the status command.
func Command(settings *conf.Settings) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recent collection cycles",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.OpenStore(settings)
			if err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck // read-only

			report, err := orchestrator.BuildStatus(store, limit, orchestrator.StateIdle, false)
			if err != nil {
				return err
			}
			return Print(cmd.OutOrStdout(), report, settings.Location())
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", orchestrator.DefaultStatusLimit, "Number of cycles to show")
	return cmd
}

// Print writes report as an aligned table.
func Print(w io.Writer, report *orchestrator.StatusReport, loc *time.Location) error {
	if report.LastSuccess != nil {
		fmt.Fprintf(w, "Last success:          %s\n", report.LastSuccess.In(loc).Format(time.DateTime))
	} else {
		fmt.Fprintln(w, "Last success:          never")
	}
	fmt.Fprintf(w, "Consecutive failures:  %d\n\n", report.ConsecutiveFailures)

	if len(report.Cycles) == 0 {
		fmt.Fprintln(w, "No collection cycles recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tTRIGGER\tSTATUS\tATTEMPTS\tSITES\tDROPPED\tEVENTS\tERROR")
	for i := range report.Cycles {
		c := &report.Cycles[i]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			c.StartedAt.In(loc).Format(time.DateTime), c.Trigger, c.Status,
			c.Attempts, c.SitesCollected, c.RecordsDropped, c.EventsDetected, c.Error)
	}
	return tw.Flush()
}
