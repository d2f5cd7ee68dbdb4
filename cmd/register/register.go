// Package register provides the command that upserts the site roster.
package register

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tphakala/pokerwatch/internal/app"
	"github.com/tphakala/pokerwatch/internal/conf"
	"github.com/tphakala/pokerwatch/internal/orchestrator"
)

// Command creates the register command.
func Command(settings *conf.Settings) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register the site roster in the database",
		Long: `Upsert the monitored sites into the database. Without --file the
roster named by main.roster, or the built-in roster, is used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := app.LoadRegistry(settings, file)
			if err != nil {
				return err
			}

			store, err := app.OpenStore(settings)
			if err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck // upsert is committed

			n, err := orchestrator.RegisterSites(store, registry)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %d sites\n", n)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Roster YAML file")
	return cmd
}
