// Package config provides the command that prints or writes the effective
// configuration.
package config

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tphakala/pokerwatch/internal/conf"
	"gopkg.in/yaml.v3"
)

// Command creates the config command.
func Command(settings *conf.Settings) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration after defaults, config file and environment
variables are applied. With --output the result is written as a config file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "" {
				if err := conf.SaveYAMLConfig(output, settings); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", output)
				return nil
			}

			data, err := yaml.Marshal(settings)
			if err != nil {
				return fmt.Errorf("error marshaling settings: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the configuration to this file")
	return cmd
}
