package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tphakala/pokerwatch/cmd/collect"
	configcmd "github.com/tphakala/pokerwatch/cmd/config"
	"github.com/tphakala/pokerwatch/cmd/detect"
	"github.com/tphakala/pokerwatch/cmd/health"
	"github.com/tphakala/pokerwatch/cmd/register"
	"github.com/tphakala/pokerwatch/cmd/run"
	"github.com/tphakala/pokerwatch/cmd/status"
	"github.com/tphakala/pokerwatch/cmd/summary"
	"github.com/tphakala/pokerwatch/internal/buildinfo"
	"github.com/tphakala/pokerwatch/internal/conf"
	"github.com/tphakala/pokerwatch/internal/logger"
	"github.com/tphakala/pokerwatch/internal/telemetry"
)

// RootCommand creates and returns the root command. settings is filled in
// before any sub-command runs, so sub-commands may capture the pointer.
func RootCommand(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	var (
		configFile string
		debug      bool
		closeLog   func() error
	)

	rootCmd := &cobra.Command{
		Use:           "pokerwatch",
		Short:         "Poker traffic collection and change detection",
		Version:       build.Version(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config.yaml (default: ./, ~/.config/pokerwatch, /etc/pokerwatch)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug output")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), build.String())
		},
	}

	subcommands := []*cobra.Command{
		run.Command(settings),
		collect.Command(settings),
		status.Command(settings),
		register.Command(settings),
		detect.Command(settings),
		health.Command(settings),
		summary.Command(settings),
		configcmd.Command(settings),
		versionCmd,
	}
	rootCmd.AddCommand(subcommands...)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// version needs no configuration
		if cmd.Name() == versionCmd.Name() {
			return nil
		}

		loaded, err := conf.LoadFrom(configFile)
		if err != nil {
			return err
		}
		*settings = *loaded
		if debug {
			settings.Debug = true
			settings.Logging.DefaultLevel = "debug"
		}

		closeLog, err = initialize(settings, build)
		return err
	}

	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		telemetry.Flush()
		if closeLog != nil {
			return closeLog()
		}
		return nil
	}

	return rootCmd
}

// initialize sets up logging and error telemetry once settings are loaded.
func initialize(settings *conf.Settings, build *buildinfo.Context) (func() error, error) {
	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(central)

	if _, err := telemetry.InitSentry(settings, build.Version()); err != nil {
		// telemetry is opt-in; a bad DSN must not stop collection
		logger.Global().Module("main").Warn("sentry initialization failed", logger.Error(err))
	}

	return central.Close, nil
}
