package main

import (
	"fmt"
	"os"

	"github.com/tphakala/pokerwatch/cmd"
	"github.com/tphakala/pokerwatch/internal/buildinfo"
	"github.com/tphakala/pokerwatch/internal/conf"
)

// Build metadata, set with -ldflags "-X main.version=...".
var (
	version   = "dev"
	buildDate string
	commit    string
)

func main() {
	build := buildinfo.NewContext(version, buildDate, commit)
	settings := &conf.Settings{}

	rootCmd := cmd.RootCommand(settings, build)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
