package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/pokerwatch/internal/buildinfo"
	"github.com/tphakala/pokerwatch/internal/conf"
)

func TestRootCommand_Version(t *testing.T) {
	root := RootCommand(&conf.Settings{}, buildinfo.NewContext("1.0.0", "2026-03-01", "abc1234"))

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Equal(t, "pokerwatch 1.0.0 (commit abc1234, built 2026-03-01)\n", out.String())
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := RootCommand(&conf.Settings{}, buildinfo.NewContext("", "", ""))

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"run", "collect", "status", "register", "detect", "health", "summary", "config", "version"} {
		assert.Contains(t, names, want)
	}
}
