package monitor

import (
	"os"
	"path/filepath"

	"github.com/tphakala/pokerwatch/internal/conf"
)

// StoragePath returns the directory whose filesystem holds the time series:
// the explicit health path, else the SQLite database directory, else the
// working directory.
func StoragePath(settings *conf.Settings) string {
	if settings.Health.Path != "" {
		return resolvePath(settings.Health.Path)
	}
	if settings.Output.SQLite.Enabled && settings.Output.SQLite.Path != "" && settings.Output.SQLite.Path != ":memory:" {
		return filepath.Dir(resolvePath(settings.Output.SQLite.Path))
	}
	return resolvePath(".")
}

// resolvePath expands environment variables and converts path to an
// absolute, cleaned path.
func resolvePath(path string) string {
	path = filepath.Clean(os.ExpandEnv(path))
	if !filepath.IsAbs(path) {
		if absPath, err := filepath.Abs(path); err == nil {
			path = absPath
		}
	}
	return path
}
