// Package buildinfo holds build-time metadata, kept apart from user
// configuration.
package buildinfo

import "fmt"

// UnknownValue is reported for metadata that was not injected at build time.
const UnknownValue = "unknown"

// Context contains build-time metadata injected with -ldflags.
type Context struct {
	version   string
	buildDate string
	commit    string
}

// NewContext creates a Context. Empty values report UnknownValue.
func NewContext(version, buildDate, commit string) *Context {
	return &Context{version: version, buildDate: buildDate, commit: commit}
}

func orUnknown(v string) string {
	if v == "" {
		return UnknownValue
	}
	return v
}

// Version returns the release version.
func (c *Context) Version() string {
	if c == nil {
		return UnknownValue
	}
	return orUnknown(c.version)
}

// BuildDate returns the build timestamp.
func (c *Context) BuildDate() string {
	if c == nil {
		return UnknownValue
	}
	return orUnknown(c.buildDate)
}

// Commit returns the source revision.
func (c *Context) Commit() string {
	if c == nil {
		return UnknownValue
	}
	return orUnknown(c.commit)
}

// String formats the metadata for the version command.
func (c *Context) String() string {
	return fmt.Sprintf("pokerwatch %s (commit %s, built %s)", c.Version(), c.Commit(), c.BuildDate())
}
