package mjtree

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var version string

// Version is the library release, read from the VERSION file.
var Version = strings.TrimSpace(version)
