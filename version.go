package blocksync

import _ "embed"

// Version is the library release, embedded from the VERSION file.
//
//go:embed VERSION
var Version string
