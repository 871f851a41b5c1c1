package version

import "fmt"

const (
	Major = 0
	Minor = 1
	Patch = 0
)

// Commit is set at build time via -ldflags.
var Commit = "unknown"

func String() string {
	return fmt.Sprintf("%d.%d.%d", Major, Minor, Patch)
}

func Full() string {
	return fmt.Sprintf("%s (%s)", String(), Commit)
}
