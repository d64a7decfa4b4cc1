package build

import "runtime"

var (
	// version is the semantic version of the build. Overridden at link
	// time via -ldflags.
	version = "0.1.0"

	// Commit is the git commit hash the binary was built from. Set at
	// link time via -ldflags.
	Commit = ""

	// GoVersion is the Go toolchain version used for the build.
	GoVersion = runtime.Version()
)

// Version returns the semantic version string.
func Version() string {
	return version
}
