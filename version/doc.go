// Package version reports the automeet build.
//
// Release builds stamp the variables with -ldflags:
//
//	go build -ldflags "-X github.com/kbukum/automeet/version.Version=1.2.0 \
//	  -X github.com/kbukum/automeet/version.GitCommit=$(git rev-parse --short HEAD)" ./cmd/automeet
//
// Unstamped builds fall back to the VCS data the Go toolchain embeds.
package version
