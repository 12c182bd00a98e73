// Package version provides the application version.
package version

// Version is set at build time via ldflags:
//
//	go build -ldflags "-X github.com/sergeknystautas/landed/internal/version.Version=0.3.0" ./cmd/landed
//
// Defaults to "dev" for local development builds.
var Version = "dev"
