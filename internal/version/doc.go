// Package version exposes build metadata of the alarm server.
//
// Version, Commit and BuildTime are injected with -ldflags and keep local
// defaults otherwise. Full renders them for the CLI and the startup log.
package version
