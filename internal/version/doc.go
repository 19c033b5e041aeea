// Package version exposes build metadata for nvidia-update-guard.
//
// Version, Commit and BuildTime are injected at build time via Go ldflags
// (-X github.com/oshokin/nvidia-update-guard/internal/version.Version=...).
package version
