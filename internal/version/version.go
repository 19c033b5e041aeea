package version

import "fmt"

// Build metadata of the nvidia-update-guard binary. Release builds set it with
//
//	-ldflags "-X github.com/oshokin/nvidia-update-guard/internal/version.Version=..."
//
//nolint:gochecknoglobals // Overwritten by the linker.
var (
	Version   = "0.1.0"
	Commit    = "none"
	BuildTime = "unknown"
)

// binaryName prefixes the version subcommand output.
const binaryName = "nvidia-update-guard"

// Short is the release number logged at the start of every update cycle.
func Short() string {
	return Version
}

// Full is what `nvidia-update-guard version` prints.
func Full() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", binaryName, Version, Commit, BuildTime)
}
