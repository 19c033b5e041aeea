package power

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/oshokin/nvidia-update-guard/internal/logger"
	"github.com/oshokin/nvidia-update-guard/internal/process"
)

// ErrUnsupportedOS indicates the current OS is not supported for restarts.
var ErrUnsupportedOS = errors.New("unsupported operating system")

// Reboot asks the host to restart immediately through the reboot tool at path.
// It returns once the tool has accepted the request; an error means the
// restart could not even be requested.
func Reboot(ctx context.Context, runner process.Runner, path string) error {
	if runtime.GOOS != "linux" {
		return fmt.Errorf("reboot on %s: %w", runtime.GOOS, ErrUnsupportedOS)
	}

	logger.InfoKV(ctx, "Requesting system restart", "tool", path)

	if err := runner.Run(ctx, path); err != nil {
		return fmt.Errorf("request system restart: %w", err)
	}

	return nil
}
