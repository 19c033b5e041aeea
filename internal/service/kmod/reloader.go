package kmod

import (
	"context"
	"fmt"

	"github.com/oshokin/nvidia-update-guard/internal/logger"
	"github.com/oshokin/nvidia-update-guard/internal/process"
	"github.com/oshokin/nvidia-update-guard/internal/service/power"
)

// Outcome tells how the module was brought up to date.
type Outcome string

const (
	// Reloaded means the module was unloaded and loaded again.
	Reloaded Outcome = "reloaded"
	// Rebooting means a restart was requested because the module could not be unloaded.
	Rebooting Outcome = "rebooting"
)

// Options are the tool locations and policy for a Reloader.
type Options struct {
	// RmmodPath unloads the module.
	RmmodPath string
	// ModprobePath loads the module.
	ModprobePath string
	// RebootPath restarts the host.
	RebootPath string
	// Module is the kernel module name.
	Module string
	// RebootOnFailure enables the restart fallback.
	RebootOnFailure bool
}

// Reloader is the recovery step run after the driver packages changed.
type Reloader struct {
	runner process.Runner
	opts   Options
}

// NewReloader creates a Reloader.
func NewReloader(runner process.Runner, opts Options) *Reloader {
	return &Reloader{
		runner: runner,
		opts:   opts,
	}
}

// Reload unloads and loads the module. When unloading fails the host is
// restarted, unless the fallback is disabled or ctx is already done.
// A failing load after a successful unload is returned as is.
func (r *Reloader) Reload(ctx context.Context) (Outcome, error) {
	ctx = logger.WithKV(ctx, "module", r.opts.Module)

	logger.Info(ctx, "Reloading kernel module")

	unloadErr := r.runner.Run(ctx, r.opts.RmmodPath, r.opts.Module)
	if unloadErr == nil {
		if err := r.runner.Run(ctx, r.opts.ModprobePath, r.opts.Module); err != nil {
			return "", fmt.Errorf("load kernel module %s: %w", r.opts.Module, err)
		}

		logger.Info(ctx, "Kernel module reloaded")

		return Reloaded, nil
	}

	if ctx.Err() != nil || !r.opts.RebootOnFailure {
		return "", fmt.Errorf("unload kernel module %s: %w", r.opts.Module, unloadErr)
	}

	logger.WarnKV(ctx, "Kernel module is busy, restarting the host", "error", unloadErr)

	if err := power.Reboot(ctx, r.runner, r.opts.RebootPath); err != nil {
		return "", err
	}

	return Rebooting, nil
}
