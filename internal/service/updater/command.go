package updater

import (
	"context"
	"fmt"

	"github.com/oshokin/nvidia-update-guard/internal/config"
	"github.com/oshokin/nvidia-update-guard/internal/logger"
	"github.com/oshokin/nvidia-update-guard/internal/process"
	"github.com/oshokin/nvidia-update-guard/internal/repository/dpkg"
	"github.com/oshokin/nvidia-update-guard/internal/service/apt"
	"github.com/oshokin/nvidia-update-guard/internal/service/freshness"
	"github.com/oshokin/nvidia-update-guard/internal/service/kmod"
	"github.com/oshokin/nvidia-update-guard/internal/service/pin"
	"github.com/oshokin/nvidia-update-guard/internal/service/upgrade"
	"github.com/oshokin/nvidia-update-guard/internal/version"
)

// Options are inputs accepted by the updater entry point.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// MarkOnly refreshes package holds without upgrading anything.
	MarkOnly bool
	// Verbose keeps APT's own progress output.
	Verbose bool
	// SkipPreflight disables the root and concurrent package manager checks.
	SkipPreflight bool
	// OnHoldLost replaces the default handler for a failed re-hold, which panics.
	OnHoldLost pin.AbortFunc
	// Runner replaces the process runner. Nil means the real one.
	Runner process.Runner
}

// runner holds everything one run needs.
type runner struct {
	cfg          *config.Config
	opts         *Options
	orchestrator *upgrade.Orchestrator
	reloader     *kmod.Reloader
}

// Run executes one update cycle and the recovery step when it is needed.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "nvidia-update-guard")

	r, err := newRunner(ctx, opts)
	if err != nil {
		return err
	}

	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	return r.Run(ctx)
}

// newRunner loads the configuration, runs the preflight checks and wires the components.
func newRunner(ctx context.Context, opts *Options) (*runner, error) {
	if opts == nil {
		opts = new(Options)
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	if !opts.SkipPreflight {
		if err = newPreflight().check(ctx); err != nil {
			return nil, fmt.Errorf("preflight: %w", err)
		}
	}

	invoker := opts.Runner
	if invoker == nil {
		invoker = process.NewExec()
	}

	packages := apt.NewClient(invoker, cfg.AptGetPath, cfg.AptMarkPath,
		apt.WithAssumeYes(cfg.AssumeYes),
		apt.WithVerbose(opts.Verbose),
	)

	installed := dpkg.NewReader(invoker, cfg.DpkgQueryPath, cfg.PackagePattern, cfg.InstalledStatuses)
	checker := freshness.NewChecker(cfg.MarkerFile, cfg.StalenessThreshold, nil)

	var guardOptions []pin.Option
	if opts.OnHoldLost != nil {
		guardOptions = append(guardOptions, pin.WithAbort(opts.OnHoldLost))
	}

	reloader := kmod.NewReloader(invoker, kmod.Options{
		RmmodPath:       cfg.RmmodPath,
		ModprobePath:    cfg.ModprobePath,
		RebootPath:      cfg.RebootPath,
		Module:          cfg.KernelModule,
		RebootOnFailure: cfg.RebootOnFailure,
	})

	return &runner{
		cfg:          cfg,
		opts:         opts,
		orchestrator: upgrade.New(packages, installed, checker, guardOptions...),
		reloader:     reloader,
	}, nil
}

// Run performs the upgrade cycle followed by the recovery step.
func (r *runner) Run(ctx context.Context) error {
	logger.InfoKV(ctx, "Starting", "version", version.Short(), "mark_only", r.opts.MarkOnly,
		"pattern", r.cfg.PackagePattern)

	reloadNeeded, err := r.orchestrator.Run(ctx, r.opts.MarkOnly)
	if err != nil {
		return fmt.Errorf("upgrade driver packages: %w", err)
	}

	if !reloadNeeded {
		logger.Info(ctx, "No kernel module reload needed")
		return nil
	}

	outcome, err := r.reloader.Reload(ctx)
	if err != nil {
		return fmt.Errorf("recover kernel module: %w", err)
	}

	logger.InfoKV(ctx, "Kernel module recovery finished", "outcome", string(outcome))

	return nil
}
