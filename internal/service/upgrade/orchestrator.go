package upgrade

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aymanbagabas/go-udiff"

	"github.com/oshokin/nvidia-update-guard/internal/domain/inventory"
	"github.com/oshokin/nvidia-update-guard/internal/logger"
	"github.com/oshokin/nvidia-update-guard/internal/repository/dpkg"
	"github.com/oshokin/nvidia-update-guard/internal/service/pin"
)

// PackageManager refreshes, upgrades and pins packages.
type PackageManager interface {
	pin.Marker
	Update(ctx context.Context) error
	DistUpgrade(ctx context.Context) error
}

// StalenessChecker tells whether the package index needs a refresh.
type StalenessChecker interface {
	IsStale(ctx context.Context) bool
}

// Orchestrator sequences one update cycle.
type Orchestrator struct {
	// packages runs apt-get and apt-mark.
	packages PackageManager
	// installed snapshots the guarded packages.
	installed dpkg.Repository
	// freshness decides whether to refresh the index.
	freshness StalenessChecker
	// guardOptions are passed to every pin.Acquire.
	guardOptions []pin.Option
}

// New creates an Orchestrator.
func New(packages PackageManager, installed dpkg.Repository, freshness StalenessChecker, guardOptions ...pin.Option) *Orchestrator {
	return &Orchestrator{
		packages:     packages,
		installed:    installed,
		freshness:    freshness,
		guardOptions: guardOptions,
	}
}

// Run performs one cycle and reports whether the guarded packages changed,
// which means the kernel module must be reloaded. With markOnly the holds are
// refreshed for the currently installed packages and nothing is upgraded.
func (o *Orchestrator) Run(ctx context.Context, markOnly bool) (reloadNeeded bool, err error) {
	if !markOnly {
		if err = o.refreshIndex(ctx); err != nil {
			return false, err
		}
	}

	logger.Debug(ctx, "Listing installed driver packages")

	before, err := o.installed.List(ctx)
	if err != nil {
		return false, fmt.Errorf("list packages before upgrade: %w", err)
	}

	guard, err := pin.Acquire(ctx, o.packages, before.Names(), o.guardOptions...)
	if err != nil {
		return false, err
	}

	defer func() {
		if releaseErr := guard.Release(ctx); releaseErr != nil {
			reloadNeeded = false
			err = errors.Join(err, releaseErr)
		}
	}()

	if markOnly {
		logger.InfoKV(ctx, "Mark-only run, skipping upgrade", "packages", len(before))
		return false, nil
	}

	logger.Info(ctx, "Upgrading all packages")

	if err = o.packages.DistUpgrade(ctx); err != nil {
		return false, err
	}

	after, err := o.installed.List(ctx)
	if err != nil {
		return false, fmt.Errorf("list packages after upgrade: %w", err)
	}

	guard.Extend(after.Names()...)

	if !inventory.Changed(before, after) {
		logger.Info(ctx, "Driver packages unchanged")
		return false, nil
	}

	o.reportChanges(ctx, before, after)

	return true, nil
}

func (o *Orchestrator) refreshIndex(ctx context.Context) error {
	if !o.freshness.IsStale(ctx) {
		logger.Info(ctx, "Package index is recent, skipping refresh")
		return nil
	}

	logger.Info(ctx, "Refreshing package index")

	return o.packages.Update(ctx)
}

func (o *Orchestrator) reportChanges(ctx context.Context, before, after inventory.Inventory) {
	for _, change := range inventory.Diff(before, after) {
		logger.InfoKV(ctx, "Driver package changed",
			"package", change.Name, "change", string(change.Kind), "from", change.From, "to", change.To)
	}

	diff := strings.TrimSpace(udiff.Unified("before upgrade", "after upgrade", before.String(), after.String()))
	logger.Debugf(ctx, "Installed driver packages:\n%s", diff)
}
