package freshness

import (
	"context"
	"os"
	"time"

	"github.com/juju/clock"

	"github.com/oshokin/nvidia-update-guard/internal/logger"
)

// Checker answers staleness questions for one marker file.
type Checker struct {
	// markerPath is the file whose mtime tracks the last index refresh.
	markerPath string
	// threshold is the maximum tolerated index age.
	threshold time.Duration
	// clock supplies the current instant.
	clock clock.Clock
}

// NewChecker creates a Checker. A nil clock means the wall clock.
func NewChecker(markerPath string, threshold time.Duration, clk clock.Clock) *Checker {
	if clk == nil {
		clk = clock.WallClock
	}

	return &Checker{
		markerPath: markerPath,
		threshold:  threshold,
		clock:      clk,
	}
}

// IsStale reports whether the index should be refreshed now.
func (c *Checker) IsStale(ctx context.Context) bool {
	return IsStale(ctx, c.markerPath, c.threshold, c.clock.Now())
}

// IsStale reports whether more than threshold has elapsed between the
// marker's modification time and now. An unreadable marker counts as the
// oldest possible timestamp, so the answer is true.
func IsStale(ctx context.Context, markerPath string, threshold time.Duration, now time.Time) bool {
	info, err := os.Stat(markerPath)
	if err != nil {
		logger.WarnKV(ctx, "Unable to read package index marker, assuming the index is stale",
			"marker", markerPath, "error", err)

		return true
	}

	age := now.Sub(info.ModTime())
	stale := age > threshold

	logger.DebugKV(ctx, "Package index age",
		"marker", markerPath, "age", age.Round(time.Second).String(), "threshold", threshold.String(), "stale", stale)

	return stale
}
