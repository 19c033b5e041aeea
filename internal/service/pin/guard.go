package pin

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/oshokin/nvidia-update-guard/internal/logger"
)

// Marker holds and unholds packages.
type Marker interface {
	Hold(ctx context.Context, names []string) error
	Unhold(ctx context.Context, names []string) error
}

// AcquireError reports that the packages could not be unheld. No guard exists afterwards.
type AcquireError struct {
	// Names are the packages that were to be unheld.
	Names []string
	// Err is the cause.
	Err error
}

func (e *AcquireError) Error() string {
	return fmt.Sprintf("unhold %s: %v", strings.Join(e.Names, " "), e.Err)
}

func (e *AcquireError) Unwrap() error {
	return e.Err
}

// ReleaseError reports that the packages could not be held again.
type ReleaseError struct {
	// Names are the packages left without a hold.
	Names []string
	// Err is the cause.
	Err error
}

func (e *ReleaseError) Error() string {
	return fmt.Sprintf("failed to re-hold packages %s: %v", strings.Join(e.Names, " "), e.Err)
}

func (e *ReleaseError) Unwrap() error {
	return e.Err
}

// AbortFunc handles a failed release.
type AbortFunc func(ctx context.Context, err *ReleaseError)

// Option configures a Guard.
type Option func(*Guard)

// WithAbort replaces the default panicking abort handler.
func WithAbort(fn AbortFunc) Option {
	return func(g *Guard) {
		if fn != nil {
			g.abort = fn
		}
	}
}

// Guard owns the set of packages unheld on behalf of the caller.
type Guard struct {
	// marker issues the hold commands.
	marker Marker
	// names is every package that must be held again on release.
	names map[string]struct{}
	// abort runs when the final hold fails.
	abort AbortFunc
	// released is set once Release has started.
	released bool
}

// Acquire unholds names and returns the guard that will hold them again.
func Acquire(ctx context.Context, marker Marker, names []string, opts ...Option) (*Guard, error) {
	g := &Guard{
		marker: marker,
		names:  make(map[string]struct{}, len(names)),
		abort:  panicOnFailure,
	}

	for _, opt := range opts {
		opt(g)
	}

	g.add(names)
	held := g.Names()

	logger.InfoKV(ctx, "Releasing package holds", "packages", held)

	if err := marker.Unhold(ctx, held); err != nil {
		return nil, &AcquireError{Names: held, Err: err}
	}

	return g, nil
}

// Extend adds names to the release set without issuing an unhold.
// Names added after Release are ignored.
func (g *Guard) Extend(names ...string) {
	if g.released {
		return
	}

	g.add(names)
}

// Names returns the release set sorted by name.
func (g *Guard) Names() []string {
	return slices.Sorted(maps.Keys(g.names))
}

// Release holds every tracked package again. Only the first call does anything.
// Cancellation of ctx is ignored so that an interrupted cycle still restores the holds.
// The error is only returned when a custom abort handler returns.
func (g *Guard) Release(ctx context.Context) error {
	if g.released {
		return nil
	}

	g.released = true
	ctx = context.WithoutCancel(ctx)
	names := g.Names()

	logger.InfoKV(ctx, "Restoring package holds", "packages", names)

	if err := g.marker.Hold(ctx, names); err != nil {
		releaseErr := &ReleaseError{Names: names, Err: err}
		logger.ErrorKV(ctx, "Packages are left without a hold and will be upgraded by the next unrelated upgrade",
			"packages", names, "error", err)
		g.abort(ctx, releaseErr)

		return releaseErr
	}

	return nil
}

func (g *Guard) add(names []string) {
	for _, name := range names {
		g.names[name] = struct{}{}
	}
}

func panicOnFailure(_ context.Context, err *ReleaseError) {
	panic(err)
}
