package kmod

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	errTestBusy   = errors.New("rmmod: Module nvidia is in use")
	errTestLoad   = errors.New("modprobe failed")
	errTestReboot = errors.New("reboot failed")
)

// scriptedRunner fails the tools listed in failures.
type scriptedRunner struct {
	// failures maps a tool path to the error it returns.
	failures map[string]error
	// calls holds the argv of each Run call.
	calls [][]string
}

func (s *scriptedRunner) Run(_ context.Context, path string, args ...string) error {
	s.calls = append(s.calls, append([]string{path}, args...))

	return s.failures[path]
}

func (s *scriptedRunner) Output(context.Context, string, ...string) ([]byte, error) {
	return nil, nil
}

func testOptions() Options {
	return Options{
		RmmodPath:       "/sbin/rmmod",
		ModprobePath:    "/sbin/modprobe",
		RebootPath:      "/sbin/reboot",
		Module:          "nvidia",
		RebootOnFailure: true,
	}
}

// TestReloadSuccess unloads then loads the module.
func TestReloadSuccess(t *testing.T) {
	t.Parallel()

	runner := &scriptedRunner{}

	outcome, err := NewReloader(runner, testOptions()).Reload(context.Background())
	require.NoError(t, err)
	require.Equal(t, Reloaded, outcome)
	require.Equal(t, [][]string{{"/sbin/rmmod", "nvidia"}, {"/sbin/modprobe", "nvidia"}}, runner.calls)
}

// TestReloadBusyModuleReboots falls back to a restart without trying to load.
func TestReloadBusyModuleReboots(t *testing.T) {
	t.Parallel()

	runner := &scriptedRunner{failures: map[string]error{"/sbin/rmmod": errTestBusy}}

	outcome, err := NewReloader(runner, testOptions()).Reload(context.Background())
	require.NoError(t, err)
	require.Equal(t, Rebooting, outcome)
	require.Equal(t, [][]string{{"/sbin/rmmod", "nvidia"}, {"/sbin/reboot"}}, runner.calls)
}

// TestReloadRebootFailureIsFatal surfaces a restart that could not be requested.
func TestReloadRebootFailureIsFatal(t *testing.T) {
	t.Parallel()

	runner := &scriptedRunner{failures: map[string]error{
		"/sbin/rmmod":  errTestBusy,
		"/sbin/reboot": errTestReboot,
	}}

	_, err := NewReloader(runner, testOptions()).Reload(context.Background())
	require.ErrorIs(t, err, errTestReboot)
}

// TestReloadLoadFailurePropagates returns modprobe errors after a successful unload.
func TestReloadLoadFailurePropagates(t *testing.T) {
	t.Parallel()

	runner := &scriptedRunner{failures: map[string]error{"/sbin/modprobe": errTestLoad}}

	_, err := NewReloader(runner, testOptions()).Reload(context.Background())
	require.ErrorIs(t, err, errTestLoad)
	require.Len(t, runner.calls, 2)
}

// TestReloadWithoutRebootFallback returns the unload error when restarts are disabled.
func TestReloadWithoutRebootFallback(t *testing.T) {
	t.Parallel()

	opts := testOptions()
	opts.RebootOnFailure = false
	runner := &scriptedRunner{failures: map[string]error{"/sbin/rmmod": errTestBusy}}

	_, err := NewReloader(runner, opts).Reload(context.Background())
	require.ErrorIs(t, err, errTestBusy)
	require.Equal(t, [][]string{{"/sbin/rmmod", "nvidia"}}, runner.calls)
}

// TestReloadCanceledDoesNotReboot never restarts the host for an interrupted unload.
func TestReloadCanceledDoesNotReboot(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := &scriptedRunner{failures: map[string]error{"/sbin/rmmod": context.Canceled}}

	_, err := NewReloader(runner, testOptions()).Reload(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, runner.calls, 1)
}
