package power

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

var errTestReboot = errors.New("reboot refused")

// rebootRunner records the tool invoked by Reboot.
type rebootRunner struct {
	// calls holds the argv of each Run call.
	calls [][]string
	// err is returned from Run.
	err error
}

func (r *rebootRunner) Run(_ context.Context, path string, args ...string) error {
	r.calls = append(r.calls, append([]string{path}, args...))

	return r.err
}

func (r *rebootRunner) Output(context.Context, string, ...string) ([]byte, error) {
	return nil, nil
}

// TestReboot checks the invoked tool and error propagation.
func TestReboot(t *testing.T) {
	t.Parallel()

	runner := new(rebootRunner)
	require.NoError(t, Reboot(context.Background(), runner, "/sbin/reboot"))
	require.Equal(t, [][]string{{"/sbin/reboot"}}, runner.calls)

	runner.err = errTestReboot
	require.ErrorIs(t, Reboot(context.Background(), runner, "/sbin/reboot"), errTestReboot)
}
