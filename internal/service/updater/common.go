package updater

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"
	"golang.org/x/sys/unix"

	"github.com/oshokin/nvidia-update-guard/internal/logger"
)

var (
	errNotRoot                = errors.New("must run as root")
	errPackageManagerBusy     = errors.New("another package manager is running")
	errAnotherInstanceRunning = errors.New("another nvidia-update-guard is running")
)

// packageManagerExecutables are process names that hold the dpkg lock.
// Linux truncates process names to 15 characters, hence "unattended-upgr".
//
//nolint:gochecknoglobals // Read-only lookup table.
var packageManagerExecutables = []string{
	"apt",
	"apt-get",
	"aptitude",
	"dpkg",
	"synaptic",
	"unattended-upgr",
}

// unattended-upgrades.service keeps this helper alive for the whole uptime,
// waiting for shutdown. Its name is truncated to "unattended-upgr" as well.
const idleUpgradeHelper = "unattended-upgrade-shutdown"

// preflight holds the host probes used before any command runs.
type preflight struct {
	// euid returns the effective user id.
	euid func() int
	// processes lists running processes.
	processes func() ([]ps.Process, error)
	// cmdline returns the argv of a running process.
	cmdline func(pid int) ([]string, error)
	// pid is the id of this process.
	pid int
}

func newPreflight() *preflight {
	return &preflight{
		euid:      unix.Geteuid,
		processes: ps.Processes,
		cmdline:   readCmdline,
		pid:       os.Getpid(),
	}
}

// check refuses to run without root or next to another package manager or another guard.
func (p *preflight) check(ctx context.Context) error {
	if p.euid() != 0 {
		return errNotRoot
	}

	processList, err := p.processes()
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}

	var self string

	for _, process := range processList {
		if process.Pid() == p.pid {
			self = process.Executable()
			break
		}
	}

	for _, process := range processList {
		if process.Pid() == p.pid {
			continue
		}

		name := process.Executable()

		if slices.Contains(packageManagerExecutables, name) && p.busy(ctx, process) {
			logger.WarnKV(ctx, "Package manager is running", "pid", process.Pid(), "executable", name)
			return fmt.Errorf("%s (pid %d): %w", name, process.Pid(), errPackageManagerBusy)
		}

		if self != "" && name == self {
			return fmt.Errorf("pid %d: %w", process.Pid(), errAnotherInstanceRunning)
		}
	}

	return nil
}

// busy tells whether a process named like a package manager may hold the dpkg lock.
func (p *preflight) busy(ctx context.Context, process ps.Process) bool {
	args, err := p.cmdline(process.Pid())
	if errors.Is(err, fs.ErrNotExist) {
		// Exited since the process table was read.
		return false
	}

	if err != nil {
		logger.DebugKV(ctx, "Cannot read command line", "pid", process.Pid(), "error", err)
		return true
	}

	for _, arg := range args {
		if filepath.Base(arg) == idleUpgradeHelper || arg == "--wait-for-signal" {
			logger.DebugKV(ctx, "Ignoring idle upgrade helper", "pid", process.Pid())
			return false
		}
	}

	return true
}

func readCmdline(pid int) ([]string, error) {
	data, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "cmdline"))
	if err != nil {
		return nil, err
	}

	return strings.Split(strings.TrimRight(string(data), "\x00"), "\x00"), nil
}
