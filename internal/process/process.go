package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/oshokin/nvidia-update-guard/internal/logger"
)

// Runner executes external commands.
type Runner interface {
	// Run executes path with args, passing the standard streams through.
	Run(ctx context.Context, path string, args ...string) error
	// Output executes path with args and returns what it wrote to stdout.
	Output(ctx context.Context, path string, args ...string) ([]byte, error)
}

// InvocationError reports that the OS could not start a command at all.
type InvocationError struct {
	// Path is the executable that failed to start.
	Path string
	// Err is the underlying start error.
	Err error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("start %s: %v", e.Path, e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// ExitError reports that a command ran and did not succeed.
type ExitError struct {
	// Path is the executable that failed.
	Path string
	// Args are the arguments it was given.
	Args []string
	// Code is the exit status, nil when the process was terminated by a signal.
	Code *int
	// Signal names the terminating signal, if any.
	Signal string
}

func (e *ExitError) Error() string {
	command := strings.TrimSpace(e.Path + " " + strings.Join(e.Args, " "))
	if e.Code == nil {
		if e.Signal == "" {
			return fmt.Sprintf("%s: terminated without exit code", command)
		}

		return fmt.Sprintf("%s: terminated by signal %s", command, e.Signal)
	}

	return fmt.Sprintf("%s: exited with code %d", command, *e.Code)
}

// ExitCode returns the exit status and whether the process exited normally.
func (e *ExitError) ExitCode() (int, bool) {
	if e.Code == nil {
		return 0, false
	}

	return *e.Code, true
}

// DefaultWaitDelay is how long a cancelled child gets to exit after SIGTERM
// before it is killed. dpkg needs time to finish the package it is unpacking.
const DefaultWaitDelay = 30 * time.Second

// Exec is the os/exec backed Runner.
type Exec struct {
	// Stdin, Stdout and Stderr are handed to every child. They default to the
	// streams of the current process.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	// WaitDelay bounds the wait for a child after SIGTERM. Zero means DefaultWaitDelay.
	WaitDelay time.Duration
}

// NewExec returns a Runner that inherits the caller's standard streams.
func NewExec() *Exec {
	return &Exec{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Run implements Runner.
func (x *Exec) Run(ctx context.Context, path string, args ...string) error {
	cmd := x.command(ctx, path, args)
	cmd.Stdout = x.Stdout

	return x.execute(ctx, cmd, path, args)
}

// Output implements Runner.
func (x *Exec) Output(ctx context.Context, path string, args ...string) ([]byte, error) {
	var stdout bytes.Buffer

	cmd := x.command(ctx, path, args)
	cmd.Stdout = &stdout

	if err := x.execute(ctx, cmd, path, args); err != nil {
		return nil, err
	}

	return stdout.Bytes(), nil
}

func (x *Exec) command(ctx context.Context, path string, args []string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdin = x.Stdin
	cmd.Stderr = x.Stderr

	// Let apt and dpkg release their locks before the guard re-holds packages.
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}

	cmd.WaitDelay = x.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = DefaultWaitDelay
	}

	return cmd
}

func (x *Exec) execute(ctx context.Context, cmd *exec.Cmd, path string, args []string) error {
	logger.DebugKV(ctx, "Running command", "path", path, "args", args)

	if err := cmd.Start(); err != nil {
		return &InvocationError{Path: path, Err: err}
	}

	err := cmd.Wait()
	if err == nil {
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s interrupted: %w", path, ctxErr)
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return fmt.Errorf("wait for %s: %w", path, err)
	}

	result := &ExitError{
		Path: path,
		Args: append([]string(nil), args...),
	}

	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		result.Signal = status.Signal().String()
		return result
	}

	if code := exitErr.ExitCode(); code >= 0 {
		result.Code = &code
	}

	return result
}
