package apt

import (
	"context"
	"fmt"

	"github.com/oshokin/nvidia-update-guard/internal/logger"
	"github.com/oshokin/nvidia-update-guard/internal/process"
)

// Client runs APT commands through a process.Runner.
type Client struct {
	// runner executes the tools.
	runner process.Runner
	// aptGet is the absolute path to apt-get.
	aptGet string
	// aptMark is the absolute path to apt-mark.
	aptMark string
	// assumeYes adds -y to dist-upgrade.
	assumeYes bool
	// verbose drops the quiet flags so APT progress is visible.
	verbose bool
}

// Option configures a Client.
type Option func(*Client)

// WithAssumeYes answers yes to dist-upgrade prompts.
func WithAssumeYes(assumeYes bool) Option {
	return func(c *Client) {
		c.assumeYes = assumeYes
	}
}

// WithVerbose keeps APT's own progress output instead of passing -q/-qq.
func WithVerbose(verbose bool) Option {
	return func(c *Client) {
		c.verbose = verbose
	}
}

// NewClient creates an APT client.
func NewClient(runner process.Runner, aptGet, aptMark string, opts ...Option) *Client {
	c := &Client{
		runner:  runner,
		aptGet:  aptGet,
		aptMark: aptMark,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Update refreshes the package index.
func (c *Client) Update(ctx context.Context) error {
	if err := c.runner.Run(ctx, c.aptGet, c.quiet("update", "-q")...); err != nil {
		return fmt.Errorf("refresh package index: %w", err)
	}

	return nil
}

// DistUpgrade applies all pending upgrades.
func (c *Client) DistUpgrade(ctx context.Context) error {
	args := c.quiet("dist-upgrade", "-q")
	if c.assumeYes {
		args = append(args, "-y")
	}

	if err := c.runner.Run(ctx, c.aptGet, args...); err != nil {
		return fmt.Errorf("upgrade packages: %w", err)
	}

	return nil
}

// Hold excludes names from upgrades. An empty list is a no-op.
func (c *Client) Hold(ctx context.Context, names []string) error {
	return c.mark(ctx, "hold", names)
}

// Unhold allows names to be upgraded again. An empty list is a no-op.
func (c *Client) Unhold(ctx context.Context, names []string) error {
	return c.mark(ctx, "unhold", names)
}

func (c *Client) mark(ctx context.Context, action string, names []string) error {
	if len(names) == 0 {
		logger.DebugKV(ctx, "Nothing to mark", "action", action)
		return nil
	}

	args := append(c.quiet(action, "-qq"), names...)
	if err := c.runner.Run(ctx, c.aptMark, args...); err != nil {
		return fmt.Errorf("apt-mark %s: %w", action, err)
	}

	return nil
}

// quiet returns the subcommand followed by flag unless the client is verbose.
func (c *Client) quiet(subcommand, flag string) []string {
	if c.verbose {
		return []string{subcommand}
	}

	return []string{subcommand, flag}
}
