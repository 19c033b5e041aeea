package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/oshokin/nvidia-update-guard/internal/config"
	"github.com/oshokin/nvidia-update-guard/internal/logger"
	"github.com/oshokin/nvidia-update-guard/internal/service/pin"
	"github.com/oshokin/nvidia-update-guard/internal/service/updater"
	"github.com/oshokin/nvidia-update-guard/internal/version"
)

// usageError marks command line mistakes so they map to ExitUsage.
type usageError struct {
	err error
}

func (e *usageError) Error() string {
	return e.err.Error()
}

func (e *usageError) Unwrap() error {
	return e.err
}

// rootFlags are the values bound to the root command flags.
type rootFlags struct {
	configPath    string
	logLevel      string
	markOnly      bool
	verbose       bool
	skipPreflight bool
}

// Execute runs the nvidia-update-guard CLI and exits with the matching status.
func Execute() {
	os.Exit(execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}

	var usageErr *usageError
	if errors.As(err, &usageErr) {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n\n%s", usageErr, root.UsageString())
		return ExitUsage
	}

	_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)

	return ExitFailure
}

func newRootCmd() *cobra.Command {
	flags := new(rootFlags)

	root := &cobra.Command{
		Use:           "nvidia-update-guard",
		Short:         "Upgrade held NVIDIA driver packages only when the kernel module can follow.",
		Long:          longDescription(),
		Args:          noArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			level, ok := logger.ParseLogLevel(flags.logLevel)
			if !ok {
				return &usageError{err: fmt.Errorf("unknown log level %q", flags.logLevel)}
			}

			if flags.verbose {
				level = zapcore.DebugLevel
			}

			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			ctx = logger.ToContext(ctx, logger.NewWithWriter(cmd.ErrOrStderr(), zap.NewAtomicLevelAt(level)))
			defer logger.Sync(ctx)

			return updater.Run(ctx, &updater.Options{
				ConfigPath:    flags.configPath,
				MarkOnly:      flags.markOnly,
				Verbose:       flags.verbose,
				SkipPreflight: flags.skipPreflight,
				OnHoldLost:    holdLost,
			})
		},
	}

	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to configuration file (built-in defaults when empty)")
	root.Flags().BoolVar(&flags.markOnly, "mark-only", false, "don't upgrade anything, just re-hold the driver packages")
	root.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "show diagnostic output (same as --log-level debug)")
	root.Flags().StringVar(&flags.logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	// Hidden flag for running from containers and test rigs.
	root.Flags().BoolVar(&flags.skipPreflight, "skip-preflight", false, "skip the root and running package manager checks")

	if err := root.Flags().MarkHidden("skip-preflight"); err != nil {
		panic(err)
	}

	version.AttachCobraVersionCommand(root)
	root.AddCommand(newConfigCmd(flags))

	return root
}

func newConfigCmd(flags *rootFlags) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML.",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}

			if output != "" {
				return config.Save(output, cfg)
			}

			data, err := config.Marshal(cfg)
			if err != nil {
				return err
			}

			_, err = cmd.OutOrStdout().Write(data)

			return err
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the configuration to this file instead of stdout")

	return cmd
}

// noArgs rejects positional arguments as a usage error.
func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return &usageError{err: err}
	}

	return nil
}

// holdLost stops the process when the driver packages could not be held again.
func holdLost(ctx context.Context, err *pin.ReleaseError) {
	logger.ErrorKV(ctx, "Driver packages are NOT held, fix this before the next upgrade",
		"packages", err.Names, "hint", "apt-mark hold "+strings.Join(err.Names, " "))
	logger.Sync(ctx)
	os.Exit(ExitHoldLost)
}

func longDescription() string {
	heading := color.New(color.Bold).SprintFunc()
	tool := color.New(color.FgCyan).SprintFunc()

	var b strings.Builder

	b.WriteString("Run during startup to update NVIDIA binary driver packages only when the\n")
	b.WriteString("resulting ABI break can be resolved immediately by a kernel module reload or a\n")
	b.WriteString("system restart. The driver packages stay on hold at every other time.\n\n")
	b.WriteString(heading("Required tools") + " (paths configurable):\n")

	required := []struct{ name, path string }{
		{"apt-get", config.DefaultAptGetPath},
		{"apt-mark", config.DefaultAptMarkPath},
		{"dpkg-query", config.DefaultDpkgQueryPath},
		{"rmmod", config.DefaultRmmodPath},
		{"modprobe", config.DefaultModprobePath},
	}
	for _, t := range required {
		fmt.Fprintf(&b, "  %-11s %s\n", tool(t.name), t.path)
	}

	b.WriteString(heading("Optional tools") + ":\n")
	fmt.Fprintf(&b, "  %-11s %s (only when the module cannot be unloaded)\n", tool("reboot"), config.DefaultRebootPath)

	return b.String()
}
