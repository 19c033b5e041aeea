package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds tool locations and policy knobs for one update cycle.
type Config struct {
	// AptGetPath is used for `update` and `dist-upgrade`.
	AptGetPath string `yaml:"apt_get_path"`
	// AptMarkPath is used for `hold` and `unhold`.
	AptMarkPath string `yaml:"apt_mark_path"`
	// DpkgQueryPath is used to list installed packages.
	DpkgQueryPath string `yaml:"dpkg_query_path"`
	// RmmodPath unloads the kernel module.
	RmmodPath string `yaml:"rmmod_path"`
	// ModprobePath loads the kernel module.
	ModprobePath string `yaml:"modprobe_path"`
	// RebootPath restarts the host when the module cannot be unloaded.
	RebootPath string `yaml:"reboot_path"`

	// PackagePattern is the dpkg-query glob selecting the guarded packages.
	PackagePattern string `yaml:"package_pattern"`
	// InstalledStatuses lists the dpkg status codes counted as installed.
	InstalledStatuses []string `yaml:"installed_statuses"`
	// KernelModule is reloaded after the guarded packages change.
	KernelModule string `yaml:"kernel_module"`

	// MarkerFile is the file whose mtime tells when the package index was last refreshed.
	MarkerFile string `yaml:"marker_file"`
	// StalenessThreshold is the index age above which `apt-get update` runs.
	StalenessThreshold time.Duration `yaml:"staleness_threshold"`

	// AssumeYes passes -y to dist-upgrade for unattended runs.
	AssumeYes bool `yaml:"assume_yes"`
	// RebootOnFailure restarts the host when the module cannot be unloaded.
	RebootOnFailure bool `yaml:"reboot_on_failure"`
	// Timeout bounds a whole update cycle. Zero means no limit.
	Timeout time.Duration `yaml:"timeout"`
}

const (
	// DefaultAptGetPath is where Debian and Ubuntu install apt-get.
	DefaultAptGetPath = "/usr/bin/apt-get"
	// DefaultAptMarkPath is where Debian and Ubuntu install apt-mark.
	DefaultAptMarkPath = "/usr/bin/apt-mark"
	// DefaultDpkgQueryPath is where Debian and Ubuntu install dpkg-query.
	DefaultDpkgQueryPath = "/usr/bin/dpkg-query"
	// DefaultRmmodPath is where kmod installs rmmod.
	DefaultRmmodPath = "/sbin/rmmod"
	// DefaultModprobePath is where kmod installs modprobe.
	DefaultModprobePath = "/sbin/modprobe"
	// DefaultRebootPath is where systemd installs reboot.
	DefaultRebootPath = "/sbin/reboot"

	// DefaultPackagePattern selects every package with nvidia in its name.
	DefaultPackagePattern = "*nvidia*"
	// DefaultKernelModule is the module shipped by the driver packages.
	DefaultKernelModule = "nvidia"

	// DefaultMarkerFile is rewritten by every successful `apt-get update`.
	DefaultMarkerFile = "/var/cache/apt/pkgcache.bin"
	// DefaultStalenessThreshold bounds how often the index refresh runs on boot.
	DefaultStalenessThreshold = 48 * time.Hour

	// DefaultFilePermissions is the permission used when saving config files.
	DefaultFilePermissions = 0o644
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errRelativePath is returned for tool or marker paths that are not absolute.
	errRelativePath = errors.New("path must be absolute")
	// errNegativeDuration is returned for negative thresholds or timeouts.
	errNegativeDuration = errors.New("duration must not be negative")
	// errEmptyStatus is returned when installed_statuses holds a blank entry.
	errEmptyStatus = errors.New("installed status must not be empty")
)

// DefaultInstalledStatuses returns the dpkg status codes for installed packages:
// "ii" (install ok installed) and "hi" (hold ok installed).
func DefaultInstalledStatuses() []string {
	return []string{"ii", "hi"}
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		AptGetPath:         DefaultAptGetPath,
		AptMarkPath:        DefaultAptMarkPath,
		DpkgQueryPath:      DefaultDpkgQueryPath,
		RmmodPath:          DefaultRmmodPath,
		ModprobePath:       DefaultModprobePath,
		RebootPath:         DefaultRebootPath,
		PackagePattern:     DefaultPackagePattern,
		InstalledStatuses:  DefaultInstalledStatuses(),
		KernelModule:       DefaultKernelModule,
		MarkerFile:         DefaultMarkerFile,
		StalenessThreshold: DefaultStalenessThreshold,
		RebootOnFailure:    true,
	}
}

// Load reads configuration from path on top of Default and validates it.
// An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(contents))
	decoder.KnownFields(true)

	// An empty document leaves the defaults untouched.
	if err = decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes cfg to path after validating it.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := Marshal(cfg)
	if err != nil {
		return err
	}

	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	if cfg == nil {
		return nil, errConfigIsNotSet
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal settings: %w", err)
	}

	return data, nil
}

// Validate fills empty fields with defaults and rejects unusable values.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	paths := []struct {
		name  string
		value *string
		def   string
	}{
		{"apt_get_path", &cfg.AptGetPath, DefaultAptGetPath},
		{"apt_mark_path", &cfg.AptMarkPath, DefaultAptMarkPath},
		{"dpkg_query_path", &cfg.DpkgQueryPath, DefaultDpkgQueryPath},
		{"rmmod_path", &cfg.RmmodPath, DefaultRmmodPath},
		{"modprobe_path", &cfg.ModprobePath, DefaultModprobePath},
		{"reboot_path", &cfg.RebootPath, DefaultRebootPath},
		{"marker_file", &cfg.MarkerFile, DefaultMarkerFile},
	}

	for _, p := range paths {
		if strings.TrimSpace(*p.value) == "" {
			*p.value = p.def
			continue
		}

		if !filepath.IsAbs(*p.value) {
			return fmt.Errorf("%s %q: %w", p.name, *p.value, errRelativePath)
		}
	}

	if strings.TrimSpace(cfg.PackagePattern) == "" {
		cfg.PackagePattern = DefaultPackagePattern
	}

	if strings.TrimSpace(cfg.KernelModule) == "" {
		cfg.KernelModule = DefaultKernelModule
	}

	if len(cfg.InstalledStatuses) == 0 {
		cfg.InstalledStatuses = DefaultInstalledStatuses()
	}

	for _, status := range cfg.InstalledStatuses {
		if strings.TrimSpace(status) == "" {
			return errEmptyStatus
		}
	}

	switch {
	case cfg.StalenessThreshold < 0:
		return fmt.Errorf("staleness_threshold %s: %w", cfg.StalenessThreshold, errNegativeDuration)
	case cfg.StalenessThreshold == 0:
		cfg.StalenessThreshold = DefaultStalenessThreshold
	}

	if cfg.Timeout < 0 {
		return fmt.Errorf("timeout %s: %w", cfg.Timeout, errNegativeDuration)
	}

	return nil
}
