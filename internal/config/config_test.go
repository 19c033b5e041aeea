package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestLoadEmptyPathReturnsDefaults checks that no config file means built-in defaults.
func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
	require.Equal(t, 48*time.Hour, cfg.StalenessThreshold)
	require.Equal(t, []string{"ii", "hi"}, cfg.InstalledStatuses)
	require.True(t, cfg.RebootOnFailure)
}

// TestLoadMissingFile ensures an explicit path must exist.
func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

// TestLoadOverridesDefaults verifies partial files only override the keys they set.
func TestLoadOverridesDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "guard.yaml")
	contents := "kernel_module: nvidia_drm\nstaleness_threshold: 12h\nreboot_on_failure: false\nassume_yes: true\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "nvidia_drm", cfg.KernelModule)
	require.Equal(t, 12*time.Hour, cfg.StalenessThreshold)
	require.False(t, cfg.RebootOnFailure)
	require.True(t, cfg.AssumeYes)
	require.Equal(t, DefaultAptGetPath, cfg.AptGetPath)
	require.Equal(t, DefaultPackagePattern, cfg.PackagePattern)
}

// TestLoadEmptyFile keeps the defaults for an empty document.
func TestLoadEmptyFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

// TestLoadRejectsUnknownKeys catches typos in config files.
func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "typo.yaml")
	require.NoError(t, os.WriteFile(path, []byte("kernel_modul: nvidia\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

// TestValidate checks defaults filling and rejection of unusable values.
func TestValidate(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, Validate(nil), errConfigIsNotSet)

	cfg := new(Config)
	require.NoError(t, Validate(cfg))
	require.Equal(t, DefaultDpkgQueryPath, cfg.DpkgQueryPath)
	require.Equal(t, DefaultKernelModule, cfg.KernelModule)
	require.Equal(t, DefaultStalenessThreshold, cfg.StalenessThreshold)

	cfg = Default()
	cfg.AptMarkPath = "apt-mark"
	require.ErrorIs(t, Validate(cfg), errRelativePath)

	cfg = Default()
	cfg.StalenessThreshold = -time.Second
	require.ErrorIs(t, Validate(cfg), errNegativeDuration)

	cfg = Default()
	cfg.Timeout = -time.Minute
	require.ErrorIs(t, Validate(cfg), errNegativeDuration)

	cfg = Default()
	cfg.InstalledStatuses = []string{"ii", " "}
	require.ErrorIs(t, Validate(cfg), errEmptyStatus)
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "guard.yaml")

	want := Default()
	want.MarkerFile = "/tmp/pkgcache.bin"
	want.Timeout = 30 * time.Minute

	require.NoError(t, Save(path, want))

	got, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, want, got)

	require.ErrorIs(t, Save(path, nil), errConfigIsNotSet)
}
