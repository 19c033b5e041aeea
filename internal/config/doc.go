// Package config defines the settings of nvidia-update-guard and provides
// helpers to load, validate and save them in YAML format.
//
// Every external tool is addressed by an absolute path because the binary
// runs as root during startup; PATH lookups are never performed.
package config
