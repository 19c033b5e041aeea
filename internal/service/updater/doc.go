// Package updater is the entry point of one nvidia-update-guard run.
//
// It loads the configuration, checks that the host is in a state where
// packages may be touched, runs the guarded upgrade cycle and, when the
// driver packages changed, reloads the kernel module or restarts the host.
package updater
