// Package kmod brings the running kernel back in line with the installed
// driver after an upgrade: it reloads the kernel module and, when the module
// is busy and cannot be unloaded, restarts the host instead.
package kmod
