// Package power restarts the host.
package power
