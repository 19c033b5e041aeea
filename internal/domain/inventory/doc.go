// Package inventory contains the point-in-time view of installed driver
// packages and the comparison rules that decide whether a kernel module
// reload is needed.
package inventory
