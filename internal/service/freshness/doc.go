// Package freshness decides whether the local package index is old enough
// to justify an `apt-get update` on the boot path.
package freshness
