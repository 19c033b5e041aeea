// Package upgrade runs one guarded update cycle of the driver packages.
//
// The cycle refreshes a stale index, snapshots the installed driver packages,
// releases their holds for the duration of a full dist-upgrade, snapshots
// again and reports whether anything changed. The holds are restored on every
// exit path, including errors and mark-only runs.
package upgrade
