// Package process runs external tools to completion.
//
// A tool that cannot be started yields an *InvocationError; a tool that ran
// and failed yields an *ExitError whose Code is nil when a signal killed it.
// Runs are never retried.
package process
