// Package logger provides a small wrapper around zap to offer:
//   - a default sugared logger with a console encoder writing to stderr,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing utilities,
//   - convenience functions (Info, DebugKV, ErrorKV, etc.).
//
// Every service accepts a context and extracts the logger from it. The CLI
// builds a logger at the requested level once and threads it through the
// context, so verbosity is never mutated process-wide.
package logger
