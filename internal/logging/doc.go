// Package logging wires log/slog for intake.
//
// New builds a logger with either a compact console handler or JSON output,
// fanned out to stdout and the configured log file. Attribute helpers and
// the component-logger convention keep field names consistent across the
// traversal, hashing, classification, and queue components.
package logging
