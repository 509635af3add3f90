// Package testsupport provides shared helpers for package tests: config
// builders seeded with per-test temp directories and in-memory traversal
// entries, including deliberately stuck directories for timeout coverage.
package testsupport
