// Package traverse enumerates dropped or selected directory trees into a
// flat file sequence without ever blocking on a provider that refuses to
// answer.
//
// Two deadlines protect a session: a short per-directory-read timeout that
// abandons just the stuck subtree (recorded as a SkippedFolder), and a
// session-wide watchdog that aborts everything when no directory read makes
// progress, which usually means the selection is rooted on a cloud-only
// folder. Timeout tokens passed down the recursion suppress cascading skip
// notices so one stuck subtree reports once.
//
// The Entry/DirReader boundary abstracts the selection source; osfs.go
// provides the local-filesystem implementation used by the CLI.
package traverse
