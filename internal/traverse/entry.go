package traverse

import (
	"context"
	"io"
	"time"
)

// Entry is one node exposed by a selection source. It deliberately mirrors
// the minimal directory-picker contract: a name, a file/directory bit, and
// for directories a batched child reader.
type Entry interface {
	Name() string
	IsDir() bool
}

// FileStat is the discovery-time metadata snapshot for a file.
type FileStat struct {
	SizeBytes int64
	ModTime   time.Time
}

// FileEntry is a plain-file node.
type FileEntry interface {
	Entry
	Stat() (FileStat, error)
	Open(ctx context.Context) (io.ReadCloser, error)
}

// DirEntry is a directory node.
type DirEntry interface {
	Entry
	// NewReader returns a fresh reader positioned at the start of the
	// directory's children.
	NewReader() DirReader
}

// DirReader enumerates a directory's children in batches. An empty batch
// means the directory is exhausted; providers backed by cloud-sync sources
// may simply never return, which is why every read runs under a deadline.
type DirReader interface {
	ReadBatch(ctx context.Context) ([]Entry, error)
}

// DiscoveredFile is one enumerated file.
type DiscoveredFile struct {
	File         FileEntry
	RelativePath string
	SizeBytes    int64
	ModTime      time.Time
	MimeType     string
}

// SkippedFolder records a subtree the traversal abandoned, with the reason.
type SkippedFolder struct {
	Path   string
	Reason string
}
