package traverse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
)

// DefaultDirBatchSize is the child count requested per directory read when
// none is configured.
const DefaultDirBatchSize = 100

// OSRoot wraps a filesystem path as a traversal Entry.
func OSRoot(path string, batchSize int) (Entry, error) {
	if batchSize <= 0 {
		batchSize = DefaultDirBatchSize
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve root %q: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat root %q: %w", path, err)
	}
	if info.IsDir() {
		return osDir{path: abs, name: filepath.Base(abs), batch: batchSize}, nil
	}
	return osFile{path: abs, name: filepath.Base(abs)}, nil
}

type osFile struct {
	path string
	name string
}

func (f osFile) Name() string { return f.name }

func (f osFile) IsDir() bool { return false }

func (f osFile) Stat() (FileStat, error) {
	info, err := os.Stat(f.path)
	if err != nil {
		return FileStat{}, fmt.Errorf("stat %q: %w", f.path, err)
	}
	return FileStat{SizeBytes: info.Size(), ModTime: info.ModTime().UTC()}, nil
}

func (f osFile) Open(_ context.Context) (io.ReadCloser, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", f.path, err)
	}
	return file, nil
}

type osDir struct {
	path  string
	name  string
	batch int
}

func (d osDir) Name() string { return d.name }

func (d osDir) IsDir() bool { return true }

func (d osDir) NewReader() DirReader {
	return &osDirReader{dir: d}
}

type osDirReader struct {
	dir  osDir
	file *os.File
	done bool
}

func (r *osDirReader) ReadBatch(_ context.Context) ([]Entry, error) {
	if r.done {
		return nil, nil
	}
	if r.file == nil {
		file, err := os.Open(r.dir.path)
		if err != nil {
			r.done = true
			return nil, fmt.Errorf("open directory %q: %w", r.dir.path, err)
		}
		r.file = file
	}

	children, err := r.file.ReadDir(r.dir.batch)
	if errors.Is(err, io.EOF) || (err == nil && len(children) == 0) {
		r.close()
		return nil, nil
	}
	if err != nil {
		r.close()
		return nil, fmt.Errorf("read directory %q: %w", r.dir.path, err)
	}

	// ReadDir(n) yields directory order; sort each batch so discovery
	// order is stable across runs on the same tree.
	slices.SortFunc(children, func(a, b os.DirEntry) int {
		switch {
		case a.Name() < b.Name():
			return -1
		case a.Name() > b.Name():
			return 1
		default:
			return 0
		}
	})

	entries := make([]Entry, 0, len(children))
	for _, child := range children {
		childPath := filepath.Join(r.dir.path, child.Name())
		if child.IsDir() {
			entries = append(entries, osDir{path: childPath, name: child.Name(), batch: r.dir.batch})
			continue
		}
		if child.Type().IsRegular() {
			entries = append(entries, osFile{path: childPath, name: child.Name()})
		}
	}
	return entries, nil
}

func (r *osDirReader) close() {
	r.done = true
	if r.file != nil {
		_ = r.file.Close()
		r.file = nil
	}
}
