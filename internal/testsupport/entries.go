package testsupport

import (
	"bytes"
	"context"
	"io"
	"time"

	"intake/internal/traverse"
)

// FakeFile is an in-memory traversal file entry.
type FakeFile struct {
	FileName string
	Data     []byte
	ModTime  time.Time
	OpenErr  error
}

func (f *FakeFile) Name() string { return f.FileName }

func (f *FakeFile) IsDir() bool { return false }

func (f *FakeFile) Stat() (traverse.FileStat, error) {
	return traverse.FileStat{SizeBytes: int64(len(f.Data)), ModTime: f.ModTime}, nil
}

func (f *FakeFile) Open(_ context.Context) (io.ReadCloser, error) {
	if f.OpenErr != nil {
		return nil, f.OpenErr
	}
	return io.NopCloser(bytes.NewReader(f.Data)), nil
}

// FakeDir is an in-memory traversal directory entry. Children are served
// in batches of BatchSize (all at once when zero). ReadDelay is applied to
// every batch read; Stuck directories never answer at all, mimicking a
// cloud-sync provider that never materializes a listing.
type FakeDir struct {
	DirName   string
	Children  []traverse.Entry
	BatchSize int
	ReadDelay time.Duration
	Stuck     bool
	// StuckAfterBatches blocks every read after the first n batches have
	// been served, modeling a provider that starts answering and then
	// stalls mid-listing.
	StuckAfterBatches int
}

func (d *FakeDir) Name() string { return d.DirName }

func (d *FakeDir) IsDir() bool { return true }

func (d *FakeDir) NewReader() traverse.DirReader {
	return &fakeDirReader{dir: d}
}

type fakeDirReader struct {
	dir     *FakeDir
	offset  int
	batches int
}

func (r *fakeDirReader) ReadBatch(ctx context.Context) ([]traverse.Entry, error) {
	if r.dir.Stuck || (r.dir.StuckAfterBatches > 0 && r.batches >= r.dir.StuckAfterBatches) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	r.batches++
	if r.dir.ReadDelay > 0 {
		select {
		case <-time.After(r.dir.ReadDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.offset >= len(r.dir.Children) {
		return nil, nil
	}
	size := r.dir.BatchSize
	if size <= 0 {
		size = len(r.dir.Children)
	}
	end := r.offset + size
	if end > len(r.dir.Children) {
		end = len(r.dir.Children)
	}
	batch := r.dir.Children[r.offset:end]
	r.offset = end
	return batch, nil
}

// File is a convenience constructor for FakeFile with a fixed mod time.
func File(name, data string) *FakeFile {
	return &FakeFile{
		FileName: name,
		Data:     []byte(data),
		ModTime:  time.Unix(1700000000, 0).UTC(),
	}
}

// Dir is a convenience constructor for FakeDir.
func Dir(name string, children ...traverse.Entry) *FakeDir {
	return &FakeDir{DirName: name, Children: children}
}

// StuckDir builds a directory whose reads never resolve.
func StuckDir(name string) *FakeDir {
	return &FakeDir{DirName: name, Stuck: true}
}
