package traverse

import (
	"context"
	"errors"
	"mime"
	"path"
	"sync"
	"time"
)

// ErrGlobalTimeout means the whole traversal made no forward progress
// within the session deadline. The usual cause is a selection rooted on a
// cloud-only folder whose provider never materializes listings.
var ErrGlobalTimeout = errors.New("traversal stalled; source is likely cloud-only")

const (
	// DefaultLocalTimeout bounds one directory read.
	DefaultLocalTimeout = time.Second
	// DefaultGlobalTimeout bounds the whole session between signs of
	// forward progress.
	DefaultGlobalTimeout = 15 * time.Second
)

// Options configures a traversal session.
type Options struct {
	LocalTimeout  time.Duration
	GlobalTimeout time.Duration
}

func (o *Options) normalize() {
	if o.LocalTimeout <= 0 {
		o.LocalTimeout = DefaultLocalTimeout
	}
	if o.GlobalTimeout <= 0 {
		o.GlobalTimeout = DefaultGlobalTimeout
	}
}

// Session is one traversal run. Consume Files until it closes, then check
// Err for the terminal status and Skipped for abandoned subtrees. A session
// is not restartable; re-invoke Traverse for another pass.
type Session struct {
	opts  Options
	files chan DiscoveredFile

	cancel   context.CancelFunc
	watchdog *time.Timer

	mu      sync.Mutex
	skipped []SkippedFolder
	err     error
}

// Traverse lazily enumerates the given roots. It returns immediately; the
// enumeration runs until exhaustion, cancellation of ctx, or the global
// deadline. An empty root selection yields an already-closed sequence with
// no timers started.
func Traverse(ctx context.Context, roots []Entry, opts Options) *Session {
	opts.normalize()
	s := &Session{
		opts:  opts,
		files: make(chan DiscoveredFile),
	}
	if len(roots) == 0 {
		close(s.files)
		return s
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.watchdog = time.AfterFunc(opts.GlobalTimeout, func() {
		s.fail(ErrGlobalTimeout)
		cancel()
	})

	go s.run(runCtx, roots)
	return s
}

// Files is the discovery sequence. It closes when the session ends for any
// reason.
func (s *Session) Files() <-chan DiscoveredFile {
	return s.files
}

// Err returns the terminal error once Files has closed: nil on success,
// ErrGlobalTimeout on a stalled session, or the context's error on
// cancellation. Local timeouts are not errors; they surface via Skipped.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Skipped returns the subtrees abandoned so far, one entry per failing
// subtree root.
func (s *Session) Skipped() []SkippedFolder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SkippedFolder, len(s.skipped))
	copy(out, s.skipped)
	return out
}

func (s *Session) run(ctx context.Context, roots []Entry) {
	defer close(s.files)
	defer s.watchdog.Stop()
	defer s.cancel()

	for _, root := range roots {
		if ctx.Err() != nil {
			break
		}
		s.walk(ctx, root, root.Name(), nil)
	}
	if err := ctx.Err(); err != nil {
		s.fail(err)
	}
}

func (s *Session) walk(ctx context.Context, entry Entry, rel string, parent *timeoutToken) {
	if ctx.Err() != nil {
		return
	}
	if dir, ok := entry.(DirEntry); ok && entry.IsDir() {
		s.walkDir(ctx, dir, rel, parent)
		return
	}
	if file, ok := entry.(FileEntry); ok {
		s.emit(ctx, file, rel)
	}
}

func (s *Session) walkDir(ctx context.Context, dir DirEntry, rel string, parent *timeoutToken) {
	token := &timeoutToken{parent: parent}
	reader := dir.NewReader()

	for {
		if ctx.Err() != nil {
			return
		}
		batch, timedOut, err := s.readBatch(ctx, reader)
		if timedOut {
			// The stuck read resolves this directory as empty. Firing
			// the token disables every pending ancestor token, so a
			// nested stuck chain reports exactly one skip. Treated as
			// forward progress: the session is stuck locally, not
			// globally.
			if token.fire() {
				s.recordSkip(rel, "directory read timed out")
			}
			s.progress()
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.recordSkip(rel, "directory read failed: "+err.Error())
			return
		}
		if len(batch) == 0 {
			// Exhausted. Only a non-empty read counts as progress.
			return
		}
		s.progress()

		for _, child := range batch {
			if ctx.Err() != nil {
				return
			}
			s.walk(ctx, child, joinRel(rel, child.Name()), token)
		}
	}
}

// readBatch races one directory read against the local deadline. A provider
// that never resolves leaves its goroutine parked until it eventually
// returns or honors ctx; the traversal itself moves on.
func (s *Session) readBatch(ctx context.Context, reader DirReader) ([]Entry, bool, error) {
	type readResult struct {
		batch []Entry
		err   error
	}
	resCh := make(chan readResult, 1)
	go func() {
		batch, err := reader.ReadBatch(ctx)
		resCh <- readResult{batch: batch, err: err}
	}()

	timer := time.NewTimer(s.opts.LocalTimeout)
	defer timer.Stop()

	select {
	case res := <-resCh:
		return res.batch, false, res.err
	case <-timer.C:
		return nil, true, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

func (s *Session) emit(ctx context.Context, file FileEntry, rel string) {
	discovered := DiscoveredFile{
		File:         file,
		RelativePath: rel,
		MimeType:     mime.TypeByExtension(path.Ext(rel)),
	}
	if stat, err := file.Stat(); err == nil {
		discovered.SizeBytes = stat.SizeBytes
		discovered.ModTime = stat.ModTime
	}
	select {
	case s.files <- discovered:
	case <-ctx.Done():
	}
}

func (s *Session) progress() {
	s.mu.Lock()
	failed := s.err != nil
	s.mu.Unlock()
	if !failed {
		s.watchdog.Reset(s.opts.GlobalTimeout)
	}
}

func (s *Session) recordSkip(rel, reason string) {
	s.mu.Lock()
	s.skipped = append(s.skipped, SkippedFolder{Path: rel, Reason: reason})
	s.mu.Unlock()
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
}

// timeoutToken is the cascade-prevention handle passed down the recursion.
// When a descendant's deadline fires, every pending ancestor token is
// disabled before it could fire on its own, so one stuck subtree yields
// one skip notice rather than one per nesting level.
type timeoutToken struct {
	mu       sync.Mutex
	parent   *timeoutToken
	disabled bool
}

// fire reports whether this token's timeout should produce a skip notice,
// and disables the ancestor chain either way.
func (t *timeoutToken) fire() bool {
	t.mu.Lock()
	fired := !t.disabled
	t.disabled = true
	t.mu.Unlock()

	for p := t.parent; p != nil; p = p.parent {
		p.mu.Lock()
		p.disabled = true
		p.mu.Unlock()
	}
	return fired
}

func joinRel(rel, name string) string {
	if rel == "" {
		return name
	}
	return rel + "/" + name
}
