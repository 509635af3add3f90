package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"intake/internal/classify"
	"intake/internal/config"
	"intake/internal/fingerprint"
	"intake/internal/logging"
	"intake/internal/queue"
	"intake/internal/services"
	"intake/internal/transport"
	"intake/internal/traverse"
)

// Summary reports the outcome of one scan.
type Summary struct {
	Discovered int
	Counts     map[queue.Status]int
	Skipped    []queue.Skip
	Elapsed    time.Duration
}

// Manager drives one ingestion session end to end: traversal, background
// hashing, duplicate classification, and queue state. One scan runs at a
// time; Cancel freezes the queue so late results land nowhere.
type Manager struct {
	cfg        *config.Config
	queue      *queue.Manager
	classifier *classify.Classifier
	transport  transport.Transport
	logger     *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// New constructs a manager. lookup may be nil to classify against the
// current batch only.
func New(cfg *config.Config, lookup classify.Lookup, logger *slog.Logger) *Manager {
	componentLogger := logging.NewComponentLogger(logger, "ingest")

	executor := hashExecutor(cfg.Hashing.ChunkSizeBytes)
	tr := transport.Select(executor, transport.Options{
		Workers:          cfg.Hashing.Workers,
		RoundTripTimeout: cfg.RoundTripTimeout(),
		ProgressInterval: cfg.ProgressInterval(),
	}, logger)

	return &Manager{
		cfg:   cfg,
		queue: queue.NewManager(logger),
		classifier: classify.New(lookup, classify.Options{
			LookupChunkSize:   cfg.Classification.LookupChunkSize,
			LookupParallelism: cfg.Classification.LookupParallelism,
			Scope:             cfg.Classification.Scope,
		}, logger),
		transport: tr,
		logger:    componentLogger,
	}
}

// Queue exposes the session's queue manager, primarily so callers can
// register an observer for live display.
func (m *Manager) Queue() *queue.Manager {
	return m.queue
}

// OnProgress registers a hashing progress handler.
func (m *Manager) OnProgress(fn func(transport.ProgressEvent)) {
	m.transport.OnProgress(fn)
}

// Scan runs the full pipeline over the given filesystem roots and returns
// a summary. A stalled traversal aborts the whole operation; skipped
// subtrees and per-file hash errors do not.
func (m *Manager) Scan(ctx context.Context, roots []string) (*Summary, error) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil, services.Wrap(services.ErrValidation, "ingest", "scan", "a scan is already in progress", nil)
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.running = true
	m.cancel = cancel
	m.mu.Unlock()

	defer func() {
		cancel()
		m.mu.Lock()
		m.running = false
		m.cancel = nil
		m.mu.Unlock()
	}()

	started := time.Now()

	entries := make([]traverse.Entry, 0, len(roots))
	for _, root := range roots {
		entry, err := traverse.OSRoot(root, m.cfg.Traversal.DirBatchSize)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "ingest", "scan", "invalid scan root", err)
		}
		entries = append(entries, entry)
	}

	files, err := m.discover(runCtx, entries)
	if err != nil {
		return nil, err
	}

	if err := m.hashAll(runCtx, files); err != nil {
		return nil, err
	}

	if err := m.classifyAll(runCtx); err != nil {
		return nil, err
	}

	summary := &Summary{
		Discovered: len(files),
		Counts:     m.queue.Stats(),
		Skipped:    m.queue.Skips(),
		Elapsed:    time.Since(started),
	}
	m.logger.Info("scan complete",
		logging.Int("discovered", summary.Discovered),
		logging.Int("skipped_folders", len(summary.Skipped)),
		logging.Duration("elapsed", summary.Elapsed),
	)
	return summary, nil
}

// Cancel aborts the running scan, if any, and freezes the queue so results
// still in flight are discarded rather than applied.
func (m *Manager) Cancel() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	m.queue.CancelAll()
}

// Clear cancels in-flight work and resets the queue to empty.
func (m *Manager) Clear() {
	m.Cancel()
	m.queue.Clear()
}

// Close shuts down the hashing transport.
func (m *Manager) Close() {
	m.transport.Terminate()
}

// discover walks the roots, enqueueing every file in discovery order, and
// returns the open handles keyed by item id for the hashing phase.
func (m *Manager) discover(ctx context.Context, roots []traverse.Entry) (map[string]traverse.FileEntry, error) {
	session := traverse.Traverse(ctx, roots, traverse.Options{
		LocalTimeout:  m.cfg.LocalTimeout(),
		GlobalTimeout: m.cfg.GlobalTimeout(),
	})

	handles := make(map[string]traverse.FileEntry)
	for file := range session.Files() {
		created := m.queue.Enqueue([]queue.FileInfo{{
			RelativePath:   file.RelativePath,
			SizeBytes:      file.SizeBytes,
			MimeType:       file.MimeType,
			LastModifiedAt: file.ModTime,
		}})
		if len(created) == 0 {
			// Cancelled mid-traversal; drain and stop.
			continue
		}
		handles[created[0].ID] = file.File
	}

	if err := session.Err(); err != nil {
		if errors.Is(err, traverse.ErrGlobalTimeout) {
			m.queue.CancelAll()
			return nil, services.Wrap(services.ErrTimeout, "ingest", "scan", "traversal made no progress; source is likely cloud-only", err)
		}
		return nil, services.Wrap(services.ErrTransient, "ingest", "scan", "traversal aborted", err)
	}

	skipped := session.Skipped()
	if len(skipped) > 0 {
		skips := make([]queue.Skip, 0, len(skipped))
		for _, folder := range skipped {
			m.logger.Warn("subtree skipped",
				logging.String("path", folder.Path),
				logging.String("reason", folder.Reason),
			)
			skips = append(skips, queue.Skip{Path: folder.Path, Reason: folder.Reason})
		}
		m.queue.ApplySkips(skips)
	}
	return handles, nil
}

// hashAll fingerprints every queued item in bounded batches. A round-trip
// timeout retries the unfinished tasks once; a second timeout marks them
// errored and moves on.
func (m *Manager) hashAll(ctx context.Context, handles map[string]traverse.FileEntry) error {
	pending := m.queue.ItemsByStatus(queue.StatusQueued)
	batchSize := m.cfg.Hashing.BatchSize
	if batchSize <= 0 {
		batchSize = 1
	}

	for start := 0; start < len(pending); start += batchSize {
		if err := ctx.Err(); err != nil {
			return services.Wrap(services.ErrTransient, "ingest", "hash", "hashing aborted", err)
		}
		end := min(start+batchSize, len(pending))
		batch := pending[start:end]

		ids := make([]string, 0, len(batch))
		tasks := make([]transport.Task, 0, len(batch))
		for _, item := range batch {
			file, ok := handles[item.ID]
			if !ok {
				continue
			}
			ids = append(ids, item.ID)
			tasks = append(tasks, transport.Task{ID: item.ID, Payload: file})
		}
		if len(tasks) == 0 {
			continue
		}
		m.queue.MarkStatus(ids, queue.StatusHashing)

		if err := m.dispatch(ctx, tasks); err != nil {
			return err
		}
	}
	return nil
}

// dispatch sends one batch through the transport, retrying leftovers after
// a round-trip timeout.
func (m *Manager) dispatch(ctx context.Context, tasks []transport.Task) error {
	remaining := tasks
	for attempt := 0; attempt < 2 && len(remaining) > 0; attempt++ {
		resp, err := m.transport.Send(ctx, transport.ProcessRequest{Tasks: remaining})
		done := make(map[string]struct{}, len(resp.Results))
		for _, result := range resp.Results {
			done[result.ID] = struct{}{}
			m.queue.ApplyFingerprint(result.ID, result.Value, result.Err)
		}
		if err == nil {
			return nil
		}
		if !errors.Is(err, transport.ErrRoundTripTimeout) {
			return services.Wrap(services.ErrTransient, "ingest", "hash", "hashing transport failed", err)
		}

		leftover := make([]transport.Task, 0, len(remaining))
		for _, task := range remaining {
			if _, ok := done[task.ID]; !ok {
				leftover = append(leftover, task)
			}
		}
		m.logger.Warn("hash batch timed out",
			logging.Int("attempt", attempt+1),
			logging.Int("unfinished", len(leftover)),
		)
		remaining = leftover
	}

	for _, task := range remaining {
		m.queue.ApplyFingerprint(task.ID, "", fmt.Errorf("hashing timed out after retry"))
	}
	return nil
}

// classifyAll resolves duplicates for everything that hashed cleanly.
func (m *Manager) classifyAll(ctx context.Context) error {
	items := m.queue.ItemsByStatus(queue.StatusClassifying)
	if len(items) == 0 {
		return nil
	}
	decisions, err := m.classifier.Classify(ctx, items)
	if err != nil {
		return services.Wrap(services.ErrTransient, "ingest", "classify", "classification aborted", err)
	}
	m.queue.ApplyDecisions(decisions)
	return nil
}

// hashExecutor runs on the transport's execution context: it opens the
// file, streams it through the fingerprint in chunks, and closes it.
func hashExecutor(chunkSize int64) transport.Executor {
	return func(ctx context.Context, task transport.Task) transport.Result {
		file, ok := task.Payload.(traverse.FileEntry)
		if !ok {
			return transport.Result{ID: task.ID, Err: fmt.Errorf("unexpected payload %T", task.Payload)}
		}
		reader, err := file.Open(ctx)
		if err != nil {
			return transport.Result{ID: task.ID, Err: fmt.Errorf("open for hashing: %w", err)}
		}
		defer func() {
			_ = reader.Close()
		}()

		fp, err := fingerprint.Compute(ctx, reader, chunkSize)
		if err != nil {
			return transport.Result{ID: task.ID, Err: err}
		}
		return transport.Result{ID: task.ID, Value: fp}
	}
}
