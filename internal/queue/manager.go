package queue

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"intake/internal/logging"
)

// Observer receives copies of items whose transitions just completed.
// It is invoked outside the manager lock, only after a batch of updates
// has been fully applied, so observers never see a half-mutated item.
type Observer func(items []Item)

// Manager owns the authoritative list of queue items for one ingestion
// session. All mutation goes through it; once CancelAll or Clear has been
// called, late hashing or classification results are discarded instead of
// applied.
type Manager struct {
	mu        sync.Mutex
	items     []*Item
	index     map[string]*Item
	skips     []Skip
	cancelled bool
	observer  Observer
	logger    *slog.Logger
}

// NewManager constructs an empty queue manager.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		index:  make(map[string]*Item),
		logger: logging.NewComponentLogger(logger, "queue"),
	}
}

// SetObserver registers the publish callback. Passing nil removes it.
func (m *Manager) SetObserver(fn Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observer = fn
}

// Enqueue appends items for the given files in discovery order and returns
// copies of the created items. Discovery order is significant: it is the
// tie-break for in-batch duplicate resolution. Returns nil after
// cancellation.
func (m *Manager) Enqueue(files []FileInfo) []Item {
	if len(files) == 0 {
		return nil
	}
	now := time.Now().UTC()

	m.mu.Lock()
	if m.cancelled {
		m.mu.Unlock()
		return nil
	}
	created := make([]Item, 0, len(files))
	for _, file := range files {
		item := &Item{
			ID:             uuid.NewString(),
			RelativePath:   file.RelativePath,
			SizeBytes:      file.SizeBytes,
			MimeType:       file.MimeType,
			LastModifiedAt: file.LastModifiedAt,
			Status:         StatusQueued,
			DiscoveredAt:   now,
		}
		m.items = append(m.items, item)
		m.index[item.ID] = item
		created = append(created, *item)
	}
	m.mu.Unlock()

	m.publish(created)
	return created
}

// MarkStatus advances the listed items to the given intermediate status.
// Items already past it, terminal items, and unknown ids are left alone.
func (m *Manager) MarkStatus(ids []string, status Status) {
	m.mu.Lock()
	if m.cancelled {
		m.mu.Unlock()
		return
	}
	updated := make([]Item, 0, len(ids))
	for _, id := range ids {
		item, ok := m.index[id]
		if !ok {
			continue
		}
		if err := m.transition(item, status); err != nil {
			continue
		}
		updated = append(updated, *item)
	}
	m.mu.Unlock()

	m.publish(updated)
}

// ApplyFingerprint records a hashing result. A hash error moves the item to
// errored. Returns false when the result was discarded (cancelled session,
// unknown id, or an item already past hashing).
func (m *Manager) ApplyFingerprint(id, fingerprint string, hashErr error) bool {
	m.mu.Lock()
	if m.cancelled {
		m.mu.Unlock()
		return false
	}
	item, ok := m.index[id]
	if !ok {
		m.mu.Unlock()
		return false
	}
	var updated Item
	if hashErr != nil {
		if err := m.transition(item, StatusErrored); err != nil {
			m.mu.Unlock()
			return false
		}
		item.ErrorMessage = hashErr.Error()
	} else {
		if err := m.transition(item, StatusClassifying); err != nil {
			m.mu.Unlock()
			return false
		}
		item.Fingerprint = fingerprint
	}
	updated = *item
	m.mu.Unlock()

	m.publish([]Item{updated})
	return true
}

// ApplyDecisions applies a batch of classifier verdicts atomically and
// returns how many were applied. The whole batch is visible to observers at
// once; a cancelled session discards the batch.
func (m *Manager) ApplyDecisions(decisions []Decision) int {
	m.mu.Lock()
	if m.cancelled {
		m.mu.Unlock()
		return 0
	}
	updated := make([]Item, 0, len(decisions))
	for _, decision := range decisions {
		item, ok := m.index[decision.ItemID]
		if !ok {
			continue
		}
		if err := m.transition(item, decision.Status); err != nil {
			m.logger.Debug("decision discarded",
				logging.String(logging.FieldItemID, decision.ItemID),
				logging.Error(err),
			)
			continue
		}
		item.Classification = decision.Classification
		updated = append(updated, *item)
	}
	m.mu.Unlock()

	m.publish(updated)
	return len(updated)
}

// ApplySkips records abandoned subtrees and moves every non-terminal item
// under a skipped path to skipped, even files that were already enumerated
// before the subtree timed out.
func (m *Manager) ApplySkips(skips []Skip) int {
	if len(skips) == 0 {
		return 0
	}
	m.mu.Lock()
	if m.cancelled {
		m.mu.Unlock()
		return 0
	}
	m.skips = append(m.skips, skips...)
	updated := make([]Item, 0)
	for _, item := range m.items {
		if item.Status.Terminal() {
			continue
		}
		for _, skip := range skips {
			if skip.Covers(item.RelativePath) {
				if err := m.transition(item, StatusSkipped); err == nil {
					item.ErrorMessage = skip.Reason
					updated = append(updated, *item)
				}
				break
			}
		}
	}
	m.mu.Unlock()

	m.publish(updated)
	return len(updated)
}

// CancelAll freezes the queue: every result arriving afterwards is
// discarded, so a cancelled session can never repopulate the list.
func (m *Manager) CancelAll() {
	m.mu.Lock()
	m.cancelled = true
	m.mu.Unlock()
}

// Cancelled reports whether the cancel gate has been set.
func (m *Manager) Cancelled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancelled
}

// Clear cancels in-flight work and discards all items and skip state. Safe
// to call repeatedly and with nothing in flight.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.cancelled = true
	m.items = nil
	m.index = make(map[string]*Item)
	m.skips = nil
	m.mu.Unlock()
}

// Items returns copies of all items in discovery order.
func (m *Manager) Items() []Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Item, len(m.items))
	for i, item := range m.items {
		out[i] = *item
	}
	return out
}

// ItemsByStatus returns copies of items currently in the given status,
// preserving discovery order.
func (m *Manager) ItemsByStatus(status Status) []Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Item
	for _, item := range m.items {
		if item.Status == status {
			out = append(out, *item)
		}
	}
	return out
}

// Skips returns the recorded skipped subtrees.
func (m *Manager) Skips() []Skip {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Skip, len(m.skips))
	copy(out, m.skips)
	return out
}

// Stats returns a count of items grouped by status.
func (m *Manager) Stats() map[Status]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := make(map[Status]int)
	for _, item := range m.items {
		stats[item.Status]++
	}
	return stats
}

// transition enforces monotonic forward movement. Caller holds m.mu.
func (m *Manager) transition(item *Item, to Status) error {
	fromRank, ok := statusRank[item.Status]
	if !ok {
		return fmt.Errorf("unknown current status %q", item.Status)
	}
	toRank, ok := statusRank[to]
	if !ok {
		return fmt.Errorf("unknown target status %q", to)
	}
	if item.Status.Terminal() || toRank <= fromRank {
		return fmt.Errorf("invalid transition %s -> %s", item.Status, to)
	}
	item.Status = to
	return nil
}

// publish invokes the observer outside the lock with fully-formed copies.
func (m *Manager) publish(items []Item) {
	if len(items) == 0 {
		return
	}
	m.mu.Lock()
	fn := m.observer
	m.mu.Unlock()
	if fn != nil {
		fn(items)
	}
}
