package queue_test

import (
	"errors"
	"testing"
	"time"

	"intake/internal/logging"
	"intake/internal/queue"
)

func enqueueFiles(t *testing.T, m *queue.Manager, paths ...string) []queue.Item {
	t.Helper()
	files := make([]queue.FileInfo, 0, len(paths))
	for _, p := range paths {
		files = append(files, queue.FileInfo{
			RelativePath:   p,
			SizeBytes:      10,
			LastModifiedAt: time.Unix(1700000000, 0).UTC(),
		})
	}
	items := m.Enqueue(files)
	if len(items) != len(paths) {
		t.Fatalf("expected %d items, got %d", len(paths), len(items))
	}
	return items
}

func TestEnqueuePreservesDiscoveryOrder(t *testing.T) {
	m := queue.NewManager(logging.NewNop())
	enqueueFiles(t, m, "a.txt", "b/c.txt", "b/d.txt")

	items := m.Items()
	want := []string{"a.txt", "b/c.txt", "b/d.txt"}
	for i, item := range items {
		if item.RelativePath != want[i] {
			t.Fatalf("item %d: got %q want %q", i, item.RelativePath, want[i])
		}
		if item.Status != queue.StatusQueued {
			t.Fatalf("item %d: unexpected status %s", i, item.Status)
		}
		if item.ID == "" {
			t.Fatalf("item %d: missing id", i)
		}
	}
}

func TestApplyFingerprintAdvancesToClassifying(t *testing.T) {
	m := queue.NewManager(logging.NewNop())
	items := enqueueFiles(t, m, "a.txt")

	m.MarkStatus([]string{items[0].ID}, queue.StatusHashing)
	if !m.ApplyFingerprint(items[0].ID, "abc_10", nil) {
		t.Fatal("expected fingerprint to apply")
	}

	got := m.Items()[0]
	if got.Status != queue.StatusClassifying {
		t.Fatalf("unexpected status: %s", got.Status)
	}
	if got.Fingerprint != "abc_10" {
		t.Fatalf("unexpected fingerprint: %q", got.Fingerprint)
	}
}

func TestApplyFingerprintErrorMarksItemErrored(t *testing.T) {
	m := queue.NewManager(logging.NewNop())
	items := enqueueFiles(t, m, "a.txt")

	if !m.ApplyFingerprint(items[0].ID, "", errors.New("read failed")) {
		t.Fatal("expected error result to apply")
	}
	got := m.Items()[0]
	if got.Status != queue.StatusErrored {
		t.Fatalf("unexpected status: %s", got.Status)
	}
	if got.ErrorMessage != "read failed" {
		t.Fatalf("unexpected error message: %q", got.ErrorMessage)
	}
}

func TestTransitionsAreMonotonic(t *testing.T) {
	m := queue.NewManager(logging.NewNop())
	items := enqueueFiles(t, m, "a.txt")
	id := items[0].ID

	m.MarkStatus([]string{id}, queue.StatusHashing)
	m.ApplyFingerprint(id, "abc_10", nil)
	m.ApplyDecisions([]queue.Decision{{ItemID: id, Status: queue.StatusReady}})

	// Attempts to move a terminal item anywhere must be rejected.
	if n := m.ApplyDecisions([]queue.Decision{{ItemID: id, Status: queue.StatusDuplicateExact}}); n != 0 {
		t.Fatalf("expected terminal item to reject decision, applied %d", n)
	}
	m.MarkStatus([]string{id}, queue.StatusHashing)
	if got := m.Items()[0].Status; got != queue.StatusReady {
		t.Fatalf("item regressed to %s", got)
	}
}

func TestCancelAllFreezesState(t *testing.T) {
	m := queue.NewManager(logging.NewNop())
	items := enqueueFiles(t, m, "a.txt", "b.txt")
	m.MarkStatus([]string{items[0].ID, items[1].ID}, queue.StatusHashing)

	m.CancelAll()

	if m.ApplyFingerprint(items[0].ID, "late_10", nil) {
		t.Fatal("expected stale fingerprint to be discarded")
	}
	if n := m.ApplyDecisions([]queue.Decision{{ItemID: items[1].ID, Status: queue.StatusReady}}); n != 0 {
		t.Fatalf("expected stale decision to be discarded, applied %d", n)
	}
	if got := m.Enqueue([]queue.FileInfo{{RelativePath: "c.txt"}}); got != nil {
		t.Fatal("expected enqueue after cancel to be rejected")
	}

	after := m.Items()
	if len(after) != 2 {
		t.Fatalf("item count changed after cancel: %d", len(after))
	}
	for _, item := range after {
		if item.Status != queue.StatusHashing {
			t.Fatalf("status changed after cancel: %s", item.Status)
		}
		if item.Fingerprint != "" {
			t.Fatalf("fingerprint applied after cancel: %q", item.Fingerprint)
		}
	}
}

func TestClearIsIdempotent(t *testing.T) {
	m := queue.NewManager(logging.NewNop())
	enqueueFiles(t, m, "a.txt")

	m.Clear()
	if len(m.Items()) != 0 {
		t.Fatal("expected empty queue after clear")
	}
	m.Clear()
	if len(m.Items()) != 0 {
		t.Fatal("expected empty queue after second clear")
	}
	if len(m.Skips()) != 0 {
		t.Fatal("expected skip state reset")
	}
}

func TestApplySkipsCoversEnumeratedFiles(t *testing.T) {
	m := queue.NewManager(logging.NewNop())
	enqueueFiles(t, m, "cloud/a.txt", "cloud/sub/b.txt", "local/c.txt", "cloudy.txt")

	n := m.ApplySkips([]queue.Skip{{Path: "cloud", Reason: "directory read timed out"}})
	if n != 2 {
		t.Fatalf("expected 2 items skipped, got %d", n)
	}

	for _, item := range m.Items() {
		switch item.RelativePath {
		case "cloud/a.txt", "cloud/sub/b.txt":
			if item.Status != queue.StatusSkipped {
				t.Fatalf("%s: expected skipped, got %s", item.RelativePath, item.Status)
			}
		default:
			if item.Status != queue.StatusQueued {
				t.Fatalf("%s: expected queued, got %s", item.RelativePath, item.Status)
			}
		}
	}
}

func TestObserverSeesCompletedBatches(t *testing.T) {
	m := queue.NewManager(logging.NewNop())
	var batches [][]queue.Item
	m.SetObserver(func(items []queue.Item) {
		batches = append(batches, items)
	})

	items := enqueueFiles(t, m, "a.txt", "b.txt")
	m.ApplyDecisions([]queue.Decision{
		{ItemID: items[0].ID, Status: queue.StatusReady},
		{ItemID: items[1].ID, Status: queue.StatusDuplicateExact, Classification: &queue.Classification{MatchedItemID: items[0].ID}},
	})

	if len(batches) != 2 {
		t.Fatalf("expected 2 published batches, got %d", len(batches))
	}
	if len(batches[1]) != 2 {
		t.Fatalf("expected decision batch of 2, got %d", len(batches[1]))
	}
	for _, item := range batches[1] {
		if !item.Status.Terminal() {
			t.Fatalf("observer saw non-terminal status %s in decision batch", item.Status)
		}
	}
}

func TestMetadataEqualUsesInstant(t *testing.T) {
	base := queue.Metadata{SizeBytes: 5, LastModifiedAt: time.Unix(100, 0).UTC(), Basename: "a.txt"}
	local := base
	local.LastModifiedAt = time.Unix(100, 0).In(time.FixedZone("X", 3600))
	if !base.Equal(local) {
		t.Fatal("expected equal metadata across locations")
	}

	diff := base
	diff.LastModifiedAt = time.Unix(101, 0).UTC()
	if base.Equal(diff) {
		t.Fatal("expected differing timestamps to break equality")
	}
}
