package history_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"intake/internal/classify"
	"intake/internal/history"
	"intake/internal/queue"
)

func openStore(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}

func record(fp, uploader string, uploadedAt time.Time) classify.Record {
	return classify.Record{
		Fingerprint: fp,
		Uploader:    uploader,
		UploadedAt:  uploadedAt,
		Metadata: queue.Metadata{
			SizeBytes:      512,
			LastModifiedAt: uploadedAt.Add(-time.Hour),
			Basename:       "report.pdf",
		},
	}
}

func TestRecordAndLookupRoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	uploaded := time.Date(2026, 5, 2, 12, 30, 0, 0, time.UTC)

	want := record("fp-1", "ana", uploaded)
	if err := store.RecordUploads(ctx, []classify.Record{want}, ""); err != nil {
		t.Fatalf("record uploads: %v", err)
	}

	// Duplicate fingerprints in the input must be tolerated.
	got, err := store.LookupByFingerprints(ctx, []string{"fp-1", "fp-1", "fp-missing"}, "")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	records := got["fp-1"]
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Uploader != "ana" || !records[0].UploadedAt.Equal(uploaded) {
		t.Fatalf("unexpected record: %+v", records[0])
	}
	if !records[0].Metadata.Equal(want.Metadata) {
		t.Fatalf("metadata did not survive the round trip: %+v", records[0].Metadata)
	}
	if _, ok := got["fp-missing"]; ok {
		t.Fatal("unknown fingerprint must be absent from the result")
	}
}

func TestLookupScopesAreIsolated(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	uploaded := time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC)

	if err := store.RecordUploads(ctx, []classify.Record{record("fp-1", "ana", uploaded)}, "team-a"); err != nil {
		t.Fatalf("record uploads: %v", err)
	}

	got, err := store.LookupByFingerprints(ctx, []string{"fp-1"}, "team-b")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("scope leak: %v", got)
	}
}

func TestLookupEmptyInput(t *testing.T) {
	store := openStore(t)
	got, err := store.LookupByFingerprints(context.Background(), nil, "")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %v", got)
	}
}

func TestListNewestFirstWithLimit(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	batch := []classify.Record{
		record("fp-1", "ana", base),
		record("fp-2", "ben", base.Add(time.Hour)),
		record("fp-3", "cid", base.Add(2*time.Hour)),
	}
	if err := store.RecordUploads(ctx, batch, ""); err != nil {
		t.Fatalf("record uploads: %v", err)
	}

	got, err := store.List(ctx, "", 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].Fingerprint != "fp-3" || got[1].Fingerprint != "fp-2" {
		t.Fatalf("unexpected order: %s, %s", got[0].Fingerprint, got[1].Fingerprint)
	}
}

func TestPruneRemovesOldRecords(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	batch := []classify.Record{
		record("fp-old", "ana", base),
		record("fp-new", "ben", base.Add(48*time.Hour)),
	}
	if err := store.RecordUploads(ctx, batch, ""); err != nil {
		t.Fatalf("record uploads: %v", err)
	}

	removed, err := store.Prune(ctx, "", base.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 pruned record, got %d", removed)
	}

	got, err := store.LookupByFingerprints(ctx, []string{"fp-old", "fp-new"}, "")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if _, ok := got["fp-old"]; ok {
		t.Fatal("pruned record still present")
	}
	if _, ok := got["fp-new"]; !ok {
		t.Fatal("recent record removed")
	}
}

func TestRecordUploadsRejectsEmptyFingerprint(t *testing.T) {
	store := openStore(t)
	err := store.RecordUploads(context.Background(), []classify.Record{{Uploader: "ana"}}, "")
	if err == nil {
		t.Fatal("expected error for empty fingerprint")
	}
}

func TestRecordFromItem(t *testing.T) {
	item := queue.Item{
		ID:             "a",
		RelativePath:   "drop/report.pdf",
		SizeBytes:      512,
		LastModifiedAt: time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC),
		Fingerprint:    "fp-1",
	}
	uploaded := time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC)

	rec := history.RecordFromItem(item, "ana", uploaded)
	if rec.Fingerprint != "fp-1" || rec.Uploader != "ana" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if !rec.Metadata.Equal(item.Metadata()) {
		t.Fatalf("metadata mismatch: %+v", rec.Metadata)
	}
}
