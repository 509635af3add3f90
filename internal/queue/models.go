package queue

import (
	"path"
	"strings"
	"time"
)

// Status represents the lifecycle of a queue item. Transitions only move
// forward; an item never regresses to an earlier state.
type Status string

const (
	StatusQueued           Status = "queued"
	StatusHashing          Status = "hashing"
	StatusClassifying      Status = "classifying"
	StatusReady            Status = "ready"
	StatusDuplicateExact   Status = "duplicate_exact"
	StatusDuplicateVariant Status = "duplicate_variant"
	StatusSkipped          Status = "skipped"
	StatusErrored          Status = "errored"
)

var allStatuses = []Status{
	StatusQueued,
	StatusHashing,
	StatusClassifying,
	StatusReady,
	StatusDuplicateExact,
	StatusDuplicateVariant,
	StatusSkipped,
	StatusErrored,
}

const terminalRank = 3

var statusRank = map[Status]int{
	StatusQueued:           0,
	StatusHashing:          1,
	StatusClassifying:      2,
	StatusReady:            terminalRank,
	StatusDuplicateExact:   terminalRank,
	StatusDuplicateVariant: terminalRank,
	StatusSkipped:          terminalRank,
	StatusErrored:          terminalRank,
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	_, ok := statusRank[normalized]
	if normalized == "" {
		return "", false
	}
	return normalized, ok
}

// Terminal reports whether the status is a final display state.
func (s Status) Terminal() bool {
	return statusRank[s] == terminalRank
}

// Uploadable reports whether an item in this status should still be
// uploaded. Variants are uploadable; exact duplicates are not.
func (s Status) Uploadable() bool {
	return s == StatusReady || s == StatusDuplicateVariant
}

// Metadata is the dedup-relevant metadata snapshot of a file. Two items
// with the same fingerprint are exact duplicates only when their Metadata
// also matches; any divergence makes them variants.
type Metadata struct {
	SizeBytes      int64
	LastModifiedAt time.Time
	Basename       string
}

// Equal compares all three fields. Timestamps compare by instant, not
// by location.
func (m Metadata) Equal(other Metadata) bool {
	return m.SizeBytes == other.SizeBytes &&
		m.LastModifiedAt.Equal(other.LastModifiedAt) &&
		m.Basename == other.Basename
}

// Classification records why an item landed in a duplicate state.
type Classification struct {
	// Variant marks a content match whose metadata diverges. Variant items
	// must never be presented as previously uploaded.
	Variant bool
	// MatchedItemID references the kept in-batch representative.
	MatchedItemID string
	// MatchedUploader and MatchedAt identify the historical record an
	// exact duplicate collided with.
	MatchedUploader string
	MatchedAt       time.Time
}

// FileInfo is the discovery-time snapshot used to enqueue an item.
type FileInfo struct {
	RelativePath   string
	SizeBytes      int64
	MimeType       string
	LastModifiedAt time.Time
}

// Item is one discovered file moving through the pipeline.
type Item struct {
	ID             string
	RelativePath   string
	SizeBytes      int64
	MimeType       string
	LastModifiedAt time.Time
	Fingerprint    string
	Status         Status
	ErrorMessage   string
	Classification *Classification
	DiscoveredAt   time.Time
}

// Basename returns the final path element of the item's relative path.
func (i Item) Basename() string {
	return path.Base(i.RelativePath)
}

// Metadata returns the dedup-relevant snapshot captured at discovery.
func (i Item) Metadata() Metadata {
	return Metadata{
		SizeBytes:      i.SizeBytes,
		LastModifiedAt: i.LastModifiedAt,
		Basename:       i.Basename(),
	}
}

// Decision is one classifier verdict, applied to an item by the Manager.
type Decision struct {
	ItemID         string
	Status         Status
	Classification *Classification
}

// Skip names a folder subtree the traversal abandoned.
type Skip struct {
	Path   string
	Reason string
}

// Covers reports whether rel sits inside the skipped subtree.
func (s Skip) Covers(rel string) bool {
	if s.Path == "" {
		return false
	}
	if rel == s.Path {
		return true
	}
	return strings.HasPrefix(rel, s.Path+"/")
}
