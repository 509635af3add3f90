package classify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"intake/internal/logging"
	"intake/internal/queue"
)

// Record is one historical upload with the same content fingerprint.
type Record struct {
	Fingerprint string
	Uploader    string
	UploadedAt  time.Time
	Metadata    queue.Metadata
}

// Lookup resolves prior uploads for a set of fingerprints. Implementations
// must tolerate duplicate fingerprints in the input and may return an empty
// map when nothing matches.
type Lookup interface {
	LookupByFingerprints(ctx context.Context, fingerprints []string, scope string) (map[string][]Record, error)
}

const (
	// DefaultLookupChunkSize caps fingerprints per lookup request.
	DefaultLookupChunkSize = 25
	// DefaultLookupParallelism caps in-flight lookup requests.
	DefaultLookupParallelism = 4
)

// Options tunes how historical lookups are issued.
type Options struct {
	LookupChunkSize   int
	LookupParallelism int
	Scope             string
}

func (o *Options) normalize() {
	if o.LookupChunkSize <= 0 {
		o.LookupChunkSize = DefaultLookupChunkSize
	}
	if o.LookupParallelism <= 0 {
		o.LookupParallelism = DefaultLookupParallelism
	}
}

// Classifier assigns terminal duplicate verdicts to fingerprinted items.
type Classifier struct {
	lookup Lookup
	opts   Options
	logger *slog.Logger
}

// New creates a Classifier. lookup may be nil, in which case every item is
// judged against the current batch only.
func New(lookup Lookup, opts Options, logger *slog.Logger) *Classifier {
	opts.normalize()
	return &Classifier{
		lookup: lookup,
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "classifier"),
	}
}

// Classify produces one Decision per input item. Items must carry
// fingerprints; callers pass the batch in discovery order, and the first
// item of each fingerprint group is kept as the in-batch representative.
//
// Precedence per item: exact match against any earlier item of its group,
// then an exact historical match, then a variant verdict, then ready. A
// failed lookup chunk degrades to "no history" for its fingerprints, so a
// lookup outage can only under-report duplicates, never invent them.
func (c *Classifier) Classify(ctx context.Context, items []queue.Item) ([]queue.Decision, error) {
	if len(items) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	history := c.fetchHistory(ctx, items)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	decisions := make([]queue.Decision, 0, len(items))
	groups := make(map[string][]queue.Item)

	for _, item := range items {
		group := groups[item.Fingerprint]
		if len(group) == 0 {
			decisions = append(decisions, c.decideRepresentative(item, history[item.Fingerprint]))
		} else {
			decisions = append(decisions, c.decideFollower(item, group, history[item.Fingerprint]))
		}
		groups[item.Fingerprint] = append(group, item)
	}
	return decisions, nil
}

// decideRepresentative judges the first item of a fingerprint group, which
// has only history to collide with.
func (c *Classifier) decideRepresentative(item queue.Item, records []Record) queue.Decision {
	meta := item.Metadata()
	for _, record := range records {
		if record.Metadata.Equal(meta) {
			return queue.Decision{
				ItemID: item.ID,
				Status: queue.StatusDuplicateExact,
				Classification: &queue.Classification{
					MatchedUploader: record.Uploader,
					MatchedAt:       record.UploadedAt,
				},
			}
		}
	}
	// Content on record under different metadata is a permitted variant;
	// the item stays ready and is never reported as previously uploaded.
	return queue.Decision{ItemID: item.ID, Status: queue.StatusReady}
}

// decideFollower judges a later item whose content already appeared earlier
// in the batch. Earlier group members are scanned in discovery order so the
// follower pairs with the first one sharing its metadata, not just the
// representative.
func (c *Classifier) decideFollower(item queue.Item, earlier []queue.Item, records []Record) queue.Decision {
	meta := item.Metadata()
	for _, prev := range earlier {
		if meta.Equal(prev.Metadata()) {
			return queue.Decision{
				ItemID: item.ID,
				Status: queue.StatusDuplicateExact,
				Classification: &queue.Classification{
					MatchedItemID: prev.ID,
				},
			}
		}
	}
	for _, record := range records {
		if record.Metadata.Equal(meta) {
			return queue.Decision{
				ItemID: item.ID,
				Status: queue.StatusDuplicateExact,
				Classification: &queue.Classification{
					MatchedUploader: record.Uploader,
					MatchedAt:       record.UploadedAt,
				},
			}
		}
	}
	return queue.Decision{
		ItemID: item.ID,
		Status: queue.StatusDuplicateVariant,
		Classification: &queue.Classification{
			Variant:       true,
			MatchedItemID: earlier[0].ID,
		},
	}
}

// fetchHistory resolves uploads for every distinct fingerprint in the
// batch, chunked and in parallel. Chunks that fail are logged and dropped;
// their fingerprints resolve with no history.
func (c *Classifier) fetchHistory(ctx context.Context, items []queue.Item) map[string][]Record {
	if c.lookup == nil {
		return nil
	}

	seen := make(map[string]struct{}, len(items))
	fingerprints := make([]string, 0, len(items))
	for _, item := range items {
		if item.Fingerprint == "" {
			continue
		}
		if _, dup := seen[item.Fingerprint]; dup {
			continue
		}
		seen[item.Fingerprint] = struct{}{}
		fingerprints = append(fingerprints, item.Fingerprint)
	}
	if len(fingerprints) == 0 {
		return nil
	}

	var mu sync.Mutex
	merged := make(map[string][]Record, len(fingerprints))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(c.opts.LookupParallelism)

	for start := 0; start < len(fingerprints); start += c.opts.LookupChunkSize {
		end := min(start+c.opts.LookupChunkSize, len(fingerprints))
		chunk := fingerprints[start:end]
		group.Go(func() error {
			records, err := c.lookup.LookupByFingerprints(groupCtx, chunk, c.opts.Scope)
			if err != nil {
				c.logger.Warn("history lookup failed; treating chunk as unseen",
					logging.Args(
						logging.Int("fingerprints", len(chunk)),
						logging.Error(err))...)
				return nil
			}
			mu.Lock()
			for fp, recs := range records {
				merged[fp] = append(merged[fp], recs...)
			}
			mu.Unlock()
			return nil
		})
	}
	// Workers never return errors; Wait only orders the merge.
	_ = group.Wait()
	return merged
}
