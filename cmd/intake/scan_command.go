package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"os/user"
	"strconv"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"intake/internal/classify"
	"intake/internal/history"
	"intake/internal/ingest"
	"intake/internal/queue"
	"intake/internal/transport"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var recordUploads bool
	var uploader string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "scan <path> [path...]",
		Short: "Enumerate, fingerprint, and classify files under the given paths",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.newLogger()
			if err != nil {
				return err
			}
			lookup, closeLookup, err := ctx.openLookup(logger)
			if err != nil {
				return err
			}
			defer closeLookup()

			manager := ingest.New(cfg, lookup, logger)
			defer manager.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			go func() {
				<-runCtx.Done()
				manager.Cancel()
			}()

			if isatty.IsTerminal(os.Stderr.Fd()) {
				attachProgressBar(manager)
			}

			summary, err := manager.Scan(runCtx, args)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			renderSummary(out, summary)
			if verbose {
				renderItems(out, manager.Queue().Items())
			}

			if recordUploads {
				if err := recordScan(cmd, ctx, manager.Queue().Items(), uploader); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&recordUploads, "record", false, "Record uploadable items in the local history store")
	cmd.Flags().StringVar(&uploader, "uploader", "", "Uploader name stored with --record (defaults to the current user)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print the per-file classification table")
	return cmd
}

// attachProgressBar mirrors hashing progress on stderr. The bar follows the
// current batch; totals reset as new batches start.
func attachProgressBar(manager *ingest.Manager) {
	var mu sync.Mutex
	var bar *progressbar.ProgressBar
	var total int

	manager.OnProgress(func(event transport.ProgressEvent) {
		mu.Lock()
		defer mu.Unlock()
		if bar == nil || event.Total != total {
			total = event.Total
			bar = progressbar.NewOptions(event.Total,
				progressbar.OptionSetDescription("hashing"),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionSetWidth(40),
				progressbar.OptionOnCompletion(func() {
					fmt.Fprint(os.Stderr, "\n")
				}),
			)
		}
		_ = bar.Set(event.Current)
	})
}

func renderSummary(out io.Writer, summary *ingest.Summary) {
	rows := make([][]string, 0, len(summary.Counts))
	for _, status := range queue.AllStatuses() {
		count, ok := summary.Counts[status]
		if !ok {
			continue
		}
		rows = append(rows, []string{statusLabel(status), strconv.Itoa(count)})
	}
	fmt.Fprintf(out, "Scanned %d files in %s\n", summary.Discovered, summary.Elapsed.Round(time.Millisecond))
	if len(rows) > 0 {
		fmt.Fprintln(out, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
	}
	for _, skip := range summary.Skipped {
		fmt.Fprintf(out, "Skipped %s: %s\n", skip.Path, skip.Reason)
	}
}

func renderItems(out io.Writer, items []queue.Item) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		detail := ""
		if c := item.Classification; c != nil {
			switch {
			case c.MatchedUploader != "":
				detail = fmt.Sprintf("uploaded by %s on %s", c.MatchedUploader, c.MatchedAt.Format("2006-01-02"))
			case c.Variant:
				detail = "content matches another file"
			case c.MatchedItemID != "":
				detail = "same as an earlier file in this batch"
			}
		}
		if item.ErrorMessage != "" {
			detail = item.ErrorMessage
		}
		rows = append(rows, []string{item.RelativePath, statusLabel(item.Status), detail})
	}
	fmt.Fprintln(out, renderTable([]string{"File", "Status", "Detail"}, rows, nil))
}

// recordScan writes the uploadable outcome of a scan into the local store,
// modeling the bookkeeping that follows a successful upload.
func recordScan(cmd *cobra.Command, ctx *commandContext, items []queue.Item, uploader string) error {
	if uploader == "" {
		uploader = currentUser()
	}
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	store, err := ctx.openStore()
	if err != nil {
		return err
	}
	defer func() {
		_ = store.Close()
	}()

	now := time.Now().UTC()
	records := make([]classify.Record, 0, len(items))
	for _, item := range items {
		if !item.Status.Uploadable() || item.Fingerprint == "" {
			continue
		}
		records = append(records, history.RecordFromItem(item, uploader, now))
	}
	if len(records) == 0 {
		return nil
	}
	if err := store.RecordUploads(cmd.Context(), records, cfg.Classification.Scope); err != nil {
		return fmt.Errorf("record uploads: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Recorded %d uploads for %s\n", len(records), uploader)
	return nil
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "unknown"
}
