package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and maintain the upload-record store",
	}

	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryPruneCommand(ctx))

	return historyCmd
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var scope string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded uploads, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if scope == "" {
				scope = cfg.Classification.Scope
			}
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer func() {
				_ = store.Close()
			}()

			records, err := store.List(cmd.Context(), scope, limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No recorded uploads.")
				return nil
			}

			rows := make([][]string, 0, len(records))
			for _, record := range records {
				rows = append(rows, []string{
					record.Metadata.Basename,
					strconv.FormatInt(record.Metadata.SizeBytes, 10),
					record.Uploader,
					record.UploadedAt.Local().Format("2006-01-02 15:04"),
					shortFingerprint(record.Fingerprint),
				})
			}
			headers := []string{"File", "Bytes", "Uploader", "Uploaded", "Fingerprint"}
			aligns := []columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum records to show (0 for all)")
	cmd.Flags().StringVar(&scope, "scope", "", "Dedup scope to list (defaults to the configured scope)")
	return cmd
}

func newHistoryPruneCommand(ctx *commandContext) *cobra.Command {
	var olderThanDays int
	var scope string

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete upload records older than a cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThanDays <= 0 {
				return fmt.Errorf("--older-than must be a positive number of days")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if scope == "" {
				scope = cfg.Classification.Scope
			}
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer func() {
				_ = store.Close()
			}()

			cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)
			removed, err := store.Prune(cmd.Context(), scope, cutoff)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d records older than %s\n", removed, cutoff.Format("2006-01-02"))
			return nil
		},
	}

	cmd.Flags().IntVar(&olderThanDays, "older-than", 0, "Age cutoff in days (required)")
	cmd.Flags().StringVar(&scope, "scope", "", "Dedup scope to prune (defaults to the configured scope)")
	_ = cmd.MarkFlagRequired("older-than")
	return cmd
}

// shortFingerprint trims a fingerprint for table display, keeping the size
// suffix.
func shortFingerprint(fp string) string {
	if len(fp) <= 20 {
		return fp
	}
	return fp[:12] + "…" + fp[len(fp)-7:]
}
