package main

import (
	"github.com/spf13/cobra"

	"github.com/obralink/vale-audit/internal/blob"
	"github.com/obralink/vale-audit/internal/model"
)

var statusDate string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show audit progress for a date",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := parseDateFlag(statusDate)
		if err != nil {
			return err
		}

		store, err := initStore(cfg.Blob)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := cmd.Context()
		processed, err := store.List(ctx, d.ProcessedPrefix())
		if err != nil {
			return err
		}
		manual, err := store.List(ctx, d.ManualReviewPrefix())
		if err != nil {
			return err
		}
		failed, err := store.List(ctx, d.FailedPrefix())
		if err != nil {
			return err
		}

		cmd.Printf("Status %s\n", d)
		cmd.Printf("  processed:     %d\n", len(processed))
		cmd.Printf("  manual review: %d\n", len(manual))
		cmd.Printf("  failed:        %d\n", len(failed))

		var index struct {
			Count       int    `json:"count"`
			LastUpdated string `json:"last_updated"`
		}
		switch err := store.ReadJSON(ctx, d.IndexPath(), &index); {
		case err == nil:
			cmd.Printf("  index:         %d entries, updated %s\n", index.Count, index.LastUpdated)
		case blob.IsNotFound(err):
			cmd.Println("  index:         not yet written")
		default:
			return err
		}

		var fs model.FailureSummary
		switch err := store.ReadJSON(ctx, d.FailureSummaryPath(), &fs); {
		case err == nil:
			cmd.Printf("  last failure summary: %d vales (%s)\n", fs.FailedCount, fs.GeneratedAt.Format("2006-01-02 15:04"))
			for _, f := range fs.Failures {
				cmd.Printf("    %s: %s\n", f.RecordID, f.Error)
			}
		case blob.IsNotFound(err):
			// no failures recorded
		default:
			return err
		}

		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusDate, "date", "", "date to inspect, YYYY-MM-DD (default today)")
	rootCmd.AddCommand(statusCmd)
}
