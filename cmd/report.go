package main

import (
	"github.com/spf13/cobra"

	"github.com/obralink/vale-audit/internal/report"
)

var (
	reportDate    string
	reportNoEmail bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate and distribute per-obra XLSX reports",
	Long:  "Collects every audit result persisted for the date, builds one workbook per obra, uploads them to the blob store and emails each obra's recipients.",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := parseDateFlag(reportDate)
		if err != nil {
			return err
		}

		store, err := initStore(cfg.Blob)
		if err != nil {
			return err
		}
		defer store.Close()

		var r *report.Reporter
		if reportNoEmail {
			r = report.New(store, nil, cfg.Recipients)
		} else {
			r = initReporter(store)
		}

		summary, err := r.Generate(cmd.Context(), d)
		if err != nil {
			return err
		}

		cmd.Printf("Report %s: %d results across %d obras, %d emailed\n",
			summary.Date, summary.Results, summary.Obras, summary.Emailed)
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportDate, "date", "", "date to report, YYYY-MM-DD (default today)")
	reportCmd.Flags().BoolVar(&reportNoEmail, "no-email", false, "build and upload workbooks without sending email")
	rootCmd.AddCommand(reportCmd)
}
