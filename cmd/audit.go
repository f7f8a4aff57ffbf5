package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/obralink/vale-audit/internal/model"
)

var auditDate string

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit all vales for a date",
	Long:  "Fetches the reference rows for the date, audits every vale not yet in the processing index, and persists one result per vale.",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := parseDateFlag(auditDate)
		if err != nil {
			return err
		}

		env, err := initEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		summary, err := env.auditor.Run(cmd.Context(), d)
		if err != nil {
			return err
		}

		printSummary(cmd, summary)
		return nil
	},
}

func printSummary(cmd *cobra.Command, s model.BatchSummary) {
	cmd.Printf("Audit %s: %d vales (%d skipped)\n", s.Date, s.Total, s.Skipped)
	cmd.Printf("  approved:      %d\n", s.Approved)
	cmd.Printf("  inconsistent:  %d\n", s.Inconsistent)
	cmd.Printf("  manual review: %d\n", s.ManualReview)
	cmd.Printf("  errored:       %d\n", s.Errored)
	cmd.Printf("  duration:      %s\n", s.Duration.Round(time.Millisecond))
	if s.Errored > 0 {
		cmd.Println("Some vales failed; they will be retried on the next run.")
	}
}

func init() {
	auditCmd.Flags().StringVar(&auditDate, "date", "", "date to audit, YYYY-MM-DD (default today)")
	rootCmd.AddCommand(auditCmd)
}
