package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	summaryUnit       string
	summarySubmission string
	summaryReviewee   string
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show the review summary for one submission",
	Long: `Display the per-state counters of the review summary owned by a
(unit, submission, reviewee) triple.`,
	RunE: runSummary,
}

func init() {
	summaryCmd.Flags().StringVar(
		&summaryUnit, "unit", "", "Unit the reviewed work belongs to",
	)
	summaryCmd.Flags().StringVar(
		&summarySubmission, "submission", "", "Reviewed submission key",
	)
	summaryCmd.Flags().StringVar(
		&summaryReviewee, "reviewee", "",
		"Participant whose work is reviewed",
	)
	summaryCmd.MarkFlagRequired("unit")
	summaryCmd.MarkFlagRequired("submission")
	summaryCmd.MarkFlagRequired("reviewee")
}

func runSummary(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	eng, cleanup, err := getEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	summary, err := eng.GetSummary(
		ctx, summaryUnit, summarySubmission, summaryReviewee,
	)
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		return outputJSON(summary)
	}

	fmt.Print(formatSummary(summary))
	return nil
}
