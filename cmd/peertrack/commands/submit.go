package commands

import (
	"context"
	"fmt"

	"github.com/roasbeef/peertrack/internal/engine"
	"github.com/spf13/cobra"
)

var (
	submitUnit     string
	submitReviewee string
	submitKey      string
	submitContents string
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Record a submission and start its review process",
	Long: `Record a reviewee's work product for a unit and create the review
summary that assignments for this submission roll up into.`,
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringVar(
		&submitUnit, "unit", "", "Unit the work is submitted for",
	)
	submitCmd.Flags().StringVar(
		&submitReviewee, "reviewee", "", "Submitting participant",
	)
	submitCmd.Flags().StringVar(
		&submitKey, "submission", "",
		"Submission key (generated when omitted)",
	)
	submitCmd.Flags().StringVar(
		&submitContents, "contents", "", "Submitted payload",
	)
	submitCmd.MarkFlagRequired("unit")
	submitCmd.MarkFlagRequired("reviewee")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	eng, cleanup, err := getEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	sub, err := eng.Submit(ctx, engine.SubmitParams{
		UnitID:        submitUnit,
		RevieweeKey:   submitReviewee,
		SubmissionKey: submitKey,
		Contents:      submitContents,
	})
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		return outputJSON(sub)
	}

	fmt.Printf("Submission %s recorded for unit %s\n", sub.Key, sub.UnitID)
	return nil
}
