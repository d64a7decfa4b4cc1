package commands

import (
	"context"

	"github.com/roasbeef/peertrack/internal/engine"
	"github.com/roasbeef/peertrack/internal/review"
	"github.com/spf13/cobra"
)

var (
	assignUnit       string
	assignSubmission string
	assignReviewee   string
	assignReviewer   string
	assignAuto       bool
)

var assignCmd = &cobra.Command{
	Use:   "assign",
	Short: "Assign a reviewer to a submission",
	Long: `Create a review step assigning one reviewer to one submission.
Assignment is idempotent: repeating it for the same tuple returns the
existing step. A previously removed assignment for the tuple is revived.`,
	RunE: runAssign,
}

func init() {
	assignCmd.Flags().StringVar(
		&assignUnit, "unit", "", "Unit the reviewed work belongs to",
	)
	assignCmd.Flags().StringVar(
		&assignSubmission, "submission", "", "Reviewed submission key",
	)
	assignCmd.Flags().StringVar(
		&assignReviewee, "reviewee", "",
		"Participant whose work is reviewed",
	)
	assignCmd.Flags().StringVar(
		&assignReviewer, "reviewer", "", "Reviewer to assign",
	)
	assignCmd.Flags().BoolVar(
		&assignAuto, "auto", false,
		"Mark the step as machine-assigned (eligible for expiry)",
	)
	assignCmd.MarkFlagRequired("unit")
	assignCmd.MarkFlagRequired("submission")
	assignCmd.MarkFlagRequired("reviewee")
	assignCmd.MarkFlagRequired("reviewer")
}

func runAssign(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	eng, cleanup, err := getEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	kind := review.AssignerHuman
	if assignAuto {
		kind = review.AssignerAuto
	}

	step, err := eng.Assign(ctx, engine.AssignParams{
		UnitID:        assignUnit,
		SubmissionKey: assignSubmission,
		RevieweeKey:   assignReviewee,
		ReviewerKey:   assignReviewer,
		AssignerKind:  kind,
	})
	if err != nil {
		return err
	}

	return outputStep(step)
}
