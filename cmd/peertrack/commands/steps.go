package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	stepsUnit       string
	stepsSubmission string
	stepsReviewee   string
)

var stepsCmd = &cobra.Command{
	Use:   "steps",
	Short: "List the review steps for one submission",
	Long: `List every review step, removed included, owned by the summary of
a (unit, submission, reviewee) triple.`,
	RunE: runSteps,
}

func init() {
	stepsCmd.Flags().StringVar(
		&stepsUnit, "unit", "", "Unit the reviewed work belongs to",
	)
	stepsCmd.Flags().StringVar(
		&stepsSubmission, "submission", "", "Reviewed submission key",
	)
	stepsCmd.Flags().StringVar(
		&stepsReviewee, "reviewee", "",
		"Participant whose work is reviewed",
	)
	stepsCmd.MarkFlagRequired("unit")
	stepsCmd.MarkFlagRequired("submission")
	stepsCmd.MarkFlagRequired("reviewee")
}

func runSteps(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	eng, cleanup, err := getEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	steps, err := eng.ListSteps(
		ctx, stepsUnit, stepsSubmission, stepsReviewee,
	)
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		out := make([]stepJSON, len(steps))
		for i, step := range steps {
			out[i] = stepToJSON(step)
		}
		return outputJSON(out)
	}

	if len(steps) == 0 {
		fmt.Println("No review steps found")
		return nil
	}

	for _, step := range steps {
		fmt.Print(formatStep(step))
		fmt.Println()
	}
	return nil
}
