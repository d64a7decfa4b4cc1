package commands

import (
	"context"

	"github.com/spf13/cobra"
)

var completeContents string

var completeCmd = &cobra.Command{
	Use:   "complete <step-key>",
	Short: "Complete a review step with the reviewer's feedback",
	Long: `Record the reviewer's feedback as an immutable review and move the
step to the completed state.`,
	Args: cobra.ExactArgs(1),
	RunE: runComplete,
}

func init() {
	completeCmd.Flags().StringVar(
		&completeContents, "contents", "", "Review feedback payload",
	)
}

func runComplete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	eng, cleanup, err := getEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	step, err := eng.Complete(ctx, args[0], completeContents)
	if err != nil {
		return err
	}

	return outputStep(step)
}
