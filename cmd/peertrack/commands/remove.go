package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var removeCmd = &cobra.Command{
	Use:   "remove <step-key>",
	Short: "Soft-delete a review step",
	Long: `Remove a review step, freezing it in its current state and
dropping it from the summary counters. Removing an already removed step is
a no-op.`,
	Args: cobra.ExactArgs(1),
	RunE: runRemove,
}

func runRemove(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	eng, cleanup, err := getEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := eng.Remove(ctx, args[0]); err != nil {
		return err
	}

	fmt.Printf("Step %s removed\n", args[0])
	return nil
}
