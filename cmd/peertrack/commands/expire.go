package commands

import (
	"context"

	"github.com/spf13/cobra"
)

var expireCmd = &cobra.Command{
	Use:   "expire <step-key>",
	Short: "Expire a machine-assigned review step",
	Long: `Cancel an automatically assigned review step that is still open.
Human-assigned steps never expire.`,
	Args: cobra.ExactArgs(1),
	RunE: runExpire,
}

func runExpire(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	eng, cleanup, err := getEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	step, err := eng.Expire(ctx, args[0])
	if err != nil {
		return err
	}

	return outputStep(step)
}
