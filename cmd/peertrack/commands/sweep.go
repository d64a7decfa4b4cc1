package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var sweepOlderThan time.Duration

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire stale machine-assigned review steps",
	Long: `Expire every machine-assigned, still-open review step older than
the given window. Steps completed or removed concurrently are skipped.`,
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().DurationVar(
		&sweepOlderThan, "older-than", 7*24*time.Hour,
		"Expire steps assigned longer ago than this",
	)
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	eng, cleanup, err := getEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	expired, err := eng.SweepExpired(ctx, sweepOlderThan)
	if err != nil {
		return err
	}

	fmt.Printf("Expired %d review steps\n", expired)
	return nil
}
