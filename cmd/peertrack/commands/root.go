package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// dbPath is the path to the SQLite database.
	dbPath string

	// maxSteps is the admission-control cap on non-removed steps.
	maxSteps int64

	// outputFormat controls output format (text, json).
	outputFormat string

	// logLevel controls logging verbosity (debug, info, warn, error).
	logLevel string
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "peertrack",
	Short: "Peer review assignment and lifecycle tracker",
	Long: `Peertrack tracks peer review work: who reviews whose submission,
which reviews are still open, completed, or expired, and the per-submission
rollup counters.

All state lives in a local SQLite database.`,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags.
	rootCmd.PersistentFlags().StringVar(
		&dbPath, "db", "",
		"Path to SQLite database (default: ~/.peertrack/peertrack.db)",
	)
	rootCmd.PersistentFlags().Int64Var(
		&maxSteps, "max-steps", 0,
		"Cap on non-removed review steps (0 uses the default of 100)",
	)
	rootCmd.PersistentFlags().StringVar(
		&outputFormat, "format", "text",
		"Output format: text, json",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "info",
		"Log level: debug, info, warn, error",
	)

	// Flags are overridable from the config file and PEERTRACK_*
	// environment variables via viper.
	viper.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db"))
	viper.BindPFlag(
		"max-steps", rootCmd.PersistentFlags().Lookup("max-steps"),
	)
	viper.BindPFlag("format", rootCmd.PersistentFlags().Lookup("format"))
	viper.BindPFlag(
		"log-level", rootCmd.PersistentFlags().Lookup("log-level"),
	)

	// Add subcommands.
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(assignCmd)
	rootCmd.AddCommand(completeCmd)
	rootCmd.AddCommand(expireCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(stepsCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(versionCmd)
}

// initConfig loads the optional config file and environment overrides.
func initConfig() {
	home, err := os.UserHomeDir()
	if err == nil {
		viper.AddConfigPath(filepath.Join(home, ".peertrack"))
	}
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("peertrack")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "warning: unable to read config "+
				"file: %v\n", err)
		}
	}

	// Propagate resolved values back to the package-level settings.
	dbPath = viper.GetString("db")
	maxSteps = viper.GetInt64("max-steps")
	outputFormat = viper.GetString("format")
	logLevel = viper.GetString("log-level")
}
