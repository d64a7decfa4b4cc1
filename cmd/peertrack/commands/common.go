package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/roasbeef/peertrack/internal/build"
	"github.com/roasbeef/peertrack/internal/db"
	"github.com/roasbeef/peertrack/internal/engine"
	"github.com/roasbeef/peertrack/internal/review"
	"github.com/roasbeef/peertrack/internal/store"
)

// getEngine opens the database and wires up a lifecycle engine. The
// returned cleanup function closes the store and the log rotator.
func getEngine() (*engine.Engine, func(), error) {
	path := dbPath
	if path == "" {
		var err error
		path, err = db.DefaultDBPath()
		if err != nil {
			return nil, nil, err
		}
	}

	// Console logging goes to stderr so command output stays clean;
	// a rotating file in the database directory keeps history.
	rotatorCfg := build.DefaultLogRotatorConfig()
	rotatorCfg.LogDir = filepath.Join(filepath.Dir(path), "logs")

	logWriter := build.NewRotatingLogWriter()
	if err := logWriter.InitLogRotator(rotatorCfg); err != nil {
		return nil, nil, err
	}

	log := build.NewLogger(
		build.ParseLogLevel(logLevel), os.Stderr, logWriter,
	)

	sqliteStore, err := db.NewSqliteStore(&db.SqliteConfig{
		DatabaseFileName: path,
	}, log)
	if err != nil {
		logWriter.Close()
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	storage := store.NewSQLStore(sqliteStore.BaseDB, log)

	opts := []engine.Option{engine.WithLogger(log)}
	if maxSteps > 0 {
		opts = append(opts, engine.WithMaxUnremovedSteps(maxSteps))
	}

	cleanup := func() {
		storage.Close()
		logWriter.Close()
	}

	return engine.New(storage, opts...), cleanup, nil
}

// formatStep formats a review step for text output.
func formatStep(step review.Step) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Step: %s\n", step.Key))
	sb.WriteString(fmt.Sprintf("  Unit: %s\n", step.UnitID))
	sb.WriteString(fmt.Sprintf("  Submission: %s\n", step.SubmissionKey))
	sb.WriteString(fmt.Sprintf("  Reviewee: %s\n", step.RevieweeKey))
	sb.WriteString(fmt.Sprintf("  Reviewer: %s\n", step.ReviewerKey))
	sb.WriteString(fmt.Sprintf("  Assigner: %s\n", step.AssignerKind))
	sb.WriteString(fmt.Sprintf("  State: %s\n", step.State))

	if step.Removed {
		sb.WriteString("  Removed: yes\n")
	}

	step.ReviewKey.WhenSome(func(key string) {
		sb.WriteString(fmt.Sprintf("  Review: %s\n", key))
	})

	sb.WriteString(fmt.Sprintf("  Created: %s\n",
		step.CreateDate.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("  Changed: %s\n",
		step.ChangeDate.Format(time.RFC3339)))

	return sb.String()
}

// formatSummary formats a review summary for text output.
func formatSummary(summary review.Summary) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Summary: %s\n", summary.Key))
	sb.WriteString(fmt.Sprintf("  Unit: %s\n", summary.UnitID))
	sb.WriteString(fmt.Sprintf("  Submission: %s\n", summary.SubmissionKey))
	sb.WriteString(fmt.Sprintf("  Reviewee: %s\n", summary.RevieweeKey))
	sb.WriteString(strings.Repeat("-", 40) + "\n")
	sb.WriteString(fmt.Sprintf("  Assigned: %d\n", summary.AssignedCount))
	sb.WriteString(fmt.Sprintf("  Completed: %d\n", summary.CompletedCount))
	sb.WriteString(fmt.Sprintf("  Expired: %d\n", summary.ExpiredCount))
	sb.WriteString(fmt.Sprintf("  Total: %d\n", summary.TotalCount()))

	return sb.String()
}

// stepJSON is the JSON projection of a review step, flattening the
// optional review reference.
type stepJSON struct {
	Key           string    `json:"key"`
	SummaryKey    string    `json:"summary_key"`
	UnitID        string    `json:"unit_id"`
	SubmissionKey string    `json:"submission_key"`
	RevieweeKey   string    `json:"reviewee_key"`
	ReviewerKey   string    `json:"reviewer_key"`
	AssignerKind  string    `json:"assigner_kind"`
	State         string    `json:"state"`
	Removed       bool      `json:"removed"`
	ReviewKey     string    `json:"review_key,omitempty"`
	CreateDate    time.Time `json:"create_date"`
	ChangeDate    time.Time `json:"change_date"`
}

func stepToJSON(step review.Step) stepJSON {
	out := stepJSON{
		Key:           step.Key,
		SummaryKey:    step.SummaryKey,
		UnitID:        step.UnitID,
		SubmissionKey: step.SubmissionKey,
		RevieweeKey:   step.RevieweeKey,
		ReviewerKey:   step.ReviewerKey,
		AssignerKind:  step.AssignerKind.String(),
		State:         step.State.String(),
		Removed:       step.Removed,
		CreateDate:    step.CreateDate,
		ChangeDate:    step.ChangeDate,
	}
	step.ReviewKey.WhenSome(func(key string) {
		out.ReviewKey = key
	})
	return out
}

// outputStep prints a step in the selected output format.
func outputStep(step review.Step) error {
	if outputFormat == "json" {
		return outputJSON(stepToJSON(step))
	}

	fmt.Print(formatStep(step))
	return nil
}

// outputJSON outputs data as JSON.
func outputJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
