package state

import (
	"database/sql"
	"fmt"
	"time"
)

// ExecutionOutcome is the terminal state of one configuration in a run.
type ExecutionOutcome string

const (
	ExecutionSuccess ExecutionOutcome = "success"
	ExecutionFailure ExecutionOutcome = "failure"
	ExecutionTimeout ExecutionOutcome = "timeout"
)

// Execution is the recorded outcome of one configuration within a run.
type Execution struct {
	RunID      string
	Config     string // Canonical config id
	Outcome    ExecutionOutcome
	Output     []byte // Canonical output for successful executions
	Diagnostic string // Worker stderr for failures
	Duration   time.Duration
}

// AddExecution records one configuration's outcome.
func (db *DB) AddExecution(e *Execution) error {
	switch e.Outcome {
	case ExecutionSuccess, ExecutionFailure, ExecutionTimeout:
	default:
		return fmt.Errorf("%w: %s", ErrInvalidOutcome, e.Outcome)
	}

	_, err := db.Exec(`
		INSERT INTO executions (run_id, config, outcome, output, diagnostic, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.RunID,
		e.Config,
		string(e.Outcome),
		e.Output,
		nullString(e.Diagnostic),
		e.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to add execution: %w", err)
	}
	return nil
}

// ListExecutions returns the executions of a run ordered by config.
func (db *DB) ListExecutions(runID string) ([]*Execution, error) {
	rows, err := db.Query(`
		SELECT run_id, config, outcome, output, diagnostic, duration_ms
		FROM executions WHERE run_id = ? ORDER BY config`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	defer rows.Close()

	var execs []*Execution
	for rows.Next() {
		var e Execution
		var diagnostic sql.NullString
		var durationMS int64
		if err := rows.Scan(&e.RunID, &e.Config, &e.Outcome, &e.Output, &diagnostic, &durationMS); err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		e.Diagnostic = diagnostic.String
		e.Duration = time.Duration(durationMS) * time.Millisecond
		execs = append(execs, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return execs, nil
}
