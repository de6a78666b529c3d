package state

import (
	"fmt"
	"strings"
	"time"
)

// ListOptions specifies filters for listing runs.
type ListOptions struct {
	Kind        RunKind   // Filter by kind
	ProgramHash string    // Filter by program hash (exact match)
	Outcomes    []Outcome // Filter by outcome (any of these)
	Limit       int       // Maximum number of runs; 0 means no limit
}

func (opts ListOptions) where() (string, []any) {
	var conditions []string
	var args []any

	if opts.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, string(opts.Kind))
	}

	if opts.ProgramHash != "" {
		conditions = append(conditions, "program_hash = ?")
		args = append(args, opts.ProgramHash)
	}

	if len(opts.Outcomes) > 0 {
		// One "?" placeholder per outcome; values are passed via args.
		placeholders := make([]string, len(opts.Outcomes))
		for i, o := range opts.Outcomes {
			placeholders[i] = "?"
			args = append(args, string(o))
		}
		conditions = append(conditions, fmt.Sprintf("outcome IN (%s)", strings.Join(placeholders, ", ")))
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// ListRuns returns all runs matching the given filters, newest first.
// If no filters are specified, returns all runs.
func (db *DB) ListRuns(opts ListOptions) ([]*Run, error) {
	where, args := opts.where()
	query := `SELECT ` + runColumns + ` FROM runs` + where + ` ORDER BY created_at DESC, rowid DESC`
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// CountRuns returns the number of runs matching the given filters.
func (db *DB) CountRuns(opts ListOptions) (int, error) {
	where, args := opts.where()

	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM runs"+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}

	return count, nil
}

// PruneRuns deletes runs created before cutoff and returns how many were
// removed.
func (db *DB) PruneRuns(cutoff time.Time) (int, error) {
	result, err := db.Exec("DELETE FROM runs WHERE created_at < ?", cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return int(n), nil
}
