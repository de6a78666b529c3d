package state

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

// RunKind identifies what produced a run.
type RunKind string

const (
	KindRun          RunKind = "run"
	KindTestCrash    RunKind = "test-crash"
	KindTestMismatch RunKind = "test-mismatch"
)

// Outcome is the verdict recorded for a run.
type Outcome string

const (
	OutcomePending        Outcome = "pending"
	OutcomeSuccess        Outcome = "success"
	OutcomeMismatch       Outcome = "mismatch"
	OutcomeCrash          Outcome = "crash"
	OutcomeInteresting    Outcome = "interesting"
	OutcomeNotInteresting Outcome = "not-interesting"
	OutcomeError          Outcome = "error"
)

// ValidOutcomes contains all valid run outcomes.
var ValidOutcomes = []Outcome{
	OutcomePending,
	OutcomeSuccess,
	OutcomeMismatch,
	OutcomeCrash,
	OutcomeInteresting,
	OutcomeNotInteresting,
	OutcomeError,
}

// IsValidOutcome returns true if o is a valid outcome.
func IsValidOutcome(o Outcome) bool {
	for _, valid := range ValidOutcomes {
		if o == valid {
			return true
		}
	}
	return false
}

// Run is one recorded invocation.
type Run struct {
	ID           string  // 32 hex chars
	Kind         RunKind // What produced the run
	ProgramPath  string  // Program as given on the command line ("-" for stdin)
	ProgramHash  string  // SHA-256 of the program text
	MetadataPath string  // May be empty
	CreatedAt    time.Time
	FinishedAt   time.Time // Zero while pending
	Outcome      Outcome
	Detail       string // Error text or summary (may be empty)
}

// ErrRunNotFound is returned when a run with the given ID does not exist.
var ErrRunNotFound = errors.New("run not found")

// ErrAmbiguousPrefix is returned when an ID prefix matches multiple runs.
var ErrAmbiguousPrefix = errors.New("ambiguous run ID prefix")

// AmbiguousPrefixError is returned when an ID prefix matches multiple runs.
// It includes the list of matching runs for better error messages.
type AmbiguousPrefixError struct {
	Prefix  string
	Matches []*Run
}

func (e *AmbiguousPrefixError) Error() string {
	return fmt.Sprintf("%s: '%s' matches %d runs", ErrAmbiguousPrefix.Error(), e.Prefix, len(e.Matches))
}

func (e *AmbiguousPrefixError) Unwrap() error {
	return ErrAmbiguousPrefix
}

// ErrInvalidPrefix is returned when an ID prefix contains non-hex characters.
var ErrInvalidPrefix = errors.New("invalid ID prefix: must contain only hexadecimal characters")

// ErrInvalidOutcome is returned when an invalid outcome is provided.
var ErrInvalidOutcome = errors.New("invalid outcome")

// isHexString returns true if s contains only hexadecimal characters.
func isHexString(s string) bool {
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}

// HashProgram returns the hex SHA-256 of a program's text.
func HashProgram(program string) string {
	sum := sha256.Sum256([]byte(program))
	return hex.EncodeToString(sum[:])
}

const runColumns = `id, kind, program_path, program_hash, metadata_path,
		       created_at, finished_at, outcome, detail`

// CreateRun inserts a new run into the database.
func (db *DB) CreateRun(run *Run) error {
	if !IsValidOutcome(run.Outcome) {
		return fmt.Errorf("%w: %s", ErrInvalidOutcome, run.Outcome)
	}

	_, err := db.Exec(`
		INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		string(run.Kind),
		run.ProgramPath,
		run.ProgramHash,
		nullString(run.MetadataPath),
		run.CreatedAt.UTC().Format(time.RFC3339),
		nullTime(run.FinishedAt),
		string(run.Outcome),
		nullString(run.Detail),
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// FinishRun records the final outcome of a run.
func (db *DB) FinishRun(id string, outcome Outcome, detail string, finishedAt time.Time) error {
	if !IsValidOutcome(outcome) {
		return fmt.Errorf("%w: %s", ErrInvalidOutcome, outcome)
	}

	result, err := db.Exec(`
		UPDATE runs SET outcome = ?, detail = ?, finished_at = ? WHERE id = ?`,
		string(outcome),
		nullString(detail),
		nullTime(finishedAt),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return checkAffected(result)
}

// GetRun retrieves a run by full ID.
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// GetRunByPrefix retrieves a run by ID prefix.
// Returns ErrRunNotFound if no match, ErrAmbiguousPrefix if multiple matches,
// or ErrInvalidPrefix if the prefix contains non-hex characters.
func (db *DB) GetRunByPrefix(prefix string) (*Run, error) {
	if prefix == "" || !isHexString(prefix) {
		return nil, ErrInvalidPrefix
	}

	rows, err := db.Query(`SELECT `+runColumns+` FROM runs WHERE id LIKE ? || '%'`, strings.ToLower(prefix))
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
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

	switch len(runs) {
	case 0:
		return nil, ErrRunNotFound
	case 1:
		return runs[0], nil
	default:
		return nil, &AmbiguousPrefixError{Prefix: prefix, Matches: runs}
	}
}

// DeleteRun removes a run and its executions from the database.
func (db *DB) DeleteRun(id string) error {
	result, err := db.Exec("DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return checkAffected(result)
}

func checkAffected(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return ErrRunNotFound
	}
	return nil
}

// scanner is an interface for sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanRun scans a row into a Run struct.
func scanRun(s scanner) (*Run, error) {
	var run Run
	var metadataPath, finishedAt, detail sql.NullString
	var createdAt string

	err := s.Scan(
		&run.ID,
		&run.Kind,
		&run.ProgramPath,
		&run.ProgramHash,
		&metadataPath,
		&createdAt,
		&finishedAt,
		&run.Outcome,
		&detail,
	)
	if err != nil {
		return nil, err
	}

	run.MetadataPath = metadataPath.String
	run.Detail = detail.String

	run.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if finishedAt.Valid {
		run.FinishedAt, err = time.Parse(time.RFC3339, finishedAt.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse finished_at: %w", err)
		}
	}

	return &run, nil
}

// nullString converts an empty string to sql.NullString for optional fields.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullTime stores the zero time as NULL.
func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}
