package history

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Quidge/diffharness/internal/state"
)

// lookupRun resolves an ID prefix, turning state errors into messages
// for the user.
func lookupRun(db *state.DB, idPrefix string) (*state.Run, error) {
	run, err := db.GetRunByPrefix(idPrefix)
	if err != nil {
		var ambiguous *state.AmbiguousPrefixError
		switch {
		case errors.Is(err, state.ErrRunNotFound):
			return nil, fmt.Errorf("run %q not found", idPrefix)
		case errors.As(err, &ambiguous):
			return nil, FormatAmbiguousPrefixError(ambiguous)
		case errors.Is(err, state.ErrInvalidPrefix):
			return nil, fmt.Errorf("invalid run ID %q: must contain only hexadecimal characters", idPrefix)
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// FormatAmbiguousPrefixError formats an AmbiguousPrefixError into a helpful
// error message that shows all matching runs.
func FormatAmbiguousPrefixError(err *state.AmbiguousPrefixError) error {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("ambiguous run ID %q: matches %d runs\n", err.Prefix, len(err.Matches)))
	sb.WriteString("\nMatching runs:\n")

	for _, run := range err.Matches {
		sb.WriteString(fmt.Sprintf("  %s  %-13s  %s  %s\n",
			state.ShortID(run.ID), run.Kind, run.Outcome, run.CreatedAt.Format("2006-01-02 15:04:05")))
	}

	sb.WriteString("\nHint: use a longer prefix")

	return fmt.Errorf("%s", sb.String())
}
