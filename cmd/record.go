package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/Quidge/diffharness/internal/state"
)

// readProgram reads the program text from path, or from stdin when path
// is "-".
func readProgram(path string, stdin io.Reader) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read program: %w", err)
	}
	return string(data), nil
}

// recorder stores one run in the history database. History is best
// effort: when the database is unavailable the recorder only logs.
type recorder struct {
	db     *state.DB
	run    *state.Run
	logger *log.Logger
}

func startRecording(statePath string, run *state.Run, logger *log.Logger) *recorder {
	r := &recorder{logger: logger}

	id, err := state.GenerateID()
	if err != nil {
		logger.Printf("run history disabled: %v", err)
		return r
	}

	db, err := state.Open(statePath)
	if err != nil {
		logger.Printf("run history disabled: %v", err)
		return r
	}

	run.ID = id
	run.CreatedAt = time.Now()
	run.Outcome = state.OutcomePending
	if err := db.CreateRun(run); err != nil {
		logger.Printf("run history disabled: %v", err)
		db.Close()
		return r
	}

	r.db = db
	r.run = run
	logger.Printf("recording run %s", state.ShortID(id))
	return r
}

func (r *recorder) execution(e *state.Execution) {
	if r.db == nil {
		return
	}
	e.RunID = r.run.ID
	if err := r.db.AddExecution(e); err != nil {
		r.logger.Printf("failed to record %s: %v", e.Config, err)
	}
}

func (r *recorder) finish(outcome state.Outcome, detail string) {
	if r.db == nil {
		return
	}
	defer r.db.Close()
	if err := r.db.FinishRun(r.run.ID, outcome, detail, time.Now()); err != nil {
		r.logger.Printf("failed to finish run %s: %v", state.ShortID(r.run.ID), err)
	}
}
