package protocol

import "fmt"

const (
	// ExitSuccess means stdout holds a valid Output message.
	ExitSuccess = 0

	// ExitMismatch is only used by composite harness runs: every
	// configuration executed but their outputs disagree.
	ExitMismatch = 1

	// ExitFailure means the execution failed; stderr holds a diagnostic.
	ExitFailure = 101
)

// ExitKind classifies a process exit code.
type ExitKind int

const (
	ExitKindSuccess ExitKind = iota
	ExitKindMismatch
	ExitKindFailure
)

func (k ExitKind) String() string {
	switch k {
	case ExitKindSuccess:
		return "success"
	case ExitKindMismatch:
		return "mismatch"
	case ExitKindFailure:
		return "failure"
	}
	return fmt.Sprintf("ExitKind(%d)", int(k))
}

// ProcessError reports a child process that exited with a code outside
// its contract, or that could not be started at all.
type ProcessError struct {
	// Process names the child, e.g. "worker wgpu:vulkan:1".
	Process string

	// ExitCode is the observed exit code, or -1 if the process did not
	// exit normally (for example it was killed by a signal).
	ExitCode int

	Err error
}

func (e *ProcessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Process, e.Err)
	}
	return fmt.Sprintf("%s exited with unrecognised code `%d`", e.Process, e.ExitCode)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// ClassifyWorkerExit maps a single worker's exit code. Only 0 and 101 are
// valid; anything else is a ProcessError.
func ClassifyWorkerExit(process string, code int) (ExitKind, error) {
	switch code {
	case ExitSuccess:
		return ExitKindSuccess, nil
	case ExitFailure:
		return ExitKindFailure, nil
	}
	return 0, &ProcessError{Process: process, ExitCode: code}
}

// ClassifyHarnessExit maps a composite harness run's exit code, which
// additionally allows ExitMismatch.
func ClassifyHarnessExit(process string, code int) (ExitKind, error) {
	if code == ExitMismatch {
		return ExitKindMismatch, nil
	}
	return ClassifyWorkerExit(process, code)
}
