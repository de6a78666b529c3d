package oracle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"

	"github.com/Quidge/diffharness/internal/target"
)

// CrashTarget is where the crash oracle looks for a crash: an
// ExecutionTarget, a ValidationTarget or a CompilerTarget.
type CrashTarget interface {
	isCrashTarget()
	String() string
}

// ExecutionTarget runs the candidate on a harness target.
type ExecutionTarget struct {
	Target target.Target
}

// ValidationTarget sends the candidate to the reference validator for
// Backend.
type ValidationTarget struct {
	Backend string
}

// CompilerTarget compiles the candidate with the oracle's Compiler.
type CompilerTarget struct{}

func (ExecutionTarget) isCrashTarget()  {}
func (ValidationTarget) isCrashTarget() {}
func (CompilerTarget) isCrashTarget()   {}

func (t ExecutionTarget) String() string  { return t.Target.String() }
func (t ValidationTarget) String() string { return "validate:" + t.Backend }
func (CompilerTarget) String() string     { return "compiler" }

// CrashOracle finds candidates whose crash diagnostic matches Pattern and
// does not match Exclude.
type CrashOracle struct {
	Runner        Runner
	Validator     Validator
	Compiler      Compiler
	Reconditioner Reconditioner

	Pattern *regexp.Regexp

	// Exclude is optional.
	Exclude *regexp.Regexp

	Logger *log.Logger
}

// Matches reports whether diagnostic is a crash of interest.
func (o *CrashOracle) Matches(diagnostic string) bool {
	if o.Pattern == nil || !o.Pattern.MatchString(diagnostic) {
		return false
	}
	return o.Exclude == nil || !o.Exclude.MatchString(diagnostic)
}

// Interesting evaluates targets in order and returns true at the first
// matching crash.
func (o *CrashOracle) Interesting(ctx context.Context, c Candidate, targets []CrashTarget) (bool, error) {
	if o.Pattern == nil {
		return false, errors.New("crash oracle requires a pattern")
	}
	logger := discardLogger(o.Logger)

	program, err := recondition(ctx, o.Reconditioner, c.Program)
	if err != nil {
		return false, err
	}

	for _, t := range targets {
		diagnostic, crashed, err := o.crash(ctx, t, program, c.MetadataPath)
		if err != nil {
			return false, fmt.Errorf("%s: %w", t, err)
		}
		logger.Printf("%s: crashed=%t", t, crashed)
		if crashed && o.Matches(diagnostic) {
			return true, nil
		}
	}
	return false, nil
}

func (o *CrashOracle) crash(ctx context.Context, t CrashTarget, program, metadataPath string) (string, bool, error) {
	switch t := t.(type) {
	case ExecutionTarget:
		if o.Runner == nil {
			return "", false, errors.New("no runner configured")
		}
		res, err := o.Runner.Run(ctx, t.Target, program, metadataPath)
		if err != nil {
			return "", false, err
		}
		if c, ok := res.(target.Crash); ok {
			return c.Diagnostic, true, nil
		}
		return "", false, nil
	case ValidationTarget:
		if o.Validator == nil {
			return "", false, errors.New("no validator configured")
		}
		return o.Validator.Validate(ctx, t.Backend, program)
	case CompilerTarget:
		if o.Compiler == nil {
			return "", false, errors.New("no compiler configured")
		}
		if _, err := o.Compiler.Compile(program); err != nil {
			return err.Error(), true, nil
		}
		return "", false, nil
	}
	return "", false, fmt.Errorf("unsupported crash target %T", t)
}
