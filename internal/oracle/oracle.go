// Package oracle decides whether a candidate program is interesting to a
// test case reducer.
//
// Both predicates evaluate their targets in order and stop at the first
// interesting result. An error return always means the infrastructure
// failed; a verdict is never partial.
package oracle

import (
	"context"
	"io"
	"log"

	"github.com/Quidge/diffharness/internal/target"
)

// Candidate is the program under test and its metadata document.
type Candidate struct {
	Program      string
	MetadataPath string
}

// Runner executes a composite run on one target.
type Runner interface {
	Run(ctx context.Context, t target.Target, program, metadataPath string) (target.Result, error)
}

// Validator checks source with a reference compiler for backend.
// failed reports whether validation failed; diagnostic explains why.
type Validator interface {
	Validate(ctx context.Context, backend, source string) (diagnostic string, failed bool, err error)
}

// FrontEnd rejects programs that are not valid source.
type FrontEnd interface {
	Validate(source string) error
}

// Compiler translates source, returning the compiler's error on failure.
type Compiler interface {
	Compile(source string) ([]byte, error)
}

func discardLogger(l *log.Logger) *log.Logger {
	if l == nil {
		return log.New(io.Discard, "", 0)
	}
	return l
}

func recondition(ctx context.Context, r Reconditioner, program string) (string, error) {
	if r == nil {
		return program, nil
	}
	return r.Recondition(ctx, program)
}
