package oracle

import (
	"bytes"
	"context"
	"fmt"
	"log"

	"github.com/Quidge/diffharness/internal/target"
)

// MismatchOracle finds candidates on which targets disagree.
type MismatchOracle struct {
	Runner        Runner
	Reconditioner Reconditioner

	// FrontEnd, if set, must accept the reconditioned program; a rejected
	// program is never interesting.
	FrontEnd FrontEnd

	Logger *log.Logger
}

// Interesting scans targets in order and reports true as soon as a target
// disagrees internally, a target crashes, or a target's non-empty output
// differs from the first non-empty output seen.
func (o *MismatchOracle) Interesting(ctx context.Context, c Candidate, targets []target.Target) (bool, error) {
	logger := discardLogger(o.Logger)

	program, err := recondition(ctx, o.Reconditioner, c.Program)
	if err != nil {
		return false, err
	}
	if o.FrontEnd != nil {
		if err := o.FrontEnd.Validate(program); err != nil {
			logger.Printf("front end rejected candidate: %v", err)
			return false, nil
		}
	}

	var reference []byte
	for _, t := range targets {
		res, err := o.Runner.Run(ctx, t, program, c.MetadataPath)
		if err != nil {
			return false, fmt.Errorf("%s: %w", t, err)
		}
		logger.Printf("%s: %s", t, res)

		switch r := res.(type) {
		case target.Mismatch, target.Crash:
			return true, nil
		case target.Success:
			// Timed out or empty runs carry no output to compare.
			if len(r.Output) == 0 {
				continue
			}
			if reference == nil {
				reference = r.Output
				continue
			}
			if !bytes.Equal(r.Output, reference) {
				logger.Printf("mismatch between targets")
				return true, nil
			}
		}
	}
	return false, nil
}
