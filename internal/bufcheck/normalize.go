// Package bufcheck canonicalizes execution outputs and compares them
// across configurations.
//
// Different implementations may lay out the same logical buffer content
// with different padding. Normalize keeps only the bytes covered by each
// storage buffer's significant spans, so equal logical content always
// produces equal canonical bytes.
package bufcheck

import (
	"fmt"

	"github.com/Quidge/diffharness/internal/reflection"
)

// ContractViolation is raised (as a panic value) when buffers, pipeline
// description and types are not mutually consistent. It indicates a
// programming error, never a property of the program under test.
type ContractViolation struct {
	Reason string
}

func (c ContractViolation) Error() string {
	return "bufcheck: contract violation: " + c.Reason
}

func violate(format string, args ...any) {
	panic(ContractViolation{Reason: fmt.Sprintf(format, args...)})
}

// Normalize returns the canonical form of one execution's output buffers.
//
// Storage buffers are visited in declaration order; buffers[i] is the i-th
// storage buffer and types[j] is the type of resource j. For each buffer
// the significant spans are appended in order; every other byte is
// dropped. Inconsistent inputs panic with a ContractViolation.
func Normalize(buffers [][]byte, pipeline reflection.PipelineDescription, types []reflection.Type) []byte {
	storage := pipeline.StorageBuffers()
	if len(buffers) != len(storage) {
		violate("%d buffers for %d storage buffer resources", len(buffers), len(storage))
	}
	if len(types) != len(pipeline.Resources) {
		violate("%d types for %d resources", len(types), len(pipeline.Resources))
	}

	var canonical []byte
	for i, j := range storage {
		buffer := buffers[i]
		for _, span := range types[j].Ranges() {
			end := span.Offset + span.Length
			if span.Offset < 0 || end > len(buffer) {
				violate("span [%d, %d) out of bounds of buffer %d (%d bytes)", span.Offset, end, i, len(buffer))
			}
			canonical = append(canonical, buffer[span.Offset:end]...)
		}
	}

	if canonical == nil {
		canonical = []byte{}
	}
	return canonical
}

// NormalizeChecked is Normalize with the contract violation returned as
// an error. It is meant for callers that receive buffers from another
// process and must not crash on a misbehaving peer.
func NormalizeChecked(buffers [][]byte, pipeline reflection.PipelineDescription, types []reflection.Type) (canonical []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			cv, ok := r.(ContractViolation)
			if !ok {
				panic(r)
			}
			err = cv
		}
	}()
	return Normalize(buffers, pipeline, types), nil
}
