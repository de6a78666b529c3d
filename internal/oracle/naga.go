package oracle

import (
	"fmt"

	"github.com/gogpu/naga"
)

// Naga is the in-process naga shader compiler. It serves both as the
// front end check of the mismatch oracle and as a crash oracle compiler
// target.
type Naga struct{}

// Compile compiles WGSL source to SPIR-V.
func (Naga) Compile(source string) ([]byte, error) {
	return naga.Compile(source)
}

// Validate reports whether naga accepts source.
func (n Naga) Validate(source string) error {
	if _, err := n.Compile(source); err != nil {
		return fmt.Errorf("naga rejected program: %w", err)
	}
	return nil
}
