package bufcheck

import (
	"bytes"

	"github.com/Quidge/diffharness/internal/reflection"
)

// Execution is one successful execution's raw output, labelled with the
// identifier (config id or target) that produced it.
type Execution struct {
	ID      string
	Buffers [][]byte
}

// ConsensusEntry is a group of identifiers whose canonical outputs agree.
type ConsensusEntry struct {
	Output  []byte
	Members []string
}

// AllAgree reports whether every execution normalizes to the same bytes.
// It is vacuously true for zero or one executions.
//
// Each execution is compared against its predecessor only; byte equality
// is transitive, so a chain of equal neighbours means all are equal.
func AllAgree(execs []Execution, pipeline reflection.PipelineDescription, types []reflection.Type) bool {
	if len(execs) == 0 {
		return true
	}

	prev := Normalize(execs[0].Buffers, pipeline, types)
	for _, e := range execs[1:] {
		current := Normalize(e.Buffers, pipeline, types)
		if !bytes.Equal(current, prev) {
			return false
		}
		prev = current
	}
	return true
}

// Group partitions executions by canonical output. Groups are returned in
// the order their canonical value first appeared, and members keep input
// order. More than one group means the executions disagree.
func Group(execs []Execution, pipeline reflection.PipelineDescription, types []reflection.Type) []ConsensusEntry {
	outputs := make([]Output, len(execs))
	for i, e := range execs {
		outputs[i] = Output{ID: e.ID, Canonical: Normalize(e.Buffers, pipeline, types)}
	}
	return GroupOutputs(outputs)
}

// Output is an already canonical output labelled with its producer.
type Output struct {
	ID        string
	Canonical []byte
}

// GroupOutputs groups already canonical outputs, preserving first
// appearance order.
func GroupOutputs(outputs []Output) []ConsensusEntry {
	var groups []ConsensusEntry
	index := make(map[string]int)

	for _, o := range outputs {
		key := string(o.Canonical)
		if i, ok := index[key]; ok {
			groups[i].Members = append(groups[i].Members, o.ID)
			continue
		}
		index[key] = len(groups)
		groups = append(groups, ConsensusEntry{
			Output:  o.Canonical,
			Members: []string{o.ID},
		})
	}
	return groups
}
