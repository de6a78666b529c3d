// Package reflection describes the resources a program under test declares:
// the pipeline description handed to every worker and the host-shareable
// type of each resource, from which the significant byte spans of an
// output buffer are derived.
package reflection

import "fmt"

// ResourceKind is the binding type of a declared resource.
type ResourceKind string

const (
	// ResourceStorageBuffer is a read-write storage buffer. Storage buffers
	// are the only resources captured as outputs.
	ResourceStorageBuffer ResourceKind = "storage_buffer"

	// ResourceUniformBuffer is a read-only uniform buffer.
	ResourceUniformBuffer ResourceKind = "uniform_buffer"
)

// Resource is one declared binding.
type Resource struct {
	Kind    ResourceKind `yaml:"kind" cbor:"1,keyasint"`
	Group   uint32       `yaml:"group" cbor:"2,keyasint"`
	Binding uint32       `yaml:"binding" cbor:"3,keyasint"`

	// Size is the buffer size in bytes.
	Size uint32 `yaml:"size" cbor:"4,keyasint"`

	// Init is the initial buffer content. May be shorter than Size, in
	// which case the remainder is zero filled.
	Init []byte `yaml:"init,omitempty" cbor:"5,keyasint"`
}

// PipelineDescription is the ordered list of resources a program declares.
// Declaration order defines the order of the output buffers.
type PipelineDescription struct {
	Resources []Resource `yaml:"resources" cbor:"1,keyasint"`
}

// StorageBuffers returns the indexes (into Resources) of all storage
// buffers, in declaration order.
func (p PipelineDescription) StorageBuffers() []int {
	var idx []int
	for i, r := range p.Resources {
		if r.Kind == ResourceStorageBuffer {
			idx = append(idx, i)
		}
	}
	return idx
}

// Validate checks that the description is self consistent.
func (p PipelineDescription) Validate() error {
	seen := make(map[[2]uint32]int, len(p.Resources))
	for i, r := range p.Resources {
		switch r.Kind {
		case ResourceStorageBuffer, ResourceUniformBuffer:
		default:
			return fmt.Errorf("resource %d: unknown kind %q", i, r.Kind)
		}

		key := [2]uint32{r.Group, r.Binding}
		if prev, ok := seen[key]; ok {
			return fmt.Errorf("resource %d: binding @group(%d) @binding(%d) already used by resource %d", i, r.Group, r.Binding, prev)
		}
		seen[key] = i

		if uint64(len(r.Init)) > uint64(r.Size) {
			return fmt.Errorf("resource %d: init data (%d bytes) exceeds buffer size (%d bytes)", i, len(r.Init), r.Size)
		}
	}
	return nil
}
