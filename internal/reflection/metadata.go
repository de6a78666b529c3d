package reflection

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Metadata pairs a pipeline description with the type of every resource.
// Types is aligned by index with Pipeline.Resources.
type Metadata struct {
	Pipeline PipelineDescription
	Types    []Type
}

type resourceDoc struct {
	Kind    ResourceKind `yaml:"kind"`
	Group   uint32       `yaml:"group"`
	Binding uint32       `yaml:"binding"`
	Size    uint32       `yaml:"size"`
	Init    []byte       `yaml:"init"`
	Type    *Type        `yaml:"type"`
}

type metadataDoc struct {
	Resources []resourceDoc `yaml:"resources"`
}

// ParseMetadata parses an inputs document. JSON documents are accepted
// since YAML is a superset of JSON.
//
//	resources:
//	  - kind: storage_buffer
//	    group: 0
//	    binding: 0
//	    type: "array<u32, 4>"
//	    init: [1, 0, 0, 0]
//
// A resource without an explicit size is sized to its type.
func ParseMetadata(data []byte) (*Metadata, error) {
	var doc metadataDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid metadata: %w", err)
	}

	md := &Metadata{
		Pipeline: PipelineDescription{Resources: make([]Resource, 0, len(doc.Resources))},
		Types:    make([]Type, 0, len(doc.Resources)),
	}

	for i, r := range doc.Resources {
		if r.Kind == "" {
			r.Kind = ResourceStorageBuffer
		}

		var typ Type
		switch {
		case r.Type != nil:
			typ = *r.Type
		case r.Kind == ResourceStorageBuffer:
			return nil, fmt.Errorf("invalid metadata: resource %d: storage buffer requires a type", i)
		case r.Size == 0:
			return nil, fmt.Errorf("invalid metadata: resource %d: requires a type or a size", i)
		default:
			typ = Array(Scalar(ScalarU32), int((r.Size+3)/4))
		}

		size := r.Size
		if size == 0 {
			size = uint32(typ.Size())
		}
		if int(size) < typ.Size() {
			return nil, fmt.Errorf("invalid metadata: resource %d: size %d is smaller than type %s (%d bytes)", i, size, typ, typ.Size())
		}

		md.Pipeline.Resources = append(md.Pipeline.Resources, Resource{
			Kind:    r.Kind,
			Group:   r.Group,
			Binding: r.Binding,
			Size:    size,
			Init:    r.Init,
		})
		md.Types = append(md.Types, typ)
	}

	if err := md.Pipeline.Validate(); err != nil {
		return nil, fmt.Errorf("invalid metadata: %w", err)
	}

	return md, nil
}

// LoadMetadata reads and parses an inputs document from path.
func LoadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	return ParseMetadata(data)
}
