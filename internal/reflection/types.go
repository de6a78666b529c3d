package reflection

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ScalarType is a 32-bit WGSL scalar.
type ScalarType string

const (
	ScalarI32 ScalarType = "i32"
	ScalarU32 ScalarType = "u32"
	ScalarF32 ScalarType = "f32"
)

// TypeKind discriminates Type.
type TypeKind int

const (
	KindScalar TypeKind = iota
	KindVector
	KindArray
	KindStruct
)

// Span marks Length logically significant bytes starting at Offset.
type Span struct {
	Offset int
	Length int
}

// Type is a host-shareable WGSL type laid out with storage buffer rules.
//
// In YAML a type is written either as a string ("u32", "vec3<f32>",
// "array<vec2<i32>, 4>") or as a mapping for structs and arrays of structs:
//
//	struct: [u32, vec3<f32>]
//	array: {struct: [u32, f32]}
//	count: 8
type Type struct {
	Kind    TypeKind
	Scalar  ScalarType
	Width   int // vector component count
	Element *Type
	Count   int // array element count
	Members []Type
}

// Scalar returns a scalar type.
func Scalar(s ScalarType) Type { return Type{Kind: KindScalar, Scalar: s} }

// Vector returns a vector type with n components.
func Vector(n int, s ScalarType) Type { return Type{Kind: KindVector, Scalar: s, Width: n} }

// Array returns a fixed size array type.
func Array(elem Type, count int) Type { return Type{Kind: KindArray, Element: &elem, Count: count} }

// Struct returns a struct type.
func Struct(members ...Type) Type { return Type{Kind: KindStruct, Members: members} }

func roundUp(align, n int) int {
	return (n + align - 1) / align * align
}

// Align returns the alignment of the type in bytes.
func (t Type) Align() int {
	switch t.Kind {
	case KindScalar:
		return 4
	case KindVector:
		if t.Width == 2 {
			return 8
		}
		return 16
	case KindArray:
		return t.Element.Align()
	case KindStruct:
		align := 1
		for _, m := range t.Members {
			align = max(align, m.Align())
		}
		return align
	}
	panic(fmt.Sprintf("reflection: unknown type kind %d", t.Kind))
}

// Size returns the size of the type in bytes, including trailing padding.
func (t Type) Size() int {
	switch t.Kind {
	case KindScalar:
		return 4
	case KindVector:
		return 4 * t.Width
	case KindArray:
		return t.stride() * t.Count
	case KindStruct:
		end := 0
		for i := range t.Members {
			end = t.memberOffset(i) + t.Members[i].Size()
		}
		return roundUp(t.Align(), end)
	}
	panic(fmt.Sprintf("reflection: unknown type kind %d", t.Kind))
}

func (t Type) stride() int {
	return roundUp(t.Element.Align(), t.Element.Size())
}

func (t Type) memberOffset(i int) int {
	offset := 0
	for j := 0; j <= i; j++ {
		offset = roundUp(t.Members[j].Align(), offset)
		if j < i {
			offset += t.Members[j].Size()
		}
	}
	return offset
}

// Ranges returns the significant byte spans of the type in ascending
// offset order. Adjacent spans are coalesced; padding is never included.
func (t Type) Ranges() []Span {
	var spans []Span
	t.appendRanges(0, &spans)
	return spans
}

func (t Type) appendRanges(base int, spans *[]Span) {
	switch t.Kind {
	case KindScalar, KindVector:
		appendSpan(spans, Span{Offset: base, Length: t.Size()})
	case KindArray:
		stride := t.stride()
		for i := 0; i < t.Count; i++ {
			t.Element.appendRanges(base+i*stride, spans)
		}
	case KindStruct:
		for i, m := range t.Members {
			m.appendRanges(base+t.memberOffset(i), spans)
		}
	}
}

func appendSpan(spans *[]Span, s Span) {
	if n := len(*spans); n > 0 {
		last := &(*spans)[n-1]
		if last.Offset+last.Length == s.Offset {
			last.Length += s.Length
			return
		}
	}
	*spans = append(*spans, s)
}

// String renders the type in WGSL syntax.
func (t Type) String() string {
	switch t.Kind {
	case KindScalar:
		return string(t.Scalar)
	case KindVector:
		return fmt.Sprintf("vec%d<%s>", t.Width, t.Scalar)
	case KindArray:
		return fmt.Sprintf("array<%s, %d>", t.Element, t.Count)
	case KindStruct:
		parts := make([]string, len(t.Members))
		for i, m := range t.Members {
			parts[i] = m.String()
		}
		return "struct{" + strings.Join(parts, ", ") + "}"
	}
	return "?"
}

// ParseType parses the string form of a type (scalars, vectors and arrays).
func ParseType(s string) (Type, error) {
	p := typeParser{src: s}
	t, err := p.parse()
	if err != nil {
		return Type{}, fmt.Errorf("invalid type %q: %w", s, err)
	}
	if p.rest() != "" {
		return Type{}, fmt.Errorf("invalid type %q: unexpected %q", s, p.rest())
	}
	return t, nil
}

type typeParser struct {
	src string
	pos int
}

func (p *typeParser) rest() string {
	return strings.TrimSpace(p.src[p.pos:])
}

func (p *typeParser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *typeParser) expect(tok string) error {
	p.skipSpace()
	if !strings.HasPrefix(p.src[p.pos:], tok) {
		return fmt.Errorf("expected %q at offset %d", tok, p.pos)
	}
	p.pos += len(tok)
	return nil
}

func (p *typeParser) ident() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

func (p *typeParser) parse() (Type, error) {
	name := p.ident()
	switch name {
	case "i32", "u32", "f32":
		return Scalar(ScalarType(name)), nil
	case "vec2", "vec3", "vec4":
		if err := p.expect("<"); err != nil {
			return Type{}, err
		}
		elem := p.ident()
		if elem != "i32" && elem != "u32" && elem != "f32" {
			return Type{}, fmt.Errorf("invalid vector component type %q", elem)
		}
		if err := p.expect(">"); err != nil {
			return Type{}, err
		}
		return Vector(int(name[3]-'0'), ScalarType(elem)), nil
	case "array":
		if err := p.expect("<"); err != nil {
			return Type{}, err
		}
		elem, err := p.parse()
		if err != nil {
			return Type{}, err
		}
		if err := p.expect(","); err != nil {
			return Type{}, err
		}
		count, err := strconv.Atoi(p.ident())
		if err != nil || count <= 0 {
			return Type{}, fmt.Errorf("invalid array length")
		}
		if err := p.expect(">"); err != nil {
			return Type{}, err
		}
		return Array(elem, count), nil
	case "":
		return Type{}, fmt.Errorf("expected type at offset %d", p.pos)
	}
	return Type{}, fmt.Errorf("unknown type %q", name)
}

// UnmarshalYAML accepts either the string form or a struct/array mapping.
func (t *Type) UnmarshalYAML(value *yaml.Node) error {
	var str string
	if err := value.Decode(&str); err == nil {
		parsed, err := ParseType(str)
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	}

	var obj struct {
		Struct []Type `yaml:"struct"`
		Array  *Type  `yaml:"array"`
		Count  int    `yaml:"count"`
	}
	if err := value.Decode(&obj); err != nil {
		return err
	}

	switch {
	case obj.Struct != nil && obj.Array != nil:
		return fmt.Errorf("line %d: type cannot be both struct and array", value.Line)
	case obj.Struct != nil:
		if len(obj.Struct) == 0 {
			return fmt.Errorf("line %d: struct must have at least one member", value.Line)
		}
		*t = Struct(obj.Struct...)
	case obj.Array != nil:
		if obj.Count <= 0 {
			return fmt.Errorf("line %d: array count must be positive", value.Line)
		}
		*t = Array(*obj.Array, obj.Count)
	default:
		return fmt.Errorf("line %d: expected a type", value.Line)
	}
	return nil
}
