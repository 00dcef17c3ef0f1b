package binschema

import (
	"fmt"

	"github.com/twinfer/bin2object/pkg/binobj"
	"gopkg.in/yaml.v3"
)

// Schema is a record layout loaded from YAML.
type Schema struct {
	Meta     Meta                 `yaml:"meta"`
	Seq      []FieldSpec          `yaml:"seq"`
	Types    map[string]*TypeSpec `yaml:"types"`
	Doc      string               `yaml:"doc"`
	RootType string               `yaml:"-"` // Not in the schema, set by the parser
}

// Meta holds the defaults every read under the schema starts from.
type Meta struct {
	ID       string `yaml:"id"`
	Title    string `yaml:"title"`
	Endian   string `yaml:"endian"`
	Encoding string `yaml:"encoding"`
	// Version is the schema version used for field gating when the caller
	// does not supply one.
	Version *float64 `yaml:"version"`
	// Substitutions maps a logical kind to the kind stored on the wire,
	// e.g. {u8: u4}.
	Substitutions map[string]string `yaml:"substitutions"`
}

// substitutionTable resolves the kind names of Substitutions.
func (m Meta) substitutionTable() (map[binobj.Kind]binobj.Kind, error) {
	out := make(map[binobj.Kind]binobj.Kind, len(m.Substitutions))
	for logical, wire := range m.Substitutions {
		lk, ok := binobj.ParseKind(logical)
		if !ok {
			return nil, fmt.Errorf("substitution %s: unknown kind %q", logical, logical)
		}
		wk, ok := binobj.ParseKind(wire)
		if !ok {
			return nil, fmt.Errorf("substitution %s: unknown kind %q", logical, wire)
		}
		out[lk] = wk
	}
	return out, nil
}

// TypeSpec is a named record type.
type TypeSpec struct {
	Seq []FieldSpec `yaml:"seq"`
	Doc string      `yaml:"doc"`
}

// FieldSpec is one entry of a record's seq.
//
// Type is a primitive kind (u1..u8, s1..s8, f4, f8, bool), "str", "bytes" or
// the name of an entry in types. A field with Length is an array of Type,
// except "bytes" which yields the raw bytes.
type FieldSpec struct {
	ID       string       `yaml:"id"`
	Type     string       `yaml:"type"`
	Size     int          `yaml:"size,omitempty"`
	Encoding string       `yaml:"encoding,omitempty"`
	Versions *VersionSpec `yaml:"versions,omitempty"`
	Length   *LengthSpec  `yaml:"length,omitempty"`
	Doc      string       `yaml:"doc,omitempty"`
}

// VersionSpec bounds a field's schema versions, inclusive. Omitted bounds
// never constrain.
type VersionSpec struct {
	Min *float64 `yaml:"min,omitempty"`
	Max *float64 `yaml:"max,omitempty"`
}

// LengthSpec sets an array's element count. Exactly one member is used.
type LengthSpec struct {
	Fixed int    `yaml:"fixed,omitempty"`
	Field string `yaml:"field,omitempty"`
	Expr  string `yaml:"expr,omitempty"`
}

// NewSchemaFromYAML parses a YAML layout into a Schema.
func NewSchemaFromYAML(data []byte) (*Schema, error) {
	var schema Schema
	if err := yaml.Unmarshal(data, &schema); err != nil {
		return nil, err
	}
	return &schema, nil
}

// StaticSize returns the encoded size of a type when every field is a
// primitive, a fixed-size string or a fixed-length array of those, and false
// otherwise. An empty name or the schema id selects the top-level seq.
func (s *Schema) StaticSize(typeName string) (int64, bool) {
	return s.staticSize(typeName, 0)
}

func (s *Schema) staticSize(typeName string, depth int) (int64, bool) {
	if depth > maxDepth {
		return 0, false
	}
	seq, ok := s.seqOf(typeName)
	if !ok {
		return 0, false
	}

	var total int64
	for _, f := range seq {
		if f.Versions != nil {
			return 0, false
		}
		size, ok := s.fieldSize(f, depth)
		if !ok {
			return 0, false
		}
		total += size
	}
	return total, true
}

func (s *Schema) fieldSize(f FieldSpec, depth int) (int64, bool) {
	count := int64(1)
	if f.Length != nil {
		if f.Length.Field != "" || f.Length.Expr != "" || f.Length.Fixed <= 0 {
			return 0, false
		}
		count = int64(f.Length.Fixed)
	}

	switch f.Type {
	case typeBytes:
		return count, f.Length != nil
	case typeString:
		if f.Size <= 0 {
			return 0, false
		}
		return count * int64(f.Size), true
	}
	if k, ok := binobj.ParseKind(f.Type); ok {
		subs, err := s.Meta.substitutionTable()
		if err != nil {
			return 0, false
		}
		if wire, ok := subs[k]; ok {
			k = wire
		}
		return count * int64(k.Size()), true
	}
	size, ok := s.staticSize(f.Type, depth+1)
	return count * size, ok
}

// seqOf returns the fields of a named type, or the top-level seq for the
// root.
func (s *Schema) seqOf(typeName string) ([]FieldSpec, bool) {
	if typeName == "" || typeName == s.Meta.ID {
		return s.Seq, true
	}
	t, ok := s.Types[typeName]
	if !ok || t == nil {
		return nil, false
	}
	return t.Seq, true
}
