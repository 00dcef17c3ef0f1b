package binschema

import (
	"fmt"

	"github.com/twinfer/bin2object/internal/cel"
	"github.com/twinfer/bin2object/pkg/binobj"
	"golang.org/x/text/encoding"
)

const (
	typeString = "str"
	typeBytes  = "bytes"

	// maxDepth bounds record nesting, which also stops self-referencing types.
	maxDepth = 64
)

type lengthMode uint8

const (
	lengthNone lengthMode = iota
	lengthFixed
	lengthField
	lengthExpr
)

type compiledField struct {
	id       string
	typeName string
	kind     binobj.FieldKind
	prim     binobj.Kind
	raw      bool
	str      binobj.StringPolicy
	enc      encoding.Encoding
	versions binobj.VersionRange
	array    bool
	mode     lengthMode
	fixed    int
	sibling  string
	expr     string
}

type compiledType struct {
	name   string
	fields []compiledField
}

// plan is a Schema resolved and checked for decoding.
type plan struct {
	id            string
	root          string
	types         map[string]*compiledType
	endianness    binobj.Endianness
	encoding      encoding.Encoding
	version       float64
	versionSet    bool
	substitutions map[binobj.Kind]binobj.Kind
}

func configErr(typ, field, format string, args ...any) error {
	return &binobj.ConfigError{Type: typ, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// compile resolves every name in s and reports the first malformed field.
// Length expressions are compiled into pool so decoding never parses them.
func compile(s *Schema, rootType string, pool *cel.ExpressionPool) (*plan, error) {
	p := &plan{
		id:    s.Meta.ID,
		types: make(map[string]*compiledType, len(s.Types)+1),
	}

	var err error
	if p.endianness, err = binobj.ParseEndianness(s.Meta.Endian); err != nil {
		return nil, fmt.Errorf("meta: %w", err)
	}
	if s.Meta.Encoding != "" {
		if p.encoding, err = binobj.EncodingByName(s.Meta.Encoding); err != nil {
			return nil, fmt.Errorf("meta: %w", err)
		}
	}
	if s.Meta.Version != nil {
		p.version, p.versionSet = *s.Meta.Version, true
	}
	if p.substitutions, err = s.Meta.substitutionTable(); err != nil {
		return nil, fmt.Errorf("meta: %w", err)
	}

	rootName := s.Meta.ID
	if rootName == "" {
		rootName = "root"
	}
	for name := range s.Types {
		if reservedType(name) {
			return nil, configErr(name, "", "type name shadows a built-in type")
		}
	}

	rt, err := compileType(s, rootName, s.Seq, pool)
	if err != nil {
		return nil, err
	}
	p.types[rootName] = rt
	for name, t := range s.Types {
		if name == rootName {
			return nil, configErr(name, "", "type name collides with the schema id")
		}
		if t == nil {
			return nil, configErr(name, "", "type has no fields")
		}
		ct, err := compileType(s, name, t.Seq, pool)
		if err != nil {
			return nil, err
		}
		p.types[name] = ct
	}

	switch {
	case rootType == "" || rootType == s.Meta.ID:
		p.root = rootName
	case p.types[rootType] != nil:
		p.root = rootType
	default:
		return nil, fmt.Errorf("root type %q is not defined", rootType)
	}
	return p, nil
}

func reservedType(name string) bool {
	if name == typeString || name == typeBytes {
		return true
	}
	_, ok := binobj.ParseKind(name)
	return ok
}

func compileType(s *Schema, name string, seq []FieldSpec, pool *cel.ExpressionPool) (*compiledType, error) {
	ct := &compiledType{name: name, fields: make([]compiledField, 0, len(seq))}
	declared := make(map[string]int, len(seq))

	for i, spec := range seq {
		f, err := compileField(s, name, spec)
		if err != nil {
			return nil, err
		}
		if _, dup := declared[f.id]; dup {
			return nil, configErr(name, f.id, "duplicate field id")
		}

		if spec.Length != nil {
			if err := resolveLength(&f, name, spec.Length, ct.fields, declared, seq, pool); err != nil {
				return nil, err
			}
		}
		if f.raw && !f.array {
			return nil, configErr(name, f.id, "bytes field has no length configuration")
		}

		declared[f.id] = i
		ct.fields = append(ct.fields, f)
	}
	return ct, nil
}

func compileField(s *Schema, typ string, spec FieldSpec) (compiledField, error) {
	f := compiledField{id: spec.ID, typeName: spec.Type}
	if spec.ID == "" {
		return f, configErr(typ, "", "field without id")
	}
	if spec.Versions != nil {
		if spec.Versions.Min != nil {
			f.versions.Min = binobj.Bound{Value: *spec.Versions.Min, Set: true}
		}
		if spec.Versions.Max != nil {
			f.versions.Max = binobj.Bound{Value: *spec.Versions.Max, Set: true}
		}
	}

	switch spec.Type {
	case "":
		return f, configErr(typ, spec.ID, "field without type")
	case typeString:
		f.kind = binobj.FieldString
		if spec.Size < 0 {
			return f, configErr(typ, spec.ID, "fixed string size %d is invalid", spec.Size)
		}
		if spec.Size > 0 {
			f.str = binobj.StringPolicy{Fixed: true, Size: spec.Size}
		}
		if spec.Encoding != "" {
			enc, err := binobj.EncodingByName(spec.Encoding)
			if err != nil {
				return f, configErr(typ, spec.ID, "%v", err)
			}
			f.enc = enc
		}
		return f, nil
	case typeBytes:
		f.kind = binobj.FieldPrimitive
		f.prim = binobj.KindUint8
		f.raw = true
	default:
		if k, ok := binobj.ParseKind(spec.Type); ok {
			f.kind = binobj.FieldPrimitive
			f.prim = k
		} else if _, ok := s.Types[spec.Type]; ok || (spec.Type == s.Meta.ID && s.Meta.ID != "") {
			f.kind = binobj.FieldNested
		} else {
			return f, configErr(typ, spec.ID, "unknown type %q", spec.Type)
		}
	}

	if spec.Size != 0 {
		return f, configErr(typ, spec.ID, "size applies only to str fields")
	}
	if spec.Encoding != "" {
		return f, configErr(typ, spec.ID, "encoding applies only to str fields")
	}
	return f, nil
}

// resolveLength applies the same rules as binobj arrays: a positive fixed
// count, or a primitive sibling declared earlier, or an expression.
func resolveLength(f *compiledField, typ string, l *LengthSpec, earlier []compiledField, declared map[string]int, seq []FieldSpec, pool *cel.ExpressionPool) error {
	set := 0
	if l.Fixed != 0 {
		set++
	}
	if l.Field != "" {
		set++
	}
	if l.Expr != "" {
		set++
	}
	if set != 1 {
		return configErr(typ, f.id, "array field needs exactly one of fixed, field or expr")
	}
	f.array = true

	switch {
	case l.Expr != "":
		if _, err := pool.GetExpression(l.Expr); err != nil {
			return configErr(typ, f.id, "length expression: %v", err)
		}
		f.mode, f.expr = lengthExpr, l.Expr
	case l.Field != "":
		j, ok := declared[l.Field]
		if !ok {
			for _, later := range seq {
				if later.ID == l.Field {
					return configErr(typ, f.id, "length field %q must be declared before the array", l.Field)
				}
			}
			return configErr(typ, f.id, "length field %q does not exist", l.Field)
		}
		sib := earlier[j]
		if sib.kind != binobj.FieldPrimitive || sib.array {
			return configErr(typ, f.id, "length field %q is not a primitive field", l.Field)
		}
		f.mode, f.sibling = lengthField, l.Field
	default:
		if l.Fixed < 0 {
			return configErr(typ, f.id, "fixed array length %d is invalid", l.Fixed)
		}
		f.mode, f.fixed = lengthFixed, l.Fixed
	}
	return nil
}
