package binobj

import (
	"fmt"

	"golang.org/x/text/encoding"
)

// FieldKind selects how a field is decoded.
type FieldKind uint8

const (
	FieldPrimitive FieldKind = iota
	FieldString
	FieldArray
	FieldNested
)

func (k FieldKind) String() string {
	switch k {
	case FieldPrimitive:
		return "primitive"
	case FieldString:
		return "string"
	case FieldArray:
		return "array"
	case FieldNested:
		return "nested"
	}
	return fmt.Sprintf("fieldkind(%d)", uint8(k))
}

// Bound is one optional end of a version range.
type Bound struct {
	Value float64
	Set   bool
}

// VersionRange gates a field on the reader's schema version. Unset bounds
// never constrain.
type VersionRange struct {
	Min Bound
	Max Bound
}

// Includes reports whether version v lies within the range (inclusive).
func (vr VersionRange) Includes(v float64) bool {
	if vr.Min.Set && v < vr.Min.Value {
		return false
	}
	if vr.Max.Set && v > vr.Max.Value {
		return false
	}
	return true
}

func (vr VersionRange) String() string {
	lo, hi := "*", "*"
	if vr.Min.Set {
		lo = fmt.Sprint(vr.Min.Value)
	}
	if vr.Max.Set {
		hi = fmt.Sprint(vr.Max.Value)
	}
	return "[" + lo + "," + hi + "]"
}

// StringPolicy is null-terminated unless Fixed is set, in which case
// exactly Size bytes are consumed.
type StringPolicy struct {
	Fixed bool
	Size  int
}

// LengthMode selects where an array's element count comes from.
type LengthMode uint8

const (
	LengthUnset LengthMode = iota
	LengthFixed
	LengthField
)

// LengthSource is an array's element count: a constant or the value of an
// earlier sibling field.
type LengthSource struct {
	Mode  LengthMode
	Fixed int
	Field string
}

// FieldDescriptor describes how one field is located and decoded.
type FieldDescriptor struct {
	Name     string
	TypeName string
	Kind     FieldKind
	// Primitive is the logical kind of a primitive field or of a primitive
	// array element.
	Primitive Kind
	Versions  VersionRange
	String    StringPolicy
	Length    LengthSource
	Encoding  encoding.Encoding
}

// FieldOption adjusts a field descriptor while a layout is built.
type FieldOption func(*FieldDescriptor)

// Versions limits a field to schema versions in [min, max].
func Versions(min, max float64) FieldOption {
	return func(d *FieldDescriptor) {
		d.Versions = VersionRange{Min: Bound{min, true}, Max: Bound{max, true}}
	}
}

// MinVersion includes a field from version v onwards.
func MinVersion(v float64) FieldOption {
	return func(d *FieldDescriptor) {
		d.Versions.Min = Bound{v, true}
	}
}

// MaxVersion includes a field up to and including version v.
func MaxVersion(v float64) FieldOption {
	return func(d *FieldDescriptor) {
		d.Versions.Max = Bound{v, true}
	}
}

// NullTerminated marks a string field as zero-terminated (the default).
func NullTerminated() FieldOption {
	return func(d *FieldDescriptor) {
		d.String = StringPolicy{}
	}
}

// FixedSize marks a string field as occupying exactly n bytes.
func FixedSize(n int) FieldOption {
	return func(d *FieldDescriptor) {
		d.String = StringPolicy{Fixed: true, Size: n}
	}
}

// TextEncoding overrides the reader's encoding for a string field.
func TextEncoding(enc encoding.Encoding) FieldOption {
	return func(d *FieldDescriptor) {
		d.Encoding = enc
	}
}

// FixedLength gives an array field a constant element count.
func FixedLength(n int) FieldOption {
	return func(d *FieldDescriptor) {
		d.Length = LengthSource{Mode: LengthFixed, Fixed: n}
	}
}

// LengthFrom takes an array's element count from an integer field declared
// earlier in the same record.
func LengthFrom(field string) FieldOption {
	return func(d *FieldDescriptor) {
		d.Length = LengthSource{Mode: LengthField, Field: field}
	}
}

type field[T any] struct {
	desc   FieldDescriptor
	decode func(r *Reader, rec *T) error
	// value is set for primitive fields so arrays can size themselves from them.
	value func(rec *T) Value
}

// Layout is the ordered field table of record type T. Fields decode in the
// order they were added, which must match the binary layout.
type Layout[T any] struct {
	name   string
	fields []field[T]
	index  map[string]int
}

func newLayout[T any]() *Layout[T] {
	var zero T
	return &Layout[T]{
		name:  fmt.Sprintf("%T", zero),
		index: make(map[string]int),
	}
}

// SetName overrides the type name used in errors and logs.
func (l *Layout[T]) SetName(name string) { l.name = name }

// Name returns the record type name.
func (l *Layout[T]) Name() string { return l.name }

// Len returns the number of fields.
func (l *Layout[T]) Len() int { return len(l.fields) }

// Fields returns a copy of the field descriptors in declaration order.
func (l *Layout[T]) Fields() []FieldDescriptor {
	out := make([]FieldDescriptor, len(l.fields))
	for i, f := range l.fields {
		out[i] = f.desc
	}
	return out
}

func (l *Layout[T]) add(f field[T], opts []FieldOption) int {
	for _, opt := range opts {
		opt(&f.desc)
	}
	i := len(l.fields)
	l.fields = append(l.fields, f)
	if _, dup := l.index[f.desc.Name]; !dup {
		l.index[f.desc.Name] = i
	}
	return i
}

// Field appends a primitive field.
func Field[T any, P Primitive](l *Layout[T], name string, ref func(*T) *P, opts ...FieldOption) {
	kind := KindOf[P]()
	l.add(field[T]{
		desc: FieldDescriptor{Name: name, TypeName: kind.String(), Kind: FieldPrimitive, Primitive: kind},
		decode: func(r *Reader, rec *T) error {
			v, err := r.ReadValue(kind)
			if err != nil {
				return err
			}
			assign(ref(rec), v)
			return nil
		},
		value: func(rec *T) Value { return valueOf(*ref(rec)) },
	}, opts)
}

// String appends a text field, null-terminated unless FixedSize is given.
func String[T any](l *Layout[T], name string, ref func(*T) *string, opts ...FieldOption) {
	var i int
	i = l.add(field[T]{
		desc: FieldDescriptor{Name: name, TypeName: "string", Kind: FieldString},
		decode: func(r *Reader, rec *T) error {
			d := &l.fields[i].desc
			var (
				s   string
				err error
			)
			if d.String.Fixed {
				if d.String.Size <= 0 {
					return configErrorf(l.name, name, "fixed string size %d is invalid", d.String.Size)
				}
				s, err = r.ReadFixedLengthString(d.String.Size, d.Encoding)
			} else {
				s, err = r.ReadNullTerminatedString(d.Encoding)
			}
			if err != nil {
				return err
			}
			*ref(rec) = s
			return nil
		},
	}, opts)
}

// Array appends a homogeneous array field. A length option is required.
func Array[T, E any](l *Layout[T], name string, ref func(*T) *[]E, opts ...FieldOption) {
	var i int
	i = l.add(field[T]{
		desc: FieldDescriptor{Name: name, TypeName: "[]" + elemName[E](), Kind: FieldArray, Primitive: KindOf[E]()},
		decode: func(r *Reader, rec *T) error {
			n, err := l.arrayLength(i, rec)
			if err != nil {
				return err
			}
			elems, err := ReadArray[E](r, n)
			if err != nil {
				return err
			}
			*ref(rec) = elems
			return nil
		},
	}, opts)
}

// Nested appends a field holding another record type.
func Nested[T, N any](l *Layout[T], name string, ref func(*T) *N, opts ...FieldOption) {
	l.add(field[T]{
		desc: FieldDescriptor{Name: name, TypeName: elemName[N](), Kind: FieldNested},
		decode: func(r *Reader, rec *T) error {
			v, err := ReadObject[N](r)
			if err != nil {
				return err
			}
			*ref(rec) = v
			return nil
		},
	}, opts)
}

func elemName[E any]() string {
	if k := KindOf[E](); k != KindInvalid {
		return k.String()
	}
	var zero E
	return fmt.Sprintf("%T", zero)
}

// arrayLength resolves the element count of the array at position i.
func (l *Layout[T]) arrayLength(i int, rec *T) (int, error) {
	d := l.fields[i].desc
	switch d.Length.Mode {
	case LengthFixed:
		if d.Length.Fixed <= 0 {
			return 0, configErrorf(l.name, d.Name, "fixed array length %d is invalid", d.Length.Fixed)
		}
		return d.Length.Fixed, nil
	case LengthField:
		j, ok := l.index[d.Length.Field]
		if !ok {
			return 0, configErrorf(l.name, d.Name, "length field %q does not exist", d.Length.Field)
		}
		if j >= i {
			return 0, configErrorf(l.name, d.Name, "length field %q must be declared before the array", d.Length.Field)
		}
		sib := l.fields[j]
		if sib.value == nil {
			return 0, configErrorf(l.name, d.Name, "length field %q is not a primitive field", d.Length.Field)
		}
		n, err := sib.value(rec).Int()
		if err != nil {
			return 0, fmt.Errorf("length from %q: %w", d.Length.Field, err)
		}
		return n, nil
	}
	return 0, configErrorf(l.name, d.Name, "array field has no length configuration")
}
