package binschema

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/twinfer/bin2object/internal/cel"
	"github.com/twinfer/bin2object/pkg/binobj"
)

// Decoder walks a compiled schema over a binobj.Reader, producing one
// map[string]any per record. Fields appear under their ids; fields outside
// the reader's version range are absent.
type Decoder struct {
	plan   *plan
	exprs  *cel.ExpressionPool
	logger *slog.Logger
}

// NewDecoder checks schema and prepares it for decoding records of
// schema.RootType. An empty RootType (or the schema id) selects the
// top-level seq.
func NewDecoder(schema *Schema, logger *slog.Logger) (*Decoder, error) {
	pool, err := cel.NewExpressionPool()
	if err != nil {
		return nil, fmt.Errorf("creating expression pool: %w", err)
	}
	p, err := compile(schema, schema.RootType, pool)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{plan: p, exprs: pool, logger: logger}, nil
}

// RootType returns the name of the type Decode starts from.
func (d *Decoder) RootType() string { return d.plan.root }

// ReaderOptions returns the reader settings declared in the schema meta.
func (d *Decoder) ReaderOptions() []binobj.Option {
	opts := []binobj.Option{binobj.WithEndianness(d.plan.endianness)}
	if d.plan.encoding != nil {
		opts = append(opts, binobj.WithEncoding(d.plan.encoding))
	}
	if d.plan.versionSet {
		opts = append(opts, binobj.WithVersion(d.plan.version))
	}
	for logical, wire := range d.plan.substitutions {
		opts = append(opts, binobj.WithSubstitution(logical, wire))
	}
	return opts
}

// Decode reads one root record at the reader's cursor. On error the
// partial record is discarded.
func (d *Decoder) Decode(ctx context.Context, r *binobj.Reader) (map[string]any, error) {
	d.logger.DebugContext(ctx, "Decoding schema record", "root_type", d.plan.root, "version", r.Version())
	return d.decodeType(ctx, r, d.plan.root, 0)
}

// DecodeAt is Decode at an absolute offset, under the reader's lock.
func (d *Decoder) DecodeAt(ctx context.Context, r *binobj.Reader, addr int64) (map[string]any, error) {
	var out map[string]any
	err := r.LockedAt(addr, func() error {
		var err error
		out, err = d.Decode(ctx, r)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (d *Decoder) decodeType(ctx context.Context, r *binobj.Reader, name string, depth int) (map[string]any, error) {
	if depth > maxDepth {
		return nil, configErr(name, "", "records nested deeper than %d", maxDepth)
	}
	t, ok := d.plan.types[name]
	if !ok {
		return nil, configErr(name, "", "type is not defined")
	}

	out := make(map[string]any, len(t.fields))
	scope := make(map[string]any, len(t.fields))
	for i := range t.fields {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f := &t.fields[i]
		if !f.versions.Includes(r.Version()) {
			d.logger.DebugContext(ctx, "Skipping field outside version range", "type", t.name, "field", f.id, "versions", f.versions.String())
			continue
		}
		v, err := d.decodeField(ctx, r, t, f, scope, depth)
		if err != nil {
			return nil, fmt.Errorf("decoding %s.%s: %w", t.name, f.id, err)
		}
		out[f.id] = v
	}
	return out, nil
}

func (d *Decoder) decodeField(ctx context.Context, r *binobj.Reader, t *compiledType, f *compiledField, scope map[string]any, depth int) (any, error) {
	if !f.array {
		v, sv, err := d.decodeElement(ctx, r, f, depth)
		if err != nil {
			return nil, err
		}
		if sv != nil {
			scope[f.id] = sv
		}
		return v, nil
	}

	n, err := d.arrayLength(t, f, scope)
	if err != nil {
		return nil, err
	}
	if f.raw {
		return binobj.ReadArray[byte](r, n)
	}
	elems := make([]any, n)
	for i := range elems {
		v, _, err := d.decodeElement(ctx, r, f, depth)
		if err != nil {
			return nil, fmt.Errorf("element %d of %d: %w", i, n, err)
		}
		elems[i] = v
	}
	return elems, nil
}

// decodeElement reads one value of f's type. The second result is the
// value as exposed to length expressions, nil for records.
func (d *Decoder) decodeElement(ctx context.Context, r *binobj.Reader, f *compiledField, depth int) (any, any, error) {
	switch f.kind {
	case binobj.FieldString:
		var (
			s   string
			err error
		)
		if f.str.Fixed {
			s, err = r.ReadFixedLengthString(f.str.Size, f.enc)
		} else {
			s, err = r.ReadNullTerminatedString(f.enc)
		}
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case binobj.FieldNested:
		m, err := d.decodeType(ctx, r, f.typeName, depth+1)
		if err != nil {
			return nil, nil, err
		}
		return m, nil, nil
	}

	v, err := r.ReadValue(f.prim)
	if err != nil {
		return nil, nil, err
	}
	return v.Any(), exprValue(v), nil
}

func (d *Decoder) arrayLength(t *compiledType, f *compiledField, scope map[string]any) (int, error) {
	switch f.mode {
	case lengthFixed:
		return f.fixed, nil
	case lengthField:
		raw, ok := scope[f.sibling]
		if !ok {
			// Sibling skipped by its version range.
			return 0, nil
		}
		return lengthOf(f.sibling, raw)
	case lengthExpr:
		n, err := d.exprs.EvaluateLength(f.expr, scope)
		if err != nil {
			return 0, fmt.Errorf("length of %s.%s: %w", t.name, f.id, err)
		}
		return n, nil
	}
	return 0, configErr(t.name, f.id, "array field has no length configuration")
}

// lengthOf converts a sibling's scope value to an element count. Floats
// are rounded half to even and bools count as 0 or 1.
func lengthOf(field string, v any) (int, error) {
	var n int64
	switch x := v.(type) {
	case int64:
		n = x
	case uint64:
		if x > math.MaxInt32 {
			return 0, fmt.Errorf("length from %q: value %d out of range", field, x)
		}
		n = int64(x)
	case float64:
		f := math.RoundToEven(x)
		if math.IsNaN(f) || f < 0 || f > math.MaxInt32 {
			return 0, fmt.Errorf("length from %q: value %v out of range", field, x)
		}
		n = int64(f)
	case bool:
		if x {
			n = 1
		}
	default:
		return 0, fmt.Errorf("length from %q: %T has no integer form", field, v)
	}
	if n < 0 || n > math.MaxInt32 {
		return 0, fmt.Errorf("length from %q: value %d out of range", field, n)
	}
	return int(n), nil
}

// exprValue widens a primitive for CEL: integers become int64 unless they
// only fit in uint64.
func exprValue(v binobj.Value) any {
	k := v.Kind()
	switch {
	case k == binobj.KindBool:
		return v.Bool()
	case k == binobj.KindFloat32 || k == binobj.KindFloat64:
		return v.Float64()
	case k.Signed():
		return v.Int64()
	}
	if u := v.Uint64(); u > math.MaxInt64 {
		return u
	}
	return v.Int64()
}
