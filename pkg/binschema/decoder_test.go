package binschema

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twinfer/bin2object/pkg/binobj"
	"github.com/twinfer/bin2object/testutil"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestDecoder(t *testing.T, layout string) *Decoder {
	t.Helper()
	schema, err := NewSchemaFromYAML([]byte(layout))
	require.NoError(t, err)
	dec, err := NewDecoder(schema, discardLogger)
	require.NoError(t, err)
	return dec
}

func newSchemaReader(dec *Decoder, data []byte, opts ...binobj.Option) *binobj.Reader {
	opts = append(append(dec.ReaderOptions(), binobj.WithLogger(discardLogger)), opts...)
	return binobj.NewReader(bytes.NewReader(data), opts...)
}

const recordLayout = `
meta:
  id: record
  endian: le
  encoding: IBM437
  substitutions:
    u8: u4
seq:
  - id: ptr
    type: u8
  - id: flags
    type: u1
  - id: payload
    type: bytes
    length: {expr: "bitAnd(flags, 0x0F) * 2"}
  - id: label
    type: str
  - id: tags
    type: str
    size: 2
    length: {fixed: 2}
`

func TestDecoder_Record(t *testing.T) {
	dec := newTestDecoder(t, recordLayout)
	data := []byte{
		0x78, 0x56, 0x34, 0x12, // ptr, stored as u4
		0xA1,       // flags
		0xDE, 0xAD, // payload
		0x82, 0x00, // label
		'a', 'b', 'c', 0x00, // tags
		0xFF,
	}
	r := newSchemaReader(dec, data)

	got, err := dec.Decode(context.Background(), r)
	require.NoError(t, err)

	want := map[string]any{
		"ptr":     uint64(0x12345678),
		"flags":   uint8(0xA1),
		"payload": []byte{0xDE, 0xAD},
		"label":   "é",
		"tags":    []any{"ab", "c"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("decoded record mismatch (-want +got):\n%s", diff)
	}

	pos, err := r.Position()
	require.NoError(t, err)
	assert.Equal(t, int64(13), pos)
}

const gatedLayout = `
meta:
  id: gated
seq:
  - id: a
    type: u1
  - id: n
    type: u1
    versions: {min: 2, max: 3}
  - id: items
    type: u1
    length: {field: n}
  - id: b
    type: u1
`

func TestDecoder_VersionGating(t *testing.T) {
	dec := newTestDecoder(t, gatedLayout)
	data := []byte{0x0A, 0x02, 0x10, 0x11, 0x0B}

	tests := []struct {
		version float64
		want    map[string]any
		end     int64
	}{
		{1, map[string]any{"a": 0x0A, "items": []any{}, "b": 0x02}, 2},
		{2, map[string]any{"a": 0x0A, "n": 2, "items": []any{0x10, 0x11}, "b": 0x0B}, 5},
		{3, map[string]any{"a": 0x0A, "n": 2, "items": []any{0x10, 0x11}, "b": 0x0B}, 5},
		{4, map[string]any{"a": 0x0A, "items": []any{}, "b": 0x02}, 2},
	}
	for _, tt := range tests {
		r := newSchemaReader(dec, data, binobj.WithVersion(tt.version))
		got, err := dec.Decode(context.Background(), r)
		require.NoError(t, err, "version %v", tt.version)
		if diff := cmp.Diff(tt.want, got, testutil.NumericComparer); diff != "" {
			t.Errorf("version %v mismatch (-want +got):\n%s", tt.version, diff)
		}
		pos, err := r.Position()
		require.NoError(t, err)
		assert.Equal(t, tt.end, pos, "version %v", tt.version)
	}
}

func TestDecoder_NonIntegerLengthSibling(t *testing.T) {
	dec := newTestDecoder(t, `
meta:
  id: counted
  endian: be
seq:
  - id: n
    type: f4
  - id: data
    type: bytes
    length: {field: n}
  - id: present
    type: bool
  - id: extra
    type: u2
    length: {field: present}
`)
	data := []byte{
		0x40, 0x40, 0x00, 0x00, // n = 3.0
		0xAA, 0xBB, 0xCC, // data
		0x01,       // present
		0x12, 0x34, // extra
	}

	got, err := dec.Decode(context.Background(), newSchemaReader(dec, data))
	require.NoError(t, err)
	want := map[string]any{
		"n":       float32(3),
		"data":    []byte{0xAA, 0xBB, 0xCC},
		"present": true,
		"extra":   []any{uint16(0x1234)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("decoded record mismatch (-want +got):\n%s", diff)
	}

	negative := []byte{0xBF, 0x80, 0x00, 0x00}
	_, err = dec.Decode(context.Background(), newSchemaReader(dec, negative))
	assert.ErrorContains(t, err, "out of range")
}

func TestDecoder_Nested(t *testing.T) {
	schema, err := NewSchemaFromYAML(mustReadFile(t, "testdata/header.yaml"))
	require.NoError(t, err)
	dec, err := NewDecoder(schema, discardLogger)
	require.NoError(t, err)
	assert.Equal(t, "header", dec.RootType())

	r := newSchemaReader(dec, headerV1)
	got, err := dec.Decode(context.Background(), r)
	require.NoError(t, err)
	if diff := cmp.Diff(headerV1Want, got, testutil.NumericComparer); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}
}

func TestDecoder_DecodeAt(t *testing.T) {
	dec := newTestDecoder(t, gatedLayout)
	r := newSchemaReader(dec, []byte{0xEE, 0xEE, 0xEE, 0x07, 0x08}, binobj.WithVersion(1))

	got, err := dec.DecodeAt(context.Background(), r, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "items"}, testutil.MapKeys(got))
	assert.Equal(t, uint8(0x07), got["a"])
	assert.Equal(t, uint8(0x08), got["b"])

	_, err = dec.DecodeAt(context.Background(), r, 4)
	assert.ErrorIs(t, err, binobj.ErrEndOfStream)
}

func TestDecoder_TruncatedInput(t *testing.T) {
	dec := newTestDecoder(t, recordLayout)
	got, err := dec.Decode(context.Background(), newSchemaReader(dec, []byte{0x78, 0x56, 0x34, 0x12, 0x03, 0x01}))
	require.Error(t, err)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, binobj.ErrEndOfStream)
	assert.ErrorContains(t, err, "decoding record.payload")
}

func TestDecoder_ContextCanceled(t *testing.T) {
	dec := newTestDecoder(t, gatedLayout)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := dec.Decode(ctx, newSchemaReader(dec, []byte{0x01, 0x02}))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecoder_SelfReferenceStopsAtDepth(t *testing.T) {
	dec := newTestDecoder(t, `
meta:
  id: node
seq:
  - id: child
    type: node
`)
	_, err := dec.Decode(context.Background(), newSchemaReader(dec, nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, binobj.ErrConfig)
	assert.ErrorContains(t, err, "nested deeper than")
}

func TestNewDecoder_ConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		layout string
		reason string
	}{
		{
			name:   "unknown type",
			layout: "seq: [{id: a, type: u3}]",
			reason: `unknown type "u3"`,
		},
		{
			name:   "version gated field is still checked",
			layout: "seq: [{id: a, type: u1}, {id: b, type: u3, versions: {min: 9}}]",
			reason: `unknown type "u3"`,
		},
		{
			name:   "sibling declared after array",
			layout: "seq: [{id: d, type: u1, length: {field: n}}, {id: n, type: u1}]",
			reason: `length field "n" must be declared before the array`,
		},
		{
			name:   "missing sibling",
			layout: "seq: [{id: d, type: u1, length: {field: n}}]",
			reason: `length field "n" does not exist`,
		},
		{
			name:   "string sibling",
			layout: "seq: [{id: n, type: str}, {id: d, type: u1, length: {field: n}}]",
			reason: `length field "n" is not a primitive field`,
		},
		{
			name:   "array sibling",
			layout: "seq: [{id: n, type: u1, length: {fixed: 2}}, {id: d, type: u1, length: {field: n}}]",
			reason: `length field "n" is not a primitive field`,
		},
		{
			name:   "bytes without length",
			layout: "seq: [{id: raw, type: bytes}]",
			reason: "bytes field has no length configuration",
		},
		{
			name:   "two length sources",
			layout: "seq: [{id: n, type: u1}, {id: d, type: u1, length: {fixed: 2, field: n}}]",
			reason: "array field needs exactly one of fixed, field or expr",
		},
		{
			name:   "negative fixed length",
			layout: "seq: [{id: d, type: u1, length: {fixed: -1}}]",
			reason: "fixed array length -1 is invalid",
		},
		{
			name:   "negative string size",
			layout: "seq: [{id: s, type: str, size: -2}]",
			reason: "fixed string size -2 is invalid",
		},
		{
			name:   "size on a primitive",
			layout: "seq: [{id: a, type: u2, size: 2}]",
			reason: "size applies only to str fields",
		},
		{
			name:   "duplicate id",
			layout: "seq: [{id: a, type: u1}, {id: a, type: u2}]",
			reason: "duplicate field id",
		},
		{
			name:   "missing id",
			layout: "seq: [{type: u1}]",
			reason: "field without id",
		},
		{
			name:   "type shadows a primitive",
			layout: "types: {u1: {seq: []}}",
			reason: "type name shadows a built-in type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schema, err := NewSchemaFromYAML([]byte(tt.layout))
			require.NoError(t, err)

			_, err = NewDecoder(schema, discardLogger)
			require.Error(t, err)
			assert.ErrorIs(t, err, binobj.ErrConfig)

			var cfgErr *binobj.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.reason, cfgErr.Reason)
		})
	}
}

func TestNewDecoder_InvalidExpressionAndEncoding(t *testing.T) {
	for _, layout := range []string{
		`seq: [{id: n, type: u1}, {id: d, type: u1, length: {expr: "n +"}}]`,
		`seq: [{id: s, type: str, encoding: no-such-charset}]`,
	} {
		schema, err := NewSchemaFromYAML([]byte(layout))
		require.NoError(t, err)
		_, err = NewDecoder(schema, discardLogger)
		assert.ErrorIs(t, err, binobj.ErrConfig, layout)
	}
}

func TestNewDecoder_MetaErrors(t *testing.T) {
	for _, layout := range []string{
		"meta: {endian: middle}",
		"meta: {encoding: no-such-charset}",
		"meta: {substitutions: {u8: u3}}",
	} {
		schema, err := NewSchemaFromYAML([]byte(layout))
		require.NoError(t, err)
		_, err = NewDecoder(schema, discardLogger)
		assert.ErrorContains(t, err, "meta:", layout)
	}

	schema, err := NewSchemaFromYAML([]byte("meta: {id: a}"))
	require.NoError(t, err)
	schema.RootType = "missing"
	_, err = NewDecoder(schema, discardLogger)
	assert.ErrorContains(t, err, `root type "missing" is not defined`)
}
