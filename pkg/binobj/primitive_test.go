package binobj

import (
	"bytes"
	"encoding/binary"
	"io"
	"log/slog"
	"math"
	"math/bits"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReader(t *testing.T, data []byte, opts ...Option) *Reader {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]Option{WithLogger(logger), WithCache(NewCache())}, opts...)
	return NewReader(bytes.NewReader(data), opts...)
}

func TestReadPrimitives_EndiannessRoundTrip(t *testing.T) {
	const (
		u16 = uint16(0x1234)
		u32 = uint32(0x12345678)
		u64 = uint64(0x0102030405060708)
	)

	tests := []struct {
		name     string
		order    binary.AppendByteOrder
		setting  Endianness
		opposite Endianness
	}{
		{name: "little", order: binary.LittleEndian, setting: Little, opposite: Big},
		{name: "big", order: binary.BigEndian, setting: Big, opposite: Little},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf []byte
			buf = tt.order.AppendUint16(buf, u16)
			buf = tt.order.AppendUint32(buf, u32)
			buf = tt.order.AppendUint64(buf, u64)

			r := newTestReader(t, buf, WithEndianness(tt.setting))
			got16, err := r.ReadUint16()
			require.NoError(t, err)
			got32, err := r.ReadUint32()
			require.NoError(t, err)
			got64, err := r.ReadUint64()
			require.NoError(t, err)
			assert.Equal(t, u16, got16)
			assert.Equal(t, u32, got32)
			assert.Equal(t, u64, got64)

			r = newTestReader(t, buf, WithEndianness(tt.opposite))
			got16, err = r.ReadUint16()
			require.NoError(t, err)
			got32, err = r.ReadUint32()
			require.NoError(t, err)
			got64, err = r.ReadUint64()
			require.NoError(t, err)
			assert.Equal(t, bits.ReverseBytes16(u16), got16)
			assert.Equal(t, bits.ReverseBytes32(u32), got32)
			assert.Equal(t, bits.ReverseBytes64(u64), got64)
		})
	}
}

func TestReadPrimitives_Signed(t *testing.T) {
	var buf []byte
	buf = append(buf, 0xFE)                                      // -2
	buf = binary.BigEndian.AppendUint16(buf, uint16(0xFFFD))     // -3
	buf = binary.BigEndian.AppendUint32(buf, uint32(0xFFFFFFFC)) // -4
	buf = binary.BigEndian.AppendUint64(buf, math.MaxUint64-4)   // -5
	buf = binary.BigEndian.AppendUint32(buf, math.Float32bits(1.5))
	buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(-2.25))
	buf = append(buf, 0x00, 0x07)

	r := newTestReader(t, buf, WithEndianness(Big))
	i8, err := r.ReadInt8()
	require.NoError(t, err)
	i16, err := r.ReadInt16()
	require.NoError(t, err)
	i32, err := r.ReadInt32()
	require.NoError(t, err)
	i64, err := r.ReadInt64()
	require.NoError(t, err)
	f32, err := r.ReadFloat32()
	require.NoError(t, err)
	f64, err := r.ReadFloat64()
	require.NoError(t, err)
	b0, err := r.ReadBool()
	require.NoError(t, err)
	b1, err := r.ReadBool()
	require.NoError(t, err)

	assert.Equal(t, int8(-2), i8)
	assert.Equal(t, int16(-3), i16)
	assert.Equal(t, int32(-4), i32)
	assert.Equal(t, int64(-5), i64)
	assert.Equal(t, float32(1.5), f32)
	assert.Equal(t, -2.25, f64)
	assert.False(t, b0)
	assert.True(t, b1)
}

func TestReadPrimitives_EndOfStream(t *testing.T) {
	r := newTestReader(t, []byte{0x01, 0x02, 0x03})

	_, err := r.ReadUint32()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEndOfStream)

	_, err = r.ReadUint8At(3)
	assert.ErrorIs(t, err, ErrEndOfStream)
}

func TestReadPrimitives_Addressed(t *testing.T) {
	r := newTestReader(t, []byte{0xAA, 0x34, 0x12, 0x00, 0x00, 0xBB})

	v, err := r.ReadUint16At(1)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), v)

	pos, err := r.Position()
	require.NoError(t, err)
	assert.Equal(t, int64(3), pos)

	b, err := r.ReadUint8At(5)
	require.NoError(t, err)
	assert.Equal(t, uint8(0xBB), b)

	_, err = r.ReadUint8At(-1)
	assert.Error(t, err)
}

func TestReadValue_Substitution(t *testing.T) {
	data := []byte{0x78, 0x56, 0x34, 0x12, 0xFF}
	r := newTestReader(t, data, WithSubstitution(KindUint64, KindUint32))

	v, err := r.ReadValue(KindUint64)
	require.NoError(t, err)
	assert.Equal(t, KindUint64, v.Kind())
	assert.Equal(t, uint64(0x12345678), v.Any())

	pos, err := r.Position()
	require.NoError(t, err)
	assert.Equal(t, int64(4), pos, "substituted read must consume the wire width")

	// Last write wins.
	r.Substitute(KindUint64, KindUint8)
	wire, ok := r.Substitution(KindUint64)
	require.True(t, ok)
	assert.Equal(t, KindUint8, wire)

	v, err = r.ReadValue(KindUint64)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xFF), v.Uint64())

	r.RemoveSubstitution(KindUint64)
	_, ok = r.Substitution(KindUint64)
	assert.False(t, ok)
}

func TestReadValue_SubstitutionSignExtends(t *testing.T) {
	r := newTestReader(t, []byte{0xFF, 0xFF}, WithSubstitution(KindInt64, KindInt16))
	v, err := r.ReadValue(KindInt64)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), v.Any())
}

func TestReadValue_UnsupportedKind(t *testing.T) {
	r := newTestReader(t, []byte{0x00})
	_, err := r.ReadValue(Kind(200))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfig)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "kind(200)", cfgErr.Type)
}

func TestValue_Conversions(t *testing.T) {
	tests := []struct {
		name string
		in   Value
		to   Kind
		want any
	}{
		{"u4 to bool", uintValue(KindUint32, 7), KindBool, true},
		{"zero to bool", uintValue(KindUint32, 0), KindBool, false},
		{"s1 to s8", intValue(KindInt8, -7), KindInt64, int64(-7)},
		{"u8 truncates to u2", uintValue(KindUint64, 0x12345), KindUint16, uint16(0x2345)},
		{"f8 to s4", floatValue(KindFloat64, -3.75), KindInt32, int32(-3)},
		{"u4 to f8", uintValue(KindUint32, 10), KindFloat64, float64(10)},
		{"bool to u1", boolValue(true), KindUint8, uint8(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.Convert(tt.to)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Any())
		})
	}
}

func TestValue_Int(t *testing.T) {
	n, err := uintValue(KindUint32, 12).Int()
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	_, err = intValue(KindInt32, -1).Int()
	assert.Error(t, err)

	_, err = uintValue(KindUint64, math.MaxUint64).Int()
	assert.Error(t, err)

	tests := []struct {
		value Value
		want  int
	}{
		{floatValue(KindFloat32, 3), 3},
		{floatValue(KindFloat64, 2.5), 2},
		{floatValue(KindFloat64, 3.5), 4},
		{floatValue(KindFloat64, 0.4), 0},
		{boolValue(true), 1},
		{boolValue(false), 0},
	}
	for _, tt := range tests {
		n, err := tt.value.Int()
		require.NoError(t, err, "%s %v", tt.value.Kind(), tt.value.Any())
		assert.Equal(t, tt.want, n, "%s %v", tt.value.Kind(), tt.value.Any())
	}

	for _, f := range []float64{-1, math.NaN(), math.Inf(1), float64(math.MaxInt32) + 1} {
		_, err = floatValue(KindFloat64, f).Int()
		assert.Error(t, err, "%v", f)
	}
}

func TestParseKind(t *testing.T) {
	for _, name := range []string{"u1", "s1", "u2", "s2", "u4", "s4", "u8", "s8", "f4", "f8", "bool"} {
		k, ok := ParseKind(name)
		require.True(t, ok, name)
		assert.Equal(t, name, k.String())
	}
	k, ok := ParseKind("byte")
	assert.True(t, ok)
	assert.Equal(t, KindUint8, k)

	_, ok = ParseKind("u3")
	assert.False(t, ok)
}
