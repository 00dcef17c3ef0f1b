package binobj

import (
	"github.com/kaitai-io/kaitai_struct_go_runtime/kaitai"
)

type decodeFunc func(s *kaitai.Stream, e Endianness) (Value, error)

// decoders is the closed dispatch table from kind to wire decoder.
var decoders = [...]decodeFunc{
	KindBool: func(s *kaitai.Stream, _ Endianness) (Value, error) {
		b, err := s.ReadU1()
		return boolValue(b != 0), err
	},
	KindUint8: func(s *kaitai.Stream, _ Endianness) (Value, error) {
		v, err := s.ReadU1()
		return uintValue(KindUint8, uint64(v)), err
	},
	KindInt8: func(s *kaitai.Stream, _ Endianness) (Value, error) {
		v, err := s.ReadS1()
		return intValue(KindInt8, int64(v)), err
	},
	KindUint16: func(s *kaitai.Stream, e Endianness) (Value, error) {
		read := s.ReadU2le
		if e == Big {
			read = s.ReadU2be
		}
		v, err := read()
		return uintValue(KindUint16, uint64(v)), err
	},
	KindInt16: func(s *kaitai.Stream, e Endianness) (Value, error) {
		read := s.ReadS2le
		if e == Big {
			read = s.ReadS2be
		}
		v, err := read()
		return intValue(KindInt16, int64(v)), err
	},
	KindUint32: func(s *kaitai.Stream, e Endianness) (Value, error) {
		read := s.ReadU4le
		if e == Big {
			read = s.ReadU4be
		}
		v, err := read()
		return uintValue(KindUint32, uint64(v)), err
	},
	KindInt32: func(s *kaitai.Stream, e Endianness) (Value, error) {
		read := s.ReadS4le
		if e == Big {
			read = s.ReadS4be
		}
		v, err := read()
		return intValue(KindInt32, int64(v)), err
	},
	KindUint64: func(s *kaitai.Stream, e Endianness) (Value, error) {
		read := s.ReadU8le
		if e == Big {
			read = s.ReadU8be
		}
		v, err := read()
		return uintValue(KindUint64, v), err
	},
	KindInt64: func(s *kaitai.Stream, e Endianness) (Value, error) {
		read := s.ReadS8le
		if e == Big {
			read = s.ReadS8be
		}
		v, err := read()
		return intValue(KindInt64, v), err
	},
	KindFloat32: func(s *kaitai.Stream, e Endianness) (Value, error) {
		read := s.ReadF4le
		if e == Big {
			read = s.ReadF4be
		}
		v, err := read()
		return floatValue(KindFloat32, float64(v)), err
	},
	KindFloat64: func(s *kaitai.Stream, e Endianness) (Value, error) {
		read := s.ReadF8le
		if e == Big {
			read = s.ReadF8be
		}
		v, err := read()
		return floatValue(KindFloat64, v), err
	},
}

// readWire decodes exactly one k from the stream, ignoring substitutions.
func (r *Reader) readWire(k Kind) (Value, error) {
	if int(k) >= len(decoders) || decoders[k] == nil {
		return Value{}, &ConfigError{Type: k.String(), Reason: "unsupported primitive kind"}
	}
	pos := r.pos()
	v, err := decoders[k](r.stream, r.endianness)
	if err != nil {
		return Value{}, streamError(err, pos, k.String())
	}
	return v, nil
}

// ReadValue decodes a primitive of logical kind k. When a substitution is
// registered for k the wire kind is decoded and converted back to k.
func (r *Reader) ReadValue(k Kind) (Value, error) {
	wire, ok := r.substitutions[k]
	if !ok || wire == k {
		return r.readWire(k)
	}
	v, err := r.readWire(wire)
	if err != nil {
		return Value{}, err
	}
	return v.Convert(k)
}

// ReadValueAt is ReadValue at an absolute offset.
func (r *Reader) ReadValueAt(addr int64, k Kind) (Value, error) {
	return readAt(r, addr, func() (Value, error) { return r.ReadValue(k) })
}

func readTyped[P Primitive](r *Reader) (P, error) {
	var out P
	v, err := r.readWire(KindOf[P]())
	if err != nil {
		return out, err
	}
	assign(&out, v)
	return out, nil
}

func readTypedAt[P Primitive](r *Reader, addr int64) (P, error) {
	return readAt(r, addr, func() (P, error) { return readTyped[P](r) })
}

func (r *Reader) ReadBool() (bool, error)       { return readTyped[bool](r) }
func (r *Reader) ReadUint8() (uint8, error)     { return readTyped[uint8](r) }
func (r *Reader) ReadInt8() (int8, error)       { return readTyped[int8](r) }
func (r *Reader) ReadUint16() (uint16, error)   { return readTyped[uint16](r) }
func (r *Reader) ReadInt16() (int16, error)     { return readTyped[int16](r) }
func (r *Reader) ReadUint32() (uint32, error)   { return readTyped[uint32](r) }
func (r *Reader) ReadInt32() (int32, error)     { return readTyped[int32](r) }
func (r *Reader) ReadUint64() (uint64, error)   { return readTyped[uint64](r) }
func (r *Reader) ReadInt64() (int64, error)     { return readTyped[int64](r) }
func (r *Reader) ReadFloat32() (float32, error) { return readTyped[float32](r) }
func (r *Reader) ReadFloat64() (float64, error) { return readTyped[float64](r) }

func (r *Reader) ReadBoolAt(addr int64) (bool, error)       { return readTypedAt[bool](r, addr) }
func (r *Reader) ReadUint8At(addr int64) (uint8, error)     { return readTypedAt[uint8](r, addr) }
func (r *Reader) ReadInt8At(addr int64) (int8, error)       { return readTypedAt[int8](r, addr) }
func (r *Reader) ReadUint16At(addr int64) (uint16, error)   { return readTypedAt[uint16](r, addr) }
func (r *Reader) ReadInt16At(addr int64) (int16, error)     { return readTypedAt[int16](r, addr) }
func (r *Reader) ReadUint32At(addr int64) (uint32, error)   { return readTypedAt[uint32](r, addr) }
func (r *Reader) ReadInt32At(addr int64) (int32, error)     { return readTypedAt[int32](r, addr) }
func (r *Reader) ReadUint64At(addr int64) (uint64, error)   { return readTypedAt[uint64](r, addr) }
func (r *Reader) ReadInt64At(addr int64) (int64, error)     { return readTypedAt[int64](r, addr) }
func (r *Reader) ReadFloat32At(addr int64) (float32, error) { return readTypedAt[float32](r, addr) }
func (r *Reader) ReadFloat64At(addr int64) (float64, error) { return readTypedAt[float64](r, addr) }
