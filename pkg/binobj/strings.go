package binobj

import (
	"fmt"
	"slices"

	"github.com/kaitai-io/kaitai_struct_go_runtime/kaitai"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
)

// EncodingByName resolves an IANA charset name ("UTF-8", "UTF-16LE",
// "Shift_JIS", "IBM437", ...) to an encoding.
func EncodingByName(name string) (encoding.Encoding, error) {
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q: %w", name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
	return enc, nil
}

// ReadBytes reads count raw bytes. Under Big endianness the sequence is
// returned reversed. Byte array fields and strings always keep stream order.
func (r *Reader) ReadBytes(count int) ([]byte, error) {
	b, err := r.readRaw(count)
	if err != nil {
		return nil, err
	}
	if r.endianness == Big {
		slices.Reverse(b)
	}
	return b, nil
}

// ReadBytesAt is ReadBytes at an absolute offset.
func (r *Reader) ReadBytesAt(addr int64, count int) ([]byte, error) {
	return readAt(r, addr, func() ([]byte, error) { return r.ReadBytes(count) })
}

// readRaw reads exactly count bytes in stream order.
func (r *Reader) readRaw(count int) ([]byte, error) {
	if count < 0 {
		return nil, fmt.Errorf("negative byte count %d", count)
	}
	pos := r.pos()
	b, err := r.stream.ReadBytes(count)
	if err != nil {
		return nil, streamError(err, pos, fmt.Sprintf("%d bytes", count))
	}
	return b, nil
}

// ReadNullTerminatedString reads up to and including a zero byte and decodes
// the bytes before it. The cursor is left just past the terminator. An
// optional encoding overrides the reader's default.
func (r *Reader) ReadNullTerminatedString(enc ...encoding.Encoding) (string, error) {
	start := r.pos()
	raw, err := r.stream.ReadBytesTerm(0, false, true, true)
	if err != nil {
		return "", streamError(err, start, "null-terminated string")
	}
	return r.decodeText(raw, enc)
}

// ReadNullTerminatedStringAt is ReadNullTerminatedString at an absolute offset.
func (r *Reader) ReadNullTerminatedStringAt(addr int64, enc ...encoding.Encoding) (string, error) {
	return readAt(r, addr, func() (string, error) { return r.ReadNullTerminatedString(enc...) })
}

// ReadFixedLengthString consumes exactly length bytes and decodes the bytes
// before the first zero. Bytes after an embedded zero are discarded.
func (r *Reader) ReadFixedLengthString(length int, enc ...encoding.Encoding) (string, error) {
	if length < 0 {
		return "", fmt.Errorf("negative string length %d", length)
	}
	raw, err := r.readRaw(length)
	if err != nil {
		return "", err
	}
	return r.decodeText(kaitai.BytesTerminate(raw, 0, false), enc)
}

// ReadFixedLengthStringAt is ReadFixedLengthString at an absolute offset.
func (r *Reader) ReadFixedLengthStringAt(addr int64, length int, enc ...encoding.Encoding) (string, error) {
	return readAt(r, addr, func() (string, error) { return r.ReadFixedLengthString(length, enc...) })
}

func (r *Reader) decodeText(raw []byte, override []encoding.Encoding) (string, error) {
	enc := r.encoding
	if len(override) > 0 && override[0] != nil {
		enc = override[0]
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decoding %d text bytes: %w", len(raw), err)
	}
	return string(out), nil
}
