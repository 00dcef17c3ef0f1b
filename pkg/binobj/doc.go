// Package binobj decodes typed Go values from seekable binary sources using
// declarative, per-type field layouts.
//
// # Overview
//
// A record type declares its binary layout once, through a builder, and the
// engine walks that layout field by field:
//
//	type Header struct {
//	    Magic uint32
//	    Count uint32
//	    Name  string
//	    Data  []byte
//	    Extra uint16
//	}
//
//	func (h *Header) DescribeLayout(l *binobj.Layout[Header]) {
//	    binobj.Field(l, "Magic", func(h *Header) *uint32 { return &h.Magic })
//	    binobj.Field(l, "Count", func(h *Header) *uint32 { return &h.Count })
//	    binobj.String(l, "Name", func(h *Header) *string { return &h.Name }, binobj.FixedSize(16))
//	    binobj.Array(l, "Data", func(h *Header) *[]byte { return &h.Data }, binobj.LengthFrom("Count"))
//	    binobj.Field(l, "Extra", func(h *Header) *uint16 { return &h.Extra }, binobj.MinVersion(2))
//	}
//
//	r := binobj.NewReader(f, binobj.WithEndianness(binobj.Big), binobj.WithVersion(2))
//	hdr, err := binobj.ReadObjectAt[Header](r, 0x40)
//
// Types that cannot carry a method are registered with Define.
//
// # Field kinds
//
//   - Field: a primitive (bool, 1/2/4/8-byte integers, f4/f8) in the reader's byte order
//   - String: null-terminated (default) or FixedSize(n) text in the reader's encoding
//   - Array: FixedLength(n) or LengthFrom(sibling) elements, primitive or record
//   - Nested: another record type
//
// Fields decode strictly in declaration order. A LengthFrom sibling must be
// an integer field declared before the array.
//
// # Versions and substitutions
//
// Versions, MinVersion and MaxVersion gate a field on Reader.Version. A
// skipped field keeps its zero value and consumes no bytes. Substitute
// decodes every field of one logical kind using a different wire kind, for
// example 64-bit pointers stored as 32-bit values in older formats.
//
// # Concurrency
//
// The *At methods and functions seek and read under one reader-wide lock and
// may be used from multiple goroutines. Everything else moves the shared
// cursor without locking. Layouts are built exactly once per Cache.
//
// # Errors
//
// Malformed layouts surface as *ConfigError (errors.Is(err, ErrConfig)) when
// the offending field is decoded. Reads past the end of the source wrap
// ErrEndOfStream. A failed decode never returns a partially filled value.
package binobj
