// Package binschema decodes binary records described by YAML layouts,
// without declaring Go types for them.
//
// # Overview
//
// A layout names its fields in the order they appear on the wire:
//
//	meta:
//	  id: header
//	  endian: be
//	  encoding: UTF-8
//	  version: 2
//	  substitutions:
//	    u8: u4
//	seq:
//	  - id: magic
//	    type: u4
//	  - id: count
//	    type: u1
//	  - id: name
//	    type: str
//	    size: 8
//	  - id: points
//	    type: point
//	    length: {field: count}
//	  - id: extra
//	    type: u2
//	    versions: {min: 2}
//	types:
//	  point:
//	    seq:
//	      - {id: x, type: s2}
//	      - {id: y, type: s2}
//
// Records are read through a binobj.Reader and follow the same rules as
// typed layouts: fields decode strictly in order, a field outside the
// reader's version range is skipped without consuming bytes, and a
// length field must be a primitive declared before its array. Float
// lengths are rounded half to even and bools count as 0 or 1.
//
// # Quick Start
//
//	result, err := binschema.ParseBinary(data, "header.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Field Types
//
//   - u1, u2, u4, u8, s1, s2, s4, s8, f4, f8, bool: decoded to the matching Go type
//   - str: null-terminated, or exactly size bytes when size is set
//   - bytes: raw []byte, requires length
//   - any name under types: a nested map[string]any
//
// A field with length becomes []any. Lengths are fixed, taken from an
// earlier field, or computed by a CEL expression over the earlier fields
// of the same record, e.g. length: {expr: "bitAnd(flags, 0x0F) * 2"}.
//
// # Configuration Options
//
//   - WithRootType(string): decode a named type instead of the top-level seq
//   - WithVersion(float64): override meta.version
//   - WithEndianness(binobj.Endianness): override meta.endian
//   - WithLogger(*slog.Logger): custom logging
//   - WithCaching(bool): cache compiled layouts per path and root type
//   - WithDebugMode(bool): tag log records with debug=true
//
// Options given to NewParser are defaults. Options passed to ParseBinary,
// SerializeToJSON or ValidateSchema override them for that call only.
//
// # Errors
//
// Unlike typed layouts, which report configuration errors when a bad field
// is first decoded, a YAML layout is checked as a whole when it is loaded.
// NewDecoder and ValidateSchema return *binobj.ConfigError for every
// malformed field, even one that version gating would skip. Truncated input
// wraps binobj.ErrEndOfStream.
package binschema
