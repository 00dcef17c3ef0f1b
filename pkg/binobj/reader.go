package binobj

import (
	"fmt"
	"io"
	"log/slog"
	"maps"
	"sync"

	"github.com/kaitai-io/kaitai_struct_go_runtime/kaitai"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// Endianness selects the byte order of multi-byte primitives.
type Endianness int

const (
	Little Endianness = iota
	Big
)

func (e Endianness) String() string {
	if e == Big {
		return "big"
	}
	return "little"
}

// ParseEndianness accepts "le", "little", "be" and "big".
func ParseEndianness(s string) (Endianness, error) {
	switch s {
	case "", "le", "little":
		return Little, nil
	case "be", "big":
		return Big, nil
	}
	return Little, fmt.Errorf("unknown endianness %q", s)
}

// Reader decodes primitives, strings and records from a seekable source.
//
// Methods taking an address seek and read under the reader's lock and are
// safe to call concurrently. Methods without an address move the shared
// cursor without locking; callers must serialize them.
// Endianness, version, encoding and substitutions are configuration and
// must not change while reads are in flight.
type Reader struct {
	mu            sync.Mutex
	stream        *kaitai.Stream
	endianness    Endianness
	version       float64
	encoding      encoding.Encoding
	substitutions map[Kind]Kind
	cache         *Cache
	logger        *slog.Logger
}

// options holds configuration for a Reader
type options struct {
	endianness    Endianness
	version       float64
	encoding      encoding.Encoding
	substitutions map[Kind]Kind
	cache         *Cache
	logger        *slog.Logger
}

// Option configures a Reader.
type Option func(*options)

// WithEndianness sets the byte order (default Little).
func WithEndianness(e Endianness) Option {
	return func(o *options) {
		o.endianness = e
	}
}

// WithVersion sets the schema version used for field gating (default 1).
func WithVersion(v float64) Option {
	return func(o *options) {
		o.version = v
	}
}

// WithEncoding sets the default text encoding (default UTF-8).
func WithEncoding(enc encoding.Encoding) Option {
	return func(o *options) {
		o.encoding = enc
	}
}

// WithSubstitution decodes logical kind fields using the wire kind.
func WithSubstitution(logical, wire Kind) Option {
	return func(o *options) {
		o.substitutions[logical] = wire
	}
}

// WithCache sets the layout cache (default: the package-wide cache).
func WithCache(c *Cache) Option {
	return func(o *options) {
		o.cache = c
	}
}

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func defaultOptions() options {
	return options{
		endianness:    Little,
		version:       1,
		encoding:      unicode.UTF8,
		substitutions: make(map[Kind]Kind),
		cache:         DefaultCache,
		logger:        slog.Default(),
	}
}

// NewReader wraps rs. The cursor starts wherever rs currently is.
func NewReader(rs io.ReadSeeker, opts ...Option) *Reader {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.cache == nil {
		o.cache = DefaultCache
	}
	return &Reader{
		stream:        kaitai.NewStream(rs),
		endianness:    o.endianness,
		version:       o.version,
		encoding:      o.encoding,
		substitutions: o.substitutions,
		cache:         o.cache,
		logger:        o.logger,
	}
}

func (r *Reader) Endianness() Endianness      { return r.endianness }
func (r *Reader) SetEndianness(e Endianness)  { r.endianness = e }
func (r *Reader) Version() float64            { return r.version }
func (r *Reader) SetVersion(v float64)        { r.version = v }
func (r *Reader) Encoding() encoding.Encoding { return r.encoding }

// SetEncoding replaces the default text encoding; nil restores UTF-8.
func (r *Reader) SetEncoding(enc encoding.Encoding) {
	if enc == nil {
		enc = unicode.UTF8
	}
	r.encoding = enc
}

// Substitute registers wire as the on-stream representation of logical,
// replacing any earlier registration for logical.
func (r *Reader) Substitute(logical, wire Kind) {
	r.substitutions[logical] = wire
}

// RemoveSubstitution drops the registration for logical.
func (r *Reader) RemoveSubstitution(logical Kind) {
	delete(r.substitutions, logical)
}

// Substitution returns the wire kind registered for logical.
func (r *Reader) Substitution(logical Kind) (Kind, bool) {
	w, ok := r.substitutions[logical]
	return w, ok
}

// Substitutions returns a copy of the substitution table.
func (r *Reader) Substitutions() map[Kind]Kind {
	return maps.Clone(r.substitutions)
}

// Cache returns the layout cache used by this reader.
func (r *Reader) Cache() *Cache { return r.cache }

// Logger returns the reader's logger.
func (r *Reader) Logger() *slog.Logger { return r.logger }

// Position returns the current cursor offset.
func (r *Reader) Position() (int64, error) {
	return r.stream.Pos()
}

// Seek moves the cursor to an absolute offset.
func (r *Reader) Seek(pos int64) error {
	if pos < 0 {
		return fmt.Errorf("seek to negative offset %d", pos)
	}
	if _, err := r.stream.Seek(pos, io.SeekStart); err != nil {
		return fmt.Errorf("seek to offset %d: %w", pos, err)
	}
	return nil
}

// Size returns the total length of the underlying source.
func (r *Reader) Size() (int64, error) {
	return r.stream.Size()
}

// pos is Position for error messages; failures report -1.
func (r *Reader) pos() int64 {
	p, err := r.stream.Pos()
	if err != nil {
		return -1
	}
	return p
}

// readAt runs read with the cursor at addr, holding the reader lock so the
// seek and the read cannot interleave with another addressed call.
func readAt[V any](r *Reader, addr int64, read func() (V, error)) (V, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.Seek(addr); err != nil {
		var zero V
		return zero, err
	}
	return read()
}

// LockedAt seeks to addr and runs fn while holding the lock used by the *At
// methods. fn must use only the non-addressed methods of r.
func (r *Reader) LockedAt(addr int64, fn func() error) error {
	_, err := readAt(r, addr, func() (struct{}, error) { return struct{}{}, fn() })
	return err
}
