package binschema

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/twinfer/bin2object/pkg/binobj"
)

// Parser loads YAML layouts from disk and decodes byte slices with them.
// Compiled decoders are cached per schema path and root type.
type Parser struct {
	decoderCache map[decoderKey]*Decoder
	cacheMutex   sync.RWMutex
	options      options
	hits         atomic.Int64
	misses       atomic.Int64
}

type decoderKey struct {
	path     string
	rootType string
}

// options holds configuration for the parser
type options struct {
	rootType      string
	logger        *slog.Logger
	enableCaching bool
	version       *float64
	endianness    *binobj.Endianness
	debugMode     bool
}

// Option is a function that configures parser options
type Option func(*options)

// WithRootType sets the root type to parse (defaults to the schema ID)
func WithRootType(rootType string) Option {
	return func(o *options) {
		o.rootType = rootType
	}
}

// WithLogger sets a custom logger. Decoders log through the logger of the
// call that compiled them.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithCaching turns decoder caching on or off (default on).
func WithCaching(enabled bool) Option {
	return func(o *options) {
		o.enableCaching = enabled
	}
}

// WithVersion overrides the schema version used for field gating.
func WithVersion(v float64) Option {
	return func(o *options) {
		o.version = &v
	}
}

// WithEndianness overrides the byte order declared in the schema.
func WithEndianness(e binobj.Endianness) Option {
	return func(o *options) {
		o.endianness = &e
	}
}

// WithDebugMode tags every log record of the parser with debug=true.
func WithDebugMode(enabled bool) Option {
	return func(o *options) {
		o.debugMode = enabled
	}
}

// log returns the logger for these options, tagged when debug mode is on.
func (o options) log() *slog.Logger {
	if o.debugMode {
		return o.logger.With("debug", true)
	}
	return o.logger
}

// defaultOptions returns the default configuration
func defaultOptions() options {
	return options{
		logger:        slog.Default(),
		enableCaching: true,
	}
}

// Global parser instance for convenience functions
var globalParser *Parser
var globalParserOnce sync.Once

// getGlobalParser returns a singleton parser instance
func getGlobalParser() *Parser {
	globalParserOnce.Do(func() {
		globalParser = NewParser()
	})
	return globalParser
}

// NewParser creates a new parser instance with the given options
func NewParser(opts ...Option) *Parser {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	return &Parser{
		decoderCache: make(map[decoderKey]*Decoder),
		options:      options,
	}
}

// ParseBinary parses binary data using the YAML layout at schemaPath.
func ParseBinary(data []byte, schemaPath string, opts ...Option) (map[string]any, error) {
	return getGlobalParser().ParseBinary(context.Background(), data, schemaPath, opts...)
}

// ParseBinaryWithContext is ParseBinary with a context.
func ParseBinaryWithContext(ctx context.Context, data []byte, schemaPath string, opts ...Option) (map[string]any, error) {
	return getGlobalParser().ParseBinary(ctx, data, schemaPath, opts...)
}

// SerializeToJSON parses binary data and converts it to JSON
func SerializeToJSON(data []byte, schemaPath string, opts ...Option) ([]byte, error) {
	return getGlobalParser().SerializeToJSON(context.Background(), data, schemaPath, opts...)
}

// SerializeToJSONWithContext is SerializeToJSON with a context.
func SerializeToJSONWithContext(ctx context.Context, data []byte, schemaPath string, opts ...Option) ([]byte, error) {
	return getGlobalParser().SerializeToJSON(ctx, data, schemaPath, opts...)
}

// ValidateSchema checks a layout file without parsing any data
func ValidateSchema(schemaPath string, opts ...Option) error {
	return getGlobalParser().ValidateSchema(schemaPath, opts...)
}

// ParseBinary decodes one root record from the start of data. opts apply to
// this call only, on top of the parser's own options.
func (p *Parser) ParseBinary(ctx context.Context, data []byte, schemaPath string, opts ...Option) (map[string]any, error) {
	options := p.callOptions(opts)

	dec, err := p.decoder(schemaPath, options)
	if err != nil {
		return nil, fmt.Errorf("loading schema: %w", err)
	}

	readerOpts := append(dec.ReaderOptions(), binobj.WithLogger(options.log()))
	if options.version != nil {
		readerOpts = append(readerOpts, binobj.WithVersion(*options.version))
	}
	if options.endianness != nil {
		readerOpts = append(readerOpts, binobj.WithEndianness(*options.endianness))
	}
	r := binobj.NewReader(bytes.NewReader(data), readerOpts...)

	result, err := dec.Decode(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("parsing data: %w", err)
	}
	return result, nil
}

// SerializeToJSON parses binary data and converts it to JSON
func (p *Parser) SerializeToJSON(ctx context.Context, data []byte, schemaPath string, opts ...Option) ([]byte, error) {
	result, err := p.ParseBinary(ctx, data, schemaPath, opts...)
	if err != nil {
		return nil, err
	}

	jsonData, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling to JSON: %w", err)
	}
	return jsonData, nil
}

// ValidateSchema loads and compiles a layout file without parsing any data.
func (p *Parser) ValidateSchema(schemaPath string, opts ...Option) error {
	_, err := p.decoder(schemaPath, p.callOptions(opts))
	return err
}

func (p *Parser) callOptions(opts []Option) options {
	options := p.options
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	return options
}

// decoder returns the compiled decoder for a schema file, from the cache
// when caching is enabled for this call.
func (p *Parser) decoder(schemaPath string, options options) (*Decoder, error) {
	key := decoderKey{path: schemaPath, rootType: options.rootType}
	if options.enableCaching {
		p.cacheMutex.RLock()
		cached, exists := p.decoderCache[key]
		p.cacheMutex.RUnlock()
		if exists {
			p.hits.Add(1)
			return cached, nil
		}
	}
	p.misses.Add(1)

	data, err := os.ReadFile(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("reading schema file: %w", err)
	}

	schema, err := NewSchemaFromYAML(data)
	if err != nil {
		return nil, fmt.Errorf("parsing schema: %w", err)
	}
	schema.RootType = options.rootType

	logger := options.log()
	dec, err := NewDecoder(schema, logger)
	if err != nil {
		return nil, fmt.Errorf("compiling schema: %w", err)
	}
	logger.Debug("Loaded schema", "schema_path", schemaPath, "root_type", dec.RootType())

	if options.enableCaching {
		p.cacheMutex.Lock()
		p.decoderCache[key] = dec
		p.cacheMutex.Unlock()
	}
	return dec, nil
}

// CacheStats returns how many schema lookups were served from the cache and
// how many loaded the file.
func (p *Parser) CacheStats() (hits, misses int64) {
	return p.hits.Load(), p.misses.Load()
}

// ClearCache drops every cached decoder
func (p *Parser) ClearCache() {
	p.cacheMutex.Lock()
	defer p.cacheMutex.Unlock()
	p.decoderCache = make(map[decoderKey]*Decoder)
}
