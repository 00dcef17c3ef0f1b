package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/redpanda-data/benthos/v4/public/service"
	"github.com/twinfer/bin2object/pkg/binobj"
	"github.com/twinfer/bin2object/pkg/binschema"
)

const (
	metaSchemaPath = "bin2object_schema_path"
	metaRootType   = "bin2object_root_type"
)

// Bin2ObjectProcessor is a Benthos processor that decodes binary messages
// into structured data using a YAML record layout.
type Bin2ObjectProcessor struct {
	config       Bin2ObjectConfig
	endianness   *binobj.Endianness
	decoders     sync.Map // schema path -> *binschema.Decoder
	logger       *service.Logger
	mParsed      *service.MetricCounter
	mErrors      *service.MetricCounter
	mCacheHits   *service.MetricCounter
	mCacheMisses *service.MetricCounter
}

// Bin2ObjectConfig contains configuration parameters for the processor.
type Bin2ObjectConfig struct {
	SchemaPath string   `json:"schema_path" yaml:"schema_path"`
	RootType   string   `json:"root_type" yaml:"root_type"`
	Version    *float64 `json:"version,omitempty" yaml:"version,omitempty"`
	Endianness string   `json:"endianness" yaml:"endianness"`
}

func init() {
	err := service.RegisterProcessor(
		"bin2object",
		bin2objectProcessorConfig(),
		func(conf *service.ParsedConfig, mgr *service.Resources) (service.Processor, error) {
			return newBin2ObjectProcessorFromConfig(conf, mgr)
		},
	)
	if err != nil {
		panic(err)
	}
}

func main() {
	service.RunCLI(context.Background())
}

// bin2objectProcessorConfig returns a config spec for a bin2object processor.
func bin2objectProcessorConfig() *service.ConfigSpec {
	return service.NewConfigSpec().
		Summary("Decodes binary messages into structured data using a YAML record layout.").
		Description("Each message is decoded as one root record. Fields outside the configured schema version are omitted. Messages that fail to decode keep their payload and carry the error.").
		Field(service.NewStringField("schema_path").
			Description("Path to the YAML layout file.").
			Example("./schemas/header.yaml")).
		Field(service.NewStringField("root_type").
			Description("The type to decode from the layout. Leave empty to decode the top-level seq.").
			Default("")).
		Field(service.NewFloatField("version").
			Description("Schema version used for field gating. Defaults to meta.version, then 1.").
			Optional()).
		Field(service.NewStringField("endianness").
			Description("Overrides meta.endian when set: le, little, be or big.").
			Default("")).
		Version("0.1.0")
}

// newBin2ObjectProcessorFromConfig creates a processor from a parsed config.
func newBin2ObjectProcessorFromConfig(conf *service.ParsedConfig, mgr *service.Resources) (*Bin2ObjectProcessor, error) {
	schemaPath, err := conf.FieldString("schema_path")
	if err != nil {
		return nil, err
	}

	rootType, err := conf.FieldString("root_type")
	if err != nil {
		return nil, err
	}

	endianness, err := conf.FieldString("endianness")
	if err != nil {
		return nil, err
	}

	config := Bin2ObjectConfig{
		SchemaPath: schemaPath,
		RootType:   rootType,
		Endianness: endianness,
	}

	if conf.Contains("version") {
		v, err := conf.FieldFloat("version")
		if err != nil {
			return nil, err
		}
		config.Version = &v
	}

	if _, err := os.Stat(schemaPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("schema file not found at path: %s", schemaPath)
	}

	var order *binobj.Endianness
	if endianness != "" {
		e, err := binobj.ParseEndianness(endianness)
		if err != nil {
			return nil, err
		}
		order = &e
	}

	metrics := mgr.Metrics()
	p := &Bin2ObjectProcessor{
		endianness:   order,
		config:       config,
		logger:       mgr.Logger(),
		mParsed:      metrics.NewCounter("bin2object_parsed_messages"),
		mErrors:      metrics.NewCounter("bin2object_processing_errors"),
		mCacheHits:   metrics.NewCounter("bin2object_schema_cache_hits"),
		mCacheMisses: metrics.NewCounter("bin2object_schema_cache_misses"),
	}

	// Fail fast on a malformed layout.
	if _, err := p.loadDecoder(schemaPath); err != nil {
		return nil, err
	}
	return p, nil
}

// Process decodes one binary message into a structured message.
func (b *Bin2ObjectProcessor) Process(ctx context.Context, msg *service.Message) (service.MessageBatch, error) {
	binData, err := msg.AsBytes()
	if err != nil {
		return b.fail(msg, fmt.Errorf("failed to get binary data from message: %w", err))
	}

	if len(binData) == 0 {
		return b.fail(msg, fmt.Errorf("empty binary data provided"))
	}

	dec, err := b.loadDecoder(b.config.SchemaPath)
	if err != nil {
		return b.fail(msg, fmt.Errorf("failed to load schema: %w", err))
	}

	result, err := dec.Decode(ctx, b.newReader(dec, binData))
	if err != nil {
		return b.fail(msg, fmt.Errorf("failed to decode binary data of size %d bytes: %w", len(binData), err))
	}

	b.logger.Debugf("Successfully decoded %d bytes of binary data", len(binData))
	b.mParsed.Incr(1)

	newMsg := msg.Copy()
	newMsg.SetStructured(result)
	newMsg.MetaSet(metaSchemaPath, b.config.SchemaPath)
	newMsg.MetaSet(metaRootType, dec.RootType())

	return service.MessageBatch{newMsg}, nil
}

func (b *Bin2ObjectProcessor) fail(msg *service.Message, err error) (service.MessageBatch, error) {
	b.logger.Errorf("%v", err)
	b.mErrors.Incr(1)
	msg.SetError(err)
	return service.MessageBatch{msg}, nil
}

// newReader applies the processor's overrides on top of the layout's meta.
func (b *Bin2ObjectProcessor) newReader(dec *binschema.Decoder, data []byte) *binobj.Reader {
	opts := dec.ReaderOptions()
	if b.config.Version != nil {
		opts = append(opts, binobj.WithVersion(*b.config.Version))
	}
	if b.endianness != nil {
		opts = append(opts, binobj.WithEndianness(*b.endianness))
	}
	return binobj.NewReader(bytes.NewReader(data), opts...)
}

// loadDecoder loads and compiles a layout file, caching the result.
func (b *Bin2ObjectProcessor) loadDecoder(path string) (*binschema.Decoder, error) {
	if cached, ok := b.decoders.Load(path); ok {
		b.logger.Tracef("Schema cache hit for path: %s", path)
		b.mCacheHits.Incr(1)
		return cached.(*binschema.Decoder), nil
	}

	b.logger.Debugf("Loading schema from path: %s", path)
	b.mCacheMisses.Incr(1)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}

	schema, err := binschema.NewSchemaFromYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema YAML: %w", err)
	}
	schema.RootType = b.config.RootType

	dec, err := binschema.NewDecoder(schema, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	b.decoders.Store(path, dec)
	b.logger.Debugf("Loaded and cached schema from: %s", path)
	return dec, nil
}

// Close releases the processor's cached decoders.
func (b *Bin2ObjectProcessor) Close(ctx context.Context) error {
	b.logger.Debug("Closing bin2object processor and clearing schema cache")
	b.decoders.Clear()
	return nil
}
