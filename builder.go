// File: lixenwraith/confbind/builder.go
package confbind

import (
	"fmt"

	"go.uber.org/zap"
)

// Builder provides a fluent interface for building registries
type Builder struct {
	extractor  MetadataExtractor
	converters []registration[TypeConverter]
	factories  []registration[ConverterFactory]
	processors []ValueProcessor
	cacheSize  int
	poolSize   int
	fallback   []string
	logger     *zap.Logger
	err        error
}

// NewBuilder creates a builder using the tag extractor, the built-in converters and no processors
func NewBuilder() *Builder {
	return &Builder{
		extractor: NewTagExtractor(),
		cacheSize: DefaultModelCacheSize,
		poolSize:  DefaultCodecPoolSize,
		logger:    zap.NewNop(),
	}
}

// WithExtractor selects the metadata extraction strategy
func (b *Builder) WithExtractor(x MetadataExtractor) *Builder {
	if x == nil {
		b.err = fmt.Errorf("%w: nil metadata extractor", ErrInvalidAttributes)
		return b
	}
	b.extractor = x
	return b
}

// WithConvention is shorthand for WithExtractor(NewConventionExtractor())
func (b *Builder) WithConvention() *Builder {
	return b.WithExtractor(NewConventionExtractor())
}

// WithConverter registers an additional base converter
func (b *Builder) WithConverter(conv TypeConverter, priority int) *Builder {
	if conv == nil {
		b.err = fmt.Errorf("%w: nil type converter", ErrInvalidAttributes)
		return b
	}
	b.converters = append(b.converters, registration[TypeConverter]{item: conv, priority: priority})
	return b
}

// WithConverterFactory registers an additional delegating converter factory
func (b *Builder) WithConverterFactory(f ConverterFactory, priority int) *Builder {
	if f == nil {
		b.err = fmt.Errorf("%w: nil converter factory", ErrInvalidAttributes)
		return b
	}
	b.factories = append(b.factories, registration[ConverterFactory]{item: f, priority: priority})
	return b
}

// WithProcessor appends a value processor; processors run in the order they are added
func (b *Builder) WithProcessor(p ValueProcessor) *Builder {
	if p == nil {
		b.err = fmt.Errorf("%w: nil value processor", ErrInvalidAttributes)
		return b
	}
	b.processors = append(b.processors, p)
	return b
}

// WithCacheSize bounds the model cache
func (b *Builder) WithCacheSize(n int) *Builder {
	b.cacheSize = n
	return b
}

// WithCodecPoolSize bounds the pooled codecs of the structured-object converter, per struct type
func (b *Builder) WithCodecPoolSize(n int) *Builder {
	b.poolSize = n
	return b
}

// WithLogger sets the logger, zap.NewNop() when nil
func (b *Builder) WithLogger(l *zap.Logger) *Builder {
	if l == nil {
		l = zap.NewNop()
	}
	b.logger = l
	return b
}

// WithFallbackPrefixes sets the root fallback prefixes, tried after the primary prefixes of every key
func (b *Builder) WithFallbackPrefixes(prefixes ...string) *Builder {
	for _, p := range prefixes {
		if err := validateKey(p); err != nil {
			b.err = fmt.Errorf("%w: fallback prefix: %w", ErrInvalidAttributes, err)
			return b
		}
	}
	b.fallback = prefixes
	return b
}

// Build creates the Registry with all specified options
func (b *Builder) Build() (*Registry, error) {
	if b.err != nil {
		return nil, b.err
	}

	models, err := NewModelProvider(b.extractor, b.cacheSize, b.logger.Named("model"))
	if err != nil {
		return nil, err
	}

	converters := newConverters(b.poolSize)
	for _, c := range b.converters {
		converters.Register(c.item, c.priority)
	}
	for _, f := range b.factories {
		converters.RegisterFactory(f.item, f.priority)
	}

	return &Registry{
		models:     models,
		converters: converters,
		values:     NewValueProvider(b.logger.Named("value"), b.processors...),
		fallback:   b.fallback,
		logger:     b.logger,
	}, nil
}

// MustBuild is like Build but panics on error
func (b *Builder) MustBuild() *Registry {
	r, err := b.Build()
	if err != nil {
		panic(fmt.Sprintf("confbind build failed: %v", err))
	}
	return r
}
