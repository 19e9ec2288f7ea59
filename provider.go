// FILE: lixenwraith/confbind/provider.go
package confbind

import (
	"fmt"
	"reflect"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultModelCacheSize bounds the number of cached configuration models.
const DefaultModelCacheSize = 256

// ModelProvider builds and caches configuration models.
// It is safe for concurrent use; concurrent first requests for a shape converge on one model.
type ModelProvider struct {
	extractor MetadataExtractor
	parsers   []propertyParser
	cache     *lru.Cache[reflect.Type, *ConfigurationModel]
	group     singleflight.Group
	logger    *zap.Logger
}

// NewModelProvider creates a provider using extractor. cacheSize <= 0 selects DefaultModelCacheSize.
func NewModelProvider(extractor MetadataExtractor, cacheSize int, logger *zap.Logger) (*ModelProvider, error) {
	if extractor == nil {
		panic("confbind: nil metadata extractor")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheSize <= 0 {
		cacheSize = DefaultModelCacheSize
	}

	p := &ModelProvider{
		extractor: extractor,
		parsers:   defaultParsers(),
		logger:    logger,
	}
	cache, err := lru.NewWithEvict(cacheSize, func(shape reflect.Type, _ *ConfigurationModel) {
		p.logger.Debug("configuration model evicted", zap.Stringer("shape", shape))
	})
	if err != nil {
		return nil, fmt.Errorf("model cache creation failed: %w", err)
	}
	p.cache = cache
	return p, nil
}

// Extractor returns the metadata extractor the provider was built with.
func (p *ModelProvider) Extractor() MetadataExtractor { return p.extractor }

// IsConfigurationType reports whether shape is a configuration for the active extractor.
func (p *ModelProvider) IsConfigurationType(shape reflect.Type) bool {
	return p.extractor.IsConfiguration(mustShape(shape))
}

// ConfigurationModel returns the cached model of shape, building it on first use.
// Pointer shapes are dereferenced.
func (p *ModelProvider) ConfigurationModel(shape reflect.Type) (*ConfigurationModel, error) {
	shape = mustShape(shape)
	if !p.extractor.IsConfiguration(shape) {
		return nil, fmt.Errorf("%w: %v is not a configuration type", ErrInvalidSchema, shape)
	}
	if m, ok := p.cache.Get(shape); ok {
		return m, nil
	}

	// the rtype address identifies the type; names collide for function-local types
	v, err, shared := p.group.Do(fmt.Sprintf("%p", shape), func() (any, error) {
		return p.model(shape, buildPath{})
	})
	if err != nil {
		p.logger.Debug("configuration model build failed", zap.Stringer("shape", shape), zap.Error(err))
		return nil, err
	}
	if shared {
		p.logger.Debug("configuration model build shared", zap.Stringer("shape", shape))
	}
	return v.(*ConfigurationModel), nil
}

// ModelOf is a generic shorthand for ConfigurationModel.
func ModelOf[T any](p *ModelProvider) (*ConfigurationModel, error) {
	return p.ConfigurationModel(reflect.TypeFor[T]())
}

// model resolves shape within the traversal path of a top-level build.
func (p *ModelProvider) model(shape reflect.Type, path buildPath) (*ConfigurationModel, error) {
	if err := path.cycle(shape); err != nil {
		return nil, err
	}
	if m, ok := p.cache.Get(shape); ok {
		return m, nil
	}

	m, err := p.buildModel(shape, path)
	if err != nil {
		return nil, err
	}

	if prev, ok, _ := p.cache.PeekOrAdd(shape, m); ok {
		// another build won the race
		return prev, nil
	}
	p.logger.Debug("configuration model built",
		zap.Stringer("shape", shape),
		zap.Int("properties", len(m.properties)),
		zap.Bool("abstract", m.abstract))
	return m, nil
}
