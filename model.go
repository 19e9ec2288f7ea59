// FILE: lixenwraith/confbind/model.go
package confbind

import (
	"maps"
	"reflect"
	"slices"
)

// Default is a tri-state default value: absent, explicit null, or a string.
type Default = Value

// ConfigurationModel is the immutable schema of one configuration shape.
type ConfigurationModel struct {
	shape       reflect.Type
	description string
	abstract    bool
	prefixes    []string
	attributes  Attributes
	properties  []PropertyModel
	byName      map[string]PropertyModel
}

// Shape returns the struct type the model was built from.
func (m *ConfigurationModel) Shape() reflect.Type { return m.shape }

func (m *ConfigurationModel) Description() string { return m.description }

// IsAbstract reports whether the shape may only be inherited from.
func (m *ConfigurationModel) IsAbstract() bool { return m.abstract }

// Prefixes returns the shape-level key prefixes in declaration order.
func (m *ConfigurationModel) Prefixes() []string { return slices.Clone(m.prefixes) }

func (m *ConfigurationModel) Attributes() Attributes { return maps.Clone(m.attributes) }

// Properties returns the properties in member order.
func (m *ConfigurationModel) Properties() []PropertyModel { return slices.Clone(m.properties) }

// Property returns the property with the given name.
func (m *ConfigurationModel) Property(name string) (PropertyModel, bool) {
	p, ok := m.byName[name]
	return p, ok
}

// PropertyModel is implemented by *ValueProperty, *SubConfigurationProperty
// and *SubConfigurationListProperty.
type PropertyModel interface {
	Name() string
	// Index is the reflect field index path, embedded ancestors included.
	Index() []int
	Description() string
	Attributes() Attributes
	ResetPrefix() bool
	isProperty()
}

type propertyBase struct {
	name        string
	index       []int
	description string
	attributes  Attributes
	resetPrefix bool
}

func (p *propertyBase) Name() string           { return p.name }
func (p *propertyBase) Index() []int           { return slices.Clone(p.index) }
func (p *propertyBase) Description() string    { return p.description }
func (p *propertyBase) Attributes() Attributes { return maps.Clone(p.attributes) }
func (p *propertyBase) ResetPrefix() bool      { return p.resetPrefix }
func (p *propertyBase) isProperty()            {}

// ValueProperty is a scalar or collection property resolved through a converter.
type ValueProperty struct {
	propertyBase
	typ                reflect.Type
	keys               []string
	fallbackKey        string
	encryptionProvider string
	defaultValue       Default
	converter          string
}

func (p *ValueProperty) Type() reflect.Type { return p.typ }

// Keys returns the configured keys, deduplicated, in declaration order. Never empty.
func (p *ValueProperty) Keys() []string             { return slices.Clone(p.keys) }
func (p *ValueProperty) FallbackKey() string        { return p.fallbackKey }
func (p *ValueProperty) EncryptionProvider() string { return p.encryptionProvider }
func (p *ValueProperty) Default() Default           { return p.defaultValue }
func (p *ValueProperty) Converter() string          { return p.converter }

// SubConfigurationProperty nests another configuration model.
type SubConfigurationProperty struct {
	propertyBase
	model        *ConfigurationModel
	declaredType reflect.Type
	prefixes     []string
	defaults     map[string]string
}

func (p *SubConfigurationProperty) Model() *ConfigurationModel { return p.model }

// DeclaredType is the field type as written, pointer included.
func (p *SubConfigurationProperty) DeclaredType() reflect.Type { return p.declaredType }

// ActualType is the struct type that is materialized.
func (p *SubConfigurationProperty) ActualType() reflect.Type { return p.model.shape }
func (p *SubConfigurationProperty) Prefixes() []string       { return slices.Clone(p.prefixes) }

// Defaults maps nested property names to default strings.
func (p *SubConfigurationProperty) Defaults() map[string]string { return maps.Clone(p.defaults) }

// SubConfigurationListProperty nests a list of configuration models.
type SubConfigurationListProperty struct {
	propertyBase
	model        *ConfigurationModel
	declaredType reflect.Type
	prefixes     []string
	size         int
	defaults     []map[string]string
}

// Model returns the item model.
func (p *SubConfigurationListProperty) Model() *ConfigurationModel { return p.model }
func (p *SubConfigurationListProperty) DeclaredType() reflect.Type { return p.declaredType }
func (p *SubConfigurationListProperty) Prefixes() []string         { return slices.Clone(p.prefixes) }

// DefaultSize is the number of elements that exist without any source value.
func (p *SubConfigurationListProperty) DefaultSize() int { return p.size }

// DefaultsAt returns the per-property defaults for element i, nil when none were declared.
func (p *SubConfigurationListProperty) DefaultsAt(i int) map[string]string {
	if i < 0 || i >= len(p.defaults) {
		return nil
	}
	return maps.Clone(p.defaults[i])
}
