// FILE: lixenwraith/confbind/converter.go
package confbind

import (
	"fmt"
	"reflect"
	"slices"
	"sync"
)

// TypeConverter converts between strings and values of the types it is applicable to.
// Implementations must be stateless, safe for concurrent use and symmetric:
// FromString(ToString(v)) equals v for every representable v.
type TypeConverter interface {
	Name() string
	IsApplicable(t reflect.Type, attrs Attributes) bool
	FromString(t reflect.Type, s string, attrs Attributes) (any, error)
	ToString(t reflect.Type, v any, attrs Attributes) (string, error)
}

// ConverterLookup selects a converter for a component type.
type ConverterLookup func(t reflect.Type, attrs Attributes) (TypeConverter, error)

// ConverterFactory produces converters for generic containers by delegating to component converters.
type ConverterFactory interface {
	Name() string
	IsApplicable(t reflect.Type, attrs Attributes) bool
	Create(t reflect.Type, attrs Attributes, lookup ConverterLookup) (TypeConverter, error)
}

// Priorities of the built-in converters. Higher runs first; equal priorities keep registration order.
const (
	PriorityHigh    = 100
	PriorityDefault = 0
	PriorityLow     = -100
)

type registration[T any] struct {
	item     T
	priority int
	seq      int
}

// Converters is the converter composite. Selection order is: the explicitly named converter,
// then base converters by descending priority, then factories by descending priority.
// Within one priority the earlier registration wins.
type Converters struct {
	mu        sync.RWMutex
	base      []registration[TypeConverter]
	factories []registration[ConverterFactory]
	seq       int
}

// NewConverters returns a composite holding the built-in converters and factories.
func NewConverters() *Converters { return newConverters(DefaultCodecPoolSize) }

func newConverters(poolSize int) *Converters {
	c := &Converters{}
	for _, conv := range builtinConverters() {
		c.Register(conv.item, conv.priority)
	}
	c.RegisterFactory(pointerFactory{}, PriorityDefault)
	c.RegisterFactory(sliceFactory{}, PriorityDefault)
	c.RegisterFactory(mapFactory{}, PriorityDefault)
	c.RegisterFactory(newStructFactory(poolSize), PriorityLow)
	return c
}

// Register adds a base converter.
func (c *Converters) Register(conv TypeConverter, priority int) {
	if conv == nil {
		panic("confbind: nil type converter")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	c.base = insertSorted(c.base, registration[TypeConverter]{item: conv, priority: priority, seq: c.seq})
}

// RegisterFactory adds a delegating converter factory.
func (c *Converters) RegisterFactory(f ConverterFactory, priority int) {
	if f == nil {
		panic("confbind: nil converter factory")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	c.factories = insertSorted(c.factories, registration[ConverterFactory]{item: f, priority: priority, seq: c.seq})
}

func insertSorted[T any](regs []registration[T], r registration[T]) []registration[T] {
	regs = append(slices.Clone(regs), r)
	slices.SortStableFunc(regs, func(a, b registration[T]) int {
		if a.priority != b.priority {
			return b.priority - a.priority
		}
		return a.seq - b.seq
	})
	return regs
}

// Select returns the explicitly named converter when name is set, otherwise the first applicable one.
func (c *Converters) Select(t reflect.Type, name string, attrs Attributes) (TypeConverter, error) {
	if name == "" {
		return c.Lookup(t, attrs)
	}

	c.mu.RLock()
	base, factories := c.base, c.factories
	c.mu.RUnlock()

	for _, r := range base {
		if r.item.Name() == name {
			return r.item, nil
		}
	}
	for _, r := range factories {
		if r.item.Name() == name {
			return r.item.Create(t, attrs, c.Lookup)
		}
	}
	return nil, fmt.Errorf("%w: no converter named %q for %v", ErrNoApplicableConverter, name, t)
}

// Lookup returns the first applicable converter for t.
func (c *Converters) Lookup(t reflect.Type, attrs Attributes) (TypeConverter, error) {
	if t == nil {
		panic("confbind: nil converter target type")
	}
	c.mu.RLock()
	base, factories := c.base, c.factories
	c.mu.RUnlock()

	for _, r := range base {
		if r.item.IsApplicable(t, attrs) {
			return r.item, nil
		}
	}
	for _, r := range factories {
		if r.item.IsApplicable(t, attrs) {
			return r.item.Create(t, attrs, c.Lookup)
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrNoApplicableConverter, t)
}

// Close releases pooled resources held by factories.
func (c *Converters) Close() {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, r := range c.factories {
		if closer, ok := r.item.(interface{ Close() }); ok {
			closer.Close()
		}
	}
}

// Name makes the composite itself usable as a TypeConverter.
func (c *Converters) Name() string { return "composite" }

func (c *Converters) IsApplicable(t reflect.Type, attrs Attributes) bool {
	_, err := c.Lookup(t, attrs)
	return err == nil
}

func (c *Converters) FromString(t reflect.Type, s string, attrs Attributes) (any, error) {
	conv, err := c.Lookup(t, attrs)
	if err != nil {
		return nil, err
	}
	return conv.FromString(t, s, attrs)
}

func (c *Converters) ToString(t reflect.Type, v any, attrs Attributes) (string, error) {
	conv, err := c.Lookup(t, attrs)
	if err != nil {
		return "", err
	}
	return conv.ToString(t, v, attrs)
}

// FromStringAs converts s into T using the composite.
func FromStringAs[T any](c *Converters, s string, attrs Attributes) (T, error) {
	var zero T
	v, err := c.FromString(reflect.TypeFor[T](), s, attrs)
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

// ToStringOf converts v into its string form using the composite.
func ToStringOf[T any](c *Converters, v T, attrs Attributes) (string, error) {
	return c.ToString(reflect.TypeFor[T](), v, attrs)
}

func conversionError(conv TypeConverter, t reflect.Type, s string, err error) error {
	return &ConversionError{Type: t, Value: s, Converter: conv.Name(), Err: err}
}
