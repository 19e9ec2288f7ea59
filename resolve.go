// FILE: lixenwraith/confbind/resolve.go
package confbind

import (
	"fmt"
	"maps"
	"reflect"

	"go.uber.org/zap"
)

// PropertyMetadata is everything resolution needs to know about one value property in context.
type PropertyMetadata struct {
	Property *ValueProperty
	// Prefixes accumulated while descending from the root shape. Every level is probed,
	// outermost first.
	Prefixes PrefixStack
	// FallbackPrefixes are tried after Prefixes. They are never combined with nested prefixes.
	FallbackPrefixes PrefixStack
	// Override replaces the declared default when present. Parents set it from their defaults tag.
	Override Value
	// Attributes inherited from enclosing shapes. Property attributes take precedence.
	Attributes Attributes
}

// attributes merges inherited and property attributes.
func (m PropertyMetadata) attributes() Attributes {
	own := m.Property.attributes
	if len(m.Attributes) == 0 {
		return own
	}
	out := maps.Clone(m.Attributes)
	maps.Copy(out, own)
	return out
}

// keys computes the candidate keys. Properties that reset their prefix use bare keys.
func (m PropertyMetadata) keys() []string {
	p := m.Property
	if p.ResetPrefix() {
		return CandidateKeys(nil, p.keys, nil, p.fallbackKey)
	}
	return CandidateKeys(m.Prefixes.Flatten(), p.keys, m.FallbackPrefixes.Flatten(), p.fallbackKey)
}

// storageKey is the most specific key of the property: its first key under the first prefix of
// the innermost level. Outer candidates are shared between siblings, so writes go here.
func (m PropertyMetadata) storageKey() string {
	p := m.Property
	if p.ResetPrefix() {
		return p.keys[0]
	}
	inner := m.Prefixes.Innermost()
	if len(inner) == 0 {
		return p.keys[0]
	}
	return joinKey(inner[0], p.keys[0])
}

// Resolved is the outcome of resolving one property.
type Resolved struct {
	// Value is the converted value; nil when absent, the zero value of the type when null.
	Value  any
	Record ValueRecord
}

// IsPresent reports whether a source key or a default supplied the value.
func (r Resolved) IsPresent() bool { return r.Record.Value.IsPresent() }

// IsNull reports an explicit null.
func (r Resolved) IsNull() bool { return r.Record.Value.IsNull() }

// ValueProvider resolves value properties against a source. It holds no per-call state.
type ValueProvider struct {
	processors []ValueProcessor
	logger     *zap.Logger
}

// NewValueProvider creates a provider running processors in order on every resolved value.
func NewValueProvider(logger *zap.Logger, processors ...ValueProcessor) *ValueProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ValueProvider{processors: processors, logger: logger}
}

// CandidateKeys returns the keys Resolve probes for meta, in order.
func (v *ValueProvider) CandidateKeys(meta PropertyMetadata) []string {
	if meta.Property == nil {
		panic("confbind: nil property")
	}
	return meta.keys()
}

// Raw runs lookup, default fallback and the processor chain without converting.
func (v *ValueProvider) Raw(src Source, meta PropertyMetadata) (ValueRecord, error) {
	if src == nil {
		panic("confbind: nil source")
	}
	if meta.Property == nil {
		panic("confbind: nil property")
	}
	p := meta.Property
	attrs := meta.attributes()

	rec := ValueRecord{
		EncryptionProvider: p.encryptionProvider,
		Attributes:         attrs,
	}

	keys := meta.keys()
	for _, k := range keys {
		if val := src.Lookup(k, attrs); val.IsPresent() {
			rec.Key = k
			rec.Value = val
			break
		}
	}

	if !rec.Value.IsPresent() {
		def := p.defaultValue
		if meta.Override.IsPresent() {
			def = meta.Override
		}
		if !def.IsPresent() {
			v.logger.Debug("property unresolved",
				zap.String("property", p.Name()),
				zap.Strings("keys", keys))
			return ValueRecord{Attributes: attrs}, nil
		}
		rec.Value = def
		rec.FromDefault = true
	}

	if err := runProcessors(v.processors, &rec); err != nil {
		return rec, fmt.Errorf("property %s: %w", p.Name(), err)
	}
	return rec, nil
}

// Resolve resolves and converts one property. Absence is not an error: the result is simply not present.
func (v *ValueProvider) Resolve(conv TypeConverter, src Source, meta PropertyMetadata) (Resolved, error) {
	if conv == nil {
		panic("confbind: nil type converter")
	}
	rec, err := v.Raw(src, meta)
	if err != nil {
		return Resolved{}, err
	}
	out := Resolved{Record: rec}

	switch {
	case !rec.Value.IsPresent():
		return out, nil
	case rec.Value.IsNull():
		out.Value = reflect.Zero(meta.Property.typ).Interface()
		return out, nil
	}

	s, _ := rec.Value.Get()
	val, err := conv.FromString(meta.Property.typ, s, rec.Attributes)
	if err != nil {
		return out, fmt.Errorf("property %s (key %q): %w", meta.Property.Name(), rec.Key, err)
	}
	out.Value = val
	return out, nil
}
