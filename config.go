// FILE: lixenwraith/confbind/config.go
package confbind

import (
	"fmt"
	"maps"
	"reflect"

	"go.uber.org/zap"
)

// Registry owns the model cache, the converter composite and the processor chain.
// Create one with NewBuilder and share it; it is safe for concurrent use.
type Registry struct {
	models     *ModelProvider
	converters *Converters
	values     *ValueProvider
	fallback   []string
	logger     *zap.Logger
}

// Models returns the model provider.
func (r *Registry) Models() *ModelProvider { return r.models }

// Converters returns the converter composite.
func (r *Registry) Converters() *Converters { return r.converters }

// Values returns the value provider.
func (r *Registry) Values() *ValueProvider { return r.values }

// Model returns the configuration model of shape.
func (r *Registry) Model(shape reflect.Type) (*ConfigurationModel, error) {
	return r.models.ConfigurationModel(shape)
}

// Close releases pooled converter resources.
func (r *Registry) Close() {
	r.converters.Close()
}

// frame is the resolution context of one configuration instance in the tree.
type frame struct {
	prefixes PrefixStack
	fallback PrefixStack
	defaults map[string]string
	attrs    Attributes
}

func (r *Registry) rootFrame(m *ConfigurationModel) frame {
	return frame{
		prefixes: NewPrefixStack(m.prefixes...),
		fallback: NewPrefixStack(r.fallback...),
		attrs:    m.attributes,
	}
}

// nestedPrefixes are the prefixes a nested property contributes: its own, else its shape's.
func nestedPrefixes(own []string, m *ConfigurationModel) []string {
	if len(own) > 0 {
		return own
	}
	return m.prefixes
}

// sub returns the frame of a nested configuration.
func (f frame) sub(p *SubConfigurationProperty) frame {
	prefixes := nestedPrefixes(p.prefixes, p.model)
	next := frame{defaults: p.defaults, attrs: mergeAttrs(f.attrs, p.model.attributes, p.attributes)}
	if p.resetPrefix {
		next.prefixes = NewPrefixStack(prefixes...)
		return next
	}
	next.prefixes = f.prefixes.Push(prefixes...)
	next.fallback = f.fallback
	return next
}

// element returns the frame of list element i.
func (f frame) element(p *SubConfigurationListProperty, i int) frame {
	prefixes := nestedPrefixes(p.prefixes, p.model)
	next := frame{defaults: p.DefaultsAt(i), attrs: mergeAttrs(f.attrs, p.model.attributes, p.attributes)}
	base, fallback := f.prefixes, f.fallback
	if p.resetPrefix {
		base, fallback = PrefixStack{}, PrefixStack{}
	}
	next.prefixes = base.PushIndex(i, prefixes...)
	next.fallback = fallback
	return next
}

func (f frame) meta(p *ValueProperty) PropertyMetadata {
	meta := PropertyMetadata{
		Property:         p,
		Prefixes:         f.prefixes,
		FallbackPrefixes: f.fallback,
		Attributes:       f.attrs,
	}
	if d, ok := f.defaults[p.name]; ok {
		meta.Override = Of(d)
	}
	return meta
}

func mergeAttrs(layers ...Attributes) Attributes {
	var out Attributes
	for _, l := range layers {
		if len(l) == 0 {
			continue
		}
		if out == nil {
			out = make(Attributes)
		}
		maps.Copy(out, l)
	}
	return out
}

// resolve resolves a value property in frame f with its selected converter.
func (r *Registry) resolve(src Source, p *ValueProperty, f frame) (Resolved, error) {
	meta := f.meta(p)
	conv, err := r.converters.Select(p.typ, p.converter, meta.attributes())
	if err != nil {
		return Resolved{}, fmt.Errorf("property %s: %w", p.name, err)
	}
	return r.values.Resolve(conv, src, meta)
}

// KeyInfo describes the candidate keys of one value property in a bound tree.
type KeyInfo struct {
	Path string
	Type reflect.Type
	Keys []string
}

// Keys lists the candidate keys of every value property reachable from shape, in member order.
// Lists are expanded to their default size, at least one element.
func (r *Registry) Keys(shape reflect.Type) ([]KeyInfo, error) {
	m, err := r.models.ConfigurationModel(shape)
	if err != nil {
		return nil, err
	}
	var out []KeyInfo
	var walk func(m *ConfigurationModel, f frame, path []string)
	walk = func(m *ConfigurationModel, f frame, path []string) {
		for _, prop := range m.properties {
			here := append(append([]string(nil), path...), prop.Name())
			switch p := prop.(type) {
			case *ValueProperty:
				out = append(out, KeyInfo{Path: describePath(here), Type: p.typ, Keys: r.values.CandidateKeys(f.meta(p))})
			case *SubConfigurationProperty:
				walk(p.model, f.sub(p), here)
			case *SubConfigurationListProperty:
				for i := range max(p.size, 1) {
					walk(p.model, f.element(p, i), append(here, fmt.Sprint(i)))
				}
			}
		}
	}
	walk(m, r.rootFrame(m), nil)
	return out, nil
}
