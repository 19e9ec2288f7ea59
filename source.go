// FILE: lixenwraith/confbind/source.go
package confbind

import (
	"encoding/json"
	"fmt"
	"iter"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/spf13/cast"
)

// AttrSource routes a property to a named sub-source of a MultiSource.
const AttrSource = "source"

// MapSource is an in-memory, mutable source. It is safe for concurrent use.
type MapSource struct {
	mu     sync.RWMutex
	values map[string]Value
}

// NewMapSource returns a source holding a copy of values.
func NewMapSource(values map[string]string) *MapSource {
	s := &MapSource{values: make(map[string]Value, len(values))}
	for k, v := range values {
		s.values[k] = Of(v)
	}
	return s
}

func (s *MapSource) Lookup(key string, _ Attributes) Value {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key]
}

// Set stores a present string value.
func (s *MapSource) Set(key, value string) { s.put(key, Of(value)) }

// SetNull stores an explicit null.
func (s *MapSource) SetNull(key string) { s.put(key, Null()) }

func (s *MapSource) put(key string, v Value) {
	if key == "" {
		panic("confbind: empty source key")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = v
}

// Delete removes key, making it absent.
func (s *MapSource) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// Entries yields a snapshot of the contents in key order.
func (s *MapSource) Entries() iter.Seq2[string, Value] {
	s.mu.RLock()
	snapshot := maps.Clone(s.values)
	s.mu.RUnlock()
	return sortedEntries(snapshot)
}

func sortedEntries(m map[string]Value) iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		for _, k := range slices.Sorted(maps.Keys(m)) {
			if !yield(k, m[k]) {
				return
			}
		}
	}
}

// ChainSource consults its sources in order; the first present value wins.
type ChainSource []Source

// Chain returns a ChainSource over sources, highest precedence first.
func Chain(sources ...Source) ChainSource {
	for _, s := range sources {
		if s == nil {
			panic("confbind: nil source in chain")
		}
	}
	return ChainSource(sources)
}

func (c ChainSource) Lookup(key string, attrs Attributes) Value {
	for _, s := range c {
		if v := s.Lookup(key, attrs); v.IsPresent() {
			return v
		}
	}
	return Absent()
}

// Entries merges the iterable members of the chain, honoring precedence.
// Members that cannot enumerate are skipped.
func (c ChainSource) Entries() iter.Seq2[string, Value] {
	merged := make(map[string]Value)
	for i := len(c) - 1; i >= 0; i-- {
		it, ok := c[i].(IterableSource)
		if !ok {
			continue
		}
		for k, v := range it.Entries() {
			merged[k] = v
		}
	}
	return sortedEntries(merged)
}

// MultiSource routes lookups by the AttrSource attribute to a named sub-source.
// Properties without the attribute use the default source.
type MultiSource struct {
	mu    sync.RWMutex
	named map[string]Source
	def   Source
}

// NewMultiSource creates a router. def may be nil, in which case unrouted keys are absent.
func NewMultiSource(def Source) *MultiSource {
	return &MultiSource{named: make(map[string]Source), def: def}
}

// Add registers src under name, replacing any previous one.
func (m *MultiSource) Add(name string, src Source) *MultiSource {
	if name == "" || src == nil {
		panic("confbind: multi source needs a name and a source")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.named[name] = src
	return m
}

func (m *MultiSource) Lookup(key string, attrs Attributes) Value {
	m.mu.RLock()
	src := m.def
	if name := attrs[AttrSource]; name != "" {
		src = m.named[name]
	}
	m.mu.RUnlock()

	if src == nil {
		return Absent()
	}
	return src.Lookup(key, attrs)
}

// flattenValues turns parsed document data into source values keyed by dotted path.
func flattenValues(doc map[string]any) (map[string]Value, error) {
	flat := flattenMap(doc, "")
	out := make(map[string]Value, len(flat))
	for k, raw := range flat {
		v, err := toValue(raw)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		if v.IsPresent() {
			out[k] = v
		}
	}
	return out, nil
}

// toValue renders a decoded document value in the string form the converters read.
func toValue(raw any) (Value, error) {
	switch v := raw.(type) {
	case nil:
		return Null(), nil
	case string:
		return Of(v), nil
	case json.Number:
		return Of(v.String()), nil
	case time.Time:
		return Of(v.Format(time.RFC3339Nano)), nil
	case fmt.Stringer:
		return Of(v.String()), nil
	case []any:
		parts := make([]string, len(v))
		for i, e := range v {
			ev, err := toValue(e)
			if err != nil {
				return Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			parts[i] = ev.String()
		}
		return Of(joinList(parts)), nil
	case map[string]any:
		// only empty tables survive flattening
		return Absent(), nil
	}
	s, err := cast.ToStringE(raw)
	if err != nil {
		return Value{}, err
	}
	return Of(s), nil
}
