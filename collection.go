// File: lixenwraith/confbind/collection.go
package confbind

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"unicode/utf8"
)

// AttrSeparator overrides the list separator of the slice converter. It must be a single rune.
const AttrSeparator = "separator"

const defaultSeparator = ','

// Factory names, usable in the converter tag.
const (
	ConverterPointer = "pointer"
	ConverterSlice   = "slice"
	ConverterMap     = "map"
)

// joinList renders parts as a comma separated list.
func joinList(parts []string) string { return joinEscaped(parts, defaultSeparator) }

// joinEscaped joins parts with sep, escaping sep and backslashes inside parts.
// A single empty part is written as a lone backslash so it stays distinct from the empty list.
func joinEscaped(parts []string, sep rune) string {
	if len(parts) == 1 && parts[0] == "" {
		return string(escapeChar)
	}
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = escape(p, sep)
	}
	return strings.Join(escaped, string(sep))
}

// splitUnescaped is the inverse of joinEscaped.
func splitUnescaped(s string, sep rune) []string {
	switch s {
	case "":
		return nil
	case string(escapeChar):
		return []string{""}
	}
	parts := splitEscaped(s, sep)
	for i, p := range parts {
		parts[i] = unescape(p)
	}
	return parts
}

func separatorOf(attrs Attributes) (rune, error) {
	s, ok := attrs[AttrSeparator]
	if !ok || s == "" {
		return defaultSeparator, nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("%w: separator %q must be a single character", ErrInvalidAttributes, s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	if r == escapeChar {
		return 0, fmt.Errorf("%w: separator cannot be the escape character", ErrInvalidAttributes)
	}
	return r, nil
}

// pointerFactory binds *T through the converter of T.
type pointerFactory struct{}

func (pointerFactory) Name() string { return ConverterPointer }

func (pointerFactory) IsApplicable(t reflect.Type, _ Attributes) bool {
	return t.Kind() == reflect.Ptr
}

func (pointerFactory) Create(t reflect.Type, attrs Attributes, lookup ConverterLookup) (TypeConverter, error) {
	elem, err := lookup(t.Elem(), attrs)
	if err != nil {
		return nil, err
	}
	return &pointerConverter{elem: elem}, nil
}

type pointerConverter struct {
	elem TypeConverter
}

func (c *pointerConverter) Name() string { return ConverterPointer }

func (c *pointerConverter) IsApplicable(t reflect.Type, attrs Attributes) bool {
	return t.Kind() == reflect.Ptr && c.elem.IsApplicable(t.Elem(), attrs)
}

func (c *pointerConverter) FromString(t reflect.Type, s string, attrs Attributes) (any, error) {
	v, err := c.elem.FromString(t.Elem(), s, attrs)
	if err != nil {
		return nil, err
	}
	ptr := reflect.New(t.Elem())
	ptr.Elem().Set(reflect.ValueOf(v))
	return ptr.Interface(), nil
}

// ToString renders nil pointers as the empty string.
func (c *pointerConverter) ToString(t reflect.Type, v any, attrs Attributes) (string, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.IsNil() {
		return "", nil
	}
	return c.elem.ToString(t.Elem(), rv.Elem().Interface(), attrs)
}

// sliceFactory binds slices and arrays as separator-joined lists of their elements.
type sliceFactory struct{}

func (sliceFactory) Name() string { return ConverterSlice }

func (sliceFactory) IsApplicable(t reflect.Type, _ Attributes) bool {
	return t.Kind() == reflect.Slice || t.Kind() == reflect.Array
}

func (sliceFactory) Create(t reflect.Type, attrs Attributes, lookup ConverterLookup) (TypeConverter, error) {
	sep, err := separatorOf(attrs)
	if err != nil {
		return nil, err
	}
	// element converters see the element attributes only
	elemAttrs := withoutKey(attrs, AttrSeparator)
	elem, err := lookup(t.Elem(), elemAttrs)
	if err != nil {
		return nil, err
	}
	return &sliceConverter{elem: elem, sep: sep, elemAttrs: elemAttrs}, nil
}

type sliceConverter struct {
	elem      TypeConverter
	sep       rune
	elemAttrs Attributes
}

func (c *sliceConverter) Name() string { return ConverterSlice }

func (c *sliceConverter) IsApplicable(t reflect.Type, _ Attributes) bool {
	return (t.Kind() == reflect.Slice || t.Kind() == reflect.Array) && c.elem.IsApplicable(t.Elem(), c.elemAttrs)
}

func (c *sliceConverter) FromString(t reflect.Type, s string, _ Attributes) (any, error) {
	parts := splitUnescaped(s, c.sep)

	var out reflect.Value
	if t.Kind() == reflect.Array {
		if len(parts) != t.Len() {
			return nil, conversionError(c, t, s, fmt.Errorf("expected %d elements, got %d", t.Len(), len(parts)))
		}
		out = reflect.New(t).Elem()
	} else {
		out = reflect.MakeSlice(t, len(parts), len(parts))
	}

	for i, p := range parts {
		v, err := c.elem.FromString(t.Elem(), p, c.elemAttrs)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out.Index(i).Set(reflect.ValueOf(v))
	}
	return out.Interface(), nil
}

func (c *sliceConverter) ToString(t reflect.Type, v any, _ Attributes) (string, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() == reflect.Slice && rv.IsNil()) {
		return "", nil
	}
	parts := make([]string, rv.Len())
	for i := range parts {
		s, err := c.elem.ToString(t.Elem(), rv.Index(i).Interface(), c.elemAttrs)
		if err != nil {
			return "", fmt.Errorf("element %d: %w", i, err)
		}
		parts[i] = s
	}
	return joinEscaped(parts, c.sep), nil
}

// mapFactory binds maps as comma separated key=value pairs sorted by rendered key.
type mapFactory struct{}

func (mapFactory) Name() string { return ConverterMap }

func (mapFactory) IsApplicable(t reflect.Type, _ Attributes) bool {
	return t.Kind() == reflect.Map
}

func (mapFactory) Create(t reflect.Type, attrs Attributes, lookup ConverterLookup) (TypeConverter, error) {
	key, err := lookup(t.Key(), attrs)
	if err != nil {
		return nil, err
	}
	elem, err := lookup(t.Elem(), attrs)
	if err != nil {
		return nil, err
	}
	return &mapConverter{key: key, elem: elem}, nil
}

type mapConverter struct {
	key  TypeConverter
	elem TypeConverter
}

func (c *mapConverter) Name() string { return ConverterMap }

func (c *mapConverter) IsApplicable(t reflect.Type, attrs Attributes) bool {
	return t.Kind() == reflect.Map && c.key.IsApplicable(t.Key(), attrs) && c.elem.IsApplicable(t.Elem(), attrs)
}

func (c *mapConverter) FromString(t reflect.Type, s string, attrs Attributes) (any, error) {
	out := reflect.MakeMap(t)
	if s == "" {
		return out.Interface(), nil
	}
	for _, pair := range splitEscaped(s, ',') {
		k, v, ok := cutEscaped(pair, '=')
		if !ok {
			return nil, conversionError(c, t, s, fmt.Errorf("pair %q is not key=value", unescape(pair)))
		}
		kv, err := c.key.FromString(t.Key(), unescape(k), attrs)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", unescape(k), err)
		}
		vv, err := c.elem.FromString(t.Elem(), unescape(v), attrs)
		if err != nil {
			return nil, fmt.Errorf("value of %q: %w", unescape(k), err)
		}
		out.SetMapIndex(reflect.ValueOf(kv), reflect.ValueOf(vv))
	}
	return out.Interface(), nil
}

func (c *mapConverter) ToString(t reflect.Type, v any, attrs Attributes) (string, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.IsNil() {
		return "", nil
	}
	type pair struct{ k, v string }
	pairs := make([]pair, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		k, err := c.key.ToString(t.Key(), iter.Key().Interface(), attrs)
		if err != nil {
			return "", err
		}
		val, err := c.elem.ToString(t.Elem(), iter.Value().Interface(), attrs)
		if err != nil {
			return "", fmt.Errorf("value of %q: %w", k, err)
		}
		pairs = append(pairs, pair{k, val})
	}
	slices.SortFunc(pairs, func(a, b pair) int { return strings.Compare(a.k, b.k) })

	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = escape(p.k, ',', '=') + "=" + escape(p.v, ',', '=')
	}
	return strings.Join(parts, ","), nil
}

func withoutKey(attrs Attributes, key string) Attributes {
	if _, ok := attrs[key]; !ok {
		return attrs
	}
	out := make(Attributes, len(attrs)-1)
	for k, v := range attrs {
		if k != key {
			out[k] = v
		}
	}
	return out
}
