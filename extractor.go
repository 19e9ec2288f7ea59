// FILE: lixenwraith/confbind/extractor.go
package confbind

import (
	"encoding"
	"fmt"
	"net"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// MetadataExtractor answers schema questions about a shape and its fields.
// Implementations must be free of side effects. Field index paths are relative to shape.
type MetadataExtractor interface {
	IsConfiguration(shape reflect.Type) bool
	IsAbstract(shape reflect.Type) bool
	ShapePrefixes(shape reflect.Type) []string
	ShapeDescription(shape reflect.Type) string
	ShapeAttributes(shape reflect.Type) Attributes

	// Validate rejects metadata combinations the strategy does not allow.
	Validate(shape reflect.Type, field reflect.StructField) error
	IsIgnored(shape reflect.Type, field reflect.StructField) bool
	IsValue(shape reflect.Type, field reflect.StructField) bool
	IsSubConfiguration(shape reflect.Type, field reflect.StructField) bool
	IsSubConfigurationList(shape reflect.Type, field reflect.StructField) bool

	PropertyName(shape reflect.Type, field reflect.StructField) string
	Keys(shape reflect.Type, field reflect.StructField) []string
	Prefixes(shape reflect.Type, field reflect.StructField) []string
	ResetPrefix(shape reflect.Type, field reflect.StructField) bool
	FallbackKey(shape reflect.Type, field reflect.StructField) string
	Converter(shape reflect.Type, field reflect.StructField) string
	EncryptionProvider(shape reflect.Type, field reflect.StructField) string
	Default(shape reflect.Type, field reflect.StructField) Default
	SubDefaults(shape reflect.Type, field reflect.StructField) map[string]string
	ListDefaults(shape reflect.Type, field reflect.StructField) (int, []map[string]string)
	Description(shape reflect.Type, field reflect.StructField) string
	Attributes(shape reflect.Type, field reflect.StructField) Attributes
}

// Configuration marks a struct as a configuration shape for TagExtractor.
// Shape-level tags are read from the marker field:
//
//	type Server struct {
//	    _    confbind.Configuration `prefix:"server" desc:"HTTP server"`
//	    Host string                 `key:"host,hostname" default:"localhost"`
//	}
type Configuration struct{}

var (
	markerType          = reflect.TypeOf(Configuration{})
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
	timeType            = reflect.TypeOf(time.Time{})
	durationType        = reflect.TypeOf(time.Duration(0))
	urlType             = reflect.TypeOf(url.URL{})
	ipType              = reflect.TypeOf(net.IP{})
	ipNetType           = reflect.TypeOf(net.IPNet{})
)

// Struct tags read by TagExtractor.
const (
	tagName      = "name"
	tagKey       = "key"
	tagFallback  = "fallback"
	tagPrefix    = "prefix"
	tagDefault   = "default"
	tagFlags     = "cfg"
	tagEncrypted = "encrypted"
	tagConverter = "converter"
	tagDesc      = "desc"
	tagAttr      = "attr"
	tagSize      = "size"
	tagDefaults  = "defaults"
	tagToml      = "toml"
)

// Flags inside the cfg tag.
const (
	flagIgnore      = "-"
	flagReset       = "reset"
	flagNullDefault = "nulldefault"
	flagAbstract    = "abstract"
	flagValue       = "value"
)

// TagExtractor reads metadata from struct tags and the Configuration marker.
type TagExtractor struct{}

// NewTagExtractor returns the explicit, declaration-based extractor.
func NewTagExtractor() *TagExtractor { return &TagExtractor{} }

func (e *TagExtractor) IsConfiguration(shape reflect.Type) bool {
	_, ok := markerField(shape)
	return ok
}

func (e *TagExtractor) IsAbstract(shape reflect.Type) bool {
	f, ok := markerField(shape)
	return ok && hasFlag(f, flagAbstract)
}

func (e *TagExtractor) ShapePrefixes(shape reflect.Type) []string {
	f, ok := markerField(shape)
	if !ok {
		return nil
	}
	return splitList(f.Tag.Get(tagPrefix))
}

func (e *TagExtractor) ShapeDescription(shape reflect.Type) string {
	f, _ := markerField(shape)
	return f.Tag.Get(tagDesc)
}

func (e *TagExtractor) ShapeAttributes(shape reflect.Type) Attributes {
	f, ok := markerField(shape)
	if !ok {
		return nil
	}
	attrs, _ := parsePairs(f.Tag.Get(tagAttr))
	return attrs
}

func (e *TagExtractor) Validate(shape reflect.Type, field reflect.StructField) error {
	if e.IsIgnored(shape, field) {
		return nil
	}
	has := func(tag string) bool { _, ok := field.Tag.Lookup(tag); return ok }
	bad := func(combo string) error {
		return fmt.Errorf("%w: %s.%s declares %s", ErrInvalidAttributes, shape.Name(), field.Name, combo)
	}

	if has(tagDefault) && hasFlag(field, flagNullDefault) {
		return bad("default+nulldefault")
	}
	if _, err := parsePairs(field.Tag.Get(tagAttr)); err != nil {
		return bad("malformed attr: " + err.Error())
	}

	switch {
	case e.IsSubConfigurationList(shape, field):
		for _, t := range []string{tagKey, tagFallback, tagEncrypted, tagConverter, tagDefault} {
			if has(t) {
				return bad("list+" + t)
			}
		}
		if hasFlag(field, flagNullDefault) {
			return bad("list+nulldefault")
		}
		if s, ok := field.Tag.Lookup(tagSize); ok {
			if n, err := strconv.Atoi(s); err != nil || n < 0 {
				return bad("size=" + s)
			}
		}
		if _, err := parseDefaultMaps(field.Tag.Get(tagDefaults)); err != nil {
			return bad("malformed defaults: " + err.Error())
		}
	case e.IsSubConfiguration(shape, field):
		for _, t := range []string{tagKey, tagFallback, tagEncrypted, tagConverter, tagDefault, tagSize} {
			if has(t) {
				return bad("sub-configuration+" + t)
			}
		}
		if hasFlag(field, flagNullDefault) {
			return bad("sub-configuration+nulldefault")
		}
		maps, err := parseDefaultMaps(field.Tag.Get(tagDefaults))
		if err != nil {
			return bad("malformed defaults: " + err.Error())
		}
		if len(maps) > 1 {
			return bad("sub-configuration+indexed defaults")
		}
	default:
		for _, t := range []string{tagSize, tagDefaults, tagPrefix} {
			if has(t) {
				return bad("value+" + t)
			}
		}
	}
	return nil
}

func (e *TagExtractor) IsIgnored(_ reflect.Type, field reflect.StructField) bool {
	return !field.IsExported() || field.Type == markerType || hasFlag(field, flagIgnore)
}

func (e *TagExtractor) IsValue(shape reflect.Type, field reflect.StructField) bool {
	if e.IsIgnored(shape, field) || !isRecognizable(field.Type) {
		return false
	}
	return !e.IsSubConfiguration(shape, field) && !e.IsSubConfigurationList(shape, field)
}

func (e *TagExtractor) IsSubConfiguration(shape reflect.Type, field reflect.StructField) bool {
	if e.IsIgnored(shape, field) || hasFlag(field, flagValue) {
		return false
	}
	return e.IsConfiguration(derefType(field.Type))
}

func (e *TagExtractor) IsSubConfigurationList(shape reflect.Type, field reflect.StructField) bool {
	if e.IsIgnored(shape, field) || hasFlag(field, flagValue) || field.Type.Kind() != reflect.Slice {
		return false
	}
	return e.IsConfiguration(derefType(field.Type.Elem()))
}

func (e *TagExtractor) PropertyName(_ reflect.Type, field reflect.StructField) string {
	if n := field.Tag.Get(tagName); n != "" {
		return n
	}
	return field.Name
}

func (e *TagExtractor) Keys(_ reflect.Type, field reflect.StructField) []string {
	if keys := splitList(field.Tag.Get(tagKey)); len(keys) > 0 {
		return dedupe(keys)
	}
	return []string{defaultKey(field)}
}

func (e *TagExtractor) Prefixes(_ reflect.Type, field reflect.StructField) []string {
	p, ok := field.Tag.Lookup(tagPrefix)
	if !ok {
		return []string{defaultKey(field)}
	}
	if p == "-" {
		return nil
	}
	return splitList(p)
}

func (e *TagExtractor) ResetPrefix(_ reflect.Type, field reflect.StructField) bool {
	return hasFlag(field, flagReset)
}

func (e *TagExtractor) FallbackKey(_ reflect.Type, field reflect.StructField) string {
	return field.Tag.Get(tagFallback)
}

func (e *TagExtractor) Converter(_ reflect.Type, field reflect.StructField) string {
	return field.Tag.Get(tagConverter)
}

func (e *TagExtractor) EncryptionProvider(_ reflect.Type, field reflect.StructField) string {
	return field.Tag.Get(tagEncrypted)
}

func (e *TagExtractor) Default(_ reflect.Type, field reflect.StructField) Default {
	if hasFlag(field, flagNullDefault) {
		return Null()
	}
	if d, ok := field.Tag.Lookup(tagDefault); ok {
		return Of(d)
	}
	return Absent()
}

func (e *TagExtractor) SubDefaults(_ reflect.Type, field reflect.StructField) map[string]string {
	maps, _ := parseDefaultMaps(field.Tag.Get(tagDefaults))
	if len(maps) == 0 {
		return nil
	}
	return maps[0]
}

func (e *TagExtractor) ListDefaults(_ reflect.Type, field reflect.StructField) (int, []map[string]string) {
	maps, _ := parseDefaultMaps(field.Tag.Get(tagDefaults))
	size := len(maps)
	if s, ok := field.Tag.Lookup(tagSize); ok {
		if n, err := strconv.Atoi(s); err == nil {
			size = n
		}
	}
	return size, maps
}

func (e *TagExtractor) Description(_ reflect.Type, field reflect.StructField) string {
	return field.Tag.Get(tagDesc)
}

func (e *TagExtractor) Attributes(_ reflect.Type, field reflect.StructField) Attributes {
	attrs, _ := parsePairs(field.Tag.Get(tagAttr))
	return attrs
}

// markerField finds the Configuration marker among the direct fields of shape.
func markerField(shape reflect.Type) (reflect.StructField, bool) {
	if shape == nil || shape.Kind() != reflect.Struct {
		return reflect.StructField{}, false
	}
	for i := 0; i < shape.NumField(); i++ {
		if f := shape.Field(i); f.Type == markerType {
			return f, true
		}
	}
	return reflect.StructField{}, false
}

func hasFlag(field reflect.StructField, flag string) bool {
	for _, f := range strings.Split(field.Tag.Get(tagFlags), ",") {
		if strings.TrimSpace(f) == flag {
			return true
		}
	}
	return false
}

// defaultKey uses the toml tag name when present, otherwise the lowerCamel field name.
func defaultKey(field reflect.StructField) string {
	if tag := field.Tag.Get(tagToml); tag != "" && tag != "-" {
		if name, _, _ := strings.Cut(tag, ","); name != "" {
			return name
		}
	}
	return lowerCamel(field.Name)
}

// lowerCamel turns MaxConns into maxConns and HTTPServer into httpServer.
func lowerCamel(s string) string {
	r := []rune(s)
	n := 0
	for n < len(r) && unicode.IsUpper(r[n]) {
		n++
	}
	// keep the capital that starts the next word
	if n > 1 && n < len(r) && unicode.IsLower(r[n]) {
		n--
	}
	for i := 0; i < n; i++ {
		r[i] = unicode.ToLower(r[i])
	}
	return string(r)
}

func derefType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

// isRecognizable reports whether values of t can be bound from strings at all.
func isRecognizable(t reflect.Type) bool {
	switch derefType(t).Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Complex64, reflect.Complex128,
		reflect.Interface, reflect.Invalid:
		return false
	}
	return true
}

// isValueLike reports struct types that are always bound as a single value.
func isValueLike(t reflect.Type) bool {
	t = derefType(t)
	switch t {
	case timeType, urlType, ipNetType:
		return true
	}
	return reflect.PointerTo(t).Implements(textUnmarshalerType)
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parsePairs parses "k=v,k2=v2" with backslash escapes.
func parsePairs(s string) (map[string]string, error) {
	if s == "" {
		return nil, nil
	}
	out := make(map[string]string)
	for _, pair := range splitEscaped(s, ',') {
		k, v, ok := cutEscaped(pair, '=')
		if !ok || k == "" {
			return nil, fmt.Errorf("pair %q is not key=value", pair)
		}
		out[unescape(k)] = unescape(v)
	}
	return out, nil
}

// parseDefaultMaps parses "k=v,k2=v2;k=v3" into one map per ';'-separated group.
// Empty groups yield nil maps so indices stay aligned.
func parseDefaultMaps(s string) ([]map[string]string, error) {
	if s == "" {
		return nil, nil
	}
	groups := splitEscaped(s, ';')
	out := make([]map[string]string, len(groups))
	for i, g := range groups {
		m, err := parsePairs(g)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
		out[i] = m
	}
	return out, nil
}
