// FILE: lixenwraith/confbind/convention.go
package confbind

import (
	"reflect"

	"github.com/spf13/cast"
)

// Defaulter is implemented by shapes that fill their own defaults in convention mode.
type Defaulter interface {
	SetDefaults()
}

// ConventionExtractor infers metadata from field names and types.
//
// Keys and prefixes are the lowerCamel field names. Defaults come from a fresh instance of the shape
// after SetDefaults, when the shape implements Defaulter. Bool and numeric fields without a non-zero
// default default to their zero value; every other kind has no default.
type ConventionExtractor struct{}

// NewConventionExtractor returns the convention-based extractor.
func NewConventionExtractor() *ConventionExtractor { return &ConventionExtractor{} }

// IsConfiguration requires a struct with at least one exported field, all of them recognizable.
func (e *ConventionExtractor) IsConfiguration(shape reflect.Type) bool {
	if shape == nil || shape.Kind() != reflect.Struct || isValueLike(shape) {
		return false
	}
	count := 0
	ok := walkExported(shape, func(f reflect.StructField) bool {
		count++
		return isRecognizable(f.Type)
	})
	return ok && count > 0
}

func (e *ConventionExtractor) IsAbstract(reflect.Type) bool                     { return false }
func (e *ConventionExtractor) ShapePrefixes(reflect.Type) []string              { return nil }
func (e *ConventionExtractor) ShapeDescription(reflect.Type) string             { return "" }
func (e *ConventionExtractor) ShapeAttributes(reflect.Type) Attributes          { return nil }
func (e *ConventionExtractor) Validate(reflect.Type, reflect.StructField) error { return nil }

func (e *ConventionExtractor) IsIgnored(_ reflect.Type, field reflect.StructField) bool {
	return !field.IsExported() || field.Type == markerType
}

func (e *ConventionExtractor) IsValue(shape reflect.Type, field reflect.StructField) bool {
	if e.IsIgnored(shape, field) || !isRecognizable(field.Type) {
		return false
	}
	return !e.IsSubConfiguration(shape, field) && !e.IsSubConfigurationList(shape, field)
}

func (e *ConventionExtractor) IsSubConfiguration(shape reflect.Type, field reflect.StructField) bool {
	return !e.IsIgnored(shape, field) && e.IsConfiguration(derefType(field.Type))
}

func (e *ConventionExtractor) IsSubConfigurationList(shape reflect.Type, field reflect.StructField) bool {
	if e.IsIgnored(shape, field) || field.Type.Kind() != reflect.Slice {
		return false
	}
	return e.IsConfiguration(derefType(field.Type.Elem()))
}

func (e *ConventionExtractor) PropertyName(_ reflect.Type, field reflect.StructField) string {
	return field.Name
}

func (e *ConventionExtractor) Keys(_ reflect.Type, field reflect.StructField) []string {
	return []string{lowerCamel(field.Name)}
}

func (e *ConventionExtractor) Prefixes(_ reflect.Type, field reflect.StructField) []string {
	return []string{lowerCamel(field.Name)}
}

func (e *ConventionExtractor) ResetPrefix(reflect.Type, reflect.StructField) bool          { return false }
func (e *ConventionExtractor) FallbackKey(reflect.Type, reflect.StructField) string        { return "" }
func (e *ConventionExtractor) Converter(reflect.Type, reflect.StructField) string          { return "" }
func (e *ConventionExtractor) EncryptionProvider(reflect.Type, reflect.StructField) string { return "" }
func (e *ConventionExtractor) Description(reflect.Type, reflect.StructField) string        { return "" }
func (e *ConventionExtractor) Attributes(reflect.Type, reflect.StructField) Attributes     { return nil }

func (e *ConventionExtractor) Default(shape reflect.Type, field reflect.StructField) Default {
	if v, ok := defaultInstanceField(shape, field); ok && !v.IsZero() {
		if s, ok := formatDefault(v); ok {
			return Of(s)
		}
	}
	return zeroDefault(field.Type)
}

func (e *ConventionExtractor) SubDefaults(shape reflect.Type, field reflect.StructField) map[string]string {
	v, ok := defaultInstanceField(shape, field)
	if !ok {
		return nil
	}
	return scalarDefaults(v)
}

func (e *ConventionExtractor) ListDefaults(shape reflect.Type, field reflect.StructField) (int, []map[string]string) {
	v, ok := defaultInstanceField(shape, field)
	if !ok || v.Kind() != reflect.Slice || v.Len() == 0 {
		return 0, nil
	}
	out := make([]map[string]string, v.Len())
	for i := range out {
		out[i] = scalarDefaults(v.Index(i))
	}
	return v.Len(), out
}

// zeroDefault implements the primitive zero-value rule.
func zeroDefault(t reflect.Type) Default {
	switch t.Kind() {
	case reflect.Bool:
		return Of("false")
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		if t == durationType {
			return Of("0s")
		}
		return Of("0")
	}
	return Absent()
}

// defaultInstanceField returns field of a new shape instance after SetDefaults.
func defaultInstanceField(shape reflect.Type, field reflect.StructField) (reflect.Value, bool) {
	ptr := reflect.New(shape)
	if d, ok := ptr.Interface().(Defaulter); ok {
		d.SetDefaults()
	}
	v, err := ptr.Elem().FieldByIndexErr(field.Index)
	if err != nil {
		return reflect.Value{}, false
	}
	return v, true
}

// formatDefault renders scalars and scalar slices as converter-compatible strings.
func formatDefault(v reflect.Value) (string, bool) {
	if v.Type() == durationType {
		return v.Interface().(interface{ String() string }).String(), true
	}
	if s, ok := v.Interface().(interface{ MarshalText() ([]byte, error) }); ok {
		b, err := s.MarshalText()
		return string(b), err == nil
	}
	if v.Kind() == reflect.Slice && v.Type().Elem().Kind() != reflect.Uint8 {
		parts := make([]string, v.Len())
		for i := range parts {
			s, err := cast.ToStringE(v.Index(i).Interface())
			if err != nil {
				return "", false
			}
			parts[i] = s
		}
		return joinList(parts), true
	}
	s, err := cast.ToStringE(v.Interface())
	return s, err == nil
}

// scalarDefaults collects the non-zero scalar fields of a struct value, keyed by field name.
func scalarDefaults(v reflect.Value) map[string]string {
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}
	out := make(map[string]string)
	walkExported(v.Type(), func(f reflect.StructField) bool {
		fv, err := v.FieldByIndexErr(f.Index)
		if err != nil || fv.IsZero() {
			return true
		}
		if derefType(f.Type).Kind() == reflect.Struct && !isValueLike(f.Type) {
			return true
		}
		if s, ok := formatDefault(fv); ok {
			out[f.Name] = s
		}
		return true
	})
	if len(out) == 0 {
		return nil
	}
	return out
}

// walkExported visits exported non-embedded fields, descending into embedded structs.
// Index paths are relative to t. It stops and returns false when fn returns false.
func walkExported(t reflect.Type, fn func(reflect.StructField) bool) bool {
	visiting := make(map[reflect.Type]bool)
	var walk func(t reflect.Type, index []int) bool
	walk = func(t reflect.Type, index []int) bool {
		if visiting[t] {
			return true
		}
		visiting[t] = true
		defer delete(visiting, t)
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			f.Index = append(append([]int(nil), index...), i)
			if f.Anonymous {
				if et := derefType(f.Type); et.Kind() == reflect.Struct && et != markerType {
					if !walk(et, f.Index) {
						return false
					}
					continue
				}
			}
			if !f.IsExported() {
				continue
			}
			if !fn(f) {
				return false
			}
		}
		return true
	}
	return walk(t, nil)
}
