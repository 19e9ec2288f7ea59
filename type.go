// File: lixenwraith/confbind/type.go
package confbind

import (
	"encoding"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"time"

	"github.com/spf13/cast"
)

// Built-in converter names, usable in the converter tag.
const (
	ConverterString   = "string"
	ConverterBool     = "bool"
	ConverterInt      = "int"
	ConverterUint     = "uint"
	ConverterFloat    = "float"
	ConverterDuration = "duration"
	ConverterTime     = "time"
	ConverterURL      = "url"
	ConverterBytes    = "base64"
	ConverterText     = "text"
)

// AttrTimeLayout overrides the RFC3339 layout of the time converter.
const AttrTimeLayout = "layout"

func builtinConverters() []registration[TypeConverter] {
	return []registration[TypeConverter]{
		{item: durationConverter{}, priority: PriorityHigh},
		{item: timeConverter{}, priority: PriorityHigh},
		{item: urlConverter{}, priority: PriorityHigh},
		{item: bytesConverter{}, priority: PriorityHigh},
		{item: textConverter{}, priority: PriorityDefault},
		{item: stringConverter{}, priority: PriorityDefault},
		{item: boolConverter{}, priority: PriorityDefault},
		{item: intConverter{}, priority: PriorityDefault},
		{item: uintConverter{}, priority: PriorityDefault},
		{item: floatConverter{}, priority: PriorityDefault},
	}
}

// valueOf returns v as a reflect.Value of type t.
func valueOf(t reflect.Type, v any) (reflect.Value, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return rv, fmt.Errorf("nil value for %v", t)
	}
	if rv.Type() != t {
		if !rv.Type().ConvertibleTo(t) {
			return rv, fmt.Errorf("cannot convert %T to %v", v, t)
		}
		rv = rv.Convert(t)
	}
	return rv, nil
}

type stringConverter struct{}

func (stringConverter) Name() string { return ConverterString }

func (stringConverter) IsApplicable(t reflect.Type, _ Attributes) bool {
	return t.Kind() == reflect.String
}

func (stringConverter) FromString(t reflect.Type, s string, _ Attributes) (any, error) {
	return reflect.ValueOf(s).Convert(t).Interface(), nil
}

func (stringConverter) ToString(t reflect.Type, v any, _ Attributes) (string, error) {
	rv, err := valueOf(t, v)
	if err != nil {
		return "", err
	}
	return rv.String(), nil
}

type boolConverter struct{}

func (boolConverter) Name() string { return ConverterBool }

func (boolConverter) IsApplicable(t reflect.Type, _ Attributes) bool {
	return t.Kind() == reflect.Bool
}

func (c boolConverter) FromString(t reflect.Type, s string, _ Attributes) (any, error) {
	b, err := cast.ToBoolE(s)
	if err != nil {
		return nil, conversionError(c, t, s, err)
	}
	return reflect.ValueOf(b).Convert(t).Interface(), nil
}

func (boolConverter) ToString(t reflect.Type, v any, _ Attributes) (string, error) {
	rv, err := valueOf(t, v)
	if err != nil {
		return "", err
	}
	return strconv.FormatBool(rv.Bool()), nil
}

type intConverter struct{}

func (intConverter) Name() string { return ConverterInt }

func (intConverter) IsApplicable(t reflect.Type, _ Attributes) bool {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return t != durationType
	}
	return false
}

func (c intConverter) FromString(t reflect.Type, s string, _ Attributes) (any, error) {
	n, err := cast.ToInt64E(s)
	if err != nil {
		return nil, conversionError(c, t, s, err)
	}
	rv := reflect.New(t).Elem()
	if rv.OverflowInt(n) {
		return nil, conversionError(c, t, s, errors.New("value overflows target type"))
	}
	rv.SetInt(n)
	return rv.Interface(), nil
}

func (intConverter) ToString(t reflect.Type, v any, _ Attributes) (string, error) {
	rv, err := valueOf(t, v)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(rv.Int(), 10), nil
}

type uintConverter struct{}

func (uintConverter) Name() string { return ConverterUint }

func (uintConverter) IsApplicable(t reflect.Type, _ Attributes) bool {
	switch t.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}

func (c uintConverter) FromString(t reflect.Type, s string, _ Attributes) (any, error) {
	n, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		// cast handles forms like "12.0"
		n, err = cast.ToUint64E(s)
		if err != nil {
			return nil, conversionError(c, t, s, err)
		}
	}
	rv := reflect.New(t).Elem()
	if rv.OverflowUint(n) {
		return nil, conversionError(c, t, s, errors.New("value overflows target type"))
	}
	rv.SetUint(n)
	return rv.Interface(), nil
}

func (uintConverter) ToString(t reflect.Type, v any, _ Attributes) (string, error) {
	rv, err := valueOf(t, v)
	if err != nil {
		return "", err
	}
	return strconv.FormatUint(rv.Uint(), 10), nil
}

type floatConverter struct{}

func (floatConverter) Name() string { return ConverterFloat }

func (floatConverter) IsApplicable(t reflect.Type, _ Attributes) bool {
	return t.Kind() == reflect.Float32 || t.Kind() == reflect.Float64
}

func (c floatConverter) FromString(t reflect.Type, s string, _ Attributes) (any, error) {
	f, err := cast.ToFloat64E(s)
	if err != nil {
		return nil, conversionError(c, t, s, err)
	}
	rv := reflect.New(t).Elem()
	if rv.OverflowFloat(f) {
		return nil, conversionError(c, t, s, errors.New("value overflows target type"))
	}
	rv.SetFloat(f)
	return rv.Interface(), nil
}

func (floatConverter) ToString(t reflect.Type, v any, _ Attributes) (string, error) {
	rv, err := valueOf(t, v)
	if err != nil {
		return "", err
	}
	return strconv.FormatFloat(rv.Float(), 'g', -1, t.Bits()), nil
}

type durationConverter struct{}

func (durationConverter) Name() string { return ConverterDuration }

func (durationConverter) IsApplicable(t reflect.Type, _ Attributes) bool { return t == durationType }

func (c durationConverter) FromString(t reflect.Type, s string, _ Attributes) (any, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return nil, conversionError(c, t, s, err)
	}
	return d, nil
}

func (durationConverter) ToString(_ reflect.Type, v any, _ Attributes) (string, error) {
	d, ok := v.(time.Duration)
	if !ok {
		return "", fmt.Errorf("expected time.Duration, got %T", v)
	}
	return d.String(), nil
}

type timeConverter struct{}

func (timeConverter) Name() string { return ConverterTime }

func (timeConverter) IsApplicable(t reflect.Type, _ Attributes) bool { return t == timeType }

func layout(attrs Attributes) string {
	if l := attrs[AttrTimeLayout]; l != "" {
		return l
	}
	return time.RFC3339Nano
}

func (c timeConverter) FromString(t reflect.Type, s string, attrs Attributes) (any, error) {
	tm, err := time.Parse(layout(attrs), s)
	if err != nil {
		return nil, conversionError(c, t, s, err)
	}
	return tm, nil
}

func (timeConverter) ToString(_ reflect.Type, v any, attrs Attributes) (string, error) {
	tm, ok := v.(time.Time)
	if !ok {
		return "", fmt.Errorf("expected time.Time, got %T", v)
	}
	return tm.Format(layout(attrs)), nil
}

type urlConverter struct{}

func (urlConverter) Name() string { return ConverterURL }

func (urlConverter) IsApplicable(t reflect.Type, _ Attributes) bool { return t == urlType }

func (c urlConverter) FromString(t reflect.Type, s string, _ Attributes) (any, error) {
	if len(s) > 2048 {
		return nil, conversionError(c, t, s[:32]+"...", fmt.Errorf("URL too long: %d bytes", len(s)))
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, conversionError(c, t, s, err)
	}
	return *u, nil
}

func (urlConverter) ToString(_ reflect.Type, v any, _ Attributes) (string, error) {
	u, ok := v.(url.URL)
	if !ok {
		return "", fmt.Errorf("expected url.URL, got %T", v)
	}
	return u.String(), nil
}

type bytesConverter struct{}

func (bytesConverter) Name() string { return ConverterBytes }

func (bytesConverter) IsApplicable(t reflect.Type, _ Attributes) bool {
	return t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8 && !reflect.PointerTo(t).Implements(textUnmarshalerType)
}

func (c bytesConverter) FromString(t reflect.Type, s string, _ Attributes) (any, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, conversionError(c, t, s, err)
	}
	return reflect.ValueOf(b).Convert(t).Interface(), nil
}

func (bytesConverter) ToString(t reflect.Type, v any, _ Attributes) (string, error) {
	rv, err := valueOf(t, v)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(rv.Bytes()), nil
}

// textConverter handles types implementing encoding.TextUnmarshaler, net.IP included.
type textConverter struct{}

func (textConverter) Name() string { return ConverterText }

func (textConverter) IsApplicable(t reflect.Type, _ Attributes) bool {
	return t.Kind() != reflect.Ptr && reflect.PointerTo(t).Implements(textUnmarshalerType)
}

func (c textConverter) FromString(t reflect.Type, s string, _ Attributes) (any, error) {
	ptr := reflect.New(t)
	if err := ptr.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s)); err != nil {
		return nil, conversionError(c, t, s, err)
	}
	return ptr.Elem().Interface(), nil
}

func (textConverter) ToString(t reflect.Type, v any, _ Attributes) (string, error) {
	if m, ok := v.(encoding.TextMarshaler); ok {
		b, err := m.MarshalText()
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	ptr := reflect.New(t)
	ptr.Elem().Set(reflect.ValueOf(v))
	if m, ok := ptr.Interface().(encoding.TextMarshaler); ok {
		b, err := m.MarshalText()
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return fmt.Sprint(v), nil
}
