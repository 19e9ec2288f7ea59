// FILE: lixenwraith/confbind/save.go
package confbind

import (
	"fmt"
	"reflect"

	"go.uber.org/zap"
)

// Encrypter is implemented by processors that can produce the ciphertexts they decrypt.
type Encrypter interface {
	Name() string
	Encrypt(plaintext string) (string, error)
}

// Save writes target to path as TOML, atomically. Every value property is written under its most
// specific key, so binding the file again yields the same values. Nil pointers, slices and maps are
// skipped. Encrypted properties are re-encrypted by the registered processor of the same name.
func (r *Registry) Save(path string, target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("save target must be a non-nil pointer to a struct, got %T", target)
	}
	m, err := r.materializable(rv.Type().Elem())
	if err != nil {
		return err
	}

	nested := make(map[string]any)
	if err := r.collect(m, rv.Elem(), r.rootFrame(m), nested); err != nil {
		return err
	}
	if err := writeTOML(path, nested); err != nil {
		return err
	}
	r.logger.Debug("configuration saved", zap.String("path", path), zap.Stringer("shape", m.shape))
	return nil
}

func (r *Registry) collect(m *ConfigurationModel, sv reflect.Value, f frame, nested map[string]any) error {
	for _, prop := range m.properties {
		field, err := sv.FieldByIndexErr(prop.Index())
		if err != nil {
			// nil embedded pointer
			continue
		}

		switch p := prop.(type) {
		case *ValueProperty:
			if isNilValue(field) {
				continue
			}
			meta := f.meta(p)
			value, err := r.savedValue(p, meta.attributes(), field)
			if err != nil {
				return fmt.Errorf("save %s: %w", p.name, err)
			}
			setNestedValue(nested, meta.storageKey(), value)

		case *SubConfigurationProperty:
			if field.Kind() == reflect.Ptr {
				if field.IsNil() {
					continue
				}
				field = field.Elem()
			}
			if err := r.collect(p.model, field, f.sub(p), nested); err != nil {
				return err
			}

		case *SubConfigurationListProperty:
			for i := range field.Len() {
				elem := field.Index(i)
				if elem.Kind() == reflect.Ptr {
					if elem.IsNil() {
						continue
					}
					elem = elem.Elem()
				}
				if err := r.collect(p.model, elem, f.element(p, i), nested); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// savedValue keeps TOML-native scalars typed and renders everything else through its converter.
func (r *Registry) savedValue(p *ValueProperty, attrs Attributes, field reflect.Value) (any, error) {
	if p.converter == "" && p.encryptionProvider == "" && p.typ != durationType {
		switch p.typ.Kind() {
		case reflect.Bool:
			return field.Bool(), nil
		case reflect.String:
			return field.String(), nil
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return field.Int(), nil
		case reflect.Float32, reflect.Float64:
			return field.Float(), nil
		}
	}

	conv, err := r.converters.Select(p.typ, p.converter, attrs)
	if err != nil {
		return nil, err
	}
	s, err := conv.ToString(p.typ, field.Interface(), attrs)
	if err != nil {
		return nil, err
	}
	if p.encryptionProvider == "" {
		return s, nil
	}
	for _, proc := range r.values.processors {
		if enc, ok := proc.(Encrypter); ok && enc.Name() == p.encryptionProvider {
			return enc.Encrypt(s)
		}
	}
	return nil, fmt.Errorf("no encrypter named %q", p.encryptionProvider)
}

func isNilValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Ptr, reflect.Slice, reflect.Map, reflect.Interface:
		return v.IsNil()
	}
	return false
}
