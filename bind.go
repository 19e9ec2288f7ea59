// FILE: lixenwraith/confbind/bind.go
package confbind

import (
	"fmt"
	"reflect"
	"slices"
)

// MaxListSize bounds how far a list grows while its elements are backed by the source.
const MaxListSize = 4096

// Bind resolves every property of the shape target points to and writes the values into target.
// Absent values leave fields untouched; explicit nulls zero them. Nested configurations are allocated
// and lists are sized to their default size, then grown while the source backs the next element.
// The source is not consulted after Bind returns.
func (r *Registry) Bind(src Source, target any) error {
	if src == nil {
		panic("confbind: nil source")
	}
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("bind target must be a non-nil pointer to a struct, got %T", target)
	}
	m, err := r.materializable(rv.Type().Elem())
	if err != nil {
		return err
	}
	return r.bindModel(src, m, rv.Elem(), r.rootFrame(m), nil)
}

// BindNew allocates a T and binds it.
func BindNew[T any](r *Registry, src Source) (*T, error) {
	target := new(T)
	if err := r.Bind(src, target); err != nil {
		return nil, err
	}
	return target, nil
}

func (r *Registry) materializable(shape reflect.Type) (*ConfigurationModel, error) {
	m, err := r.models.ConfigurationModel(shape)
	if err != nil {
		return nil, err
	}
	if m.abstract {
		return nil, fmt.Errorf("%w: %v is abstract", ErrInvalidSchema, m.shape)
	}
	return m, nil
}

func (r *Registry) bindModel(src Source, m *ConfigurationModel, sv reflect.Value, f frame, path []string) error {
	for _, prop := range m.properties {
		here := append(slices.Clone(path), prop.Name())
		field := fieldByIndexAlloc(sv, prop.Index())

		switch p := prop.(type) {
		case *ValueProperty:
			res, err := r.resolve(src, p, f)
			if err != nil {
				return fmt.Errorf("bind %s: %w", describePath(here), err)
			}
			if !res.IsPresent() {
				continue
			}
			if err := assign(field, res.Value); err != nil {
				return fmt.Errorf("bind %s: %w", describePath(here), err)
			}

		case *SubConfigurationProperty:
			if err := r.bindSub(src, p, field, f.sub(p), here); err != nil {
				return err
			}

		case *SubConfigurationListProperty:
			if err := r.bindList(src, p, field, f, here); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Registry) bindSub(src Source, p *SubConfigurationProperty, field reflect.Value, f frame, path []string) error {
	if p.model.abstract {
		return fmt.Errorf("%w: %s has abstract type %v", ErrInvalidSchema, describePath(path), p.model.shape)
	}
	if field.Kind() == reflect.Ptr {
		if field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}
		field = field.Elem()
	}
	return r.bindModel(src, p.model, field, f, path)
}

func (r *Registry) bindList(src Source, p *SubConfigurationListProperty, field reflect.Value, f frame, path []string) error {
	if p.model.abstract {
		return fmt.Errorf("%w: %s has abstract element type %v", ErrInvalidSchema, describePath(path), p.model.shape)
	}
	n := r.listLength(src, p, f)
	if n == 0 {
		return nil
	}

	list := reflect.MakeSlice(field.Type(), n, n)
	reflect.Copy(list, field)
	for i := range n {
		elem := list.Index(i)
		if elem.Kind() == reflect.Ptr {
			if elem.IsNil() {
				elem.Set(reflect.New(elem.Type().Elem()))
			}
			elem = elem.Elem()
		}
		here := append(slices.Clone(path), fmt.Sprint(i))
		if err := r.bindModel(src, p.model, elem, f.element(p, i), here); err != nil {
			return err
		}
	}
	field.Set(list)
	return nil
}

// listLength is the default size, extended while the next element is backed by the source.
func (r *Registry) listLength(src Source, p *SubConfigurationListProperty, f frame) int {
	n := p.size
	for n < MaxListSize {
		ef := f.element(p, n)
		if !r.backed(src, p.model, ef, ef.prefixes.Depth()-1) {
			break
		}
		n++
	}
	return n
}

// backed reports whether src holds any key of the instance under the prefix levels from depth
// inward, the levels that carry the element index. Keys reachable through ancestor prefixes,
// fallbacks or resets are shared by every element and do not count.
func (r *Registry) backed(src Source, m *ConfigurationModel, f frame, depth int) bool {
	for _, prop := range m.properties {
		switch p := prop.(type) {
		case *ValueProperty:
			if p.resetPrefix {
				continue
			}
			attrs := f.meta(p).attributes()
			for _, prefix := range f.prefixes.From(depth) {
				for _, k := range p.keys {
					if src.Lookup(joinKey(prefix, k), attrs).IsPresent() {
						return true
					}
				}
			}
		case *SubConfigurationProperty:
			if !p.resetPrefix && r.backed(src, p.model, f.sub(p), depth) {
				return true
			}
		case *SubConfigurationListProperty:
			if !p.resetPrefix && r.backed(src, p.model, f.element(p, 0), depth) {
				return true
			}
		}
	}
	return false
}

// fieldByIndexAlloc is reflect.Value.FieldByIndex allocating nil embedded pointers on the way.
func fieldByIndexAlloc(v reflect.Value, index []int) reflect.Value {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Ptr {
			if v.IsNil() {
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v
}

// assign stores a converted value into field. A nil value zeroes the field.
func assign(field reflect.Value, v any) error {
	if v == nil {
		field.Set(reflect.Zero(field.Type()))
		return nil
	}
	rv := reflect.ValueOf(v)
	switch {
	case rv.Type().AssignableTo(field.Type()):
		field.Set(rv)
	case rv.Type().ConvertibleTo(field.Type()):
		field.Set(rv.Convert(field.Type()))
	default:
		return fmt.Errorf("cannot assign %v to field of type %v", rv.Type(), field.Type())
	}
	return nil
}
