// FILE: lixenwraith/confbind/instance.go
package confbind

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Instance is a dynamic view of a shape over a live source. Every read re-runs resolution,
// so changes in the source are visible on the next call. It holds no cached values.
type Instance struct {
	reg   *Registry
	src   Source
	model *ConfigurationModel
	root  frame
}

// Dynamic returns a dynamic instance of shape backed by src.
func (r *Registry) Dynamic(src Source, shape reflect.Type) (*Instance, error) {
	if src == nil {
		panic("confbind: nil source")
	}
	m, err := r.materializable(mustShape(shape))
	if err != nil {
		return nil, err
	}
	return &Instance{reg: r, src: src, model: m, root: r.rootFrame(m)}, nil
}

// DynamicOf is the generic form of Registry.Dynamic.
func DynamicOf[T any](r *Registry, src Source) (*Instance, error) {
	return r.Dynamic(src, reflect.TypeFor[T]())
}

// Model returns the model the instance reads through.
func (i *Instance) Model() *ConfigurationModel { return i.model }

// Get resolves the property at path, e.g. "server.port" or "backends.1.host".
// Segments are property names, matched case-insensitively; list elements are addressed by index.
// A value property yields its converted value, nil when absent. A nested configuration or list
// yields a freshly bound struct or slice.
func (i *Instance) Get(path string) (any, error) {
	if path == "" {
		panic("confbind: empty property path")
	}
	segments := strings.Split(path, ".")

	m, f := i.model, i.root
	for n := 0; n < len(segments); n++ {
		prop, ok := findProperty(m, segments[n])
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProperty, path)
		}
		last := n == len(segments)-1

		switch p := prop.(type) {
		case *ValueProperty:
			if !last {
				return nil, fmt.Errorf("%w: %s descends into value %s", ErrUnknownProperty, path, p.name)
			}
			res, err := i.reg.resolve(i.src, p, f)
			if err != nil {
				return nil, err
			}
			return res.Value, nil

		case *SubConfigurationProperty:
			f = f.sub(p)
			if last {
				return i.materialize(p.model, p.model.shape, f)
			}
			m = p.model

		case *SubConfigurationListProperty:
			if last {
				return i.materializeList(p, f)
			}
			n++
			idx, err := strconv.Atoi(segments[n])
			if err != nil || idx < 0 {
				return nil, fmt.Errorf("%w: %s: %q is not a list index", ErrUnknownProperty, path, segments[n])
			}
			if idx >= i.reg.listLength(i.src, p, f) {
				return nil, fmt.Errorf("%w: %s: index %d out of range", ErrUnknownProperty, path, idx)
			}
			ef := f.element(p, idx)
			if n == len(segments)-1 {
				return i.materialize(p.model, p.model.shape, ef)
			}
			m, f = p.model, ef
		}
	}
	// unreachable, every iteration returns or descends
	return nil, fmt.Errorf("%w: %s", ErrUnknownProperty, path)
}

// Snapshot binds a new instance of the shape from the current source contents.
func (i *Instance) Snapshot() (any, error) {
	return i.materialize(i.model, i.model.shape, i.root)
}

func (i *Instance) materialize(m *ConfigurationModel, shape reflect.Type, f frame) (any, error) {
	if m.abstract {
		return nil, fmt.Errorf("%w: %v is abstract", ErrInvalidSchema, shape)
	}
	ptr := reflect.New(shape)
	if err := i.reg.bindModel(i.src, m, ptr.Elem(), f, nil); err != nil {
		return nil, err
	}
	return ptr.Interface(), nil
}

func (i *Instance) materializeList(p *SubConfigurationListProperty, f frame) (any, error) {
	holder := reflect.New(p.declaredType).Elem()
	if err := i.reg.bindList(i.src, p, holder, f, []string{p.name}); err != nil {
		return nil, err
	}
	return holder.Interface(), nil
}

func findProperty(m *ConfigurationModel, name string) (PropertyModel, bool) {
	if p, ok := m.byName[name]; ok {
		return p, true
	}
	for _, p := range m.properties {
		if strings.EqualFold(p.Name(), name) {
			return p, true
		}
	}
	return nil, false
}

// Get is a typed accessor over Instance.Get. An absent value returns the zero T and false.
func Get[T any](i *Instance, path string) (T, bool, error) {
	var zero T
	v, err := i.Get(path)
	if err != nil || v == nil {
		return zero, false, err
	}
	switch t := v.(type) {
	case T:
		return t, true, nil
	case *T:
		return *t, true, nil
	}
	rv := reflect.ValueOf(v)
	if target := reflect.TypeFor[T](); rv.Type().ConvertibleTo(target) {
		return rv.Convert(target).Interface().(T), true, nil
	}
	return zero, false, fmt.Errorf("property %s is %T, not %v", path, v, reflect.TypeFor[T]())
}
