// FILE: lixenwraith/confbind/register.go
package confbind

import (
	"fmt"
	"reflect"
	"strings"
)

// buildPath is the explicit traversal state of one top-level model build.
type buildPath struct {
	shapes []reflect.Type
	steps  []string
}

func (b buildPath) push(shape reflect.Type, member string) buildPath {
	return buildPath{
		shapes: append(append([]reflect.Type(nil), b.shapes...), shape),
		steps:  append(append([]string(nil), b.steps...), shapeName(shape)+"."+member),
	}
}

// cycle returns a CycleError if shape is already being built on this path.
func (b buildPath) cycle(shape reflect.Type) error {
	for i, s := range b.shapes {
		if s == shape {
			path := append(append([]string(nil), b.steps[i:]...), shapeName(shape))
			return &CycleError{Path: path}
		}
	}
	return nil
}

func shapeName(t reflect.Type) string {
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}

// propertyParser turns one member into a property model when it claims it.
type propertyParser interface {
	parse(p *ModelProvider, path buildPath, shape reflect.Type, field reflect.StructField) (PropertyModel, bool, error)
}

// defaultParsers is the fixed parser chain: value, sub-configuration, list, ignore.
func defaultParsers() []propertyParser {
	return []propertyParser{valueParser{}, subConfigurationParser{}, subConfigurationListParser{}, ignoreParser{}}
}

type valueParser struct{}

func (valueParser) parse(p *ModelProvider, _ buildPath, shape reflect.Type, field reflect.StructField) (PropertyModel, bool, error) {
	x := p.extractor
	if !x.IsValue(shape, field) {
		return nil, false, nil
	}
	keys := dedupe(x.Keys(shape, field))
	if len(keys) == 0 {
		return nil, true, fmt.Errorf("%w: %s.%s has no configured key", ErrInvalidSchema, shapeName(shape), field.Name)
	}
	return &ValueProperty{
		propertyBase:       basePropertyOf(x, shape, field),
		typ:                field.Type,
		keys:               keys,
		fallbackKey:        x.FallbackKey(shape, field),
		encryptionProvider: x.EncryptionProvider(shape, field),
		defaultValue:       x.Default(shape, field),
		converter:          x.Converter(shape, field),
	}, true, nil
}

type subConfigurationParser struct{}

func (subConfigurationParser) parse(p *ModelProvider, path buildPath, shape reflect.Type, field reflect.StructField) (PropertyModel, bool, error) {
	x := p.extractor
	if !x.IsSubConfiguration(shape, field) {
		return nil, false, nil
	}
	nested, err := p.model(derefType(field.Type), path.push(shape, field.Name))
	if err != nil {
		return nil, true, err
	}
	return &SubConfigurationProperty{
		propertyBase: basePropertyOf(x, shape, field),
		model:        nested,
		declaredType: field.Type,
		prefixes:     x.Prefixes(shape, field),
		defaults:     x.SubDefaults(shape, field),
	}, true, nil
}

type subConfigurationListParser struct{}

func (subConfigurationListParser) parse(p *ModelProvider, path buildPath, shape reflect.Type, field reflect.StructField) (PropertyModel, bool, error) {
	x := p.extractor
	if !x.IsSubConfigurationList(shape, field) {
		return nil, false, nil
	}
	item, err := p.model(derefType(field.Type.Elem()), path.push(shape, field.Name))
	if err != nil {
		return nil, true, err
	}
	size, defaults := x.ListDefaults(shape, field)
	if size < 0 {
		size = 0
	}
	return &SubConfigurationListProperty{
		propertyBase: basePropertyOf(x, shape, field),
		model:        item,
		declaredType: field.Type,
		prefixes:     x.Prefixes(shape, field),
		size:         size,
		defaults:     defaults,
	}, true, nil
}

// ignoreParser claims members that are not properties; it produces no model.
type ignoreParser struct{}

func (ignoreParser) parse(p *ModelProvider, _ buildPath, shape reflect.Type, field reflect.StructField) (PropertyModel, bool, error) {
	return nil, p.extractor.IsIgnored(shape, field), nil
}

func basePropertyOf(x MetadataExtractor, shape reflect.Type, field reflect.StructField) propertyBase {
	return propertyBase{
		name:        x.PropertyName(shape, field),
		index:       append([]int(nil), field.Index...),
		description: x.Description(shape, field),
		attributes:  x.Attributes(shape, field),
		resetPrefix: x.ResetPrefix(shape, field),
	}
}

type member struct {
	field reflect.StructField
	depth int
}

// members enumerates the fields of shape and its embedded ancestors.
// A shallower member hides deeper ones of the same name. Members of the same name at the same depth
// are merged when one type is assignable to the other, keeping the more specific; otherwise the
// declaration is ambiguous.
func members(shape reflect.Type) ([]reflect.StructField, error) {
	type pending struct {
		t     reflect.Type
		index []int
		depth int
	}

	chosen := make(map[string]*member)
	var order []string
	queue := []pending{{t: shape}}
	seen := map[reflect.Type]bool{shape: true}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for i := 0; i < cur.t.NumField(); i++ {
			f := cur.t.Field(i)
			f.Index = append(append([]int(nil), cur.index...), i)

			if f.Anonymous && isAncestor(f) {
				et := derefType(f.Type)
				if !seen[et] {
					seen[et] = true
					queue = append(queue, pending{t: et, index: f.Index, depth: cur.depth + 1})
				}
				continue
			}

			// blank fields carry tags only; they never collide
			if f.Name == "_" {
				if cur.depth == 0 {
					key := fmt.Sprintf("_%d", i)
					chosen[key] = &member{field: f, depth: cur.depth}
					order = append(order, key)
				}
				continue
			}

			prev, ok := chosen[f.Name]
			switch {
			case !ok:
				chosen[f.Name] = &member{field: f, depth: cur.depth}
				order = append(order, f.Name)
			case prev.depth < cur.depth:
				// hidden by a more derived declaration
			case prev.field.Type == f.Type:
				// identical redeclaration, first one wins
			case f.Type.AssignableTo(prev.field.Type):
				prev.field = f
			case prev.field.Type.AssignableTo(f.Type):
				// prev is already the more specific
			default:
				return nil, fmt.Errorf("%w: %s.%s is declared by several ancestors with incompatible types %v and %v",
					ErrDuplicateProperty, shapeName(shape), f.Name, prev.field.Type, f.Type)
			}
		}
	}

	out := make([]reflect.StructField, 0, len(order))
	for _, name := range order {
		out = append(out, chosen[name].field)
	}
	return out, nil
}

// isAncestor reports embedded structs whose members are promoted into the shape.
func isAncestor(f reflect.StructField) bool {
	et := derefType(f.Type)
	if et.Kind() != reflect.Struct || et == markerType || isValueLike(et) {
		return false
	}
	// unexported embedded pointers cannot be allocated through reflection
	return f.IsExported() || f.Type.Kind() != reflect.Ptr
}

// buildModel parses every member of shape into a ConfigurationModel.
func (p *ModelProvider) buildModel(shape reflect.Type, path buildPath) (*ConfigurationModel, error) {
	fields, err := members(shape)
	if err != nil {
		return nil, err
	}

	m := &ConfigurationModel{
		shape:       shape,
		description: p.extractor.ShapeDescription(shape),
		abstract:    p.extractor.IsAbstract(shape),
		prefixes:    p.extractor.ShapePrefixes(shape),
		attributes:  p.extractor.ShapeAttributes(shape),
		byName:      make(map[string]PropertyModel),
	}

	for _, f := range fields {
		if err := p.extractor.Validate(shape, f); err != nil {
			return nil, err
		}
		prop, err := p.parseMember(path, shape, f)
		if err != nil {
			return nil, err
		}
		if prop == nil {
			continue
		}
		if _, dup := m.byName[prop.Name()]; dup {
			return nil, fmt.Errorf("%w: %s.%s", ErrDuplicateProperty, shapeName(shape), prop.Name())
		}
		m.byName[prop.Name()] = prop
		m.properties = append(m.properties, prop)
	}
	return m, nil
}

func (p *ModelProvider) parseMember(path buildPath, shape reflect.Type, f reflect.StructField) (PropertyModel, error) {
	for _, parser := range p.parsers {
		prop, claimed, err := parser.parse(p, path, shape, f)
		if err != nil {
			return nil, err
		}
		if claimed {
			return prop, nil
		}
	}
	return nil, fmt.Errorf("%w: %s.%s of type %v", ErrUnrecognizedMember, shapeName(shape), f.Name, f.Type)
}

// describePath renders a property path for messages.
func describePath(parts []string) string {
	return strings.Join(parts, ".")
}
