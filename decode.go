// FILE: lixenwraith/confbind/decode.go
package confbind

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/url"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/jackc/puddle/v2"
	"gopkg.in/yaml.v3"
)

// ConverterStruct is the name of the structured-object converter.
const ConverterStruct = "struct"

// DefaultCodecPoolSize bounds the pooled codecs kept per struct type.
const DefaultCodecPoolSize = 8

// structFactory binds whole structs through a YAML flow document, e.g. {host: a, port: 80}.
// Decoding goes YAML to a generic map, then mapstructure into the struct.
type structFactory struct {
	size  int32
	pools sync.Map // reflect.Type -> *puddle.Pool[*codec]
}

// codec is a reusable encode buffer plus the decode hook chain for one struct type.
type codec struct {
	shape reflect.Type
	buf   bytes.Buffer
	hook  mapstructure.DecodeHookFunc
}

func newStructFactory(size int) *structFactory {
	if size <= 0 {
		size = DefaultCodecPoolSize
	}
	return &structFactory{size: int32(size)}
}

func (f *structFactory) Name() string { return ConverterStruct }

func (f *structFactory) IsApplicable(t reflect.Type, _ Attributes) bool {
	return t.Kind() == reflect.Struct
}

func (f *structFactory) Create(t reflect.Type, _ Attributes, _ ConverterLookup) (TypeConverter, error) {
	pool, err := f.pool(t)
	if err != nil {
		return nil, err
	}
	return &structConverter{pool: pool}, nil
}

func (f *structFactory) pool(t reflect.Type) (*puddle.Pool[*codec], error) {
	if p, ok := f.pools.Load(t); ok {
		return p.(*puddle.Pool[*codec]), nil
	}
	p, err := puddle.NewPool(&puddle.Config[*codec]{
		Constructor: func(context.Context) (*codec, error) {
			return &codec{shape: t, hook: decodeHook()}, nil
		},
		Destructor: func(*codec) {},
		MaxSize:    f.size,
	})
	if err != nil {
		return nil, fmt.Errorf("codec pool creation failed for %v: %w", t, err)
	}
	actual, loaded := f.pools.LoadOrStore(t, p)
	if loaded {
		p.Close()
	}
	return actual.(*puddle.Pool[*codec]), nil
}

// Close releases every codec pool.
func (f *structFactory) Close() {
	f.pools.Range(func(k, v any) bool {
		v.(*puddle.Pool[*codec]).Close()
		f.pools.Delete(k)
		return true
	})
}

type structConverter struct {
	pool *puddle.Pool[*codec]
}

func (c *structConverter) Name() string { return ConverterStruct }

func (c *structConverter) IsApplicable(t reflect.Type, _ Attributes) bool {
	return t.Kind() == reflect.Struct
}

func (c *structConverter) FromString(t reflect.Type, s string, _ Attributes) (any, error) {
	res, err := c.pool.Acquire(context.Background())
	if err != nil {
		return nil, fmt.Errorf("codec acquire failed: %w", err)
	}
	defer res.Release()
	cd := res.Value()

	var raw any
	if err := yaml.Unmarshal([]byte(s), &raw); err != nil {
		return nil, conversionError(c, t, s, err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	if _, ok := raw.(map[string]any); !ok {
		return nil, conversionError(c, t, s, fmt.Errorf("expected a mapping, got %T", raw))
	}

	out := reflect.New(t)
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out.Interface(),
		TagName:          "yaml",
		WeaklyTypedInput: true,
		DecodeHook:       cd.hook,
		ZeroFields:       true,
	})
	if err != nil {
		return nil, fmt.Errorf("decoder creation failed: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, conversionError(c, t, s, err)
	}
	return out.Elem().Interface(), nil
}

// ToString renders v as a single-line YAML flow mapping.
func (c *structConverter) ToString(t reflect.Type, v any, _ Attributes) (string, error) {
	res, err := c.pool.Acquire(context.Background())
	if err != nil {
		return "", fmt.Errorf("codec acquire failed: %w", err)
	}
	defer res.Release()
	cd := res.Value()

	var node yaml.Node
	if err := node.Encode(v); err != nil {
		return "", fmt.Errorf("encode %v: %w", t, err)
	}
	flowStyle(&node)

	cd.buf.Reset()
	enc := yaml.NewEncoder(&cd.buf)
	if err := enc.Encode(&node); err != nil {
		return "", fmt.Errorf("encode %v: %w", t, err)
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return strings.TrimSpace(cd.buf.String()), nil
}

func flowStyle(n *yaml.Node) {
	if n.Kind == yaml.MappingNode || n.Kind == yaml.SequenceNode {
		n.Style = yaml.FlowStyle
	}
	for _, child := range n.Content {
		flowStyle(child)
	}
}

// decodeHook returns the composite decode hook for all type conversions
func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		// Network types
		stringToNetIPHookFunc(),
		stringToNetIPNetHookFunc(),
		stringToURLHookFunc(),

		// Standard hooks
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
		mapstructure.TextUnmarshallerHookFunc(),
	)
}

// stringToNetIPHookFunc handles net.IP conversion
func stringToNetIPHookFunc() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String || t != ipType {
			return data, nil
		}

		str := data.(string)
		if len(str) > 45 { // max IPv6 length
			return nil, fmt.Errorf("invalid IP length: %d", len(str))
		}
		ip := net.ParseIP(str)
		if ip == nil {
			return nil, fmt.Errorf("invalid IP address: %s", str)
		}
		return ip, nil
	}
}

// stringToNetIPNetHookFunc handles net.IPNet conversion
func stringToNetIPNetHookFunc() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		isPtr := t.Kind() == reflect.Ptr
		if derefType(t) != ipNetType {
			return data, nil
		}

		str := data.(string)
		if len(str) > 49 { // max IPv6 CIDR length
			return nil, fmt.Errorf("invalid CIDR length: %d", len(str))
		}
		_, ipnet, err := net.ParseCIDR(str)
		if err != nil {
			return nil, fmt.Errorf("invalid CIDR: %w", err)
		}
		if isPtr {
			return ipnet, nil
		}
		return *ipnet, nil
	}
}

// stringToURLHookFunc handles url.URL conversion
func stringToURLHookFunc() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		isPtr := t.Kind() == reflect.Ptr
		if derefType(t) != urlType {
			return data, nil
		}

		str := data.(string)
		if len(str) > 2048 {
			return nil, fmt.Errorf("URL too long: %d bytes", len(str))
		}
		u, err := url.Parse(str)
		if err != nil {
			return nil, fmt.Errorf("invalid URL: %w", err)
		}
		if isPtr {
			return u, nil
		}
		return *u, nil
	}
}
