// FILE: lixenwraith/confbind/bind_test.go
package confbind

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bindDB struct {
	_       Configuration
	URL     string `key:"url" default:"postgres://localhost"`
	MaxConn int    `key:"max_conn" default:"10"`
}

type bindBackend struct {
	_      Configuration
	Host   string
	Weight int `default:"1"`
}

type bindApp struct {
	_        Configuration  `prefix:"app"`
	Name     string         `default:"demo"`
	Debug    bool
	Timeout  time.Duration  `fallback:"timeout" default:"5s"`
	Tags     []string
	DB       bindDB         `prefix:"db,database" defaults:"MaxConn=20"`
	Cache    *bindDB        `prefix:"cache"`
	Audit    bindDB         `prefix:"audit" cfg:"reset"`
	Backends []bindBackend  `prefix:"backend" size:"1" defaults:"Host=primary"`
	Workers  []*bindBackend `prefix:"worker"`
}

var bindAppType = reflect.TypeFor[bindApp]()

type bindAbstract struct {
	_ Configuration `cfg:"abstract"`
	X string
}

type holdsAbstract struct {
	_ Configuration
	A bindAbstract
}

type holdsAbstractList struct {
	_ Configuration
	A []bindAbstract
}

// SharedOpts is promoted into withEmbedded through a nil pointer.
type SharedOpts struct {
	Region string `default:"eu"`
}

type withEmbedded struct {
	_ Configuration
	*SharedOpts
	Zone string `default:"a"`
}

type unboundedList struct {
	_     Configuration
	Items []bindBackend
}

type shouting struct {
	_    Configuration
	Word string `converter:"upper"`
}

func newTestRegistry(t *testing.T, b *Builder) *Registry {
	t.Helper()
	if b == nil {
		b = NewBuilder()
	}
	r, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return r
}

func TestBind(t *testing.T) {
	r := newTestRegistry(t, nil)

	src := NewMapSource(map[string]string{
		"app.debug":            "true",
		"timeout":              "30s",
		"app.tags":             "x,y",
		"app.database.url":     "postgres://db",
		"app.cache.max_conn":   "5",
		"audit.url":            "audit://",
		"app.audit.url":        "ignored",
		"app.backend.1.host":   "secondary",
		"app.backend.1.weight": "4",
		"app.worker.0.weight":  "2",
	})

	cfg, err := BindNew[bindApp](r, src)
	require.NoError(t, err)

	t.Run("Values", func(t *testing.T) {
		assert.Equal(t, "demo", cfg.Name)
		assert.True(t, cfg.Debug)
		assert.Equal(t, 30*time.Second, cfg.Timeout)
		assert.Equal(t, []string{"x", "y"}, cfg.Tags)
	})

	t.Run("SubConfigurations", func(t *testing.T) {
		assert.Equal(t, "postgres://db", cfg.DB.URL)
		assert.Equal(t, 20, cfg.DB.MaxConn)

		require.NotNil(t, cfg.Cache)
		assert.Equal(t, "postgres://localhost", cfg.Cache.URL)
		assert.Equal(t, 5, cfg.Cache.MaxConn)

		assert.Equal(t, "audit://", cfg.Audit.URL)
	})

	t.Run("Lists", func(t *testing.T) {
		require.Len(t, cfg.Backends, 2)
		assert.Equal(t, "primary", cfg.Backends[0].Host)
		assert.Equal(t, 1, cfg.Backends[0].Weight)
		assert.Equal(t, "secondary", cfg.Backends[1].Host)
		assert.Equal(t, 4, cfg.Backends[1].Weight)

		require.Len(t, cfg.Workers, 1)
		require.NotNil(t, cfg.Workers[0])
		assert.Equal(t, 2, cfg.Workers[0].Weight)
		assert.Empty(t, cfg.Workers[0].Host)
	})
}

func TestBindAbsentAndNull(t *testing.T) {
	r := newTestRegistry(t, nil)

	t.Run("AbsentLeavesFieldsUntouched", func(t *testing.T) {
		cfg := bindApp{Debug: true, Tags: []string{"keep"}}
		require.NoError(t, r.Bind(NewMapSource(nil), &cfg))
		assert.True(t, cfg.Debug)
		assert.Equal(t, []string{"keep"}, cfg.Tags)
		assert.Equal(t, "demo", cfg.Name)
	})

	t.Run("NullZeroes", func(t *testing.T) {
		src := NewMapSource(nil)
		src.SetNull("app.name")
		src.SetNull("app.tags")
		cfg := bindApp{Tags: []string{"drop"}}
		require.NoError(t, r.Bind(src, &cfg))
		assert.Empty(t, cfg.Name)
		assert.Nil(t, cfg.Tags)
	})

	t.Run("PresentEmptyString", func(t *testing.T) {
		cfg, err := BindNew[bindApp](r, NewMapSource(map[string]string{"app.name": ""}))
		require.NoError(t, err)
		assert.Empty(t, cfg.Name)
	})
}

func TestBindFallbackPrefixes(t *testing.T) {
	r := newTestRegistry(t, NewBuilder().WithFallbackPrefixes("defaults"))
	src := NewMapSource(map[string]string{
		"defaults.name":    "fallback",
		"defaults.url":     "fb://shared",
		"defaults.db.url":  "never",
		"app.database.url": "primary://db",
		"defaults.host":    "fb-backend",
	})

	cfg, err := BindNew[bindApp](r, src)
	require.NoError(t, err)
	assert.Equal(t, "fallback", cfg.Name)
	// primary prefixes are tried before any fallback
	assert.Equal(t, "primary://db", cfg.DB.URL)
	// fallback prefixes are not extended by nested prefixes
	assert.Equal(t, "fb://shared", cfg.Cache.URL)
	// a reset configuration drops the fallback prefixes
	assert.Equal(t, "postgres://localhost", cfg.Audit.URL)
	// fallback keys are shared by every element and never grow a list
	require.Len(t, cfg.Backends, 1)
	assert.Equal(t, "fb-backend", cfg.Backends[0].Host)
	assert.Empty(t, cfg.Workers)
}

type nestedLeaf struct {
	_   Configuration
	Key string `key:"key,alternateKey,duplicate,duplicate" fallback:"fallbackKey"`
}

type nestedMid struct {
	_    Configuration
	Leaf nestedLeaf `prefix:"p2"`
}

type nestedRoot struct {
	_   Configuration `prefix:"fallback"`
	Mid nestedMid     `prefix:"p1"`
}

func TestBindNestedPrecedence(t *testing.T) {
	r := newTestRegistry(t, NewBuilder().WithFallbackPrefixes("fallbackKeyPrefix"))

	t.Run("CandidateKeysSpanEveryLevel", func(t *testing.T) {
		infos, err := r.Keys(reflect.TypeFor[nestedRoot]())
		require.NoError(t, err)
		require.Len(t, infos, 1)
		assert.Equal(t, "Mid.Leaf.Key", infos[0].Path)
		assert.Equal(t, []string{
			"fallback.key", "fallback.alternateKey", "fallback.duplicate",
			"fallback.p1.key", "fallback.p1.alternateKey", "fallback.p1.duplicate",
			"fallback.p1.p2.key", "fallback.p1.p2.alternateKey", "fallback.p1.p2.duplicate",
			"fallbackKeyPrefix.key", "fallbackKeyPrefix.alternateKey", "fallbackKeyPrefix.duplicate",
			"fallbackKey",
		}, infos[0].Keys)
	})

	tests := []struct {
		name   string
		values map[string]string
		want   string
	}{
		{"InnermostOnly", map[string]string{"fallback.p1.p2.key": "inner"}, "inner"},
		{"OutermostWins", map[string]string{"fallback.p1.p2.key": "inner", "fallback.key": "outer"}, "outer"},
		{"MiddleLevel", map[string]string{"fallback.p1.p2.key": "inner", "fallback.p1.duplicate": "mid"}, "mid"},
		{"FallbackPrefix", map[string]string{"fallbackKeyPrefix.alternateKey": "fb", "fallbackKey": "last"}, "fb"},
		{"FallbackKey", map[string]string{"fallbackKey": "last", "fallbackKeyPrefix.p1.p2.key": "never"}, "last"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := BindNew[nestedRoot](r, NewMapSource(tt.values))
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Mid.Leaf.Key)
		})
	}
}

func TestBindListSizingIgnoresAncestorKeys(t *testing.T) {
	r := newTestRegistry(t, nil)
	// app.host and app.weight are candidates of every backend, yet back none of them
	cfg, err := BindNew[bindApp](r, NewMapSource(map[string]string{
		"app.host":             "shared",
		"app.weight":           "3",
		"app.backend.1.weight": "5",
	}))
	require.NoError(t, err)
	require.Len(t, cfg.Backends, 2)
	assert.Equal(t, "shared", cfg.Backends[0].Host)
	assert.Equal(t, "shared", cfg.Backends[1].Host)
	assert.Equal(t, 3, cfg.Backends[0].Weight)
	assert.Equal(t, 3, cfg.Backends[1].Weight)
	assert.Empty(t, cfg.Workers)
}

func TestBindRefusals(t *testing.T) {
	r := newTestRegistry(t, nil)
	src := NewMapSource(nil)

	t.Run("AbstractRoot", func(t *testing.T) {
		err := r.Bind(src, &bindAbstract{})
		assert.ErrorIs(t, err, ErrInvalidSchema)
	})

	t.Run("AbstractSubConfiguration", func(t *testing.T) {
		err := r.Bind(src, &holdsAbstract{})
		assert.ErrorIs(t, err, ErrInvalidSchema)
	})

	t.Run("AbstractList", func(t *testing.T) {
		err := r.Bind(src, &holdsAbstractList{})
		assert.ErrorIs(t, err, ErrInvalidSchema)
	})

	t.Run("TargetNotPointer", func(t *testing.T) {
		assert.Error(t, r.Bind(src, bindApp{}))
		assert.Error(t, r.Bind(src, (*bindApp)(nil)))
	})

	t.Run("NilSourcePanics", func(t *testing.T) {
		assert.Panics(t, func() { _ = r.Bind(nil, &bindApp{}) })
	})

	t.Run("ConversionErrorNamesPath", func(t *testing.T) {
		_, err := BindNew[bindApp](r, NewMapSource(map[string]string{"app.backend.0.weight": "heavy"}))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrValueFormat)
		assert.Contains(t, err.Error(), "Backends.0.Weight")
	})
}

func TestBindEmbeddedPointer(t *testing.T) {
	r := newTestRegistry(t, nil)
	cfg, err := BindNew[withEmbedded](r, NewMapSource(map[string]string{"zone": "b"}))
	require.NoError(t, err)
	require.NotNil(t, cfg.SharedOpts)
	assert.Equal(t, "eu", cfg.Region)
	assert.Equal(t, "b", cfg.Zone)
}

func TestBindListGrowthIsBounded(t *testing.T) {
	r := newTestRegistry(t, nil)
	always := SourceFunc(func(string, Attributes) Value { return Of("1") })

	cfg, err := BindNew[unboundedList](r, always)
	require.NoError(t, err)
	assert.Len(t, cfg.Items, MaxListSize)
}

func TestBindConvention(t *testing.T) {
	r := newTestRegistry(t, NewBuilder().WithConvention())

	cfg, err := BindNew[conventionShape](r, NewMapSource(map[string]string{
		"name":             "conv",
		"limits.rate":      "2.5",
		"replicas.1.burst": "7",
	}))
	require.NoError(t, err)
	assert.Equal(t, "conv", cfg.Name)
	assert.Equal(t, 8080, cfg.Port)
	assert.False(t, cfg.Debug)
	assert.Equal(t, []string{"a", "b,c"}, cfg.Tags)
	assert.Equal(t, 10, cfg.Limits.Burst)
	assert.Equal(t, 2.5, cfg.Limits.Rate)
	require.Len(t, cfg.Replicas, 2)
	assert.Equal(t, 1, cfg.Replicas[0].Burst)
	assert.Equal(t, 7, cfg.Replicas[1].Burst)
	assert.Equal(t, 0.5, cfg.Replicas[1].Rate)
}

func TestBindCustomConverter(t *testing.T) {
	r := newTestRegistry(t, NewBuilder().WithConverter(upperConverter{}, PriorityLow))
	cfg, err := BindNew[shouting](r, NewMapSource(map[string]string{"word": "abc"}))
	require.NoError(t, err)
	assert.Equal(t, "ABC", cfg.Word)

	plain := newTestRegistry(t, nil)
	_, err = BindNew[shouting](plain, NewMapSource(map[string]string{"word": "abc"}))
	assert.ErrorIs(t, err, ErrNoApplicableConverter)
}

func TestBuilderErrors(t *testing.T) {
	_, err := NewBuilder().WithExtractor(nil).Build()
	assert.ErrorIs(t, err, ErrInvalidAttributes)

	_, err = NewBuilder().WithConverter(nil, PriorityDefault).Build()
	assert.ErrorIs(t, err, ErrInvalidAttributes)

	_, err = NewBuilder().WithProcessor(nil).Build()
	assert.ErrorIs(t, err, ErrInvalidAttributes)

	_, err = NewBuilder().WithFallbackPrefixes("bad prefix").Build()
	assert.ErrorIs(t, err, ErrInvalidAttributes)

	assert.Panics(t, func() { NewBuilder().WithConverterFactory(nil, 0).MustBuild() })
}

func TestRegistryKeys(t *testing.T) {
	r := newTestRegistry(t, nil)
	infos, err := r.Keys(bindAppType)
	require.NoError(t, err)

	byPath := make(map[string][]string)
	for _, info := range infos {
		byPath[info.Path] = info.Keys
	}
	assert.Equal(t, []string{"app.name"}, byPath["Name"])
	assert.Equal(t, []string{"app.timeout", "timeout"}, byPath["Timeout"])
	assert.Equal(t, []string{"app.url", "app.db.url", "app.database.url"}, byPath["DB.URL"])
	assert.Equal(t, []string{"audit.url"}, byPath["Audit.URL"])
	assert.Equal(t, []string{"app.host", "app.backend.0.host"}, byPath["Backends.0.Host"])
	assert.Equal(t, []string{"app.weight", "app.worker.0.weight"}, byPath["Workers.0.Weight"])
}

func TestRegistryDebug(t *testing.T) {
	r := newTestRegistry(t, nil)
	out, err := r.Debug(NewMapSource(map[string]string{"app.debug": "true"}), bindAppType)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "Configuration Debug Info:"))
	assert.Contains(t, out, "Keys: app.name")
	assert.Contains(t, out, "Value: demo")
	assert.Contains(t, out, "Value: true")
}
