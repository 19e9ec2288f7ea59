// FILE: lixenwraith/confbind/source_test.go
package confbind

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entriesOf(src IterableSource) map[string]Value {
	out := make(map[string]Value)
	for k, v := range src.Entries() {
		out[k] = v
	}
	return out
}

func TestMapSource(t *testing.T) {
	src := NewMapSource(map[string]string{"a": "1", "empty": ""})

	assert.Equal(t, Of("1"), src.Lookup("a", nil))
	assert.True(t, src.Lookup("empty", nil).IsPresent())
	assert.False(t, src.Lookup("missing", nil).IsPresent())

	src.SetNull("n")
	assert.True(t, src.Lookup("n", nil).IsNull())

	src.Set("a", "2")
	src.Delete("empty")
	assert.Equal(t, map[string]Value{"a": Of("2"), "n": Null()}, entriesOf(src))

	var keys []string
	for k := range src.Entries() {
		keys = append(keys, k)
	}
	assert.Equal(t, []string{"a", "n"}, keys)

	assert.Panics(t, func() { src.Set("", "x") })
}

func TestChainSource(t *testing.T) {
	high := NewMapSource(map[string]string{"a": "high"})
	high.SetNull("n")
	low := NewMapSource(map[string]string{"a": "low", "b": "low", "n": "low"})
	chain := Chain(high, SourceFunc(func(string, Attributes) Value { return Absent() }), low)

	assert.Equal(t, "high", chain.Lookup("a", nil).String())
	assert.Equal(t, "low", chain.Lookup("b", nil).String())
	// an explicit null shadows lower sources
	assert.True(t, chain.Lookup("n", nil).IsNull())
	assert.False(t, chain.Lookup("c", nil).IsPresent())

	assert.Equal(t, map[string]Value{"a": Of("high"), "b": Of("low"), "n": Null()}, entriesOf(chain))
	assert.Panics(t, func() { Chain(high, nil) })
}

func TestMultiSource(t *testing.T) {
	m := NewMultiSource(NewMapSource(map[string]string{"k": "default"})).
		Add("secrets", NewMapSource(map[string]string{"k": "secret"}))

	assert.Equal(t, "default", m.Lookup("k", nil).String())
	assert.Equal(t, "secret", m.Lookup("k", Attributes{AttrSource: "secrets"}).String())
	assert.False(t, m.Lookup("k", Attributes{AttrSource: "unknown"}).IsPresent())

	bare := NewMultiSource(nil)
	assert.False(t, bare.Lookup("k", nil).IsPresent())
}

func TestEnvSource(t *testing.T) {
	env := map[string]string{
		"APP_SERVER_PORT": "9090",
		"APP_LOG_LEVEL":   `"debug"`,
		"APP_EMPTY":       "",
		"APP_HUGE":        strings.Repeat("x", MaxValueSize+1),
	}
	lookup := func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}

	t.Run("DefaultTransform", func(t *testing.T) {
		src := NewEnvSource("APP_", withLookupEnv(lookup))
		assert.Equal(t, "APP_SERVER_PORT", src.Name("server.port"))
		assert.Equal(t, "APP_LOG_LEVEL", src.Name("log-level"))

		assert.Equal(t, "9090", src.Lookup("server.port", nil).String())
		assert.Equal(t, "debug", src.Lookup("log.level", nil).String())
		assert.True(t, src.Lookup("empty", nil).IsPresent())
		assert.False(t, src.Lookup("huge", nil).IsPresent())
		assert.False(t, src.Lookup("missing", nil).IsPresent())
	})

	t.Run("Whitelist", func(t *testing.T) {
		src := NewEnvSource("APP_", withLookupEnv(lookup), WithEnvWhitelist("server.port"))
		assert.True(t, src.Lookup("server.port", nil).IsPresent())
		assert.False(t, src.Lookup("log.level", nil).IsPresent())
	})

	t.Run("CustomTransform", func(t *testing.T) {
		src := NewEnvSource("", withLookupEnv(lookup), WithEnvTransform(func(key string) string {
			return "APP_" + strings.ToUpper(strings.ReplaceAll(key, "/", "_"))
		}))
		assert.Equal(t, "9090", src.Lookup("server/port", nil).String())
	})

	t.Run("ProcessEnvironment", func(t *testing.T) {
		t.Setenv("CONFBIND_TEST_VALUE", "from-env")
		src := NewEnvSource("CONFBIND_TEST_")
		assert.Equal(t, "from-env", src.Lookup("value", nil).String())
	})
}

func TestArgsSource(t *testing.T) {
	t.Run("Forms", func(t *testing.T) {
		src, err := NewArgsSource([]string{
			"serve", "--server.port", "8080", "--debug", "--log.level=info", "--", "--tls.enabled",
		})
		require.NoError(t, err)

		assert.Equal(t, "8080", src.Lookup("server.port", nil).String())
		assert.Equal(t, "true", src.Lookup("debug", nil).String())
		assert.Equal(t, "info", src.Lookup("log.level", nil).String())
		assert.Equal(t, "true", src.Lookup("tls.enabled", nil).String())
		assert.False(t, src.Lookup("serve", nil).IsPresent())
	})

	t.Run("InvalidKey", func(t *testing.T) {
		_, err := NewArgsSource([]string{"--bad key=1"})
		assert.ErrorIs(t, err, ErrCLIParse)
	})

	t.Run("ValueTooLarge", func(t *testing.T) {
		_, err := NewArgsSource([]string{"--k=" + strings.Repeat("x", MaxValueSize+1)})
		assert.ErrorIs(t, err, ErrCLIParse)
		assert.ErrorIs(t, err, ErrValueSize)
	})
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestFileSource(t *testing.T) {
	want := map[string]string{
		"server.host":       "localhost",
		"server.port":       "8080",
		"server.debug":      "true",
		"server.ratio":      "0.5",
		"tags":              "a,b",
		"backends.0.host":   "one",
		"backends.1.host":   "two",
		"backends.1.weight": "3",
	}

	formats := map[string]string{
		"config.toml": `
tags = ["a", "b"]

[server]
host = "localhost"
port = 8080
debug = true
ratio = 0.5

[[backends]]
host = "one"

[[backends]]
host = "two"
weight = 3
`,
		"config.json": `{
  "tags": ["a", "b"],
  "server": {"host": "localhost", "port": 8080, "debug": true, "ratio": 0.5},
  "backends": [{"host": "one"}, {"host": "two", "weight": 3}]
}`,
		"config.yaml": `
tags: [a, b]
server:
  host: localhost
  port: 8080
  debug: true
  ratio: 0.5
backends:
  - host: one
  - host: two
    weight: 3
`,
	}

	for name, content := range formats {
		t.Run(name, func(t *testing.T) {
			src, err := NewFileSource(writeFile(t, name, content))
			require.NoError(t, err)
			for k, v := range want {
				assert.Equal(t, v, src.Lookup(k, nil).String(), k)
			}
			assert.Len(t, entriesOf(src), len(want))
		})
	}

	t.Run("NullValues", func(t *testing.T) {
		src, err := NewFileSource(writeFile(t, "null.json", `{"a": null, "b": "x"}`))
		require.NoError(t, err)
		assert.True(t, src.Lookup("a", nil).IsNull())
		assert.Equal(t, "x", src.Lookup("b", nil).String())
	})

	t.Run("ContentDetection", func(t *testing.T) {
		src, err := NewFileSource(writeFile(t, "app.conf", "[db]\nurl = \"postgres://x\"\n"))
		require.NoError(t, err)
		assert.Equal(t, "postgres://x", src.Lookup("db.url", nil).String())

		src, err = NewFileSource(writeFile(t, "app.config", `{"db": {"url": "json"}}`))
		require.NoError(t, err)
		assert.Equal(t, "json", src.Lookup("db.url", nil).String())
	})

	t.Run("ForcedFormat", func(t *testing.T) {
		src, err := NewFileSource(writeFile(t, "settings.txt", "db:\n  url: yaml\n"), WithFormat(FormatYAML))
		require.NoError(t, err)
		assert.Equal(t, "yaml", src.Lookup("db.url", nil).String())

		_, err = NewFileSource(writeFile(t, "x.toml", ""), WithFormat("ini"))
		assert.Error(t, err)
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := NewFileSource(filepath.Join(t.TempDir(), "absent.toml"))
		assert.ErrorIs(t, err, ErrConfigNotFound)
	})

	t.Run("TooLarge", func(t *testing.T) {
		_, err := NewFileSource(writeFile(t, "big.toml", `a = "`+strings.Repeat("x", 64)+`"`), WithMaxFileSize(16))
		assert.Error(t, err)
	})

	t.Run("InvalidSyntax", func(t *testing.T) {
		_, err := NewFileSource(writeFile(t, "broken.toml", "[server\nport = "))
		assert.Error(t, err)
	})

	t.Run("ReloadKeepsPreviousOnError", func(t *testing.T) {
		path := writeFile(t, "reload.toml", "a = 1\n")
		src, err := NewFileSource(path)
		require.NoError(t, err)

		require.NoError(t, os.WriteFile(path, []byte("a = 2\n"), 0644))
		require.NoError(t, src.Reload())
		assert.Equal(t, "2", src.Lookup("a", nil).String())

		require.NoError(t, os.WriteFile(path, []byte("a = \n"), 0644))
		assert.Error(t, src.Reload())
		assert.Equal(t, "2", src.Lookup("a", nil).String())
	})
}
