// FILE: lixenwraith/confbind/convenience_test.go
package confbind

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type quickShape struct {
	_    Configuration `prefix:"svc"`
	Host string        `default:"localhost"`
	Port int           `default:"80"`
	Mode string        `default:"dev"`
}

func TestStandardSource(t *testing.T) {
	path := writeFile(t, "svc.toml", "[svc]\nhost = \"file\"\nport = 1\nmode = \"file\"\n")
	t.Setenv("QS_SVC_PORT", "2")
	t.Setenv("QS_SVC_MODE", "env")

	src, err := StandardSource("QS_", path, []string{"serve", "--svc.mode", "cli"})
	require.NoError(t, err)

	var cfg quickShape
	require.NoError(t, Quick(src, &cfg))
	assert.Equal(t, "file", cfg.Host)
	assert.Equal(t, 2, cfg.Port)
	assert.Equal(t, "cli", cfg.Mode)

	t.Run("MissingFile", func(t *testing.T) {
		src, err := StandardSource("QS_", filepath.Join(t.TempDir(), "none.toml"), nil)
		assert.ErrorIs(t, err, ErrConfigNotFound)
		require.NotNil(t, src)

		var cfg quickShape
		require.NoError(t, Quick(src, &cfg))
		assert.Equal(t, "localhost", cfg.Host)
		assert.Equal(t, 2, cfg.Port)
	})

	t.Run("BadArguments", func(t *testing.T) {
		_, err := StandardSource("QS_", "", []string{"--bad..key", "x"})
		assert.ErrorIs(t, err, ErrCLIParse)
	})
}

func TestMustQuick(t *testing.T) {
	var cfg quickShape
	assert.NotPanics(t, func() { MustQuick(NewMapSource(nil), &cfg) })
	assert.Equal(t, 80, cfg.Port)

	assert.Panics(t, func() {
		MustQuick(NewMapSource(map[string]string{"svc.port": "eighty"}), &cfg)
	})
}

func TestQuickSharesModels(t *testing.T) {
	var cfg quickShape
	require.NoError(t, Quick(NewMapSource(map[string]string{"svc.port": "81"}), &cfg))
	assert.Equal(t, 81, cfg.Port)

	r, err := defaultRegistry()
	require.NoError(t, err)
	assert.True(t, r.Models().cache.Contains(reflect.TypeFor[quickShape]()))

	again, err := defaultRegistry()
	require.NoError(t, err)
	assert.Same(t, r, again)
}

func TestQuickLoad(t *testing.T) {
	path := writeFile(t, "svc.toml", "[svc]\nhost = \"file\"\nport = 1\n")
	t.Setenv("QL_SVC_PORT", "3")

	var cfg quickShape
	require.NoError(t, QuickLoad(&cfg, "QL_", path))
	assert.Equal(t, "file", cfg.Host)
	assert.Equal(t, 3, cfg.Port)
	assert.Equal(t, "dev", cfg.Mode)

	t.Run("MissingFileStillBinds", func(t *testing.T) {
		var cfg quickShape
		err := QuickLoad(&cfg, "QL_", filepath.Join(t.TempDir(), "absent.toml"))
		assert.ErrorIs(t, err, ErrConfigNotFound)
		assert.Equal(t, "localhost", cfg.Host)
		assert.Equal(t, 3, cfg.Port)
	})
}
