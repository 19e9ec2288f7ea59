// FILE: lixenwraith/confbind/discovery_test.go
package confbind

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverFile(t *testing.T) {
	dir := t.TempDir()
	found := filepath.Join(dir, "svc.yaml")
	require.NoError(t, os.WriteFile(found, []byte("port: 1\n"), 0644))

	opts := DefaultDiscoveryOptions("svc")
	opts.UseXDG = false
	opts.UseCurrentDir = false
	opts.Paths = []string{filepath.Join(dir, "missing"), dir}

	t.Run("Defaults", func(t *testing.T) {
		d := DefaultDiscoveryOptions("svc")
		assert.Equal(t, "SVC_CONFIG", d.EnvVar)
		assert.Equal(t, "--config", d.CLIFlag)
		assert.Equal(t, ".toml", d.Extensions[0])
	})

	t.Run("SearchPaths", func(t *testing.T) {
		path, err := DiscoverFile(opts, nil)
		require.NoError(t, err)
		assert.Equal(t, found, path)
	})

	t.Run("EnvironmentBeatsSearch", func(t *testing.T) {
		t.Setenv("SVC_CONFIG", "/from/env.toml")
		path, err := DiscoverFile(opts, nil)
		require.NoError(t, err)
		assert.Equal(t, "/from/env.toml", path)
	})

	t.Run("FlagBeatsEnvironment", func(t *testing.T) {
		t.Setenv("SVC_CONFIG", "/from/env.toml")
		path, err := DiscoverFile(opts, []string{"run", "--config", "/from/flag.toml"})
		require.NoError(t, err)
		assert.Equal(t, "/from/flag.toml", path)

		path, err = DiscoverFile(opts, []string{"--config=/inline.toml"})
		require.NoError(t, err)
		assert.Equal(t, "/inline.toml", path)
	})

	t.Run("DanglingFlagIgnored", func(t *testing.T) {
		path, err := DiscoverFile(opts, []string{"--config"})
		require.NoError(t, err)
		assert.Equal(t, found, path)
	})

	t.Run("NotFound", func(t *testing.T) {
		o := opts
		o.Paths = []string{t.TempDir()}
		_, err := DiscoverFile(o, nil)
		assert.ErrorIs(t, err, ErrConfigNotFound)
	})

	t.Run("XDGConfigHome", func(t *testing.T) {
		home := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(home, "svc"), 0755))
		xdgFile := filepath.Join(home, "svc", "svc.json")
		require.NoError(t, os.WriteFile(xdgFile, []byte(`{"port": 1}`), 0644))
		t.Setenv("XDG_CONFIG_HOME", home)

		o := opts
		o.Paths = nil
		o.UseXDG = true
		path, err := DiscoverFile(o, nil)
		require.NoError(t, err)
		assert.Equal(t, xdgFile, path)
	})
}

func TestCLIFlagValue(t *testing.T) {
	tests := []struct {
		name string
		flag string
		args []string
		want string
		ok   bool
	}{
		{"Separate", "--config", []string{"-v", "--config", "a.toml"}, "a.toml", true},
		{"Inline", "--config", []string{"--config=b.toml"}, "b.toml", true},
		{"FirstWins", "-c", []string{"-c", "one", "-c=two"}, "one", true},
		{"Dangling", "--config", []string{"--config"}, "", false},
		{"PrefixOnly", "--config", []string{"--configs=x"}, "", false},
		{"NoFlag", "", []string{"--config", "x"}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := cliFlagValue(tt.flag, tt.args)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
