// FILE: lixenwraith/confbind/save_test.go
package confbind

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type savedSecret struct {
	_     Configuration `prefix:"svc"`
	Token string        `encrypted:"vault"`
	Plain string        `key:"plain,unencrypted"`
}

func TestSaveRoundTrip(t *testing.T) {
	r := newTestRegistry(t, nil)
	src := NewMapSource(map[string]string{
		"app.debug":            "true",
		"timeout":              "30s",
		"app.tags":             "x,y",
		"app.database.url":     "postgres://db",
		"audit.url":            "audit://",
		"app.backend.1.host":   "secondary",
		"app.backend.1.weight": "4",
		"app.worker.0.weight":  "2",
	})
	cfg, err := BindNew[bindApp](r, src)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "nested", "app.toml")
	require.NoError(t, r.Save(path, cfg))

	file, err := NewFileSource(path)
	require.NoError(t, err)

	t.Run("MostSpecificKeys", func(t *testing.T) {
		assert.Equal(t, "postgres://db", file.Lookup("app.db.url", nil).String())
		assert.False(t, file.Lookup("app.database.url", nil).IsPresent())
		assert.Equal(t, "audit://", file.Lookup("audit.url", nil).String())
		assert.Equal(t, "30s", file.Lookup("app.timeout", nil).String())
		assert.Equal(t, "x,y", file.Lookup("app.tags", nil).String())
		assert.Equal(t, "secondary", file.Lookup("app.backend.1.host", nil).String())
	})

	t.Run("RebindsEqual", func(t *testing.T) {
		again, err := BindNew[bindApp](r, file)
		require.NoError(t, err)
		assert.Equal(t, cfg, again)
	})

	t.Run("NilMembersSkipped", func(t *testing.T) {
		sparse := &bindApp{Name: "sparse"}
		sparsePath := filepath.Join(t.TempDir(), "sparse.toml")
		require.NoError(t, r.Save(sparsePath, sparse))

		file, err := NewFileSource(sparsePath)
		require.NoError(t, err)
		assert.False(t, file.Lookup("app.cache.url", nil).IsPresent())
		assert.False(t, file.Lookup("app.tags", nil).IsPresent())
		assert.Equal(t, "sparse", file.Lookup("app.name", nil).String())
	})

	t.Run("InvalidTargets", func(t *testing.T) {
		assert.Error(t, r.Save(path, bindApp{}))
		assert.Error(t, r.Save(path, (*bindApp)(nil)))
		assert.ErrorIs(t, r.Save(path, &bindAbstract{}), ErrInvalidSchema)
	})
}

func TestSaveEncrypted(t *testing.T) {
	dec, err := NewPassphraseDecryptor("vault", "hunter2", []byte("test-salt"))
	require.NoError(t, err)
	r := newTestRegistry(t, NewBuilder().WithProcessor(dec))

	path := filepath.Join(t.TempDir(), "secret.toml")
	require.NoError(t, r.Save(path, &savedSecret{Token: "s3cr3t", Plain: "visible"}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "s3cr3t")
	assert.Contains(t, string(raw), "visible")

	file, err := NewFileSource(path)
	require.NoError(t, err)
	got, err := BindNew[savedSecret](r, file)
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", got.Token)
	assert.Equal(t, "visible", got.Plain)

	t.Run("NoEncrypter", func(t *testing.T) {
		plain := newTestRegistry(t, nil)
		err := plain.Save(filepath.Join(t.TempDir(), "x.toml"), &savedSecret{Token: "s"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `no encrypter named "vault"`)
	})
}
