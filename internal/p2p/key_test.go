package p2p

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrCreateKeyPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "identity.key")

	first, err := LoadOrCreateKey(path)
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	second, err := LoadOrCreateKey(path)
	require.NoError(t, err)
	assert.True(t, first.Equals(second))
}

func TestLoadOrCreateKeyEphemeral(t *testing.T) {
	a, err := LoadOrCreateKey("")
	require.NoError(t, err)
	b, err := LoadOrCreateKey("")
	require.NoError(t, err)
	assert.False(t, a.Equals(b))
}

func TestLoadOrCreateKeyRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.key")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o600))

	_, err := LoadOrCreateKey(path)
	require.Error(t, err)
}
