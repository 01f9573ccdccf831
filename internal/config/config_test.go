package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "yap", "config.yaml")
	store, err := Load(path)
	require.NoError(t, err)

	base := Config{
		Name:        "alice",
		Listen:      []string{"/ip4/0.0.0.0/tcp/4001", " /ip4/0.0.0.0/tcp/4001 "},
		LogLevel:    "debug",
		JoinTimeout: Duration{45 * time.Second},
	}
	require.NoError(t, store.SaveDefault(base))
	require.NoError(t, store.Save("work", Config{Name: "alice@work", HTTPAddr: ":9000"}))
	require.Error(t, store.Save("default", Config{}))
	require.Error(t, store.Save("  ", Config{}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "join_timeout: 45s")

	reloaded, err := Load(path)
	require.NoError(t, err)
	def, ok := reloaded.Default()
	require.True(t, ok)
	assert.Equal(t, "alice", def.Name)
	assert.Equal(t, []string{"/ip4/0.0.0.0/tcp/4001"}, def.Listen)
	assert.Equal(t, 45*time.Second, def.JoinTimeout.Duration)

	work, ok := reloaded.Load("work")
	require.True(t, ok)
	assert.Equal(t, ":9000", work.HTTPAddr)
	_, ok = reloaded.Load("missing")
	assert.False(t, ok)
}

func TestLoadMissingAndEmptyPath(t *testing.T) {
	store, err := Load("")
	require.NoError(t, err)
	assert.Nil(t, store)

	store, err = Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	_, ok := store.Default()
	assert.False(t, ok)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default: [unclosed"), 0o600))
	_, err := Load(path)
	require.Error(t, err)
}

func TestResolveProfile(t *testing.T) {
	store, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	require.NoError(t, store.SaveDefault(Config{Name: "alice", LogLevel: "warn"}))
	require.NoError(t, store.Save("work", Config{Name: "alice@work"}))

	cfg, err := ResolveProfile(store, "work")
	require.NoError(t, err)
	assert.Equal(t, "alice@work", cfg.Name)
	assert.Equal(t, "warn", cfg.LogLevel)

	cfg, err = ResolveProfile(store, "DEFAULT")
	require.NoError(t, err)
	assert.Equal(t, "alice", cfg.Name)

	_, err = ResolveProfile(store, "nope")
	require.Error(t, err)
	_, err = ResolveProfile(nil, "nope")
	require.Error(t, err)
}

func TestMergeAndNormalize(t *testing.T) {
	merged := Merge(
		Config{Name: "alice", Listen: []string{"/ip4/0.0.0.0/tcp/1"}, LogLevel: "info"},
		Config{Listen: []string{"/ip4/0.0.0.0/tcp/2"}, LogFile: "/tmp/yap.log"},
	)
	assert.Equal(t, "alice", merged.Name)
	assert.Equal(t, []string{"/ip4/0.0.0.0/tcp/2"}, merged.Listen)
	assert.Equal(t, "/tmp/yap.log", merged.LogFile)

	t.Setenv("USER", "bob")
	cfg := Normalize(Config{})
	assert.Equal(t, "bob", cfg.Name)
	assert.Equal(t, DefaultListen, cfg.Listen)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, DefaultHTTPAddr, cfg.HTTPAddr)
	assert.Equal(t, DefaultJoinTimeout, cfg.JoinTimeout.Duration)
	assert.NotEmpty(t, Summary(cfg))
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	dotenv := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(dotenv, []byte("YAP_HTTP_ADDR=:7000\nYAP_NAME=from-file\n"), 0o600))

	t.Setenv("YAP_NAME", "carol")
	t.Setenv("YAP_LISTEN", "/ip4/127.0.0.1/tcp/1,/ip4/127.0.0.1/tcp/2")
	t.Setenv("YAP_JOIN_TIMEOUT", "5s")
	t.Setenv("YAP_HTTP_ADDR", "")
	require.NoError(t, os.Unsetenv("YAP_HTTP_ADDR"))

	env, err := LoadEnv(dotenv, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "carol", env.Name)
	assert.Equal(t, ":7000", env.HTTPAddr)
	assert.Equal(t, []string{"/ip4/127.0.0.1/tcp/1", "/ip4/127.0.0.1/tcp/2"}, env.Listen)
	assert.Equal(t, 5*time.Second, env.JoinTimeout.Duration)

	cfg := Merge(Config{Name: "alice"}, env.Config())
	assert.Equal(t, "carol", cfg.Name)
}

func TestLoadEnvBadDuration(t *testing.T) {
	t.Setenv("YAP_JOIN_TIMEOUT", "soon")
	_, err := LoadEnv()
	require.Error(t, err)
}
