package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryInsertDuplicateKeepsExisting(t *testing.T) {
	r := NewRegistry()
	first := &Session{key: "room"}
	second := &Session{key: "room"}

	require.NoError(t, r.Insert("room", first))
	err := r.Insert("room", second)
	require.ErrorIs(t, err, ErrDuplicateKey)

	got, err := r.Get("room")
	require.NoError(t, err)
	assert.Same(t, first, got)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryActive(t *testing.T) {
	r := NewRegistry()
	_, err := r.Active()
	require.ErrorIs(t, err, ErrNoActiveSession)
	assert.Empty(t, r.ActiveKey())

	require.ErrorIs(t, r.SetActive("nope"), ErrUnknownKey)

	a, b := &Session{key: "a"}, &Session{key: "b"}
	require.NoError(t, r.Insert("b", b))
	require.NoError(t, r.Insert("a", a))
	_, err = r.Active()
	require.ErrorIs(t, err, ErrNoActiveSession)

	require.NoError(t, r.SetActive("a"))
	got, err := r.Active()
	require.NoError(t, err)
	assert.Same(t, a, got)
	assert.Equal(t, []string{"a", "b"}, r.Keys())
}

func TestRegistryInsertActive(t *testing.T) {
	r := NewRegistry()
	a := &Session{key: "a"}
	require.NoError(t, r.insertActive("a", a))
	require.ErrorIs(t, r.insertActive("a", &Session{key: "a"}), ErrDuplicateKey)

	got, err := r.Active()
	require.NoError(t, err)
	assert.Same(t, a, got)

	drained := r.drain()
	assert.Len(t, drained, 1)
	assert.Zero(t, r.Len())
	assert.False(t, r.Contains("a"))
}

func TestUserMessage(t *testing.T) {
	assert.Empty(t, UserMessage(nil))
	assert.Equal(t, "Create or join a room first.", UserMessage(ErrNoActiveSession))
	assert.Equal(t, "That does not look like a valid ticket.", UserMessage(ErrMalformedTicket))

	_, err := NewRegistry().Active()
	assert.Equal(t, "Create or join a room first.", UserMessage(err))
}
