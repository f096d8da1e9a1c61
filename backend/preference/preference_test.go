package preference

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_MissingFileStartsEmpty(t *testing.T) {
	fs := afero.NewMemMapFs()

	store, err := NewStore(fs, "/data/preferences.yaml")
	require.NoError(t, err)

	_, ok := store.Get("gym.name")
	assert.False(t, ok)
}

func TestStore_SetPersistsAcrossLoads(t *testing.T) {
	fs := afero.NewMemMapFs()

	store, err := NewStore(fs, "/data/preferences.yaml")
	require.NoError(t, err)
	require.NoError(t, store.Set("gym.name", "Planet Fitness"))
	require.NoError(t, store.Set("city", "Rotterdam"))

	reloaded, err := NewStore(fs, "/data/preferences.yaml")
	require.NoError(t, err)

	value, ok := reloaded.Get("gym.name")
	require.True(t, ok)
	assert.Equal(t, "Planet Fitness", value)

	value, ok = reloaded.Get("city")
	require.True(t, ok)
	assert.Equal(t, "Rotterdam", value)
}

func TestStore_SetOverwrites(t *testing.T) {
	fs := afero.NewMemMapFs()

	store, err := NewStore(fs, "/data/preferences.yaml")
	require.NoError(t, err)
	require.NoError(t, store.Set("city", "Utrecht"))
	require.NoError(t, store.Set("city", "Rotterdam"))

	value, ok := store.Get("city")
	require.True(t, ok)
	assert.Equal(t, "Rotterdam", value)
}

func TestStore_RejectsMalformedFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/data/preferences.yaml", []byte("{not yaml"), 0o600))

	_, err := NewStore(fs, "/data/preferences.yaml")
	assert.Error(t, err)
}
