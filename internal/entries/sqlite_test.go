package entries

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStorePersistsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "entries.db")
	store, err := OpenSQLite(path)
	require.NoError(t, err)

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	entry := Entry{
		EntryID:   "e1",
		Domain:    "tfiac",
		Title:     "Living room",
		UniqueID:  "e1",
		Version:   1,
		Data:      map[string]string{KeyHost: "10.0.0.5"},
		Options:   map[string]string{KeyFriendlyName: "Lounge", KeyHost: "10.0.0.5"},
		CreatedAt: created,
		UpdatedAt: created,
	}
	require.NoError(t, store.Put(testContext(t), entry))

	entry.Title = "Lounge"
	entry.UpdatedAt = created.Add(time.Hour)
	require.NoError(t, store.Put(testContext(t), entry))
	require.NoError(t, store.Close())

	reopened, err := OpenSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.List(testContext(t))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Lounge", got[0].Title)
	assert.Equal(t, "10.0.0.5", got[0].Data[KeyHost])
	assert.Equal(t, "Lounge", got[0].Options[KeyFriendlyName])
	assert.True(t, got[0].CreatedAt.Equal(created))
	assert.True(t, got[0].UpdatedAt.Equal(created.Add(time.Hour)))
	assert.Equal(t, StateNotLoaded, got[0].State)

	require.NoError(t, reopened.Delete(testContext(t), "e1"))
	got, err = reopened.List(testContext(t))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLiteStoreOrdersByCreation(t *testing.T) {
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "entries.db"))
	require.NoError(t, err)
	defer store.Close()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"c", "a", "b"} {
		require.NoError(t, store.Put(testContext(t), Entry{
			EntryID:   id,
			Domain:    "tfiac",
			Title:     id,
			Version:   1,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			UpdatedAt: base,
		}))
	}

	got, err := store.List(testContext(t))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"c", "a", "b"}, []string{got[0].EntryID, got[1].EntryID, got[2].EntryID})
}

func TestMirrorRejectsUnknownSchema(t *testing.T) {
	_, err := decodeMirror([]byte(`{"schema_version": 9, "entries": []}`))
	assert.Error(t, err)
}

func TestParseEndpoint(t *testing.T) {
	host, secure, err := parseEndpoint("http://minio.local:9000")
	require.NoError(t, err)
	assert.Equal(t, "minio.local:9000", host)
	assert.False(t, secure)

	host, secure, err = parseEndpoint("s3.example.com")
	require.NoError(t, err)
	assert.Equal(t, "s3.example.com", host)
	assert.True(t, secure)

	_, _, err = parseEndpoint("https://")
	assert.Error(t, err)
}
