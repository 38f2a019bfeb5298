package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "scan.json")
	store := NewCheckpointStore(path)

	_, ok, err := store.LoadState(ctx, "candidates.jsonl")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SaveState(ctx, "candidates.jsonl", 250))
	line, ok, err := store.LoadState(ctx, "candidates.jsonl")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(250), line)

	_, ok, err = store.LoadState(ctx, "other.jsonl")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestCheckpointRejectsDirectory(t *testing.T) {
	_, _, err := NewCheckpointStore(t.TempDir()).LoadState(context.Background(), "x")
	assert.Error(t, err)
}
