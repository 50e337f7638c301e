package plugin

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoaderWatch(t *testing.T) {
	loader := newTestLoader(nil)
	dir := makeArtifact(t, "watched", `{"class_name": "OldAgent"}`)

	_, err := loader.Metadata().Load(dir)
	require.NoError(t, err)
	require.True(t, loader.Metadata().Cached(dir))

	changed := make(chan string, 4)
	ctx, cancel := context.WithCancel(context.Background())
	watcher, err := loader.Watch(ctx, func(d string) {
		select {
		case changed <- d:
		default:
		}
	}, dir)
	require.NoError(t, err)

	staged := filepath.Join(t.TempDir(), MetadataFile)
	require.NoError(t, os.WriteFile(staged, []byte(`{"class_name": "NewAgent"}`), 0644))
	require.NoError(t, os.Rename(staged, filepath.Join(dir, MetadataFile)))

	select {
	case d := <-changed:
		assert.Equal(t, filepath.Clean(dir), filepath.Clean(d))
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for metadata change")
	}
	assert.False(t, loader.Metadata().Cached(dir))

	metadata, err := loader.Metadata().Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "NewAgent", metadata.ImplementationName())

	cancel()
	select {
	case <-watcher.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestLoaderWatchMissingDir(t *testing.T) {
	_, err := newTestLoader(nil).Watch(context.Background(), nil, filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}
