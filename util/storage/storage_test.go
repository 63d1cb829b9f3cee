package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bwise1/waste_patrol/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalSave(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocal(root, "http://localhost:8080/")
	require.NoError(t, err)

	f, err := store.Save(context.Background(), "reports", "waste.jpg", []byte("jpeg-bytes"))
	require.NoError(t, err)

	assert.Equal(t, "waste.jpg", f.Filename)
	assert.Equal(t, "http://localhost:8080/uploads/reports/waste.jpg", f.URL)
	assert.Equal(t, int64(10), f.Size)

	data, err := os.ReadFile(filepath.Join(root, "reports", "waste.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))
}

func TestLocalSaveStaysInsideRoot(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocal(root, "http://localhost:8080")
	require.NoError(t, err)

	f, err := store.Save(context.Background(), "../../etc", "../passwd", []byte("x"))
	require.NoError(t, err)

	assert.Equal(t, "passwd", f.Filename)
	_, err = os.Stat(filepath.Join(root, "etc", "passwd"))
	assert.NoError(t, err)
}

func TestNewDefaultsToLocal(t *testing.T) {
	store, err := New(&config.Config{StorageDriver: config.StorageLocal, UploadDir: t.TempDir()})
	require.NoError(t, err)
	_, ok := store.(*Local)
	assert.True(t, ok)
}
