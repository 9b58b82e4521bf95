package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nexify/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_Save(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStorage(dir, "http://localhost:8375/media/")
	require.NoError(t, err)

	url, err := s.Save(context.Background(), "ada@example.com/abc_photo.png", strings.NewReader("png-bytes"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8375/media/ada@example.com/abc_photo.png", url)

	data, err := os.ReadFile(filepath.Join(dir, "ada@example.com", "abc_photo.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
}

func TestLocalStorage_SaveStaysInsideDir(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStorage(dir, "http://localhost/media")
	require.NoError(t, err)

	url, err := s.Save(context.Background(), "../../etc/evil.txt", strings.NewReader("x"), "")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost/media/etc/evil.txt", url)
	assert.FileExists(t, filepath.Join(dir, "etc", "evil.txt"))

	_, err = s.Save(context.Background(), "/", strings.NewReader("x"), "")
	assert.Error(t, err)
}

func TestPublicURL(t *testing.T) {
	assert.Equal(t, "https://storage.googleapis.com/b/k/x.png", PublicURL("", "b", "k/x.png"))
	assert.Equal(t, "https://cdn.example.com/b/k", PublicURL("https://cdn.example.com/%s/%s", "b", "k"))
}

func TestFromConfig(t *testing.T) {
	cfg := &config.Config{StorageDriver: "local", StorageLocalDir: t.TempDir(), PublicBaseURL: "http://localhost:8375"}
	s, err := FromConfig(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, s)

	_, err = FromConfig(context.Background(), &config.Config{StorageDriver: "s3"})
	assert.Error(t, err)
}
