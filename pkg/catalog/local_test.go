package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLocal_List(t *testing.T) {
	t.Run("yaml documents only, sorted", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "b.yaml", "name: b")
		writeFile(t, dir, "a.yml", "name: a")
		writeFile(t, dir, "notes.txt", "ignored")
		writeFile(t, dir, "README.md", "ignored")
		require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.yaml"), 0o755))

		l, err := NewLocal(dir)
		require.NoError(t, err)

		names, err := l.List(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"a.yml", "b.yaml"}, names)
	})

	t.Run("missing directory is an empty catalog", func(t *testing.T) {
		l, err := NewLocal(filepath.Join(t.TempDir(), "does-not-exist"))
		require.NoError(t, err)

		names, err := l.List(context.Background())
		require.NoError(t, err)
		assert.Empty(t, names)
	})
}

func TestLocal_Read(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "preset.yaml", "name: preset\n")

	l, err := NewLocal(dir)
	require.NoError(t, err)

	data, err := l.Read(context.Background(), "preset.yaml")
	require.NoError(t, err)
	assert.Equal(t, "name: preset\n", string(data))

	_, err = l.Read(context.Background(), "missing.yaml")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocal_ReadRejectsPathEscapes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "inside.yaml", "name: inside")

	l, err := NewLocal(dir)
	require.NoError(t, err)

	for _, name := range []string{
		"../outside.yaml",
		filepath.Join(dir, "inside.yaml"),
		".hidden.yaml",
	} {
		_, err := l.Read(context.Background(), name)
		assert.ErrorIs(t, err, ErrNotFound, "name %q must be rejected", name)
	}
}

func TestLocal_Watch(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLocal(dir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 8)
	done := make(chan error, 1)
	go func() {
		done <- l.Watch(ctx, func() {
			select {
			case changed <- struct{}{}:
			default:
			}
		})
	}()

	// Give the watcher a moment to attach before producing events.
	time.Sleep(200 * time.Millisecond)
	writeFile(t, dir, "new.yaml", "name: new")

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never reported the new document")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop on context cancellation")
	}
}
