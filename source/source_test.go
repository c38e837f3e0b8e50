package source

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileReportsSettledEdits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.frag")
	require.NoError(t, os.WriteFile(path, []byte("void main() {}"), 0o644))

	f, err := Open(path, 10*time.Millisecond)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, "void main() {}", f.Text())
	assert.True(t, filepath.IsAbs(f.Path()))

	require.NoError(t, os.WriteFile(path, []byte("void main() { discard; }"), 0o644))
	select {
	case <-f.Changes():
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
	assert.Equal(t, "void main() { discard; }", f.Text())
}

func TestFileIgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.frag")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	f, err := Open(path, 10*time.Millisecond)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.frag"), []byte("y"), 0o644))
	select {
	case <-f.Changes():
		t.Fatal("sibling write reported")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestReloadUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.frag")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	f, err := Open(path, 0)
	require.NoError(t, err)

	changed, err := f.Reload()
	require.NoError(t, err)
	assert.False(t, changed)

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
	_, ok := <-f.Changes()
	assert.False(t, ok)
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.frag"), 0)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
