package fsutil

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.sh")
	dst := filepath.Join(dir, "dst.sh")
	require.NoError(t, os.WriteFile(src, []byte("#!/bin/sh\necho hi\n"), 0o755))

	n, err := CopyFile(src, dst)
	require.NoError(t, err)
	assert.Equal(t, int64(18), n)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\necho hi\n", string(got))

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}

func TestSameContent(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	c := filepath.Join(dir, "c")
	require.NoError(t, os.WriteFile(a, []byte("same"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("same"), 0o644))
	require.NoError(t, os.WriteFile(c, []byte("diff"), 0o644))

	same, err := SameContent(a, b)
	require.NoError(t, err)
	assert.True(t, same)

	same, err = SameContent(a, c)
	require.NoError(t, err)
	assert.False(t, same)

	same, err = SameContent(a, filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.False(t, same)
}

func TestHashFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))
	sum, err := HashFile(path)
	require.NoError(t, err)
	assert.Len(t, FormatHash(sum), 16)
}

func TestWalkFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a", "b"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "top.txt"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a", "b", "deep.txt"), nil, 0o644))

	var rels []string
	require.NoError(t, WalkFiles(root, func(rel, _ string, _ os.FileInfo) error {
		rels = append(rels, rel)
		return nil
	}))
	sort.Strings(rels)
	assert.Equal(t, []string{"a/b/deep.txt", "top.txt"}, rels)
}
