package render

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/forge/internal/errs"
)

// writeTree creates files (slash-separated relative path -> content) under root.
func writeTree(t testing.TB, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func relPaths(files []TemplateFile) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = filepath.ToSlash(f.RelativePath)
	}
	return out
}

func TestEnumerateLexicalOrder(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"b.txt":          "",
		"a/z.md":         "",
		"a/b/c.erb":      "",
		"README.md":      "",
		".git/HEAD":      "",
		"sub/.git/index": "",
		".gitignore":     "",
	})
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))

	files, err := Enumerate(root)
	require.NoError(t, err)
	assert.Equal(t, []string{".gitignore", "README.md", "a/b/c.erb", "a/z.md", "b.txt"}, relPaths(files))

	resolved, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	for _, f := range files {
		assert.True(t, filepath.IsAbs(f.AbsolutePath))
		assert.Equal(t, filepath.Join(resolved, f.RelativePath), f.AbsolutePath)
	}
}

func TestEnumerateSymlinkPolicy(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	root := t.TempDir()
	outside := t.TempDir()
	writeTree(t, root, map[string]string{"real.txt": "x"})
	writeTree(t, outside, map[string]string{"shared/inner.txt": "y", "file.txt": "z"})

	require.NoError(t, os.Symlink(filepath.Join(root, "real.txt"), filepath.Join(root, "alias.txt")))
	require.NoError(t, os.Symlink(filepath.Join(outside, "file.txt"), filepath.Join(root, "linked.txt")))
	require.NoError(t, os.Symlink(filepath.Join(outside, "shared"), filepath.Join(root, "shared")))
	require.NoError(t, os.Symlink(filepath.Join(root, "missing"), filepath.Join(root, "dangling")))

	files, err := Enumerate(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"alias.txt", "linked.txt", "real.txt"}, relPaths(files))
}

func TestEnumerateSymlinkedRoot(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	target := t.TempDir()
	writeTree(t, target, map[string]string{"a.txt": "a", "sub/b.txt": "b"})
	link := filepath.Join(t.TempDir(), "tpl")
	require.NoError(t, os.Symlink(target, link))

	files, err := Enumerate(link)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "sub/b.txt"}, relPaths(files))

	resolved, err := filepath.EvalSymlinks(target)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(resolved, "sub", "b.txt"), files[1].AbsolutePath)
}

func TestEnumerateMissingRoot(t *testing.T) {
	_, err := Enumerate(filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, errs.ErrNotFound)

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = Enumerate(file)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestEnumerateUnreadableDirectory(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced")
	}
	root := t.TempDir()
	locked := filepath.Join(root, "locked")
	writeTree(t, root, map[string]string{"locked/secret.txt": ""})
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	_, err := Enumerate(root)
	assert.ErrorIs(t, err, errs.ErrIO)
}
