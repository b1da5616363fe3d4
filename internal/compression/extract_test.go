package compression

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

type entry struct {
	name string
	body string
	mode int64
	link string
	dir  bool
}

func tarBytes(t *testing.T, entries []entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, e := range entries {
		h := &tar.Header{Name: e.name, Mode: e.mode}
		switch {
		case e.dir:
			h.Typeflag = tar.TypeDir
			h.Mode = 0o755
		case e.link != "":
			h.Typeflag = tar.TypeSymlink
			h.Linkname = e.link
		default:
			h.Typeflag = tar.TypeReg
			h.Size = int64(len(e.body))
			if h.Mode == 0 {
				h.Mode = 0o644
			}
		}
		require.NoError(t, tw.WriteHeader(h))
		if h.Typeflag == tar.TypeReg {
			_, err := tw.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

func writeTarGz(t *testing.T, entries []entry) string {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err := gw.Write(tarBytes(t, entries))
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	path := filepath.Join(t.TempDir(), "tpl.tar.gz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestDetectFormat(t *testing.T) {
	tests := map[string]Format{
		"a.tar.gz":  FormatTarGz,
		"a.TGZ":     FormatTarGz,
		"a.tar.xz":  FormatTarXz,
		"a.tbz2":    FormatTarBz2,
		"a.tar":     FormatTar,
		"a.zip":     FormatZip,
		"a.gz":      FormatUnknown,
		"templates": FormatUnknown,
	}
	for name, want := range tests {
		assert.Equal(t, want, DetectFormat(name), name)
	}
	assert.Equal(t, "go-service-1.0", BaseName("/x/go-service-1.0.tar.gz"))
	assert.Equal(t, "plain", BaseName("plain"))
}

func TestExtractTarGzTree(t *testing.T) {
	archive := writeTarGz(t, []entry{
		{name: "tpl/", dir: true},
		{name: "tpl/README.md", body: "# {{project_name}}"},
		{name: "tpl/bin/run.sh", body: "#!/bin/sh", mode: 0o755},
		{name: "tpl/link", link: "README.md"},
	})
	dest := t.TempDir()

	res, err := ExtractFile(archive, dest, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Files)
	assert.Empty(t, res.Skipped)

	content, err := os.ReadFile(filepath.Join(dest, "tpl", "README.md"))
	require.NoError(t, err)
	assert.Equal(t, "# {{project_name}}", string(content))

	info, err := os.Stat(filepath.Join(dest, "tpl", "bin", "run.sh"))
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&0o100)

	root, err := SingleRoot(dest)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "tpl"), root)
}

func TestExtractTarXz(t *testing.T) {
	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	require.NoError(t, err)
	_, err = xw.Write(tarBytes(t, []entry{{name: "a.txt", body: "xz"}}))
	require.NoError(t, err)
	require.NoError(t, xw.Close())

	archive := filepath.Join(t.TempDir(), "tpl.tar.xz")
	require.NoError(t, os.WriteFile(archive, buf.Bytes(), 0o644))
	dest := t.TempDir()

	_, err = ExtractFile(archive, dest, Options{})
	require.NoError(t, err)
	content, err := os.ReadFile(filepath.Join(dest, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "xz", string(content))

	root, err := SingleRoot(dest)
	require.NoError(t, err)
	assert.Equal(t, dest, root)
}

func TestExtractRejectsTraversal(t *testing.T) {
	archive := writeTarGz(t, []entry{{name: "../evil.txt", body: "x"}})
	dest := t.TempDir()

	_, err := ExtractFile(archive, dest, Options{})
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(filepath.Dir(dest), "evil.txt"))
}

func TestExtractSkipsEscapingSymlink(t *testing.T) {
	archive := writeTarGz(t, []entry{{name: "passwd", link: "/etc/passwd"}})
	dest := t.TempDir()

	res, err := ExtractFile(archive, dest, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"passwd"}, res.Skipped)
	_, err = os.Lstat(filepath.Join(dest, "passwd"))
	assert.True(t, os.IsNotExist(err))
}

func TestExtractSizeLimit(t *testing.T) {
	archive := writeTarGz(t, []entry{{name: "big.txt", body: string(bytes.Repeat([]byte("a"), 8192))}})

	_, err := ExtractFile(archive, t.TempDir(), Options{MaxBytes: 1024})
	assert.Error(t, err)
}

func TestExtractZip(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("root/src/main.go")
	require.NoError(t, err)
	_, err = w.Write([]byte("package main"))
	require.NoError(t, err)
	_, err = zw.Create("root/empty/")
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	archive := filepath.Join(t.TempDir(), "tpl.zip")
	require.NoError(t, os.WriteFile(archive, buf.Bytes(), 0o644))
	dest := t.TempDir()

	res, err := ExtractFile(archive, dest, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Files)
	assert.FileExists(t, filepath.Join(dest, "root", "src", "main.go"))
	assert.DirExists(t, filepath.Join(dest, "root", "empty"))
}

func TestExtractUnsupported(t *testing.T) {
	_, err := ExtractFile("templates.rar", t.TempDir(), Options{})
	assert.Error(t, err)
}
