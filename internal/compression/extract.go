// Package compression extracts template and plugin archives into a
// directory tree.
package compression

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// DefaultMaxBytes bounds the total uncompressed size of one archive.
const DefaultMaxBytes int64 = 512 * 1024 * 1024

// Format is an archive container and compression combination.
type Format string

const (
	FormatUnknown Format = ""
	FormatTarGz   Format = "tar.gz"
	FormatTarXz   Format = "tar.xz"
	FormatTarBz2  Format = "tar.bz2"
	FormatTar     Format = "tar"
	FormatZip     Format = "zip"
)

var suffixes = []struct {
	suffix string
	format Format
}{
	{".tar.gz", FormatTarGz},
	{".tgz", FormatTarGz},
	{".tar.xz", FormatTarXz},
	{".txz", FormatTarXz},
	{".tar.bz2", FormatTarBz2},
	{".tbz", FormatTarBz2},
	{".tbz2", FormatTarBz2},
	{".tar", FormatTar},
	{".zip", FormatZip},
}

// DetectFormat infers the archive format from a filename.
func DetectFormat(name string) Format {
	lower := strings.ToLower(name)
	for _, s := range suffixes {
		if strings.HasSuffix(lower, s.suffix) {
			return s.format
		}
	}
	return FormatUnknown
}

// IsArchive reports whether name has a supported archive extension.
func IsArchive(name string) bool {
	return DetectFormat(name) != FormatUnknown
}

// BaseName strips a supported archive extension from a filename.
// For example: "go-service-1.0.tar.gz" -> "go-service-1.0".
func BaseName(name string) string {
	base := filepath.Base(name)
	lower := strings.ToLower(base)
	for _, s := range suffixes {
		if strings.HasSuffix(lower, s.suffix) {
			return base[:len(base)-len(s.suffix)]
		}
	}
	return base
}

// Options tune extraction.
type Options struct {
	// MaxBytes bounds the total uncompressed size. Zero means DefaultMaxBytes.
	MaxBytes int64
	Logger   hclog.Logger
}

// Result describes an extracted tree.
type Result struct {
	// Files is the number of regular files written.
	Files int
	// Skipped lists entries ignored because of their type (devices, fifos,
	// links pointing outside the tree).
	Skipped []string
}

// ExtractFile extracts the archive at path into destDir, creating it when
// missing. Entries are confined to destDir.
func ExtractFile(path, destDir string, opts Options) (*Result, error) {
	format := DetectFormat(path)
	if format == FormatUnknown {
		return nil, fmt.Errorf("unsupported archive format: %s", filepath.Base(path))
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.Logger == nil {
		opts.Logger = hclog.NewNullLogger()
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", destDir, err)
	}

	if format == FormatZip {
		return extractZip(path, destDir, opts)
	}

	f, err := os.Open(path) // #nosec G304 -- archive path supplied by the user
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	r, closeFn, err := decompressor(format, f)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	return extractTar(r, destDir, opts)
}

// SingleRoot returns the directory that holds an extracted tree's content.
// Archives produced by source hosts wrap everything in one top-level
// directory; in that case the wrapper is returned, otherwise dir itself.
func SingleRoot(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(dir, entries[0].Name()), nil
	}
	return dir, nil
}
