package compression

import (
	"archive/tar"
	"compress/bzip2"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ulikunitz/xz"

	"github.com/jmylchreest/forge/internal/security"
)

func decompressor(format Format, r io.Reader) (io.Reader, func(), error) {
	switch format {
	case FormatTarGz:
		gzr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return gzr, func() { gzr.Close() }, nil
	case FormatTarXz:
		xzr, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create xz reader: %w", err)
		}
		return xzr, func() {}, nil
	case FormatTarBz2:
		return bzip2.NewReader(r), func() {}, nil
	case FormatTar:
		return r, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unsupported tar format: %s", format)
}

func extractTar(r io.Reader, destDir string, opts Options) (*Result, error) {
	// Limit decompression size to prevent tar bombs.
	limited := security.NewLimitedReader(r, opts.MaxBytes)
	tr := tar.NewReader(limited)
	res := &Result{}

	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		if err != nil {
			return res, fmt.Errorf("failed to read tar archive: %w", err)
		}

		target, err := security.SafeJoin(destDir, header.Name)
		if err != nil {
			return res, fmt.Errorf("unsafe archive entry %q: %w", header.Name, err)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return res, fmt.Errorf("failed to create %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, header.FileInfo().Mode()); err != nil {
				return res, err
			}
			res.Files++
		case tar.TypeSymlink:
			if err := writeSymlink(destDir, target, header.Linkname); err != nil {
				opts.Logger.Debug("skipping symlink", "entry", header.Name, "error", err)
				res.Skipped = append(res.Skipped, header.Name)
			}
		case tar.TypeXGlobalHeader:
			// pax metadata written by `git archive`
		default:
			opts.Logger.Debug("skipping archive entry", "entry", header.Name, "type", string(header.Typeflag))
			res.Skipped = append(res.Skipped, header.Name)
		}
	}
}

func writeFile(target string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(target), err)
	}

	// Keep the executable bits, drop everything else.
	perm := os.FileMode(0o644)
	if mode&0o111 != 0 {
		perm = 0o755
	}

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm) // #nosec G304 -- target confined by SafeJoin
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	_, copyErr := io.Copy(out, r)
	closeErr := out.Close()

	if copyErr != nil {
		return fmt.Errorf("failed to extract %s: %w", target, copyErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close %s: %w", target, closeErr)
	}
	return nil
}

// writeSymlink creates a link only when its target stays inside destDir.
func writeSymlink(destDir, target, linkname string) error {
	resolved := linkname
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(filepath.Dir(target), linkname)
	}
	if err := security.ValidateWithin(resolved, destDir); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	return os.Symlink(linkname, target)
}
