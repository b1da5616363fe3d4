package compression

import (
	"archive/zip"
	"fmt"
	"os"

	"github.com/jmylchreest/forge/internal/security"
)

func extractZip(path, destDir string, opts Options) (*Result, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open zip archive: %w", err)
	}
	defer zr.Close()

	res := &Result{}
	budget := opts.MaxBytes

	for _, f := range zr.File {
		target, err := security.SafeJoin(destDir, f.Name)
		if err != nil {
			return res, fmt.Errorf("unsafe archive entry %q: %w", f.Name, err)
		}

		info := f.FileInfo()
		switch {
		case info.IsDir():
			if err := os.MkdirAll(target, 0o755); err != nil {
				return res, fmt.Errorf("failed to create %s: %w", target, err)
			}
			continue
		case !info.Mode().IsRegular():
			opts.Logger.Debug("skipping archive entry", "entry", f.Name, "mode", info.Mode().String())
			res.Skipped = append(res.Skipped, f.Name)
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return res, fmt.Errorf("failed to open %s in archive: %w", f.Name, err)
		}
		// Limit decompression size to prevent zip bombs.
		limited := security.NewLimitedReader(rc, budget)
		err = writeFile(target, limited, info.Mode())
		rc.Close()
		if err != nil {
			return res, err
		}
		budget = limited.Remaining
		res.Files++
	}
	return res, nil
}
