// Package render implements the template rendering pipeline: tree
// enumeration, per-file strategy resolution, the runtime pre-flight gate,
// dispatch and the built-in substitution engine.
package render

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/jmylchreest/forge/internal/errs"
)

// TemplateFile is a regular file discovered under a template root.
type TemplateFile struct {
	AbsolutePath string
	// RelativePath is relative to the template root and is re-rooted under
	// the output directory.
	RelativePath string
}

// Enumerate returns every regular file under root in lexical walk order.
//
// The root itself is resolved when it is a symlink. Below it, symlinks are
// not followed into directories. A symlink that resolves to a regular file
// is emitted; dangling links and links to directories are skipped. Any
// directory named .git is skipped.
func Enumerate(root string) ([]TemplateFile, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errs.IO("resolve template root", root, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errs.NotFound("enumerate templates", root, err)
		}
		return nil, errs.IO("enumerate templates", root, err)
	}
	if !info.IsDir() {
		return nil, errs.NotFound("enumerate templates", root, errors.New("not a directory"))
	}
	if abs, err = filepath.EvalSymlinks(abs); err != nil {
		return nil, errs.IO("resolve template root", root, err)
	}

	var files []TemplateFile
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return errs.IO("read template directory", path, err)
		}

		switch {
		case d.IsDir():
			if d.Name() == ".git" && path != abs {
				return filepath.SkipDir
			}
			return nil
		case d.Type()&fs.ModeSymlink != 0:
			target, statErr := os.Stat(path)
			if statErr != nil || !target.Mode().IsRegular() {
				return nil
			}
		case !d.Type().IsRegular():
			return nil
		}

		rel, err := filepath.Rel(abs, path)
		if err != nil {
			return errs.IO("enumerate templates", path, err)
		}
		files = append(files, TemplateFile{AbsolutePath: path, RelativePath: rel})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
