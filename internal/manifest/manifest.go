// Package manifest reads and writes the per-project .forge/manifest.json
// recorded by `forge init`.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/jmylchreest/forge/internal/config"
	"github.com/jmylchreest/forge/internal/errs"
)

// Manifest records which plugin and templates a project was initialised with.
type Manifest struct {
	Plugin    string     `json:"plugin"`
	Templates []Template `json:"templates"`
	Created   time.Time  `json:"created"`
}

// Template is one acquired template.
type Template struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Read loads the manifest of the project at dir.
func Read(dir string) (*Manifest, error) {
	path := config.ManifestPath(dir)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errs.NotFound("read manifest", path, err)
		}
		return nil, errs.IO("read manifest", path, err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errs.InvalidInput("parse manifest", path, err)
	}
	if m.Plugin == "" {
		return nil, errs.InvalidInput("parse manifest", path, errors.New("missing plugin"))
	}
	return &m, nil
}

// Exists reports whether dir already has a manifest.
func Exists(dir string) bool {
	_, err := os.Stat(config.ManifestPath(dir))
	return err == nil
}

// Write stores m as the manifest of the project at dir. An existing
// manifest is only replaced when force is set.
func Write(dir string, m *Manifest, force bool) error {
	path := config.ManifestPath(dir)
	if !force && Exists(dir) {
		e := errs.AlreadyExists("write manifest", path)
		e.Err = errors.New("use --force to overwrite")
		return e
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errs.IO("create project directory", filepath.Dir(path), err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return errs.IO("write manifest", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errs.IO("write manifest", path, err)
	}
	return nil
}

// Template returns the named template entry. An empty name selects the
// first entry.
func (m *Manifest) Template(name string) (Template, bool) {
	if name == "" {
		if len(m.Templates) == 0 {
			return Template{}, false
		}
		return m.Templates[0], true
	}
	i := slices.IndexFunc(m.Templates, func(t Template) bool { return t.Name == name })
	if i < 0 {
		return Template{}, false
	}
	return m.Templates[i], true
}

// TemplateDir returns where the named template of the project at dir is stored.
func TemplateDir(dir, name string) string {
	return filepath.Join(config.ProjectTemplatesDir(dir), name)
}
