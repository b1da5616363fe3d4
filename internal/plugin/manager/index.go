package manager

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/jmylchreest/forge/internal/errs"
)

// IndexVersion is the current index file format.
const IndexVersion = "1"

// Index is the installed-plugin index. Plugins are kept in detection order:
// higher Priority first, then install order.
type Index struct {
	Version string   `json:"version"`
	Plugins []*Entry `json:"plugins"`
}

// Entry records one installed plugin.
type Entry struct {
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Description string    `json:"description,omitempty"`
	Path        string    `json:"path"`
	Priority    int       `json:"priority,omitempty"`
	Source      *Source   `json:"source,omitempty"`
	InstalledAt time.Time `json:"installed_at"`
}

// Source records where a plugin was installed from.
type Source struct {
	// Type is "local" or "archive".
	Type         string `json:"type"`
	OriginalPath string `json:"original_path,omitempty"`
}

func loadIndex(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Index{Version: IndexVersion}, nil
	}
	if err != nil {
		return nil, errs.IO("read plugin index", path, err)
	}

	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, errs.IO("parse plugin index", path, err)
	}
	if idx.Version == "" {
		idx.Version = IndexVersion
	}
	return &idx, nil
}

func (idx *Index) save(path string) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode plugin index: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errs.IO("create state directory", filepath.Dir(path), err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return errs.IO("write plugin index", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errs.IO("write plugin index", path, err)
	}
	return nil
}

// find returns the entry for name and its position, or -1.
func (idx *Index) find(name string) (*Entry, int) {
	i := slices.IndexFunc(idx.Plugins, func(e *Entry) bool { return e.Name == name })
	if i < 0 {
		return nil, -1
	}
	return idx.Plugins[i], i
}

// put inserts or replaces an entry. A replaced entry keeps its install
// position; the order is then re-established by priority.
func (idx *Index) put(e *Entry) {
	if _, i := idx.find(e.Name); i >= 0 {
		idx.Plugins[i] = e
	} else {
		idx.Plugins = append(idx.Plugins, e)
	}
	slices.SortStableFunc(idx.Plugins, func(a, b *Entry) int {
		return cmp.Compare(b.Priority, a.Priority)
	})
}

func (idx *Index) remove(name string) bool {
	_, i := idx.find(name)
	if i < 0 {
		return false
	}
	idx.Plugins = slices.Delete(idx.Plugins, i, i+1)
	return true
}
