package manager

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/jmylchreest/forge/internal/errs"
)

// CatalogEntry describes an available plugin in a plugin-list.json catalog.
type CatalogEntry struct {
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
	Repo        string `json:"repo,omitempty"`
}

// LoadCatalog reads a catalog mapping plugin names to entries. A missing
// catalog is empty, not an error.
func LoadCatalog(path string) (map[string]CatalogEntry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]CatalogEntry{}, nil
	}
	if err != nil {
		return nil, errs.IO("read plugin catalog", path, err)
	}

	catalog := map[string]CatalogEntry{}
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, errs.InvalidInput("parse plugin catalog", path, err)
	}
	return catalog, nil
}

// Listing is one row of `forge plugins list`: an installed plugin, a
// catalog entry, or both.
type Listing struct {
	Name             string
	Description      string
	Installed        bool
	InstalledVersion string
	CatalogVersion   string
	Repo             string
	Priority         int
}

// Listings merges installed plugins with the catalog at catalogPath.
// Installed plugins come first in detection order, followed by catalog-only
// plugins by name.
func (m *Manager) Listings(catalogPath string) ([]Listing, error) {
	installed, err := m.List()
	if err != nil {
		return nil, err
	}
	catalog, err := LoadCatalog(catalogPath)
	if err != nil {
		return nil, err
	}

	rows := make([]Listing, 0, len(installed)+len(catalog))
	seen := make(map[string]bool, len(installed))
	for _, e := range installed {
		seen[e.Name] = true
		row := Listing{
			Name:             e.Name,
			Description:      e.Description,
			Installed:        true,
			InstalledVersion: e.Version,
			Priority:         e.Priority,
		}
		if c, ok := catalog[e.Name]; ok {
			row.CatalogVersion = c.Version
			row.Repo = c.Repo
			if row.Description == "" {
				row.Description = c.Description
			}
		}
		rows = append(rows, row)
	}

	var available []Listing
	for name, c := range catalog {
		if seen[name] {
			continue
		}
		available = append(available, Listing{
			Name:           name,
			Description:    c.Description,
			CatalogVersion: c.Version,
			Repo:           c.Repo,
		})
	}
	slices.SortFunc(available, func(a, b Listing) int { return strings.Compare(a.Name, b.Name) })

	return append(rows, available...), nil
}
