// Package manager keeps the installed-plugin index: registering local
// plugins, listing, removal, loading by name and project detection.
package manager

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/hashicorp/go-hclog"

	"github.com/jmylchreest/forge/internal/compression"
	"github.com/jmylchreest/forge/internal/errs"
	"github.com/jmylchreest/forge/internal/fsutil"
	"github.com/jmylchreest/forge/internal/plugin"
	"github.com/jmylchreest/forge/internal/security"
)

// Builder provides a fluent interface for constructing a Manager.
type Builder struct {
	indexPath  string
	pluginsDir string
	logger     hclog.Logger
	now        func() time.Time
}

// NewBuilder creates a builder for the given index file and plugin directory.
func NewBuilder(indexPath, pluginsDir string) *Builder {
	return &Builder{
		indexPath:  indexPath,
		pluginsDir: pluginsDir,
		now:        time.Now,
	}
}

// WithLogger sets the manager logger.
func (b *Builder) WithLogger(l hclog.Logger) *Builder {
	b.logger = l
	return b
}

// WithClock overrides the install timestamp source (useful for testing).
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build constructs the Manager.
func (b *Builder) Build() *Manager {
	logger := b.logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Manager{
		indexPath:  b.indexPath,
		pluginsDir: b.pluginsDir,
		logger:     logger,
		now:        b.now,
	}
}

// Manager owns the installed-plugin index and the installed plugin copies.
type Manager struct {
	indexPath  string
	pluginsDir string
	logger     hclog.Logger
	now        func() time.Time
}

// InstallOptions control Install.
type InstallOptions struct {
	// Force reinstalls the same version and allows downgrades.
	Force bool
	// Priority orders detection; higher is consulted first.
	Priority int
}

// Install registers the plugin at src: a plugin directory, a descriptor file
// or a local archive containing one. The plugin is copied under the plugins
// directory so later edits to src do not affect it.
func (m *Manager) Install(src string, opts InstallOptions) (*Entry, error) {
	info, err := os.Stat(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errs.NotFound("install plugin", src, err)
		}
		return nil, errs.IO("install plugin", src, err)
	}

	source := &Source{Type: "local", OriginalPath: absOrSelf(src)}
	srcDir, descriptorPath := src, filepath.Join(src, plugin.DescriptorFile)

	switch {
	case !info.IsDir() && compression.IsArchive(src):
		staging, err := os.MkdirTemp("", "forge-plugin-*")
		if err != nil {
			return nil, errs.IO("create staging directory", os.TempDir(), err)
		}
		defer os.RemoveAll(staging)

		if _, err := compression.ExtractFile(src, staging, compression.Options{Logger: m.logger}); err != nil {
			return nil, errs.IO("extract plugin archive", src, err)
		}
		if srcDir, err = compression.SingleRoot(staging); err != nil {
			return nil, errs.IO("extract plugin archive", src, err)
		}
		descriptorPath = filepath.Join(srcDir, plugin.DescriptorFile)
		source.Type = "archive"
	case !info.IsDir():
		srcDir, descriptorPath = filepath.Dir(src), src
	}

	desc, err := plugin.Load(descriptorPath)
	if err != nil {
		return nil, err
	}

	idx, err := loadIndex(m.indexPath)
	if err != nil {
		return nil, err
	}
	if existing, _ := idx.find(desc.Name); existing != nil && !opts.Force {
		if err := checkUpgrade(existing, desc); err != nil {
			return nil, err
		}
	}

	dest := filepath.Join(m.pluginsDir, desc.Name)
	if err := security.ValidateWithin(dest, m.pluginsDir); err != nil {
		return nil, errs.InvalidDescriptor(descriptorPath, err)
	}
	if err := m.stage(srcDir, descriptorPath, dest); err != nil {
		return nil, err
	}

	entry := &Entry{
		Name:        desc.Name,
		Version:     desc.Version,
		Description: desc.Description,
		Path:        dest,
		Priority:    opts.Priority,
		Source:      source,
		InstalledAt: m.now().UTC(),
	}
	idx.put(entry)
	if err := idx.save(m.indexPath); err != nil {
		return nil, err
	}

	m.logger.Info("installed plugin", "plugin", entry.Name, "version", entry.Version, "path", entry.Path)
	return entry, nil
}

// checkUpgrade rejects reinstalling the same version and downgrades.
func checkUpgrade(existing *Entry, desc *plugin.Descriptor) error {
	installed, err := semver.NewVersion(existing.Version)
	if err != nil {
		// An unreadable recorded version never blocks an install.
		return nil
	}
	candidate, err := semver.NewVersion(desc.Version)
	if err != nil {
		return errs.InvalidDescriptor(desc.Name, err)
	}

	switch candidate.Compare(installed) {
	case 0:
		return errs.AlreadyExists("install plugin", fmt.Sprintf("%s@%s", desc.Name, desc.Version))
	case -1:
		return errs.InvalidInput("install plugin", desc.Name,
			fmt.Errorf("%s would downgrade installed %s (use --force)", desc.Version, existing.Version))
	}
	return nil
}

// stage copies srcDir to dest through a sibling staging directory so a
// failed copy leaves the previous install intact.
func (m *Manager) stage(srcDir, descriptorPath, dest string) error {
	srcAbs, _ := filepath.Abs(srcDir)
	destAbs, _ := filepath.Abs(dest)
	if srcAbs == destAbs {
		return nil
	}

	if err := os.MkdirAll(m.pluginsDir, 0o755); err != nil {
		return errs.IO("create plugins directory", m.pluginsDir, err)
	}
	staging := dest + ".installing"
	if err := os.RemoveAll(staging); err != nil {
		return errs.IO("clean staging directory", staging, err)
	}
	if err := fsutil.CopyTree(srcDir, staging); err != nil {
		os.RemoveAll(staging)
		return errs.IO("copy plugin", srcDir, err)
	}

	// A descriptor installed under another name becomes plugin.json.
	if filepath.Base(descriptorPath) != plugin.DescriptorFile {
		data, err := os.ReadFile(descriptorPath)
		if err == nil {
			err = os.WriteFile(filepath.Join(staging, plugin.DescriptorFile), data, 0o644)
		}
		if err != nil {
			os.RemoveAll(staging)
			return errs.IO("copy plugin descriptor", descriptorPath, err)
		}
	}

	if err := os.RemoveAll(dest); err != nil {
		os.RemoveAll(staging)
		return errs.IO("replace plugin", dest, err)
	}
	if err := os.Rename(staging, dest); err != nil {
		return errs.IO("replace plugin", dest, err)
	}
	return nil
}

// List returns installed plugins in detection order.
func (m *Manager) List() ([]*Entry, error) {
	idx, err := loadIndex(m.indexPath)
	if err != nil {
		return nil, err
	}
	return idx.Plugins, nil
}

// Get returns the index entry for name.
func (m *Manager) Get(name string) (*Entry, error) {
	idx, err := loadIndex(m.indexPath)
	if err != nil {
		return nil, err
	}
	e, _ := idx.find(name)
	if e == nil {
		return nil, errs.NotFound("find plugin", name, nil)
	}
	return e, nil
}

// Remove deletes an installed plugin and its index entry.
func (m *Manager) Remove(name string) error {
	idx, err := loadIndex(m.indexPath)
	if err != nil {
		return err
	}
	e, _ := idx.find(name)
	if e == nil {
		return errs.NotFound("remove plugin", name, nil)
	}

	// Only delete copies this manager made.
	if err := security.ValidateWithin(e.Path, m.pluginsDir); err == nil {
		if err := os.RemoveAll(e.Path); err != nil {
			return errs.IO("remove plugin", e.Path, err)
		}
	} else {
		m.logger.Warn("plugin path outside plugins directory, leaving files in place", "plugin", name, "path", e.Path)
	}

	idx.remove(name)
	if err := idx.save(m.indexPath); err != nil {
		return err
	}
	m.logger.Info("removed plugin", "plugin", name)
	return nil
}

// Load returns the descriptor of an installed plugin.
func (m *Manager) Load(name string) (*plugin.Descriptor, error) {
	e, err := m.Get(name)
	if err != nil {
		return nil, err
	}
	return plugin.Load(e.Path)
}

// LoadAll returns the descriptors of every installed plugin in detection
// order. Plugins that fail to load are logged and skipped.
func (m *Manager) LoadAll() ([]*plugin.Descriptor, error) {
	entries, err := m.List()
	if err != nil {
		return nil, err
	}

	descriptors := make([]*plugin.Descriptor, 0, len(entries))
	for _, e := range entries {
		d, err := plugin.Load(e.Path)
		if err != nil {
			m.logger.Warn("skipping unreadable plugin", "plugin", e.Name, "error", err)
			continue
		}
		descriptors = append(descriptors, d)
	}
	return descriptors, nil
}

// Detect returns the first installed plugin, in detection order, whose rule
// matches root. Further matches are logged and ignored.
func (m *Manager) Detect(root string) (*plugin.Descriptor, error) {
	candidates, err := m.LoadAll()
	if err != nil {
		return nil, err
	}

	match, ambiguous := plugin.Detect(root, candidates)
	if match == nil {
		return nil, errs.NotFound("detect plugin", root, errors.New("no installed plugin matches; use --plugin"))
	}
	for _, other := range ambiguous {
		m.logger.Warn("several plugins match this project, using the first by priority",
			"selected", match.Name, "also_matches", other.Name)
	}
	m.logger.Debug("detected plugin", "plugin", match.Name, "root", root)
	return match, nil
}

func absOrSelf(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
