// Package config resolves the plugin-state root and runtime settings.
//
// The state root is resolved once, at the edge of the program, and then
// passed explicitly to every component that needs it. Nothing below the CLI
// looks up the user's home directory on its own.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

const (
	// EnvHome overrides the plugin-state root.
	EnvHome = "FORGE_HOME"

	// EnvEngineTimeout overrides the external engine timeout (Go duration, "0" disables).
	EnvEngineTimeout = "FORGE_ENGINE_TIMEOUT"

	// DefaultEngineTimeout bounds a single external engine invocation.
	DefaultEngineTimeout = 5 * time.Minute

	// DefaultProbeTimeout bounds a single runtime version probe.
	DefaultProbeTimeout = 10 * time.Second

	// IndexFile is the installed-plugin index under the state root.
	IndexFile = "plugin-index.json"

	// CatalogFile is the optional list of available plugins in the working directory.
	CatalogFile = "plugin-list.json"

	// ProjectDir is the per-project state directory created by `forge init`.
	ProjectDir = ".forge"
)

// Options are the raw inputs to Load. Empty values fall through to the
// environment and then to defaults.
type Options struct {
	Home          string
	EngineTimeout string

	// Getenv is used instead of os.Getenv when set.
	Getenv func(string) string
}

// Config is the resolved configuration.
type Config struct {
	// Home is the plugin-state root.
	Home string

	// EngineTimeout bounds each external engine run. Zero means no bound.
	EngineTimeout time.Duration

	// ProbeTimeout bounds each runtime probe.
	ProbeTimeout time.Duration
}

// Load resolves configuration with precedence options > environment > defaults.
func Load(opts Options) (*Config, error) {
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	home := firstNonEmpty(opts.Home, getenv(EnvHome))
	if home == "" {
		home = filepath.Join(xdg.DataHome, "forge")
	}
	home, err := expandHome(home)
	if err != nil {
		return nil, err
	}
	home, err = filepath.Abs(home)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve state root %q: %w", home, err)
	}

	timeout := DefaultEngineTimeout
	if raw := firstNonEmpty(opts.EngineTimeout, getenv(EnvEngineTimeout)); raw != "" {
		timeout, err = time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid engine timeout %q: %w", raw, err)
		}
		if timeout < 0 {
			return nil, fmt.Errorf("invalid engine timeout %q: must not be negative", raw)
		}
	}

	return &Config{
		Home:          home,
		EngineTimeout: timeout,
		ProbeTimeout:  DefaultProbeTimeout,
	}, nil
}

// IndexPath returns the path of the installed-plugin index.
func (c *Config) IndexPath() string {
	return filepath.Join(c.Home, IndexFile)
}

// PluginsDir returns the directory holding installed plugin descriptors.
func (c *Config) PluginsDir() string {
	return filepath.Join(c.Home, "plugins")
}

// EnginesDir returns the directory searched for user overrides of the
// built-in engine scripts.
func (c *Config) EnginesDir() string {
	return filepath.Join(c.Home, "engines")
}

// CacheDir returns the directory for materialised scripts and acquired templates.
func (c *Config) CacheDir() string {
	return filepath.Join(c.Home, "cache")
}

// CatalogPath returns the catalog file path for a working directory.
func CatalogPath(dir string) string {
	return filepath.Join(dir, CatalogFile)
}

// ManifestPath returns the project manifest path for a project directory.
func ManifestPath(dir string) string {
	return filepath.Join(dir, ProjectDir, "manifest.json")
}

// ProjectTemplatesDir returns where `forge init` stores acquired templates.
func ProjectTemplatesDir(dir string) string {
	return filepath.Join(dir, ProjectDir, "templates")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to expand %q: %w", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
