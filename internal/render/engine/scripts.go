package engine

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/hashicorp/go-hclog"

	"github.com/jmylchreest/forge/internal/errs"
	"github.com/jmylchreest/forge/internal/logging"
)

//go:embed scripts/*
var embedded embed.FS

const scriptsDir = "scripts"

// Scripts locates the built-in engine scripts on disk. A file with the same
// name in the override directory wins; otherwise the embedded copy is
// materialised into the cache directory so an interpreter can run it.
type Scripts struct {
	overrideDir string
	cacheDir    string
	files       fs.FS
	logger      hclog.Logger
}

// ScriptInfo describes where a script resolves from.
type ScriptInfo struct {
	Name         string
	OverridePath string
	HasOverride  bool
}

// NewScripts creates a script locator. overrideDir is typically
// <home>/engines and cacheDir <home>/cache/engines/<version>.
func NewScripts(overrideDir, cacheDir string, logger hclog.Logger) *Scripts {
	sub, err := fs.Sub(embedded, scriptsDir)
	if err != nil {
		panic(err)
	}
	return &Scripts{
		overrideDir: overrideDir,
		cacheDir:    cacheDir,
		files:       sub,
		logger:      logging.OrNull(logger),
	}
}

// Path returns an on-disk path for the named script.
func (s *Scripts) Path(name string) (string, error) {
	if s.overrideDir != "" {
		custom := filepath.Join(s.overrideDir, name)
		if info, err := os.Stat(custom); err == nil && info.Mode().IsRegular() {
			s.logger.Debug("using engine script override", "path", custom)
			return custom, nil
		}
	}

	content, err := fs.ReadFile(s.files, name)
	if err != nil {
		return "", errs.NotFound("load engine script", name, err)
	}

	target := filepath.Join(s.cacheDir, name)
	if existing, err := os.ReadFile(target); err == nil && bytes.Equal(existing, content) {
		return target, nil
	}

	if err := os.MkdirAll(s.cacheDir, 0o755); err != nil {
		return "", errs.IO("create engine cache", s.cacheDir, err)
	}
	if err := writeAtomic(target, content, 0o644); err != nil {
		return "", errs.IO("materialise engine script", target, err)
	}
	s.logger.Debug("materialised engine script", "path", target)
	return target, nil
}

// List returns every embedded script in name order.
func (s *Scripts) List() ([]ScriptInfo, error) {
	entries, err := fs.ReadDir(s.files, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to list embedded scripts: %w", err)
	}

	infos := make([]ScriptInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info := ScriptInfo{Name: e.Name()}
		if s.overrideDir != "" {
			info.OverridePath = filepath.Join(s.overrideDir, e.Name())
			_, statErr := os.Stat(info.OverridePath)
			info.HasOverride = statErr == nil
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Dump writes the embedded script to the override directory. Without force
// an existing override is left alone and AlreadyExists is returned.
func (s *Scripts) Dump(name string, force bool) (string, error) {
	if s.overrideDir == "" {
		return "", errs.InvalidInput("dump engine script", name, errors.New("no override directory configured"))
	}
	content, err := fs.ReadFile(s.files, path.Clean(name))
	if err != nil {
		return "", errs.NotFound("dump engine script", name, err)
	}

	target := filepath.Join(s.overrideDir, name)
	if !force {
		if _, err := os.Stat(target); err == nil {
			return "", errs.AlreadyExists("dump engine script", target)
		}
	}
	if err := os.MkdirAll(s.overrideDir, 0o755); err != nil {
		return "", errs.IO("create engine override directory", s.overrideDir, err)
	}
	if err := os.WriteFile(target, content, 0o644); err != nil {
		return "", errs.IO("dump engine script", target, err)
	}
	return target, nil
}

// DumpAll dumps every embedded script. Existing overrides are skipped
// unless force is set; the skipped ones are reported in the returned error
// while the rest are still written.
func (s *Scripts) DumpAll(force bool) ([]string, error) {
	infos, err := s.List()
	if err != nil {
		return nil, err
	}

	var dumped []string
	var skipped []error
	for _, info := range infos {
		target, err := s.Dump(info.Name, force)
		if err != nil {
			if errors.Is(err, errs.ErrAlreadyExists) {
				skipped = append(skipped, err)
				continue
			}
			return dumped, err
		}
		dumped = append(dumped, target)
	}
	return dumped, errors.Join(skipped...)
}

func writeAtomic(target string, content []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(target), ".forge-script-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), target)
}
