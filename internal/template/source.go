// Package template acquires template trees from the locators a plugin
// declares: local directories, local archives and git remotes.
package template

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmylchreest/forge/internal/compression"
	"github.com/jmylchreest/forge/internal/errs"
	"github.com/jmylchreest/forge/internal/security"
)

// Kind is the type of a template source.
type Kind int

const (
	KindDirectory Kind = iota
	KindArchive
	KindGit
)

func (k Kind) String() string {
	switch k {
	case KindDirectory:
		return "directory"
	case KindArchive:
		return "archive"
	case KindGit:
		return "git"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Source is a classified template locator.
type Source struct {
	Name string
	// Locator is the value as declared or given on the command line.
	Locator string
	Kind    Kind
	// Path is the absolute local path, or the remote URL for KindGit.
	Path string
}

// Resolve classifies locator. Relative local paths are resolved against
// baseDir when it is set, otherwise against the working directory. An empty
// name is inferred from the locator.
func Resolve(name, locator, baseDir string) (Source, error) {
	if strings.TrimSpace(locator) == "" {
		return Source{}, errs.InvalidInput("resolve template", name, errors.New("empty locator"))
	}
	if name == "" {
		name = InferName(locator)
	}
	src := Source{Name: name, Locator: locator}

	if security.IsGitURL(locator) {
		if err := security.ValidateGitURL(locator); err != nil {
			return Source{}, errs.InvalidInput("resolve template", locator, err)
		}
		src.Kind = KindGit
		src.Path = locator
		return src, nil
	}

	path := locator
	if !filepath.IsAbs(path) && baseDir != "" {
		path = filepath.Join(baseDir, path)
	}
	path, err := filepath.Abs(path)
	if err != nil {
		return Source{}, errs.IO("resolve template", locator, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Source{}, errs.NotFound("resolve template", path, err)
		}
		return Source{}, errs.IO("resolve template", path, err)
	}
	src.Path = path

	switch {
	case info.IsDir():
		src.Kind = KindDirectory
	case compression.IsArchive(path):
		src.Kind = KindArchive
	default:
		return Source{}, errs.InvalidInput("resolve template", path, errors.New("not a directory or a supported archive"))
	}
	return src, nil
}

// InferName derives a template name from a locator's last path element,
// dropping a ".git" suffix and archive extensions.
//
//	https://github.com/acme/go-service.git -> go-service
//	git@github.com:acme/api.git           -> api
//	./templates/web-1.0.tar.gz            -> web-1.0
func InferName(locator string) string {
	s := strings.TrimRight(locator, `/\`)
	if i := strings.LastIndexAny(s, `/\:`); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(s, ".git")
	s = compression.BaseName(s)
	if s == "" || s == "." || s == ".." {
		return "default"
	}
	return s
}
