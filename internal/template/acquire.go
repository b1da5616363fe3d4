package template

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/jmylchreest/forge/internal/compression"
	"github.com/jmylchreest/forge/internal/errs"
	"github.com/jmylchreest/forge/internal/logging"
	"github.com/jmylchreest/forge/internal/executor"
	"github.com/jmylchreest/forge/internal/fsutil"
)

// Acquirer materialises template sources on local disk.
type Acquirer struct {
	runner   executor.ProcessRunner
	logger   hclog.Logger
	maxBytes int64
}

// NewAcquirer creates an acquirer that runs git through runner.
func NewAcquirer(runner executor.ProcessRunner, logger hclog.Logger) *Acquirer {
	return &Acquirer{runner: runner, logger: logging.OrNull(logger), maxBytes: compression.DefaultMaxBytes}
}

// Fetch copies, extracts or clones src into dest and returns the directory
// holding the template tree. dest must not exist unless force is set, in
// which case it is replaced. A failed fetch leaves no partial dest behind.
func (a *Acquirer) Fetch(ctx context.Context, src Source, dest string, force bool) (string, error) {
	if _, err := os.Lstat(dest); err == nil {
		if !force {
			e := errs.AlreadyExists("fetch template", dest)
			e.Err = errors.New("use --force to replace it")
			return "", e
		}
		if err := os.RemoveAll(dest); err != nil {
			return "", errs.IO("remove template", dest, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", errs.IO("fetch template", dest, err)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", errs.IO("create template directory", filepath.Dir(dest), err)
	}

	a.logger.Debug("fetching template", "name", src.Name, "kind", src.Kind.String(), "source", src.Path, "dest", dest)

	root, err := a.fetch(ctx, src, dest)
	if err != nil {
		_ = os.RemoveAll(dest)
		return "", err
	}
	return root, nil
}

func (a *Acquirer) fetch(ctx context.Context, src Source, dest string) (string, error) {
	switch src.Kind {
	case KindDirectory:
		if err := fsutil.CopyTree(src.Path, dest); err != nil {
			return "", errs.IO("copy template", src.Path, err)
		}
		return dest, nil

	case KindArchive:
		res, err := compression.ExtractFile(src.Path, dest, compression.Options{MaxBytes: a.maxBytes, Logger: a.logger})
		if err != nil {
			return "", errs.IO("extract template", src.Path, err)
		}
		for _, skipped := range res.Skipped {
			a.logger.Warn("skipped archive entry", "archive", src.Path, "entry", skipped)
		}
		root, err := compression.SingleRoot(dest)
		if err != nil {
			return "", errs.IO("extract template", src.Path, err)
		}
		return root, nil

	case KindGit:
		return dest, a.clone(ctx, src.Path, dest)
	}
	return "", errs.InvalidInput("fetch template", src.Locator, fmt.Errorf("unsupported source kind %s", src.Kind))
}

// clone runs a shallow git clone. The URL was validated by Resolve and is
// separated from options by "--".
func (a *Acquirer) clone(ctx context.Context, url, dest string) error {
	res, err := a.runner.Run(ctx, executor.Command{
		Path: "git",
		Args: []string{"clone", "--depth", "1", "--quiet", "--", url, dest},
		Env:  []string{"GIT_TERMINAL_PROMPT=0"},
	})
	if err != nil {
		if msg := strings.TrimSpace(string(res.Stderr)); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return errs.IO("clone template", url, err)
	}
	return nil
}

// Open returns a local template root for src. Directories are used in
// place; archives and git sources are fetched into a temporary directory
// under tmpBase which cleanup removes.
func (a *Acquirer) Open(ctx context.Context, src Source, tmpBase string) (root string, cleanup func(), err error) {
	if src.Kind == KindDirectory {
		return src.Path, func() {}, nil
	}

	if tmpBase != "" {
		if err := os.MkdirAll(tmpBase, 0o755); err != nil {
			return "", nil, errs.IO("create template directory", tmpBase, err)
		}
	}
	tmp, err := os.MkdirTemp(tmpBase, "forge-template-*")
	if err != nil {
		return "", nil, errs.IO("create template directory", tmpBase, err)
	}
	cleanup = func() { _ = os.RemoveAll(tmp) }

	root, err = a.Fetch(ctx, src, filepath.Join(tmp, "tree"), false)
	if err != nil {
		cleanup()
		return "", nil, err
	}
	return root, cleanup, nil
}
