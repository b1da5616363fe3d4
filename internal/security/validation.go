// Package security provides path and URL validation for untrusted inputs:
// template locators, archive entries and plugin-relative paths.
package security

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrSizeLimit is returned by LimitedReader once its budget is spent.
var ErrSizeLimit = errors.New("decompression size limit exceeded")

// scpLike matches git's scp-style remote syntax, e.g. git@github.com:org/repo.git.
var scpLike = regexp.MustCompile(`^[A-Za-z0-9._-]+@[A-Za-z0-9.-]+:[^/].*$`)

// IsGitURL reports whether locator looks like a remote git repository rather
// than a local path.
func IsGitURL(locator string) bool {
	if scpLike.MatchString(locator) {
		return true
	}
	parsed, err := url.Parse(locator)
	if err != nil {
		return false
	}
	switch strings.ToLower(parsed.Scheme) {
	case "https", "http", "ssh", "git":
		return true
	}
	return false
}

// ValidateGitURL validates a git repository URL before it is handed to
// `git clone`. Only https://, ssh://, git:// and scp-style remotes are
// accepted; anything that git could parse as an option is rejected.
func ValidateGitURL(urlStr string) error {
	if urlStr == "" {
		return fmt.Errorf("empty git URL")
	}
	if strings.HasPrefix(urlStr, "-") {
		return fmt.Errorf("git URL must not start with '-'")
	}
	if scpLike.MatchString(urlStr) {
		return nil
	}

	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid git URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "https" && scheme != "ssh" && scheme != "git" {
		return fmt.Errorf("invalid git URL protocol (only https://, ssh:// and git:// allowed): %s", scheme)
	}

	if parsed.Host == "" {
		return fmt.Errorf("git URL must have a hostname")
	}

	return nil
}

// ValidateWithin ensures path resolves inside baseDir.
func ValidateWithin(path, baseDir string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	absBase, err := filepath.Abs(filepath.Clean(baseDir))
	if err != nil {
		return fmt.Errorf("invalid base directory: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) && absPath != absBase {
		return fmt.Errorf("path %q must be within %q (attempted path traversal)", path, baseDir)
	}
	return nil
}

// ValidateRelativePath validates a path that must stay below some root, such
// as an archive entry or a detection rule file.
func ValidateRelativePath(p string) error {
	if p == "" {
		return fmt.Errorf("empty file path")
	}
	if filepath.IsAbs(p) || strings.HasPrefix(p, "/") || strings.HasPrefix(p, `\`) {
		return fmt.Errorf("absolute path %q not allowed", p)
	}

	for _, part := range strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '\\' }) {
		if part == ".." {
			return fmt.Errorf("path %q contains directory traversal (..)", p)
		}
	}
	return nil
}

// SafeJoin joins an untrusted relative path onto baseDir, refusing results
// that would escape it.
func SafeJoin(baseDir, p string) (string, error) {
	if err := ValidateRelativePath(p); err != nil {
		return "", err
	}
	joined := filepath.Join(baseDir, filepath.FromSlash(p))
	if err := ValidateWithin(joined, baseDir); err != nil {
		return "", err
	}
	return joined, nil
}

// LimitedReader wraps an io.Reader and limits the total bytes that can be read.
// This prevents decompression bomb attacks when extracting archives.
type LimitedReader struct {
	R         io.Reader
	Remaining int64
}

// Read implements io.Reader with size limits.
func (l *LimitedReader) Read(p []byte) (int, error) {
	if l.Remaining <= 0 {
		return 0, ErrSizeLimit
	}
	if int64(len(p)) > l.Remaining {
		p = p[:l.Remaining]
	}
	n, err := l.R.Read(p)
	l.Remaining -= int64(n)
	return n, err
}

// NewLimitedReader creates a new LimitedReader with the specified size limit.
func NewLimitedReader(r io.Reader, maxBytes int64) *LimitedReader {
	return &LimitedReader{
		R:         r,
		Remaining: maxBytes,
	}
}
