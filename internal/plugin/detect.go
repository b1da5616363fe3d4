package plugin

import (
	"os"
	"path/filepath"
)

// Matches reports whether every rule file exists under root. An empty rule
// never matches.
func (r *DetectRule) Matches(root string) bool {
	if r == nil || len(r.Files) == 0 {
		return false
	}
	for _, f := range r.Files {
		if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(f))); err != nil {
			return false
		}
	}
	return true
}

// Detects reports whether the plugin's detection rule matches root.
// Plugins without a rule are never detected.
func (d *Descriptor) Detects(root string) bool {
	return d.Detect.Matches(root)
}

// Detect returns the first candidate whose rule matches root, in candidate
// order, along with every later candidate that also matched.
func Detect(root string, candidates []*Descriptor) (match *Descriptor, ambiguous []*Descriptor) {
	for _, d := range candidates {
		if !d.Detects(root) {
			continue
		}
		if match == nil {
			match = d
			continue
		}
		ambiguous = append(ambiguous, d)
	}
	return match, ambiguous
}
