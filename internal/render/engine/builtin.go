// Package engine implements the external engine adapter: the subprocess
// contract used to delegate rendering of a single file to an interpreter,
// plus the built-in engine table and its embedded scripts.
package engine

import (
	"slices"
	"strings"
)

// Builtin is a delegated engine forge ships with.
type Builtin struct {
	// Ext is the file extension the engine owns, lower-case without a dot.
	Ext string
	// Runtime is the interpreter executable.
	Runtime string
	// Script is the embedded script filename.
	Script string
}

var builtins = map[string]Builtin{
	"erb":   {Ext: "erb", Runtime: "ruby", Script: "render_erb.rb"},
	"jinja": {Ext: "jinja", Runtime: "python3", Script: "render_jinja.py"},
	"ejs":   {Ext: "ejs", Runtime: "node", Script: "render_ejs.mjs"},
	"hbs":   {Ext: "hbs", Runtime: "node", Script: "render_hbs.mjs"},
}

// Lookup returns the built-in engine for ext. ext is matched
// case-insensitively, with or without a leading dot.
func Lookup(ext string) (Builtin, bool) {
	b, ok := builtins[strings.ToLower(strings.TrimPrefix(ext, "."))]
	return b, ok
}

// IsBuiltin reports whether a built-in engine owns ext.
func IsBuiltin(ext string) bool {
	_, ok := Lookup(ext)
	return ok
}

// Builtins returns the built-in engines ordered by extension.
func Builtins() []Builtin {
	out := make([]Builtin, 0, len(builtins))
	for _, b := range builtins {
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b Builtin) int { return strings.Compare(a.Ext, b.Ext) })
	return out
}
