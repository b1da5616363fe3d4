package render

import (
	"path/filepath"

	"github.com/jmylchreest/forge/internal/plugin"
	"github.com/jmylchreest/forge/internal/render/engine"
)

// StrategyKind tags how a file is rendered.
type StrategyKind int

const (
	// StrategySubstitute is the built-in {{key}} replacement.
	StrategySubstitute StrategyKind = iota
	// StrategyBuiltinEngine delegates to an embedded engine script.
	StrategyBuiltinEngine
	// StrategyCustomEngine delegates to the active plugin's renderer.
	StrategyCustomEngine
)

func (k StrategyKind) String() string {
	switch k {
	case StrategySubstitute:
		return "substitute"
	case StrategyBuiltinEngine:
		return "builtin-engine"
	case StrategyCustomEngine:
		return "custom-engine"
	}
	return "unknown"
}

// Strategy is the rendering choice for one file, resolved once before any
// rendering happens.
type Strategy struct {
	Kind StrategyKind
	// Runtime is the executable to launch; empty for substitution.
	Runtime string
	// Script is the embedded script name for built-in engines, or the
	// plugin's script identifier for custom engines.
	Script string
}

// External reports whether the strategy launches a process.
func (s Strategy) External() bool {
	return s.Kind != StrategySubstitute
}

// ResolveStrategy picks the strategy for path. Built-in engines own their
// extensions; otherwise the plugin's delegate is used when it owns the
// extension; everything else is substituted. p may be nil.
func ResolveStrategy(path string, p *plugin.Descriptor) Strategy {
	ext := plugin.NormalizeExt(filepath.Ext(path))
	if ext == "" {
		return Strategy{Kind: StrategySubstitute}
	}

	if b, ok := engine.Lookup(ext); ok {
		return Strategy{Kind: StrategyBuiltinEngine, Runtime: b.Runtime, Script: b.Script}
	}
	if del, ok := p.DelegateFor(ext); ok {
		return Strategy{Kind: StrategyCustomEngine, Runtime: del.Runtime, Script: del.Script}
	}
	return Strategy{Kind: StrategySubstitute}
}
