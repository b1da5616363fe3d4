package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/forge/internal/errs"
)

func TestBuiltinTable(t *testing.T) {
	tests := []struct {
		ext     string
		runtime string
		script  string
	}{
		{"erb", "ruby", "render_erb.rb"},
		{".jinja", "python3", "render_jinja.py"},
		{"EJS", "node", "render_ejs.mjs"},
		{"hbs", "node", "render_hbs.mjs"},
	}
	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			b, ok := Lookup(tt.ext)
			require.True(t, ok)
			assert.Equal(t, tt.runtime, b.Runtime)
			assert.Equal(t, tt.script, b.Script)
		})
	}

	assert.False(t, IsBuiltin("tpl"))
	assert.False(t, IsBuiltin(""))

	var exts []string
	for _, b := range Builtins() {
		exts = append(exts, b.Ext)
	}
	assert.Equal(t, []string{"ejs", "erb", "hbs", "jinja"}, exts)
}

func TestEveryBuiltinScriptIsEmbedded(t *testing.T) {
	s := NewScripts("", t.TempDir(), nil)
	for _, b := range Builtins() {
		p, err := s.Path(b.Script)
		require.NoError(t, err, b.Script)
		assert.FileExists(t, p)
	}
}

func TestScriptsPathMaterialisesEmbedded(t *testing.T) {
	cache := filepath.Join(t.TempDir(), "cache")
	s := NewScripts(t.TempDir(), cache, nil)

	p, err := s.Path("render_erb.rb")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cache, "render_erb.rb"), p)

	content, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Contains(t, string(content), "require 'ostruct'")

	// A stale cached copy is refreshed.
	require.NoError(t, os.WriteFile(p, []byte("stale"), 0o644))
	p, err = s.Path("render_erb.rb")
	require.NoError(t, err)
	content, err = os.ReadFile(p)
	require.NoError(t, err)
	assert.NotEqual(t, "stale", string(content))
}

func TestScriptsPathPrefersOverride(t *testing.T) {
	override := t.TempDir()
	custom := filepath.Join(override, "render_hbs.mjs")
	require.NoError(t, os.WriteFile(custom, []byte("// custom"), 0o644))

	s := NewScripts(override, t.TempDir(), nil)
	p, err := s.Path("render_hbs.mjs")
	require.NoError(t, err)
	assert.Equal(t, custom, p)
}

func TestScriptsPathUnknown(t *testing.T) {
	s := NewScripts("", t.TempDir(), nil)
	_, err := s.Path("render_liquid.rb")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestScriptsDump(t *testing.T) {
	override := filepath.Join(t.TempDir(), "engines")
	s := NewScripts(override, t.TempDir(), nil)

	target, err := s.Dump("render_jinja.py", false)
	require.NoError(t, err)
	assert.FileExists(t, target)

	_, err = s.Dump("render_jinja.py", false)
	assert.ErrorIs(t, err, errs.ErrAlreadyExists)

	_, err = s.Dump("render_jinja.py", true)
	assert.NoError(t, err)
}

func TestScriptsDumpAllSkipsExisting(t *testing.T) {
	override := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(override, "render_erb.rb"), []byte("# mine"), 0o644))
	s := NewScripts(override, t.TempDir(), nil)

	dumped, err := s.DumpAll(false)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrAlreadyExists)
	assert.Len(t, dumped, 3)

	content, readErr := os.ReadFile(filepath.Join(override, "render_erb.rb"))
	require.NoError(t, readErr)
	assert.Equal(t, "# mine", string(content))

	infos, err := s.List()
	require.NoError(t, err)
	require.Len(t, infos, 4)
	for _, info := range infos {
		assert.True(t, info.HasOverride, info.Name)
	}
}
