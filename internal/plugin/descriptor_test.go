package plugin

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/forge/internal/errs"
)

const goDescriptor = `{
  "name": "go",
  "version": "1.2.0",
  "description": "Go modules",
  "templates": {
    "default": "https://github.com/example/go-template.git",
    "cli": "./templates/cli"
  },
  "detect": {"files": ["go.mod"]},
  "actions": {"test": ["go vet ./...", "go test ./..."]}
}`

func TestParse(t *testing.T) {
	d, err := Parse([]byte(goDescriptor), "go.json")
	require.NoError(t, err)

	assert.Equal(t, "go", d.Name)
	assert.Equal(t, "1.2.0", d.Version)
	assert.Equal(t, []string{"cli", "default"}, d.TemplateNames())
	assert.Equal(t, []string{"go.mod"}, d.Detect.Files)
	assert.False(t, d.HasDelegate())

	cmds, ok := d.Action("test")
	require.True(t, ok)
	assert.Equal(t, []string{"go vet ./...", "go test ./..."}, cmds)
	_, ok = d.Action("deploy")
	assert.False(t, ok)
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"malformed", `{"name":`},
		{"missing name", `{"version":"1.0.0"}`},
		{"bad name", `{"name":"../evil","version":"1.0.0"}`},
		{"missing version", `{"name":"x"}`},
		{"non semver version", `{"name":"x","version":"latest"}`},
		{"empty template locator", `{"name":"x","version":"1.0.0","templates":{"a":""}}`},
		{"empty detect files", `{"name":"x","version":"1.0.0","detect":{"files":[]}}`},
		{"escaping detect file", `{"name":"x","version":"1.0.0","detect":{"files":["../go.mod"]}}`},
		{"empty action", `{"name":"x","version":"1.0.0","actions":{"build":[]}}`},
		{"runtime without command", `{"name":"x","version":"1.0.0","customRendererRuntime":"python3"}`},
		{"too many words", `{"name":"x","version":"1.0.0","customRendererCommand":"python3 -u render.py"}`},
		{"unbalanced quotes", `{"name":"x","version":"1.0.0","customRendererCommand":"python3 'render.py"}`},
		{"claims builtin", `{"name":"x","version":"1.0.0","customRendererCommand":"render","customRendererExtensions":[".erb"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.json), "test.json")
			require.Error(t, err)
			assert.ErrorIs(t, err, errs.ErrInvalidDescriptor)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DescriptorFile), []byte(goDescriptor), 0o644))

	byDir, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, byDir.Dir)

	byFile, err := Load(filepath.Join(dir, DescriptorFile))
	require.NoError(t, err)
	assert.Equal(t, byDir, byFile)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestDelegateFor(t *testing.T) {
	tests := []struct {
		name        string
		descriptor  Descriptor
		ext         string
		wantOK      bool
		wantRuntime string
		wantScript  string
	}{
		{
			name:       "no delegate",
			descriptor: Descriptor{},
			ext:        "tpl",
		},
		{
			name:        "runtime and script split",
			descriptor:  Descriptor{CustomRendererCommand: "python3 render.py"},
			ext:         ".tpl",
			wantOK:      true,
			wantRuntime: "python3",
			wantScript:  "render.py",
		},
		{
			name:        "quoted script",
			descriptor:  Descriptor{CustomRendererCommand: `node "my engine.js"`},
			ext:         "tpl",
			wantOK:      true,
			wantRuntime: "node",
			wantScript:  "my engine.js",
		},
		{
			name:        "single word is runtime and script",
			descriptor:  Descriptor{CustomRendererCommand: "tplrender"},
			ext:         "tpl",
			wantOK:      true,
			wantRuntime: "tplrender",
			wantScript:  "tplrender",
		},
		{
			name:        "explicit runtime keeps command whole",
			descriptor:  Descriptor{CustomRendererCommand: "render.py", CustomRendererRuntime: "python3"},
			ext:         "tpl",
			wantOK:      true,
			wantRuntime: "python3",
			wantScript:  "render.py",
		},
		{
			name:       "builtin extension never delegated",
			descriptor: Descriptor{CustomRendererCommand: "python3 render.py"},
			ext:        "erb",
		},
		{
			name: "restricted extensions match case-insensitively",
			descriptor: Descriptor{
				CustomRendererCommand:    "python3 render.py",
				CustomRendererExtensions: []string{".TPL"},
			},
			ext:         "tpl",
			wantOK:      true,
			wantRuntime: "python3",
			wantScript:  "render.py",
		},
		{
			name: "restricted extensions exclude others",
			descriptor: Descriptor{
				CustomRendererCommand:    "python3 render.py",
				CustomRendererExtensions: []string{"tpl"},
			},
			ext: "md",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			del, ok := tt.descriptor.DelegateFor(tt.ext)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantRuntime, del.Runtime)
			assert.Equal(t, tt.wantScript, del.Script)
		})
	}
}

func TestDelegateResolvesPluginRelativeScript(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bin", "render.py"), []byte("#"), 0o644))

	d := Descriptor{Dir: dir, CustomRendererCommand: "python3 bin/render.py"}
	del, ok := d.DelegateFor("tpl")
	require.True(t, ok)
	assert.Equal(t, "python3", del.Runtime)
	assert.Equal(t, filepath.Join(dir, "bin", "render.py"), del.Script)

	// Paths that do not exist in the plugin are passed through.
	d.CustomRendererCommand = "python3 lib/missing.py"
	del, ok = d.DelegateFor("tpl")
	require.True(t, ok)
	assert.Equal(t, "lib/missing.py", del.Script)
}

func TestRenderer(t *testing.T) {
	_, ok := (&Descriptor{Name: "plain"}).Renderer()
	assert.False(t, ok)

	d := &Descriptor{
		Name:                     "twig",
		CustomRendererCommand:    "php render.php",
		CustomRendererExtensions: []string{".TWIG"},
	}
	del, ok := d.Renderer()
	require.True(t, ok)
	assert.Equal(t, "php", del.Runtime)
	assert.Equal(t, "render.php", del.Script)
	assert.Equal(t, []string{"twig"}, del.Extensions)
}

func TestDefaultTemplate(t *testing.T) {
	d := Descriptor{Templates: map[string]string{"web": "w", "default": "d", "api": "a"}}
	name, loc, ok := d.DefaultTemplate()
	require.True(t, ok)
	assert.Equal(t, "default", name)
	assert.Equal(t, "d", loc)

	d = Descriptor{Templates: map[string]string{"web": "w", "api": "a"}}
	name, loc, ok = d.DefaultTemplate()
	require.True(t, ok)
	assert.Equal(t, "api", name)
	assert.Equal(t, "a", loc)

	_, _, ok = (&Descriptor{}).DefaultTemplate()
	assert.False(t, ok)
}

func TestDetects(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "package.json"), []byte("{}"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "config"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "config", "app.rb"), nil, 0o644))

	node := Descriptor{Detect: &DetectRule{Files: []string{"package.json"}}}
	rails := Descriptor{Detect: &DetectRule{Files: []string{"Gemfile", "config/app.rb"}}}
	nested := Descriptor{Detect: &DetectRule{Files: []string{"config/app.rb"}}}
	none := Descriptor{}

	assert.True(t, node.Detects(root))
	assert.False(t, rails.Detects(root), "every file must exist")
	assert.True(t, nested.Detects(root))
	assert.False(t, none.Detects(root))
}

func TestDetectOrder(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Makefile"), nil, 0o644))

	goPlugin := &Descriptor{Name: "go", Detect: &DetectRule{Files: []string{"go.mod"}}}
	makePlugin := &Descriptor{Name: "make", Detect: &DetectRule{Files: []string{"Makefile"}}}
	node := &Descriptor{Name: "node", Detect: &DetectRule{Files: []string{"package.json"}}}

	match, ambiguous := Detect(root, []*Descriptor{node, goPlugin, makePlugin})
	require.NotNil(t, match)
	assert.Equal(t, "go", match.Name)
	require.Len(t, ambiguous, 1)
	assert.Equal(t, "make", ambiguous[0].Name)

	match, _ = Detect(root, []*Descriptor{makePlugin, goPlugin})
	assert.Equal(t, "make", match.Name)

	match, ambiguous = Detect(root, []*Descriptor{node})
	assert.Nil(t, match)
	assert.Empty(t, ambiguous)
}
