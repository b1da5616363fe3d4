package cli

import (
	"errors"
	"strings"

	"github.com/jmylchreest/forge/internal/errs"
	"github.com/jmylchreest/forge/internal/manifest"
	"github.com/jmylchreest/forge/internal/plugin"
	"github.com/jmylchreest/forge/internal/template"
)

// resolvePlugin picks the active plugin: an explicit name or descriptor
// path, then the project manifest when useManifest is set, then detection
// against dir.
func (a *app) resolvePlugin(name, dir string, useManifest bool) (*plugin.Descriptor, error) {
	if name != "" {
		if looksLikePath(name) {
			return plugin.Load(name)
		}
		return a.manager().Load(name)
	}

	if useManifest && manifest.Exists(dir) {
		m, err := manifest.Read(dir)
		if err != nil {
			return nil, err
		}
		a.logger.Debug("using plugin from manifest", "plugin", m.Plugin)
		return a.manager().Load(m.Plugin)
	}

	return a.manager().Detect(dir)
}

// looksLikePath reports whether a --plugin value names a descriptor on disk
// rather than an installed plugin.
func looksLikePath(s string) bool {
	return s == "." || strings.ContainsAny(s, `/\`) || strings.HasSuffix(s, ".json")
}

// pickTemplate selects a template of p. arg may be a template name, a
// locator, or empty for the plugin default.
func pickTemplate(p *plugin.Descriptor, arg string) (name, locator string, err error) {
	if arg != "" {
		if loc, ok := p.Templates[arg]; ok {
			return arg, loc, nil
		}
		return template.InferName(arg), arg, nil
	}
	name, locator, ok := p.DefaultTemplate()
	if !ok {
		return "", "", errs.NotFound("select template", p.Name, errors.New("plugin declares no templates; use --template"))
	}
	return name, locator, nil
}
