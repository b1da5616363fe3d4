// Package plugin defines the plugin descriptor: a named project-type profile
// with template sources, detection rules, actions and an optional custom
// render delegate.
package plugin

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/go-playground/validator/v10"
	shellquote "github.com/kballard/go-shellquote"

	"github.com/jmylchreest/forge/internal/errs"
	"github.com/jmylchreest/forge/internal/render/engine"
	"github.com/jmylchreest/forge/internal/security"
)

const (
	// DescriptorFile is the conventional descriptor filename inside a plugin directory.
	DescriptorFile = "plugin.json"

	// DefaultTemplateName is preferred when no template is requested explicitly.
	DefaultTemplateName = "default"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Descriptor is a loaded plugin descriptor. It is immutable once loaded.
type Descriptor struct {
	Name        string `json:"name" validate:"required,plugin_name"`
	Version     string `json:"version" validate:"required,semver"`
	Description string `json:"description,omitempty"`

	// Templates maps a template name to its source: a git URL, a local
	// directory or a local archive. Relative paths resolve against Dir.
	Templates map[string]string `json:"templates,omitempty" validate:"dive,keys,required,endkeys,required"`

	Detect *DetectRule `json:"detect,omitempty"`

	// Actions maps an action name to an ordered list of shell commands.
	Actions map[string][]string `json:"actions,omitempty" validate:"dive,keys,required,endkeys,min=1,dive,required"`

	CustomRendererCommand string `json:"customRendererCommand,omitempty"`

	// CustomRendererRuntime names the executable that runs CustomRendererCommand.
	CustomRendererRuntime string `json:"customRendererRuntime,omitempty" validate:"excluded_without=CustomRendererCommand"`

	// CustomRendererExtensions limits the delegate to these extensions. When
	// empty the delegate owns every extension the built-in engines do not.
	CustomRendererExtensions []string `json:"customRendererExtensions,omitempty" validate:"excluded_without=CustomRendererCommand,dive,required"`

	// Dir is the directory the descriptor was loaded from. Empty for
	// descriptors parsed from memory.
	Dir string `json:"-"`
}

// DetectRule identifies a project type by the joint existence of files.
type DetectRule struct {
	Files []string `json:"files" validate:"required,min=1,dive,required,relpath"`
}

// Delegate is a resolved custom render delegate.
type Delegate struct {
	// Runtime is the executable invoked.
	Runtime string
	// Script is passed as the first argument to Runtime.
	Script string
	// Extensions is the normalised set the delegate owns; nil means all
	// non-built-in extensions.
	Extensions []string
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("semver", func(fl validator.FieldLevel) bool {
		_, err := semver.StrictNewVersion(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("relpath", func(fl validator.FieldLevel) bool {
		return security.ValidateRelativePath(fl.Field().String()) == nil
	})
	_ = v.RegisterValidation("plugin_name", func(fl validator.FieldLevel) bool {
		return namePattern.MatchString(fl.Field().String())
	})
	return v
}

// Parse decodes and validates a descriptor. source names where data came from
// and is used in error messages only.
func Parse(data []byte, source string) (*Descriptor, error) {
	var d Descriptor
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&d); err != nil {
		return nil, errs.InvalidDescriptor(source, err)
	}
	if err := d.Validate(); err != nil {
		return nil, errs.InvalidDescriptor(source, err)
	}
	return &d, nil
}

// Load reads and validates the descriptor at path. If path is a directory
// its plugin.json is read.
func Load(path string) (*Descriptor, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, DescriptorFile)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errs.NotFound("read plugin descriptor", path, err)
		}
		return nil, errs.IO("read plugin descriptor", path, err)
	}

	d, err := Parse(data, path)
	if err != nil {
		return nil, err
	}

	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, errs.IO("resolve plugin directory", path, err)
	}
	d.Dir = dir
	return d, nil
}

// Validate checks field constraints and the custom renderer configuration.
func (d *Descriptor) Validate() error {
	if err := validate.Struct(d); err != nil {
		return err
	}

	if d.CustomRendererCommand == "" {
		return nil
	}
	if _, err := d.splitDelegate(); err != nil {
		return err
	}
	for _, ext := range d.CustomRendererExtensions {
		if engine.IsBuiltin(NormalizeExt(ext)) {
			return fmt.Errorf("customRendererExtensions: %q is owned by a built-in engine", ext)
		}
	}
	return nil
}

// HasDelegate reports whether the plugin declares a custom renderer.
func (d *Descriptor) HasDelegate() bool {
	return d != nil && d.CustomRendererCommand != ""
}

// DelegateFor returns the custom renderer that owns ext, if any. ext is
// matched case-insensitively, with or without a leading dot. Built-in engine
// extensions are never owned by a delegate.
func (d *Descriptor) DelegateFor(ext string) (Delegate, bool) {
	ext = NormalizeExt(ext)
	if engine.IsBuiltin(ext) {
		return Delegate{}, false
	}

	del, ok := d.Renderer()
	if !ok {
		return Delegate{}, false
	}
	if del.Extensions != nil && !slices.Contains(del.Extensions, ext) {
		return Delegate{}, false
	}
	return del, true
}

// Renderer returns the resolved custom renderer regardless of extension.
func (d *Descriptor) Renderer() (Delegate, bool) {
	if !d.HasDelegate() {
		return Delegate{}, false
	}
	del, err := d.splitDelegate()
	if err != nil {
		return Delegate{}, false
	}
	return del, true
}

func (d *Descriptor) splitDelegate() (Delegate, error) {
	del := Delegate{
		Runtime: d.CustomRendererRuntime,
		Script:  d.CustomRendererCommand,
	}

	if del.Runtime == "" {
		words, err := shellquote.Split(d.CustomRendererCommand)
		if err != nil {
			return Delegate{}, fmt.Errorf("customRendererCommand: %w", err)
		}
		switch len(words) {
		case 1:
			del.Runtime, del.Script = words[0], words[0]
		case 2:
			del.Runtime, del.Script = words[0], words[1]
		default:
			return Delegate{}, fmt.Errorf("customRendererCommand: expected \"[runtime] script\", got %d words", len(words))
		}
	}

	del.Runtime = d.resolveLocal(del.Runtime)
	del.Script = d.resolveLocal(del.Script)

	if len(d.CustomRendererExtensions) > 0 {
		del.Extensions = make([]string, 0, len(d.CustomRendererExtensions))
		for _, ext := range d.CustomRendererExtensions {
			del.Extensions = append(del.Extensions, NormalizeExt(ext))
		}
	}
	return del, nil
}

// resolveLocal anchors a relative path that exists inside the plugin
// directory. Bare names such as "python3" are left for PATH lookup.
func (d *Descriptor) resolveLocal(p string) string {
	if d.Dir == "" || filepath.IsAbs(p) || !strings.ContainsRune(p, filepath.Separator) && !strings.ContainsRune(p, '/') {
		return p
	}
	candidate := filepath.Join(d.Dir, p)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return p
}

// TemplateNames returns template names in lexical order.
func (d *Descriptor) TemplateNames() []string {
	names := make([]string, 0, len(d.Templates))
	for name := range d.Templates {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// DefaultTemplate picks the template used when none is requested: the one
// named "default", otherwise the lexically first.
func (d *Descriptor) DefaultTemplate() (name, locator string, ok bool) {
	if loc, found := d.Templates[DefaultTemplateName]; found {
		return DefaultTemplateName, loc, true
	}
	names := d.TemplateNames()
	if len(names) == 0 {
		return "", "", false
	}
	return names[0], d.Templates[names[0]], true
}

// Action returns the commands for the named action.
func (d *Descriptor) Action(name string) ([]string, bool) {
	cmds, ok := d.Actions[name]
	return cmds, ok
}

// NormalizeExt lower-cases ext and strips a leading dot.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
