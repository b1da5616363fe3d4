// Package variables gathers template variables from flags, files and
// defaults and normalises them to JSON-representable values.
package variables

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/forge/internal/errs"
)

// Default variable names set for every run.
const (
	ProjectName   = "project_name"
	PluginName    = "plugin_name"
	PluginVersion = "plugin_version"
)

var keyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.-]*$`)

// ParseAssignments parses --var arguments. "key=value" sets a string;
// "key:=json" sets a JSON literal such as a number, list or object.
func ParseAssignments(args []string) (map[string]any, error) {
	vars := make(map[string]any, len(args))
	for _, arg := range args {
		key, value, isJSON, err := splitAssignment(arg)
		if err != nil {
			return nil, errs.InvalidInput("parse variable", arg, err)
		}

		if !isJSON {
			vars[key] = value
			continue
		}
		v, err := decodeJSON([]byte(value))
		if err != nil {
			return nil, errs.InvalidInput("parse variable", arg, err)
		}
		vars[key] = v
	}
	return vars, nil
}

func splitAssignment(arg string) (key, value string, isJSON bool, err error) {
	eq := strings.IndexByte(arg, '=')
	if eq < 0 {
		return "", "", false, errors.New("expected key=value or key:=json")
	}
	key, value = arg[:eq], arg[eq+1:]
	if k, ok := strings.CutSuffix(key, ":"); ok {
		key, isJSON = k, true
	}
	if !keyPattern.MatchString(key) {
		return "", "", false, fmt.Errorf("invalid variable name %q", key)
	}
	return key, value, isJSON, nil
}

// LoadFile reads variables from a JSON, YAML, TOML or .env file, chosen by
// extension. The document must be a keyed mapping.
func LoadFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errs.NotFound("read variables file", path, err)
		}
		return nil, errs.IO("read variables file", path, err)
	}

	var vars map[string]any
	switch format(path) {
	case "json":
		var v any
		v, err = decodeJSON(data)
		if err == nil {
			var ok bool
			if vars, ok = v.(map[string]any); !ok {
				err = errors.New("document is not an object")
			}
		}
	case "yaml":
		err = yaml.Unmarshal(data, &vars)
	case "toml":
		err = toml.Unmarshal(data, &vars)
	case "env":
		var env map[string]string
		env, err = godotenv.UnmarshalBytes(data)
		if err == nil {
			vars = make(map[string]any, len(env))
			for k, v := range env {
				vars[k] = v
			}
		}
	default:
		err = fmt.Errorf("unsupported variables file type %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, errs.InvalidInput("parse variables file", path, err)
	}
	if vars == nil {
		vars = map[string]any{}
	}
	return Normalize(vars)
}

func format(path string) string {
	base := strings.ToLower(filepath.Base(path))
	switch {
	case base == ".env" || strings.HasSuffix(base, ".env"):
		return "env"
	case strings.HasSuffix(base, ".json"):
		return "json"
	case strings.HasSuffix(base, ".yaml"), strings.HasSuffix(base, ".yml"):
		return "yaml"
	case strings.HasSuffix(base, ".toml"):
		return "toml"
	}
	return ""
}

// Defaults returns the variables every run starts from.
func Defaults(projectName, pluginName, pluginVersion string) map[string]any {
	vars := map[string]any{ProjectName: projectName}
	if pluginName != "" {
		vars[PluginName] = pluginName
		vars[PluginVersion] = pluginVersion
	}
	return vars
}

// Merge combines layers left to right; later layers win per key.
func Merge(layers ...map[string]any) map[string]any {
	out := map[string]any{}
	for _, l := range layers {
		maps.Copy(out, l)
	}
	return out
}

// Normalize converts vars to plain JSON values (string, json.Number, bool,
// nil, []any, map[string]any) by a JSON round trip. Values that cannot be
// represented in JSON are rejected with InvalidInput. A nil map normalises
// to an empty one.
func Normalize(vars map[string]any) (map[string]any, error) {
	if vars == nil {
		return map[string]any{}, nil
	}
	data, err := json.Marshal(vars)
	if err != nil {
		return nil, errs.InvalidInput("normalize variables", "", err)
	}
	v, err := decodeJSON(data)
	if err != nil {
		return nil, errs.InvalidInput("normalize variables", "", err)
	}
	return v.(map[string]any), nil
}

func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("unexpected data after JSON value")
	}
	return v, nil
}
