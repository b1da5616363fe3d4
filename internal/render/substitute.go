package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"
)

// Substitute replaces every {{key}} in text with the string form of
// vars[key]. Placeholders without a variable are left as they are. The
// replacement is a single pass, so values are never re-expanded.
func Substitute(text string, vars map[string]any) string {
	if len(vars) == 0 {
		return text
	}

	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "{{"+k+"}}", stringify(vars[k]))
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// SubstituteFile renders rc.InputPath into rc.OutputPath with Substitute.
func SubstituteFile(rc Context) error {
	content, err := os.ReadFile(rc.InputPath)
	if err != nil {
		return fmt.Errorf("failed to read template: %w", err)
	}

	mode := os.FileMode(0o644)
	if info, err := os.Stat(rc.InputPath); err == nil {
		mode = info.Mode().Perm()
	}

	rendered := Substitute(string(content), rc.Variables)
	if err := os.WriteFile(rc.OutputPath, []byte(rendered), mode); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// stringify renders strings verbatim and everything else as compact JSON.
func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case nil:
		return "null"
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
