// forge-pongo2 renders Django-syntax templates for forge with pongo2.
//
// Build:
//
//	go build -o forge-pongo2 .
//
// Use it from a plugin descriptor:
//
//	{
//	  "customRendererCommand": "forge-pongo2",
//	  "customRendererExtensions": ["pongo", "j2", "django"]
//	}
package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/flosch/pongo2/v6"

	"github.com/jmylchreest/forge/pkg/engine"
)

const (
	Name    = "forge-pongo2"
	Version = "0.1.0"
)

func main() {
	engine.Main(engine.Engine{
		Name:    Name,
		Version: Version,
		Render:  render,
	})
}

func render(_ context.Context, tpl []byte, vars map[string]any) ([]byte, error) {
	t, err := pongo2.FromBytes(tpl)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	out, err := t.ExecuteBytes(pongo2.Context(convert(vars).(map[string]any)))
	if err != nil {
		return nil, fmt.Errorf("execute template: %w", err)
	}
	return out, nil
}

// convert turns json.Number values into int64 or float64 so that pongo2
// filters and comparisons see numbers.
func convert(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = convert(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = convert(val)
		}
		return out
	}
	return v
}
