package main

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	vars := map[string]any{
		"project_name": "shop",
		"replicas":     json.Number("3"),
		"features":     []any{"auth", "billing"},
	}
	tpl := `{{ project_name|upper }} x{{ replicas|add:1 }}{% for f in features %} {{ f }}{% endfor %}`

	out, err := render(context.Background(), []byte(tpl), vars)
	require.NoError(t, err)
	assert.Equal(t, "SHOP x4 auth billing", string(out))
}

func TestRenderSyntaxError(t *testing.T) {
	_, err := render(context.Background(), []byte(`{% if %}`), map[string]any{})
	assert.Error(t, err)
}

func TestConvert(t *testing.T) {
	got := convert(map[string]any{
		"i": json.Number("42"),
		"f": json.Number("1.5"),
		"n": map[string]any{"deep": []any{json.Number("7")}},
	})
	assert.Equal(t, map[string]any{
		"i": int64(42),
		"f": 1.5,
		"n": map[string]any{"deep": []any{int64(7)}},
	}, got)
}
