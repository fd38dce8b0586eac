package template_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepmill/stepmill/pkg/template"
)

func TestRenderCoercesResults(t *testing.T) {
	t.Parallel()

	data := map[string]any{
		"steps": map[string]any{
			"fetch": map[string]any{"count": 3, "passed": true, "name": "orders"},
		},
	}

	tests := []struct {
		name       string
		expression string
		want       any
	}{
		{name: "plain string", expression: "hello", want: "hello"},
		{name: "number", expression: "{{ .steps.fetch.count }}", want: float64(3)},
		{name: "boolean", expression: "{{ .steps.fetch.passed }}", want: true},
		{name: "string field", expression: "{{ .steps.fetch.name }}", want: "orders"},
		{name: "json object", expression: `{"total": {{ .steps.fetch.count }}}`, want: map[string]any{"total": float64(3)}},
		{name: "json array", expression: `[1, 2, 3]`, want: []any{float64(1), float64(2), float64(3)}},
		{name: "whitespace trimmed", expression: "  42  ", want: float64(42)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := template.Render(tt.expression, data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderParseError(t *testing.T) {
	t.Parallel()

	_, err := template.Render("{{ .unclosed", nil)
	assert.Error(t, err)
}

func TestRenderMalformedJSONFails(t *testing.T) {
	t.Parallel()

	_, err := template.Render(`{"broken": }`, nil)
	assert.Error(t, err)
}

func TestRenderNowFunc(t *testing.T) {
	t.Parallel()

	got, err := template.Render("{{ now }}", nil)
	require.NoError(t, err)

	stamp, ok := got.(string)
	require.True(t, ok)

	_, err = time.Parse(time.RFC3339, stamp)
	assert.NoError(t, err)
}

func TestRenderRandFunc(t *testing.T) {
	t.Parallel()

	for range 20 {
		got, err := template.Render("{{ rand 10 }}", nil)
		require.NoError(t, err)

		num, ok := got.(float64)
		require.True(t, ok)
		assert.GreaterOrEqual(t, num, 0.0)
		assert.Less(t, num, 10.0)
	}
}

func TestRenderString(t *testing.T) {
	t.Parallel()

	data := map[string]any{"steps": map[string]any{"auth": map[string]any{"token": "abc123", "ttl": 60}}}

	url, err := template.RenderString("https://api.example.com/items?token={{ .steps.auth.token }}", data)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/items?token=abc123", url)

	// Non-string results are JSON encoded.
	ttl, err := template.RenderString("{{ .steps.auth.ttl }}", data)
	require.NoError(t, err)
	assert.Equal(t, "60", ttl)
}
