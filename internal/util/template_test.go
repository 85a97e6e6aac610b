package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate(`You work at {{ default "our shop" .Store }}. Categories: {{ join ", " .Categories }}. Say "hi" & <b>`, map[string]any{
		"Store":      "",
		"Categories": []string{"coffee", "bakery"},
	})
	require.NoError(t, err)
	assert.Equal(t, `You work at our shop. Categories: coffee, bakery. Say "hi" & <b>`, out)
}

func TestRenderTemplate_FastPathAndErrors(t *testing.T) {
	out, err := RenderTemplate("static", nil)
	require.NoError(t, err)
	assert.Equal(t, "static", out)

	_, err = RenderTemplate("{{ .Broken", nil)
	assert.Error(t, err)
}
