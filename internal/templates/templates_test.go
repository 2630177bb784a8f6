package templates

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamesSorted(t *testing.T) {
	names := Names()
	require.NotEmpty(t, names)
	for i := 1; i < len(names); i++ {
		assert.Less(t, names[i-1], names[i])
	}
	assert.Len(t, List(), len(names))
}

func TestRender_ProductDescription(t *testing.T) {
	msgs, err := Render("Product_Description", map[string]string{
		"product_name": "Trail Boot",
		"features":     "waterproof, light",
		"tone":         "playful",
		"unused":       "ignored",
	})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "user", msgs[1].Role)
	assert.Contains(t, msgs[1].Content, `"Trail Boot"`)
	assert.Contains(t, msgs[1].Content, "Tone: playful")
	assert.NotContains(t, msgs[1].Content, "Target audience")
}

func TestRender_UnknownTemplate(t *testing.T) {
	_, err := Render("NOT_REAL", nil)
	var unknown *UnknownTemplateError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, Names(), unknown.Valid)
	assert.Contains(t, err.Error(), "product_description")
}

func TestRender_MissingVariables(t *testing.T) {
	_, err := Render("email_campaign", map[string]string{"product_name": "Boot", "goal": "  "})
	var missing *MissingVariablesError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"audience", "goal"}, missing.Missing)
}

func TestEveryTemplateRendersWithRequiredVariables(t *testing.T) {
	for _, tmpl := range List() {
		vars := map[string]string{}
		for _, v := range tmpl.Variables {
			if v.Required {
				vars[v.Name] = "value"
			}
		}
		msgs, err := tmpl.Render(vars)
		require.NoError(t, err, tmpl.Name)
		assert.NotEmpty(t, msgs[1].Content, tmpl.Name)
	}
}
