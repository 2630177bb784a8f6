package templates

import (
	"fmt"
	"strings"

	"github.com/contentjet/contentjet/internal/tokens"
)

// UnknownTemplateError is returned for names missing from the catalog.
type UnknownTemplateError struct {
	Name  string
	Valid []string
}

func (e *UnknownTemplateError) Error() string {
	return fmt.Sprintf("unknown template %q; valid templates: %s", e.Name, strings.Join(e.Valid, ", "))
}

// MissingVariablesError lists required variables that were absent or blank.
type MissingVariablesError struct {
	Template string
	Missing  []string
}

func (e *MissingVariablesError) Error() string {
	return fmt.Sprintf("template %s is missing required variables: %s", e.Template, strings.Join(e.Missing, ", "))
}

// Resolve finds name in the catalog or returns an *UnknownTemplateError naming the valid templates.
func Resolve(name string) (*Template, error) {
	t, ok := Lookup(name)
	if !ok {
		return nil, &UnknownTemplateError{Name: name, Valid: Names()}
	}
	return t, nil
}

// Render resolves name and renders it with vars into chat messages.
func Render(name string, vars map[string]string) ([]tokens.Message, error) {
	t, err := Resolve(name)
	if err != nil {
		return nil, err
	}
	return t.Render(vars)
}

// Render fills the template with vars. Optional variables default to empty strings
// and unknown keys are ignored.
func (t *Template) Render(vars map[string]string) ([]tokens.Message, error) {
	data := make(map[string]string, len(t.Variables))
	var missing []string
	for _, v := range t.Variables {
		value := strings.TrimSpace(vars[v.Name])
		if v.Required && value == "" {
			missing = append(missing, v.Name)
		}
		data[v.Name] = value
	}
	if len(missing) > 0 {
		return nil, &MissingVariablesError{Template: t.Name, Missing: missing}
	}

	var b strings.Builder
	if errExec := t.user.Execute(&b, data); errExec != nil {
		return nil, fmt.Errorf("templates: render %s: %w", t.Name, errExec)
	}
	return []tokens.Message{
		{Role: "system", Content: t.system},
		{Role: "user", Content: strings.TrimSpace(b.String())},
	}, nil
}
