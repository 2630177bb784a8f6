// Package templates holds the prompt template catalog used by content generation.
package templates

import (
	"sort"
	"strings"
	"text/template"
)

// Variable is a named input a template expects.
type Variable struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Template is a named prompt with a system instruction and a user prompt body.
type Template struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Variables   []Variable `json:"variables"`

	system string
	user   *template.Template
}

func mustTemplate(name, description, system, user string, vars ...Variable) *Template {
	return &Template{
		Name:        name,
		Description: description,
		Variables:   vars,
		system:      system,
		user:        template.Must(template.New(name).Option("missingkey=error").Parse(user)),
	}
}

func required(name, description string) Variable {
	return Variable{Name: name, Description: description, Required: true}
}

func optional(name, description string) Variable {
	return Variable{Name: name, Description: description}
}

const copywriterSystem = "You are an experienced marketing copywriter. Write clear, persuasive, original copy. " +
	"Return only the requested content without preamble."

var catalog = map[string]*Template{}

func register(t *Template) {
	catalog[t.Name] = t
}

func init() {
	register(mustTemplate("product_description",
		"Product page description highlighting features and benefits.",
		copywriterSystem,
		`Write a product description for "{{.product_name}}".
Key features: {{.features}}
{{- if .target_audience}}
Target audience: {{.target_audience}}{{end}}
{{- if .tone}}
Tone: {{.tone}}{{end}}`,
		required("product_name", "Name of the product"),
		required("features", "Comma-separated key features"),
		optional("target_audience", "Who the product is for"),
		optional("tone", "Voice of the copy, for example playful or formal"),
	))
	register(mustTemplate("blog_post",
		"Long-form blog article with headings.",
		copywriterSystem+" Use markdown headings.",
		`Write a blog post titled "{{.title}}".
{{- if .keywords}}
Work in these keywords naturally: {{.keywords}}{{end}}
{{- if .word_count}}
Aim for about {{.word_count}} words.{{end}}`,
		required("title", "Post title"),
		optional("keywords", "SEO keywords"),
		optional("word_count", "Approximate length"),
	))
	register(mustTemplate("social_media_post",
		"Short post for a social network.",
		copywriterSystem+" Keep it within the platform's conventions.",
		`Write a {{.platform}} post about {{.topic}}.
{{- if .call_to_action}}
End with this call to action: {{.call_to_action}}{{end}}`,
		required("platform", "Target network, for example LinkedIn"),
		required("topic", "What the post is about"),
		optional("call_to_action", "Closing call to action"),
	))
	register(mustTemplate("email_campaign",
		"Marketing email with subject line and body.",
		copywriterSystem+" Start with a line 'Subject: ...'.",
		`Write a marketing email for {{.product_name}} aimed at {{.audience}}.
Goal of the campaign: {{.goal}}`,
		required("product_name", "Product or offer being promoted"),
		required("audience", "Recipients of the email"),
		required("goal", "What the email should achieve"),
	))
	register(mustTemplate("ad_copy",
		"Headline and body variants for paid ads.",
		copywriterSystem,
		`Write three ad copy variants (headline and one-sentence body) for {{.product_name}}.
Unique selling point: {{.usp}}
{{- if .platform}}
Ad platform: {{.platform}}{{end}}`,
		required("product_name", "Product being advertised"),
		required("usp", "Unique selling point"),
		optional("platform", "Ad network"),
	))
	register(mustTemplate("seo_meta",
		"SEO title and meta description for a page.",
		"You are an SEO specialist. Titles stay under 60 characters and descriptions under 160.",
		`Write an SEO title and meta description for a page about {{.page_topic}}.
{{- if .keywords}}
Primary keywords: {{.keywords}}{{end}}`,
		required("page_topic", "Subject of the page"),
		optional("keywords", "Primary keywords"),
	))
}

// Names returns the catalog's template names in sorted order.
func Names() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns every template in name order.
func List() []*Template {
	names := Names()
	out := make([]*Template, 0, len(names))
	for _, name := range names {
		out = append(out, catalog[name])
	}
	return out
}

// Lookup finds a template by name, ignoring case and surrounding space.
func Lookup(name string) (*Template, bool) {
	t, ok := catalog[strings.ToLower(strings.TrimSpace(name))]
	return t, ok
}
