package domain

import (
	"strconv"
	"strings"
)

// Substitute replaces the positional {{1}}, {{2}}, ... placeholders in text
// with params in a single pass, so a parameter value that itself looks like
// a placeholder is left as is.
func Substitute(text string, params []string) string {
	if text == "" || len(params) == 0 {
		return text
	}
	pairs := make([]string, 0, len(params)*2)
	for i, p := range params {
		pairs = append(pairs, "{{"+strconv.Itoa(i+1)+"}}", p)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// RenderedTemplate is a template with its parameters applied.
type RenderedTemplate struct {
	Header string
	Body   string
	Footer string
}

// Render applies body and header parameters to the template.
func (t Template) Render(params, headerParams []string) RenderedTemplate {
	return RenderedTemplate{
		Header: Substitute(t.Header, headerParams),
		Body:   Substitute(t.Body, params),
		Footer: t.Footer,
	}
}

// Text joins the non-empty parts with blank lines, the way the message is
// shown to the recipient.
func (r RenderedTemplate) Text() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{r.Header, r.Body, r.Footer} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n\n")
}
