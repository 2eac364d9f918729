package content

import (
	"regexp"
	"strings"

	"github.com/ignite/engagement-tracker/internal/pkg/logger"
)

var markupPattern = regexp.MustCompile(`\{\{.*?\}\}|\{%.*?%\}`)

// Resolver turns a stored destination into the URL a subscriber is sent to.
type Resolver struct {
	templates *TemplateEngine
}

// NewResolver creates a resolver. A nil engine disables the Liquid pass.
func NewResolver(templates *TemplateEngine) *Resolver {
	return &Resolver{templates: templates}
}

// Resolve normalises raw, substitutes [TAG] placeholders, evaluates Liquid
// markup when the engine is enabled, then normalises again. The result
// still needs IsValidURL before use.
func (r *Resolver) Resolve(raw string, c Context) string {
	dest := NormalizeURL(raw)

	if HasTags(dest) {
		dest = ParseURLTags(dest, BuildTags(c))
	}

	if r != nil && r.templates != nil && IsTemplate(dest) {
		out, err := r.templates.Render(unescapeMarkup(dest), Bindings(c))
		if err != nil {
			logger.Warn("destination template failed", "error", err.Error())
		} else {
			dest = out
		}
	}

	return NormalizeURL(dest)
}

// unescapeMarkup undoes the space encoding NormalizeURL applied inside
// Liquid delimiters.
func unescapeMarkup(s string) string {
	return markupPattern.ReplaceAllStringFunc(s, func(m string) string {
		return strings.ReplaceAll(m, "%20", " ")
	})
}
