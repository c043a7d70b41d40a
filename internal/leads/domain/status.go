package domain

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
)

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// StatusSlug is the notification settings key of a status name:
// lower-cased, runs of other characters collapsed to "_", trimmed.
func StatusSlug(name string) string {
	slug := nonSlugChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "_")
	return strings.Trim(slug, "_")
}

// StatusCatalog resolves status names arriving from outside against the
// configured vocabulary.
type StatusCatalog struct {
	names   []string
	aliases map[string]string
}

// NewStatusCatalog builds a catalog from the vocabulary and an alias table
// mapping alternative spellings to vocabulary names.
func NewStatusCatalog(names []string, aliases map[string]string) *StatusCatalog {
	return &StatusCatalog{
		names:   append([]string(nil), names...),
		aliases: aliases,
	}
}

// Normalize returns the vocabulary name for raw: an exact match, then an
// alias, then a case-insensitive match. Aliases pointing outside the
// vocabulary are ignored. ok is false when nothing matches, in which case
// the trimmed input is returned.
func (c *StatusCatalog) Normalize(raw string) (string, bool) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", false
	}
	for _, n := range c.names {
		if n == name {
			return n, true
		}
	}
	if target, ok := c.aliases[name]; ok && c.Contains(target) {
		return target, true
	}

	// Casers carry state and are not shared between goroutines.
	fold := cases.Fold()
	folded := fold.String(name)
	for alias, target := range c.aliases {
		if fold.String(alias) == folded && c.Contains(target) {
			return target, true
		}
	}
	for _, n := range c.names {
		if fold.String(n) == folded {
			return n, true
		}
	}
	return name, false
}

// Contains reports whether name is in the vocabulary verbatim.
func (c *StatusCatalog) Contains(name string) bool {
	for _, n := range c.names {
		if n == name {
			return true
		}
	}
	return false
}
