// Package sanitize provides text sanitization utilities.
package sanitize

import (
	"strings"

	"golang.org/x/net/html"
)

// StripHTML returns the text content of an HTML fragment with entities
// decoded and whitespace collapsed to single spaces.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return collapseSpace(s)
	}

	var b strings.Builder
	tokenizer := html.NewTokenizer(strings.NewReader(s))
	skipDepth := 0
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOF or a malformed tail; either way keep what was read.
			return collapseSpace(b.String())
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if isSkipped(string(name)) {
				skipDepth++
			}
			b.WriteByte(' ')
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if isSkipped(string(name)) && skipDepth > 0 {
				skipDepth--
			}
			b.WriteByte(' ')
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		case html.TextToken:
			if skipDepth == 0 {
				b.Write(tokenizer.Text())
			}
		}
	}
}

// Text sanitizes free text for storage: markup removed, whitespace normalized.
func Text(s string) string {
	return StripHTML(s)
}

func isSkipped(tag string) bool {
	return tag == "script" || tag == "style"
}

func collapseSpace(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}
