// Package richtext sanitizes user-authored HTML and derives the plain text
// used for length limits.
//
// Sanitization is allow-list based (bluemonday): only basic formatting tags
// survive, links are forced to open safely, and every script, style, iframe
// and on* attribute is removed.
package richtext

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer is the pair of operations the validation layer depends on.
type Sanitizer interface {
	// SanitizeRichText returns markup that is safe to render.
	SanitizeRichText(raw string) string
	// StripHTMLToText returns the visible text of markup, unescaped.
	StripHTMLToText(markup string) string
}

type policySanitizer struct {
	rich  *bluemonday.Policy
	plain *bluemonday.Policy
}

// New builds the default sanitizer. Both policies are safe for concurrent use.
func New() Sanitizer {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"blockquote", "strong", "em", "b", "i", "u", "s",
	)
	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("https", "http", "mailto")
	p.AllowRelativeURLs(false)
	p.RequireParseableURLs(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)
	p.RequireNoFollowOnLinks(true)

	return &policySanitizer{
		rich:  p,
		plain: bluemonday.StrictPolicy(),
	}
}

var (
	blockBoundary = regexp.MustCompile(`(?i)<br\s*/?>|</(p|li|blockquote)>`)
	spaceRun      = regexp.MustCompile(`[ \t]+`)
)

func (s *policySanitizer) SanitizeRichText(raw string) string {
	return strings.TrimSpace(s.rich.Sanitize(raw))
}

func (s *policySanitizer) StripHTMLToText(markup string) string {
	withBreaks := blockBoundary.ReplaceAllString(markup, "\n$0")
	text := html.UnescapeString(s.plain.Sanitize(withBreaks))
	text = spaceRun.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// NewlinesToBreaks converts plain line breaks into <br> tags.
func NewlinesToBreaks(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "<br>")
}
