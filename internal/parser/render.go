package parser

import (
	"strings"
	"unicode"
)

// Render serialises l as an inline link: [alias](path#anchor).
// Without an alias the path is shown, minus a trailing ".md".
func Render(l Link) string {
	alias := l.Alias
	if alias == "" {
		alias = strings.TrimSuffix(l.Path, ".md")
	}
	return "[" + alias + "](" + l.target() + ")"
}

// RenderImage serialises l as an image link target. A purely numeric alias is
// a width directive: it becomes a {width="N"} attribute and the path is shown
// instead.
func RenderImage(l Link) string {
	alias, width := l.Alias, ""
	if isNumeric(alias) {
		alias, width = "", alias
	}
	if alias == "" {
		alias = l.Path
	}

	var b strings.Builder
	b.WriteString("[")
	b.WriteString(alias)
	b.WriteString("](")
	b.WriteString(l.target())
	b.WriteString(")")
	if width != "" {
		b.WriteString(`{width="`)
		b.WriteString(width)
		b.WriteString(`"}`)
	}
	return b.String()
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
