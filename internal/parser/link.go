// Package parser recognises the two vault link syntaxes, renders links back
// to inline Markdown, and extracts note titles.
package parser

import (
	"net/url"
	"strings"
)

// Syntax names the grammar a link was written in.
type Syntax string

const (
	SyntaxMarkdown Syntax = "markdown" // [alias](path#anchor)
	SyntaxWiki     Syntax = "wiki"     // [[path#anchor|alias]]
)

// Link is a parsed link. Empty Alias and Anchor mean "not given".
type Link struct {
	Path   string
	Alias  string
	Anchor string
}

// IsExternal reports whether the path carries a URL scheme (https://, file://...).
// External links are never resolved against the vault.
func (l Link) IsExternal() bool {
	return strings.Contains(l.Path, "://")
}

// LookupPath returns the path used for vault resolution. Inline links written
// by the editor percent-encode spaces; undecodable input is returned as is.
func (l Link) LookupPath() string {
	if !strings.Contains(l.Path, "%") {
		return l.Path
	}
	decoded, err := url.PathUnescape(l.Path)
	if err != nil {
		return l.Path
	}
	return decoded
}

func (l Link) target() string {
	if l.Anchor != "" {
		return l.Path + "#" + l.Anchor
	}
	return l.Path
}
