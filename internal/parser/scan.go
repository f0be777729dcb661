package parser

import (
	"iter"
	"regexp"
)

var (
	// [alias](path) or [alias](path#anchor). The path is non-empty so that
	// in-page links like [x](#heading) are left alone, and holds no "/":
	// links into other folders and URLs are not rewritten in this syntax.
	markdownRe = regexp.MustCompile(`\[([^\]]+)\]\(([^)#/\n]+)(?:#([^)\n]*))?\)`)

	// [[path]], [[path#anchor]], [[path|alias]], [[path#anchor|alias]].
	// The path may be empty ([[#heading]]).
	wikiRe = regexp.MustCompile(`\[\[([^\]#|]*)(?:#([^|\]]+))?(?:\|([^\]]*?))?\]\]`)
)

// Match is one link occurrence. Start and End are byte offsets into the
// scanned text, End exclusive.
type Match struct {
	Start   int
	End     int
	Syntax  Syntax
	Link    Link
	Literal string
}

// Scan returns the links of both syntaxes in text, left to right and
// non-overlapping. When spans overlap the earlier one wins; at equal starts the
// wikilink wins. The sequence does no work until ranged over and can be
// ranged over any number of times.
func Scan(text string) iter.Seq[Match] {
	return func(yield func(Match) bool) {
		wiki := wikiRe.FindAllStringSubmatchIndex(text, -1)
		md := markdownRe.FindAllStringSubmatchIndex(text, -1)

		last := 0
		i, j := 0, 0
		for i < len(wiki) || j < len(md) {
			var m Match
			switch {
			case j >= len(md) || (i < len(wiki) && wiki[i][0] <= md[j][0]):
				m = wikiMatch(text, wiki[i])
				i++
			default:
				m = markdownMatch(text, md[j])
				j++
			}
			if m.Start < last {
				continue
			}
			last = m.End
			if !yield(m) {
				return
			}
		}
	}
}

// Links is a convenience wrapper collecting every Link in text.
func Links(text string) []Link {
	var out []Link
	for m := range Scan(text) {
		out = append(out, m.Link)
	}
	return out
}

func wikiMatch(text string, idx []int) Match {
	l := Link{Path: text[idx[2]:idx[3]]}
	if idx[4] >= 0 {
		l.Anchor = text[idx[4]:idx[5]]
	}
	if idx[6] >= 0 {
		l.Alias = text[idx[6]:idx[7]]
	}
	return Match{
		Start:   idx[0],
		End:     idx[1],
		Syntax:  SyntaxWiki,
		Link:    l,
		Literal: text[idx[0]:idx[1]],
	}
}

func markdownMatch(text string, idx []int) Match {
	l := Link{
		Alias: text[idx[2]:idx[3]],
		Path:  text[idx[4]:idx[5]],
	}
	if idx[6] >= 0 {
		l.Anchor = text[idx[6]:idx[7]]
	}
	return Match{
		Start:   idx[0],
		End:     idx[1],
		Syntax:  SyntaxMarkdown,
		Link:    l,
		Literal: text[idx[0]:idx[1]],
	}
}
