// Package normalize makes list and table blocks in vault notes acceptable to
// strict Markdown renderers, which require a blank line around them.
package normalize

import (
	"regexp"
	"strings"
)

// listRe matches an ordered item, an unordered item, or a table row.
var listRe = regexp.MustCompile(`^(\d+\. |[-*+|] )`)

// Normalize inserts a blank line wherever a list-like line follows a
// non-list-like line or the other way round. No line is inserted next to a
// line that is already blank, which makes Normalize idempotent. Fenced code
// blocks are passed through untouched.
func Normalize(text string) string {
	lines := strings.SplitAfter(text, "\n")

	var b strings.Builder
	b.Grow(len(text) + len(text)/16)

	prevList, prevBlank := false, true
	var fence string
	for _, line := range lines {
		if line == "" {
			continue
		}
		trimmed := strings.TrimLeft(line, " \t")
		blank := strings.TrimSpace(line) == ""

		if fence != "" {
			if strings.HasPrefix(trimmed, fence) {
				fence = ""
			}
			b.WriteString(line)
			prevList, prevBlank = false, blank
			continue
		}

		inList := false
		if f := fenceMarker(trimmed); f != "" {
			fence = f
		} else {
			inList = listRe.MatchString(trimmed)
		}

		if inList != prevList && !prevBlank && !blank {
			b.WriteString("\n")
		}
		b.WriteString(line)
		prevList, prevBlank = inList, blank
	}
	return b.String()
}

func fenceMarker(trimmed string) string {
	switch {
	case strings.HasPrefix(trimmed, "```"):
		return "```"
	case strings.HasPrefix(trimmed, "~~~"):
		return "~~~"
	}
	return ""
}
