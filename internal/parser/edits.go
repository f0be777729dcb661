package parser

import (
	"errors"
	"fmt"
	"strings"
)

// Edit replaces text[Start:End] with Replacement. Offsets refer to the
// original text.
type Edit struct {
	Start       int
	End         int
	Replacement string
}

// Splice applies edits to text. Edits must be sorted by Start and must not
// overlap, which is what collecting replacements over Scan produces.
func Splice(text string, edits []Edit) (string, error) {
	if len(edits) == 0 {
		return text, nil
	}

	var b strings.Builder
	b.Grow(len(text))
	pos := 0
	for i, e := range edits {
		if e.Start < 0 || e.End < e.Start || e.End > len(text) {
			return "", fmt.Errorf("parser: invalid edit[%d]: range %d..%d", i, e.Start, e.End)
		}
		if e.Start < pos {
			return "", errors.New("parser: invalid edits: overlapping or unsorted ranges")
		}
		b.WriteString(text[pos:e.Start])
		b.WriteString(e.Replacement)
		pos = e.End
	}
	b.WriteString(text[pos:])
	return b.String(), nil
}
