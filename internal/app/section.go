package app

import "strings"

// HeadingInfo is one entry of a document's heading outline.
type HeadingInfo struct {
	Text     string `json:"text"`
	Level    int    `json:"level"`
	Line     int    `json:"line"`     // 0-based line index in the document
	Position int    `json:"position"` // byte offset of the heading line
}

// Section is a resolved slice of a document: the heading line through the
// line before the next heading of equal or shallower level.
type Section struct {
	Text      string
	StartLine int // inclusive, 0-based
	EndLine   int // exclusive
}

// headingPath builds the dotted ancestor path for the heading at index i:
// the heading text prefixed by each nearest strictly-shallower ancestor,
// joined with "::".
func headingPath(headings []HeadingInfo, i int) string {
	parts := []string{headings[i].Text}
	level := headings[i].Level
	for j := i - 1; j >= 0; j-- {
		if headings[j].Level < level {
			parts = append([]string{headings[j].Text}, parts...)
			level = headings[j].Level
		}
	}
	return strings.Join(parts, "::")
}

// SectionPaths lists the dotted path of every heading in outline order.
// The prompt builder renders this list when a requested section cannot be
// found, so the user can retry with a valid name.
func SectionPaths(headings []HeadingInfo) []string {
	paths := make([]string, len(headings))
	for i := range headings {
		paths[i] = headingPath(headings, i)
	}
	return paths
}

// FindSection extracts the section named by name from content.
//
// Matching policy: a name containing "::" must equal a heading's dotted
// ancestor path exactly (case-insensitive). A plain name matches the first
// heading whose text contains it (case-insensitive substring). First match
// wins; callers may rely on colliding names resolving to the
// first-declared heading, so this is deliberately not a best-match search.
func FindSection(content string, headings []HeadingInfo, name string) (Section, bool) {
	name = strings.TrimSpace(name)
	if name == "" || len(headings) == 0 {
		return Section{}, false
	}

	matchIdx := -1
	if strings.Contains(name, "::") {
		want := strings.ToLower(name)
		for i := range headings {
			if strings.ToLower(headingPath(headings, i)) == want {
				matchIdx = i
				break
			}
		}
	} else {
		want := strings.ToLower(name)
		for i := range headings {
			if strings.Contains(strings.ToLower(headings[i].Text), want) {
				matchIdx = i
				break
			}
		}
	}
	if matchIdx < 0 {
		return Section{}, false
	}

	lines := strings.Split(content, "\n")
	target := headings[matchIdx]
	end := len(lines)
	for _, h := range headings[matchIdx+1:] {
		if h.Level <= target.Level {
			end = h.Line
			break
		}
	}
	if target.Line >= len(lines) {
		return Section{}, false
	}
	return Section{
		Text:      strings.Join(lines[target.Line:end], "\n"),
		StartLine: target.Line,
		EndLine:   end,
	}, true
}
