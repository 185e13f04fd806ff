package app

import (
	"regexp"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

// Document is one markdown file as read from the vault.
type Document struct {
	Path     string // vault-relative path, including .md
	Name     string // base name without extension
	Content  string
	Headings []HeadingInfo
}

// DocumentContext is the per-request snapshot handed to the prompt builder.
// It is rebuilt from the live document on every turn and never cached: the
// content may have changed since the last edit.
type DocumentContext struct {
	Path             string
	Name             string
	Content          string
	Headings         []HeadingInfo
	SelectedText     string
	CursorLine       int
	SurroundingLines string
}

// markdownParser is initialized once and shared. The parser configuration
// never changes and a goldmark parser is safe to reuse; per-call state lives
// in the reader passed to Parse.
var (
	markdownParser     goldmark.Markdown
	markdownParserOnce sync.Once
)

func getMarkdownParser() goldmark.Markdown {
	markdownParserOnce.Do(func() {
		markdownParser = goldmark.New()
	})
	return markdownParser
}

// ParseHeadings extracts the heading outline (text, level, line, byte
// position) from markdown content. A leading YAML frontmatter block is
// skipped before parsing: goldmark would otherwise read its closing "---"
// fence as a setext heading underline.
func ParseHeadings(content string) []HeadingInfo {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	bodyLine, bodyOffset := frontmatterExtent(content)
	source := []byte(content[bodyOffset:])
	root := getMarkdownParser().Parser().Parse(text.NewReader(source))

	// Precompute line start offsets so segment offsets map to line numbers.
	lineStarts := []int{0}
	for i, b := range source {
		if b == '\n' {
			lineStarts = append(lineStarts, i+1)
		}
	}
	lineFor := func(offset int) int {
		line := 0
		for i, start := range lineStarts {
			if start > offset {
				break
			}
			line = i
		}
		return line
	}

	var headings []HeadingInfo
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		if h.Lines().Len() == 0 {
			return ast.WalkContinue, nil
		}
		seg := h.Lines().At(0)
		line := lineFor(seg.Start)
		headings = append(headings, HeadingInfo{
			Text:     strings.TrimSpace(string(source[seg.Start:seg.Stop])),
			Level:    h.Level,
			Line:     bodyLine + line,
			Position: bodyOffset + lineStarts[line],
		})
		return ast.WalkSkipChildren, nil
	})
	return headings
}

// frontmatterExtent returns the line index and byte offset of the first
// body line after a leading "---" frontmatter block, or (0, 0) when the
// document has none.
func frontmatterExtent(content string) (int, int) {
	lines := strings.Split(content, "\n")
	if len(lines) < 2 || strings.TrimSpace(lines[0]) != "---" {
		return 0, 0
	}
	offset := len(lines[0]) + 1
	for i := 1; i < len(lines); i++ {
		offset += len(lines[i]) + 1
		if strings.TrimSpace(lines[i]) == "---" {
			if offset > len(content) {
				offset = len(content)
			}
			return i + 1, offset
		}
	}
	return 0, 0
}

// ParseFrontmatter returns the YAML frontmatter block as a map, plus the
// line index (0-based) of the first body line after the closing delimiter.
// Documents without a leading "---" fence return (nil, 0).
func ParseFrontmatter(content string) (map[string]any, int) {
	lines := strings.Split(content, "\n")
	if len(lines) < 2 || strings.TrimSpace(lines[0]) != "---" {
		return nil, 0
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			block := strings.Join(lines[1:i], "\n")
			fields := map[string]any{}
			if err := yaml.Unmarshal([]byte(block), &fields); err != nil {
				return nil, 0
			}
			return fields, i + 1
		}
	}
	return nil, 0
}

// WikiLink is one [[Target]] or [[Target#Section]] reference.
type WikiLink struct {
	Target  string
	Section string
}

var wikiLinkRe = regexp.MustCompile(`\[\[([^\]|#]+)(?:#([^\]|]+))?(?:\|[^\]]*)?\]\]`)

// ExtractWikiLinks lists the outgoing [[...]] references in content, in
// document order. Display aliases ([[Doc|shown text]]) are discarded.
func ExtractWikiLinks(content string) []WikiLink {
	matches := wikiLinkRe.FindAllStringSubmatch(content, -1)
	links := make([]WikiLink, 0, len(matches))
	for _, m := range matches {
		target := strings.TrimSpace(m[1])
		if target == "" {
			continue
		}
		links = append(links, WikiLink{Target: target, Section: strings.TrimSpace(m[2])})
	}
	return links
}

// Context builds the default DocumentContext for a document with the cursor
// pinned to the last line and no selection.
func (d *Document) Context() DocumentContext {
	cursor := strings.Count(d.Content, "\n")
	return DocumentContext{
		Path:       d.Path,
		Name:       d.Name,
		Content:    d.Content,
		Headings:   d.Headings,
		CursorLine: cursor,
	}
}
