package app

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// ContextSource records how a context document entered the payload.
type ContextSource string

const (
	SourceLinked   ContextSource = "linked"
	SourceBacklink ContextSource = "backlink"
	SourceManual   ContextSource = "manual"
)

// AutoContextDocument is one referenced document prepared for inclusion in a
// prompt. Derived on every context-assembly pass, never persisted.
type AutoContextDocument struct {
	Path             string
	Name             string
	Source           ContextSource
	Section          string
	Content          string
	TokenCount       int
	FullTokenCount   int
	IsTruncated      bool
	SizeWarning      bool
	IncludedSections []string
}

// AutoContextConfig holds the size-tier knobs, in tokens (MinContentLength
// is in bytes of raw content).
type AutoContextConfig struct {
	SmallDocThreshold  int
	MediumDocThreshold int
	LargeMaxTokens     int
	MinContentLength   int
	IncludeBacklinks   bool
}

// AutoContextResolver walks a document's references and renders each one
// under the size-tier policy: small documents ride along whole, medium ones
// whole with a size warning, large ones as a structural digest.
type AutoContextResolver struct {
	vault *Vault
	cfg   AutoContextConfig
	log   *logrus.Logger
}

func NewAutoContextResolver(vault *Vault, cfg AutoContextConfig, log *logrus.Logger) *AutoContextResolver {
	return &AutoContextResolver{vault: vault, cfg: cfg, log: log}
}

// BuildAutoContext assembles the context documents for one file: standing
// manual references first, then outgoing links, then (optionally) backlinks.
// A path already present is never re-added, so outgoing links win over
// backlinks and manual references win over both.
func (r *AutoContextResolver) BuildAutoContext(doc *Document, manual []ContextDocumentRef) []AutoContextDocument {
	seen := map[string]bool{doc.Path: true}
	var out []AutoContextDocument

	include := func(path, section string, source ContextSource) {
		if seen[path] {
			return
		}
		seen[path] = true
		ref, err := r.vault.Read(path)
		if err != nil {
			r.log.WithFields(logrus.Fields{"path": path, "error": err}).Warn("context document unreadable, skipping")
			return
		}
		if len(strings.TrimSpace(ref.Content)) < r.cfg.MinContentLength {
			return
		}
		out = append(out, r.render(ref, section, source))
	}

	for _, m := range manual {
		include(normalizeDocPath(m.Path), m.Property, SourceManual)
	}
	for _, link := range r.vault.Outlinks(doc) {
		include(link.Target, link.Section, SourceLinked)
	}
	if r.cfg.IncludeBacklinks {
		for _, path := range r.vault.Backlinks(doc.Path) {
			include(path, "", SourceBacklink)
		}
	}
	return out
}

// render applies the size-tier policy to one referenced document.
func (r *AutoContextResolver) render(doc *Document, section string, source ContextSource) AutoContextDocument {
	full := EstimateTokens(doc.Content)
	acd := AutoContextDocument{
		Path:           doc.Path,
		Name:           doc.Name,
		Source:         source,
		Section:        section,
		FullTokenCount: full,
	}

	switch {
	case full < r.cfg.SmallDocThreshold:
		acd.Content = doc.Content
		acd.TokenCount = full
	case full < r.cfg.MediumDocThreshold:
		acd.Content = doc.Content
		acd.TokenCount = full
		acd.SizeWarning = true
	default:
		// A requested section replaces the digest outright. It is flagged
		// truncated regardless of its own size: the full document was never
		// considered.
		if section != "" {
			if sec, ok := FindSection(doc.Content, doc.Headings, section); ok {
				acd.Content = sec.Text
				acd.TokenCount = EstimateTokens(sec.Text)
				acd.IsTruncated = true
				acd.IncludedSections = []string{section}
				return acd
			}
		}
		content, included := r.buildDigest(doc)
		acd.Content = content
		acd.TokenCount = EstimateTokens(content)
		acd.IsTruncated = true
		acd.IncludedSections = included
	}
	return acd
}

const digestMaxHeadings = 20

// buildDigest produces the synthetic summary for an oversized document:
// header, frontmatter as bullets, a structural outline, then as much
// leading prose as the remaining budget allows. The budget is tracked with
// a running token counter rather than re-estimating the accumulated string
// per line, which would go quadratic on large documents.
func (r *AutoContextResolver) buildDigest(doc *Document) (string, []string) {
	budget := r.cfg.LargeMaxTokens
	var b strings.Builder
	var included []string

	header := fmt.Sprintf("# %s (truncated digest)\n", doc.Name)
	b.WriteString(header)
	used := EstimateTokens(header)

	if fm, _ := ParseFrontmatter(doc.Content); len(fm) > 0 {
		keys := make([]string, 0, len(fm))
		for k := range fm {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("\n## Properties\n")
		for _, k := range keys {
			line := fmt.Sprintf("- %s: %v\n", k, fm[k])
			b.WriteString(line)
			used += EstimateTokens(line)
		}
		included = append(included, "Properties")
	}

	if len(doc.Headings) > 0 {
		b.WriteString("\n## Document Structure\n")
		outline := doc.Headings
		if len(outline) > digestMaxHeadings {
			outline = outline[:digestMaxHeadings]
		}
		for _, h := range outline {
			line := strings.Repeat("  ", h.Level-1) + "- " + h.Text + "\n"
			b.WriteString(line)
			used += EstimateTokens(line)
		}
		included = append(included, "Document Structure")
	}

	if used < budget {
		b.WriteString("\n## Opening Content\n")
		for _, line := range strings.Split(bodyAfterFrontmatter(doc.Content), "\n") {
			cost := EstimateTokens(line) + 1
			if used+cost > budget {
				break
			}
			b.WriteString(line + "\n")
			used += cost
		}
		included = append(included, "Opening Content")
	}

	return b.String(), included
}

func bodyAfterFrontmatter(content string) string {
	_, bodyLine := ParseFrontmatter(content)
	if bodyLine == 0 {
		return content
	}
	lines := strings.Split(content, "\n")
	if bodyLine >= len(lines) {
		return ""
	}
	return strings.Join(lines[bodyLine:], "\n")
}

// ParseInlineRefs resolves [[Doc]] and [[Doc#Section]] references typed
// inside a chat message. It returns the message with the reference syntax
// stripped, plus the resolved references. Unresolvable references are
// dropped without error; a typo in a link should not fail the turn.
func (r *AutoContextResolver) ParseInlineRefs(message string) (string, []ContextDocumentRef) {
	var refs []ContextDocumentRef
	cleaned := wikiLinkRe.ReplaceAllStringFunc(message, func(raw string) string {
		m := wikiLinkRe.FindStringSubmatch(raw)
		target := strings.TrimSpace(m[1])
		path, ok := r.vault.Resolve(target)
		if !ok {
			return ""
		}
		refs = append(refs, ContextDocumentRef{Path: path, Property: strings.TrimSpace(m[2])})
		return ""
	})
	return strings.TrimSpace(strings.Join(strings.Fields(cleaned), " ")), refs
}

// RenderAutoContext flattens the resolved documents into one prompt block.
func RenderAutoContext(docs []AutoContextDocument) string {
	if len(docs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("REFERENCED DOCUMENTS:")
	for _, d := range docs {
		label := d.Name
		if d.Section != "" {
			label += "#" + d.Section
		}
		note := ""
		switch {
		case d.IsTruncated:
			note = " [truncated]"
		case d.SizeWarning:
			note = " [large]"
		}
		fmt.Fprintf(&b, "\n\n--- %s (%s)%s ---\n%s", label, d.Source, note, d.Content)
	}
	return b.String()
}
