package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testVault(t *testing.T, files map[string]string) *Vault {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		full := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	v, err := OpenVault(root)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

// Tier thresholds in tokens (one token per four runes). The large document
// below is ~2000 chars, or ~500 tokens.
func testAutoContextConfig() AutoContextConfig {
	return AutoContextConfig{
		SmallDocThreshold:  50,
		MediumDocThreshold: 100,
		LargeMaxTokens:     60,
		MinContentLength:   5,
	}
}

func largeDocContent() string {
	var b strings.Builder
	b.WriteString("---\ntitle: Big\n---\n# Big\n\n## Goals\ngoal text here\n\n## Notes\n")
	for i := 0; i < 40; i++ {
		b.WriteString("a long filler line of prose that pads the document out\n")
	}
	return b.String()
}

func TestBuildAutoContextSmallDocRidesWhole(t *testing.T) {
	v := testVault(t, map[string]string{
		"main.md":  "see [[small]]",
		"small.md": "# Small\njust a few words here",
	})
	r := NewAutoContextResolver(v, testAutoContextConfig(), testLogger())
	doc, err := v.Read("main.md")
	if err != nil {
		t.Fatal(err)
	}

	docs := r.BuildAutoContext(doc, nil)
	if len(docs) != 1 {
		t.Fatalf("got %d docs, want 1: %+v", len(docs), docs)
	}
	d := docs[0]
	if d.Source != SourceLinked {
		t.Fatalf("Source = %s, want linked", d.Source)
	}
	if d.IsTruncated || d.SizeWarning {
		t.Fatalf("small doc flagged: %+v", d)
	}
	if !strings.Contains(d.Content, "just a few words here") {
		t.Fatalf("Content = %q, want full text", d.Content)
	}
	if d.TokenCount != d.FullTokenCount {
		t.Fatalf("TokenCount %d != FullTokenCount %d for an untruncated doc", d.TokenCount, d.FullTokenCount)
	}
}

func TestBuildAutoContextMediumDocWarns(t *testing.T) {
	medium := "# Medium\n" + strings.Repeat("filler words in a line\n", 14) // ~330 chars
	v := testVault(t, map[string]string{
		"main.md":   "see [[medium]]",
		"medium.md": medium,
	})
	r := NewAutoContextResolver(v, testAutoContextConfig(), testLogger())
	doc, _ := v.Read("main.md")

	docs := r.BuildAutoContext(doc, nil)
	if len(docs) != 1 {
		t.Fatalf("got %d docs, want 1", len(docs))
	}
	d := docs[0]
	if !d.SizeWarning {
		t.Fatalf("medium doc not warned: FullTokenCount=%d", d.FullTokenCount)
	}
	if d.IsTruncated {
		t.Fatal("medium doc must still ride along whole")
	}
	if d.Content != medium {
		t.Fatal("medium doc content altered")
	}
}

func TestBuildAutoContextLargeDocBecomesDigest(t *testing.T) {
	v := testVault(t, map[string]string{
		"main.md": "see [[big]]",
		"big.md":  largeDocContent(),
	})
	cfg := testAutoContextConfig()
	r := NewAutoContextResolver(v, cfg, testLogger())
	doc, _ := v.Read("main.md")

	docs := r.BuildAutoContext(doc, nil)
	if len(docs) != 1 {
		t.Fatalf("got %d docs, want 1", len(docs))
	}
	d := docs[0]
	if !d.IsTruncated {
		t.Fatalf("large doc not truncated: FullTokenCount=%d", d.FullTokenCount)
	}
	if !strings.Contains(d.Content, "(truncated digest)") {
		t.Fatalf("digest header missing:\n%s", d.Content)
	}
	if !strings.Contains(d.Content, "## Properties") || !strings.Contains(d.Content, "- title: Big") {
		t.Fatalf("digest missing frontmatter bullets:\n%s", d.Content)
	}
	found := false
	for _, s := range d.IncludedSections {
		if s == "Document Structure" {
			found = true
		}
	}
	if !found {
		t.Fatalf("IncludedSections = %v, want Document Structure", d.IncludedSections)
	}
	if d.TokenCount >= d.FullTokenCount {
		t.Fatalf("digest (%d tokens) not smaller than source (%d)", d.TokenCount, d.FullTokenCount)
	}
}

func TestBuildAutoContextSectionRefReplacesDigest(t *testing.T) {
	v := testVault(t, map[string]string{
		"main.md": "see [[big#Goals]]",
		"big.md":  largeDocContent(),
	})
	r := NewAutoContextResolver(v, testAutoContextConfig(), testLogger())
	doc, _ := v.Read("main.md")

	docs := r.BuildAutoContext(doc, nil)
	if len(docs) != 1 {
		t.Fatalf("got %d docs, want 1", len(docs))
	}
	d := docs[0]
	if !d.IsTruncated {
		t.Fatal("section excerpt of a large doc must be flagged truncated")
	}
	if !strings.Contains(d.Content, "goal text here") {
		t.Fatalf("Content = %q, want the Goals section", d.Content)
	}
	if strings.Contains(d.Content, "truncated digest") {
		t.Fatal("section request must replace the digest, not wrap it")
	}
	if len(d.IncludedSections) != 1 || d.IncludedSections[0] != "Goals" {
		t.Fatalf("IncludedSections = %v, want [Goals]", d.IncludedSections)
	}
}

func TestBuildAutoContextDedupeAndOrdering(t *testing.T) {
	v := testVault(t, map[string]string{
		"main.md":   "see [[shared]] and [[linked]]",
		"shared.md": "# Shared\nshared content body",
		"linked.md": "# Linked\nlinked content body",
	})
	r := NewAutoContextResolver(v, testAutoContextConfig(), testLogger())
	doc, _ := v.Read("main.md")

	manual := []ContextDocumentRef{{Path: "shared"}}
	docs := r.BuildAutoContext(doc, manual)
	if len(docs) != 2 {
		t.Fatalf("got %d docs, want 2 (shared deduplicated): %+v", len(docs), docs)
	}
	if docs[0].Path != "shared.md" || docs[0].Source != SourceManual {
		t.Fatalf("docs[0] = %+v, want manual shared.md first", docs[0])
	}
	if docs[1].Source != SourceLinked {
		t.Fatalf("docs[1].Source = %s, want linked", docs[1].Source)
	}
}

func TestBuildAutoContextBacklinks(t *testing.T) {
	v := testVault(t, map[string]string{
		"main.md":   "no outgoing links",
		"caller.md": "# Caller\nrefers back to [[main]] often",
	})
	cfg := testAutoContextConfig()
	cfg.IncludeBacklinks = true
	r := NewAutoContextResolver(v, cfg, testLogger())
	doc, _ := v.Read("main.md")

	docs := r.BuildAutoContext(doc, nil)
	if len(docs) != 1 || docs[0].Source != SourceBacklink {
		t.Fatalf("got %+v, want one backlink doc", docs)
	}
}

func TestBuildAutoContextSkipsTinyAndMissing(t *testing.T) {
	v := testVault(t, map[string]string{
		"main.md": "see [[tiny]]",
		"tiny.md": "hi",
	})
	r := NewAutoContextResolver(v, testAutoContextConfig(), testLogger())
	doc, _ := v.Read("main.md")

	manual := []ContextDocumentRef{{Path: "ghost"}}
	if docs := r.BuildAutoContext(doc, manual); len(docs) != 0 {
		t.Fatalf("got %+v, want nothing included", docs)
	}
}

func TestParseInlineRefs(t *testing.T) {
	v := testVault(t, map[string]string{
		"notes/plan.md": "# Plan\nthe plan body",
	})
	r := NewAutoContextResolver(v, testAutoContextConfig(), testLogger())

	cleaned, refs := r.ParseInlineRefs("compare with [[plan#Goals]] and [[nope]] please")
	if cleaned != "compare with and please" {
		t.Fatalf("cleaned = %q", cleaned)
	}
	if len(refs) != 1 {
		t.Fatalf("refs = %+v, want one resolved ref", refs)
	}
	if refs[0].Path != "notes/plan.md" || refs[0].Property != "Goals" {
		t.Fatalf("refs[0] = %+v", refs[0])
	}
}

func TestRenderAutoContext(t *testing.T) {
	if got := RenderAutoContext(nil); got != "" {
		t.Fatalf("got %q, want empty for no docs", got)
	}

	docs := []AutoContextDocument{
		{Name: "small", Source: SourceLinked, Content: "small body"},
		{Name: "big", Section: "Goals", Source: SourceManual, Content: "digest body", IsTruncated: true},
		{Name: "medium", Source: SourceBacklink, Content: "medium body", SizeWarning: true},
	}
	got := RenderAutoContext(docs)
	if !strings.HasPrefix(got, "REFERENCED DOCUMENTS:") {
		t.Fatalf("missing block header:\n%s", got)
	}
	for _, want := range []string{
		"--- small (linked) ---",
		"--- big#Goals (manual) [truncated] ---",
		"--- medium (backlink) [large] ---",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q:\n%s", want, got)
		}
	}
}
