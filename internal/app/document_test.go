package app

import "testing"

func TestParseHeadings(t *testing.T) {
	content := "# Title\nintro\n## Details\ntext\n### Nested\nmore\n"
	got := ParseHeadings(content)
	want := []HeadingInfo{
		{Text: "Title", Level: 1, Line: 0},
		{Text: "Details", Level: 2, Line: 2},
		{Text: "Nested", Level: 3, Line: 4},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d headings, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i].Text != want[i].Text || got[i].Level != want[i].Level || got[i].Line != want[i].Line {
			t.Fatalf("headings[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
	if got[0].Position != 0 {
		t.Fatalf("first heading position = %d, want 0", got[0].Position)
	}
}

func TestParseHeadingsSkipsFrontmatter(t *testing.T) {
	content := "---\ntitle: Test\n---\n# Body Heading\ntext\n"
	got := ParseHeadings(content)
	if len(got) != 1 {
		t.Fatalf("got %d headings, want 1: %+v", len(got), got)
	}
	if got[0].Text != "Body Heading" || got[0].Line != 3 {
		t.Fatalf("heading = %+v, want Body Heading at line 3", got[0])
	}
}

func TestParseHeadingsEmpty(t *testing.T) {
	if got := ParseHeadings("   \n"); got != nil {
		t.Fatalf("got %+v, want nil", got)
	}
}

func TestParseFrontmatter(t *testing.T) {
	content := "---\ntitle: Test\ntags:\n  - a\n  - b\n---\nbody text\n"
	fields, bodyLine := ParseFrontmatter(content)
	if fields == nil {
		t.Fatal("expected frontmatter")
	}
	if fields["title"] != "Test" {
		t.Fatalf("title = %v, want Test", fields["title"])
	}
	if bodyLine != 6 {
		t.Fatalf("bodyLine = %d, want 6", bodyLine)
	}

	if fields, _ := ParseFrontmatter("no fence here\n"); fields != nil {
		t.Fatalf("got %v, want nil for document without frontmatter", fields)
	}
}

func TestExtractWikiLinks(t *testing.T) {
	content := "see [[Other]] and [[Docs/Guide#Setup|the guide]], but not [[]]"
	got := ExtractWikiLinks(content)
	if len(got) != 2 {
		t.Fatalf("got %d links, want 2: %+v", len(got), got)
	}
	if got[0].Target != "Other" || got[0].Section != "" {
		t.Fatalf("links[0] = %+v", got[0])
	}
	if got[1].Target != "Docs/Guide" || got[1].Section != "Setup" {
		t.Fatalf("links[1] = %+v", got[1])
	}
}
