package app

import (
	"testing"
)

func TestVaultReadNormalizesExtension(t *testing.T) {
	v := testVault(t, map[string]string{"notes/plan.md": "# Plan\nbody\n"})

	doc, err := v.Read("notes/plan")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Path != "notes/plan.md" || doc.Name != "plan" {
		t.Fatalf("doc = %+v", doc)
	}
	if len(doc.Headings) != 1 || doc.Headings[0].Text != "Plan" {
		t.Fatalf("headings = %+v", doc.Headings)
	}
}

func TestVaultWriteCreatesParents(t *testing.T) {
	v := testVault(t, map[string]string{})
	if err := v.Write("deep/nested/new", "content\n"); err != nil {
		t.Fatal(err)
	}
	doc, err := v.Read("deep/nested/new.md")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Content != "content\n" {
		t.Fatalf("Content = %q", doc.Content)
	}
}

func TestVaultListSkipsHiddenAndNonMarkdown(t *testing.T) {
	v := testVault(t, map[string]string{
		"a.md":           "a",
		"sub/b.md":       "b",
		".obsidian/c.md": "c",
		"notes.txt":      "not markdown",
	})
	got, err := v.List()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a.md", "sub/b.md"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestVaultResolveLadder(t *testing.T) {
	v := testVault(t, map[string]string{
		"plan.md":        "top plan",
		"work/ideas.md":  "ideas",
		"work/Weekly.md": "weekly",
	})
	cases := []struct {
		ref  string
		want string
		ok   bool
	}{
		{"plan.md", "plan.md", true},
		{"plan", "plan.md", true},
		{"ideas", "work/ideas.md", true},
		{"work/ideas", "work/ideas.md", true},
		{"weekly", "work/Weekly.md", true},
		{"missing", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := v.Resolve(tc.ref)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("Resolve(%q) = %q/%v, want %q/%v", tc.ref, got, ok, tc.want, tc.ok)
		}
	}
}

func TestVaultBacklinks(t *testing.T) {
	v := testVault(t, map[string]string{
		"hub.md":    "central note",
		"caller.md": "see [[hub]]",
		"other.md":  "no links here",
	})
	got := v.Backlinks("hub")
	if len(got) != 1 || got[0] != "caller.md" {
		t.Fatalf("Backlinks = %v, want [caller.md]", got)
	}
}
