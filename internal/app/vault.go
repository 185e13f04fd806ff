package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Vault is the document collaborator: a directory of markdown files that the
// assistant reads and writes. Edits always replace the whole file content;
// the core never writes partial diffs.
type Vault struct {
	Root string
}

func OpenVault(root string) (*Vault, error) {
	if strings.TrimSpace(root) == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vault root %s is not a directory", abs)
	}
	return &Vault{Root: abs}, nil
}

func normalizeDocPath(path string) string {
	path = filepath.ToSlash(strings.TrimSpace(path))
	if path != "" && !strings.HasSuffix(path, ".md") {
		path += ".md"
	}
	return path
}

// Read loads one document by vault-relative path. The ".md" extension is
// optional in the argument.
func (v *Vault) Read(path string) (*Document, error) {
	rel := normalizeDocPath(path)
	if rel == "" {
		return nil, errors.New("missing document path")
	}
	b, err := os.ReadFile(filepath.Join(v.Root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, err
	}
	content := string(b)
	return &Document{
		Path:     rel,
		Name:     strings.TrimSuffix(filepath.Base(rel), ".md"),
		Content:  content,
		Headings: ParseHeadings(content),
	}, nil
}

// Write replaces the full content of a document, preserving nothing of the
// previous value. Missing parent directories are created.
func (v *Vault) Write(path, content string) error {
	rel := normalizeDocPath(path)
	if rel == "" {
		return errors.New("missing document path")
	}
	full := filepath.Join(v.Root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	return os.WriteFile(full, []byte(content), 0o644)
}

// List returns the vault-relative paths of every markdown file, sorted by
// filepath.WalkDir's lexical order. Hidden directories are skipped.
func (v *Vault) List() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(v.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if path != v.Root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(name, ".md") {
			return nil
		}
		rel, err := filepath.Rel(v.Root, path)
		if err != nil {
			return nil
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// Resolve maps a loose reference (as typed inside [[...]]) to a concrete
// vault path. The ladder is: exact relative path, path plus ".md", then the
// first document whose basename or path suffix matches. An unresolvable
// reference returns ok=false; callers drop it silently.
func (v *Vault) Resolve(ref string) (string, bool) {
	ref = filepath.ToSlash(strings.TrimSpace(ref))
	if ref == "" {
		return "", false
	}

	exists := func(rel string) bool {
		info, err := os.Stat(filepath.Join(v.Root, filepath.FromSlash(rel)))
		return err == nil && !info.IsDir()
	}
	if strings.HasSuffix(ref, ".md") && exists(ref) {
		return ref, true
	}
	if exists(ref + ".md") {
		return ref + ".md", true
	}

	paths, err := v.List()
	if err != nil {
		return "", false
	}
	base := strings.ToLower(ref)
	if !strings.HasSuffix(base, ".md") {
		base += ".md"
	}
	for _, p := range paths {
		lp := strings.ToLower(p)
		if strings.ToLower(filepath.Base(p)) == base || strings.HasSuffix(lp, "/"+base) {
			return p, true
		}
	}
	return "", false
}

// Outlinks lists the resolved outgoing references of one document.
// Links that do not resolve to a vault file are dropped.
func (v *Vault) Outlinks(doc *Document) []WikiLink {
	var out []WikiLink
	for _, link := range ExtractWikiLinks(doc.Content) {
		resolved, ok := v.Resolve(link.Target)
		if !ok {
			continue
		}
		out = append(out, WikiLink{Target: resolved, Section: link.Section})
	}
	return out
}

// Backlinks lists the paths of documents that link to the given path.
// This is a full-vault scan; vaults here are small personal note
// collections, not corpora.
func (v *Vault) Backlinks(path string) []string {
	target := normalizeDocPath(path)
	paths, err := v.List()
	if err != nil {
		return nil
	}
	var back []string
	for _, p := range paths {
		if p == target {
			continue
		}
		doc, err := v.Read(p)
		if err != nil {
			continue
		}
		for _, link := range v.Outlinks(doc) {
			if link.Target == target {
				back = append(back, p)
				break
			}
		}
	}
	return back
}
