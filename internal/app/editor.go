package app

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ApplyEdit folds a completion result back into the document and returns the
// new full content. The editor collaborator only ever receives whole-value
// replacements; partial diffs are never produced here.
func ApplyEdit(doc DocumentContext, cmd EditCommand, result string) (string, error) {
	result = strings.TrimRight(stripCodeFence(result), "\n")

	if cmd.Action == ActionMetadata {
		return applyMetadata(doc.Content, result)
	}

	if cmd.Action == ActionAdd {
		return applyAdd(doc, cmd, result)
	}

	// edit, delete, grammar, rewrite: replace the targeted region.
	switch cmd.Target {
	case TargetSelection:
		if doc.SelectedText == "" {
			return "", fmt.Errorf("selection target with no selected text")
		}
		if !strings.Contains(doc.Content, doc.SelectedText) {
			return "", fmt.Errorf("selected text no longer present in document")
		}
		return strings.Replace(doc.Content, doc.SelectedText, result, 1), nil

	case TargetSection:
		sec, ok := FindSection(doc.Content, doc.Headings, cmd.Location)
		if !ok {
			// Resolution failure degrades to document-level targeting, the
			// same fallback the prompt told the model about.
			return replaceWhole(doc.Content, result, cmd.Action), nil
		}
		lines := strings.Split(doc.Content, "\n")
		var out []string
		out = append(out, lines[:sec.StartLine]...)
		if result != "" {
			out = append(out, strings.Split(result, "\n")...)
		}
		out = append(out, lines[sec.EndLine:]...)
		return strings.Join(out, "\n"), nil

	case TargetDocument, TargetEnd:
		return replaceWhole(doc.Content, result, cmd.Action), nil

	default: // cursor, paragraph
		lines := strings.Split(doc.Content, "\n")
		line := doc.CursorLine
		if line < 0 || line >= len(lines) {
			line = len(lines) - 1
		}
		var out []string
		out = append(out, lines[:line]...)
		if result != "" {
			out = append(out, strings.Split(result, "\n")...)
		}
		out = append(out, lines[line+1:]...)
		return strings.Join(out, "\n"), nil
	}
}

func replaceWhole(content, result string, action Action) string {
	if action == ActionDelete && result == "" {
		return ""
	}
	if result == "" {
		return content
	}
	return result
}

// applyAdd inserts new content rather than replacing anything.
func applyAdd(doc DocumentContext, cmd EditCommand, result string) (string, error) {
	if result == "" {
		return doc.Content, nil
	}
	switch cmd.Target {
	case TargetSection:
		sec, ok := FindSection(doc.Content, doc.Headings, cmd.Location)
		if !ok {
			return appendToEnd(doc.Content, result), nil
		}
		// Within the section, after its existing content.
		lines := strings.Split(doc.Content, "\n")
		var out []string
		out = append(out, lines[:sec.EndLine]...)
		out = append(out, "", result)
		out = append(out, lines[sec.EndLine:]...)
		return strings.Join(out, "\n"), nil
	case TargetCursor, TargetParagraph:
		lines := strings.Split(doc.Content, "\n")
		line := doc.CursorLine
		if line < 0 || line >= len(lines) {
			return appendToEnd(doc.Content, result), nil
		}
		var out []string
		out = append(out, lines[:line+1]...)
		out = append(out, result)
		out = append(out, lines[line+1:]...)
		return strings.Join(out, "\n"), nil
	default: // end, document
		return appendToEnd(doc.Content, result), nil
	}
}

func appendToEnd(content, result string) string {
	trimmed := strings.TrimRight(content, "\n")
	if trimmed == "" {
		return result + "\n"
	}
	return trimmed + "\n\n" + result + "\n"
}

// applyMetadata merges a JSON object of property updates into the document's
// YAML frontmatter, creating the frontmatter block when absent. Existing
// properties not named in the update are preserved.
func applyMetadata(content, result string) (string, error) {
	var updates map[string]any
	if err := json.Unmarshal([]byte(extractJSONObject(result)), &updates); err != nil {
		return "", fmt.Errorf("metadata result is not a JSON object: %w", err)
	}
	if len(updates) == 0 {
		return content, nil
	}

	fields, bodyLine := ParseFrontmatter(content)
	if fields == nil {
		fields = map[string]any{}
	}
	for k, v := range updates {
		fields[k] = v
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var block strings.Builder
	block.WriteString("---\n")
	for _, k := range keys {
		line, err := yaml.Marshal(map[string]any{k: fields[k]})
		if err != nil {
			return "", err
		}
		block.Write(line)
	}
	block.WriteString("---\n")

	body := content
	if bodyLine > 0 {
		lines := strings.Split(content, "\n")
		if bodyLine < len(lines) {
			body = strings.Join(lines[bodyLine:], "\n")
		} else {
			body = ""
		}
	}
	return block.String() + body, nil
}

// stripCodeFence unwraps a result the model wrapped in ``` fences despite
// instructions.
func stripCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return s
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return s
	}
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		return strings.Join(lines[1:len(lines)-1], "\n")
	}
	return s
}

// extractJSONObject pulls the outermost {...} from a result that may carry
// stray prose around the object.
func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
