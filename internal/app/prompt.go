package app

import (
	"fmt"
	"strings"
)

// PromptConfig bounds one prompt build. Zero values are filled from the
// application Config before use.
type PromptConfig struct {
	Temperature      float64
	MaxTokens        int
	MaxContextLines  int
	MaxPromptTokens  int
	IncludeHistory   bool
	IncludeStructure bool
}

// GeneratedPrompt is the rendered system/user prompt pair handed to the
// completion collaborator. It is a pure output value and is never persisted.
type GeneratedPrompt struct {
	SystemPrompt string
	UserPrompt   string
	Context      string
	Temperature  float64
	MaxTokens    int
}

const systemPreamble = `You are a careful document-editing assistant working inside a markdown note.

Editing guidelines:
- Output ONLY the changed or new content, never the whole document unless asked for the whole document.
- Preserve the existing markdown formatting, heading levels, and list styles.
- When both a named location and a cursor position are given, prefer the named location.
- Do not add commentary, preamble, or code fences around your output.`

// actionTaskBlock returns the per-action task description appended to the
// system preamble. Each Action value has exactly one block.
func actionTaskBlock(action Action) string {
	switch action {
	case ActionAdd:
		return `Task: ADD new content. Write new material that fits the document's tone and structure. Output only the new content to insert.`
	case ActionDelete:
		return `Task: DELETE content. Identify exactly what should be removed and output the document region with that content removed. Remove nothing else.`
	case ActionGrammar:
		return `Task: FIX grammar, spelling, and punctuation. Change wording only where needed for correctness. Output only the corrected text.`
	case ActionRewrite:
		return `Task: REWRITE content. Preserve the meaning while improving clarity and flow. Output only the rewritten text.`
	case ActionMetadata:
		return `Task: UPDATE document metadata. Output only a JSON object of frontmatter property updates, for example {"tags": ["a", "b"]}. No prose.`
	default: // edit
		return `Task: EDIT existing content. Apply the requested change as narrowly as possible. Output only the edited text.`
	}
}

// PromptBuilder renders action- and target-specific prompt pairs from a
// parsed command and a document snapshot.
type PromptBuilder struct{}

func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

// BuildPrompt assembles the system and user prompts for one command.
// conversationContext is the pre-rendered history block (may be empty) and
// is only included when cfg.IncludeHistory is set.
func (b *PromptBuilder) BuildPrompt(cmd EditCommand, doc DocumentContext, cfg PromptConfig, conversationContext string) GeneratedPrompt {
	system := systemPreamble + "\n\n" + actionTaskBlock(cmd.Action)
	context := b.buildContext(cmd, doc, cfg, conversationContext)

	var user strings.Builder
	user.WriteString(context)
	user.WriteString("\n\n")
	user.WriteString("USER REQUEST: " + cmd.Instruction)

	if cmd.Target == TargetSection && cmd.Location != "" {
		fmt.Fprintf(&user, "\n\nThe request names the %q section; apply the change there rather than at the cursor.", cmd.Location)
	}
	if cmd.Context != "" {
		user.WriteString("\n\nDirectives: " + cmd.Context)
	}
	if focus := b.targetFocus(cmd, doc); focus != "" {
		user.WriteString("\n\n" + focus)
	}
	if out := actionOutputInstruction(cmd.Action); out != "" {
		user.WriteString("\n\n" + out)
	}

	return GeneratedPrompt{
		SystemPrompt: system,
		UserPrompt:   user.String(),
		Context:      context,
		Temperature:  cfg.Temperature,
		MaxTokens:    cfg.MaxTokens,
	}
}

// buildContext renders the context block: document identity, optional
// history and structure, then the relevant document content. When the
// document exceeds cfg.MaxContextLines, only the tail is included: recent
// content is assumed most relevant to an edit near the end or cursor, and
// this window is the single content-size safety valve at the
// single-document level.
func (b *PromptBuilder) buildContext(cmd EditCommand, doc DocumentContext, cfg PromptConfig, conversationContext string) string {
	var parts []string
	parts = append(parts, "Document: "+doc.Name)

	if cfg.IncludeHistory && strings.TrimSpace(conversationContext) != "" {
		parts = append(parts, "CONVERSATION HISTORY:\n"+conversationContext)
	}

	if cfg.IncludeStructure && len(doc.Headings) > 0 {
		var outline strings.Builder
		outline.WriteString("DOCUMENT STRUCTURE:")
		for _, h := range doc.Headings {
			outline.WriteString("\n" + strings.Repeat("  ", h.Level-1) + "- " + h.Text)
		}
		parts = append(parts, outline.String())
	}

	if cmd.Target == TargetSelection && doc.SelectedText != "" {
		parts = append(parts, "SELECTED TEXT:\n"+doc.SelectedText)
	}

	if cmd.Target == TargetSection && cmd.Location != "" {
		if sec, ok := FindSection(doc.Content, doc.Headings, cmd.Location); ok {
			parts = append(parts, fmt.Sprintf("TARGET SECTION (%s):\n%s", cmd.Location, sec.Text))
		} else {
			// Let the caller retry with a valid name instead of aborting.
			parts = append(parts, "The requested section was not found. Available sections:\n- "+
				strings.Join(SectionPaths(doc.Headings), "\n- "))
		}
	}

	if cmd.Target == TargetParagraph && doc.SurroundingLines != "" {
		parts = append(parts, "SURROUNDING LINES:\n"+doc.SurroundingLines)
	}

	lines := strings.Split(doc.Content, "\n")
	if cfg.MaxContextLines > 0 && len(lines) > cfg.MaxContextLines {
		tail := lines[len(lines)-cfg.MaxContextLines:]
		parts = append(parts, fmt.Sprintf("RECENT CONTENT (last %d lines):\n%s", cfg.MaxContextLines, strings.Join(tail, "\n")))
	} else {
		parts = append(parts, "FULL DOCUMENT:\n"+doc.Content)
	}

	return strings.Join(parts, "\n\n")
}

// targetFocus returns the fixed focus instruction for the command's target.
// A section target with a resolvable location also gets an action-specific
// sub-instruction.
func (b *PromptBuilder) targetFocus(cmd EditCommand, doc DocumentContext) string {
	switch cmd.Target {
	case TargetSelection:
		return "Focus on the selected text only; the rest of the document is context."
	case TargetDocument:
		return "The request applies to the document as a whole."
	case TargetEnd:
		return "Place the result at the end of the document."
	case TargetParagraph:
		return "Focus on the paragraph around the cursor; the surrounding lines show its neighborhood."
	case TargetSection:
		if cmd.Location == "" {
			return "Focus on the named section."
		}
		if _, ok := FindSection(doc.Content, doc.Headings, cmd.Location); !ok {
			return "The named section could not be resolved; treat the request as document-level."
		}
		switch cmd.Action {
		case ActionAdd:
			return "Focus on the target section. Add the new content WITHIN this section, after its header."
		case ActionDelete:
			return "Focus on the target section. Remove only the content the request describes."
		default:
			return "Focus on the target section. Change only the content of this section."
		}
	default: // cursor
		return "Apply the change at the cursor position."
	}
}

// actionOutputInstruction is the trailing output-shape reminder per action.
func actionOutputInstruction(action Action) string {
	switch action {
	case ActionGrammar:
		return "Provide only the corrected text."
	case ActionRewrite:
		return "Provide only the rewritten text."
	case ActionMetadata:
		return "Provide only the JSON object of property updates."
	case ActionAdd:
		return "Provide only the new content to insert."
	case ActionDelete:
		return "Provide only the remaining text for the affected region."
	default:
		return "Provide only the edited text."
	}
}

// EstimatePromptTokens sums the token estimate over the prompt pair plus
// the standalone context block.
func EstimatePromptTokens(p GeneratedPrompt) int {
	return EstimateTokens(p.SystemPrompt) + EstimateTokens(p.UserPrompt) + EstimateTokens(p.Context)
}

// ValidatePrompt returns advisory issues with a generated prompt. The
// builder never enforces these itself; the caller decides whether to send
// anyway, shrink the context, or refuse.
func ValidatePrompt(p GeneratedPrompt, cfg PromptConfig) []string {
	var issues []string
	if strings.TrimSpace(p.SystemPrompt) == "" {
		issues = append(issues, "system prompt is empty")
	}
	if strings.TrimSpace(p.UserPrompt) == "" {
		issues = append(issues, "user prompt is empty")
	}
	if cfg.MaxPromptTokens > 0 {
		if est := EstimatePromptTokens(p); est > cfg.MaxPromptTokens {
			issues = append(issues, fmt.Sprintf("estimated %d tokens exceeds ceiling %d", est, cfg.MaxPromptTokens))
		}
	}
	if p.Temperature < 0 || p.Temperature > 1 {
		issues = append(issues, fmt.Sprintf("temperature %.2f outside [0,1]", p.Temperature))
	}
	if p.MaxTokens <= 0 {
		issues = append(issues, "max tokens must be positive")
	}
	return issues
}
