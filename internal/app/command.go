package app

import (
	"regexp"
	"strings"
)

// Action is the category of document mutation the user asked for.
type Action string

const (
	ActionAdd      Action = "add"
	ActionEdit     Action = "edit"
	ActionDelete   Action = "delete"
	ActionGrammar  Action = "grammar"
	ActionRewrite  Action = "rewrite"
	ActionMetadata Action = "metadata"
)

// Target is the scope of the document an action applies to.
type Target string

const (
	TargetSelection Target = "selection"
	TargetCursor    Target = "cursor"
	TargetDocument  Target = "document"
	TargetEnd       Target = "end"
	TargetSection   Target = "section"
	TargetParagraph Target = "paragraph"
)

// EditCommand is the structured form of one user request. It is built once
// per turn by ParseCommand and consumed once by the prompt builder; nothing
// mutates it afterwards.
type EditCommand struct {
	Action      Action `json:"action"`
	Target      Target `json:"target"`
	Location    string `json:"location,omitempty"`
	Instruction string `json:"instruction"`
	Context     string `json:"context,omitempty"`
}

type actionRule struct {
	action   Action
	patterns []*regexp.Regexp
}

// actionRules is evaluated top to bottom; the first matching row wins.
// The slice order encodes precedence: grammar and rewrite are more specific
// than edit, and the tag-colon metadata row must sit above the generic add
// row so "add tags: x" is not mistaken for an add.
var actionRules = []actionRule{
	{ActionGrammar, []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:fix|check|correct)\b.*\b(?:grammar|spelling|typos?|punctuation)\b`),
		regexp.MustCompile(`(?i)\bproofread\b`),
		regexp.MustCompile(`(?i)\bgrammar\b`),
	}},
	{ActionRewrite, []*regexp.Regexp{
		regexp.MustCompile(`(?i)\brewrite\b`),
		regexp.MustCompile(`(?i)\brephrase\b`),
		regexp.MustCompile(`(?i)\breword\b`),
		regexp.MustCompile(`(?i)\bsay (?:this|it) differently\b`),
	}},
	{ActionDelete, []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:delete|remove|erase|strip out)\b`),
		regexp.MustCompile(`(?i)\bget rid of\b`),
	}},
	{ActionMetadata, []*regexp.Regexp{
		// Tag-specific forms of "add" belong to metadata, so this row must
		// be checked before the generic add row below.
		regexp.MustCompile(`(?i)\badd\s+tags?\s*:`),
		regexp.MustCompile(`(?i)\btags?\s*:\s*\S`),
	}},
	{ActionAdd, []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:add|insert|append|include)\b`),
		regexp.MustCompile(`(?i)\bwrite\b.*\b(?:about|on|covering)\b`),
	}},
	{ActionEdit, []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:edit|change|modify|update|revise|improve|adjust|polish)\b`),
	}},
	{ActionMetadata, []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:frontmatter|metadata|properties|aliases)\b`),
		regexp.MustCompile(`(?i)\bset\s+(?:the\s+)?(?:title|author|date|status)\b`),
	}},
}

// secondaryActionRules catch softer phrasings that the primary table misses.
// Same ordering contract as actionRules.
var secondaryActionRules = []actionRule{
	{ActionEdit, []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bmake\b.*\b(?:clearer|shorter|longer|better|simpler|stronger)\b`),
		regexp.MustCompile(`(?i)\b(?:clean|tighten) (?:this |it )?up\b`),
	}},
	{ActionRewrite, []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bin (?:a |an )?(?:different|another) (?:way|tone|style)\b`),
	}},
	{ActionDelete, []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:cut|drop)\b.*\b(?:section|paragraph|sentence|part|line)\b`),
	}},
}

// detectAction maps raw input to an Action. Classification never fails: if
// neither rule table matches, it degrades to the most conservative action,
// a plain edit.
func detectAction(input string) Action {
	for _, rule := range actionRules {
		for _, re := range rule.patterns {
			if re.MatchString(input) {
				return rule.action
			}
		}
	}
	for _, rule := range secondaryActionRules {
		for _, re := range rule.patterns {
			if re.MatchString(input) {
				return rule.action
			}
		}
	}
	return ActionEdit
}

var (
	selectionTargetRe = regexp.MustCompile(`(?i)\b(?:selected text|selection|highlighted text|what i(?:'ve)? selected)\b`)
	documentTargetRe  = regexp.MustCompile(`(?i)\b(?:entire|whole|full)\s+(?:document|note|file|doc|thing)\b|\bthroughout\b`)
	endTargetRe       = regexp.MustCompile(`(?i)\b(?:at|to)\s+the\s+(?:end|bottom)\b`)
	paragraphTargetRe = regexp.MustCompile(`(?i)\bthis\s+paragraph\b`)
)

// detectTarget resolves the scope for an action. Explicit phrases always win;
// otherwise each action has a conservative default, upgraded to the live
// selection for edit/grammar/delete when one exists.
func detectTarget(input string, action Action, location string, hasSelection bool) Target {
	switch {
	case selectionTargetRe.MatchString(input):
		return TargetSelection
	case documentTargetRe.MatchString(input):
		return TargetDocument
	case endTargetRe.MatchString(input):
		return TargetEnd
	case paragraphTargetRe.MatchString(input):
		return TargetParagraph
	case location != "":
		return TargetSection
	}

	switch action {
	case ActionAdd:
		return TargetEnd
	case ActionRewrite:
		return TargetEnd
	case ActionMetadata:
		return TargetDocument
	case ActionGrammar:
		if hasSelection {
			return TargetSelection
		}
		return TargetDocument
	default: // edit, delete
		if hasSelection {
			return TargetSelection
		}
		return TargetCursor
	}
}

// locationPatterns are tried in order; the first capture group that matches
// wins. All patterns capture the bare section name without quotes.
var locationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:after|before|under|within|in|to)\s+(?:the\s+)?["'“]([^"'“”]+)["'”]\s+(?:section|heading|part)`),
	regexp.MustCompile(`(?i)(?:after|before|under|within)\s+the\s+([A-Za-z0-9 /&-]+?)\s+(?:section|heading|part)\b`),
	regexp.MustCompile(`(?i)(?:section|heading)\s+(?:called|named|titled)\s+["'“]([^"'“”]+)["'”]`),
	regexp.MustCompile(`(?i)["'“]([^"'“”]+)["'”]\s+(?:section|heading)`),
}

// extractLocation pulls a section/heading name out of the instruction.
// Slash notation ("Projects/Active") is normalized to the hierarchical
// "Projects::Active" form the section locator expects.
func extractLocation(input string) string {
	for _, re := range locationPatterns {
		if m := re.FindStringSubmatch(input); m != nil {
			name := strings.TrimSpace(m[1])
			if name == "" {
				continue
			}
			name = strings.ReplaceAll(name, "/", "::")
			return name
		}
	}
	return ""
}

var styleKeywords = []string{"formal", "casual", "technical", "academic", "professional", "friendly", "conversational"}

// extractContext scans the instruction for style, length and structural cues
// and folds them into a free-text directive string appended to the prompt.
func extractContext(input string) string {
	lower := strings.ToLower(input)
	var directives []string

	for _, style := range styleKeywords {
		if strings.Contains(lower, style) {
			directives = append(directives, "use a "+style+" tone")
			break
		}
	}

	switch {
	case strings.Contains(lower, "brief") || strings.Contains(lower, "short") || strings.Contains(lower, "concise"):
		directives = append(directives, "keep it brief")
	case strings.Contains(lower, "detailed") || strings.Contains(lower, "thorough") || strings.Contains(lower, "comprehensive"):
		directives = append(directives, "provide detailed content")
	}

	if strings.Contains(lower, "bullet") {
		directives = append(directives, "use bullet points")
	}
	if strings.Contains(lower, "numbered") {
		directives = append(directives, "use a numbered list")
	}
	if strings.Contains(lower, "example") {
		directives = append(directives, "include examples")
	}

	return strings.Join(directives, "; ")
}

// ParseCommand turns a raw natural-language request into an EditCommand.
// It never returns an error: unclassifiable input degrades to a plain edit
// at the default target, and feasibility problems are surfaced separately
// through ValidateCommand.
func ParseCommand(input string, hasSelection bool) EditCommand {
	instruction := strings.TrimSpace(input)
	action := detectAction(instruction)
	location := extractLocation(instruction)
	target := detectTarget(instruction, action, location, hasSelection)
	if target != TargetSection {
		location = ""
	}
	return EditCommand{
		Action:      action,
		Target:      target,
		Location:    location,
		Instruction: instruction,
		Context:     extractContext(instruction),
	}
}

// ValidationResult reports command feasibility. Invalid commands are values,
// not errors: the caller decides whether to re-prompt or degrade.
type ValidationResult struct {
	Valid bool
	Error string
}

// ValidateCommand checks that the parsed command can actually run against
// the current editor state.
func ValidateCommand(cmd EditCommand, hasSelection bool) ValidationResult {
	if cmd.Target == TargetSelection && !hasSelection {
		return ValidationResult{Error: "selection-required: the request targets the selection but nothing is selected"}
	}
	if cmd.Action == ActionAdd && cmd.Target == TargetSelection {
		return ValidationResult{Error: "invalid-combination: cannot add to a selection; target the end or a section instead"}
	}
	return ValidationResult{Valid: true}
}

// Conjunctions that separate chained requests. Longer phrases sit first so
// "and then" is consumed before a bare "then".
var multiCommandSplitRe = regexp.MustCompile(`(?i)\s*(?:,\s*)?\b(?:and then|after that|then|also|next|additionally)\b[,:]?\s+`)

// ParseMultipleCommands splits a chained request ("fix the grammar, then add
// a summary") into independently parsed commands. A request with no
// conjunctions yields a single-element slice.
func ParseMultipleCommands(input string, hasSelection bool) []EditCommand {
	segments := multiCommandSplitRe.Split(strings.TrimSpace(input), -1)
	commands := make([]EditCommand, 0, len(segments))
	for _, seg := range segments {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		commands = append(commands, ParseCommand(seg, hasSelection))
	}
	if len(commands) == 0 {
		commands = append(commands, ParseCommand(input, hasSelection))
	}
	return commands
}
