package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Application wires the pipeline: classify input, parse a command, assemble
// context, call the completion backend, apply the edit, record the turn.
type Application struct {
	Config    Config
	Vault     *Vault
	Store     *ConversationStore
	Completer Completer
	Builder   *PromptBuilder
	Resolver  *AutoContextResolver
	Log       *logrus.Logger
}

// NewApplication assembles the assistant over a vault directory. With mock
// set (or no API key configured) the deterministic mock backend is used, so
// the whole pipeline runs offline.
func NewApplication(cfg Config, vaultRoot, stateRoot string, mock bool) (*Application, error) {
	vault, err := OpenVault(vaultRoot)
	if err != nil {
		return nil, fmt.Errorf("opening vault: %w", err)
	}
	if stateRoot == "" {
		stateRoot = DefaultStateRoot()
	}
	log := NewLogger(stateRoot)
	store := NewConversationStore(NewFileBackend(stateRoot), cfg.StoreConfig(), log)

	var completer Completer
	if mock || cfg.APIKey == "" {
		completer = NewMockCompleter()
	} else {
		completer = NewHTTPCompleter(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.MaxTokens)
	}

	return &Application{
		Config:    cfg,
		Vault:     vault,
		Store:     store,
		Completer: completer,
		Builder:   NewPromptBuilder(),
		Resolver:  NewAutoContextResolver(vault, cfg.AutoContextConfig(), log),
		Log:       log,
	}, nil
}

// Close releases background resources (the store's cleanup task).
func (a *Application) Close() {
	a.Store.Close()
}

// Outcome is the result of one handled request.
type Outcome struct {
	Intent          Classification
	Command         *EditCommand
	Response        string
	ValidationError string
	Applied         bool
	NewContent      string
}

const consultationPreamble = `You are a thoughtful writing companion. The user is sharing their thinking
around a document, not asking for an edit. Respond briefly and helpfully;
do not output replacement document content.`

// HandleRequest runs one user turn against a document. Validation failures
// come back inside the Outcome without touching the completion backend;
// completion errors propagate so the caller never commits a partial turn.
func (a *Application) HandleRequest(ctx context.Context, docPath, input, selectedText string) (*Outcome, error) {
	doc, err := a.Vault.Read(docPath)
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}
	docCtx := doc.Context()
	docCtx.SelectedText = selectedText
	docCtx.SurroundingLines = surroundingLines(doc.Content, docCtx.CursorLine, 3)
	hasSelection := strings.TrimSpace(selectedText) != ""

	cleaned, refs := a.Resolver.ParseInlineRefs(input)
	for _, ref := range refs {
		a.Store.AddContextDocument(doc.Path, ref)
	}
	if cleaned == "" {
		cleaned = input
	}

	intent := ClassifyInput(cleaned)
	if intent.Type == IntentConsultation {
		return a.handleConsultation(ctx, doc, input, cleaned, intent)
	}

	// Ambiguous input fails safe into the editing path, where the parser
	// degrades to a conservative edit command.
	cmd := ParseCommand(cleaned, hasSelection)
	if v := ValidateCommand(cmd, hasSelection); !v.Valid {
		a.Log.WithFields(logrus.Fields{"doc": doc.Path, "error": v.Error}).Info("command rejected")
		return &Outcome{Intent: intent, Command: &cmd, ValidationError: v.Error}, nil
	}

	auto := a.Resolver.BuildAutoContext(doc, a.Store.GetContextDocuments(doc.Path))
	history := a.Store.RenderHistory(doc.Path, a.Config.HistoryMessages)
	prompt := a.Builder.BuildPrompt(cmd, docCtx, a.Config.PromptConfig(), history)

	userPrompt := prompt.UserPrompt
	if block := RenderAutoContext(auto); block != "" {
		userPrompt = block + "\n\n" + userPrompt
	}
	for _, issue := range ValidatePrompt(prompt, a.Config.PromptConfig()) {
		a.Log.WithFields(logrus.Fields{"doc": doc.Path, "issue": issue}).Warn("prompt validation")
	}

	a.Store.AddUserMessage(doc.Path, input, &cmd)

	result, err := a.Completer.Complete(ctx, prompt.SystemPrompt, userPrompt, CompletionOptions{
		Temperature: prompt.Temperature,
		MaxTokens:   prompt.MaxTokens,
	})
	if err != nil {
		// No assistant message is committed for a failed or cancelled call.
		return nil, err
	}

	outcome := &Outcome{Intent: intent, Command: &cmd, Response: result}
	newContent, applyErr := ApplyEdit(docCtx, cmd, result)
	if applyErr != nil {
		a.Log.WithError(applyErr).WithField("doc", doc.Path).Warn("edit not applied")
		a.Store.AddAssistantMessage(doc.Path, result, "")
		outcome.Response = result + "\n(edit was not applied: " + applyErr.Error() + ")"
		return outcome, nil
	}
	if err := a.Vault.Write(doc.Path, newContent); err != nil {
		return nil, fmt.Errorf("writing document: %w", err)
	}

	a.Store.AddAssistantMessage(doc.Path, summarizeEdit(cmd), result)
	outcome.Applied = true
	outcome.NewContent = newContent
	return outcome, nil
}

func (a *Application) handleConsultation(ctx context.Context, doc *Document, original, cleaned string, intent Classification) (*Outcome, error) {
	history := a.Store.RenderHistory(doc.Path, a.Config.HistoryMessages)
	user := "Document: " + doc.Name
	if history != "" {
		user += "\n\nCONVERSATION HISTORY:\n" + history
	}
	user += "\n\n" + cleaned

	a.Store.AddUserMessage(doc.Path, original, nil)
	reply, err := a.Completer.Complete(ctx, consultationPreamble, user, CompletionOptions{
		Temperature: a.Config.Temperature,
		MaxTokens:   a.Config.MaxTokens,
	})
	if err != nil {
		return nil, err
	}
	a.Store.AddAssistantMessage(doc.Path, reply, "")
	return &Outcome{Intent: intent, Response: reply}, nil
}

// summarizeEdit is the short assistant-side chat line describing what was
// done; the raw completion lives in the message's Result field.
func summarizeEdit(cmd EditCommand) string {
	where := string(cmd.Target)
	if cmd.Location != "" {
		where = fmt.Sprintf("%s %q", cmd.Target, cmd.Location)
	}
	return fmt.Sprintf("Applied %s to %s.", cmd.Action, where)
}

// surroundingLines returns n lines either side of the given line, for
// paragraph-targeted prompts.
func surroundingLines(content string, line, n int) string {
	lines := strings.Split(content, "\n")
	if len(lines) == 0 {
		return ""
	}
	start := line - n
	if start < 0 {
		start = 0
	}
	end := line + n + 1
	if end > len(lines) {
		end = len(lines)
	}
	if start >= end {
		return ""
	}
	return strings.Join(lines[start:end], "\n")
}
