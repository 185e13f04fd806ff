package app

import (
	"context"
	"strings"
	"testing"
)

func newTestApp(t *testing.T, files map[string]string) (*Application, *MockCompleter) {
	t.Helper()
	v := testVault(t, files)
	cfg := DefaultConfig()
	mock := NewMockCompleter()
	log := testLogger()
	store := NewConversationStore(NewFileBackend(t.TempDir()), cfg.StoreConfig(), log)
	t.Cleanup(store.Close)
	return &Application{
		Config:    cfg,
		Vault:     v,
		Store:     store,
		Completer: mock,
		Builder:   NewPromptBuilder(),
		Resolver:  NewAutoContextResolver(v, cfg.AutoContextConfig(), log),
		Log:       log,
	}, mock
}

func TestHandleRequestAddFlow(t *testing.T) {
	app, mock := newTestApp(t, map[string]string{"note.md": "# Note\nbody line\n"})

	out, err := app.HandleRequest(context.Background(), "note.md", "add a summary at the end", "")
	if err != nil {
		t.Fatal(err)
	}
	if out.Intent.Type != IntentEditing {
		t.Fatalf("Intent = %s, want editing", out.Intent.Type)
	}
	if !out.Applied {
		t.Fatalf("edit not applied: %+v", out)
	}
	if mock.Calls != 1 {
		t.Fatalf("mock calls = %d, want 1", mock.Calls)
	}
	if !strings.Contains(out.NewContent, "Mock content added") {
		t.Fatalf("NewContent = %q", out.NewContent)
	}

	// The write went through the vault, not just the outcome.
	doc, err := app.Vault.Read("note.md")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Content != out.NewContent {
		t.Fatalf("vault content %q differs from outcome %q", doc.Content, out.NewContent)
	}

	msgs := app.Store.GetRecentMessages("note.md", 0)
	if len(msgs) != 2 || msgs[0].Role != RoleUser || msgs[1].Role != RoleAssistant {
		t.Fatalf("messages = %+v, want user then assistant", msgs)
	}
	if msgs[1].Result == "" {
		t.Fatal("assistant message missing the raw result")
	}
}

func TestHandleRequestGrammarRoundTripsSelection(t *testing.T) {
	app, _ := newTestApp(t, map[string]string{"note.md": "before\nteh sentence\nafter\n"})

	out, err := app.HandleRequest(context.Background(), "note.md", "fix grammar", "teh sentence")
	if err != nil {
		t.Fatal(err)
	}
	if out.Command.Target != TargetSelection {
		t.Fatalf("Target = %s, want selection", out.Command.Target)
	}
	if !out.Applied {
		t.Fatalf("edit not applied: %+v", out)
	}
	// The mock echoes the selection, so the document is unchanged.
	if out.NewContent != "before\nteh sentence\nafter\n" {
		t.Fatalf("NewContent = %q", out.NewContent)
	}
}

func TestHandleRequestValidationFailureSkipsCompletion(t *testing.T) {
	app, mock := newTestApp(t, map[string]string{"note.md": "# Note\nbody\n"})

	out, err := app.HandleRequest(context.Background(), "note.md", "improve the selected text", "")
	if err != nil {
		t.Fatal(err)
	}
	if out.ValidationError == "" {
		t.Fatalf("expected a validation error: %+v", out)
	}
	if !strings.Contains(out.ValidationError, "selection-required") {
		t.Fatalf("ValidationError = %q", out.ValidationError)
	}
	if mock.Calls != 0 {
		t.Fatalf("mock calls = %d, want 0 for a rejected command", mock.Calls)
	}
	if out.Applied {
		t.Fatal("rejected command must not apply")
	}
	if msgs := app.Store.GetRecentMessages("note.md", 0); len(msgs) != 0 {
		t.Fatalf("rejected command recorded messages: %+v", msgs)
	}
}

func TestHandleRequestConsultation(t *testing.T) {
	app, mock := newTestApp(t, map[string]string{"note.md": "# Note\nbody\n"})

	out, err := app.HandleRequest(context.Background(), "note.md", "I'm feeling stuck on the draft", "")
	if err != nil {
		t.Fatal(err)
	}
	if out.Intent.Type != IntentConsultation {
		t.Fatalf("Intent = %s, want consultation", out.Intent.Type)
	}
	if out.Applied || out.Command != nil {
		t.Fatalf("consultation produced an edit: %+v", out)
	}
	if out.Response == "" {
		t.Fatal("consultation produced no reply")
	}
	if mock.Calls != 1 {
		t.Fatalf("mock calls = %d, want 1", mock.Calls)
	}

	doc, _ := app.Vault.Read("note.md")
	if doc.Content != "# Note\nbody\n" {
		t.Fatalf("consultation changed the document: %q", doc.Content)
	}
	if msgs := app.Store.GetRecentMessages("note.md", 0); len(msgs) != 2 {
		t.Fatalf("messages = %+v, want the exchange recorded", msgs)
	}
}

func TestHandleRequestMetadataFlow(t *testing.T) {
	app, _ := newTestApp(t, map[string]string{"note.md": "plain body\n"})

	out, err := app.HandleRequest(context.Background(), "note.md", "tags: daily, review", "")
	if err != nil {
		t.Fatal(err)
	}
	if out.Command.Action != ActionMetadata {
		t.Fatalf("Action = %s, want metadata", out.Command.Action)
	}
	if !out.Applied {
		t.Fatalf("metadata update not applied: %+v", out)
	}
	if !strings.HasPrefix(out.NewContent, "---\ntags:") {
		t.Fatalf("NewContent = %q, want created frontmatter", out.NewContent)
	}
	if !strings.Contains(out.NewContent, "plain body") {
		t.Fatalf("body lost: %q", out.NewContent)
	}
}

func TestHandleRequestRegistersInlineRefs(t *testing.T) {
	app, _ := newTestApp(t, map[string]string{
		"note.md": "# Note\nbody\n",
		"ref.md":  "# Ref\nreference content that is long enough to include",
	})

	out, err := app.HandleRequest(context.Background(), "note.md", "add a point from [[ref]] at the end", "")
	if err != nil {
		t.Fatal(err)
	}
	if !out.Applied {
		t.Fatalf("edit not applied: %+v", out)
	}

	refs := app.Store.GetContextDocuments("note.md")
	if len(refs) != 1 || refs[0].Path != "ref.md" {
		t.Fatalf("refs = %+v, want ref.md attached", refs)
	}
	// The reference syntax is stripped before parsing, so the command still
	// reads as an append.
	if out.Command.Action != ActionAdd || out.Command.Target != TargetEnd {
		t.Fatalf("command = %+v, want add/end", out.Command)
	}
}
