package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"quill-agent/internal/app"
	"quill-agent/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

const version = "0.3.0"

var (
	flagVault  string
	flagState  string
	flagConfig string
	flagMock   bool
)

func loadConfig() (app.Config, error) {
	path := flagConfig
	if path == "" {
		path = app.DefaultConfigPath()
	}
	cfg, err := app.LoadConfig(path)
	if err != nil {
		return cfg, err
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// applyEnvOverrides fills credentials from the environment when the config
// file leaves them empty. QUILL_API_KEY wins over the provider's own variable.
func applyEnvOverrides(cfg *app.Config) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("QUILL_API_KEY")
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
}

func newApplication() (*app.Application, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return app.NewApplication(cfg, flagVault, flagState, flagMock)
}

func runTUI(cmd *cobra.Command, args []string) error {
	application, err := newApplication()
	if err != nil {
		return err
	}

	docPath := args[0]
	if _, err := application.Vault.Read(docPath); err != nil {
		return fmt.Errorf("opening %s: %w", docPath, err)
	}

	p := tea.NewProgram(tui.New(application, docPath), tea.WithAltScreen())
	_, err = p.Run()
	return err
}

func runEdit(cmd *cobra.Command, args []string) error {
	application, err := newApplication()
	if err != nil {
		return err
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	docPath := args[0]
	input := strings.Join(args[1:], " ")
	selection, _ := cmd.Flags().GetString("selection")

	outcome, err := application.HandleRequest(ctx, docPath, input, selection)
	if err != nil {
		return err
	}
	if outcome.ValidationError != "" {
		return fmt.Errorf("%s", outcome.ValidationError)
	}

	fmt.Println(outcome.Response)
	if outcome.Applied {
		fmt.Fprintf(os.Stderr, "applied %s to %s\n", outcome.Command.Action, docPath)
	}
	return nil
}

func runSessions(cmd *cobra.Command, args []string) error {
	application, err := newApplication()
	if err != nil {
		return err
	}
	defer application.Close()

	var paths []string
	if len(args) == 1 {
		paths = []string{args[0]}
	} else {
		paths = application.Store.ListConversations()
	}
	if len(paths) == 0 {
		fmt.Println("no conversations yet")
		return nil
	}
	for _, path := range paths {
		stats := application.Store.GetStats(path)
		line := fmt.Sprintf("%s  %d messages, %d edits", path, stats.MessageCount, stats.EditCount)
		if stats.TopAction != "" {
			line += ", mostly " + stats.TopAction
		}
		fmt.Println(line)
	}
	return nil
}

func generateCompletion(shell string) error {
	switch shell {
	case "bash":
		fmt.Println("# bash completion for quill")
		fmt.Println("_quill_completions() {")
		fmt.Println("    local cur=\"${COMP_WORDS[COMP_CWORD]}\"")
		fmt.Println("    if [[ $COMP_CWORD -eq 1 ]]; then")
		fmt.Println("        COMPREPLY=( $(compgen -W \"edit sessions completion help --vault --state --config --mock\" -- \"${cur}\") )")
		fmt.Println("    else")
		fmt.Println("        COMPREPLY=( $(compgen -f -X '!*.md' -- \"${cur}\") )")
		fmt.Println("    fi")
		fmt.Println("    return 0")
		fmt.Println("}")
		fmt.Println("complete -F _quill_completions quill")
	case "zsh":
		fmt.Println("# zsh completion for quill")
		fmt.Println("compdef _quill quill")
		fmt.Println("_quill() {")
		fmt.Println("    _arguments -C \\")
		fmt.Println("        '--vault[vault directory]:directory:_directories' \\")
		fmt.Println("        '--mock[use the offline mock backend]' \\")
		fmt.Println("        '1:command:(edit sessions completion)' \\")
		fmt.Println("        '*:document:_files -g \"*.md\"'")
		fmt.Println("}")
	case "fish":
		fmt.Println("# fish completion for quill")
		fmt.Println("complete -c quill -f -a 'edit sessions completion'")
		fmt.Println("complete -c quill -l vault -d 'Vault directory' -r")
		fmt.Println("complete -c quill -l mock -d 'Use the offline mock backend'")
	default:
		return fmt.Errorf("unsupported shell: %s", shell)
	}
	return nil
}

func main() {
	root := &cobra.Command{
		Use:     "quill [document]",
		Short:   "quill - conversational markdown editing for your vault",
		Long:    "quill is a document-editing assistant for a folder of markdown notes.\n\nRun with a document path to open the chat UI, or use 'quill edit' for a one-shot edit from the shell. Without an API key quill runs against a deterministic mock backend.",
		Version: version,
		Args:    cobra.ExactArgs(1),
		RunE:    runTUI,
	}
	root.PersistentFlags().StringVar(&flagVault, "vault", ".", "vault directory holding the markdown documents")
	root.PersistentFlags().StringVar(&flagState, "state", "", "state directory for conversations and logs (default: XDG data dir)")
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "config file path (default: XDG config dir)")
	root.PersistentFlags().BoolVar(&flagMock, "mock", false, "use the offline mock backend")

	edit := &cobra.Command{
		Use:   "edit <document> <instruction...>",
		Short: "Apply one edit from the command line",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runEdit,
	}
	edit.Flags().String("selection", "", "text to treat as the current selection")

	sessions := &cobra.Command{
		Use:   "sessions [document]",
		Short: "List stored conversations, or stats for one document",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSessions,
	}

	completion := &cobra.Command{
		Use:   "completion <bash|zsh|fish>",
		Short: "Generate shell completion script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return generateCompletion(args[0])
		},
	}

	root.AddCommand(edit, sessions, completion)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
