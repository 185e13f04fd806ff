package app

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// NewLogger builds the shared structured logger. Events go to a JSON-lines
// file under the state root so the TUI never fights log output for the
// terminal; if the file cannot be opened the logger stays quiet rather than
// corrupting the UI.
func NewLogger(stateRoot string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.InfoLevel)
	if os.Getenv("QUILL_DEBUG") != "" {
		log.SetLevel(logrus.DebugLevel)
	}

	logDir := filepath.Join(stateRoot, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		log.SetOutput(io.Discard)
		return log
	}
	f, err := os.OpenFile(filepath.Join(logDir, "quill.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.SetOutput(io.Discard)
		return log
	}
	log.SetOutput(f)
	return log
}
