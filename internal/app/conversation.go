package app

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Role is the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ConversationMessage is one turn in a document's conversation log.
type ConversationMessage struct {
	ID        string            `json:"id"`
	Role      Role              `json:"role"`
	Content   string            `json:"content"`
	Timestamp time.Time         `json:"timestamp"`
	Command   *EditCommand      `json:"command,omitempty"`
	Result    string            `json:"result,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ContextDocumentRef is a standing reference to another document attached to
// a conversation. Deduplicated by (path, property); survives message clears.
type ContextDocumentRef struct {
	Path     string    `json:"path"`
	Property string    `json:"property,omitempty"`
	AddedAt  time.Time `json:"addedAt"`
}

// ConversationMetadata accumulates per-conversation counters.
type ConversationMetadata struct {
	EditCount        int            `json:"editCount"`
	CommandFrequency map[string]int `json:"commandFrequency,omitempty"`
}

// ConversationData is the persisted state for one document path. The message
// log and the context-document list have independent lifecycles: clearing
// one never touches the other.
type ConversationData struct {
	FilePath         string                `json:"filePath"`
	Messages         []ConversationMessage `json:"messages"`
	LastUpdated      time.Time             `json:"lastUpdated"`
	ContextDocuments []ContextDocumentRef  `json:"contextDocuments"`
	Metadata         ConversationMetadata  `json:"metadata"`
}

// Backend is the key-value persistence collaborator. The store keeps its
// whole state under a single key as a JSON array of conversations.
type Backend interface {
	Load(key string) ([]byte, error)
	Save(key string, data []byte) error
}

// FileBackend stores each key as <dir>/<key>.json.
type FileBackend struct {
	Dir string
}

func NewFileBackend(dir string) *FileBackend {
	return &FileBackend{Dir: dir}
}

func (f *FileBackend) path(key string) string {
	return filepath.Join(f.Dir, key+".json")
}

func (f *FileBackend) Load(key string) ([]byte, error) {
	b, err := os.ReadFile(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return b, err
}

func (f *FileBackend) Save(key string, data []byte) error {
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(f.path(key), data, 0o644)
}

const conversationsKey = "conversations"

// ConversationStoreConfig bounds the store's memory and retention.
type ConversationStoreConfig struct {
	MaxMessagesPerFile int
	RetentionAge       time.Duration
	CleanupInterval    time.Duration
}

// ConversationStore owns the path → conversation table and its persistence.
// It is an explicit object, not ambient state, so independent stores (one
// per test, say) never interfere.
type ConversationStore struct {
	mu            sync.Mutex
	backend       Backend
	cfg           ConversationStoreConfig
	log           *logrus.Logger
	conversations map[string]*ConversationData

	done      chan struct{}
	closeOnce sync.Once
}

// NewConversationStore loads persisted state through the backend and starts
// the periodic cleanup task. Callers must Close the store to stop the task.
func NewConversationStore(backend Backend, cfg ConversationStoreConfig, log *logrus.Logger) *ConversationStore {
	if cfg.MaxMessagesPerFile <= 0 {
		cfg.MaxMessagesPerFile = 100
	}
	s := &ConversationStore{
		backend:       backend,
		cfg:           cfg,
		log:           log,
		conversations: make(map[string]*ConversationData),
		done:          make(chan struct{}),
	}
	s.load()
	if cfg.CleanupInterval > 0 && cfg.RetentionAge > 0 {
		go s.cleanupLoop()
	}
	return s
}

// Close stops the cleanup task. Safe to call more than once.
func (s *ConversationStore) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *ConversationStore) cleanupLoop() {
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.CleanupOldConversations(s.cfg.RetentionAge)
		}
	}
}

// storedConversation captures raw fields so one malformed field rejects as
// little as possible: a bad messages array degrades to empty rather than
// discarding the whole record.
type storedConversation struct {
	FilePath         string          `json:"filePath"`
	Messages         json.RawMessage `json:"messages"`
	LastUpdated      time.Time       `json:"lastUpdated"`
	ContextDocuments json.RawMessage `json:"contextDocuments"`
	Metadata         json.RawMessage `json:"metadata"`
}

// load sanitizes arbitrary persisted input. Corruption is isolated per
// record: a record without a filePath is skipped, invalid arrays default to
// empty, and a top-level payload that is not an array leaves the store
// empty but fully usable.
func (s *ConversationStore) load() {
	payload, err := s.backend.Load(conversationsKey)
	if err != nil {
		s.log.WithError(err).Warn("conversation state unreadable, starting empty")
		return
	}
	if len(payload) == 0 {
		return
	}

	var records []json.RawMessage
	if err := json.Unmarshal(payload, &records); err != nil {
		s.log.WithError(err).Warn("conversation state corrupt, starting empty")
		return
	}

	for _, raw := range records {
		var rec storedConversation
		if err := json.Unmarshal(raw, &rec); err != nil || strings.TrimSpace(rec.FilePath) == "" {
			s.log.Warn("skipping malformed conversation record")
			continue
		}
		conv := &ConversationData{
			FilePath:         rec.FilePath,
			Messages:         []ConversationMessage{},
			LastUpdated:      rec.LastUpdated,
			ContextDocuments: []ContextDocumentRef{},
			Metadata:         ConversationMetadata{CommandFrequency: map[string]int{}},
		}

		if len(rec.Messages) > 0 {
			var msgs []ConversationMessage
			if err := json.Unmarshal(rec.Messages, &msgs); err == nil {
				conv.Messages = msgs
			}
		}

		if len(rec.ContextDocuments) > 0 {
			var refs []map[string]any
			if err := json.Unmarshal(rec.ContextDocuments, &refs); err == nil {
				for _, m := range refs {
					path, _ := m["path"].(string)
					if strings.TrimSpace(path) == "" {
						continue
					}
					ref := ContextDocumentRef{Path: path}
					if prop, ok := m["property"].(string); ok {
						ref.Property = prop
					}
					if at, ok := m["addedAt"].(string); ok {
						if t, err := time.Parse(time.RFC3339Nano, at); err == nil {
							ref.AddedAt = t
						}
					}
					if ref.AddedAt.IsZero() {
						ref.AddedAt = time.Now()
					}
					conv.ContextDocuments = append(conv.ContextDocuments, ref)
				}
			}
		}

		if len(rec.Metadata) > 0 {
			var meta ConversationMetadata
			if err := json.Unmarshal(rec.Metadata, &meta); err == nil {
				conv.Metadata = meta
			}
		}
		if conv.Metadata.CommandFrequency == nil {
			conv.Metadata.CommandFrequency = map[string]int{}
		}

		s.conversations[conv.FilePath] = conv
	}
}

// save serializes the entire conversation map as one snapshot. Last write
// wins; a save never leaves a partially-written record behind.
func (s *ConversationStore) save() {
	all := make([]*ConversationData, 0, len(s.conversations))
	for _, conv := range s.conversations {
		all = append(all, conv)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].FilePath < all[j].FilePath })

	data, err := json.Marshal(all)
	if err != nil {
		s.log.WithError(err).Error("serializing conversations")
		return
	}
	if err := s.backend.Save(conversationsKey, data); err != nil {
		s.log.WithError(err).Error("saving conversations")
	}
}

func (s *ConversationStore) getOrCreate(path string) *ConversationData {
	conv, ok := s.conversations[path]
	if !ok {
		conv = &ConversationData{
			FilePath:         path,
			Messages:         []ConversationMessage{},
			LastUpdated:      time.Now(),
			ContextDocuments: []ContextDocumentRef{},
			Metadata:         ConversationMetadata{CommandFrequency: map[string]int{}},
		}
		s.conversations[path] = conv
	}
	return conv
}

// GetConversation returns a copy of the conversation for a path, creating
// an empty one lazily on first access.
func (s *ConversationStore) GetConversation(path string) ConversationData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.getOrCreate(path)
}

func (s *ConversationStore) append(path string, msg ConversationMessage) ConversationMessage {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.getOrCreate(path)
	conv.Messages = append(conv.Messages, msg)
	if over := len(conv.Messages) - s.cfg.MaxMessagesPerFile; over > 0 {
		conv.Messages = conv.Messages[over:]
	}
	conv.LastUpdated = time.Now()

	if msg.Role == RoleUser && msg.Command != nil {
		conv.Metadata.CommandFrequency[string(msg.Command.Action)]++
	}
	if msg.Role == RoleAssistant && msg.Result != "" {
		conv.Metadata.EditCount++
	}

	// Trim and persistence are atomic relative to this append: exactly one
	// snapshot save per message.
	s.save()
	return msg
}

func (s *ConversationStore) AddUserMessage(path, content string, cmd *EditCommand) ConversationMessage {
	return s.append(path, ConversationMessage{Role: RoleUser, Content: content, Command: cmd})
}

func (s *ConversationStore) AddAssistantMessage(path, content, result string) ConversationMessage {
	return s.append(path, ConversationMessage{Role: RoleAssistant, Content: content, Result: result})
}

func (s *ConversationStore) AddSystemMessage(path, content string) ConversationMessage {
	return s.append(path, ConversationMessage{Role: RoleSystem, Content: content})
}

// GetRecentMessages returns the last n messages in original order.
func (s *ConversationStore) GetRecentMessages(path string, n int) []ConversationMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.getOrCreate(path).Messages
	if n > 0 && len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	out := make([]ConversationMessage, len(msgs))
	copy(out, msgs)
	return out
}

// ClearConversation empties the message log only. Attached context
// documents survive; they have their own lifecycle.
func (s *ConversationStore) ClearConversation(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := s.getOrCreate(path)
	conv.Messages = []ConversationMessage{}
	conv.LastUpdated = time.Now()
	s.save()
}

// AddContextDocument attaches a document reference, deduplicated by
// (path, property).
func (s *ConversationStore) AddContextDocument(path string, ref ContextDocumentRef) {
	if strings.TrimSpace(ref.Path) == "" {
		return
	}
	if ref.AddedAt.IsZero() {
		ref.AddedAt = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := s.getOrCreate(path)
	for _, existing := range conv.ContextDocuments {
		if existing.Path == ref.Path && existing.Property == ref.Property {
			return
		}
	}
	conv.ContextDocuments = append(conv.ContextDocuments, ref)
	s.save()
}

func (s *ConversationStore) RemoveContextDocument(path, refPath, property string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := s.getOrCreate(path)
	kept := conv.ContextDocuments[:0]
	for _, ref := range conv.ContextDocuments {
		if ref.Path == refPath && ref.Property == property {
			continue
		}
		kept = append(kept, ref)
	}
	conv.ContextDocuments = kept
	s.save()
}

func (s *ConversationStore) GetContextDocuments(path string) []ContextDocumentRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	refs := s.getOrCreate(path).ContextDocuments
	out := make([]ContextDocumentRef, len(refs))
	copy(out, refs)
	return out
}

// ClearContextDocuments is the inverse of ClearConversation: it drops the
// attached references and leaves the message log alone.
func (s *ConversationStore) ClearContextDocuments(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreate(path).ContextDocuments = []ContextDocumentRef{}
	s.save()
}

func (s *ConversationStore) SetContextDocuments(path string, refs []ContextDocumentRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := s.getOrCreate(path)
	conv.ContextDocuments = []ContextDocumentRef{}
	for _, ref := range refs {
		if strings.TrimSpace(ref.Path) == "" {
			continue
		}
		if ref.AddedAt.IsZero() {
			ref.AddedAt = time.Now()
		}
		conv.ContextDocuments = append(conv.ContextDocuments, ref)
	}
	s.save()
}

// ListConversations returns the document paths with stored conversations,
// sorted.
func (s *ConversationStore) ListConversations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	paths := make([]string, 0, len(s.conversations))
	for path := range s.conversations {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// UpdateFilePath moves a conversation to a new key after a document rename.
func (s *ConversationStore) UpdateFilePath(oldPath, newPath string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[oldPath]
	if !ok {
		return
	}
	delete(s.conversations, oldPath)
	conv.FilePath = newPath
	s.conversations[newPath] = conv
	s.save()
}

// CleanupOldConversations evicts whole conversations whose latest activity
// is older than maxAge. Returns the number evicted.
func (s *ConversationStore) CleanupOldConversations(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for path, conv := range s.conversations {
		last := conv.LastUpdated
		if n := len(conv.Messages); n > 0 && conv.Messages[n-1].Timestamp.After(last) {
			last = conv.Messages[n-1].Timestamp
		}
		if last.Before(cutoff) {
			delete(s.conversations, path)
			evicted++
		}
	}
	if evicted > 0 {
		s.log.WithField("evicted", evicted).Info("cleaned up stale conversations")
		s.save()
	}
	return evicted
}

// ConversationStats summarizes one conversation for display.
type ConversationStats struct {
	MessageCount int
	EditCount    int
	TopAction    string
	Age          time.Duration
}

// statsActionOrder fixes tie-breaking for TopAction: first-seen-max over
// this ordering, never map iteration order.
var statsActionOrder = []Action{ActionAdd, ActionEdit, ActionDelete, ActionGrammar, ActionRewrite, ActionMetadata}

func (s *ConversationStore) GetStats(path string) ConversationStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.getOrCreate(path)
	stats := ConversationStats{
		MessageCount: len(conv.Messages),
		EditCount:    conv.Metadata.EditCount,
	}
	best := 0
	for _, action := range statsActionOrder {
		if n := conv.Metadata.CommandFrequency[string(action)]; n > best {
			best = n
			stats.TopAction = string(action)
		}
	}
	if len(conv.Messages) > 0 {
		stats.Age = time.Since(conv.Messages[0].Timestamp)
	}
	return stats
}

// RenderHistory formats the most recent n messages as the conversation block
// consumed by the prompt builder.
func (s *ConversationStore) RenderHistory(path string, n int) string {
	msgs := s.GetRecentMessages(path, n)
	if len(msgs) == 0 {
		return ""
	}
	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("[" + strings.ToUpper(string(m.Role)) + "] " + m.Content)
	}
	return b.String()
}
