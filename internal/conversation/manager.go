// Package conversation keeps short-term chat memory for the AI layers:
// a sliding window of recent messages seeded from durable storage, plus
// an in-memory working-memory map for transient per-session state.
package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/taskmaster/taskmaster/internal/llm"
	"github.com/taskmaster/taskmaster/internal/store"
	"github.com/taskmaster/taskmaster/internal/types"
)

// windowSize is the number of recent messages kept in memory.
const windowSize = 10

// contextTruncate caps each message's contribution to rendered context.
const contextTruncate = 200

// Manager holds one user's conversation window. It is built per
// request and not safe for concurrent use.
type Manager struct {
	store  *store.Store
	userID int64

	window        []types.ConversationMessage
	workingMemory map[string]any
}

// NewManager seeds the window with the user's most recent persisted
// messages in chronological order.
func NewManager(ctx context.Context, st *store.Store, userID int64) (*Manager, error) {
	recent, err := st.RecentMessages(ctx, userID, windowSize)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation history: %w", err)
	}

	return &Manager{
		store:         st,
		userID:        userID,
		window:        recent,
		workingMemory: map[string]any{},
	}, nil
}

// AddMessage appends to the window, evicting the oldest entry when
// full, and durably stores the message when persist is set.
func (m *Manager) AddMessage(ctx context.Context, role, content string, metadata map[string]any, persist bool) error {
	msg := types.ConversationMessage{
		UserID:    m.userID,
		Role:      role,
		Content:   content,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}

	if persist {
		stored, err := m.store.AppendMessage(ctx, &msg)
		if err != nil {
			return err
		}
		msg = *stored
	}

	m.window = append(m.window, msg)
	if len(m.window) > windowSize {
		m.window = m.window[len(m.window)-windowSize:]
	}
	return nil
}

// History returns up to limit of the most recent window messages,
// oldest first. A non-positive limit returns the whole window.
func (m *Manager) History(limit int) []types.ConversationMessage {
	msgs := m.window
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]types.ConversationMessage, len(msgs))
	copy(out, msgs)
	return out
}

// ModelMessages renders the window as model conversation turns.
func (m *Manager) ModelMessages() []llm.Message {
	msgs := make([]llm.Message, 0, len(m.window))
	for _, msg := range m.window {
		msgs = append(msgs, llm.Message{Role: msg.Role, Content: msg.Content})
	}
	return msgs
}

// Context renders the window as role-prefixed lines for prompt
// inclusion, truncating each message to 200 characters.
func (m *Manager) Context() string {
	if len(m.window) == 0 {
		return "No previous conversation."
	}

	lines := make([]string, 0, len(m.window)+1)
	lines = append(lines, "Recent Conversation:")
	for _, msg := range m.window {
		content := truncate(msg.Content, contextTruncate)
		lines = append(lines, fmt.Sprintf("%s: %s", capitalize(msg.Role), content))
	}
	return strings.Join(lines, "\n")
}

// Set stores a transient key in working memory.
func (m *Manager) Set(key string, value any) {
	m.workingMemory[key] = value
}

// Get reads a working-memory key; ok reports whether it was set.
func (m *Manager) Get(key string) (any, bool) {
	v, ok := m.workingMemory[key]
	return v, ok
}

// Clear drops all working memory, for a fresh conversation topic.
func (m *Manager) Clear() {
	m.workingMemory = map[string]any{}
}

// Summarize produces a one-line digest of the window, naming the first
// and most recent user topics.
func (m *Manager) Summarize() string {
	if len(m.window) == 0 {
		return "No conversation to summarize."
	}

	var userMsgs []types.ConversationMessage
	for _, msg := range m.window {
		if msg.Role == types.RoleUser {
			userMsgs = append(userMsgs, msg)
		}
	}
	assistantCount := len(m.window) - len(userMsgs)

	if len(userMsgs) == 0 {
		return fmt.Sprintf("Conversation with %d messages.", len(m.window))
	}

	first := truncate(userMsgs[0].Content, 100)
	last := first
	if len(userMsgs) > 1 {
		last = truncate(userMsgs[len(userMsgs)-1].Content, 100)
	}

	return fmt.Sprintf(
		"Conversation with %d user messages and %d responses. Started with: '%s...' Most recent: '%s...'",
		len(userMsgs), assistantCount, first, last)
}

// TaskContext distills recent tasks into prompt-ready facts: the
// dominant priority, up to five tag names, and up to five titles.
type TaskContext struct {
	RecentTaskCount  int      `json:"recent_task_count"`
	CommonPriority   string   `json:"common_priority,omitempty"`
	CommonCategories []string `json:"common_categories"`
	RecentTaskTitles []string `json:"recent_task_titles,omitempty"`
}

// BuildTaskContext analyzes recent tasks for the AI layers.
func BuildTaskContext(recentTasks []types.Task) TaskContext {
	tc := TaskContext{CommonCategories: []string{}}
	if len(recentTasks) == 0 {
		return tc
	}
	tc.RecentTaskCount = len(recentTasks)

	priorityCounts := map[types.Priority]int{}
	for _, task := range recentTasks {
		priorityCounts[task.Priority]++
	}
	best, bestCount := types.PriorityMedium, 0
	for p, n := range priorityCounts {
		if n > bestCount {
			best, bestCount = p, n
		}
	}
	tc.CommonPriority = string(best)

	seen := map[string]bool{}
	for _, task := range recentTasks {
		for _, tag := range task.Tags {
			if !seen[tag.Name] && len(tc.CommonCategories) < 5 {
				seen[tag.Name] = true
				tc.CommonCategories = append(tc.CommonCategories, tag.Name)
			}
		}
	}

	for i, task := range recentTasks {
		if i == 5 {
			break
		}
		tc.RecentTaskTitles = append(tc.RecentTaskTitles, task.Title)
	}

	return tc
}

// ApplyToPreferences fills parsing hints the user has not set
// themselves: dominant priority and common categories observed in
// recent tasks. Explicit preferences always win.
func (tc TaskContext) ApplyToPreferences(uc *types.UserContext) {
	if uc == nil || tc.RecentTaskCount == 0 {
		return
	}
	if uc.Preferences == nil {
		uc.Preferences = map[string]any{}
	}
	if _, ok := uc.Preferences["common_task_categories"]; !ok && len(tc.CommonCategories) > 0 {
		uc.Preferences["common_task_categories"] = tc.CommonCategories
	}
	if _, ok := uc.Preferences["default_priority"]; !ok && tc.CommonPriority != "" {
		uc.Preferences["default_priority"] = tc.CommonPriority
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// truncate caps s at n characters without splitting a multi-byte rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
