// Package assistant is the conversational collaborator. It turns chat
// messages into store mutations through two tools (addJob and updateStatus)
// and writes a short daily briefing over the pipeline.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jobops/jobops/internal/storage"
	"github.com/jobops/jobops/internal/types"
)

// Canned replies.
const (
	Greeting         = "I'm your JobOps assistant. How can I help with your search today?"
	ClearedMessage   = "Memory cleared. Ready for new instructions."
	NotConfiguredMsg = "Error: the assistant has no API key. Set ANTHROPIC_API_KEY or assistant.api_key in the config."
	FailureMsg       = "Sorry, I ran into an error reaching the assistant. Please try again."
	NoUnderstanding  = "I didn't understand that."
)

// maxContextTurns bounds how much history is replayed to the model.
const maxContextTurns = 40

// Records is the part of the store the assistant uses.
type Records interface {
	Jobs() []types.JobApplication
	Create(in types.NewJob) (types.JobApplication, error)
	Update(id string, patch types.Patch) (types.JobApplication, error)
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Assistant) { a.logger = l.Named("assistant") }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Assistant) { a.now = now }
}

// Assistant holds the conversation and executes tool calls.
type Assistant struct {
	store  Records
	kv     storage.Backend
	llm    LLM
	logger *zap.Logger
	now    func() time.Time

	// serialises Send and Clear so history writes never interleave
	mu sync.Mutex
}

// New creates an Assistant. llm may be nil, in which case every message is
// answered with NotConfiguredMsg.
func New(store Records, kv storage.Backend, llm LLM, opts ...Option) *Assistant {
	a := &Assistant{
		store:  store,
		kv:     kv,
		llm:    llm,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// History returns the persisted conversation. A missing or corrupt history
// yields the greeting.
func (a *Assistant) History(ctx context.Context) []types.ChatMessage {
	var msgs []types.ChatMessage
	err := storage.LoadJSON(ctx, a.kv, storage.KeyChatHistory, &msgs)
	if err != nil || len(msgs) == 0 {
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			a.logger.Warn("chat history unreadable, starting fresh", zap.Error(err))
		}
		return []types.ChatMessage{{ID: "0", Role: types.RoleModel, Content: Greeting, Timestamp: a.now().UnixMilli()}}
	}
	return msgs
}

// Clear resets the conversation to a single acknowledgement.
func (a *Assistant) Clear(ctx context.Context) ([]types.ChatMessage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	msgs := []types.ChatMessage{a.message(types.RoleModel, ClearedMessage)}
	if err := storage.SaveJSON(ctx, a.kv, storage.KeyChatHistory, msgs); err != nil {
		return nil, fmt.Errorf("failed to save chat history: %w", err)
	}
	return msgs, nil
}

// Send processes one user message and returns the messages it added to the
// history: the user message followed by one or more replies. Blank input is
// ignored and returns nothing. Model failures become apology replies; only
// a failure to save the history is returned as an error.
func (a *Assistant) Send(ctx context.Context, input string) ([]types.ChatMessage, error) {
	if strings.TrimSpace(input) == "" {
		return nil, nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	history := a.History(ctx)
	added := []types.ChatMessage{a.message(types.RoleUser, input)}
	added = append(added, a.respond(ctx, history, input)...)

	if err := storage.SaveJSON(ctx, a.kv, storage.KeyChatHistory, append(history, added...)); err != nil {
		return added, fmt.Errorf("failed to save chat history: %w", err)
	}
	return added, nil
}

func (a *Assistant) respond(ctx context.Context, history []types.ChatMessage, input string) []types.ChatMessage {
	if a.llm == nil {
		return []types.ChatMessage{a.message(types.RoleModel, NotConfiguredMsg)}
	}

	req := Request{
		System:   a.systemPrompt(),
		Messages: append(toTurns(history), Turn{Role: "user", Content: input}),
		Tools:    Tools,
	}
	resp, err := a.llm.Generate(ctx, req)
	if errors.Is(err, ErrNotConfigured) {
		return []types.ChatMessage{a.message(types.RoleModel, NotConfiguredMsg)}
	}
	if err != nil {
		a.logger.Warn("model call failed", zap.Error(err))
		return []types.ChatMessage{a.message(types.RoleModel, FailureMsg)}
	}

	if len(resp.Calls) > 0 {
		out := make([]types.ChatMessage, 0, len(resp.Calls))
		for _, call := range resp.Calls {
			reply := a.runTool(call)
			a.logger.Info("tool call", zap.String("tool", call.Name), zap.String("reply", reply))
			out = append(out, a.message(types.RoleModel, reply))
		}
		return out
	}
	text := resp.Text
	if text == "" {
		text = NoUnderstanding
	}
	return []types.ChatMessage{a.message(types.RoleModel, text)}
}

func (a *Assistant) systemPrompt() string {
	var b strings.Builder
	b.WriteString("You are the JobOps assistant, a concise and practical job-search copilot.\n")
	fmt.Fprintf(&b, "Today's date: %s\n\n", a.now().Format("Monday, 2 January 2006"))
	b.WriteString("Current job pipeline (JSON):\n")
	b.WriteString(ContextSnapshot(a.store.Jobs()))
	b.WriteString("\n\nRules:\n")
	b.WriteString("1. When the user asks to add a job to the tracker, you MUST call the addJob tool.\n")
	b.WriteString("2. When the user reports a status change (for example \"Google rejected me\"), you MUST call the updateStatus tool.\n")
	b.WriteString("3. When asked to summarise the pipeline, answer from the JSON above.\n")
	return b.String()
}

// contextRecord is the slice of a record shared with the model.
type contextRecord struct {
	ID          string       `json:"id"`
	Company     string       `json:"company"`
	Role        string       `json:"role"`
	Status      types.Status `json:"status"`
	DateApplied string       `json:"dateApplied"`
	LastUpdated string       `json:"lastUpdated"`
}

// ContextSnapshot renders the collection as the JSON array given to the model.
func ContextSnapshot(jobs []types.JobApplication) string {
	recs := make([]contextRecord, len(jobs))
	for i, j := range jobs {
		recs[i] = contextRecord{
			ID:          j.ID,
			Company:     j.Company,
			Role:        j.Role,
			Status:      j.Status,
			DateApplied: j.DateApplied,
			LastUpdated: j.LastUpdated,
		}
	}
	data, _ := json.Marshal(recs)
	return string(data)
}

func toTurns(history []types.ChatMessage) []Turn {
	if len(history) > maxContextTurns {
		history = history[len(history)-maxContextTurns:]
	}
	turns := make([]Turn, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case types.RoleUser:
			turns = append(turns, Turn{Role: "user", Content: m.Content})
		case types.RoleModel:
			turns = append(turns, Turn{Role: "assistant", Content: m.Content})
		}
	}
	return turns
}

func (a *Assistant) message(role types.ChatRole, content string) types.ChatMessage {
	return types.ChatMessage{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: a.now().UnixMilli(),
	}
}
