// Package turn orchestrates one chat turn end to end: routing, the agent
// run, hand-off state, and exactly-once finalization of the result.
package turn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/jordanmt/career-compass/backend/internal/model/chat"
	memorymodel "github.com/jordanmt/career-compass/backend/internal/model/memory"
	"github.com/jordanmt/career-compass/backend/internal/model/persona"
	"github.com/jordanmt/career-compass/backend/internal/service/agent"
	memoryservice "github.com/jordanmt/career-compass/backend/internal/service/memory"
	"github.com/jordanmt/career-compass/backend/internal/service/routing"
	"github.com/jordanmt/career-compass/backend/internal/storage"
)

// ErrTurnInFlight reports a second message for a chat whose previous turn
// is still streaming. Such messages are rejected, never run concurrently.
var ErrTurnInFlight = errors.New("a turn is already in flight for this chat")

const (
	historyLimit     = 10
	persistRetries   = 3
	persistBaseDelay = 100 * time.Millisecond
	maxTrackedRuns   = 4096
)

// HandoffState tracks the active persona for one open chat. Ephemeral; it
// is rehydrated from memory after a restart.
type HandoffState struct {
	ActiveID      string
	SuggestedID   string
	Rationale     string
	Transitioning bool
}

// Request describes one incoming user turn.
type Request struct {
	Chat        chat.Chat
	Message     string
	PersonaHint string
	UserName    string
}

// Manager owns per-chat turn serialization and finalization.
type Manager struct {
	registry persona.Registry
	router   *routing.Router
	adapter  *agent.Adapter
	store    storage.Store
	memory   *memoryservice.Service
	timeout  time.Duration

	mu             sync.Mutex
	inflight       map[string]struct{}
	handoffs       map[string]*HandoffState
	finalized      map[string]struct{}
	finalizedOrder []string
}

// NewManager wires the turn orchestrator. timeout is the per-turn
// wall-clock budget.
func NewManager(registry persona.Registry, router *routing.Router, adapter *agent.Adapter,
	store storage.Store, memory *memoryservice.Service, timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Manager{
		registry:  registry,
		router:    router,
		adapter:   adapter,
		store:     store,
		memory:    memory,
		timeout:   timeout,
		inflight:  make(map[string]struct{}),
		handoffs:  make(map[string]*HandoffState),
		finalized: make(map[string]struct{}),
	}
}

// Handoff returns a copy of the chat's hand-off state.
func (m *Manager) Handoff(chatID string) HandoffState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state, ok := m.handoffs[chatID]; ok {
		return *state
	}
	return HandoffState{ActiveID: persona.EntryID}
}

// StartTurn runs one turn. The returned channel carries the ordered event
// stream and terminates with exactly one finish or error event. The
// assistant turn is persisted before the terminal finish is emitted.
func (m *Manager) StartTurn(ctx context.Context, req Request) (<-chan agent.Event, error) {
	chatID := req.Chat.ID

	m.mu.Lock()
	if _, busy := m.inflight[chatID]; busy {
		m.mu.Unlock()
		return nil, ErrTurnInFlight
	}
	m.inflight[chatID] = struct{}{}
	m.mu.Unlock()

	events, err := m.beginTurn(ctx, req)
	if err != nil {
		m.mu.Lock()
		delete(m.inflight, chatID)
		m.mu.Unlock()
		return nil, err
	}
	return events, nil
}

func (m *Manager) beginTurn(ctx context.Context, req Request) (<-chan agent.Event, error) {
	chatID := req.Chat.ID

	if err := m.memory.Hydrate(ctx, chatID); err != nil {
		log.Printf("[turn] memory hydrate failed for chat=%s: %v", chatID, err)
	}
	state := m.handoffState(chatID)
	prevActive := state.ActiveID

	target := m.resolveTarget(req.Message, req.PersonaHint, prevActive)

	// The user turn is persisted up front; a failure here aborts before
	// any streaming starts.
	userMsg := chat.Message{
		ID:     uuid.NewString(),
		ChatID: chatID,
		Role:   chat.RoleUser,
		Parts:  []chat.Part{chat.TextPart(req.Message)},
		Status: chat.StatusComplete,
	}
	if err := m.store.SaveMessages(ctx, []chat.Message{userMsg}); err != nil {
		return nil, fmt.Errorf("save user message: %w", err)
	}

	history, err := m.loadHistory(ctx, chatID, userMsg.ID)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	runCtx, cancel := context.WithTimeout(ctx, m.timeout)

	m.mu.Lock()
	state.ActiveID = target.ID
	state.Transitioning = target.ID != prevActive
	m.mu.Unlock()

	run := m.adapter.Start(runCtx, agent.RunRequest{
		RunID:       runID,
		ChatID:      chatID,
		Persona:     target,
		UserMessage: req.Message,
		History:     history,
		Context: persona.InstructionContext{
			UserName:      req.UserName,
			RecentContext: m.memory.RecentContext(chatID, historyLimit),
			TopicsSeen:    m.memory.Topics(chatID),
		},
		OnAgentUpdate: func(personaID string) {
			m.mu.Lock()
			state.ActiveID = personaID
			state.Transitioning = true
			m.mu.Unlock()
		},
	})

	out := make(chan agent.Event, 16)
	go func() {
		defer cancel()
		defer close(out)
		defer func() {
			m.mu.Lock()
			delete(m.inflight, chatID)
			m.mu.Unlock()
		}()

		// Sends race the request context so a consumer that stops draining
		// cannot park this goroutine and pin the chat in flight.
		forward := func(ev agent.Event) {
			select {
			case out <- ev:
			case <-ctx.Done():
			}
		}

		// Terminal events are held back until finalization completed, so a
		// client that sees stream-end can refetch history and find the
		// turn already saved.
		var terminal *agent.Event
		for ev := range run.Events() {
			if ev.Type == agent.EventFinish || ev.Type == agent.EventError {
				held := ev
				terminal = &held
				continue
			}
			forward(ev)
		}

		res, runErr := run.Result()
		finCtx := context.WithoutCancel(ctx)

		if runErr == nil {
			term := m.completeTurn(finCtx, runID, req, state, prevActive, res, terminal)
			if term.Type == agent.EventFinish {
				if ev := m.suggestionEvent(chatID, req.Message, res); ev != nil {
					forward(*ev)
				}
			}
			forward(term)
			return
		}
		forward(m.failTurn(finCtx, runID, req, state, prevActive, res, runErr, terminal))
	}()

	return out, nil
}

// completeTurn finalizes a successful run and returns the terminal event to
// emit. A persistence failure downgrades the turn to a terminal error: a
// generated but unsaved answer is not a success.
func (m *Manager) completeTurn(ctx context.Context, runID string, req Request,
	state *HandoffState, prevActive string, res agent.Result, terminal *agent.Event) agent.Event {

	if err := m.finalize(ctx, runID, req, res, chat.StatusComplete); err != nil {
		log.Printf("[turn] finalization failed for run=%s: %v", runID, err)
		m.restoreHandoff(state, prevActive)
		return agent.Errorf(agent.KindPersistence, "response could not be saved")
	}

	m.mu.Lock()
	state.ActiveID = res.AgentID
	state.Transitioning = false
	state.SuggestedID = ""
	state.Rationale = ""
	m.mu.Unlock()

	if terminal == nil {
		fin := agent.Finish(res.AgentID)
		terminal = &fin
	}
	return *terminal
}

// failTurn handles the run's failure path: hand-off state is restored, and
// a user-stopped run still gets its partial text persisted as incomplete.
func (m *Manager) failTurn(ctx context.Context, runID string, req Request,
	state *HandoffState, prevActive string, res agent.Result, runErr error, terminal *agent.Event) agent.Event {

	m.restoreHandoff(state, prevActive)

	if errors.Is(runErr, context.Canceled) && strings.TrimSpace(res.PartialText) != "" {
		// Credit the partial output to the persona active before the run;
		// an unconfirmed in-run hand-off is not committed.
		partial := res
		partial.FinalText = res.PartialText
		partial.AgentID = prevActive
		partial.Handoffs = nil
		if err := m.finalize(ctx, runID, req, partial, chat.StatusIncomplete); err != nil {
			log.Printf("[turn] partial persist failed for run=%s: %v", runID, err)
		}
	}

	if terminal != nil {
		return *terminal
	}
	return agent.Errorf(agent.KindStream, runErr.Error())
}

// finalize persists the assistant turn and appends memory, at most once per
// run id. A duplicate terminal notification becomes a no-op; a failed
// persist releases the run id so a retry can still save the turn.
func (m *Manager) finalize(ctx context.Context, runID string, req Request, res agent.Result, status string) error {
	m.mu.Lock()
	if _, done := m.finalized[runID]; done {
		m.mu.Unlock()
		return nil
	}
	m.finalized[runID] = struct{}{}
	m.finalizedOrder = append(m.finalizedOrder, runID)
	// Bound the guard by evicting the oldest run ids. Recent ids stay
	// tracked, so a fresh replay is still caught here.
	for len(m.finalized) > maxTrackedRuns {
		oldest := m.finalizedOrder[0]
		m.finalizedOrder = m.finalizedOrder[1:]
		delete(m.finalized, oldest)
	}
	m.mu.Unlock()

	msg := chat.Message{
		// The run id doubles as the message id, so a replay that slips
		// past the in-memory guard still collides on the stored id.
		ID:      runID,
		ChatID:  req.Chat.ID,
		Role:    chat.RoleAssistant,
		Parts:   []chat.Part{chat.TextPart(res.FinalText)},
		AgentID: res.AgentID,
		Status:  status,
	}
	err := storage.WithRetry(ctx, persistRetries, persistBaseDelay, func() error {
		return m.store.SaveMessages(ctx, []chat.Message{msg})
	})
	if errors.Is(err, storage.ErrDuplicateID) {
		// The turn was already saved by an earlier finalize for this run.
		return nil
	}
	if err != nil {
		m.mu.Lock()
		delete(m.finalized, runID)
		m.mu.Unlock()
		return err
	}

	topics := m.extractTopics(req.Message)
	m.memory.Append(req.Chat.ID, memorymodel.Item{
		Role:    chat.RoleUser,
		Content: req.Message,
		Topics:  topics,
	})
	m.memory.Append(req.Chat.ID, memorymodel.Item{
		Role:      chat.RoleAssistant,
		Content:   res.FinalText,
		AgentName: res.AgentID,
		Handoffs:  res.Handoffs,
	})
	return nil
}

// Suggest runs the post-response hand-off table and records the result on
// the chat's state. Nil when no rule matches.
func (m *Manager) Suggest(chatID, userMessage, responseText string) *routing.Suggestion {
	m.mu.Lock()
	state, ok := m.handoffs[chatID]
	m.mu.Unlock()
	if !ok {
		return nil
	}

	suggestion := m.router.Suggest(state.ActiveID, userMessage, responseText)
	m.mu.Lock()
	if suggestion != nil {
		state.SuggestedID = suggestion.PersonaID
		state.Rationale = suggestion.Rationale
	} else {
		state.SuggestedID = ""
		state.Rationale = ""
	}
	m.mu.Unlock()
	return suggestion
}

// suggestionEvent wraps a matched hand-off suggestion as an advisory data
// event for the client banner.
func (m *Manager) suggestionEvent(chatID, userMessage string, res agent.Result) *agent.Event {
	suggestion := m.Suggest(chatID, userMessage, res.FinalText)
	if suggestion == nil {
		return nil
	}
	payload, err := json.Marshal(map[string]string{
		"kind":      "handoff-suggestion",
		"personaId": suggestion.PersonaID,
		"rationale": suggestion.Rationale,
	})
	if err != nil {
		return nil
	}
	return &agent.Event{Type: agent.EventData, AgentID: res.AgentID, Payload: payload}
}

func (m *Manager) restoreHandoff(state *HandoffState, prevActive string) {
	m.mu.Lock()
	state.ActiveID = prevActive
	state.Transitioning = false
	m.mu.Unlock()
}

// handoffState returns (creating if needed) the chat's state, seeding the
// active persona from memory so reloads continue where they left off.
func (m *Manager) handoffState(chatID string) *HandoffState {
	m.mu.Lock()
	defer m.mu.Unlock()

	if state, ok := m.handoffs[chatID]; ok {
		return state
	}
	active := m.memory.LastAgent(chatID)
	if _, ok := m.registry.FindByID(active); !ok {
		active = persona.EntryID
	}
	state := &HandoffState{ActiveID: active}
	m.handoffs[chatID] = state
	return state
}

// resolveTarget applies the persona hint when valid, else routes.
func (m *Manager) resolveTarget(message, hint, currentID string) persona.Persona {
	if p, ok := m.registry.FindByID(hint); ok {
		return p
	}
	targetID := m.router.Route(message, currentID)
	if p, ok := m.registry.FindByID(targetID); ok {
		return p
	}
	return m.registry.Entry()
}

// loadHistory converts persisted turns into model messages, excluding the
// just-saved user message and anything beyond the window.
func (m *Manager) loadHistory(ctx context.Context, chatID, excludeID string) ([]*schema.Message, error) {
	msgs, err := m.store.MessagesByChat(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	var history []*schema.Message
	for _, msg := range msgs {
		if msg.ID == excludeID {
			continue
		}
		switch msg.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(msg.Text()))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(msg.Text(), nil))
		}
	}
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}
	return history, nil
}

// extractTopics derives memory topics from persona keywords present in the
// message.
func (m *Manager) extractTopics(message string) []string {
	normalized := strings.ToLower(message)
	var topics []string
	seen := make(map[string]struct{})
	for _, p := range m.registry.List() {
		for _, kw := range p.Keywords {
			if !strings.Contains(normalized, strings.ToLower(kw)) {
				continue
			}
			if _, dup := seen[kw]; dup {
				continue
			}
			seen[kw] = struct{}{}
			topics = append(topics, kw)
		}
	}
	return topics
}
