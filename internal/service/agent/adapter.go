package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"slices"
	"strings"
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/jordanmt/career-compass/backend/internal/model/persona"
	"github.com/jordanmt/career-compass/backend/internal/service/tools"
)

// State of one run. Finished and Failed are terminal.
type State string

const (
	StateIdle      State = "idle"
	StateStreaming State = "streaming"
	StateFinished  State = "finished"
	StateFailed    State = "failed"
)

// RunRequest describes one persona execution.
type RunRequest struct {
	RunID       string
	ChatID      string
	Persona     persona.Persona
	UserMessage string
	History     []*schema.Message
	Context     persona.InstructionContext

	// OnAgentUpdate is invoked when a hand-off happens inside the run,
	// before the agent-update event is emitted and before any delta from
	// the new persona. May be nil.
	OnAgentUpdate func(personaID string)
}

// Result is the reduced outcome of a run. PartialText is filled even on
// failure so cancelled work can still be persisted.
type Result struct {
	FinalText   string
	PartialText string
	AgentID     string
	Handoffs    []string // personas activated during the run, in order
}

// Run is the handle for one in-flight execution. The caller must drain
// Events until it closes; Result is valid afterwards.
type Run struct {
	events chan Event

	mu     sync.Mutex
	state  State
	result Result
	err    error
}

// Events returns the ordered event stream. It terminates with exactly one
// finish or error event and is then closed.
func (r *Run) Events() <-chan Event { return r.events }

// Result reports the run outcome. Valid once Events has closed.
func (r *Run) Result() (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result, r.err
}

// State reports the run's lifecycle state.
func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Run) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Adapter executes personas against the model provider's event stream. It
// owns the tool-call loop and in-run hand-offs; it never retries.
type Adapter struct {
	registry  persona.Registry
	provider  ModelProvider
	tools     *tools.Registry
	maxRounds int
}

// New builds an adapter. maxRounds bounds tool-call iterations per run.
func New(registry persona.Registry, provider ModelProvider, toolReg *tools.Registry) *Adapter {
	return &Adapter{
		registry:  registry,
		provider:  provider,
		tools:     toolReg,
		maxRounds: 8,
	}
}

// Start launches the run. Cancellation of ctx stops the underlying stream;
// the run then fails with a stopped/timeout kind and PartialText set.
func (a *Adapter) Start(ctx context.Context, req RunRequest) *Run {
	run := &Run{events: make(chan Event, 16), state: StateIdle}
	go a.loop(ctx, req, run)
	return run
}

func (a *Adapter) loop(ctx context.Context, req RunRequest, run *Run) {
	defer close(run.events)
	run.setState(StateStreaming)

	active := req.Persona
	var handoffs []string
	var partial strings.Builder

	msgs := make([]*schema.Message, 0, len(req.History)+2)
	msgs = append(msgs, schema.SystemMessage(active.Instructions(req.Context)))
	msgs = append(msgs, req.History...)
	msgs = append(msgs, schema.UserMessage(req.UserMessage))

	fail := func(kind string, err error) {
		run.mu.Lock()
		run.result = Result{PartialText: partial.String(), AgentID: active.ID, Handoffs: handoffs}
		run.err = err
		run.state = StateFailed
		run.mu.Unlock()
		run.events <- Errorf(kind, err.Error())
	}

	for round := 0; round < a.maxRounds; round++ {
		sr, err := a.provider.Stream(ctx, active.ID, msgs)
		if err != nil {
			fail(kindFor(ctx, err), err)
			return
		}

		chunks, recvErr := a.drain(sr, active.ID, &partial, run)
		if recvErr != nil {
			fail(kindFor(ctx, recvErr), recvErr)
			return
		}

		// The aggregated message is the authoritative output; the delta
		// concatenation is only the fallback when aggregation fails.
		full, err := schema.ConcatMessages(chunks)
		if err != nil {
			log.Printf("[agent] concat failed for run=%s, falling back to deltas: %v", req.RunID, err)
			full = schema.AssistantMessage(partial.String(), nil)
		}

		if len(full.ToolCalls) == 0 {
			finalText := full.Content
			if finalText == "" {
				finalText = partial.String()
			}
			run.mu.Lock()
			run.result = Result{
				FinalText:   finalText,
				PartialText: partial.String(),
				AgentID:     active.ID,
				Handoffs:    handoffs,
			}
			run.state = StateFinished
			run.mu.Unlock()
			run.events <- Finish(active.ID)
			return
		}

		msgs = append(msgs, full)
		for _, call := range full.ToolCalls {
			name := call.Function.Name
			if target, isHandoff := strings.CutPrefix(name, handoffPrefix); isHandoff {
				next, handled := a.handoff(req, run, &active, target, call)
				if handled {
					handoffs = append(handoffs, next)
					// New persona, new instructions for the next round.
					msgs[0] = schema.SystemMessage(active.Instructions(req.Context))
				}
				msgs = append(msgs, handoffToolMessage(handled, target, call.ID))
				continue
			}

			run.events <- Event{
				Type:       EventToolCall,
				AgentID:    active.ID,
				ToolCallID: call.ID,
				ToolName:   name,
				Payload:    safeJSON(call.Function.Arguments),
			}
			result, display := a.tools.Run(ctx, name, call.Function.Arguments)
			run.events <- Event{
				Type:       EventToolResult,
				AgentID:    active.ID,
				ToolCallID: call.ID,
				ToolName:   name,
				Payload:    json.RawMessage(result),
			}
			if len(display) > 0 {
				run.events <- Event{Type: EventData, AgentID: active.ID, Payload: display}
			}
			msgs = append(msgs, schema.ToolMessage(result, call.ID))
		}
	}

	fail(KindStream, fmt.Errorf("tool loop exceeded %d rounds", a.maxRounds))
}

// drain consumes the provider stream in a single pass, emitting deltas in
// arrival order. Chunks with unrecognized shape (nil) are dropped.
func (a *Adapter) drain(sr *schema.StreamReader[*schema.Message], agentID string, partial *strings.Builder, run *Run) ([]*schema.Message, error) {
	defer sr.Close()

	var chunks []*schema.Message
	for {
		chunk, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			return chunks, nil
		}
		if err != nil {
			return nil, err
		}
		if chunk == nil {
			continue
		}
		chunks = append(chunks, chunk)
		if chunk.Content != "" {
			partial.WriteString(chunk.Content)
			run.events <- TextDelta(agentID, chunk.Content)
		}
	}
}

// handoff validates a transfer tool call and, when legal, flips the active
// persona. The state callback runs before the agent-update event so the
// owner's HandoffState is current by the time the client sees the event.
func (a *Adapter) handoff(req RunRequest, run *Run, active *persona.Persona, target string, call schema.ToolCall) (string, bool) {
	next, found := a.registry.FindByID(target)
	if !found || !slices.Contains(active.Handoffs, target) {
		log.Printf("[agent] run=%s: rejected hand-off %s -> %s", req.RunID, active.ID, target)
		return "", false
	}

	if req.OnAgentUpdate != nil {
		req.OnAgentUpdate(next.ID)
	}
	payload, _ := json.Marshal(map[string]string{
		"from":   active.ID,
		"to":     next.ID,
		"reason": handoffReason(call.Function.Arguments),
	})
	run.events <- Event{Type: EventAgentUpdate, AgentID: next.ID, Payload: payload}

	*active = next
	return next.ID, true
}

func handoffToolMessage(handled bool, target, callID string) *schema.Message {
	if handled {
		return schema.ToolMessage(fmt.Sprintf(`{"success":true,"transferred":%q}`, target), callID)
	}
	return schema.ToolMessage(fmt.Sprintf(`{"success":false,"error":"invalid_handoff","message":"cannot transfer to %s"}`, target), callID)
}

func handoffReason(argsJSON string) string {
	var args struct {
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return ""
	}
	return args.Reason
}

// kindFor classifies a stream failure for the terminal error event.
func kindFor(ctx context.Context, err error) string {
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return KindStopped
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return KindTimeout
	default:
		return KindStream
	}
}

// safeJSON returns raw when it already is valid JSON, otherwise wraps it as
// a JSON string so event payloads never break the wire format.
func safeJSON(raw string) json.RawMessage {
	if json.Valid([]byte(raw)) {
		return json.RawMessage(raw)
	}
	quoted, err := json.Marshal(raw)
	if err != nil {
		return json.RawMessage(`""`)
	}
	return quoted
}
