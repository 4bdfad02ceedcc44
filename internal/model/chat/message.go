package chat

import "time"

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message status values. Incomplete marks partial output persisted after a
// user stopped the stream mid-turn.
const (
	StatusComplete   = "complete"
	StatusIncomplete = "incomplete"
)

// Part is one ordered content unit of a message: plain text or a reference
// to an uploaded file.
type Part struct {
	Type      string `json:"type"` // "text" | "file"
	Text      string `json:"text,omitempty"`
	URL       string `json:"url,omitempty"`
	Name      string `json:"name,omitempty"`
	MediaType string `json:"mediaType,omitempty"`
}

// TextPart builds a plain text part.
func TextPart(text string) Part {
	return Part{Type: "text", Text: text}
}

// Message persists one conversation turn. Immutable once saved.
type Message struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chatId"`
	Role      string    `json:"role"`
	Parts     []Part    `json:"parts"`
	AgentID   string    `json:"agentId,omitempty"`
	Status    string    `json:"status,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Text concatenates the message's text parts.
func (m Message) Text() string {
	var out string
	for _, p := range m.Parts {
		if p.Type == "text" {
			out += p.Text
		}
	}
	return out
}
