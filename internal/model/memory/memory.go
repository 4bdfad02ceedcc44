package memory

import "time"

// Item is one entry of a chat's rolling conversation memory. Append-only;
// the cap-and-evict rule lives in the memory service, not here.
type Item struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chatId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	AgentName string    `json:"agentName,omitempty"`
	Topics    []string  `json:"topics,omitempty"`
	Handoffs  []string  `json:"handoffs,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
