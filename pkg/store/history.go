package store

import (
	"sync"
	"time"
)

// Message represents a single conversation turn
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// History is an append-only conversation log for one session. It lives in
// process memory only and is reset by Clear or lost on restart.
type History struct {
	mu       sync.Mutex
	messages []Message
}

// Append adds a turn to the history
func (h *History) Append(role, content string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
}

// Messages returns a copy of all turns in order
func (h *History) Messages() []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Clear resets the history to empty
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = nil
}

// Len returns the number of turns
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.messages)
}
