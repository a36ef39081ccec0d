package chat

import "sync"

// Role is the author of a turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one message of a conversation.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Conversation is an append-only list of turns. It is safe for concurrent
// use: a streaming reply appends while the UI reads.
type Conversation struct {
	mu    sync.Mutex
	turns []Turn
}

// NewConversation returns an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{}
}

// Turns returns a copy of the turns.
func (c *Conversation) Turns() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Len returns the number of turns.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.turns)
}

func (c *Conversation) append(role Role, text string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, Turn{Role: role, Text: text})
	return len(c.turns) - 1
}

func (c *Conversation) extend(idx int, chunk string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx < len(c.turns) {
		c.turns[idx].Text += chunk
	}
}

func (c *Conversation) text(idx int) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx < len(c.turns) {
		return c.turns[idx].Text
	}
	return ""
}

// remove drops the turn at idx. Only the pending placeholder, which is always
// the last turn, is ever removed.
func (c *Conversation) remove(idx int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx == len(c.turns)-1 {
		c.turns = c.turns[:idx]
	}
}

// history returns the turns before idx.
func (c *Conversation) history(idx int) []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx > len(c.turns) {
		idx = len(c.turns)
	}
	out := make([]Turn, idx)
	copy(out, c.turns[:idx])
	return out
}
