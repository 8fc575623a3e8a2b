package history

import (
	"iter"
	"sync"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Greeting is the assistant message every transcript starts with.
const Greeting = "How can I help you?"

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Transcript is the ordered, append-only message list of one UI session.
type Transcript struct {
	mu       sync.RWMutex
	messages []Message
}

func NewTranscript() *Transcript {
	t := &Transcript{}
	t.seed()
	return t
}

func (t *Transcript) seed() {
	t.messages = []Message{{Role: RoleAssistant, Content: Greeting}}
}

func (t *Transcript) Append(role Role, content string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, Message{Role: role, Content: content})
}

func (t *Transcript) AppendUser(content string)      { t.Append(RoleUser, content) }
func (t *Transcript) AppendAssistant(content string) { t.Append(RoleAssistant, content) }

// All yields the messages in insertion order. Each range over the
// returned sequence starts again from the first message and sees the
// transcript as it was when that iteration began.
func (t *Transcript) All() iter.Seq[Message] {
	return func(yield func(Message) bool) {
		for _, m := range t.Messages() {
			if !yield(m) {
				return
			}
		}
	}
}

// Messages returns a copy of the transcript.
func (t *Transcript) Messages() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Last returns the most recent message.
func (t *Transcript) Last() Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.messages[len(t.messages)-1]
}

// Reset drops everything but the greeting.
func (t *Transcript) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seed()
}
