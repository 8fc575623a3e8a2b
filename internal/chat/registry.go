package chat

import (
	"sync"
	"time"
)

// Registry keeps one Conversation per operator key.
type Registry struct {
	mu           sync.Mutex
	convs        map[string]*Conversation
	defaultAgent string
	now          func() time.Time
}

// NewRegistry creates conversations pointed at defaultAgent, which may be
// empty.
func NewRegistry(defaultAgent string) *Registry {
	return &Registry{
		convs:        make(map[string]*Conversation),
		defaultAgent: defaultAgent,
		now:          time.Now,
	}
}

// Get returns the conversation for key, creating it on first use.
func (r *Registry) Get(key string) *Conversation {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[key]
	if !ok {
		c = NewConversation(key, r.defaultAgent)
		r.convs[key] = c
	}
	c.touch(r.now())
	return c
}

func (r *Registry) Lookup(key string) (*Conversation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[key]
	return c, ok
}

func (r *Registry) Remove(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.convs, key)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.convs)
}

// Sweep drops conversations idle for longer than idle and returns how
// many were dropped. Conversations with a turn in flight are kept.
func (r *Registry) Sweep(idle time.Duration) int {
	cutoff := r.now().Add(-idle)
	r.mu.Lock()
	defer r.mu.Unlock()
	dropped := 0
	for key, c := range r.convs {
		if !c.LastActive().Before(cutoff) {
			continue
		}
		if !c.turn.TryLock() {
			continue
		}
		delete(r.convs, key)
		c.turn.Unlock()
		dropped++
	}
	return dropped
}
