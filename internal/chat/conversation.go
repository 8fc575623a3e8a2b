// Package chat holds the per-operator conversation state and the turn
// dispatcher shared by every front-end.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"agent-chatter/internal/aip"
	"agent-chatter/internal/history"
)

// ErrAgentNotConfigured aborts a turn when no agent reference is set.
// Front-ends show MissingAgentPrompt instead of an error.
var ErrAgentNotConfigured = errors.New("agent reference is not set")

const MissingAgentPrompt = "Please add your AIP Agent RID to continue."

// ErrConversationReset reports a turn whose conversation was reset while
// it waited on the agent. Its reply is discarded.
var ErrConversationReset = errors.New("conversation was reset during the turn")

// Conversation is the state of one UI session: its transcript, the agent
// it talks to, and the remote session opened on the first turn.
type Conversation struct {
	Key        string
	Transcript *history.Transcript

	// held for the whole of a turn
	turn sync.Mutex

	mu         sync.RWMutex
	agentRID   string
	sessionRID aip.SessionRID
	lastActive time.Time
	// bumped by Reset; a turn only writes back into its own generation
	gen uint64
}

func NewConversation(key, agentRID string) *Conversation {
	return &Conversation{
		Key:        key,
		Transcript: history.NewTranscript(),
		agentRID:   strings.TrimSpace(agentRID),
		lastActive: time.Now(),
	}
}

func (c *Conversation) AgentRID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.agentRID
}

// SetAgentRID points the conversation at another agent. A session is
// bound to its agent, so switching drops the held session rid.
func (c *Conversation) SetAgentRID(rid string) {
	rid = strings.TrimSpace(rid)
	c.mu.Lock()
	defer c.mu.Unlock()
	if rid == c.agentRID {
		return
	}
	c.agentRID = rid
	c.sessionRID = ""
}

func (c *Conversation) SessionRID() aip.SessionRID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionRID
}

// EnsureSession returns the remote session of this conversation, opening
// it on first use.
func (c *Conversation) EnsureSession(ctx context.Context, client aip.Client) (aip.SessionRID, error) {
	c.mu.RLock()
	gen := c.gen
	c.mu.RUnlock()
	return c.ensureSession(ctx, client, gen)
}

func (c *Conversation) ensureSession(ctx context.Context, client aip.Client, gen uint64) (aip.SessionRID, error) {
	c.mu.RLock()
	agent, rid, cur := c.agentRID, c.sessionRID, c.gen
	c.mu.RUnlock()
	if cur != gen {
		return "", ErrConversationReset
	}
	if agent == "" {
		return "", ErrAgentNotConfigured
	}
	if rid != "" {
		return rid, nil
	}

	sess, err := client.CreateSession(ctx, agent, aip.Preview)
	if err != nil {
		return "", fmt.Errorf("open session for %s: %w", agent, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return "", ErrConversationReset
	}
	if c.agentRID != agent {
		// agent changed while the session was being created
		return "", fmt.Errorf("agent changed from %s to %s during session creation", agent, c.agentRID)
	}
	if c.sessionRID == "" {
		c.sessionRID = sess.RID
	}
	return c.sessionRID, nil
}

// beginTurn appends the user message and returns the generation the turn
// belongs to.
func (c *Conversation) beginTurn(text string) (uint64, history.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Transcript.AppendUser(text)
	return c.gen, c.Transcript.Last()
}

// finishTurn appends the reply unless the conversation was reset since
// beginTurn.
func (c *Conversation) finishTurn(gen uint64, reply string) (history.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return history.Message{}, false
	}
	c.Transcript.AppendAssistant(reply)
	return c.Transcript.Last(), true
}

// Reset starts over: greeting-only transcript, no remote session. A turn
// in flight keeps running but its reply is dropped.
func (c *Conversation) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Transcript.Reset()
	c.sessionRID = ""
	c.gen++
}

func (c *Conversation) LastActive() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastActive
}

func (c *Conversation) touch(t time.Time) {
	c.mu.Lock()
	c.lastActive = t
	c.mu.Unlock()
}
