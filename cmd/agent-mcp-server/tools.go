package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"agent-chatter/internal/chat"
)

// defaultKey is the conversation of calls made without a client session.
const defaultKey = "mcp"

type AskAgentParams struct {
	Text     string `json:"text" mcp:"the message to send to the agent"`
	AgentRID string `json:"agent_rid,omitempty" mcp:"agent RID to talk to; switching agents starts a new session"`
}

type ResetParams struct{}

type agentTools struct {
	registry   *chat.Registry
	dispatcher *chat.Dispatcher

	mu   sync.Mutex
	keys map[*mcp.ServerSession]string
}

func newAgentTools(registry *chat.Registry, dispatcher *chat.Dispatcher) *agentTools {
	return &agentTools{
		registry:   registry,
		dispatcher: dispatcher,
		keys:       make(map[*mcp.ServerSession]string),
	}
}

// conversation returns the conversation of an MCP client session; each
// SSE client gets its own. Keys whose conversation was swept are pruned
// whenever a new client shows up.
func (t *agentTools) conversation(session *mcp.ServerSession) *chat.Conversation {
	if session == nil {
		return t.registry.Get(defaultKey)
	}
	t.mu.Lock()
	key, ok := t.keys[session]
	if !ok {
		for s, k := range t.keys {
			if _, live := t.registry.Lookup(k); !live {
				delete(t.keys, s)
			}
		}
		key = "mcp:" + uuid.NewString()
		t.keys[session] = key
	}
	t.mu.Unlock()
	return t.registry.Get(key)
}

func register(server *mcp.Server, t *agentTools) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask_agent",
		Description: "Sends a message to the AIP agent and returns its markdown reply. The conversation continues across calls.",
	}, t.AskAgent)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "reset_conversation",
		Description: "Clears the conversation and drops the agent session",
	}, t.Reset)
}

func textResult(text string, isErr bool) *mcp.CallToolResultFor[any] {
	return &mcp.CallToolResultFor[any]{
		IsError: isErr,
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func (t *agentTools) AskAgent(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[AskAgentParams]) (*mcp.CallToolResultFor[any], error) {
	args := params.Arguments
	conv := t.conversation(session)
	if args.AgentRID != "" {
		conv.SetAgentRID(args.AgentRID)
	}

	reply, err := t.dispatcher.Submit(ctx, conv, args.Text, nil)
	switch {
	case err == nil:
		return textResult(reply.Content, false), nil
	case errors.Is(err, chat.ErrAgentNotConfigured):
		return textResult(chat.MissingAgentPrompt+" Pass agent_rid.", true), nil
	case errors.Is(err, chat.ErrEmptyInput):
		return textResult("text is required", true), nil
	default:
		log.Printf("[mcp] ask_agent failed: %v", err)
		return textResult(fmt.Sprintf("agent request failed: %v", err), true), nil
	}
}

func (t *agentTools) Reset(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[ResetParams]) (*mcp.CallToolResultFor[any], error) {
	t.conversation(session).Reset()
	return textResult("conversation reset", false), nil
}
