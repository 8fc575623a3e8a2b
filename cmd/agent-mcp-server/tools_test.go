package main

import (
	"context"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent-chatter/internal/aip"
	"agent-chatter/internal/chat"
)

type fakeAgent struct {
	reply string
	err   error
}

func (f *fakeAgent) CreateSession(context.Context, string, bool) (aip.Session, error) {
	return aip.Session{RID: "s1"}, nil
}

func (f *fakeAgent) BlockingContinue(context.Context, aip.ContinueRequest) (aip.ContinueResponse, error) {
	if f.err != nil {
		return aip.ContinueResponse{}, f.err
	}
	return aip.ContinueResponse{AgentMarkdownResponse: f.reply}, nil
}

type fixedSource struct{ c aip.Client }

func (f fixedSource) Default(context.Context) (aip.Client, error) { return f.c, nil }

func newTools(agent *fakeAgent) (*agentTools, *chat.Registry) {
	reg := chat.NewRegistry("")
	return newAgentTools(reg, chat.NewDispatcher(fixedSource{agent}, nil)), reg
}

func ask(t *testing.T, tools *agentTools, args AskAgentParams) *mcp.CallToolResultFor[any] {
	t.Helper()
	res, err := tools.AskAgent(context.Background(), nil, &mcp.CallToolParamsFor[AskAgentParams]{Arguments: args})
	require.NoError(t, err)
	require.Len(t, res.Content, 1)
	return res
}

func text(res *mcp.CallToolResultFor[any]) string {
	return res.Content[0].(*mcp.TextContent).Text
}

func TestAskAgent(t *testing.T) {
	tools, reg := newTools(&fakeAgent{reply: "pong"})

	res := ask(t, tools, AskAgentParams{Text: "ping"})
	assert.True(t, res.IsError)
	assert.Contains(t, text(res), chat.MissingAgentPrompt)

	res = ask(t, tools, AskAgentParams{Text: "ping", AgentRID: "ri.agent"})
	assert.False(t, res.IsError)
	assert.Equal(t, "pong", text(res))

	res = ask(t, tools, AskAgentParams{})
	assert.True(t, res.IsError)

	conv, ok := reg.Lookup(defaultKey)
	require.True(t, ok)
	assert.Equal(t, 3, conv.Transcript.Len())

	_, err := tools.Reset(context.Background(), nil, &mcp.CallToolParamsFor[ResetParams]{})
	require.NoError(t, err)
	assert.Equal(t, 1, conv.Transcript.Len())
}

func TestAskAgentFailure(t *testing.T) {
	tools, _ := newTools(&fakeAgent{err: errors.New("boom")})
	res := ask(t, tools, AskAgentParams{Text: "hi", AgentRID: "ri.agent"})
	assert.True(t, res.IsError)
	assert.Contains(t, text(res), "boom")
}

func TestToolsOverTransport(t *testing.T) {
	ctx := context.Background()
	tools, reg := newTools(&fakeAgent{reply: "pong"})

	server := mcp.NewServer(&mcp.Implementation{Name: "agent-chatter-mcp", Version: "test"}, nil)
	register(server, tools)

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	_, err := server.Connect(ctx, serverTransport)
	require.NoError(t, err)
	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "test"}, nil)
	cs, err := client.Connect(ctx, clientTransport)
	require.NoError(t, err)
	defer cs.Close()

	listed, err := cs.ListTools(ctx, &mcp.ListToolsParams{})
	require.NoError(t, err)
	var names []string
	for _, tool := range listed.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"ask_agent", "reset_conversation"}, names)

	for range 2 {
		res, err := cs.CallTool(ctx, &mcp.CallToolParams{
			Name:      "ask_agent",
			Arguments: map[string]any{"text": "ping", "agent_rid": "ri.agent"},
		})
		require.NoError(t, err)
		require.False(t, res.IsError)
		assert.Equal(t, "pong", res.Content[0].(*mcp.TextContent).Text)
	}
	// both calls belong to the one client session
	assert.Equal(t, 1, reg.Len())

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{Name: "reset_conversation", Arguments: map[string]any{}})
	require.NoError(t, err)
	assert.False(t, res.IsError)
}
