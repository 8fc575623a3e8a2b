package aip

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
)

var ErrUnknownSession = errors.New("unknown session")

// OpenAIClient is a local stand-in for the agent service backed by an
// OpenAI-compatible chat completion endpoint. Sessions only live in
// this process.
type OpenAIClient struct {
	client *openai.Client
	model  string

	mu       sync.Mutex
	sessions map[SessionRID]*localSession
}

type localSession struct {
	agentRID string
	messages []openai.ChatCompletionMessage
}

func NewOpenAI(apiKey, baseURL, model string) *OpenAIClient {
	conf := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		conf.BaseURL = baseURL
	}
	return &OpenAIClient{
		client:   openai.NewClientWithConfig(conf),
		model:    model,
		sessions: make(map[SessionRID]*localSession),
	}
}

func (c *OpenAIClient) CreateSession(_ context.Context, agentRID string, _ bool) (Session, error) {
	rid := SessionRID("ri.local.session." + uuid.NewString())
	c.mu.Lock()
	c.sessions[rid] = &localSession{agentRID: agentRID}
	c.mu.Unlock()
	return Session{RID: rid, AgentRID: agentRID}, nil
}

func (c *OpenAIClient) BlockingContinue(ctx context.Context, req ContinueRequest) (ContinueResponse, error) {
	c.mu.Lock()
	sess, ok := c.sessions[req.SessionRID]
	var msgs []openai.ChatCompletionMessage
	if ok {
		msgs = append(msgs, sess.messages...)
	}
	c.mu.Unlock()
	if !ok {
		return ContinueResponse{}, fmt.Errorf("blocking continue: %w: %s", ErrUnknownSession, req.SessionRID)
	}
	if sess.agentRID != req.AgentRID {
		return ContinueResponse{}, fmt.Errorf("blocking continue: session %s belongs to agent %s", req.SessionRID, sess.agentRID)
	}

	user := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.UserInput.Text}
	msgs = append(msgs, user)
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: msgs,
	})
	if err != nil {
		return ContinueResponse{}, fmt.Errorf("blocking continue: %w", err)
	}
	if len(resp.Choices) == 0 {
		return ContinueResponse{}, fmt.Errorf("blocking continue: %w: no choices", ErrMalformedResponse)
	}
	reply := resp.Choices[0].Message.Content

	c.mu.Lock()
	sess.messages = append(sess.messages, user, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: reply})
	c.mu.Unlock()

	return ContinueResponse{AgentMarkdownResponse: reply, TotalTokensUsed: resp.Usage.TotalTokens}, nil
}
