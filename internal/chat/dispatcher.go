package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"agent-chatter/internal/aip"
	"agent-chatter/internal/history"
	"agent-chatter/internal/storage"
)

var ErrEmptyInput = errors.New("empty message")

// ClientSource hands out the agent client. *aip.Factory implements it.
type ClientSource interface {
	Default(ctx context.Context) (aip.Client, error)
}

// RenderFunc is called after each message is appended during a turn.
type RenderFunc func(history.Message)

type Dispatcher struct {
	clients  ClientSource
	recorder storage.Recorder
	now      func() time.Time
}

// NewDispatcher wires the dispatcher. rec may be nil.
func NewDispatcher(clients ClientSource, rec storage.Recorder) *Dispatcher {
	return &Dispatcher{clients: clients, recorder: rec, now: time.Now}
}

// Submit runs one turn: the user text goes into the transcript, then to
// the agent, and the complete reply comes back into the transcript.
// Remote failures are returned as is; nothing is retried and the user
// message stays in the transcript. A Reset while the agent is working
// discards the reply and yields ErrConversationReset.
func (d *Dispatcher) Submit(ctx context.Context, conv *Conversation, text string, render RenderFunc) (history.Message, error) {
	if render == nil {
		render = func(history.Message) {}
	}
	if strings.TrimSpace(text) == "" {
		return history.Message{}, ErrEmptyInput
	}

	conv.turn.Lock()
	defer conv.turn.Unlock()
	defer func() { conv.touch(d.now()) }()

	agent := conv.AgentRID()
	if agent == "" {
		return history.Message{}, ErrAgentNotConfigured
	}

	gen, userMsg := conv.beginTurn(text)
	render(userMsg)

	client, err := d.clients.Default(ctx)
	if err != nil {
		return history.Message{}, fmt.Errorf("agent client: %w", err)
	}
	sessionRID, err := conv.ensureSession(ctx, client, gen)
	if err != nil {
		return history.Message{}, err
	}

	resp, err := client.BlockingContinue(ctx, aip.ContinueRequest{
		AgentRID:        agent,
		SessionRID:      sessionRID,
		ParameterInputs: map[string]any{},
		UserInput:       aip.UserInput{Text: text},
		Preview:         aip.Preview,
	})
	if err != nil {
		return history.Message{}, fmt.Errorf("continue session %s: %w", sessionRID, err)
	}

	reply, ok := conv.finishTurn(gen, resp.AgentMarkdownResponse)
	if !ok {
		return history.Message{}, ErrConversationReset
	}
	render(reply)

	d.record(conv, agent, sessionRID, text, resp.AgentMarkdownResponse)
	return reply, nil
}

func (d *Dispatcher) record(conv *Conversation, agent string, sessionRID aip.SessionRID, text, reply string) {
	if d.recorder == nil {
		return
	}
	err := d.recorder.AppendInteraction(storage.Event{
		Timestamp:         d.now().UTC(),
		Conversation:      conv.Key,
		AgentRID:          agent,
		SessionRID:        string(sessionRID),
		UserMessage:       text,
		AssistantResponse: reply,
	})
	if err != nil {
		log.Printf("[chat] failed to record turn for %s: %v", conv.Key, err)
	}
}
