// Package aip talks to the remote agent service: it resolves credentials,
// builds authenticated clients and exposes the two session calls the
// chat front-ends need.
package aip

import "context"

// Preview marks every call as targeting the preview agent API. The
// service has no stable surface for sessions yet, so this is fixed.
const Preview = true

// SessionRID identifies a conversation on the remote service.
type SessionRID string

type Session struct {
	RID          SessionRID `json:"rid"`
	AgentRID     string     `json:"agentRid,omitempty"`
	AgentVersion string     `json:"agentVersion,omitempty"`
}

type UserInput struct {
	Text string `json:"text"`
}

type ContinueRequest struct {
	AgentRID        string
	SessionRID      SessionRID
	ParameterInputs map[string]any
	UserInput       UserInput
	Preview         bool
}

type ContinueResponse struct {
	AgentMarkdownResponse string         `json:"agentMarkdownResponse"`
	ParameterUpdates      map[string]any `json:"parameterUpdates,omitempty"`
	TotalTokensUsed       int            `json:"totalTokensUsed,omitempty"`
}

// Client is the narrow view of the agent service used by the dispatcher.
type Client interface {
	CreateSession(ctx context.Context, agentRID string, preview bool) (Session, error)
	BlockingContinue(ctx context.Context, req ContinueRequest) (ContinueResponse, error)
}
