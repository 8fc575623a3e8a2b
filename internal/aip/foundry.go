package aip

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

const userAgent = "agent-chatter/1.0"

var ErrMalformedResponse = errors.New("malformed response from agent service")

// APIError is a non-2xx answer from the platform. The platform error
// envelope fields are filled when the body carries one.
type APIError struct {
	StatusCode      int            `json:"-"`
	ErrorCode       string         `json:"errorCode"`
	ErrorName       string         `json:"errorName"`
	ErrorInstanceID string         `json:"errorInstanceId"`
	Parameters      map[string]any `json:"parameters"`

	err *googleapi.Error
}

func (e *APIError) Error() string {
	if e.ErrorName != "" {
		return fmt.Sprintf("agent service returned %d %s: %s", e.StatusCode, e.ErrorCode, e.ErrorName)
	}
	if e.err != nil && e.err.Body != "" {
		return fmt.Sprintf("agent service returned %d: %s", e.StatusCode, e.err.Body)
	}
	return fmt.Sprintf("agent service returned %d", e.StatusCode)
}

func (e *APIError) Unwrap() error {
	if e.err == nil {
		return nil
	}
	return e.err
}

func newAPIError(gerr *googleapi.Error) *APIError {
	apiErr := &APIError{StatusCode: gerr.Code, err: gerr}
	_ = json.Unmarshal([]byte(gerr.Body), apiErr)
	return apiErr
}

// FoundryClient calls the AIP agent session endpoints of a platform host.
type FoundryClient struct {
	baseURL    string
	httpClient *http.Client
}

type FoundryOption func(*foundryOptions)

type foundryOptions struct {
	base    *http.Client
	timeout time.Duration
}

// WithHTTPClient sets the client whose transport carries the
// authenticated requests.
func WithHTTPClient(c *http.Client) FoundryOption {
	return func(o *foundryOptions) { o.base = c }
}

func WithTimeout(d time.Duration) FoundryOption {
	return func(o *foundryOptions) { o.timeout = d }
}

func NewFoundryClient(hostname string, ts oauth2.TokenSource, opts ...FoundryOption) *FoundryClient {
	o := foundryOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	hc := oauth2.NewClient(withHTTPClient(context.Background(), o.base), ts)
	if o.timeout > 0 {
		hc.Timeout = o.timeout
	}
	return &FoundryClient{baseURL: baseURL(hostname), httpClient: hc}
}

func (c *FoundryClient) CreateSession(ctx context.Context, agentRID string, preview bool) (Session, error) {
	path := fmt.Sprintf("/api/v2/aipAgents/agents/%s/sessions", url.PathEscape(agentRID))
	var out Session
	if err := c.post(ctx, path, preview, struct{}{}, &out); err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	if out.RID == "" {
		return Session{}, fmt.Errorf("create session: %w: no rid", ErrMalformedResponse)
	}
	return out, nil
}

type continueBody struct {
	UserInput       UserInput      `json:"userInput"`
	ParameterInputs map[string]any `json:"parameterInputs"`
}

type continueResult struct {
	AgentMarkdownResponse *string        `json:"agentMarkdownResponse"`
	ParameterUpdates      map[string]any `json:"parameterUpdates"`
	TotalTokensUsed       int            `json:"totalTokensUsed"`
}

func (c *FoundryClient) BlockingContinue(ctx context.Context, req ContinueRequest) (ContinueResponse, error) {
	path := fmt.Sprintf("/api/v2/aipAgents/agents/%s/sessions/%s/blockingContinue",
		url.PathEscape(req.AgentRID), url.PathEscape(string(req.SessionRID)))
	params := req.ParameterInputs
	if params == nil {
		params = map[string]any{}
	}
	var out continueResult
	if err := c.post(ctx, path, req.Preview, continueBody{UserInput: req.UserInput, ParameterInputs: params}, &out); err != nil {
		return ContinueResponse{}, fmt.Errorf("blocking continue: %w", err)
	}
	if out.AgentMarkdownResponse == nil {
		return ContinueResponse{}, fmt.Errorf("blocking continue: %w: no agentMarkdownResponse", ErrMalformedResponse)
	}
	return ContinueResponse{
		AgentMarkdownResponse: *out.AgentMarkdownResponse,
		ParameterUpdates:      out.ParameterUpdates,
		TotalTokensUsed:       out.TotalTokensUsed,
	}, nil
}

func (c *FoundryClient) post(ctx context.Context, path string, preview bool, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	u := c.baseURL + path
	if preview {
		u += "?preview=true"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := googleapi.CheckResponse(resp); err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) {
			return newAPIError(gerr)
		}
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}
