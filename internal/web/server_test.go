package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent-chatter/internal/aip"
	"agent-chatter/internal/chat"
	"agent-chatter/internal/history"
	"agent-chatter/internal/storage"
)

type fakeAgent struct {
	creates   int
	continues int
	reply     string
	err       error
}

func (f *fakeAgent) CreateSession(context.Context, string, bool) (aip.Session, error) {
	f.creates++
	return aip.Session{RID: "s1"}, nil
}

func (f *fakeAgent) BlockingContinue(context.Context, aip.ContinueRequest) (aip.ContinueResponse, error) {
	f.continues++
	if f.err != nil {
		return aip.ContinueResponse{}, f.err
	}
	return aip.ContinueResponse{AgentMarkdownResponse: f.reply}, nil
}

type fixedSource struct{ c aip.Client }

func (f fixedSource) Default(context.Context) (aip.Client, error) { return f.c, nil }

func newTestServer(agent *fakeAgent, defaultRID string) (*Server, *chat.Registry) {
	reg := chat.NewRegistry(defaultRID)
	return New(reg, chat.NewDispatcher(fixedSource{agent}, nil), nil, ":0"), reg
}

// browser keeps the session cookie between requests.
type browser struct {
	t      *testing.T
	h      http.Handler
	cookie *http.Cookie
}

func (b *browser) do(req *http.Request) *httptest.ResponseRecorder {
	if b.cookie != nil {
		req.AddCookie(b.cookie)
	}
	rec := httptest.NewRecorder()
	b.h.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.Name == cookieName {
			b.cookie = c
		}
	}
	return rec
}

func (b *browser) form(path string, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func TestIndexShowsGreeting(t *testing.T) {
	s, _ := newTestServer(&fakeAgent{}, "")
	b := &browser{t: t, h: s.Handler()}
	rec := b.do(httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "How can I help you?")
	require.NotNil(t, b.cookie, "first visit must issue a session cookie")
}

func TestChatFlow(t *testing.T) {
	agent := &fakeAgent{reply: "**hi** there <script>alert(1)</script>"}
	s, reg := newTestServer(agent, "")
	b := &browser{t: t, h: s.Handler()}
	b.do(httptest.NewRequest(http.MethodGet, "/", nil))

	// no agent yet: informational prompt, no remote call
	rec := b.form("/chat", url.Values{"prompt": {"hello"}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), chat.MissingAgentPrompt)
	assert.Zero(t, agent.creates+agent.continues)

	rec = b.form("/agent", url.Values{"agent_rid": {"ri.test.agent"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	rec = b.form("/chat", url.Values{"prompt": {"hello"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	rec = b.do(httptest.NewRequest(http.MethodGet, "/", nil))
	body := rec.Body.String()
	assert.Contains(t, body, "<strong>hi</strong> there")
	assert.NotContains(t, body, "<script>alert(1)</script>")
	assert.Contains(t, body, `value="ri.test.agent"`)

	conv, ok := reg.Lookup("web:" + b.cookie.Value)
	require.True(t, ok)
	assert.Equal(t, []history.Message{
		{Role: history.RoleAssistant, Content: history.Greeting},
		{Role: history.RoleUser, Content: "hello"},
		{Role: history.RoleAssistant, Content: agent.reply},
	}, conv.Transcript.Messages())

	rec = b.form("/reset", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, 1, conv.Transcript.Len())
}

func TestChatRemoteFailure(t *testing.T) {
	agent := &fakeAgent{err: errors.New("agent service returned 500")}
	s, _ := newTestServer(agent, "ri.test.agent")
	b := &browser{t: t, h: s.Handler()}

	rec := b.form("/chat", url.Values{"prompt": {"hello"}})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "agent service returned 500")
}

func TestBrowsersAreIsolated(t *testing.T) {
	agent := &fakeAgent{reply: "ok"}
	s, _ := newTestServer(agent, "ri.test.agent")
	alice := &browser{t: t, h: s.Handler()}
	bob := &browser{t: t, h: s.Handler()}

	alice.form("/chat", url.Values{"prompt": {"from alice"}})
	rec := bob.do(httptest.NewRequest(http.MethodGet, "/api/transcript", nil))

	var tr transcriptJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tr))
	assert.Len(t, tr.Messages, 1)
	assert.Empty(t, tr.SessionRID)
	assert.Equal(t, 1, agent.creates)
}

func TestAPIChat(t *testing.T) {
	agent := &fakeAgent{reply: "pong"}
	s, _ := newTestServer(agent, "")
	b := &browser{t: t, h: s.Handler()}

	post := func(body string) (*httptest.ResponseRecorder, chatResponse) {
		req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := b.do(req)
		var resp chatResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return rec, resp
	}

	rec, resp := post(`{"text":"ping"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, chat.MissingAgentPrompt, resp.Error)

	rec, resp = post(`{"text":"ping","agent_rid":"ri.test.agent"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", resp.Reply)

	rec, _ = post(`{"text":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = b.do(httptest.NewRequest(http.MethodGet, "/api/transcript", nil))
	var tr transcriptJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tr))
	assert.Equal(t, "s1", tr.SessionRID)
	assert.Len(t, tr.Messages, 3)
}

func TestHealthAndMethods(t *testing.T) {
	s, _ := newTestServer(&fakeAgent{}, "")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chat", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestTurnsFromAuditLog(t *testing.T) {
	rec, err := storage.NewFileRecorder(filepath.Join(t.TempDir(), "turns.jsonl"))
	require.NoError(t, err)
	reg := chat.NewRegistry("ri.test.agent")
	s := New(reg, chat.NewDispatcher(fixedSource{&fakeAgent{reply: "pong"}}, rec), rec, ":0")
	alice := &browser{t: t, h: s.Handler()}
	bob := &browser{t: t, h: s.Handler()}

	alice.form("/chat", url.Values{"prompt": {"first"}})
	alice.form("/reset", nil)
	alice.form("/chat", url.Values{"prompt": {"second"}})
	bob.form("/chat", url.Values{"prompt": {"from bob"}})

	rec2 := alice.do(httptest.NewRequest(http.MethodGet, "/api/turns", nil))
	require.Equal(t, http.StatusOK, rec2.Code)
	var turns []storage.Event
	require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &turns))
	require.Len(t, turns, 2)
	assert.Equal(t, "first", turns[0].UserMessage)
	assert.Equal(t, "second", turns[1].UserMessage)
	assert.Equal(t, "pong", turns[1].AssistantResponse)
}

func TestTurnsWithoutRecorder(t *testing.T) {
	s, _ := newTestServer(&fakeAgent{}, "")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/turns", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
