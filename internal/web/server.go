// Package web serves the browser chat page.
package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/yuin/goldmark"

	"agent-chatter/internal/chat"
	"agent-chatter/internal/history"
	"agent-chatter/internal/storage"
)

const cookieName = "agent_chatter_session"

type Server struct {
	registry   *chat.Registry
	dispatcher *chat.Dispatcher
	recorder   storage.Recorder
	md         goldmark.Markdown
	router     *mux.Router
	server     *http.Server
}

// New builds the server. rec may be nil, in which case /api/turns is
// unavailable.
func New(registry *chat.Registry, dispatcher *chat.Dispatcher, rec storage.Recorder, addr string) *Server {
	s := &Server{
		registry:   registry,
		dispatcher: dispatcher,
		recorder:   rec,
		md:         goldmark.New(),
	}

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/agent", s.handleSetAgent).Methods(http.MethodPost)
	r.HandleFunc("/chat", s.handleChat).Methods(http.MethodPost)
	r.HandleFunc("/reset", s.handleReset).Methods(http.MethodPost)
	r.HandleFunc("/api/transcript", s.handleTranscript).Methods(http.MethodGet)
	r.HandleFunc("/api/chat", s.handleAPIChat).Methods(http.MethodPost)
	r.HandleFunc("/api/turns", s.handleTurns).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router = r

	// WriteTimeout stays unset: a turn blocks until the agent answers.
	s.server = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Start() error {
	log.Printf("[web] listening on %s", s.server.Addr)
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// conversation resolves the browser's conversation, issuing a cookie on
// the first visit.
func (s *Server) conversation(w http.ResponseWriter, r *http.Request) *chat.Conversation {
	id := ""
	if c, err := r.Cookie(cookieName); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			id = c.Value
		}
	}
	if id == "" {
		id = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     cookieName,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return s.registry.Get("web:" + id)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	conv := s.conversation(w, r)
	s.renderPage(w, http.StatusOK, conv, "", "")
}

func (s *Server) handleSetAgent(w http.ResponseWriter, r *http.Request) {
	conv := s.conversation(w, r)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	conv.SetAgentRID(r.PostForm.Get("agent_rid"))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.conversation(w, r).Reset()
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	conv := s.conversation(w, r)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	_, err := s.dispatcher.Submit(r.Context(), conv, r.PostForm.Get("prompt"), nil)
	switch {
	case err == nil, errors.Is(err, chat.ErrEmptyInput), errors.Is(err, chat.ErrConversationReset):
		http.Redirect(w, r, "/", http.StatusSeeOther)
	case errors.Is(err, chat.ErrAgentNotConfigured):
		s.renderPage(w, http.StatusOK, conv, chat.MissingAgentPrompt, "")
	default:
		log.Printf("[web] turn failed for %s: %v", conv.Key, err)
		s.renderPage(w, http.StatusBadGateway, conv, "", err.Error())
	}
}

type transcriptJSON struct {
	AgentRID   string            `json:"agent_rid"`
	SessionRID string            `json:"session_rid,omitempty"`
	Messages   []history.Message `json:"messages"`
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	conv := s.conversation(w, r)
	writeJSON(w, http.StatusOK, transcriptJSON{
		AgentRID:   conv.AgentRID(),
		SessionRID: string(conv.SessionRID()),
		Messages:   conv.Transcript.Messages(),
	})
}

type chatRequest struct {
	Text     string `json:"text"`
	AgentRID string `json:"agent_rid,omitempty"`
}

type chatResponse struct {
	Reply string `json:"reply,omitempty"`
	Error string `json:"error,omitempty"`
}

func (s *Server) handleAPIChat(w http.ResponseWriter, r *http.Request) {
	conv := s.conversation(w, r)
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, chatResponse{Error: "invalid JSON body"})
		return
	}
	if req.AgentRID != "" {
		conv.SetAgentRID(req.AgentRID)
	}
	reply, err := s.dispatcher.Submit(r.Context(), conv, req.Text, nil)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, chatResponse{Reply: reply.Content})
	case errors.Is(err, chat.ErrAgentNotConfigured):
		writeJSON(w, http.StatusUnprocessableEntity, chatResponse{Error: chat.MissingAgentPrompt})
	case errors.Is(err, chat.ErrEmptyInput):
		writeJSON(w, http.StatusBadRequest, chatResponse{Error: err.Error()})
	case errors.Is(err, chat.ErrConversationReset):
		writeJSON(w, http.StatusConflict, chatResponse{Error: err.Error()})
	default:
		log.Printf("[web] api turn failed for %s: %v", conv.Key, err)
		writeJSON(w, http.StatusBadGateway, chatResponse{Error: err.Error()})
	}
}

// handleTurns lists the recorded turns of the browser's conversation,
// including those from before a reset.
func (s *Server) handleTurns(w http.ResponseWriter, r *http.Request) {
	conv := s.conversation(w, r)
	if s.recorder == nil {
		writeJSON(w, http.StatusNotFound, chatResponse{Error: "turn log is disabled"})
		return
	}
	events, err := s.recorder.LoadInteractions()
	if err != nil {
		log.Printf("[web] load turns: %v", err)
		writeJSON(w, http.StatusInternalServerError, chatResponse{Error: "failed to read turn log"})
		return
	}
	turns := storage.ByConversation(events, conv.Key)
	if turns == nil {
		turns = []storage.Event{}
	}
	writeJSON(w, http.StatusOK, turns)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "conversations": s.registry.Len()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[web] failed to write response: %v", err)
	}
}

type pageMessage struct {
	Role history.Role
	Body template.HTML
}

type pageData struct {
	AgentRID string
	Messages []pageMessage
	Info     string
	Error    string
}

func (s *Server) renderPage(w http.ResponseWriter, status int, conv *chat.Conversation, info, errText string) {
	data := pageData{AgentRID: conv.AgentRID(), Info: info, Error: errText}
	for m := range conv.Transcript.All() {
		data.Messages = append(data.Messages, pageMessage{Role: m.Role, Body: s.renderBody(m)})
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		log.Printf("[web] template: %v", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderBody renders assistant markdown. Raw HTML inside the markdown is
// dropped by goldmark's default renderer; user text is only escaped.
func (s *Server) renderBody(m history.Message) template.HTML {
	if m.Role != history.RoleAssistant {
		return template.HTML("<p>" + template.HTMLEscapeString(m.Content) + "</p>")
	}
	var buf bytes.Buffer
	if err := s.md.Convert([]byte(m.Content), &buf); err != nil {
		return template.HTML("<pre>" + template.HTMLEscapeString(m.Content) + "</pre>")
	}
	return template.HTML(buf.String())
}
