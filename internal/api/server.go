// Package api exposes the HTTP surface: conversation generation,
// health, version, usage summaries, and a websocket event stream.
package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ferrule/courier/internal/agent"
	"github.com/ferrule/courier/internal/buildinfo"
	"github.com/ferrule/courier/internal/conversation"
	"github.com/ferrule/courier/internal/events"
	"github.com/ferrule/courier/internal/render"
	"github.com/ferrule/courier/internal/schema"
	"github.com/ferrule/courier/internal/usage"
)

// Generator runs one conversation request. *agent.Agent satisfies it.
type Generator interface {
	Generate(ctx context.Context, req agent.Request) (*agent.Result, error)
}

const maxConversations = 256

type Server struct {
	generator Generator
	bus       *events.Bus
	usage     *usage.Store
	logger    *slog.Logger
	upgrader  websocket.Upgrader

	mu            sync.Mutex
	conversations map[string]*storedConversation
}

type storedConversation struct {
	turns    []conversation.Turn
	lastUsed time.Time
}

func NewServer(generator Generator, bus *events.Bus, store *usage.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		generator: generator,
		bus:       bus,
		usage:     store,
		logger:    logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conversations: make(map[string]*storedConversation),
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/generate", s.handleGenerate)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/version", s.handleVersion)
	mux.HandleFunc("GET /api/usage", s.handleUsage)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	return mux
}

type attachmentRequest struct {
	Filename  string `json:"filename,omitempty"`
	MediaType string `json:"media_type,omitempty"`
	URL       string `json:"url,omitempty"`
	Path      string `json:"path,omitempty"`
	Data      string `json:"data,omitempty"` // base64
}

type structureRequest struct {
	Name   string         `json:"name"`
	Schema *schema.Schema `json:"schema"`
}

type generateRequest struct {
	ConversationID string              `json:"conversation_id,omitempty"`
	Text           string              `json:"text"`
	Attachments    []attachmentRequest `json:"attachments,omitempty"`
	Structure      *structureRequest   `json:"structure,omitempty"`
}

type generateResponse struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
	Data           any    `json:"data,omitempty"`
	Speech         string `json:"speech"`
	HTML           string `json:"html"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if req.Text == "" && len(req.Attachments) == 0 {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("request needs text or attachments"))
		return
	}

	userTurn, err := buildUserTurn(req)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	agentReq := agent.Request{
		ConversationID: req.ConversationID,
		Turns:          append(s.priorTurns(req.ConversationID), userTurn),
	}
	if req.Structure != nil {
		if req.Structure.Schema == nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("structure needs a schema"))
			return
		}
		agentReq.Structure = &agent.Structure{Name: req.Structure.Name, Schema: req.Structure.Schema}
	}

	result, err := s.generator.Generate(r.Context(), agentReq)
	if err != nil {
		s.logger.Error("generate failed", "error", err)
		s.writeError(w, http.StatusBadGateway, err)
		return
	}
	s.storeTurns(result.ConversationID, result.Turns)

	html, err := render.HTML(result.Text)
	if err != nil {
		s.logger.Warn("render html failed", "error", err)
		html = ""
	}
	s.writeJSON(w, http.StatusOK, generateResponse{
		ConversationID: result.ConversationID,
		Text:           result.Text,
		Data:           result.Data,
		Speech:         render.Plain(result.Text),
		HTML:           html,
	})
}

func buildUserTurn(req generateRequest) (conversation.Turn, error) {
	attachments := make([]conversation.Attachment, 0, len(req.Attachments))
	for _, a := range req.Attachments {
		att := conversation.Attachment{
			Filename:  a.Filename,
			MediaType: a.MediaType,
			URL:       a.URL,
			Path:      a.Path,
		}
		if a.Data != "" {
			data, err := base64.StdEncoding.DecodeString(a.Data)
			if err != nil {
				return conversation.Turn{}, fmt.Errorf("attachment %q: invalid base64: %w", a.Filename, err)
			}
			att.Data = data
		}
		attachments = append(attachments, att)
	}
	return conversation.User(req.Text, attachments...), nil
}

func (s *Server) priorTurns(conversationID string) []conversation.Turn {
	if conversationID == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.conversations[conversationID]
	if !ok {
		return nil
	}
	stored.lastUsed = time.Now()
	return stored.turns
}

func (s *Server) storeTurns(conversationID string, turns []conversation.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[conversationID] = &storedConversation{turns: turns, lastUsed: time.Now()}
	if len(s.conversations) <= maxConversations {
		return
	}
	// Evict the least recently used conversation.
	type entry struct {
		id       string
		lastUsed time.Time
	}
	all := make([]entry, 0, len(s.conversations))
	for id, c := range s.conversations {
		all = append(all, entry{id, c.lastUsed})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].lastUsed.Before(all[j].lastUsed) })
	for _, e := range all[:len(all)-maxConversations] {
		delete(s.conversations, e.id)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, buildinfo.Info())
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	if s.usage == nil {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("usage store not configured"))
		return
	}
	hours := 24
	if h := r.URL.Query().Get("hours"); h != "" {
		parsed, err := strconv.Atoi(h)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid hours %q", h))
			return
		}
		hours = parsed
	}
	since := time.Now().Add(-time.Duration(hours) * time.Hour)

	summary, err := s.usage.Since(r.Context(), since)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	byModel, err := s.usage.SinceByModel(r.Context(), since)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"hours":    hours,
		"summary":  summary,
		"by_model": byModel,
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("event stream not configured"))
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ch, cancel := s.bus.Subscribe()
	defer cancel()

	// Reader goroutine notices the client going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
