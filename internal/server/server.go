// Package server exposes the HTTP surface: the Meetstream webhook, the
// session API and the observer websocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/devamsheth0806/VeriMeet/internal/broadcast"
	"github.com/devamsheth0806/VeriMeet/internal/connector"
	"github.com/devamsheth0806/VeriMeet/internal/pipeline"
	"github.com/devamsheth0806/VeriMeet/internal/session"
)

// Core is the pipeline surface the handlers drive. *pipeline.Orchestrator
// implements it.
type Core interface {
	CreateSession() *session.State
	IngestSegment(ctx context.Context, sessionID string, seg session.Segment) error
	CurrentSummary(sessionID string) (pipeline.Snapshot, error)
	Finalize(ctx context.Context, sessionID string) (*session.FinalSummary, error)
}

// BotCreator sends a meeting bot into a call. Nil disables /api/create-bot.
type BotCreator interface {
	CreateBot(ctx context.Context, meetingURL, botName string) (connector.BotInfo, error)
}

type Server struct {
	core      Core
	registry  *session.Registry
	hub       *broadcast.Hub
	bots      BotCreator
	logPrefix string
}

func New(core Core, registry *session.Registry, hub *broadcast.Hub, bots BotCreator) *Server {
	return &Server{
		core:      core,
		registry:  registry,
		hub:       hub,
		bots:      bots,
		logPrefix: "[server]",
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleHealth)
	mux.HandleFunc("POST /webhook/meetstream", s.handleWebhook)
	mux.HandleFunc("POST /api/create-bot", s.handleCreateBot)
	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("POST /api/sessions/{id}/finalize", s.handleFinalize)
	if s.hub != nil {
		mux.HandleFunc("GET /ws", s.hub.ServeWS)
	}
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "VeriMeet"})
}

type webhookPayload struct {
	EventType    string `json:"event_type"`
	SessionID    string `json:"session_id"`
	BotID        string `json:"bot_id"`
	Transcript   string `json:"transcript"`
	Sequence     int64  `json:"sequence"`
	MeetingURL   string `json:"meeting_url"`
	MeetingTitle string `json:"meeting_title"`
}

// handleWebhook receives Meetstream callbacks. Transcript processing errors
// inside the pipeline never turn into webhook failures; only routing
// problems (unknown session, finalized session, malformed body) are
// reported, so the platform does not retry what cannot succeed.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var p webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	switch p.EventType {
	case "transcript":
		if p.Transcript == "" {
			writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
			return
		}
		st, err := s.resolveSession(p)
		if err != nil {
			writeError(w, http.StatusNotFound, "unknown session")
			return
		}
		err = s.core.IngestSegment(r.Context(), st.ID(), session.Segment{
			Text:     p.Transcript,
			Sequence: p.Sequence,
		})
		switch {
		case errors.Is(err, session.ErrFinalized):
			writeError(w, http.StatusConflict, "session already finalized")
		case errors.Is(err, session.ErrNotFound):
			writeError(w, http.StatusNotFound, "unknown session")
		case err != nil:
			log.Printf("%s ingest failed: %v", s.logPrefix, err)
			writeError(w, http.StatusInternalServerError, "ingest failed")
		default:
			writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
		}

	case "meeting_ended":
		st, err := s.resolveSession(p)
		if err != nil {
			writeError(w, http.StatusNotFound, "unknown session")
			return
		}
		if _, err := s.core.Finalize(r.Context(), st.ID()); err != nil {
			log.Printf("%s finalize failed for %s: %v", s.logPrefix, st.ID(), err)
			writeError(w, http.StatusInternalServerError, "finalize failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "received"})

	case "bot_joined":
		// A bot the platform reports before we bound it gets a fresh
		// session, so transcripts that follow have somewhere to go.
		if p.BotID != "" {
			if _, err := s.registry.ResolveBot(p.BotID); err != nil {
				st := s.core.CreateSession()
				s.registry.BindBot(p.BotID, st)
				log.Printf("%s bot %s joined, bound to session %s", s.logPrefix, p.BotID, st.ID())
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "received"})

	default:
		log.Printf("%s ignoring webhook event_type=%q", s.logPrefix, p.EventType)
		writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
	}
}

func (s *Server) resolveSession(p webhookPayload) (*session.State, error) {
	if p.SessionID != "" {
		return s.registry.Get(p.SessionID)
	}
	if p.BotID != "" {
		return s.registry.ResolveBot(p.BotID)
	}
	return nil, session.ErrNotFound
}

func (s *Server) handleCreateBot(w http.ResponseWriter, r *http.Request) {
	if s.bots == nil {
		writeError(w, http.StatusServiceUnavailable, "bot platform not configured")
		return
	}

	var body struct {
		MeetingURL string `json:"meeting_url"`
		BotName    string `json:"bot_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.MeetingURL == "" {
		writeError(w, http.StatusBadRequest, "meeting_url is required")
		return
	}

	info, err := s.bots.CreateBot(r.Context(), body.MeetingURL, body.BotName)
	if err != nil {
		log.Printf("%s create bot failed: %v", s.logPrefix, err)
		writeError(w, http.StatusBadGateway, "create bot failed")
		return
	}

	st := s.core.CreateSession()
	s.registry.BindBot(info.BotID, st)

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"bot_id":      info.BotID,
		"status":      info.Status,
		"session_id":  st.ID(),
		"meeting_url": body.MeetingURL,
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, _ *http.Request) {
	st := s.core.CreateSession()
	writeJSON(w, http.StatusOK, map[string]string{"session_id": st.ID()})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("session_id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	snap, err := s.core.CurrentSummary(id)
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "summary unavailable")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	final, err := s.core.Finalize(r.Context(), id)
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	if err != nil {
		log.Printf("%s finalize failed for %s: %v", s.logPrefix, id, err)
		writeError(w, http.StatusInternalServerError, "finalize failed")
		return
	}
	writeJSON(w, http.StatusOK, final)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[server] write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
