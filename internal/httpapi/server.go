// Package httpapi exposes the thin HTTP surface over the bus, session
// store, cron service, and config: health/status, posting a message in as
// if it arrived on a channel, listing sessions, and cron CRUD.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/nextlevelbuilder/robun/internal/bus"
	"github.com/nextlevelbuilder/robun/internal/config"
	"github.com/nextlevelbuilder/robun/internal/cron"
	"github.com/nextlevelbuilder/robun/internal/session"
)

// Server wires the HTTP surface to the runtime's shared components.
type Server struct {
	Bus      *bus.Bus
	Sessions *session.Store
	Cron     *cron.Service
	Config   *config.Config
	startedAt time.Time
}

func NewServer(b *bus.Bus, sessions *session.Store, cronSvc *cron.Service, cfg *config.Config) *Server {
	return &Server{Bus: b, Sessions: sessions, Cron: cronSvc, Config: cfg, startedAt: time.Now()}
}

// Handler returns the routed http.Handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /agent/message", s.handleAgentMessage)
	mux.HandleFunc("GET /sessions", s.handleListSessions)
	mux.HandleFunc("GET /sessions/{key}", s.handleGetSession)
	mux.HandleFunc("GET /cron/jobs", s.handleListCronJobs)
	mux.HandleFunc("POST /cron/jobs", s.handleAddCronJob)
	mux.HandleFunc("POST /cron/jobs/{id}/run", s.handleRunCronJob)
	mux.HandleFunc("DELETE /cron/jobs/{id}", s.handleDeleteCronJob)
	mux.HandleFunc("GET /config", s.handleGetConfig)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"uptimeSeconds": int(time.Since(s.startedAt).Seconds()),
	}
	if s.Cron != nil {
		status["cron"] = s.Cron.GetStatus()
	}
	writeJSON(w, http.StatusOK, status)
}

type agentMessageRequest struct {
	Channel string `json:"channel"`
	ChatID  string `json:"chatId"`
	Sender  string `json:"senderId"`
	Content string `json:"content"`
}

// handleAgentMessage publishes an InboundEvent as if it arrived on a real
// channel adapter, useful for debugging and for channels that are
// themselves thin HTTP clients.
func (s *Server) handleAgentMessage(w http.ResponseWriter, r *http.Request) {
	var req agentMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Channel == "" || req.ChatID == "" || req.Content == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "channel, chatId, and content are required"})
		return
	}
	s.Bus.PublishInbound(bus.InboundEvent{
		Channel:   req.Channel,
		ChatID:    req.ChatID,
		SenderID:  req.Sender,
		Content:   req.Content,
		Timestamp: time.Now(),
	})
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	infos, err := s.Sessions.ListSessions()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	sess := s.Sessions.GetOrCreate(key)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"key":              sess.Key,
		"createdAt":        sess.CreatedAt,
		"updatedAt":        sess.UpdatedAt,
		"lastConsolidated": sess.LastConsolidated,
		"messages":         sess.Messages,
	})
}

func (s *Server) handleListCronJobs(w http.ResponseWriter, r *http.Request) {
	includeDisabled, _ := strconv.ParseBool(r.URL.Query().Get("includeDisabled"))
	writeJSON(w, http.StatusOK, s.Cron.ListJobs(includeDisabled))
}

func (s *Server) handleAddCronJob(w http.ResponseWriter, r *http.Request) {
	var job cron.Job
	if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	created, err := s.Cron.AddJob(job)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleRunCronJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	if err := s.Cron.RunJob(id, force); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "running"})
}

func (s *Server) handleDeleteCronJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.Cron.RemoveJob(id); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Config.Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
