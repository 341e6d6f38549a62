// Package debug exposes a localhost-only status API for inspecting the
// realtime channel while the app runs. It replaces attaching a debugger to a
// live install: curl the status, force a reconnect, or inject a test event.
// Disabled by default; identifying values are masked before they leave the
// process.
package debug

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/evertran/koinonia-desktop/internal/logger"
	"github.com/evertran/koinonia-desktop/internal/realtime"
)

// RealtimeControl is the slice of the realtime manager the API exposes.
type RealtimeControl interface {
	Status() realtime.Status
	Emit(name string, data interface{}) error
	CheckReconnect()
}

// SessionInfo exposes the signed-in identity.
type SessionInfo interface {
	CurrentIdentity() string
}

// Server is the localhost debug API
type Server struct {
	httpServer *http.Server
	rt         RealtimeControl
	session    SessionInfo
	logger     *logger.Logger
}

// NewServer creates the debug API server bound to a loopback address
func NewServer(host string, port int, rt RealtimeControl, session SessionInfo) *Server {
	s := &Server{
		rt:      rt,
		session: session,
		logger:  logger.NewComponentLogger("DebugAPI"),
	}

	router := mux.NewRouter()
	router.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	router.HandleFunc("/api/socket/emit", s.handleEmit).Methods(http.MethodPost)
	router.HandleFunc("/api/socket/reconnect", s.handleReconnect).Methods(http.MethodPost)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	return s
}

// Start runs the server in the background
func (s *Server) Start() {
	go func() {
		s.logger.Info("Debug API listening on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Debug API stopped: %v", err)
		}
	}()
}

// Stop shuts the server down
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// statusResponse is the GET /api/status body.
type statusResponse struct {
	Session  string          `json:"session"`
	Realtime realtime.Status `json:"realtime"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Session:  logger.MaskIdentity(s.session.CurrentIdentity()),
		Realtime: s.rt.Status(),
	}
	writeJSON(w, http.StatusOK, resp)
}

// emitRequest is the POST /api/socket/emit body.
type emitRequest struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (s *Server) handleEmit(w http.ResponseWriter, r *http.Request) {
	var req emitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Event == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body must be {\"event\": ..., \"data\": ...}"})
		return
	}

	if err := s.rt.Emit(req.Event, req.Data); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}

	s.logger.Info("Debug emit of %s", req.Event)
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

func (s *Server) handleReconnect(w http.ResponseWriter, r *http.Request) {
	s.rt.CheckReconnect()
	writeJSON(w, http.StatusOK, map[string]string{"status": "checked"})
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
