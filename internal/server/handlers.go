package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/MeKo-Tech/matrixscan/internal/handoff"
	"github.com/MeKo-Tech/matrixscan/internal/version"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:  "healthy",
		Version: version.Get().Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}
	if s.sessions != nil {
		response.ActiveSessions = s.sessions.active()
	}
	s.writeJSON(w, http.StatusOK, response)
}

// sessionsHandler lists live and recently ended sessions.
func (s *Server) sessionsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	list := s.sessions.list()
	s.writeJSON(w, http.StatusOK, SessionsResponse{Sessions: list, Count: len(list)})
}

// sessionBarcodesHandler returns one session's barcode list. With
// ?format=handoff or ?format=yaml the body is the hand-off document.
func (s *Server) sessionBarcodesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := mux.Vars(r)["id"]
	sess, ok := s.sessions.get(id)
	if !ok {
		s.writeErrorResponse(w, "session_not_found", "no session "+id, http.StatusNotFound)
		return
	}

	switch r.URL.Query().Get("format") {
	case "handoff":
		w.Header().Set("Content-Type", "application/json")
		if err := handoff.Encode(w, sess.Barcodes, handoff.FormatJSON); err != nil {
			s.log.Error("Failed to encode hand-off", "session", id, "error", err)
		}
	case "yaml":
		w.Header().Set("Content-Type", "application/yaml")
		if err := handoff.Encode(w, sess.Barcodes, handoff.FormatYAML); err != nil {
			s.log.Error("Failed to encode hand-off", "session", id, "error", err)
		}
	default:
		s.writeJSON(w, http.StatusOK, sess)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, code, message string, statusCode int) {
	s.writeJSON(w, statusCode, ErrorResponse{Error: code, Message: message})
}
