// Package rest exposes the engine's read side plus the execution feedback
// hook for external consumers.
package rest

import (
	"encoding/json"
	"net/http"

	"cyclarb/internal/engine"
)

type Server struct {
	mux *http.ServeMux
	eng *engine.Engine
}

func New(eng *engine.Engine) *Server {
	s := &Server{mux: http.NewServeMux(), eng: eng}
	s.mux.HandleFunc("/status", s.status)
	s.mux.HandleFunc("/ledger", s.ledger)
	s.mux.HandleFunc("/feedback", s.feedback)
	return s
}

func (s *Server) Handler() http.Handler { return s.mux }

// status returns the last tick report, including the emitted opportunities.
func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.eng.LastReport())
}

func (s *Server) ledger(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int{"entries": s.eng.LedgerSize(r.Context())})
}

// feedback settles a reserved path: {"path_key":"SOL>USDC>SOL","success":false}.
func (s *Server) feedback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		PathKey string `json:"path_key"`
		Success bool   `json:"success"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PathKey == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if err := s.eng.ApplyFeedback(r.Context(), req.PathKey, req.Success); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
