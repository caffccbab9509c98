// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package server exposes the conversation runner over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/tripwise/concierge/graph"
	"github.com/tripwise/concierge/runner"
	"github.com/tripwise/concierge/session"
)

// StatusError carries an HTTP status alongside an error.
type StatusError struct {
	Err  error
	Code int
}

func NewStatusError(err error, code int) StatusError {
	return StatusError{Err: err, Code: code}
}

func (se StatusError) Error() string { return se.Err.Error() }

// Status returns the associated status code.
func (se StatusError) Status() int { return se.Code }

// Config assembles a Server.
type Config struct {
	Runner *runner.Runner
	Store  session.Service
	Graph  *graph.Graph
	Logger zerolog.Logger
}

// Server handles the conversation API.
type Server struct {
	runner *runner.Runner
	store  session.Service
	graph  *graph.Graph
	log    zerolog.Logger
}

// New validates the configuration and builds the server.
func New(cfg Config) (*Server, error) {
	if cfg.Runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if cfg.Graph == nil {
		return nil, fmt.Errorf("graph is required")
	}
	return &Server{
		runner: cfg.Runner,
		store:  cfg.Store,
		graph:  cfg.Graph,
		log:    cfg.Logger,
	}, nil
}

// Handler returns the routed HTTP handler with CORS and request logging.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/sessions/{session_id}/messages", s.postMessage).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{session_id}/approval", s.postApproval).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{session_id}", s.getSession).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{session_id}/log", s.getLog).Methods(http.MethodGet)
	r.HandleFunc("/graph", s.getGraph).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return c.Handler(s.logRequests(r))
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug().Str("method", r.Method).Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).Msg("request")
	})
}

type messageRequest struct {
	Message string `json:"message"`
	// TravelerID binds a newly created session to a traveler record. It is
	// ignored once the session is bound.
	TravelerID string `json:"traveler_id,omitempty"`
}

type approvalRequest struct {
	Decision string `json:"decision"`
}

type replyResponse struct {
	Reply string `json:"reply"`
}

func (s *Server) postMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewStatusError(fmt.Errorf("invalid request body: %w", err), http.StatusBadRequest))
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.writeError(w, NewStatusError(errors.New("message must not be empty"), http.StatusBadRequest))
		return
	}
	reply, err := s.runner.ProcessMessage(r.Context(), sessionID, req.TravelerID, req.Message)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, replyResponse{Reply: reply})
}

func (s *Server) postApproval(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]
	var req approvalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewStatusError(fmt.Errorf("invalid request body: %w", err), http.StatusBadRequest))
		return
	}
	decision := session.Decision(req.Decision)
	if !decision.Valid() {
		s.writeError(w, NewStatusError(
			fmt.Errorf("decision must be %q or %q", session.DecisionApprove, session.DecisionReject),
			http.StatusBadRequest))
		return
	}
	reply, err := s.runner.ResolveDecision(r.Context(), sessionID, decision)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, replyResponse{Reply: reply})
}

type sessionResponse struct {
	ID              string                  `json:"id"`
	TravelerID      string                  `json:"traveler_id"`
	Messages        []*conversationMessage  `json:"messages"`
	PendingApproval *pendingApprovalSummary `json:"pending_approval,omitempty"`
}

type conversationMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Tools   []string `json:"tools,omitempty"`
}

type pendingApprovalSummary struct {
	Operations []string  `json:"operations"`
	CreatedAt  time.Time `json:"created_at"`
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]
	sess, err := s.store.Load(r.Context(), sessionID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := sessionResponse{ID: sess.ID, TravelerID: sess.TravelerID}
	for _, msg := range sess.State.Messages {
		cm := &conversationMessage{Role: string(msg.Role), Content: msg.Content}
		for _, tc := range msg.ToolCalls {
			cm.Tools = append(cm.Tools, tc.Name)
		}
		resp.Messages = append(resp.Messages, cm)
	}
	if pending, err := s.store.GetPending(r.Context(), sessionID); err == nil {
		summary := &pendingApprovalSummary{CreatedAt: pending.CreatedAt}
		for _, tc := range pending.Calls {
			summary.Operations = append(summary.Operations, tc.Name)
		}
		resp.PendingApproval = summary
	} else if !errors.Is(err, session.ErrNoPendingApproval) {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getLog(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]
	entries, err := s.store.Log(r.Context(), sessionID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) getGraph(w http.ResponseWriter, r *http.Request) {
	dot, err := s.graph.DOT()
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/vnd.graphviz")
	fmt.Fprint(w, dot)
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	var se StatusError
	if errors.As(err, &se) {
		code = se.Status()
	} else if errors.Is(err, session.ErrSessionNotFound) {
		code = http.StatusNotFound
	}
	if code >= http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("request failed")
	}
	s.writeJSON(w, code, map[string]string{"error": err.Error()})
}
