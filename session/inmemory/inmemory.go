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

// Package inmemory provides a map-backed session store for tests and
// single-process deployments.
package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/tripwise/concierge/conversation"
	"github.com/tripwise/concierge/session"
)

// New returns a new in-memory implementation of session.Service. Thread-safe.
func New() session.Service {
	return &service{
		sessions: make(map[string]*session.Session),
		pending:  make(map[string]*session.PendingApproval),
		logs:     make(map[string][]session.LogEntry),
	}
}

type service struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session
	pending  map[string]*session.PendingApproval
	logs     map[string][]session.LogEntry
}

func (s *service) Load(ctx context.Context, id string) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.sessions[id]
	if !ok {
		cur = &session.Session{
			ID:      id,
			State:   &conversation.State{},
			Updated: time.Now(),
		}
		s.sessions[id] = cur
	}
	out := *cur
	out.State = cur.State.Clone()
	return &out, nil
}

func (s *service) Save(ctx context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *sess
	stored.State = sess.State.Clone()
	stored.Updated = time.Now()
	s.sessions[sess.ID] = &stored
	return nil
}

func (s *service) GetPending(ctx context.Context, id string) (*session.PendingApproval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pending[id]
	if !ok {
		return nil, session.ErrNoPendingApproval
	}
	cp := *p
	cp.Calls = append([]conversation.ToolCall(nil), p.Calls...)
	return &cp, nil
}

func (s *service) SetPending(ctx context.Context, p *session.PendingApproval) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	cp.Calls = append([]conversation.ToolCall(nil), p.Calls...)
	s.pending[p.SessionID] = &cp
	return nil
}

func (s *service) ClearPending(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
	return nil
}

func (s *service) AppendLog(ctx context.Context, id string, e session.LogEntry) error {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[id] = append(s.logs[id], e)
	return nil
}

func (s *service) Log(ctx context.Context, id string) ([]session.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]session.LogEntry(nil), s.logs[id]...), nil
}
