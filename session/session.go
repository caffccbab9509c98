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

// Package session abstracts durable conversation storage: message history,
// the pending-approval snapshot, and the per-session operation log.
package session

import (
	"context"
	"time"

	"github.com/tripwise/concierge/conversation"
)

// Session is one stored conversation.
type Session struct {
	ID string
	// TravelerID identifies the caller in the travel database and scopes the
	// user-context fetch at graph entry.
	TravelerID string

	State   *conversation.State
	Updated time.Time
}

// PendingApproval is a snapshot of sensitive tool invocations awaiting an
// out-of-band user decision. It is the only turn state that survives a
// suspension.
type PendingApproval struct {
	SessionID string                  `json:"session_id"`
	Calls     []conversation.ToolCall `json:"calls"`
	CreatedAt time.Time               `json:"created_at"`
}

// Decision is the user's verdict on a pending approval.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Valid reports whether d is one of the two supported decisions.
func (d Decision) Valid() bool {
	return d == DecisionApprove || d == DecisionReject
}

// LogEntry is one record in the per-session operation log.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Kind    LogKind   `json:"kind"`
	Title   string    `json:"title"`
	Content string    `json:"content,omitempty"`
}

// LogKind categorizes operation-log records.
type LogKind string

const (
	LogUserInput  LogKind = "user_input"
	LogReply      LogKind = "reply"
	LogToolCall   LogKind = "tool_call"
	LogToolResult LogKind = "tool_result"
	LogInterrupt  LogKind = "interrupt"
	LogDecision   LogKind = "decision"
	LogError      LogKind = "error"
)

// Service is the session store. Implementations must be read-modify-write
// safe per session: Load hands out an independent copy of the state and Save
// replaces it atomically.
type Service interface {
	// Load returns the session, creating it when absent.
	Load(ctx context.Context, id string) (*Session, error)
	// Save writes the session state back.
	Save(ctx context.Context, s *Session) error

	// GetPending returns the pending approval for the session, or
	// [ErrNoPendingApproval] when there is none.
	GetPending(ctx context.Context, id string) (*PendingApproval, error)
	// SetPending records the pending approval, superseding any previous one.
	SetPending(ctx context.Context, p *PendingApproval) error
	// ClearPending removes the pending approval. Clearing an absent approval
	// is a no-op.
	ClearPending(ctx context.Context, id string) error

	// AppendLog appends an operation-log record for the session.
	AppendLog(ctx context.Context, id string, e LogEntry) error
	// Log returns the operation log in append order.
	Log(ctx context.Context, id string) ([]LogEntry, error)
}
