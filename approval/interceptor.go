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

// Package approval implements the human-in-the-loop gate for sensitive
// operations: the interceptor that suspends a turn before a sensitive tool
// executes, and the reconciler that applies the user's later decision.
package approval

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tripwise/concierge/conversation"
	"github.com/tripwise/concierge/session"
)

// AwaitingApprovalContent is the placeholder acknowledgment appended for
// every intercepted tool call so the conversation satisfies the
// call/result pairing rule while suspended.
const AwaitingApprovalContent = "Action requires user approval. Please wait for user decision."

// ApprovalRequiredReply is the reply returned for a suspended turn.
const ApprovalRequiredReply = "[User approval required for sensitive action. " +
	"Please approve or reject this action.]"

// Interceptor pauses a turn at the sensitive-tool transition. It never
// executes the underlying operations.
type Interceptor struct {
	store session.Service
	log   zerolog.Logger
}

// NewInterceptor creates an Interceptor writing through the given store.
func NewInterceptor(store session.Service, log zerolog.Logger) *Interceptor {
	return &Interceptor{store: store, log: log}
}

// Intercept snapshots every tool call of msg into a pending approval,
// persists it, and appends a placeholder tool result per call ID. The turn
// must return [ApprovalRequiredReply] and suspend after this call.
func (i *Interceptor) Intercept(ctx context.Context, sessionID string, state *conversation.State, msg *conversation.Message) error {
	if len(msg.ToolCalls) == 0 {
		return fmt.Errorf("intercept called on message %s without tool calls", msg.ID)
	}

	pending := &session.PendingApproval{
		SessionID: sessionID,
		Calls:     append([]conversation.ToolCall(nil), msg.ToolCalls...),
		CreatedAt: time.Now(),
	}
	if err := i.store.SetPending(ctx, pending); err != nil {
		return fmt.Errorf("persisting pending approval: %w", err)
	}

	for _, tc := range msg.ToolCalls {
		state.Append(conversation.NewToolResult(tc.ID, AwaitingApprovalContent))
	}

	i.log.Info().
		Str("session", sessionID).
		Int("calls", len(msg.ToolCalls)).
		Msg("sensitive action intercepted, awaiting user decision")

	if err := i.store.AppendLog(ctx, sessionID, session.LogEntry{
		Kind:    session.LogInterrupt,
		Title:   "Approval required",
		Content: describeCalls(msg.ToolCalls),
	}); err != nil {
		i.log.Warn().Err(err).Msg("failed to append interrupt log entry")
	}
	return nil
}

func describeCalls(calls []conversation.ToolCall) string {
	out := ""
	for idx, tc := range calls {
		if idx > 0 {
			out += "; "
		}
		out += tc.Name
	}
	return out
}
