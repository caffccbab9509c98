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

package approval

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tripwise/concierge/conversation"
	"github.com/tripwise/concierge/session"
	"github.com/tripwise/concierge/tool"
)

// RejectedContent is the standard explanation recorded for every invocation
// of a rejected batch.
const RejectedContent = "Operation cancelled by user."

// Reconciler consumes an out-of-band user decision, executes or discards the
// intercepted operations, and folds the outcome back into the conversation.
type Reconciler struct {
	store    session.Service
	registry *tool.Registry
	log      zerolog.Logger
}

// NewReconciler creates a Reconciler.
func NewReconciler(store session.Service, registry *tool.Registry, log zerolog.Logger) *Reconciler {
	return &Reconciler{store: store, registry: registry, log: log}
}

// Resolve applies the decision to the session's pending approval and returns
// the user-facing reply.
//
// It returns [session.ErrNoPendingApproval] when nothing awaits a decision,
// which makes a second resolution of the same batch a side-effect-free
// no-op. On every other path the pending approval is cleared, even when
// individual operations fail.
func (r *Reconciler) Resolve(ctx context.Context, sessionID string, decision session.Decision) (string, error) {
	if !decision.Valid() {
		return "", fmt.Errorf("invalid decision %q", decision)
	}

	pending, err := r.store.GetPending(ctx, sessionID)
	if err != nil {
		return "", err
	}

	sess, err := r.store.Load(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("loading session %s: %w", sessionID, err)
	}

	if err := r.store.AppendLog(ctx, sessionID, session.LogEntry{
		Kind:    session.LogDecision,
		Title:   "User decision",
		Content: string(decision),
	}); err != nil {
		r.log.Warn().Err(err).Msg("failed to append decision log entry")
	}

	var lines []string
	if decision == session.DecisionApprove {
		lines = r.execute(tool.WithTraveler(ctx, sess.TravelerID), sessionID, pending.Calls)
	} else {
		for _, tc := range pending.Calls {
			lines = append(lines, fmt.Sprintf("%s: %s", tc.Name, RejectedContent))
		}
	}

	// Clearing must happen regardless of operation outcomes so the session
	// can never stay stuck behind a consumed decision.
	if err := r.store.ClearPending(ctx, sessionID); err != nil {
		return "", fmt.Errorf("clearing pending approval for %s: %w", sessionID, err)
	}

	reply := strings.Join(lines, "\n")
	sess.State.Append(conversation.NewAssistantMessage(reply))
	if err := r.store.Save(ctx, sess); err != nil {
		return "", fmt.Errorf("saving session %s: %w", sessionID, err)
	}
	return reply, nil
}

// execute dispatches each approved invocation with its original arguments.
// Failures are isolated per invocation and reported individually.
func (r *Reconciler) execute(ctx context.Context, sessionID string, calls []conversation.ToolCall) []string {
	var lines []string
	for _, tc := range calls {
		result, err := r.executeOne(ctx, tc)
		if err != nil {
			r.log.Error().Err(err).Str("operation", tc.Name).Msg("approved operation failed")
			lines = append(lines, fmt.Sprintf("%s failed: %v", tc.Name, err))
			r.appendLog(ctx, sessionID, session.LogError, tc.Name+" error", err.Error())
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", tc.Name, result))
		r.appendLog(ctx, sessionID, session.LogToolResult, tc.Name+" result", result)
	}
	return lines
}

func (r *Reconciler) executeOne(ctx context.Context, tc conversation.ToolCall) (result string, err error) {
	entry, ok := r.registry.Lookup(tc.Name)
	if !ok {
		return "", fmt.Errorf("unknown operation")
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("operation panicked: %v", rec)
		}
	}()
	return entry.Tool.Run(ctx, tc.Args)
}

func (r *Reconciler) appendLog(ctx context.Context, sessionID string, kind session.LogKind, title, content string) {
	if err := r.store.AppendLog(ctx, sessionID, session.LogEntry{Kind: kind, Title: title, Content: content}); err != nil {
		r.log.Warn().Err(err).Msg("failed to append log entry")
	}
}
