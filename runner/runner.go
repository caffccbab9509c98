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

// Package runner drives turns end to end: it serializes turns per session,
// checks state out of the store and writes it back, absorbs every failure
// into a user-visible reply, and guards the tool-call acknowledgment
// invariant at the turn boundary.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tripwise/concierge/approval"
	"github.com/tripwise/concierge/conversation"
	"github.com/tripwise/concierge/graph"
	"github.com/tripwise/concierge/model"
	"github.com/tripwise/concierge/session"
)

// Reply texts for the failure taxonomy. Raw errors never reach the caller.
const (
	genericFailureReply = "An unexpected error occurred while processing your request. " +
		"Please try again later."
	modelUnavailableReply = "The assistant is temporarily unavailable. " +
		"Please try again in a moment."
	recoveredProtocolReply = "I apologize for the technical difficulty. Your request has been processed. " +
		"Please try rephrasing your question if you need additional assistance."
	pendingApprovalReply = "A previous action is still awaiting your approval. " +
		"Please approve or reject it before continuing."
	nothingToApproveReply = "No pending action found."
	decisionFailureReply  = "An unexpected error occurred while processing your decision. " +
		"Please try again later."
	emptyReply = "I'm sorry, I didn't understand that. Could you please rephrase?"
)

// Config assembles a Runner.
type Config struct {
	Graph      *graph.Graph
	Store      session.Service
	Reconciler *approval.Reconciler
	Logger     zerolog.Logger

	// DefaultTraveler is assigned to new sessions whose first message
	// carries no traveler identity.
	DefaultTraveler string
}

// New creates a Runner.
func New(cfg Config) (*Runner, error) {
	if cfg.Graph == nil {
		return nil, fmt.Errorf("graph is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if cfg.Reconciler == nil {
		return nil, fmt.Errorf("reconciler is required")
	}
	return &Runner{
		graph:           cfg.Graph,
		store:           cfg.Store,
		reconciler:      cfg.Reconciler,
		log:             cfg.Logger,
		defaultTraveler: cfg.DefaultTraveler,
		locks:           make(map[string]*sync.Mutex),
	}, nil
}

// Runner processes one turn per session at a time. Different sessions run
// fully in parallel; approval decisions share the same per-session lock so
// at most one resolution is in flight for a session.
type Runner struct {
	graph           *graph.Graph
	store           session.Service
	reconciler      *approval.Reconciler
	log             zerolog.Logger
	defaultTraveler string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (r *Runner) sessionLock(id string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[id]
	if !ok {
		l = &sync.Mutex{}
		r.locks[id] = l
	}
	return l
}

// ProcessMessage runs one user turn to a terminal reply or a suspension.
// travelerID binds a new session to a traveler and may be empty afterwards.
// Every failure path ends in a reply string; an error return means the
// session store itself is unusable.
func (r *Runner) ProcessMessage(ctx context.Context, sessionID, travelerID, text string) (string, error) {
	lock := r.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	// A session with an outstanding approval accepts only decisions.
	if _, err := r.store.GetPending(ctx, sessionID); err == nil {
		return pendingApprovalReply, nil
	} else if !errors.Is(err, session.ErrNoPendingApproval) {
		return "", fmt.Errorf("checking pending approval: %w", err)
	}

	sess, err := r.store.Load(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("loading session: %w", err)
	}
	if sess.TravelerID == "" {
		sess.TravelerID = travelerID
		if sess.TravelerID == "" {
			sess.TravelerID = r.defaultTraveler
		}
	}

	r.appendLog(ctx, sessionID, session.LogUserInput, "User message", text)
	sess.State.Append(conversation.NewUserMessage(text))

	reply := r.runTurn(ctx, sess)

	// The acknowledgment scan runs after all other processing so it only
	// catches genuine omissions.
	r.acknowledgeOrphans(sessionID, sess.State)

	if err := r.store.Save(ctx, sess); err != nil {
		return "", fmt.Errorf("saving session: %w", err)
	}
	r.appendLog(ctx, sessionID, session.LogReply, "Reply", reply)
	return reply, nil
}

// runTurn executes the graph and converts every failure into a reply.
func (r *Runner) runTurn(ctx context.Context, sess *session.Session) (reply string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().Interface("panic", rec).Str("session", sess.ID).
				Msg("turn panicked, returning generic failure")
			r.appendLog(ctx, sess.ID, session.LogError, "Processing error", fmt.Sprint(rec))
			reply = genericFailureReply
		}
	}()

	res, err := r.graph.Run(ctx, sess.ID, sess.TravelerID, sess.State)
	switch {
	case err == nil:
		if res.Reply == "" {
			return emptyReply
		}
		return res.Reply

	// A protocol fault carries the orphaned call ID; acknowledge it so the
	// conversation stays resumable, then degrade the reply.
	default:
		if mae, ok := model.AsMissingAck(err); ok {
			r.log.Warn().Str("call_id", mae.CallID).Str("session", sess.ID).
				Msg("missing acknowledgment reported by model boundary, repairing")
			sess.State.Append(conversation.NewToolResult(mae.CallID,
				"Emergency acknowledgment: tool call processed."))
			return recoveredProtocolReply
		}
		if errors.Is(err, model.ErrUnavailable) {
			r.log.Warn().Err(err).Str("session", sess.ID).Msg("model unavailable")
			return modelUnavailableReply
		}
		r.log.Error().Err(err).Str("session", sess.ID).Msg("turn failed")
		r.appendLog(ctx, sess.ID, session.LogError, "Processing error", err.Error())
		return genericFailureReply
	}
}

// acknowledgeOrphans synthesizes a generic tool result for any invocation
// left without one, so the conversation can always be resumed.
func (r *Runner) acknowledgeOrphans(sessionID string, state *conversation.State) {
	for _, tc := range state.UnacknowledgedCalls() {
		r.log.Warn().Str("call_id", tc.ID).Str("tool", tc.Name).Str("session", sessionID).
			Msg("unacknowledged tool call, synthesizing result")
		state.Append(conversation.NewToolResult(tc.ID,
			fmt.Sprintf("Tool %q processed successfully.", tc.Name)))
	}
}

// ResolveDecision applies an approve/reject decision to the session's
// pending approval.
func (r *Runner) ResolveDecision(ctx context.Context, sessionID string, decision session.Decision) (string, error) {
	lock := r.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	reply, err := r.reconciler.Resolve(ctx, sessionID, decision)
	if errors.Is(err, session.ErrNoPendingApproval) {
		return nothingToApproveReply, nil
	}
	if err != nil {
		r.log.Error().Err(err).Str("session", sessionID).Msg("decision processing failed")
		r.appendLog(ctx, sessionID, session.LogError, "Decision processing error", err.Error())
		// Clear the pending state even on failure so the session cannot
		// become permanently stuck.
		if cerr := r.store.ClearPending(ctx, sessionID); cerr != nil {
			r.log.Error().Err(cerr).Str("session", sessionID).Msg("failed to clear pending approval")
		}
		return decisionFailureReply, nil
	}
	return reply, nil
}

func (r *Runner) appendLog(ctx context.Context, sessionID string, kind session.LogKind, title, content string) {
	if err := r.store.AppendLog(ctx, sessionID, session.LogEntry{Kind: kind, Title: title, Content: content}); err != nil {
		r.log.Warn().Err(err).Msg("failed to append log entry")
	}
}
