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

// Package graph implements the conversation routing state machine: the
// safety gate, the primary dispatcher, the per-domain assistants and their
// tool nodes, and the sensitive-tool transition that suspends a turn.
package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tripwise/concierge/approval"
	"github.com/tripwise/concierge/assistant"
	"github.com/tripwise/concierge/conversation"
	"github.com/tripwise/concierge/guard"
	"github.com/tripwise/concierge/internal/telemetry"
	"github.com/tripwise/concierge/tool"
)

// NodeID names one state of the routing graph.
type NodeID string

const (
	NodeEntry        NodeID = "entry"
	NodePrimary      NodeID = "primary_assistant"
	NodePrimaryTools NodeID = "primary_assistant_tools"
	NodeEnd          NodeID = "__end__"
)

// EnterNode is the entry state of a domain, seeding the hand-off note.
func EnterNode(d tool.Domain) NodeID { return NodeID("enter_" + d) }

// AssistantNode is the conversational state of a domain.
func AssistantNode(d tool.Domain) NodeID { return NodeID(d) }

// SafeToolsNode executes a domain's safe tool batch.
func SafeToolsNode(d tool.Domain) NodeID { return NodeID(string(d) + "_safe_tools") }

// SensitiveToolsNode is the gated state a sensitive batch transitions into.
func SensitiveToolsNode(d tool.Domain) NodeID { return NodeID(string(d) + "_sensitive_tools") }

// Interceptor suspends a turn before sensitive operations execute. Satisfied
// by approval.Interceptor; injected explicitly so the graph carries no
// ambient approval state.
type Interceptor interface {
	Intercept(ctx context.Context, sessionID string, state *conversation.State, msg *conversation.Message) error
}

// ContextFetcher supplies the per-session user context (the traveler's
// current bookings) at graph entry.
type ContextFetcher interface {
	FetchUserContext(ctx context.Context, travelerID string) (string, error)
}

// Config assembles a Graph.
type Config struct {
	Registry    *tool.Registry
	Primary     *assistant.Assistant
	Domains     map[tool.Domain]*assistant.Assistant
	Gate        *guard.Gate
	Interceptor Interceptor

	// ContextFetcher is optional; without it UserContext is left untouched.
	ContextFetcher ContextFetcher

	// MaxSteps bounds the assistant/tool loop of one turn. Zero means the
	// default of 24.
	MaxSteps int

	Logger zerolog.Logger
}

// Result is the outcome of one turn.
type Result struct {
	// Reply is the user-facing reply text.
	Reply string
	// Suspended reports that the turn stopped at a sensitive-tool
	// transition and a pending approval was recorded.
	Suspended bool
}

// Graph is the routing state machine. Routing decisions are pure functions
// of the latest assistant message and the static registry; all mutable data
// lives in the conversation state passed through Run.
type Graph struct {
	registry    *tool.Registry
	primary     *assistant.Assistant
	domains     map[tool.Domain]*assistant.Assistant
	gate        *guard.Gate
	interceptor Interceptor
	fetcher     ContextFetcher
	maxSteps    int
	log         zerolog.Logger
}

// New validates the configuration and builds the graph.
func New(cfg Config) (*Graph, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if cfg.Primary == nil {
		return nil, fmt.Errorf("primary assistant is required")
	}
	if cfg.Interceptor == nil {
		return nil, fmt.Errorf("interceptor is required")
	}
	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = 24
	}
	return &Graph{
		registry:    cfg.Registry,
		primary:     cfg.Primary,
		domains:     cfg.Domains,
		gate:        cfg.Gate,
		interceptor: cfg.Interceptor,
		fetcher:     cfg.ContextFetcher,
		maxSteps:    maxSteps,
		log:         cfg.Logger,
	}, nil
}

// Run processes one turn to a terminal reply or a suspension. The state is
// mutated in place; the caller owns persisting it.
func (g *Graph) Run(ctx context.Context, sessionID, travelerID string, state *conversation.State) (*Result, error) {
	ctx, span := telemetry.StartTurn(ctx, sessionID)
	defer span.End()
	ctx = tool.WithTraveler(ctx, travelerID)

	// Entry node: refresh the user context, then gate the input.
	if g.fetcher != nil {
		uc, err := g.fetcher.FetchUserContext(ctx, travelerID)
		if err != nil {
			g.log.Warn().Err(err).Msg("user context fetch failed, keeping previous context")
		} else {
			state.UserContext = uc
		}
	}

	if g.gate != nil {
		res := g.gate.Check(ctx, state)
		if res.Outcome == guard.Block {
			state.Append(conversation.NewAssistantMessage(res.Reply))
			return &Result{Reply: res.Reply}, nil
		}
		if res.Reply != "" {
			// Pass with a clarification notice; routing still proceeds.
			state.Append(conversation.NewAssistantMessage(res.Reply))
		}
	}

	current := NodePrimary
	for step := 0; step < g.maxSteps; step++ {
		next, result, err := g.step(ctx, sessionID, current, state)
		if err != nil {
			return nil, err
		}
		if result != nil {
			return result, nil
		}
		current = next
	}

	g.log.Error().Str("session", sessionID).Int("max_steps", g.maxSteps).
		Msg("turn exceeded step budget")
	reply := "I couldn't complete that request. Please try rephrasing it."
	state.Append(conversation.NewAssistantMessage(reply))
	return &Result{Reply: reply}, nil
}

// step executes one node and returns either the next node or a terminal
// result.
func (g *Graph) step(ctx context.Context, sessionID string, current NodeID, state *conversation.State) (NodeID, *Result, error) {
	if current == NodePrimary {
		return g.stepPrimary(ctx, sessionID, state)
	}
	for d := range g.domains {
		if current == AssistantNode(d) {
			return g.stepDomain(ctx, sessionID, d, state)
		}
	}
	return "", nil, fmt.Errorf("no handler for node %q", current)
}

func (g *Graph) stepPrimary(ctx context.Context, sessionID string, state *conversation.State) (NodeID, *Result, error) {
	msg, err := g.primary.Respond(ctx, state)
	if err != nil {
		return "", nil, err
	}
	state.Append(msg)

	if len(msg.ToolCalls) == 0 {
		return NodeEnd, &Result{Reply: msg.Content}, nil
	}

	if target, ok := g.registry.DelegationTarget(msg.ToolCalls[0].Name); ok {
		g.warnExtraDelegations(msg)
		if _, ok := g.domains[target]; !ok {
			return "", nil, fmt.Errorf("delegation to unknown domain %q", target)
		}
		g.enterDomain(state, msg, target)
		return AssistantNode(target), nil, nil
	}

	// The primary's own tools are all safe, but the model may still name a
	// sensitive or unknown operation here; such a batch is gated exactly as
	// on the domain path, never executed directly.
	if g.batchSensitive(msg.ToolCalls) {
		return g.suspendForApproval(ctx, sessionID, state, msg, SensitiveToolsNode(tool.DomainPrimary))
	}

	g.runToolBatch(ctx, state, msg)
	return NodePrimary, nil, nil
}

func (g *Graph) stepDomain(ctx context.Context, sessionID string, d tool.Domain, state *conversation.State) (NodeID, *Result, error) {
	a := g.domains[d]
	msg, err := a.Respond(ctx, state)
	if err != nil {
		return "", nil, err
	}
	state.Append(msg)

	if len(msg.ToolCalls) == 0 {
		return NodeEnd, &Result{Reply: msg.Content}, nil
	}

	// A batch with at least one sensitive invocation is gated whole; a mixed
	// batch never executes its safe part early.
	if g.batchSensitive(msg.ToolCalls) {
		return g.suspendForApproval(ctx, sessionID, state, msg, SensitiveToolsNode(d))
	}

	completed := g.runToolBatch(ctx, state, msg)
	if completed {
		return NodePrimary, nil, nil
	}
	return AssistantNode(d), nil, nil
}

// suspendForApproval hands the batch to the interceptor and terminates the
// turn with the approval-required reply.
func (g *Graph) suspendForApproval(ctx context.Context, sessionID string, state *conversation.State, msg *conversation.Message, node NodeID) (NodeID, *Result, error) {
	if err := g.interceptor.Intercept(ctx, sessionID, state, msg); err != nil {
		return "", nil, err
	}
	reply := msg.Content
	if reply != "" {
		reply += "\n\n"
	}
	reply += approval.ApprovalRequiredReply
	return node, &Result{Reply: reply, Suspended: true}, nil
}

func (g *Graph) batchSensitive(calls []conversation.ToolCall) bool {
	for _, tc := range calls {
		if _, isDelegation := g.registry.DelegationTarget(tc.Name); isDelegation {
			continue
		}
		if g.registry.IsSensitive(tc.Name) {
			return true
		}
	}
	return false
}

// runToolBatch executes every call in the message, appending one tool result
// per call ID. A tool error becomes an error result; it never aborts the
// batch. Reports whether any result carries the completion marker.
func (g *Graph) runToolBatch(ctx context.Context, state *conversation.State, msg *conversation.Message) bool {
	completed := false
	for _, tc := range msg.ToolCalls {
		content := g.runTool(ctx, tc)
		if strings.Contains(content, assistant.CompletionMarker) {
			completed = true
		}
		state.Append(conversation.NewToolResult(tc.ID, content))
	}
	return completed
}

func (g *Graph) runTool(ctx context.Context, tc conversation.ToolCall) string {
	ctx, span := telemetry.StartToolCall(ctx, tc.Name)
	defer span.End()

	entry, ok := g.registry.Lookup(tc.Name)
	if !ok {
		g.log.Warn().Str("tool", tc.Name).Msg("model invoked unknown tool")
		return fmt.Sprintf("Error: unknown tool %q\nPlease fix your mistakes.", tc.Name)
	}
	result, err := entry.Tool.Run(ctx, tc.Args)
	if err != nil {
		g.log.Warn().Err(err).Str("tool", tc.Name).Msg("tool execution failed")
		return fmt.Sprintf("Error: %v\nPlease fix your mistakes.", err)
	}
	return result
}

// enterDomain seeds the standardized hand-off note, acknowledging every tool
// call of the delegating message so the pairing rule holds.
func (g *Graph) enterDomain(state *conversation.State, msg *conversation.Message, d tool.Domain) {
	name := assistant.DisplayName(d)
	note := fmt.Sprintf(
		"The assistant is now the %s. Reflect on the above conversation between the host assistant and the user. "+
			"The user's intent is unsatisfied. Use the provided tools to assist the user. Remember, you are %s, "+
			"and the booking, update, or other action is not complete until after you have successfully invoked the appropriate tool. "+
			"If the user changes their mind or needs help for other tasks, call the %s function to let the primary host assistant take control. "+
			"Do not mention who you are. Just act as the proxy for the assistant.",
		name, name, assistant.CompleteOrEscalateName,
	)
	for _, tc := range msg.ToolCalls {
		state.Append(conversation.NewToolResult(tc.ID, note))
	}
}

func (g *Graph) warnExtraDelegations(msg *conversation.Message) {
	if len(msg.ToolCalls) < 2 {
		return
	}
	var dropped []string
	for _, tc := range msg.ToolCalls[1:] {
		if _, ok := g.registry.DelegationTarget(tc.Name); ok {
			dropped = append(dropped, tc.Name)
		}
	}
	if len(dropped) > 0 {
		// Only the first delegation is honored; the model contract says at
		// most one per message.
		g.log.Warn().Strs("dropped", dropped).Msg("extra delegation markers ignored")
	}
}
