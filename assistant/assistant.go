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

// Package assistant builds the per-domain conversation handlers. Each
// assistant binds an instruction and a tool set to a model handler and
// produces the next assistant message for the shared conversation state.
package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tripwise/concierge/conversation"
	"github.com/tripwise/concierge/model"
	"github.com/tripwise/concierge/tool"
)

// CompletionMarker is the structured marker a tool result carries when a
// domain assistant hands control back to the primary assistant. The routing
// graph matches on it verbatim.
const CompletionMarker = "Task completed/escalated to main assistant"

// CompleteOrEscalateName is the operation name of the escalation tool.
const CompleteOrEscalateName = "complete_or_escalate"

type completeOrEscalateArgs struct {
	// Reason for completion or escalation.
	Reason string `json:"reason"`
}

// NewCompleteOrEscalate returns the tool a domain assistant calls to mark the
// current task completed or to escalate back to the primary assistant.
func NewCompleteOrEscalate() tool.Tool {
	return tool.MustFunctionTool(CompleteOrEscalateName,
		"Mark the current task as completed or escalate control back to the main assistant.",
		func(ctx context.Context, in completeOrEscalateArgs) (string, error) {
			return fmt.Sprintf("%s. Reason: %s", CompletionMarker, in.Reason), nil
		})
}

// Builder assembles an Assistant.
type Builder struct {
	// Name is the display name used in delegation entry notes.
	Name   string
	Domain tool.Domain

	Instruction string
	Tools       []tool.Tool
	Handler     model.Handler

	Logger zerolog.Logger
}

// Assistant returns the built assistant.
func (b Builder) Assistant() *Assistant {
	return &Assistant{
		name:        b.Name,
		domain:      b.Domain,
		instruction: b.Instruction,
		tools:       b.Tools,
		handler:     b.Handler,
		log:         b.Logger,
	}
}

// Assistant is one handler node of the routing graph.
type Assistant struct {
	name        string
	domain      tool.Domain
	instruction string
	tools       []tool.Tool
	handler     model.Handler
	log         zerolog.Logger
}

// Name returns the assistant's display name.
func (a *Assistant) Name() string { return a.name }

// Domain returns the domain the assistant handles.
func (a *Assistant) Domain() tool.Domain { return a.domain }

// Respond invokes the model once and returns the resulting assistant
// message. Empty, tool-less output is retried once with a corrective
// instruction appended; whatever the retry returns is accepted.
func (a *Assistant) Respond(ctx context.Context, state *conversation.State) (*conversation.Message, error) {
	msg, err := a.generate(ctx, state)
	if err != nil {
		return nil, err
	}

	if substantive(msg) {
		return msg, nil
	}

	a.log.Debug().Str("assistant", a.name).Msg("empty model output, retrying once")
	retryState := state.Clone()
	retryState.Append(conversation.NewUserMessage("Respond with a real output."))
	msg, err = a.generate(ctx, retryState)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (a *Assistant) generate(ctx context.Context, state *conversation.State) (*conversation.Message, error) {
	req := &model.Request{
		Instruction: a.renderInstruction(state),
		State:       state,
		Tools:       a.tools,
	}
	msg, err := a.handler.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("assistant %s: %w", a.name, err)
	}
	// A message produced without IDs cannot satisfy the acknowledgment
	// pairing rule, so assign them here.
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.Role = conversation.RoleAssistant
	for i := range msg.ToolCalls {
		if msg.ToolCalls[i].ID == "" {
			msg.ToolCalls[i].ID = "call_" + uuid.NewString()
		}
	}
	return msg, nil
}

func (a *Assistant) renderInstruction(state *conversation.State) string {
	out := strings.ReplaceAll(a.instruction, "{user_info}", state.UserContext)
	out = strings.ReplaceAll(out, "{time}", time.Now().Format(time.RFC3339))
	return out
}

func substantive(msg *conversation.Message) bool {
	return len(msg.ToolCalls) > 0 || strings.TrimSpace(msg.Content) != ""
}
