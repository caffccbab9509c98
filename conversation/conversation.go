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

// Package conversation defines the state that is threaded through every
// routing node: the ordered message history plus the per-session user context.
package conversation

import (
	"github.com/google/uuid"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleTool marks a tool-result message acknowledging a single tool call.
	RoleTool Role = "tool"
)

// ToolCall is a single tool invocation requested by an assistant message.
type ToolCall struct {
	// ID uniquely identifies the invocation within the conversation.
	ID string `json:"id"`
	// Name is the registered operation name.
	Name string `json:"name"`
	// Args holds the decoded invocation arguments.
	Args map[string]any `json:"args,omitempty"`
}

// Message is one entry in the conversation history.
//
// An assistant message that carries ToolCalls must be acknowledged by one
// tool-result message per call ID before the next model invocation; see
// [State.UnacknowledgedCalls].
type Message struct {
	ID      string `json:"id"`
	Role    Role   `json:"role"`
	Content string `json:"content,omitempty"`

	// ToolCalls is set only on assistant messages.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// RespondsTo is the acknowledged call ID. Set only on tool messages.
	RespondsTo string `json:"responds_to,omitempty"`
}

// State is the conversation state checked out from the session store for the
// duration of a single turn. Messages are append-only within a turn.
type State struct {
	Messages []*Message `json:"messages"`

	// UserContext holds read-only facts fetched at session entry, such as the
	// traveler's current bookings.
	UserContext string `json:"user_context,omitempty"`
}

// NewUserMessage creates a user message with a fresh ID.
func NewUserMessage(content string) *Message {
	return &Message{ID: uuid.NewString(), Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant message with a fresh ID.
func NewAssistantMessage(content string, calls ...ToolCall) *Message {
	return &Message{ID: uuid.NewString(), Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// NewToolResult creates the acknowledgment message for the given call ID.
func NewToolResult(callID, content string) *Message {
	return &Message{ID: uuid.NewString(), Role: RoleTool, Content: content, RespondsTo: callID}
}

// Append adds messages to the history in order.
func (s *State) Append(msgs ...*Message) {
	s.Messages = append(s.Messages, msgs...)
}

// LastAssistant returns the most recent assistant message, or nil.
func (s *State) LastAssistant() *Message {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleAssistant {
			return s.Messages[i]
		}
	}
	return nil
}

// LastUser returns the most recent user message, or nil.
func (s *State) LastUser() *Message {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return s.Messages[i]
		}
	}
	return nil
}

// LastMessage returns the final message in the history, or nil when empty.
func (s *State) LastMessage() *Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return s.Messages[len(s.Messages)-1]
}

// UnacknowledgedCalls returns every tool call carried by an assistant message
// that has no matching tool-result message yet, in history order.
func (s *State) UnacknowledgedCalls() []ToolCall {
	acked := make(map[string]bool)
	for _, m := range s.Messages {
		if m.Role == RoleTool && m.RespondsTo != "" {
			acked[m.RespondsTo] = true
		}
	}
	var missing []ToolCall
	for _, m := range s.Messages {
		if m.Role != RoleAssistant {
			continue
		}
		for _, tc := range m.ToolCalls {
			if !acked[tc.ID] {
				missing = append(missing, tc)
			}
		}
	}
	return missing
}

// Clone returns a deep copy of the state. The store hands out clones so a
// failed turn cannot corrupt the persisted history.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := &State{UserContext: s.UserContext}
	out.Messages = make([]*Message, len(s.Messages))
	for i, m := range s.Messages {
		mc := *m
		if m.ToolCalls != nil {
			mc.ToolCalls = make([]ToolCall, len(m.ToolCalls))
			for j, tc := range m.ToolCalls {
				mc.ToolCalls[j] = tc
				if tc.Args != nil {
					args := make(map[string]any, len(tc.Args))
					for k, v := range tc.Args {
						args[k] = v
					}
					mc.ToolCalls[j].Args = args
				}
			}
		}
		out.Messages[i] = &mc
	}
	return out
}
