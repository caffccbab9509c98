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

package assistant

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tripwise/concierge/conversation"
	"github.com/tripwise/concierge/model"
	"github.com/tripwise/concierge/tool"
)

// scriptedHandler replays a fixed sequence of messages and records every
// request it sees.
type scriptedHandler struct {
	msgs     []*conversation.Message
	requests []*model.Request
}

func (h *scriptedHandler) Generate(ctx context.Context, req *model.Request) (*conversation.Message, error) {
	h.requests = append(h.requests, req)
	if len(h.msgs) == 0 {
		return conversation.NewAssistantMessage(""), nil
	}
	msg := h.msgs[0]
	h.msgs = h.msgs[1:]
	return msg, nil
}

func TestRespondRetriesEmptyOutput(t *testing.T) {
	h := &scriptedHandler{msgs: []*conversation.Message{
		conversation.NewAssistantMessage("   "),
		conversation.NewAssistantMessage("a real answer"),
	}}
	a := Builder{Name: "Test Assistant", Handler: h, Logger: zerolog.Nop()}.Assistant()

	state := &conversation.State{}
	state.Append(conversation.NewUserMessage("hello"))

	msg, err := a.Respond(context.Background(), state)
	if err != nil {
		t.Fatalf("Respond() failed: %v", err)
	}
	if msg.Content != "a real answer" {
		t.Errorf("Respond() = %q, want the retried output", msg.Content)
	}
	if len(h.requests) != 2 {
		t.Fatalf("handler called %d times, want 2", len(h.requests))
	}

	// The corrective nudge goes to a cloned state only.
	retryLast := h.requests[1].State.LastUser()
	if retryLast == nil || retryLast.Content != "Respond with a real output." {
		t.Errorf("retry request missing corrective message, got %+v", retryLast)
	}
	if got := state.LastUser().Content; got != "hello" {
		t.Errorf("original state mutated by retry: %q", got)
	}
}

func TestRespondAssignsCallIDs(t *testing.T) {
	raw := &conversation.Message{
		Role:      conversation.RoleAssistant,
		ToolCalls: []conversation.ToolCall{{Name: "search_hotels"}},
	}
	h := &scriptedHandler{msgs: []*conversation.Message{raw}}
	a := Builder{Name: "Test", Handler: h, Logger: zerolog.Nop()}.Assistant()

	state := &conversation.State{}
	state.Append(conversation.NewUserMessage("find hotels"))

	msg, err := a.Respond(context.Background(), state)
	if err != nil {
		t.Fatalf("Respond() failed: %v", err)
	}
	if msg.ID == "" {
		t.Error("Respond() did not assign a message ID")
	}
	if msg.ToolCalls[0].ID == "" {
		t.Error("Respond() did not assign a call ID")
	}
}

func TestInstructionPlaceholders(t *testing.T) {
	h := &scriptedHandler{msgs: []*conversation.Message{
		conversation.NewAssistantMessage("ok"),
	}}
	a := Builder{
		Name:        "Test",
		Instruction: "Current user info:\n{user_info}\nCurrent time: {time}.",
		Handler:     h,
		Logger:      zerolog.Nop(),
	}.Assistant()

	state := &conversation.State{UserContext: "ticket 7 to BSL"}
	state.Append(conversation.NewUserMessage("hi"))

	if _, err := a.Respond(context.Background(), state); err != nil {
		t.Fatalf("Respond() failed: %v", err)
	}
	instr := h.requests[0].Instruction
	if !strings.Contains(instr, "ticket 7 to BSL") {
		t.Errorf("instruction %q missing user context", instr)
	}
	if strings.Contains(instr, "{user_info}") || strings.Contains(instr, "{time}") {
		t.Errorf("instruction %q has unexpanded placeholders", instr)
	}
}

func TestCompleteOrEscalate(t *testing.T) {
	coe := NewCompleteOrEscalate()
	got, err := coe.Run(context.Background(), map[string]any{"reason": "user changed their mind"})
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if !strings.Contains(got, CompletionMarker) {
		t.Errorf("Run() = %q, want the completion marker", got)
	}
	if !strings.Contains(got, "user changed their mind") {
		t.Errorf("Run() = %q, want the reason", got)
	}
}

func TestRegisterDelegations(t *testing.T) {
	reg := tool.NewRegistry()
	if err := RegisterDelegations(reg); err != nil {
		t.Fatalf("RegisterDelegations() failed: %v", err)
	}

	wantTargets := map[string]tool.Domain{
		ToFlightBookingName:  tool.DomainFlight,
		ToHotelBookingName:   tool.DomainHotel,
		ToCarRentalName:      tool.DomainCar,
		ToExcursionName:      tool.DomainExcursion,
		ToStoreProductsName:  tool.DomainStore,
		ToStoreOrdersName:    tool.DomainStore,
		ToFormSubmissionName: tool.DomainForm,
		ToBlogSearchName:     tool.DomainBlog,
	}
	for name, want := range wantTargets {
		target, ok := reg.DelegationTarget(name)
		if !ok || target != want {
			t.Errorf("DelegationTarget(%s) = %q, %v, want %q", name, target, ok, want)
		}
		if reg.IsSensitive(name) {
			t.Errorf("delegation %s must not be sensitive", name)
		}
	}

	// The shared escalation tool must be registered safe, or calling it
	// would suspend the turn.
	if reg.IsSensitive(CompleteOrEscalateName) {
		t.Errorf("%s must be classified safe", CompleteOrEscalateName)
	}
}

func TestNewDomainIncludesEscalation(t *testing.T) {
	reg := tool.NewRegistry()
	if err := RegisterDelegations(reg); err != nil {
		t.Fatalf("RegisterDelegations() failed: %v", err)
	}

	a, err := NewDomain(tool.DomainHotel, &scriptedHandler{}, reg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewDomain() failed: %v", err)
	}
	if a.Domain() != tool.DomainHotel {
		t.Errorf("Domain() = %q, want hotel", a.Domain())
	}
}
