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

package gemini

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/genai"

	"github.com/tripwise/concierge/conversation"
	"github.com/tripwise/concierge/model"
	"github.com/tripwise/concierge/tool"
)

func TestToContents(t *testing.T) {
	state := &conversation.State{}
	state.Append(conversation.NewUserMessage("find me a hotel"))
	assistant := conversation.NewAssistantMessage("Searching now.",
		conversation.ToolCall{ID: "c1", Name: "search_hotels", Args: map[string]any{"location": "Zurich"}})
	state.Append(assistant)
	state.Append(conversation.NewToolResult("c1", "2 hotels found"))

	contents := toContents(state)
	if len(contents) != 3 {
		t.Fatalf("got %d contents, want 3", len(contents))
	}

	if contents[0].Role != genai.RoleUser || contents[0].Parts[0].Text != "find me a hotel" {
		t.Errorf("user content = %+v", contents[0])
	}

	if contents[1].Role != genai.RoleModel {
		t.Errorf("assistant role = %q", contents[1].Role)
	}
	if len(contents[1].Parts) != 2 {
		t.Fatalf("assistant parts = %d, want text + call", len(contents[1].Parts))
	}
	fc := contents[1].Parts[1].FunctionCall
	if fc == nil || fc.ID != "c1" || fc.Name != "search_hotels" {
		t.Errorf("function call = %+v", fc)
	}

	// The tool result is attributed back to the call by name.
	fr := contents[2].Parts[0].FunctionResponse
	if fr == nil || fr.ID != "c1" || fr.Name != "search_hotels" {
		t.Errorf("function response = %+v", fr)
	}
	if diff := cmp.Diff(map[string]any{"result": "2 hotels found"}, fr.Response); diff != "" {
		t.Errorf("response payload mismatch (-want +got):\n%s", diff)
	}
}

func TestToContentsEmptyState(t *testing.T) {
	contents := toContents(&conversation.State{})
	if len(contents) != 1 || contents[0].Parts[0].Text == "" {
		t.Errorf("empty state contents = %+v, want one priming text part", contents)
	}
}

func TestToContentsBareToolCallMessage(t *testing.T) {
	// A delegation turn has calls but no text; it must still produce a
	// non-empty part list.
	state := &conversation.State{}
	state.Append(conversation.NewAssistantMessage("",
		conversation.ToolCall{ID: "d1", Name: "to_hotel_booking_assistant"}))

	contents := toContents(state)
	if len(contents) != 1 || len(contents[0].Parts) == 0 {
		t.Fatalf("contents = %+v", contents)
	}
	if contents[0].Parts[0].FunctionCall == nil {
		t.Errorf("first part = %+v, want the function call", contents[0].Parts[0])
	}
}

func TestGenerateReportsMissingAck(t *testing.T) {
	state := &conversation.State{}
	state.Append(conversation.NewAssistantMessage("",
		conversation.ToolCall{ID: "c3", Name: "book_hotel"}))

	h := &Handler{name: "test-model"}
	_, err := h.Generate(context.Background(), &model.Request{State: state})
	mae, ok := model.AsMissingAck(err)
	if !ok {
		t.Fatalf("err = %v, want a missing-acknowledgment report", err)
	}
	if mae.CallID != "c3" {
		t.Errorf("CallID = %q, want c3", mae.CallID)
	}
}

func TestFromContent(t *testing.T) {
	content := &genai.Content{
		Role: genai.RoleModel,
		Parts: []*genai.Part{
			{Text: "Let me check."},
			{FunctionCall: &genai.FunctionCall{
				ID:   "c9",
				Name: "lookup_policy",
				Args: map[string]any{"query": "cancellation"},
			}},
			nil,
			{Text: "One moment."},
		},
	}

	msg := fromContent(content)
	if msg.Role != conversation.RoleAssistant {
		t.Errorf("role = %q", msg.Role)
	}
	if msg.Content != "Let me check.\nOne moment." {
		t.Errorf("content = %q", msg.Content)
	}
	want := []conversation.ToolCall{{ID: "c9", Name: "lookup_policy", Args: map[string]any{"query": "cancellation"}}}
	if diff := cmp.Diff(want, msg.ToolCalls); diff != "" {
		t.Errorf("tool calls mismatch (-want +got):\n%s", diff)
	}
}

func TestDeclarations(t *testing.T) {
	type args struct {
		Location string `json:"location"`
	}
	search := tool.MustFunctionTool("search_hotels", "Search for hotels.",
		func(ctx context.Context, in args) (string, error) { return "", nil })

	decls := declarations([]tool.Tool{search})
	if len(decls) != 1 {
		t.Fatalf("got %d declarations, want 1", len(decls))
	}
	d := decls[0]
	if d.Name != "search_hotels" || d.Description != "Search for hotels." {
		t.Errorf("declaration = %+v", d)
	}
	if d.ParametersJsonSchema == nil {
		t.Error("declaration has no parameter schema")
	}
}
