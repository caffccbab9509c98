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

// Package gemini backs the assistant and guardrail contracts with the
// Gemini API. All translation between conversation state and the wire
// format lives here; nothing outside this package imports genai.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/tripwise/concierge/conversation"
	"github.com/tripwise/concierge/internal/telemetry"
	"github.com/tripwise/concierge/model"
	"github.com/tripwise/concierge/tool"
)

// Handler generates assistant turns with a Gemini model.
type Handler struct {
	client *genai.Client
	name   string
}

// NewHandler creates a Gemini-backed handler for the named model.
func NewHandler(ctx context.Context, modelName string, cfg *genai.ClientConfig) (*Handler, error) {
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &Handler{client: client, name: modelName}, nil
}

var _ model.Handler = (*Handler)(nil)

// Generate translates the conversation, calls the model once, and
// translates the first candidate back.
func (h *Handler) Generate(ctx context.Context, req *model.Request) (*conversation.Message, error) {
	ctx, span := telemetry.StartModelCall(ctx, h.name)
	defer span.End()

	// The wire format rejects conversations with unanswered function calls;
	// report the pairing violation with the offending ID so the caller can
	// repair it.
	if orphans := req.State.UnacknowledgedCalls(); len(orphans) > 0 {
		return nil, &model.MissingAckError{CallID: orphans[0].ID}
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.Instruction, genai.RoleUser),
	}
	if decls := declarations(req.Tools); len(decls) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	resp, err := h.client.Models.GenerateContent(ctx, h.name, toContents(req.State), config)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrUnavailable, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return conversation.NewAssistantMessage(""), nil
	}
	return fromContent(resp.Candidates[0].Content), nil
}

func declarations(tools []tool.Tool) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:                 t.Name(),
			Description:          t.Description(),
			ParametersJsonSchema: t.Declaration(),
		})
	}
	return decls
}

// toContents maps the conversation to wire contents. Tool results become
// function responses attributed by the name of the call they answer.
func toContents(state *conversation.State) []*genai.Content {
	callNames := make(map[string]string)
	var contents []*genai.Content
	for _, msg := range state.Messages {
		switch msg.Role {
		case conversation.RoleUser:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))

		case conversation.RoleAssistant:
			var parts []*genai.Part
			if msg.Content != "" {
				parts = append(parts, genai.NewPartFromText(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				callNames[tc.ID] = tc.Name
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   tc.ID,
					Name: tc.Name,
					Args: tc.Args,
				}})
			}
			if len(parts) == 0 {
				parts = append(parts, genai.NewPartFromText(""))
			}
			contents = append(contents, &genai.Content{Role: genai.RoleModel, Parts: parts})

		case conversation.RoleTool:
			contents = append(contents, &genai.Content{
				Role: genai.RoleUser,
				Parts: []*genai.Part{{FunctionResponse: &genai.FunctionResponse{
					ID:       msg.RespondsTo,
					Name:     callNames[msg.RespondsTo],
					Response: map[string]any{"result": msg.Content},
				}}},
			})
		}
	}
	if len(contents) == 0 {
		contents = append(contents, genai.NewContentFromText(
			"Handle the requests as specified in the System Instruction.", genai.RoleUser))
	}
	return contents
}

func fromContent(content *genai.Content) *conversation.Message {
	var texts []string
	var calls []conversation.ToolCall
	for _, part := range content.Parts {
		if part == nil {
			continue
		}
		if part.Text != "" {
			texts = append(texts, part.Text)
		}
		if fc := part.FunctionCall; fc != nil {
			calls = append(calls, conversation.ToolCall{
				ID:   fc.ID,
				Name: fc.Name,
				Args: fc.Args,
			})
		}
	}
	msg := conversation.NewAssistantMessage(strings.Join(texts, "\n"))
	msg.ToolCalls = calls
	return msg
}
