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

// Package model defines the language-model boundary. The routing core only
// depends on the Handler interface; concrete backends live in subpackages.
package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/tripwise/concierge/conversation"
	"github.com/tripwise/concierge/tool"
)

// Request is the input to a single model invocation.
type Request struct {
	// Instruction is the system instruction of the calling assistant.
	Instruction string
	// State is the conversation to respond to. Read-only for the handler.
	State *conversation.State
	// Tools are the declarations the model may invoke.
	Tools []tool.Tool
}

// Handler produces the next assistant message for a conversation.
//
// Implementations must acknowledge every outstanding tool call before
// invoking the backend; a conversation violating the pairing rule must be
// reported as a [MissingAckError], never as free-text error prose.
type Handler interface {
	Generate(ctx context.Context, req *Request) (*conversation.Message, error)
}

// ErrUnavailable is returned when the model backend cannot be reached.
var ErrUnavailable = errors.New("model unavailable")

// MissingAckError reports a tool call that has no tool-result message. The
// boundary produces it with the offending call ID attached so recovery does
// not have to scrape IDs out of error text.
type MissingAckError struct {
	CallID string
}

func (e *MissingAckError) Error() string {
	return fmt.Sprintf("tool call %s has no result message", e.CallID)
}

// AsMissingAck unwraps err into a MissingAckError if there is one.
func AsMissingAck(err error) (*MissingAckError, bool) {
	var mae *MissingAckError
	if errors.As(err, &mae) {
		return mae, true
	}
	return nil, false
}
