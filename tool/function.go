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

package tool

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/mitchellh/mapstructure"
)

// NewFunctionTool makes a tool from a typed Go function. The argument schema
// is derived from In by reflection and the raw model arguments are decoded
// into In before the function runs.
func NewFunctionTool[In any](name, description string, fn func(ctx context.Context, in In) (string, error)) (Tool, error) {
	schema, err := jsonschema.For[In](nil)
	if err != nil {
		return nil, fmt.Errorf("schema for tool %q: %w", name, err)
	}
	return &functionTool[In]{
		name:        name,
		description: description,
		schema:      schema,
		fn:          fn,
	}, nil
}

// MustFunctionTool is like [NewFunctionTool] but panics on schema failure.
// Intended for statically declared tools at startup.
func MustFunctionTool[In any](name, description string, fn func(ctx context.Context, in In) (string, error)) Tool {
	t, err := NewFunctionTool(name, description, fn)
	if err != nil {
		panic(err)
	}
	return t
}

type functionTool[In any] struct {
	name        string
	description string
	schema      *jsonschema.Schema
	fn          func(ctx context.Context, in In) (string, error)
}

func (t *functionTool[In]) Name() string                    { return t.name }
func (t *functionTool[In]) Description() string             { return t.description }
func (t *functionTool[In]) Declaration() *jsonschema.Schema { return t.schema }

func (t *functionTool[In]) Run(ctx context.Context, args map[string]any) (string, error) {
	var in In
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &in,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return "", fmt.Errorf("tool %q: %w", t.name, err)
	}
	if err := decoder.Decode(args); err != nil {
		return "", fmt.Errorf("tool %q: decoding arguments: %w", t.name, err)
	}
	return t.fn(ctx, in)
}
