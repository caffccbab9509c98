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

// Package telemetry sets up the OpenTelemetry tracer used around turns,
// model calls, and tool execution.
package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const scopeName = "github.com/tripwise/concierge"

var (
	once        sync.Once
	localTracer trace.TracerProvider
)

// Register sets up the local tracer provider. We keep a local provider next
// to the global one so spans are recorded even when the host application
// never configures OpenTelemetry.
func Register(processors ...sdktrace.SpanProcessor) {
	once.Do(func() {
		tp := sdktrace.NewTracerProvider()
		for _, p := range processors {
			tp.RegisterSpanProcessor(p)
		}
		localTracer = tp
	})
}

func tracer() trace.Tracer {
	if localTracer == nil {
		Register()
	}
	return localTracer.Tracer(scopeName)
}

// StartTurn opens the span covering one full turn of a session.
func StartTurn(ctx context.Context, sessionID string) (context.Context, trace.Span) {
	ctx, span := tracer().Start(ctx, "concierge.turn")
	span.SetAttributes(attribute.String("concierge.session_id", sessionID))
	return ctx, span
}

// StartModelCall opens the span covering a single model invocation.
func StartModelCall(ctx context.Context, assistantName string) (context.Context, trace.Span) {
	ctx, span := tracer().Start(ctx, "concierge.model_call")
	span.SetAttributes(attribute.String("concierge.assistant", assistantName))
	return ctx, span
}

// StartToolCall opens the span covering one tool execution.
func StartToolCall(ctx context.Context, toolName string) (context.Context, trace.Span) {
	ctx, span := tracer().Start(ctx, "concierge.tool_call")
	span.SetAttributes(attribute.String("concierge.tool", toolName))
	return ctx, span
}

// GlobalTracer returns the application-configured tracer, falling back to
// the noop implementation when unset.
func GlobalTracer() trace.Tracer {
	return otel.GetTracerProvider().Tracer(scopeName)
}
