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

// Package tool defines the callable tool contract and the static registry
// that classifies every operation as safe, sensitive, or a delegation marker.
package tool

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
)

// Tool defines the interface for a callable operation.
type Tool interface {
	// Name returns the registered operation name.
	Name() string
	// Description returns a description surfaced to the model.
	Description() string
	// Declaration returns the JSON schema of the tool arguments.
	Declaration() *jsonschema.Schema
	// Run executes the operation with the raw arguments from the model.
	Run(ctx context.Context, args map[string]any) (string, error)
}

// SafetyClass classifies whether an operation may execute immediately or
// requires human approval first. The classification is static; there is no
// runtime reclassification.
type SafetyClass int

const (
	// ClassSafe operations are read-only or otherwise reversible and execute
	// directly.
	ClassSafe SafetyClass = iota
	// ClassSensitive operations mutate external state (book, update, cancel)
	// and are gated behind an explicit user approval.
	ClassSensitive
	// ClassDelegate marks a delegation tool whose sole effect is routing
	// control from the primary assistant to a domain assistant.
	ClassDelegate
)

func (c SafetyClass) String() string {
	switch c {
	case ClassSafe:
		return "safe"
	case ClassSensitive:
		return "sensitive"
	case ClassDelegate:
		return "delegate"
	default:
		return "unknown"
	}
}

// Domain identifies which assistant owns an operation.
type Domain string

const (
	DomainPrimary   Domain = "primary"
	DomainFlight    Domain = "flight"
	DomainHotel     Domain = "hotel"
	DomainCar       Domain = "car"
	DomainExcursion Domain = "excursion"
	DomainStore     Domain = "store"
	DomainForm      Domain = "form"
	DomainBlog      Domain = "blog"

	// DomainShared holds operations available to every domain assistant, such
	// as the escalation tool. It is not routable.
	DomainShared Domain = "shared"
)

// Domains lists every routable domain in a stable order.
func Domains() []Domain {
	return []Domain{
		DomainFlight, DomainHotel, DomainCar, DomainExcursion,
		DomainStore, DomainForm, DomainBlog,
	}
}

type travelerKey struct{}

// WithTraveler returns a context carrying the traveler identity. Tools that
// act on traveler-owned records read it back with TravelerID; the caller
// argument payload never carries identity.
func WithTraveler(ctx context.Context, travelerID string) context.Context {
	return context.WithValue(ctx, travelerKey{}, travelerID)
}

// TravelerID returns the traveler identity carried by the context, or the
// empty string when none was set.
func TravelerID(ctx context.Context) string {
	id, _ := ctx.Value(travelerKey{}).(string)
	return id
}
