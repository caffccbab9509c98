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
	"fmt"
	"sort"
)

// Entry is one registered operation with its static classification.
type Entry struct {
	Tool   Tool
	Class  SafetyClass
	Domain Domain

	// DelegatesTo names the target domain for ClassDelegate entries.
	DelegatesTo Domain
}

// Registry is the static operation table consulted by the routing graph and
// the interrupt controller. It is populated once at startup and read-only
// afterwards.
type Registry struct {
	entries map[string]Entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register adds an operation. Registering the same name twice is a
// programming error.
func (r *Registry) Register(t Tool, class SafetyClass, domain Domain) error {
	return r.register(Entry{Tool: t, Class: class, Domain: domain})
}

// RegisterDelegation adds a delegation marker owned by the primary assistant
// that routes control to the target domain.
func (r *Registry) RegisterDelegation(t Tool, target Domain) error {
	return r.register(Entry{Tool: t, Class: ClassDelegate, Domain: DomainPrimary, DelegatesTo: target})
}

func (r *Registry) register(e Entry) error {
	name := e.Tool.Name()
	if _, ok := r.entries[name]; ok {
		return fmt.Errorf("tool %q registered twice", name)
	}
	r.entries[name] = e
	return nil
}

// Lookup returns the entry for an operation name.
func (r *Registry) Lookup(name string) (Entry, bool) {
	e, ok := r.entries[name]
	return e, ok
}

// IsSensitive reports whether the named operation mutates external state.
// Unknown operations are treated as sensitive so a drifting model can never
// bypass the approval gate.
func (r *Registry) IsSensitive(name string) bool {
	e, ok := r.entries[name]
	if !ok {
		return true
	}
	return e.Class == ClassSensitive
}

// DelegationTarget reports whether the named operation is a delegation marker
// and, if so, which domain it routes to.
func (r *Registry) DelegationTarget(name string) (Domain, bool) {
	e, ok := r.entries[name]
	if !ok || e.Class != ClassDelegate {
		return "", false
	}
	return e.DelegatesTo, true
}

// Tools returns the tools of a domain filtered by class, sorted by name.
func (r *Registry) Tools(domain Domain, class SafetyClass) []Tool {
	var out []Tool
	for _, e := range r.entries {
		if e.Domain == domain && e.Class == class {
			out = append(out, e.Tool)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// DomainTools returns every tool bound to a domain, delegation markers
// excluded, sorted by name.
func (r *Registry) DomainTools(domain Domain) []Tool {
	var out []Tool
	for _, e := range r.entries {
		if e.Domain == domain && e.Class != ClassDelegate {
			out = append(out, e.Tool)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// HasSensitive reports whether a domain owns any sensitive operation.
func (r *Registry) HasSensitive(domain Domain) bool {
	for _, e := range r.entries {
		if e.Domain == domain && e.Class == ClassSensitive {
			return true
		}
	}
	return false
}
