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
	"testing"

	"github.com/google/go-cmp/cmp"
)

type noArgs struct{}

func namedTool(name string) Tool {
	return MustFunctionTool(name, "test tool "+name,
		func(ctx context.Context, in noArgs) (string, error) { return "ok", nil })
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	entries := []struct {
		name   string
		class  SafetyClass
		domain Domain
	}{
		{"search_hotels", ClassSafe, DomainHotel},
		{"book_hotel", ClassSensitive, DomainHotel},
		{"cancel_hotel", ClassSensitive, DomainHotel},
		{"search_blog_posts", ClassSafe, DomainBlog},
	}
	for _, e := range entries {
		if err := reg.Register(namedTool(e.name), e.class, e.domain); err != nil {
			t.Fatalf("Register(%s) failed: %v", e.name, err)
		}
	}
	if err := reg.RegisterDelegation(namedTool("to_hotel_booking_assistant"), DomainHotel); err != nil {
		t.Fatalf("RegisterDelegation() failed: %v", err)
	}
	return reg
}

func TestRegistryClassification(t *testing.T) {
	reg := newTestRegistry(t)

	tests := []struct {
		name      string
		sensitive bool
	}{
		{"search_hotels", false},
		{"book_hotel", true},
		{"cancel_hotel", true},
		{"to_hotel_booking_assistant", false},
		// Unknown operations must never bypass the approval gate.
		{"drop_all_tables", true},
	}
	for _, tc := range tests {
		if got := reg.IsSensitive(tc.name); got != tc.sensitive {
			t.Errorf("IsSensitive(%q) = %v, want %v", tc.name, got, tc.sensitive)
		}
	}
}

func TestRegistryDelegationTarget(t *testing.T) {
	reg := newTestRegistry(t)

	target, ok := reg.DelegationTarget("to_hotel_booking_assistant")
	if !ok || target != DomainHotel {
		t.Errorf("DelegationTarget() = %q, %v, want %q, true", target, ok, DomainHotel)
	}
	if _, ok := reg.DelegationTarget("book_hotel"); ok {
		t.Error("DelegationTarget() on a plain tool should report false")
	}
	if _, ok := reg.DelegationTarget("unknown"); ok {
		t.Error("DelegationTarget() on an unknown name should report false")
	}
}

func TestRegistryDomainTools(t *testing.T) {
	reg := newTestRegistry(t)

	var names []string
	for _, tl := range reg.DomainTools(DomainHotel) {
		names = append(names, tl.Name())
	}
	want := []string{"book_hotel", "cancel_hotel", "search_hotels"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("DomainTools() mismatch (-want +got):\n%s", diff)
	}

	var safe []string
	for _, tl := range reg.Tools(DomainHotel, ClassSafe) {
		safe = append(safe, tl.Name())
	}
	if diff := cmp.Diff([]string{"search_hotels"}, safe); diff != "" {
		t.Errorf("Tools(safe) mismatch (-want +got):\n%s", diff)
	}
}

func TestRegistryHasSensitive(t *testing.T) {
	reg := newTestRegistry(t)
	if !reg.HasSensitive(DomainHotel) {
		t.Error("HasSensitive(hotel) = false, want true")
	}
	if reg.HasSensitive(DomainBlog) {
		t.Error("HasSensitive(blog) = true, want false")
	}
}

func TestRegistryDuplicate(t *testing.T) {
	reg := newTestRegistry(t)
	if err := reg.Register(namedTool("book_hotel"), ClassSafe, DomainHotel); err == nil {
		t.Error("registering a duplicate name should fail")
	}
}

func TestTravelerContext(t *testing.T) {
	ctx := context.Background()
	if got := TravelerID(ctx); got != "" {
		t.Errorf("TravelerID() on bare context = %q, want empty", got)
	}
	ctx = WithTraveler(ctx, "traveler-7")
	if got := TravelerID(ctx); got != "traveler-7" {
		t.Errorf("TravelerID() = %q, want traveler-7", got)
	}
}
