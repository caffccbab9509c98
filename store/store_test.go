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

package store_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tripwise/concierge/store"
	"github.com/tripwise/concierge/tool"
)

func TestNewClientRejectsBadURLs(t *testing.T) {
	for _, base := range []string{"", "not a url", "localhost:8000", "/just/a/path"} {
		if _, err := store.NewClient(base, nil); err == nil {
			t.Errorf("NewClient(%q) accepted an invalid base URL", base)
		}
	}
	if _, err := store.NewClient("http://localhost:8000", nil); err != nil {
		t.Errorf("NewClient() rejected a valid base URL: %v", err)
	}
}

func TestSearchProducts(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`[{"name":"Trail Backpack"}]`))
	}))
	defer srv.Close()

	c, err := store.NewClient(srv.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	out, err := c.SearchProducts(context.Background(), "backpack", "outdoor")
	if err != nil {
		t.Fatalf("SearchProducts() failed: %v", err)
	}
	if gotPath != "/api/products" {
		t.Errorf("path = %q", gotPath)
	}
	if gotQuery != "category=outdoor&search=backpack" {
		t.Errorf("query = %q", gotQuery)
	}
	if !strings.Contains(out, "Trail Backpack") {
		t.Errorf("response = %q", out)
	}
}

func TestSubmitForm(t *testing.T) {
	var gotMethod, gotContentType string
	var gotBody store.FormSubmission
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"status":"received"}`))
	}))
	defer srv.Close()

	c, err := store.NewClient(srv.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	form := store.FormSubmission{
		Name:    "Ada",
		Email:   "ada@example.com",
		Subject: "Late delivery",
		Message: "My order has not arrived.",
	}
	out, err := c.SubmitForm(context.Background(), form)
	if err != nil {
		t.Fatalf("SubmitForm() failed: %v", err)
	}
	if gotMethod != http.MethodPost || gotContentType != "application/json" {
		t.Errorf("request = %s %s", gotMethod, gotContentType)
	}
	if diff := cmp.Diff(form, gotBody); diff != "" {
		t.Errorf("submitted form mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(out, "received") {
		t.Errorf("response = %q", out)
	}
}

func TestBackendErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := store.NewClient(srv.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.SearchBlogPosts(context.Background(), "sales")
	if err == nil || !strings.Contains(err.Error(), "store responded 502") {
		t.Errorf("err = %v, want the status in the error", err)
	}
}

func TestRegisteredTools(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/orders" {
			w.Write([]byte(`[{"order":1,"customer":"` + r.URL.Query().Get("customer") + `"}]`))
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c, err := store.NewClient(srv.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	reg := tool.NewRegistry()
	if err := store.Register(reg, c); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	classes := map[string]bool{
		"search_products":   false,
		"search_orders":     false,
		"submit_form":       false,
		"search_blog_posts": false,
	}
	for name, sensitive := range classes {
		if _, ok := reg.Lookup(name); !ok {
			t.Errorf("tool %q not registered", name)
			continue
		}
		if got := reg.IsSensitive(name); got != sensitive {
			t.Errorf("IsSensitive(%q) = %v, want %v", name, got, sensitive)
		}
	}

	// Order search takes the traveler identity from the context.
	entry, _ := reg.Lookup("search_orders")
	if _, err := entry.Tool.Run(context.Background(), map[string]any{}); err == nil ||
		!strings.Contains(err.Error(), "no traveler identity") {
		t.Errorf("search without identity: err = %v", err)
	}
	ctx := tool.WithTraveler(context.Background(), "traveler-7")
	out, err := entry.Tool.Run(ctx, map[string]any{"status": "shipped"})
	if err != nil {
		t.Fatalf("search_orders failed: %v", err)
	}
	if !strings.Contains(out, "traveler-7") {
		t.Errorf("order search response = %q", out)
	}
}
