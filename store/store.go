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

// Package store exposes the retail backend over its REST API: product and
// order search, contact form submission, and blog search.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tripwise/concierge/tool"
)

// Client calls the retail backend.
type Client struct {
	base string
	hc   *http.Client
}

// NewClient returns a client for the retail API at baseURL. A nil hc uses
// a default client with a request timeout.
func NewClient(baseURL string, hc *http.Client) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid store base URL %q", baseURL)
	}
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{base: u.String(), hc: hc}, nil
}

// FormSubmission is a customer contact form.
type FormSubmission struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// SearchProducts queries the product catalog.
func (c *Client) SearchProducts(ctx context.Context, query, category string) (string, error) {
	q := url.Values{}
	if query != "" {
		q.Set("search", query)
	}
	if category != "" {
		q.Set("category", category)
	}
	return c.get(ctx, "/api/products", q)
}

// SearchOrders queries the traveler's orders, optionally by status.
func (c *Client) SearchOrders(ctx context.Context, travelerID, status string) (string, error) {
	q := url.Values{}
	q.Set("customer", travelerID)
	if status != "" {
		q.Set("status", status)
	}
	return c.get(ctx, "/api/orders", q)
}

// SubmitForm posts a contact form to the backend.
func (c *Client) SubmitForm(ctx context.Context, form FormSubmission) (string, error) {
	body, err := json.Marshal(form)
	if err != nil {
		return "", fmt.Errorf("encoding form: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/forms", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

// SearchBlogPosts queries the blog.
func (c *Client) SearchBlogPosts(ctx context.Context, query string) (string, error) {
	q := url.Values{}
	if query != "" {
		q.Set("search", query)
	}
	return c.get(ctx, "/api/blog", q)
}

func (c *Client) get(ctx context.Context, path string, q url.Values) (string, error) {
	u := c.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) (string, error) {
	req.Header.Set("Accept", "application/json")
	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("store request %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading store response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("store responded %d for %s", resp.StatusCode, req.URL.Path)
	}
	return string(body), nil
}

type searchProductsArgs struct {
	Query    string `json:"query,omitempty"`
	Category string `json:"category,omitempty"`
}

type searchOrdersArgs struct {
	Status string `json:"status,omitempty"`
}

type searchBlogArgs struct {
	Query string `json:"query,omitempty"`
}

// Register installs the retail, form, and blog tools. All of them are
// safe: the form endpoint queues a request for a human agent rather than
// mutating booking state.
func Register(reg *tool.Registry, c *Client) error {
	products := tool.MustFunctionTool("search_products",
		"Search the store's product catalog by free-text query and category.",
		func(ctx context.Context, in searchProductsArgs) (string, error) {
			return c.SearchProducts(ctx, in.Query, in.Category)
		})
	if err := reg.Register(products, tool.ClassSafe, tool.DomainStore); err != nil {
		return err
	}

	orders := tool.MustFunctionTool("search_orders",
		"Look up the customer's store orders, optionally filtered by status.",
		func(ctx context.Context, in searchOrdersArgs) (string, error) {
			traveler := tool.TravelerID(ctx)
			if traveler == "" {
				return "", fmt.Errorf("no traveler identity configured")
			}
			return c.SearchOrders(ctx, traveler, in.Status)
		})
	if err := reg.Register(orders, tool.ClassSafe, tool.DomainStore); err != nil {
		return err
	}

	form := tool.MustFunctionTool("submit_form",
		"Submit a contact form to customer service on the user's behalf.",
		func(ctx context.Context, in FormSubmission) (string, error) {
			return c.SubmitForm(ctx, in)
		})
	if err := reg.Register(form, tool.ClassSafe, tool.DomainForm); err != nil {
		return err
	}

	blog := tool.MustFunctionTool("search_blog_posts",
		"Search the company blog for articles matching a query.",
		func(ctx context.Context, in searchBlogArgs) (string, error) {
			return c.SearchBlogPosts(ctx, in.Query)
		})
	return reg.Register(blog, tool.ClassSafe, tool.DomainBlog)
}
