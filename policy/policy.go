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

// Package policy serves company policy documents to the primary assistant.
// The assistant must consult these before permitting any booking change.
package policy

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/tripwise/concierge/tool"
)

// Searcher finds policy passages relevant to a query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]string, error)
}

// Document is one stored policy section.
type Document struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (Document) TableName() string { return "policy_documents" }

// maxResults bounds how many passages a single lookup returns.
const maxResults = 3

// Store is a Searcher over policy documents in the database. Queries are
// matched by keyword against title and content.
type Store struct {
	db *gorm.DB
}

// NewStore migrates the policy schema and returns a store over db.
func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Document{}); err != nil {
		return nil, fmt.Errorf("migrating policy schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Seed inserts documents, skipping the write when any already exist.
func (s *Store) Seed(ctx context.Context, docs []Document) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&Document{}).Count(&count).Error; err != nil {
		return fmt.Errorf("counting policy documents: %w", err)
	}
	if count > 0 || len(docs) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&docs).Error; err != nil {
		return fmt.Errorf("seeding policy documents: %w", err)
	}
	return nil
}

// Search returns up to maxResults passages scored by how many query words
// they contain.
func (s *Store) Search(ctx context.Context, query string) ([]string, error) {
	var docs []Document
	if err := s.db.WithContext(ctx).Order("id").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("loading policy documents: %w", err)
	}

	words := strings.Fields(strings.ToLower(query))
	type scored struct {
		doc   Document
		score int
	}
	var hits []scored
	for _, doc := range docs {
		text := strings.ToLower(doc.Title + " " + doc.Content)
		score := 0
		for _, w := range words {
			if strings.Contains(text, w) {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, scored{doc, score})
		}
	}
	// Stable by ID within equal scores; docs are already ID-ordered.
	for i := 0; i < len(hits); i++ {
		for j := i + 1; j < len(hits); j++ {
			if hits[j].score > hits[i].score {
				hits[i], hits[j] = hits[j], hits[i]
			}
		}
	}
	if len(hits) > maxResults {
		hits = hits[:maxResults]
	}
	passages := make([]string, 0, len(hits))
	for _, h := range hits {
		passages = append(passages, h.doc.Title+"\n"+h.doc.Content)
	}
	return passages, nil
}

type lookupArgs struct {
	Query string `json:"query"`
}

// Register installs the lookup_policy tool for the primary assistant.
func Register(reg *tool.Registry, s Searcher) error {
	t := tool.MustFunctionTool("lookup_policy",
		"Consult the company policies to check whether an option is permitted. "+
			"Use this before making any flight change or other write.",
		func(ctx context.Context, in lookupArgs) (string, error) {
			passages, err := s.Search(ctx, in.Query)
			if err != nil {
				return "", err
			}
			if len(passages) == 0 {
				return "No policy passages found for that query.", nil
			}
			return strings.Join(passages, "\n\n"), nil
		})
	return reg.Register(t, tool.ClassSafe, tool.DomainPrimary)
}

// DefaultDocuments is the built-in policy set used when no external policy
// source is configured.
func DefaultDocuments() []Document {
	return []Document{
		{
			Title: "Flight changes",
			Content: "Tickets may be moved to another flight in the same cabin when the new " +
				"departure is more than three hours away. Same-day changes within three hours " +
				"of departure are not permitted through the assistant.",
		},
		{
			Title: "Cancellations and refunds",
			Content: "Fully refundable fares may be cancelled at any time before departure. " +
				"Non-refundable fares are refunded as travel credit minus the change fee.",
		},
		{
			Title: "Hotels and car rentals",
			Content: "Hotel and car rental bookings made through the concierge may be modified " +
				"or cancelled free of charge up to 48 hours before the start of the stay or rental.",
		},
		{
			Title: "Excursions",
			Content: "Excursion bookings may be rescheduled once free of charge. Cancellation " +
				"within 24 hours of the activity is non-refundable.",
		},
	}
}
