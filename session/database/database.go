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

// Package database provides a GORM-backed session store. The default driver
// is the pure-Go sqlite dialector, so it runs without cgo.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tripwise/concierge/conversation"
	"github.com/tripwise/concierge/session"
)

type sessionRecord struct {
	ID         string `gorm:"primaryKey"`
	TravelerID string
	State      JSONValue[conversation.State] `gorm:"type:text"`
	UpdatedAt  time.Time
}

func (sessionRecord) TableName() string { return "sessions" }

type pendingRecord struct {
	SessionID string                                `gorm:"primaryKey"`
	Calls     JSONValue[[]conversation.ToolCall]    `gorm:"type:text"`
	CreatedAt time.Time
}

func (pendingRecord) TableName() string { return "pending_approvals" }

type logRecord struct {
	ID        uint `gorm:"primaryKey;autoIncrement"`
	SessionID string `gorm:"index"`
	Time      time.Time
	Kind      string
	Title     string
	Content   string
}

func (logRecord) TableName() string { return "operation_log" }

// Service is a session.Service backed by a relational database.
type Service struct {
	db *gorm.DB
}

var _ session.Service = (*Service)(nil)

// Open opens (and migrates) a sqlite-backed store at the given path.
func Open(path string) (*Service, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening session database: %w", err)
	}
	return New(db)
}

// New wraps an existing gorm handle and runs migrations.
func New(db *gorm.DB) (*Service, error) {
	if err := db.AutoMigrate(&sessionRecord{}, &pendingRecord{}, &logRecord{}); err != nil {
		return nil, fmt.Errorf("migrating session schema: %w", err)
	}
	return &Service{db: db}, nil
}

func (s *Service) Load(ctx context.Context, id string) (*session.Session, error) {
	var rec sessionRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &session.Session{ID: id, State: &conversation.State{}, Updated: time.Now()}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", id, err)
	}
	state := rec.State.V
	return &session.Session{
		ID:         rec.ID,
		TravelerID: rec.TravelerID,
		State:      &state,
		Updated:    rec.UpdatedAt,
	}, nil
}

func (s *Service) Save(ctx context.Context, sess *session.Session) error {
	rec := sessionRecord{
		ID:         sess.ID,
		TravelerID: sess.TravelerID,
		State:      JSONValue[conversation.State]{V: *sess.State.Clone()},
		UpdatedAt:  time.Now(),
	}
	if err := s.db.WithContext(ctx).Save(&rec).Error; err != nil {
		return fmt.Errorf("saving session %s: %w", sess.ID, err)
	}
	return nil
}

func (s *Service) GetPending(ctx context.Context, id string) (*session.PendingApproval, error) {
	var rec pendingRecord
	err := s.db.WithContext(ctx).First(&rec, "session_id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, session.ErrNoPendingApproval
	}
	if err != nil {
		return nil, fmt.Errorf("loading pending approval for %s: %w", id, err)
	}
	return &session.PendingApproval{
		SessionID: rec.SessionID,
		Calls:     rec.Calls.V,
		CreatedAt: rec.CreatedAt,
	}, nil
}

func (s *Service) SetPending(ctx context.Context, p *session.PendingApproval) error {
	rec := pendingRecord{
		SessionID: p.SessionID,
		Calls:     JSONValue[[]conversation.ToolCall]{V: p.Calls},
		CreatedAt: p.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Save(&rec).Error; err != nil {
		return fmt.Errorf("saving pending approval for %s: %w", p.SessionID, err)
	}
	return nil
}

func (s *Service) ClearPending(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Delete(&pendingRecord{}, "session_id = ?", id).Error
	if err != nil {
		return fmt.Errorf("clearing pending approval for %s: %w", id, err)
	}
	return nil
}

func (s *Service) AppendLog(ctx context.Context, id string, e session.LogEntry) error {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	rec := logRecord{
		SessionID: id,
		Time:      e.Time,
		Kind:      string(e.Kind),
		Title:     e.Title,
		Content:   e.Content,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("appending log for %s: %w", id, err)
	}
	return nil
}

func (s *Service) Log(ctx context.Context, id string) ([]session.LogEntry, error) {
	var recs []logRecord
	err := s.db.WithContext(ctx).Where("session_id = ?", id).Order("id asc").Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("loading log for %s: %w", id, err)
	}
	out := make([]session.LogEntry, len(recs))
	for i, r := range recs {
		out[i] = session.LogEntry{
			Time:    r.Time,
			Kind:    session.LogKind(r.Kind),
			Title:   r.Title,
			Content: r.Content,
		}
	}
	return out, nil
}
