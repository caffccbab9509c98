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

// Package guard implements the pre-routing safety gate: a jailbreak check
// that can block a turn and a relevance check that is advisory by default.
package guard

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/tripwise/concierge/conversation"
)

// Verdict is a structured classifier result.
type Verdict struct {
	// OK is true when the message passed the check.
	OK bool `json:"ok"`
	// Reasoning is a brief explanation of the decision.
	Reasoning string `json:"reasoning"`
}

// Classifier runs one best-effort classification of a user message.
type Classifier interface {
	Classify(ctx context.Context, text string) (Verdict, error)
}

// Mode selects the failure policy when a classifier is unavailable.
type Mode int

const (
	// ModeFailOpen passes the turn with a warning when classification fails.
	// Blocking on classifier downtime is the higher-risk failure mode for
	// availability, so this is the default.
	ModeFailOpen Mode = iota
	// ModeFailClosed blocks the turn when classification fails.
	ModeFailClosed
)

// Config configures a Gate.
type Config struct {
	Jailbreak Classifier
	Relevance Classifier

	Mode Mode
	// BlockIrrelevant promotes a failed relevance check from a logged warning
	// to a block. Off by default.
	BlockIrrelevant bool

	// CacheSize bounds the verdict cache. Zero disables caching.
	CacheSize int

	Logger zerolog.Logger
}

// Outcome is the gate's decision for one turn.
type Outcome int

const (
	// Pass lets the turn proceed to routing.
	Pass Outcome = iota
	// Block short-circuits the graph with the reply in Result.Reply.
	Block
)

// Result carries the gate outcome and, for blocks and clarifications, the
// message to surface.
type Result struct {
	Outcome Outcome
	// Reply is set when the gate itself produced the user-facing reply.
	Reply string
}

type cached struct {
	jailbreak, relevance Verdict
	jbOK, relOK          bool
}

// Gate is the safety pre-filter. It never mutates the conversation beyond
// what the caller appends from the returned Result.
type Gate struct {
	cfg   Config
	cache *lru.Cache[string, cached]
	log   zerolog.Logger
}

// New creates a Gate.
func New(cfg Config) (*Gate, error) {
	g := &Gate{cfg: cfg, log: cfg.Logger}
	if cfg.CacheSize > 0 {
		c, err := lru.New[string, cached](cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("creating verdict cache: %w", err)
		}
		g.cache = c
	}
	return g, nil
}

// Check classifies the latest user message of the state.
//
// When the state has no user message yet, the gate passes and supplies a
// clarification reply so the caller can respond without a model round trip.
func (g *Gate) Check(ctx context.Context, state *conversation.State) Result {
	user := state.LastUser()
	if user == nil {
		g.log.Warn().Msg("no user message found for guardrail check, allowing")
		return Result{Outcome: Pass, Reply: "No user input to check. Please provide a query."}
	}
	text := user.Content

	jb, jbErr := g.classify(ctx, g.cfg.Jailbreak, text, true)
	if jbErr != nil {
		return g.onClassifierFailure("jailbreak", jbErr)
	}
	if !jb.OK {
		g.log.Warn().Str("reasoning", jb.Reasoning).Msg("jailbreak attempt detected")
		return Result{
			Outcome: Block,
			Reply:   fmt.Sprintf("I cannot assist with that request. Reason: %s", jb.Reasoning),
		}
	}

	rel, relErr := g.classify(ctx, g.cfg.Relevance, text, false)
	if relErr != nil {
		// The relevance check is advisory; its unavailability never blocks.
		g.log.Warn().Err(relErr).Msg("relevance classifier unavailable, allowing")
		return Result{Outcome: Pass}
	}
	if !rel.OK {
		g.log.Warn().Str("reasoning", rel.Reasoning).Msg("irrelevant input detected")
		if g.cfg.BlockIrrelevant {
			return Result{
				Outcome: Block,
				Reply: "I can only help with flights, hotels, car rentals, excursions, " +
					"products and orders, form submissions, and blog searches. " +
					"Reason: " + rel.Reasoning,
			}
		}
	}
	return Result{Outcome: Pass}
}

func (g *Gate) classify(ctx context.Context, c Classifier, text string, jailbreak bool) (Verdict, error) {
	if c == nil {
		return Verdict{OK: true}, nil
	}
	if g.cache != nil {
		if v, ok := g.cache.Get(text); ok {
			if jailbreak && v.jbOK {
				return v.jailbreak, nil
			}
			if !jailbreak && v.relOK {
				return v.relevance, nil
			}
		}
	}
	v, err := c.Classify(ctx, text)
	if err != nil {
		return Verdict{}, err
	}
	if g.cache != nil {
		cur, _ := g.cache.Get(text)
		if jailbreak {
			cur.jailbreak, cur.jbOK = v, true
		} else {
			cur.relevance, cur.relOK = v, true
		}
		g.cache.Add(text, cur)
	}
	return v, nil
}

func (g *Gate) onClassifierFailure(name string, err error) Result {
	if g.cfg.Mode == ModeFailClosed {
		g.log.Error().Err(err).Str("classifier", name).Msg("classifier unavailable, blocking")
		return Result{
			Outcome: Block,
			Reply:   "I cannot verify the safety of this request right now. Please try again shortly.",
		}
	}
	g.log.Warn().Err(err).Str("classifier", name).Msg("classifier unavailable, allowing")
	return Result{Outcome: Pass}
}
