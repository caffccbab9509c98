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

package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/genai"

	"github.com/tripwise/concierge/approval"
	"github.com/tripwise/concierge/assistant"
	"github.com/tripwise/concierge/graph"
	"github.com/tripwise/concierge/guard"
	"github.com/tripwise/concierge/internal/telemetry"
	"github.com/tripwise/concierge/model"
	"github.com/tripwise/concierge/model/gemini"
	"github.com/tripwise/concierge/policy"
	"github.com/tripwise/concierge/runner"
	"github.com/tripwise/concierge/server"
	"github.com/tripwise/concierge/session"
	"github.com/tripwise/concierge/session/database"
	"github.com/tripwise/concierge/session/inmemory"
	"github.com/tripwise/concierge/store"
	"github.com/tripwise/concierge/tool"
	"github.com/tripwise/concierge/travel"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg *Config) error {
	log := newLogger(cfg.LogLevel)
	telemetry.Register()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handler, err := gemini.NewHandler(ctx, cfg.Model, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return err
	}
	gate, err := guard.New(guard.Config{
		Jailbreak:       gemini.NewJailbreakClassifier(handler),
		Relevance:       gemini.NewRelevanceClassifier(handler),
		Mode:            guardMode(cfg.Guard.Mode),
		BlockIrrelevant: cfg.Guard.BlockIrrelevant,
		CacheSize:       cfg.Guard.CacheSize,
		Logger:          log,
	})
	if err != nil {
		return err
	}

	reg, fetcher, err := buildRegistry(ctx, cfg)
	if err != nil {
		return err
	}

	var sessions session.Service
	if cfg.SessionDB == "" {
		sessions = inmemory.New()
	} else {
		if sessions, err = database.Open(cfg.SessionDB); err != nil {
			return err
		}
	}

	srv, err := buildServer(appDeps{
		cfg:      cfg,
		log:      log,
		handler:  handler,
		gate:     gate,
		registry: reg,
		fetcher:  fetcher,
		sessions: sessions,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.Addr).Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// buildRegistry opens the travel database and installs every tool and
// delegation marker.
func buildRegistry(ctx context.Context, cfg *Config) (*tool.Registry, graph.ContextFetcher, error) {
	db, err := travel.Open(cfg.TravelDB)
	if err != nil {
		return nil, nil, err
	}
	repo, err := travel.NewRepository(db)
	if err != nil {
		return nil, nil, err
	}
	policies, err := policy.NewStore(db)
	if err != nil {
		return nil, nil, err
	}
	if err := policies.Seed(ctx, policy.DefaultDocuments()); err != nil {
		return nil, nil, err
	}
	retail, err := store.NewClient(cfg.StoreBaseURL, nil)
	if err != nil {
		return nil, nil, err
	}

	reg := tool.NewRegistry()
	if err := travel.Register(reg, repo); err != nil {
		return nil, nil, err
	}
	if err := policy.Register(reg, policies); err != nil {
		return nil, nil, err
	}
	if err := store.Register(reg, retail); err != nil {
		return nil, nil, err
	}
	if err := assistant.RegisterDelegations(reg); err != nil {
		return nil, nil, err
	}
	return reg, travel.NewContextFetcher(repo), nil
}

type appDeps struct {
	cfg      *Config
	log      zerolog.Logger
	handler  model.Handler
	gate     *guard.Gate
	registry *tool.Registry
	fetcher  graph.ContextFetcher
	sessions session.Service
}

// buildGraph wires the assistants into the routing graph.
func buildGraph(d appDeps) (*graph.Graph, error) {
	primary := assistant.NewPrimary(d.handler, d.registry, d.log)
	domains := make(map[tool.Domain]*assistant.Assistant, len(tool.Domains()))
	for _, dom := range tool.Domains() {
		a, err := assistant.NewDomain(dom, d.handler, d.registry, d.log)
		if err != nil {
			return nil, fmt.Errorf("building %s assistant: %w", dom, err)
		}
		domains[dom] = a
	}
	return graph.New(graph.Config{
		Registry:       d.registry,
		Primary:        primary,
		Domains:        domains,
		Gate:           d.gate,
		Interceptor:    approval.NewInterceptor(d.sessions, d.log),
		ContextFetcher: d.fetcher,
		MaxSteps:       d.cfg.MaxSteps,
		Logger:         d.log,
	})
}

// buildServer wires the graph, runner, and HTTP server.
func buildServer(d appDeps) (*server.Server, error) {
	routing, err := buildGraph(d)
	if err != nil {
		return nil, err
	}

	run, err := runner.New(runner.Config{
		Graph:           routing,
		Store:           d.sessions,
		Reconciler:      approval.NewReconciler(d.sessions, d.registry, d.log),
		Logger:          d.log,
		DefaultTraveler: d.cfg.DefaultTraveler,
	})
	if err != nil {
		return nil, err
	}

	return server.New(server.Config{
		Runner: run,
		Store:  d.sessions,
		Graph:  routing,
		Logger: d.log,
	})
}

func guardMode(mode string) guard.Mode {
	if mode == "fail_closed" {
		return guard.ModeFailClosed
	}
	return guard.ModeFailOpen
}
