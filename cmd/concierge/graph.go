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

	"github.com/spf13/cobra"

	"github.com/tripwise/concierge/conversation"
	"github.com/tripwise/concierge/guard"
	"github.com/tripwise/concierge/model"
	"github.com/tripwise/concierge/session/inmemory"
)

func newGraphCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "graph",
		Short: "Print the routing graph in Graphviz DOT form",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			// Rendering never talks to the model or the databases; an
			// in-memory travel store and an offline handler suffice.
			cfg.TravelDB = ":memory:"
			return printGraph(cmd.Context(), cfg)
		},
	}
}

func printGraph(ctx context.Context, cfg *Config) error {
	log := newLogger(cfg.LogLevel)
	reg, fetcher, err := buildRegistry(ctx, cfg)
	if err != nil {
		return err
	}
	gate, err := guard.New(guard.Config{Logger: log})
	if err != nil {
		return err
	}
	routing, err := buildGraph(appDeps{
		cfg:      cfg,
		log:      log,
		handler:  offlineHandler{},
		gate:     gate,
		registry: reg,
		fetcher:  fetcher,
		sessions: inmemory.New(),
	})
	if err != nil {
		return err
	}
	dot, err := routing.DOT()
	if err != nil {
		return err
	}
	fmt.Print(dot)
	return nil
}

// offlineHandler satisfies model.Handler for commands that never generate.
type offlineHandler struct{}

func (offlineHandler) Generate(context.Context, *model.Request) (*conversation.Message, error) {
	return nil, model.ErrUnavailable
}
