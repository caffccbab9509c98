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

package graph

import (
	"fmt"
	"sort"

	"github.com/awalterschulze/gographviz"

	"github.com/tripwise/concierge/tool"
)

// DOT renders the routing graph in Graphviz DOT form. Sensitive tool nodes
// are drawn as boxes with a distinct color so the gated edges are visible at
// a glance.
func (g *Graph) DOT() (string, error) {
	viz := gographviz.NewGraph()
	if err := viz.SetName("routing"); err != nil {
		return "", err
	}
	if err := viz.SetDir(true); err != nil {
		return "", err
	}

	add := func(node NodeID, attrs map[string]string) error {
		return viz.AddNode("routing", quote(node), attrs)
	}
	edge := func(from, to NodeID, attrs map[string]string) error {
		return viz.AddEdge(quote(from), quote(to), true, attrs)
	}

	assistantAttrs := map[string]string{"shape": "ellipse"}
	toolAttrs := map[string]string{"shape": "box"}
	gatedAttrs := map[string]string{"shape": "box", "style": "filled", "fillcolor": "salmon"}

	for _, n := range []NodeID{NodeEntry, NodePrimary, NodePrimaryTools, NodeEnd} {
		attrs := assistantAttrs
		if n == NodePrimaryTools {
			attrs = toolAttrs
		}
		if err := add(n, attrs); err != nil {
			return "", err
		}
	}
	if err := edge(NodeEntry, NodePrimary, nil); err != nil {
		return "", err
	}
	if err := edge(NodePrimary, NodePrimaryTools, nil); err != nil {
		return "", err
	}
	if err := edge(NodePrimaryTools, NodePrimary, nil); err != nil {
		return "", err
	}
	if err := edge(NodePrimary, NodeEnd, nil); err != nil {
		return "", err
	}

	domains := make([]tool.Domain, 0, len(g.domains))
	for d := range g.domains {
		domains = append(domains, d)
	}
	sort.Slice(domains, func(i, j int) bool { return domains[i] < domains[j] })

	for _, d := range domains {
		nodes := []struct {
			id    NodeID
			attrs map[string]string
		}{
			{EnterNode(d), assistantAttrs},
			{AssistantNode(d), assistantAttrs},
			{SafeToolsNode(d), toolAttrs},
		}
		if g.registry.HasSensitive(d) {
			nodes = append(nodes, struct {
				id    NodeID
				attrs map[string]string
			}{SensitiveToolsNode(d), gatedAttrs})
		}
		for _, n := range nodes {
			if err := add(n.id, n.attrs); err != nil {
				return "", err
			}
		}

		edges := [][2]NodeID{
			{NodePrimary, EnterNode(d)},
			{EnterNode(d), AssistantNode(d)},
			{AssistantNode(d), SafeToolsNode(d)},
			{SafeToolsNode(d), AssistantNode(d)},
			{SafeToolsNode(d), NodePrimary},
			{AssistantNode(d), NodeEnd},
		}
		for _, e := range edges {
			if err := edge(e[0], e[1], nil); err != nil {
				return "", err
			}
		}
		if g.registry.HasSensitive(d) {
			if err := edge(AssistantNode(d), SensitiveToolsNode(d), map[string]string{"label": quoteString("approval")}); err != nil {
				return "", err
			}
			if err := edge(SensitiveToolsNode(d), AssistantNode(d), nil); err != nil {
				return "", err
			}
			if err := edge(SensitiveToolsNode(d), NodePrimary, nil); err != nil {
				return "", err
			}
		}
	}

	return viz.String(), nil
}

func quote(n NodeID) string { return fmt.Sprintf("%q", string(n)) }

func quoteString(s string) string { return fmt.Sprintf("%q", s) }
