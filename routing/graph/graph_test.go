// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package graph

import (
	"fmt"
	"testing"
)

type edgeInfo struct {
	cost float64
}

func buildRing(n int) *Multigraph[struct{}, edgeInfo] {
	g := New[struct{}, edgeInfo]()
	for i := 0; i < n; i++ {
		g.AddNode(fmt.Sprintf("n%d", i), struct{}{})
	}
	for i := 0; i < n; i++ {
		from := fmt.Sprintf("n%d", i)
		to := fmt.Sprintf("n%d", (i+1)%n)
		g.AddEdge(fmt.Sprintf("e%d", i), from, to, edgeInfo{cost: 1})
	}
	return g
}

func cost(e Edge[edgeInfo]) float64 { return e.Info.cost }

func TestShortestPathRingOf16(t *testing.T) {
	g := buildRing(16)

	path, err := Shortest(g, "n0", "n8", cost)
	if err != nil {
		t.Fatalf("Shortest failed: %v", err)
	}
	if path.Distance != 8 {
		t.Fatalf("distance: got %v, want 8", path.Distance)
	}
	if len(path.Nodes) != 9 {
		t.Fatalf("path length: got %d, want 9", len(path.Nodes))
	}
	if path.Nodes[0] != "n0" || path.Nodes[len(path.Nodes)-1] != "n8" {
		t.Fatalf("path endpoints: got %v", path.Nodes)
	}
}

func TestShortestPathNoRoute(t *testing.T) {
	g := New[struct{}, edgeInfo]()
	g.AddNode("a", struct{}{})
	g.AddNode("b", struct{}{})

	if _, err := Shortest(g, "a", "b", cost); err == nil {
		t.Fatal("expected ErrNoPath for an unconnected destination")
	}
}

func TestShortestPathInfiniteWeightTreatedAsAbsent(t *testing.T) {
	g := New[struct{}, edgeInfo]()
	g.AddNode("a", struct{}{})
	g.AddNode("b", struct{}{})
	g.AddNode("c", struct{}{})
	g.AddEdge("e1", "a", "b", edgeInfo{cost: posInf})
	g.AddEdge("e2", "a", "c", edgeInfo{cost: 5})
	g.AddEdge("e3", "c", "b", edgeInfo{cost: 1})

	path, err := Shortest(g, "a", "b", cost)
	if err != nil {
		t.Fatalf("Shortest failed: %v", err)
	}
	if path.Distance != 6 {
		t.Fatalf("distance: got %v, want 6 (direct edge must be skipped)", path.Distance)
	}
}

func TestParallelEdgesAllowed(t *testing.T) {
	g := New[struct{}, edgeInfo]()
	g.AddNode("a", struct{}{})
	g.AddNode("b", struct{}{})
	g.AddEdge("cheap", "a", "b", edgeInfo{cost: 1})
	g.AddEdge("expensive", "a", "b", edgeInfo{cost: 10})

	if got := len(g.EdgesFrom("a")); got != 2 {
		t.Fatalf("expected 2 parallel edges, got %d", got)
	}

	path, err := Shortest(g, "a", "b", cost)
	if err != nil {
		t.Fatalf("Shortest failed: %v", err)
	}
	if path.Distance != 1 {
		t.Fatalf("distance: got %v, want 1 (cheaper parallel edge)", path.Distance)
	}
	if path.Edges[0] != "cheap" {
		t.Fatalf("expected the cheap edge to be chosen, got %s", path.Edges[0])
	}
}

func TestDelNodeRemovesIncidentEdges(t *testing.T) {
	g := New[struct{}, edgeInfo]()
	g.AddNode("a", struct{}{})
	g.AddNode("b", struct{}{})
	g.AddEdge("e1", "a", "b", edgeInfo{cost: 1})

	g.DelNode("b")

	if _, ok := g.FindNode("b"); ok {
		t.Fatal("expected b to be removed")
	}
	if got := len(g.EdgesFrom("a")); got != 0 {
		t.Fatalf("expected a's edge to b to be removed, got %d edges", got)
	}
}
