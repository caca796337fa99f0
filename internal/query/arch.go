// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package query

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/AleutianAI/librarian/internal/storage"
)

// Layer is one of the fixed taxonomy buckets an architecture overview
// classifies directories into.
type Layer string

const (
	LayerInterface      Layer = "interface"
	LayerApplication     Layer = "application"
	LayerDomain         Layer = "domain"
	LayerData           Layer = "data"
	LayerInfrastructure Layer = "infrastructure"
	LayerAnalysis       Layer = "analysis"
	LayerUtility        Layer = "utility"
	LayerOther          Layer = "other"
)

// directoryLayers maps a top-level directory name fragment to its
// layer. Checked in order; first match wins.
var directoryLayers = []struct {
	fragment string
	layer    Layer
}{
	{"cmd", LayerInterface}, {"api", LayerInterface}, {"handler", LayerInterface}, {"http", LayerInterface},
	{"cli", LayerInterface}, {"librarian", LayerInterface},
	{"bootstrap", LayerApplication}, {"query", LayerApplication}, {"governor", LayerApplication},
	{"service", LayerApplication}, {"app", LayerApplication},
	{"knowledge", LayerDomain}, {"evidence", LayerDomain}, {"feedback", LayerDomain}, {"domain", LayerDomain}, {"model", LayerDomain},
	{"storage", LayerData}, {"db", LayerData}, {"repo", LayerData},
	{"provider", LayerInfrastructure}, {"config", LayerInfrastructure}, {"infra", LayerInfrastructure}, {"logging", LayerInfrastructure},
	{"parser", LayerAnalysis}, {"analysis", LayerAnalysis}, {"analytics", LayerAnalysis},
	{"util", LayerUtility}, {"pkg", LayerUtility}, {"errs", LayerUtility},
}

// layerForPath matches against every path segment rather than only the
// top-level directory, since this tree (like much of the corpus) nests
// its meaningful package names under a shared "internal/" or "cmd/" root.
func layerForPath(path string) Layer {
	segments := strings.Split(strings.ToLower(strings.TrimPrefix(path, "/")), "/")
	if len(segments) > 0 && segments[0] == "cmd" {
		return LayerInterface
	}
	for _, seg := range segments {
		for _, d := range directoryLayers {
			if strings.Contains(seg, d.fragment) {
				return d.layer
			}
		}
	}
	return LayerOther
}

// layerEdge is one directed cross-layer dependency count.
type layerEdge struct {
	From  Layer
	To    Layer
	Count int
}

// ArchitectureOverview derives layers from the directory names anywhere
// in each graph edge's endpoint paths, infers cross-layer dependencies from
// `imports` edges, and returns one
// synthesized pack plus any layer cycles it finds.
func ArchitectureOverview(ctx context.Context, store storage.Store) (storage.ContextPack, []string, error) {
	edges, err := store.GetGraphEdges(ctx, storage.EdgeFilter{EdgeTypes: []storage.EdgeType{storage.EdgeImports}})
	if err != nil {
		return storage.ContextPack{}, nil, err
	}

	pathCache := map[string]string{}
	resolvePath := func(id string, entityType storage.EntityType) (string, bool) {
		if p, ok := pathCache[id]; ok {
			return p, p != ""
		}
		var path string
		switch entityType {
		case storage.EntityModule:
			if mods, err := store.GetModules(ctx, []string{id}); err == nil && len(mods) == 1 {
				path = mods[0].Path
			}
		case storage.EntityFunction:
			if fns, err := store.GetFunctions(ctx, []string{id}); err == nil && len(fns) == 1 {
				path = fns[0].FilePath
			}
		}
		pathCache[id] = path
		return path, path != ""
	}

	recognized := map[Layer]bool{}
	crossCounts := map[[2]Layer]int{}
	var totalResolved int

	for _, e := range edges {
		fromPath, fromOK := resolvePath(e.FromID, e.FromType)
		toPath, toOK := resolvePath(e.ToID, e.ToType)
		if !fromOK || !toOK {
			continue
		}
		totalResolved++
		fromLayer, toLayer := layerForPath(fromPath), layerForPath(toPath)
		recognized[fromLayer] = true
		recognized[toLayer] = true
		if fromLayer != toLayer {
			crossCounts[[2]Layer{fromLayer, toLayer}]++
		}
	}

	layerEdges := make([]layerEdge, 0, len(crossCounts))
	for k, n := range crossCounts {
		layerEdges = append(layerEdges, layerEdge{From: k[0], To: k[1], Count: n})
	}
	sort.Slice(layerEdges, func(i, j int) bool {
		if layerEdges[i].From != layerEdges[j].From {
			return layerEdges[i].From < layerEdges[j].From
		}
		return layerEdges[i].To < layerEdges[j].To
	})

	cycles := findLayerCycles(layerEdges)

	confidence := archConfidence(len(recognized), len(layerEdges), totalResolved)

	facts := make([]string, 0, len(layerEdges)+len(cycles))
	for _, le := range layerEdges {
		facts = append(facts, fmt.Sprintf("%s -> %s: %d edge(s)", le.From, le.To, le.Count))
	}
	for _, c := range cycles {
		facts = append(facts, fmt.Sprintf("cycle: %s", c))
	}

	pack := storage.ContextPack{
		PackID:     "architecture-overview",
		PackType:   "architecture",
		TargetID:   "architecture-overview",
		Summary:    fmt.Sprintf("%d layers recognized across %d cross-layer dependency edge(s).", len(recognized), len(layerEdges)),
		KeyFacts:   facts,
		Confidence: confidence,
	}
	return pack, cycles, nil
}

// archConfidence is derived from the number of recognized layers (out of
// the 8-entry taxonomy) and the share of import edges that resolved to a
// cross-layer dependency, capped at 0.9.
func archConfidence(recognizedLayers, crossLayerEdges, totalResolvedEdges int) float64 {
	layerShare := float64(recognizedLayers) / 8.0
	edgeShare := 0.0
	if totalResolvedEdges > 0 {
		edgeShare = float64(crossLayerEdges) / float64(totalResolvedEdges)
		if edgeShare > 1 {
			edgeShare = 1
		}
	}
	c := 0.5*layerShare + 0.5*edgeShare
	if c > 0.9 {
		c = 0.9
	}
	return c
}

// findLayerCycles runs a simple DFS over the directed layer graph and
// reports each distinct cycle as "a -> b -> c -> a".
func findLayerCycles(edges []layerEdge) []string {
	adj := map[Layer][]Layer{}
	for _, e := range edges {
		adj[e.From] = append(adj[e.From], e.To)
	}

	var cycles []string
	seenCycle := map[string]bool{}
	var stack []Layer
	onStack := map[Layer]bool{}
	visited := map[Layer]bool{}

	var visit func(l Layer)
	visit = func(l Layer) {
		visited[l] = true
		onStack[l] = true
		stack = append(stack, l)
		for _, next := range adj[l] {
			if onStack[next] {
				cycle := cyclePath(stack, next)
				key := strings.Join(cycle, ",")
				if !seenCycle[key] {
					seenCycle[key] = true
					cycles = append(cycles, strings.Join(cycle, " -> "))
				}
				continue
			}
			if !visited[next] {
				visit(next)
			}
		}
		stack = stack[:len(stack)-1]
		onStack[l] = false
	}

	layers := make([]Layer, 0, len(adj))
	for l := range adj {
		layers = append(layers, l)
	}
	sort.Slice(layers, func(i, j int) bool { return layers[i] < layers[j] })
	for _, l := range layers {
		if !visited[l] {
			visit(l)
		}
	}
	return cycles
}

func cyclePath(stack []Layer, closingAt Layer) []string {
	start := 0
	for i, l := range stack {
		if l == closingAt {
			start = i
			break
		}
	}
	out := make([]string, 0, len(stack)-start+1)
	for _, l := range stack[start:] {
		out = append(out, string(l))
	}
	out = append(out, string(closingAt))
	return out
}
