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
	"sort"

	"github.com/AleutianAI/librarian/internal/provider"
	"github.com/AleutianAI/librarian/internal/storage"
)

// DefaultMaxDepth bounds exhaustive structural BFS when the query
// doesn't otherwise specify a depth.
const DefaultMaxDepth = 5

// Retriever runs both retrieval paths: structural graph traversal and
// semantic vector search.
type Retriever struct {
	Store   storage.Store
	Vectors storage.VectorIndex
	Embed   provider.Embed
}

// Structural runs GetGraphEdges from entityID, optionally BFS-ing up to
// maxDepth when exhaustive is set; otherwise it stops at depth 1.
// Results are deduplicated by entity id and sorted by depth then id.
func (r *Retriever) Structural(ctx context.Context, entityID string, direction Direction, maxDepth int, exhaustive bool) ([]Candidate, error) {
	if !exhaustive {
		maxDepth = 1
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	visited := map[string]int{entityID: 0}
	frontier := []string{entityID}
	var out []Candidate

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			edges, err := edgesForDirection(ctx, r.Store, id, direction)
			if err != nil {
				return out, err
			}
			for _, e := range edges {
				neighbor := neighborID(e, id, direction)
				if _, seen := visited[neighbor]; seen {
					continue
				}
				visited[neighbor] = depth
				next = append(next, neighbor)
				out = append(out, Candidate{
					EntityID:   neighbor,
					EntityType: neighborType(e, id, direction),
					Depth:      depth,
					Signals:    Signals{Structural: 1.0 / float64(depth)},
				})
			}
		}
		frontier = next
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Depth != out[j].Depth {
			return out[i].Depth < out[j].Depth
		}
		return out[i].EntityID < out[j].EntityID
	})
	return out, nil
}

func edgesForDirection(ctx context.Context, store storage.Store, id string, direction Direction) ([]storage.GraphEdge, error) {
	if direction == DirectionDependents {
		return store.GetGraphEdges(ctx, storage.EdgeFilter{ToIDs: []string{id}})
	}
	return store.GetGraphEdges(ctx, storage.EdgeFilter{FromIDs: []string{id}})
}

func neighborID(e storage.GraphEdge, from string, direction Direction) string {
	if direction == DirectionDependents {
		return e.FromID
	}
	return e.ToID
}

func neighborType(e storage.GraphEdge, from string, direction Direction) storage.EntityType {
	if direction == DirectionDependents {
		return e.FromType
	}
	return e.ToType
}

// Semantic embeds text and runs FindSimilar over functions, modules and
// packs, merging in any structural hits and boosting structural
// candidates into the 0.85-0.95 score band.
func (r *Retriever) Semantic(ctx context.Context, text string, k int, embedModel string, structural []Candidate) ([]Candidate, error) {
	merged := make(map[string]*Candidate, len(structural))
	for i := range structural {
		c := structural[i]
		merged[c.EntityID] = &c
	}

	if r.Embed != nil && r.Vectors != nil {
		resp, err := r.Embed.Embed(ctx, provider.EmbedRequest{ModelID: embedModel, Texts: []string{text}})
		if err == nil && len(resp.Vectors) == 1 {
			hits, err := r.Vectors.FindSimilar(ctx, resp.Vectors[0], k, storage.SimilarityFilter{
				EntityTypes: []storage.EntityType{storage.EntityFunction, storage.EntityModule, storage.EntityPack},
			})
			if err == nil {
				for _, h := range hits {
					if existing, ok := merged[h.EntityID]; ok {
						existing.Signals.Semantic = h.Score
						continue
					}
					merged[h.EntityID] = &Candidate{
						EntityID:   h.EntityID,
						EntityType: h.EntityType,
						Signals:    Signals{Semantic: h.Score},
					}
				}
			}
		}
	}

	out := make([]Candidate, 0, len(merged))
	for _, c := range merged {
		if c.Depth > 0 {
			// boost structural hits into the 0.85-0.95 band regardless of
			// their raw depth-derived signal.
			c.Signals.Structural = 0.85 + 0.10*(1.0/float64(c.Depth+1))
			if c.Signals.Structural > 0.95 {
				c.Signals.Structural = 0.95
			}
		}
		out = append(out, *c)
	}
	return out, nil
}
