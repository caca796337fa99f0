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
	"time"

	"github.com/AleutianAI/librarian/internal/provider"
	"github.com/AleutianAI/librarian/internal/storage"
	"github.com/AleutianAI/librarian/internal/telemetry"
)

// DefaultTopK bounds how many packs Query returns when Request.TopK is unset.
const DefaultTopK = 10

// Engine ties classification, resolution, retrieval, scoring and
// synthesis together. A nil Chat degrades synthesis to packs-only
// rather than failing the query.
type Engine struct {
	Store        storage.Store
	Vectors      storage.VectorIndex
	Embed        provider.Embed
	Chat         provider.Chat
	ModelID      string
	EmbedModelID string
	MaxDepth     int

	// Metrics, if set, receives query latency and per-path retrieval hit
	// counts. Nil by default; Record* calls on a nil *telemetry.Metrics
	// are no-ops.
	Metrics *telemetry.Metrics
}

// Query runs the full pipeline: intent → retrieval → scoring →
// synthesis → access-count update, always in that order.
func (e *Engine) Query(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	defer func() { e.Metrics.RecordQueryLatency(time.Since(start)) }()

	classification := Classify(req.Text)

	if classification.Intent == IntentArchitectural {
		pack, _, err := ArchitectureOverview(ctx, e.Store)
		if err != nil {
			return Response{}, err
		}
		if err := e.Store.UpsertContextPack(ctx, pack); err != nil {
			return Response{}, err
		}
		return Response{Packs: []storage.ContextPack{pack}, TotalConfidence: pack.Confidence}, nil
	}

	targetText := classification.Target
	if targetText == "" {
		targetText = req.Text
	}
	resolution := Resolve(ctx, e.Store, targetText)

	retriever := &Retriever{Store: e.Store, Vectors: e.Vectors, Embed: e.Embed}

	topK := req.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	var structural []Candidate
	var err error
	if classification.Intent == IntentStructural && resolution.Matched {
		structural, err = retriever.Structural(ctx, resolution.EntityID, classification.Direction, e.MaxDepth, classification.Exhaustive)
		if err != nil {
			return Response{}, err
		}
		if len(structural) > 0 {
			e.Metrics.RecordRetrievalHit("structural")
		}
	}

	merged, err := retriever.Semantic(ctx, req.Text, topK, e.EmbedModelID, structural)
	if err != nil {
		return Response{}, err
	}
	if len(merged) > len(structural) {
		e.Metrics.RecordRetrievalHit("semantic")
	}

	confidence := make(map[string]float64, len(merged))
	for _, c := range merged {
		if rec, ok, err := e.Store.GetUniversalKnowledge(ctx, c.EntityID); err == nil && ok {
			confidence[c.EntityID] = rec.Confidence
		}
	}

	perspective := req.Perspective
	if perspective == "" {
		perspective = PerspectiveUnderstanding
	}

	ranked := RankCandidates(merged, perspective, req.Text, confidence)
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	packs := make([]storage.ContextPack, 0, len(ranked))
	for _, c := range ranked {
		pack, err := packForCandidate(ctx, e.Store, c, confidence[c.EntityID])
		if err != nil {
			continue
		}
		packs = append(packs, pack)
	}

	synthesis, _ := Synthesize(ctx, e.Chat, e.ModelID, req.Text, packs)

	for _, p := range packs {
		_ = e.Store.IncrementPackAccess(ctx, p.PackID)
	}

	return Response{
		Packs:           packs,
		Synthesis:       synthesis,
		TotalConfidence: totalConfidence(packs),
		Alternatives:    resolution.Alternatives,
	}, nil
}

// packForCandidate returns the persisted pack for an entity if one
// exists, otherwise synthesizes and persists a minimal one from its
// knowledge record or raw function/module data.
func packForCandidate(ctx context.Context, store storage.Store, c Candidate, fallbackConfidence float64) (storage.ContextPack, error) {
	if existing, err := store.GetContextPacksByTarget(ctx, c.EntityID); err == nil && len(existing) > 0 {
		best := existing[0]
		for _, p := range existing[1:] {
			if p.Confidence > best.Confidence {
				best = p
			}
		}
		return best, nil
	}

	summary := ""
	var keyFacts []string
	conf := fallbackConfidence

	if rec, ok, err := store.GetUniversalKnowledge(ctx, c.EntityID); err == nil && ok {
		summary = rec.PurposeSummary
		keyFacts = append(keyFacts, fmt.Sprintf("risk=%.2f maintainability=%.2f coverage=%.2f", rec.RiskScore, rec.MaintainabilityIndex, rec.TestCoverage))
		if conf == 0 {
			conf = rec.Confidence
		}
	}

	if summary == "" {
		switch c.EntityType {
		case storage.EntityFunction:
			if fns, err := store.GetFunctions(ctx, []string{c.EntityID}); err == nil && len(fns) == 1 {
				summary = fns[0].Signature
				if conf == 0 {
					conf = fns[0].Confidence
				}
			}
		case storage.EntityModule:
			if mods, err := store.GetModules(ctx, []string{c.EntityID}); err == nil && len(mods) == 1 {
				summary = mods[0].Path
				if conf == 0 {
					conf = mods[0].Confidence
				}
			}
		}
	}

	pack := storage.ContextPack{
		PackID:     "pack-" + c.EntityID,
		PackType:   string(c.EntityType),
		TargetID:   c.EntityID,
		Summary:    summary,
		KeyFacts:   keyFacts,
		Confidence: conf,
	}
	if err := store.UpsertContextPack(ctx, pack); err != nil {
		return storage.ContextPack{}, err
	}
	return pack, nil
}

func totalConfidence(packs []storage.ContextPack) float64 {
	if len(packs) == 0 {
		return 0
	}
	var sum float64
	for _, p := range packs {
		sum += p.Confidence
	}
	return sum / float64(len(packs))
}
