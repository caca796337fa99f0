// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package feedback implements bounded confidence deltas from outcome and
// relevance signals, read-time staleness decay, and the session protocol
// for multi-turn context assembly.
package feedback

import (
	"context"
	"math"
	"time"

	"github.com/AleutianAI/librarian/internal/storage"
)

// Outcome-driven confidence deltas.
const (
	deltaSuccess = 0.05
	deltaPartial = 0.0
	deltaFailure = -0.10

	deltaRelevant    = 0.03
	deltaNotRelevant = -0.05
)

// OutcomeDelta exposes the outcome->delta mapping for callers (e.g. the
// librarian facade) that need to report the delta applied without
// re-reading the pack.
func OutcomeDelta(outcome storage.Outcome) float64 {
	return outcomeDelta(outcome)
}

func outcomeDelta(outcome storage.Outcome) float64 {
	switch outcome {
	case storage.OutcomeSuccess:
		return deltaSuccess
	case storage.OutcomeFailure:
		return deltaFailure
	case storage.OutcomePartial:
		return deltaPartial
	default:
		return 0
	}
}

// RelevanceDelta maps a per-pack relevance rating to its confidence delta.
func RelevanceDelta(relevant bool) float64 {
	if relevant {
		return deltaRelevant
	}
	return deltaNotRelevant
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ApplyOutcome records one outcome against a pack: it clamps the
// resulting confidence to [0,1], bumps the matching counter,
// sets lastOutcome, and writes a FeedbackRecord — all within a
// single transaction per (queryID, packID).
func ApplyOutcome(ctx context.Context, store storage.Store, queryID, packID string, outcome storage.Outcome, agentID string) error {
	return store.WithTx(ctx, func(ctx context.Context, tx storage.Store) error {
		packs, err := tx.GetContextPacks(ctx, []string{packID})
		if err != nil {
			return err
		}
		if len(packs) != 1 {
			return nil
		}
		pack := packs[0]

		pack.Confidence = clamp01(pack.Confidence + outcomeDelta(outcome))
		pack.LastOutcome = outcome
		switch outcome {
		case storage.OutcomeSuccess:
			pack.SuccessCount++
		case storage.OutcomeFailure:
			pack.FailureCount++
		}
		if err := tx.UpsertContextPack(ctx, pack); err != nil {
			return err
		}

		return tx.UpsertFeedback(ctx, storage.FeedbackRecord{
			QueryID:   queryID,
			PackID:    packID,
			Outcome:   outcome,
			Delta:     outcomeDelta(outcome),
			Timestamp: nowFunc(),
			AgentID:   agentID,
		})
	})
}

// ApplyRelevance applies a per-pack relevance rating the same way
// ApplyOutcome applies an outcome, reusing OutcomeUnknown as the stored
// outcome tag since relevance isn't one of the four outcome states.
func ApplyRelevance(ctx context.Context, store storage.Store, queryID, packID string, relevant bool, agentID string) error {
	return store.WithTx(ctx, func(ctx context.Context, tx storage.Store) error {
		packs, err := tx.GetContextPacks(ctx, []string{packID})
		if err != nil {
			return err
		}
		if len(packs) != 1 {
			return nil
		}
		pack := packs[0]

		delta := RelevanceDelta(relevant)
		pack.Confidence = clamp01(pack.Confidence + delta)
		if err := tx.UpsertContextPack(ctx, pack); err != nil {
			return err
		}

		return tx.UpsertFeedback(ctx, storage.FeedbackRecord{
			QueryID:   queryID,
			PackID:    packID,
			Outcome:   storage.OutcomeUnknown,
			Delta:     delta,
			Timestamp: nowFunc(),
			AgentID:   agentID,
		})
	})
}

// nowFunc is a seam for tests; production always uses time.Now.
var nowFunc = time.Now

// StalenessDecay maps age to a monotonically non-increasing multiplier:
// 0d -> 1.0, 30d -> ~0.9, 180d -> ~0.6, asymptotically -> 0.5. Applied at
// read time only, never persisted.
func StalenessDecay(age time.Duration) float64 {
	days := age.Hours() / 24
	if days <= 0 {
		return 1.0
	}
	// Exponential decay toward the 0.5 floor; the -days/90 time constant
	// was picked to land close to the three named anchor points.
	decay := 0.5 + 0.5*math.Exp(-days/90)
	return clamp01(decay)
}

// DecayedConfidence applies StalenessDecay to a pack's stored confidence
// given when it was last indexed.
func DecayedConfidence(confidence float64, lastIndexedAt time.Time, now time.Time) float64 {
	return clamp01(confidence * StalenessDecay(now.Sub(lastIndexedAt)))
}
