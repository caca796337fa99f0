// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package evidence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/librarian/internal/storage"
)

func TestComposeEmptyIsZero(t *testing.T) {
	assert.Equal(t, 0.0, Compose(nil))
}

func TestComposeAbsentCollapses(t *testing.T) {
	refs := []storage.EvidenceRef{
		{Confidence: storage.EvidenceVerified},
		{Confidence: storage.EvidenceAbsent},
		{Confidence: storage.EvidenceVerified},
	}
	assert.Equal(t, 0.0, Compose(refs))
}

func TestComposeMultipliesBandMedians(t *testing.T) {
	refs := []storage.EvidenceRef{
		{Confidence: storage.EvidenceVerified},
		{Confidence: storage.EvidenceInferred},
	}
	got := Compose(refs)
	assert.InDelta(t, 0.95*0.70, got, 1e-9)
	assert.LessOrEqual(t, got, 1.0)
	assert.GreaterOrEqual(t, got, 0.0)
}

func TestComposeNeverExceedsUnity(t *testing.T) {
	refs := []storage.EvidenceRef{
		{Confidence: storage.EvidenceVerified},
		{Confidence: storage.EvidenceVerified},
		{Confidence: storage.EvidenceVerified},
	}
	assert.LessOrEqual(t, Compose(refs), 1.0)
}

func TestOverallConfidenceIsMinOfSections(t *testing.T) {
	bySection := map[string]float64{
		"semantics": 0.9,
		"security":  0.4,
		"quality":   0.7,
	}
	assert.Equal(t, 0.4, OverallConfidence(bySection))
}

func TestOverallConfidenceEmptyIsZero(t *testing.T) {
	assert.Equal(t, 0.0, OverallConfidence(map[string]float64{}))
}

func TestApplyDefeaterPenaltyNoneActivated(t *testing.T) {
	defeaters := []storage.Defeater{{Name: "hash", Activated: false}}
	assert.Equal(t, 0.8, ApplyDefeaterPenalty(0.8, defeaters))
}

func TestApplyDefeaterPenaltyProportional(t *testing.T) {
	defeaters := []storage.Defeater{
		{Name: "hash", Activated: true},
		{Name: "dependency", Activated: false},
	}
	got := ApplyDefeaterPenalty(1.0, defeaters)
	assert.InDelta(t, 0.5, got, 1e-9)
}

func TestRegistryRunHashMismatchActivates(t *testing.T) {
	r := New()
	r.Register("hash_mismatch", HashMismatch)

	record := storage.UniversalKnowledgeRecord{Hash: "old"}
	results := r.Run(context.Background(), record, Context{CurrentHash: "new"}, DefaultTimeout)
	require.Len(t, results, 1)
	assert.True(t, results[0].Activated)
	assert.Equal(t, "hash_mismatch", results[0].Name)
}

func TestRegistryRunHashMatchDoesNotActivate(t *testing.T) {
	r := New()
	r.Register("hash_mismatch", HashMismatch)

	record := storage.UniversalKnowledgeRecord{Hash: "same"}
	results := r.Run(context.Background(), record, Context{CurrentHash: "same"}, DefaultTimeout)
	require.Len(t, results, 1)
	assert.False(t, results[0].Activated)
}

func TestRegistryRunSlowPredicateTimesOut(t *testing.T) {
	r := New()
	r.Register("slow", func(ctx context.Context, record storage.UniversalKnowledgeRecord, dctx Context) Result {
		select {
		case <-time.After(time.Second):
			return Result{Activated: false}
		case <-ctx.Done():
			return Result{Activated: false}
		}
	})

	results := r.Run(context.Background(), storage.UniversalKnowledgeRecord{}, Context{}, 10*time.Millisecond)
	require.Len(t, results, 1)
	assert.True(t, results[0].Activated)
	assert.Equal(t, "timeout", results[0].Reason)
}

func TestRegistryRunPanickingPredicateTreatedAsTimeout(t *testing.T) {
	r := New()
	r.Register("broken", func(ctx context.Context, record storage.UniversalKnowledgeRecord, dctx Context) Result {
		panic("malformed")
	})

	results := r.Run(context.Background(), storage.UniversalKnowledgeRecord{}, Context{}, DefaultTimeout)
	require.Len(t, results, 1)
	assert.True(t, results[0].Activated)
	assert.Equal(t, "timeout", results[0].Reason)
}
