// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package feedback

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/librarian/internal/errs"
	"github.com/AleutianAI/librarian/internal/storage"
)

func newFeedbackStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := storage.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.UpsertContextPack(context.Background(), storage.ContextPack{PackID: "p1", Confidence: 0.5, AccessCount: 1}))
	return store
}

func TestApplyOutcomeSuccessIncreasesConfidence(t *testing.T) {
	store := newFeedbackStore(t)
	require.NoError(t, ApplyOutcome(context.Background(), store, "q1", "p1", storage.OutcomeSuccess, "agent1"))

	packs, err := store.GetContextPacks(context.Background(), []string{"p1"})
	require.NoError(t, err)
	require.Len(t, packs, 1)
	assert.InDelta(t, 0.55, packs[0].Confidence, 1e-9)
	assert.EqualValues(t, 1, packs[0].SuccessCount)
	assert.Equal(t, storage.OutcomeSuccess, packs[0].LastOutcome)
}

func TestApplyOutcomeFailureClampsAtZero(t *testing.T) {
	store := newFeedbackStore(t)
	require.NoError(t, store.UpsertContextPack(context.Background(), storage.ContextPack{PackID: "p1", Confidence: 0.05, AccessCount: 1}))
	require.NoError(t, ApplyOutcome(context.Background(), store, "q1", "p1", storage.OutcomeFailure, ""))

	packs, err := store.GetContextPacks(context.Background(), []string{"p1"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, packs[0].Confidence)
	assert.EqualValues(t, 1, packs[0].FailureCount)
}

func TestApplyRelevanceTrueAndFalse(t *testing.T) {
	store := newFeedbackStore(t)
	require.NoError(t, ApplyRelevance(context.Background(), store, "q1", "p1", true, ""))
	packs, err := store.GetContextPacks(context.Background(), []string{"p1"})
	require.NoError(t, err)
	assert.InDelta(t, 0.53, packs[0].Confidence, 1e-9)

	require.NoError(t, ApplyRelevance(context.Background(), store, "q1", "p1", false, ""))
	packs, err = store.GetContextPacks(context.Background(), []string{"p1"})
	require.NoError(t, err)
	assert.InDelta(t, 0.48, packs[0].Confidence, 1e-9)
}

func TestApplyOutcomeWritesFeedbackRecord(t *testing.T) {
	store := newFeedbackStore(t)
	require.NoError(t, ApplyOutcome(context.Background(), store, "q1", "p1", storage.OutcomePartial, "agent1"))
	records, err := store.GetFeedback(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "q1", records[0].QueryID)
	assert.Equal(t, 0.0, records[0].Delta)
}

func TestStalenessDecayMonotonicallyNonIncreasing(t *testing.T) {
	fresh := StalenessDecay(0)
	d30 := StalenessDecay(30 * 24 * time.Hour)
	d180 := StalenessDecay(180 * 24 * time.Hour)

	assert.Equal(t, 1.0, fresh)
	assert.Greater(t, fresh, d30)
	assert.Greater(t, d30, d180)
	assert.InDelta(t, 0.9, d30, 0.05)
	assert.InDelta(t, 0.6, d180, 0.05)
	assert.GreaterOrEqual(t, d180, 0.5)
}

func TestDecayedConfidenceNeverExceedsStored(t *testing.T) {
	now := time.Now()
	decayed := DecayedConfidence(0.8, now.Add(-60*24*time.Hour), now)
	assert.Less(t, decayed, 0.8)
	assert.Greater(t, decayed, 0.0)
}

func TestSessionStartFollowUpDrillDownSummarize(t *testing.T) {
	m := NewManager(0, 0, 0)
	s, err := m.Start("what calls Add?")
	require.NoError(t, err)
	require.NotEmpty(t, s.ID)

	now := time.Now()
	require.NoError(t, s.FollowUp("and what about Subtract?", "it also calls Add", []string{"pack-1"}, now))
	require.NoError(t, s.DrillDown("fn-add", []string{"pack-2"}, now))
	require.Contains(t, s.ExploredEntities, "fn-add")

	turns, err := s.Summarize(now)
	require.NoError(t, err)
	assert.Len(t, turns, 4) // start, follow_up, drill_down, summarize
}

func TestSessionFollowUpRejectsEmptyQuestion(t *testing.T) {
	m := NewManager(0, 0, 0)
	s, err := m.Start("q")
	require.NoError(t, err)
	err = s.FollowUp("", "", nil, time.Now())
	assert.True(t, errs.Is(err, errs.KindContextSession))
}

func TestSessionEnforcesPackCap(t *testing.T) {
	m := NewManager(1, 2, time.Hour)
	s, err := m.Start("q")
	require.NoError(t, err)
	require.NoError(t, s.FollowUp("first", "", []string{"a", "b"}, time.Now()))
	err = s.FollowUp("second", "", []string{"c"}, time.Now())
	assert.True(t, errs.Is(err, errs.KindContextSession))
}

func TestSessionEnforcesTTL(t *testing.T) {
	m := NewManager(1, 10, time.Hour)
	s, err := m.Start("q")
	require.NoError(t, err)
	err = s.FollowUp("too late", "", nil, time.Now().Add(2*time.Hour))
	assert.True(t, errs.Is(err, errs.KindContextSession))
}

func TestManagerEnforcesMaxConcurrentSessions(t *testing.T) {
	m := NewManager(1, 10, time.Hour)
	_, err := m.Start("first")
	require.NoError(t, err)
	_, err = m.Start("second")
	assert.True(t, errs.Is(err, errs.KindContextSession))
}

func TestManagerCloseFreesSlot(t *testing.T) {
	m := NewManager(1, 10, time.Hour)
	s, err := m.Start("first")
	require.NoError(t, err)
	m.Close(s.ID)
	_, err = m.Start("second")
	assert.NoError(t, err)
}
