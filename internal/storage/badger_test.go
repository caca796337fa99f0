// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestUpsertContextPackRejectsAccessCountInvariant(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.UpsertContextPack(ctx, ContextPack{
		PackID:       "pack-1",
		TargetID:     "fn-1",
		Confidence:   0.5,
		AccessCount:  1,
		SuccessCount: 1,
		FailureCount: 1,
	})
	require.Error(t, err)

	packs, err := store.GetContextPacks(ctx, []string{"pack-1"})
	require.NoError(t, err)
	assert.Empty(t, packs, "a rejected upsert must not leave a partial record behind")
}

func TestUpsertContextPackRejectsConfidenceOutOfRange(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.UpsertContextPack(ctx, ContextPack{PackID: "pack-2", TargetID: "fn-1", Confidence: 1.5})
	require.Error(t, err)

	err = store.UpsertContextPack(ctx, ContextPack{PackID: "pack-2", TargetID: "fn-1", Confidence: -0.1})
	require.Error(t, err)
}

func TestUpsertContextPackAcceptsValidInvariants(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	pack := ContextPack{
		PackID:       "pack-3",
		TargetID:     "fn-1",
		Confidence:   0.9,
		AccessCount:  3,
		SuccessCount: 2,
		FailureCount: 1,
	}
	require.NoError(t, store.UpsertContextPack(ctx, pack))

	got, err := store.GetContextPacks(ctx, []string{"pack-3"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, pack, got[0])

	byTarget, err := store.GetContextPacksByTarget(ctx, "fn-1")
	require.NoError(t, err)
	require.Len(t, byTarget, 1)
	assert.Equal(t, "pack-3", byTarget[0].PackID)
}

func TestReplaceFileEdgesSwapsAtomically(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	initial := []GraphEdge{
		{FromID: "a", ToID: "b", EdgeType: EdgeCalls, SourceFile: "a.go"},
		{FromID: "a", ToID: "c", EdgeType: EdgeCalls, SourceFile: "a.go"},
	}
	require.NoError(t, store.ReplaceFileEdges(ctx, "a.go", initial))

	edges, err := store.GetGraphEdges(ctx, EdgeFilter{SourceFiles: []string{"a.go"}})
	require.NoError(t, err)
	assert.Len(t, edges, 2)

	replacement := []GraphEdge{
		{FromID: "a", ToID: "d", EdgeType: EdgeCalls, SourceFile: "a.go"},
	}
	require.NoError(t, store.ReplaceFileEdges(ctx, "a.go", replacement))

	edges, err = store.GetGraphEdges(ctx, EdgeFilter{SourceFiles: []string{"a.go"}})
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "d", edges[0].ToID)
}

func TestReplaceFileEdgesRejectsMismatchedSourceFile(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.ReplaceFileEdges(context.Background(), "a.go", []GraphEdge{
		{FromID: "a", ToID: "b", EdgeType: EdgeCalls, SourceFile: "b.go"},
	})
	require.Error(t, err)
}

func TestReplaceFileEdgesWithinTxLeavesOtherFilesUntouched(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.ReplaceFileEdges(ctx, "a.go", []GraphEdge{
		{FromID: "a", ToID: "b", EdgeType: EdgeCalls, SourceFile: "a.go"},
	}))
	require.NoError(t, store.ReplaceFileEdges(ctx, "b.go", []GraphEdge{
		{FromID: "b", ToID: "c", EdgeType: EdgeCalls, SourceFile: "b.go"},
	}))

	err := store.WithTx(ctx, func(ctx context.Context, tx Store) error {
		return tx.ReplaceFileEdges(ctx, "a.go", []GraphEdge{
			{FromID: "a", ToID: "z", EdgeType: EdgeCalls, SourceFile: "a.go"},
		})
	})
	require.NoError(t, err)

	edgesA, err := store.GetGraphEdges(ctx, EdgeFilter{SourceFiles: []string{"a.go"}})
	require.NoError(t, err)
	require.Len(t, edgesA, 1)
	assert.Equal(t, "z", edgesA[0].ToID)

	edgesB, err := store.GetGraphEdges(ctx, EdgeFilter{SourceFiles: []string{"b.go"}})
	require.NoError(t, err)
	require.Len(t, edgesB, 1)
	assert.Equal(t, "c", edgesB[0].ToID)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sentinel := assert.AnError
	err := store.WithTx(ctx, func(ctx context.Context, tx Store) error {
		if err := tx.UpsertFile(ctx, File{Path: "rolled-back.go", Hash: "h1"}); err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	files, err := store.GetFiles(ctx, []string{"rolled-back.go"})
	require.NoError(t, err)
	assert.Empty(t, files, "a transaction that returns an error must not be committed")
}

func TestDeleteContextPackCascadesFeedback(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertContextPack(ctx, ContextPack{PackID: "pack-4", TargetID: "fn-1", Confidence: 0.7}))
	require.NoError(t, store.UpsertFeedback(ctx, FeedbackRecord{QueryID: "q1", PackID: "pack-4", Outcome: OutcomeSuccess, Delta: 0.1}))
	require.NoError(t, store.UpsertFeedback(ctx, FeedbackRecord{QueryID: "q2", PackID: "pack-4", Outcome: OutcomeFailure, Delta: -0.1}))

	feedback, err := store.GetFeedback(ctx, "pack-4")
	require.NoError(t, err)
	require.Len(t, feedback, 2)

	require.NoError(t, store.DeleteContextPack(ctx, "pack-4"))

	packs, err := store.GetContextPacks(ctx, []string{"pack-4"})
	require.NoError(t, err)
	assert.Empty(t, packs)

	feedback, err = store.GetFeedback(ctx, "pack-4")
	require.NoError(t, err)
	assert.Empty(t, feedback, "deleting a pack must cascade its feedback records")
}

func TestIncrementPackAccessRequiresExistingPack(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.IncrementPackAccess(ctx, "missing")
	require.Error(t, err)

	require.NoError(t, store.UpsertContextPack(ctx, ContextPack{PackID: "pack-5", TargetID: "fn-1", Confidence: 0.5}))
	require.NoError(t, store.IncrementPackAccess(ctx, "pack-5"))

	packs, err := store.GetContextPacks(ctx, []string{"pack-5"})
	require.NoError(t, err)
	require.Len(t, packs, 1)
	assert.EqualValues(t, 1, packs[0].AccessCount)
}

func TestOpenWithPathPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := OpenWithPath(dir)
	require.NoError(t, err)
	require.NoError(t, store.UpsertFile(context.Background(), File{Path: "persist.go", Hash: "abc"}))
	require.NoError(t, store.Close())

	reopened, err := OpenWithPath(dir)
	require.NoError(t, err)
	defer reopened.Close()

	files, err := reopened.GetFiles(context.Background(), []string{"persist.go"})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "abc", files[0].Hash)
}
