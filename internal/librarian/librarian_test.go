// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package librarian

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/librarian/internal/query"
	"github.com/AleutianAI/librarian/internal/storage"
)

func newTestLibrarian(t *testing.T) *Librarian {
	t.Helper()
	store, err := storage.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return New(store, &query.Engine{Store: store})
}

func TestQueryReturnsTraceIDAndPacks(t *testing.T) {
	l := newTestLibrarian(t)
	result, err := l.Query(context.Background(), query.Request{Text: "show me the architecture overview"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.TraceID)
	require.Len(t, result.Packs, 1)
}

func TestSubmitFeedbackAppliesEachPackOnce(t *testing.T) {
	l := newTestLibrarian(t)
	ctx := context.Background()
	require.NoError(t, l.Store.UpsertContextPack(ctx, storage.ContextPack{PackID: "p1", Confidence: 0.5, AccessCount: 1}))
	require.NoError(t, l.Store.UpsertContextPack(ctx, storage.ContextPack{PackID: "p2", Confidence: 0.5, AccessCount: 1}))

	result, err := l.SubmitFeedback(ctx, FeedbackRequest{QueryID: "q1", PackIDs: []string{"p1", "p2"}, Outcome: storage.OutcomeSuccess})
	require.NoError(t, err)
	assert.Equal(t, 2, result.AdjustmentsApplied)
	for _, adj := range result.Adjustments {
		assert.InDelta(t, 0.05, adj.Delta, 1e-9)
	}
}

func TestPlanTaskClassifiesBugFix(t *testing.T) {
	l := newTestLibrarian(t)
	plan, err := l.PlanTask(context.Background(), "fix the crash when Add overflows", "")
	require.NoError(t, err)
	assert.Equal(t, ClassificationBugFix, plan.Classification)
	assert.Equal(t, ComplexityTrivial, plan.Complexity)
	assert.NotEmpty(t, plan.Steps)
}

func TestPlanTaskClassifiesRefactorWithRisk(t *testing.T) {
	l := newTestLibrarian(t)
	plan, err := l.PlanTask(context.Background(), "refactor the governor to simplify strategy selection", "")
	require.NoError(t, err)
	assert.Equal(t, ClassificationRefactor, plan.Classification)
	assert.NotEmpty(t, plan.Risks)
}

func TestPlanTaskFlagsStaleContextFiles(t *testing.T) {
	l := newTestLibrarian(t)
	ctx := context.Background()

	governorID := storage.ID.Module("internal/governor")
	consumerID := storage.ID.Module("internal/consumer")
	require.NoError(t, l.Store.UpsertModule(ctx, storage.Module{ID: governorID, Path: "internal/governor", Confidence: 0.9}))
	require.NoError(t, l.Store.UpsertModule(ctx, storage.Module{ID: consumerID, Path: "internal/consumer", Confidence: 0.9}))
	require.NoError(t, l.Store.ReplaceFileEdges(ctx, "internal/consumer/consumer.go", []storage.GraphEdge{
		{FromID: consumerID, FromType: storage.EntityModule, ToID: governorID, ToType: storage.EntityModule, EdgeType: storage.EdgeImports, SourceFile: "internal/consumer/consumer.go"},
	}))
	require.NoError(t, l.Store.UpsertContextPack(ctx, storage.ContextPack{
		PackID: "pack-consumer", TargetID: consumerID, Confidence: 0.9,
		RelatedFiles: []string{"internal/consumer/consumer.go"},
	}))
	require.NoError(t, l.Store.UpsertFile(ctx, storage.File{
		Path: "internal/consumer/consumer.go", Hash: "h1", Confidence: 0.9,
		IndexedAt: time.Now().Add(-400 * 24 * time.Hour),
	}))

	plan, err := l.PlanTask(ctx, "what depends on governor", "")
	require.NoError(t, err)
	require.NotEmpty(t, plan.FilesToModify)
	assert.NotEmpty(t, plan.PreflightChecks)
}
