// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/librarian/internal/provider"
	"github.com/AleutianAI/librarian/internal/storage"
)

func TestClassifyStructuralDependents(t *testing.T) {
	c := Classify("What calls `ParseContract`?")
	assert.Equal(t, IntentStructural, c.Intent)
	assert.Equal(t, DirectionDependents, c.Direction)
	assert.Equal(t, "ParseContract", c.Target)
}

func TestClassifyStructuralDependencies(t *testing.T) {
	c := Classify("What does `Generate` depend on?")
	assert.Equal(t, IntentStructural, c.Intent)
	assert.Equal(t, DirectionDependencies, c.Direction)
}

func TestClassifyArchitectural(t *testing.T) {
	c := Classify("Give me an architecture overview of this repo")
	assert.Equal(t, IntentArchitectural, c.Intent)
}

func TestClassifyTaskPlanning(t *testing.T) {
	c := Classify("How do I add a new defeater?")
	assert.Equal(t, IntentTaskPlanning, c.Intent)
}

func TestClassifyGeneralFallback(t *testing.T) {
	c := Classify("tell me about this codebase")
	assert.Equal(t, IntentGeneral, c.Intent)
}

func TestClassifyExhaustiveFlag(t *testing.T) {
	c := Classify("find every caller of `Run`, transitive included")
	assert.True(t, c.Exhaustive)
}

func newResolveStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := storage.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	fn := storage.Function{ID: "fn-1", Name: "ParseContract", FilePath: "internal/knowledge/contract.go", Signature: "func ParseContract(s string) ContractSection"}
	require.NoError(t, store.UpsertFunction(context.Background(), fn))

	mod := storage.Module{ID: storage.ID.Module("internal/query/engine.go"), Path: "internal/query/engine.go"}
	require.NoError(t, store.UpsertModule(context.Background(), mod))

	return store
}

func TestResolveByFunctionName(t *testing.T) {
	store := newResolveStore(t)
	r := Resolve(context.Background(), store, "ParseContract")
	assert.True(t, r.Matched)
	assert.Equal(t, "function_name", r.MatchedBy)
	assert.Equal(t, storage.EntityFunction, r.EntityType)
}

func TestResolveByExactModulePath(t *testing.T) {
	store := newResolveStore(t)
	r := Resolve(context.Background(), store, "internal/query/engine.go")
	assert.True(t, r.Matched)
	assert.Equal(t, "module_path", r.MatchedBy)
}

func TestResolveByNameWithoutExtension(t *testing.T) {
	store := newResolveStore(t)
	r := Resolve(context.Background(), store, "internal/query/engine")
	assert.True(t, r.Matched)
	assert.Equal(t, "name_without_ext", r.MatchedBy)
}

func TestResolveFallsBackToRawPath(t *testing.T) {
	store := newResolveStore(t)
	r := Resolve(context.Background(), store, "no/such/path.go")
	assert.False(t, r.Matched)
	assert.Equal(t, "raw_path", r.MatchedBy)
}

func TestScoreTestingPerspectiveFavorsTestSignal(t *testing.T) {
	c := Candidate{EntityID: "e1", EntityType: storage.EntityFunction, Signals: Signals{Test: 1.0}}
	testingScore := Score(c, PerspectiveTesting, "coverage", 0.8)
	debuggingScore := Score(c, PerspectiveDebugging, "coverage", 0.8)
	assert.Greater(t, testingScore, debuggingScore)
}

func TestScoreSecurityPerspectiveFavorsRiskSignal(t *testing.T) {
	c := Candidate{EntityID: "e1", EntityType: storage.EntityFunction, Signals: Signals{Risk: 1.0}}
	securityScore := Score(c, PerspectiveSecurity, "auth bypass", 0.8)
	testingScore := Score(c, PerspectiveTesting, "auth bypass", 0.8)
	assert.Greater(t, securityScore, testingScore)
}

func TestScoreClampedToUnitInterval(t *testing.T) {
	c := Candidate{EntityID: "e1", EntityType: storage.EntityFunction, Signals: Signals{
		Semantic: 1, Keyword: 1, Structural: 1, Dependency: 1, History: 1,
		Recency: 1, Risk: 1, Test: 1, Domain: 1, Ownership: 1,
	}}
	score := Score(c, PerspectiveSecurity, "auth crypto inject", 1.0)
	assert.LessOrEqual(t, score, 1.0)
	assert.GreaterOrEqual(t, score, 0.0)
}

func TestRankCandidatesOrdersDescendingByScore(t *testing.T) {
	candidates := []Candidate{
		{EntityID: "low", Signals: Signals{Test: 0.1}},
		{EntityID: "high", Signals: Signals{Test: 0.9}},
	}
	ranked := RankCandidates(candidates, PerspectiveTesting, "test coverage", map[string]float64{})
	require.Len(t, ranked, 2)
	assert.Equal(t, "high", ranked[0].EntityID)
}

func TestSynthesizeFiltersUnknownCitations(t *testing.T) {
	mock := &provider.MockProvider{
		ChatFunc: func(req provider.ChatRequest) (provider.ChatResponse, error) {
			return provider.ChatResponse{Content: "It adds two numbers. [cite:pack-a] Also see [cite:pack-ghost]."}, nil
		},
	}
	packs := []storage.ContextPack{{PackID: "pack-a"}}
	synthesis, err := Synthesize(context.Background(), mock, "gpt", "what does Add do?", packs)
	require.NoError(t, err)
	require.NotNil(t, synthesis)
	require.Len(t, synthesis.Citations, 1)
	assert.Equal(t, "pack-a", synthesis.Citations[0].PackID)
}

func TestSynthesizeNilChatReturnsNil(t *testing.T) {
	synthesis, err := Synthesize(context.Background(), nil, "gpt", "anything", []storage.ContextPack{{PackID: "pack-a"}})
	require.NoError(t, err)
	assert.Nil(t, synthesis)
}

func TestSynthesizeProviderUnavailableDegradesGracefully(t *testing.T) {
	mock := &provider.MockProvider{Unavailable: true}
	synthesis, err := Synthesize(context.Background(), mock, "gpt", "anything", []storage.ContextPack{{PackID: "pack-a"}})
	assert.Error(t, err)
	assert.Nil(t, synthesis)
}

func TestArchitectureOverviewConfidenceCap(t *testing.T) {
	store, err := storage.OpenInMemory()
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	modA := storage.Module{ID: storage.ID.Module("cmd/librarian/main.go"), Path: "cmd/librarian/main.go"}
	modB := storage.Module{ID: storage.ID.Module("internal/storage/badger.go"), Path: "internal/storage/badger.go"}
	require.NoError(t, store.UpsertModule(ctx, modA))
	require.NoError(t, store.UpsertModule(ctx, modB))
	require.NoError(t, store.UpsertGraphEdge(ctx, storage.GraphEdge{
		FromID: modA.ID, FromType: storage.EntityModule,
		ToID: modB.ID, ToType: storage.EntityModule,
		EdgeType: storage.EdgeImports, SourceFile: modA.Path,
	}))

	pack, _, err := ArchitectureOverview(ctx, store)
	require.NoError(t, err)
	assert.LessOrEqual(t, pack.Confidence, 0.9)
	assert.Contains(t, pack.Summary, "layers recognized")
}

func TestEngineQueryArchitecturalIntentSkipsRetrieval(t *testing.T) {
	store, err := storage.OpenInMemory()
	require.NoError(t, err)
	defer store.Close()

	engine := &Engine{Store: store}
	resp, err := engine.Query(context.Background(), Request{Text: "show me the architecture overview"})
	require.NoError(t, err)
	require.Len(t, resp.Packs, 1)
	assert.Equal(t, "architecture-overview", resp.Packs[0].PackID)
}
