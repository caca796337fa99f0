// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/librarian/internal/evidence"
	"github.com/AleutianAI/librarian/internal/governor"
	"github.com/AleutianAI/librarian/internal/provider"
	"github.com/AleutianAI/librarian/internal/storage"
)

func newTestGenerator(t *testing.T) (*Generator, storage.Store) {
	t.Helper()
	store, err := storage.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	mock := &provider.MockProvider{
		ChatFunc: func(req provider.ChatRequest) (provider.ChatResponse, error) {
			return provider.ChatResponse{
				Content: "SUMMARY: computes a thing\nTAGS: math, helper\nRISK: 0.2\nCONTROLS: input-validation\nADR_REFS: ADR-12",
				Tokens:  42,
			}, nil
		},
	}

	reg := evidence.New()
	reg.Register("hash_mismatch", evidence.HashMismatch)

	return &Generator{
		Store:     store,
		Chat:      mock,
		Embed:     mock,
		Governor:  governor.New(governor.Limits{}),
		Defeaters: reg,
		ModelID:   "gpt-4o",
	}, store
}

func sampleInput() Input {
	return Input{
		EntityID:      "fn-1",
		EntityType:    storage.EntityFunction,
		QualifiedName: "pkg.Add",
		FilePath:      "pkg/add.go",
		Signature:     "(a int, b int) (int)",
		SourceText:    "func Add(a, b int) int {\n\tif a < 0 {\n\t\treturn b\n\t}\n\treturn a + b\n}",
		DocComment:    "Add returns the sum of a and b. See ADR-12 for the overflow decision.",
	}
}

func TestGenerateProducesSuccessOutcome(t *testing.T) {
	g, _ := newTestGenerator(t)
	result, err := g.Generate(context.Background(), sampleInput())
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, result.Outcome)
	assert.Equal(t, "computes a thing", result.Record.PurposeSummary)
	assert.Contains(t, result.Record.Sections.Rationale.ADRRefs, "ADR-12")
}

func TestGenerateRespectsOverallConfidenceInvariant(t *testing.T) {
	g, _ := newTestGenerator(t)
	result, err := g.Generate(context.Background(), sampleInput())
	require.NoError(t, err)

	overall := result.Record.Sections.Meta.Overall
	for section, conf := range result.Record.Sections.Meta.BySection {
		assert.LessOrEqualf(t, overall, conf, "overall must not exceed section %q", section)
	}
}

func TestGenerateIdempotentReBootstrapSkipsUnchangedHash(t *testing.T) {
	g, _ := newTestGenerator(t)
	in := sampleInput()

	first, err := g.Generate(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, first.Outcome)

	second, err := g.Generate(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, second.Outcome)
	assert.Equal(t, first.Record.Hash, second.Record.Hash)
}

func TestGenerateChangedSourceRegenerates(t *testing.T) {
	g, _ := newTestGenerator(t)
	in := sampleInput()

	first, err := g.Generate(context.Background(), in)
	require.NoError(t, err)

	in.SourceText += "\n// changed"
	second, err := g.Generate(context.Background(), in)
	require.NoError(t, err)
	assert.NotEqual(t, first.Record.Hash, second.Record.Hash)
	assert.NotEqual(t, OutcomeSkipped, second.Outcome)
}

func TestGenerateProviderUnavailableYieldsFailure(t *testing.T) {
	g, _ := newTestGenerator(t)
	g.Chat = &provider.MockProvider{Unavailable: true}

	result, err := g.Generate(context.Background(), sampleInput())
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailure, result.Outcome) // all three LLM phases failed
	assert.NotEmpty(t, result.PhaseErrors)
}

func TestGenerateBudgetExhaustedDefersLLMCalls(t *testing.T) {
	g, _ := newTestGenerator(t)
	gov := governor.New(governor.Limits{TokensPerRun: 1})
	_, _ = gov.RecordTokens("x", "warmup", 100) // push health below zero
	g.Governor = gov

	result, err := g.Generate(context.Background(), sampleInput())
	require.NoError(t, err)
	assert.NotEmpty(t, result.PhaseErrors)
}
