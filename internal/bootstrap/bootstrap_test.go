// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/librarian/internal/config"
	"github.com/AleutianAI/librarian/internal/evidence"
	"github.com/AleutianAI/librarian/internal/governor"
	"github.com/AleutianAI/librarian/internal/knowledge"
	"github.com/AleutianAI/librarian/internal/parser"
	"github.com/AleutianAI/librarian/internal/provider"
	"github.com/AleutianAI/librarian/internal/storage"
)

const sampleSource = `package sample

// Add returns the sum of a and b.
func Add(a, b int) int {
	if a < 0 {
		return b
	}
	return a + b
}
`

func writeSampleRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "add.go"), []byte(sampleSource), 0o644))
	return dir
}

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	store, err := storage.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	mock := &provider.MockProvider{
		ChatFunc: func(req provider.ChatRequest) (provider.ChatResponse, error) {
			return provider.ChatResponse{Content: "SUMMARY: adds two numbers\nTAGS: math", Tokens: 5}, nil
		},
	}

	registry := parser.NewRegistry()
	registry.Register("go", parser.NewGoParser())

	gov := governor.New(governor.Limits{})
	reg := evidence.New()
	reg.Register("hash_mismatch", evidence.HashMismatch)

	gen := &knowledge.Generator{
		Store:     store,
		Chat:      mock,
		Embed:     mock,
		Governor:  gov,
		Defeaters: reg,
	}

	return &Orchestrator{
		Store:     store,
		Parsers:   registry,
		Provider:  mock,
		Generator: gen,
		Governor:  gov,
		Config:    config.Default(),
		SkipProbe: true,
	}
}

func TestWalkFindsGoFiles(t *testing.T) {
	dir := writeSampleRepo(t)
	entries, err := Walk(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "go", entries[0].Language)
	assert.NotEmpty(t, entries[0].Hash)
}

func TestChangedSkipsUnmodifiedFiles(t *testing.T) {
	dir := writeSampleRepo(t)
	entries, err := Walk(dir)
	require.NoError(t, err)

	existing := map[string]storage.File{entries[0].Path: {Path: entries[0].Path, Hash: entries[0].Hash}}
	assert.Empty(t, Changed(entries, existing))
	assert.Len(t, Changed(entries, map[string]storage.File{}), 1)
}

func TestOrchestratorRunIndexesAndGeneratesKnowledge(t *testing.T) {
	dir := writeSampleRepo(t)
	orch := newTestOrchestrator(t)

	report, err := orch.Run(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, report.FilesWalked)
	assert.Equal(t, 1, report.FilesChanged)
	assert.Equal(t, 1, report.FunctionsIndexed)
	assert.Equal(t, 1, report.ModulesIndexed)
	assert.Equal(t, 2, report.Embedded) // one function + one file-level module
	assert.Equal(t, 2, report.EntitiesPartial)

	funcs, err := orch.Store.GetFunctionsByName(context.Background(), "Add")
	require.NoError(t, err)
	require.Len(t, funcs, 1)
	assert.NotEmpty(t, funcs[0].Embedding)

	record, ok, err := orch.Store.GetUniversalKnowledge(context.Background(), funcs[0].ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "adds two numbers", record.PurposeSummary)
}

func TestOrchestratorRunIsIdempotentOnUnchangedFiles(t *testing.T) {
	dir := writeSampleRepo(t)
	orch := newTestOrchestrator(t)
	orch.Config.BootstrapMode = config.ModeIncremental

	_, err := orch.Run(context.Background(), dir)
	require.NoError(t, err)

	report, err := orch.Run(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 0, report.FilesChanged)
}

func TestProbeFailsFastOnUnavailableProvider(t *testing.T) {
	unavailable := &provider.MockProvider{Unavailable: true}
	err := Probe(context.Background(), unavailable)
	assert.Error(t, err)
}

func TestProbeSucceedsWithMockProvider(t *testing.T) {
	mock := &provider.MockProvider{}
	assert.NoError(t, Probe(context.Background(), mock))
}
