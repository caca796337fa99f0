// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package governor

import (
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrategyForHealthThresholds(t *testing.T) {
	cases := []struct {
		health float64
		want   Strategy
	}{
		{0.95, StrategyProceed},
		{0.71, StrategyProceed},
		{0.7, StrategyUseCheaperModel},
		{0.6, StrategyUseCheaperModel},
		{0.5, StrategyBatchAggressive},
		{0.4, StrategyBatchAggressive},
		{0.3, StrategyPrioritize},
		{0.2, StrategyPrioritize},
		{0.1, StrategyUseCache},
		{0.05, StrategyUseCache},
		{0, StrategyDefer},
		{-0.4, StrategyDefer},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, strategyForHealth(c.health), "health=%v", c.health)
	}
}

func TestRecordTokensReducesHealthMonotonically(t *testing.T) {
	g := New(Limits{TokensPerRun: 1000})
	last := g.Health()
	for i := 0; i < 10; i++ {
		_, err := g.RecordTokens("a.go", "semantics", 50)
		require.NoError(t, err)
		h := g.Health()
		assert.LessOrEqual(t, h, last, "health must never increase as usage grows")
		last = h
	}
}

func TestRecordTokensHardThrowBelowNegativePointFive(t *testing.T) {
	g := New(Limits{TokensPerRun: 100})
	_, err := g.RecordTokens("a.go", "semantics", 100) // exactly at limit: health = 0
	require.NoError(t, err)

	strategy, err := g.RecordTokens("a.go", "semantics", 65) // 165/100 util -> health = -0.65
	require.Error(t, err)
	assert.Equal(t, StrategyDefer, strategy)
}

func TestUnlimitedZeroLimitsNeverDegradeHealth(t *testing.T) {
	g := New(Limits{}) // all zero = unlimited
	for i := 0; i < 5; i++ {
		_, err := g.RecordTokens("a.go", "identity", 1_000_000)
		require.NoError(t, err)
	}
	assert.Equal(t, 1.0, g.Health())
	assert.Equal(t, StrategyProceed, g.Strategy())
}

func TestTightestConstraintNamesTheWorstLimit(t *testing.T) {
	g := New(Limits{TokensPerFile: 100, TokensPerRun: 100000})
	_, err := g.RecordTokens("hot.go", "semantics", 90)
	require.NoError(t, err)
	assert.Contains(t, g.TightestConstraint(), "tokens_per_file")
}

func TestTightestConstraintNoneWhenUnlimited(t *testing.T) {
	g := New(Limits{})
	assert.Equal(t, "none", g.TightestConstraint())
}

func TestGovernorConcurrentAccessIsRaceFree(t *testing.T) {
	g := New(Limits{TokensPerRun: 1_000_000})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, _ = g.RecordTokens("f.go", "semantics", int64(n))
			_, _ = g.RecordFile("semantics")
			_, _ = g.RecordRetry()
		}(i)
	}
	wg.Wait()
	snap := g.Snapshot()
	assert.EqualValues(t, 50, snap.Retries)
}

func TestBucketProjectSize(t *testing.T) {
	assert.Equal(t, SizeSmall, BucketProjectSize(10))
	assert.Equal(t, SizeMedium, BucketProjectSize(50))
	assert.Equal(t, SizeLarge, BucketProjectSize(200))
	assert.Equal(t, SizeMassive, BucketProjectSize(5000))
}

func TestDetectConcurrencyClampedToSixteen(t *testing.T) {
	got := DetectConcurrency(64, 256<<30, 1.0, 5000)
	assert.LessOrEqual(t, got, 16)
	assert.GreaterOrEqual(t, got, 1)
}

func TestDetectConcurrencyNeverBelowOne(t *testing.T) {
	got := DetectConcurrency(1, 1<<20, 50.0, 10)
	assert.GreaterOrEqual(t, got, 1)
}

func TestDetectConcurrencyHighLoadHalves(t *testing.T) {
	quiet := DetectConcurrency(8, 64<<30, 0.5, 500)
	busy := DetectConcurrency(8, 64<<30, 20.0, 500)
	assert.Less(t, busy, quiet)
}

func TestWriteReportProducesReadableJSON(t *testing.T) {
	dir := t.TempDir()
	g := New(Limits{TokensPerRun: 500})
	_, err := g.RecordTokens("a.go", "identity", 50)
	require.NoError(t, err)

	report := g.Report("example/repo", "generate", "completed", map[string]string{"go_version": "1.25"})
	path, err := WriteReport(dir, report)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind": "BudgetReport"`)
	assert.Contains(t, string(data), `"schema_version": "v1"`)
}
