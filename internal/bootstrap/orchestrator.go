// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/AleutianAI/librarian/internal/config"
	"github.com/AleutianAI/librarian/internal/errs"
	"github.com/AleutianAI/librarian/internal/governor"
	"github.com/AleutianAI/librarian/internal/knowledge"
	"github.com/AleutianAI/librarian/internal/logging"
	"github.com/AleutianAI/librarian/internal/parser"
	"github.com/AleutianAI/librarian/internal/provider"
	"github.com/AleutianAI/librarian/internal/storage"
)

// Orchestrator runs the six-step bootstrap pipeline.
type Orchestrator struct {
	Store     storage.Store
	Vectors   storage.VectorIndex
	Parsers   *parser.Registry
	Provider  provider.Provider
	Generator *knowledge.Generator
	Governor  *governor.Governor
	Config    config.Config
	Log       *logging.Logger

	// SkipProbe bypasses step 1's fail-fast behavior, for offline/dry runs.
	SkipProbe bool
}

// Report is what Run returns: per-step counts plus the governor's budget
// report.
type Report struct {
	FilesWalked      int
	FilesChanged     int
	FunctionsIndexed int
	ModulesIndexed   int
	EdgesReplaced    int
	Embedded         int
	EntitiesSuccess  int
	EntitiesPartial  int
	EntitiesFailed   int
	EntitiesSkipped  int
	Budget           governor.BudgetReport
}

// Run executes the full pipeline against workspaceRoot.
func (o *Orchestrator) Run(ctx context.Context, workspaceRoot string) (Report, error) {
	log := o.Log
	if log == nil {
		log = logging.Default()
	}

	// Step 1: provider probe.
	if !o.SkipProbe {
		if err := Probe(ctx, o.Provider); err != nil {
			return Report{}, fmt.Errorf("bootstrap: provider probe failed: %w", err)
		}
	}

	// Step 2: file enumeration.
	entries, err := Walk(workspaceRoot)
	if err != nil {
		return Report{}, fmt.Errorf("bootstrap: walk failed: %w", err)
	}
	byPath := make(map[string]FileEntry, len(entries))
	for _, e := range entries {
		byPath[e.Path] = e
	}

	existing := map[string]storage.File{}
	if o.Config.BootstrapMode == config.ModeIncremental {
		paths := make([]string, 0, len(entries))
		for _, e := range entries {
			paths = append(paths, e.Path)
		}
		if files, err := o.Store.GetFiles(ctx, paths); err == nil {
			for _, f := range files {
				existing[f.Path] = f
			}
		}
	}
	changed := Changed(entries, existing)

	report := Report{FilesWalked: len(entries), FilesChanged: len(changed)}

	// Step 3: parse & insert, one transaction per file.
	allFunctions := make([]storage.Function, 0)
	allModules := make([]storage.Module, 0)
	var mu sync.Mutex

	for _, e := range changed {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("bootstrap: canceled during parse+insert: %w", err)
		}
		p, ok := o.Parsers.Lookup(e.Language)
		if !ok {
			continue // no parser for this language: file is hashed but not indexed further
		}
		result, parseErr := p.Parse(ctx, e.Content, e.Path)
		if parseErr != nil {
			log.Warn("parse failed", "file", e.Path, "err", parseErr)
			continue
		}

		functions, modules, edges := toStorageEntities(e, result)
		err := o.Store.WithTx(ctx, func(ctx context.Context, tx storage.Store) error {
			if err := tx.UpsertFile(ctx, storage.File{Path: e.Path, Hash: e.Hash, Language: e.Language, IndexedAt: time.Now()}); err != nil {
				return err
			}
			for _, fn := range functions {
				if err := tx.UpsertFunction(ctx, fn); err != nil {
					return err
				}
			}
			for _, m := range modules {
				if err := tx.UpsertModule(ctx, m); err != nil {
					return err
				}
			}
			return tx.ReplaceFileEdges(ctx, e.Path, edges)
		})
		if err != nil {
			return report, errs.StorageError("parse_insert_tx", err)
		}

		mu.Lock()
		allFunctions = append(allFunctions, functions...)
		allModules = append(allModules, modules...)
		report.FunctionsIndexed += len(functions)
		report.ModulesIndexed += len(modules)
		report.EdgesReplaced += len(edges)
		mu.Unlock()
	}

	// Step 4: batch embed function/module identifiers.
	embedded, err := o.embedBatch(ctx, allFunctions, allModules)
	if err != nil {
		log.Warn("embedding step degraded", "err", err)
	}
	report.Embedded = embedded

	// Step 5: generate knowledge, fanned out over a bounded worker pool.
	workers := o.Config.WorkerCap
	if workers <= 0 {
		workers = governor.DetectConcurrency(8, 8<<30, 1.0, len(entries))
	}
	outcomes, confByFile, err := o.generateAll(ctx, workspaceRoot, allFunctions, allModules, byPath, workers)
	if err != nil {
		return report, err
	}
	for _, outcome := range outcomes {
		switch outcome {
		case knowledge.OutcomeSuccess:
			report.EntitiesSuccess++
		case knowledge.OutcomePartial:
			report.EntitiesPartial++
		case knowledge.OutcomeFailure:
			report.EntitiesFailed++
		case knowledge.OutcomeSkipped:
			report.EntitiesSkipped++
		}
	}

	// Step 5b: now that every entity in a changed file has a generated
	// confidence, stamp the file record with the real value instead of
	// the zero left by step 3's insert-only upsert.
	for _, e := range changed {
		confs, ok := confByFile[e.Path]
		if !ok {
			continue
		}
		var sum float64
		for _, c := range confs {
			sum += c
		}
		if err := o.Store.UpsertFile(ctx, storage.File{
			Path:       e.Path,
			Hash:       e.Hash,
			Language:   e.Language,
			IndexedAt:  time.Now(),
			Confidence: sum / float64(len(confs)),
		}); err != nil {
			log.Warn("file confidence stamp failed", "file", e.Path, "err", err)
		}
	}

	// Step 6: report.
	if o.Governor != nil {
		report.Budget = o.Governor.Report(workspaceRoot, "bootstrap", outcomeLabel(report), map[string]string{
			"bootstrap_mode": string(o.Config.BootstrapMode),
		})
	}
	return report, nil
}

func outcomeLabel(r Report) string {
	if r.EntitiesFailed > 0 && r.EntitiesSuccess == 0 && r.EntitiesPartial == 0 {
		return "failed"
	}
	if r.EntitiesPartial > 0 || r.EntitiesFailed > 0 {
		return "partial"
	}
	return "completed"
}

// toStorageEntities converts one file's ParseResult into durable records.
func toStorageEntities(e FileEntry, result *parser.ParseResult) ([]storage.Function, []storage.Module, []storage.GraphEdge) {
	lines := strings.Split(string(e.Content), "\n")

	functions := make([]storage.Function, 0, len(result.Functions))
	for _, fn := range result.Functions {
		source := sliceLines(lines, fn.StartLine, fn.EndLine)
		functions = append(functions, storage.Function{
			ID:        storage.ID.Function(e.Path, fn.Name, fn.StartLine),
			Name:      fn.Name,
			FilePath:  e.Path,
			Signature: fn.Signature,
			StartLine: fn.StartLine,
			EndLine:   fn.EndLine,
			Hash:      storage.HashContent(fn.Signature, source),
		})
	}

	modules := make([]storage.Module, 0, len(result.Modules))
	for _, m := range result.Modules {
		modules = append(modules, storage.Module{
			ID:           storage.ID.Module(m.Path),
			Path:         m.Path,
			Exports:      toSet(m.Exports),
			Dependencies: toSet(m.Dependencies),
		})
	}

	edges := make([]storage.GraphEdge, 0, len(result.Edges))
	for _, ed := range result.Edges {
		edges = append(edges, storage.GraphEdge{
			FromID:     storage.ID.Module(ed.FromName),
			FromType:   storage.EntityModule,
			ToID:       storage.ID.Module(ed.ToName),
			ToType:     storage.EntityModule,
			EdgeType:   storage.EdgeType(ed.EdgeType),
			SourceFile: e.Path,
			SourceLine: ed.SourceLine,
			Confidence: 1.0,
		})
	}

	return functions, modules, edges
}

func sliceLines(lines []string, start, end int) string {
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end || start > len(lines) {
		return ""
	}
	return strings.Join(lines[start-1:end], "\n")
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, i := range items {
		set[i] = struct{}{}
	}
	return set
}

// embedBatch embeds a text proxy (name + signature for a function, the
// path for a module) for every function and module, persists the vector in the vector index, and
// stamps the embedding onto the function record. This runs before
// knowledge generation, so it cannot depend on the LLM-generated purpose
// summary generation produces.
func (o *Orchestrator) embedBatch(ctx context.Context, functions []storage.Function, modules []storage.Module) (int, error) {
	if o.Provider == nil {
		return 0, errs.ProviderUnavailable("bootstrap.embed", nil)
	}

	texts := make([]string, 0, len(functions)+len(modules))
	for _, fn := range functions {
		texts = append(texts, fn.Name+" "+fn.Signature)
	}
	for _, m := range modules {
		texts = append(texts, m.Path)
	}
	if len(texts) == 0 {
		return 0, nil
	}

	resp, err := o.Provider.Embed(ctx, provider.EmbedRequest{ModelID: o.Config.EmbeddingModel, Texts: texts})
	if err != nil {
		return 0, err
	}
	if len(resp.Vectors) != len(texts) {
		return 0, fmt.Errorf("bootstrap: embedding count mismatch: got %d want %d", len(resp.Vectors), len(texts))
	}

	n := 0
	for i, fn := range functions {
		fn.Embedding = resp.Vectors[i]
		if err := o.Store.UpsertFunction(ctx, fn); err != nil {
			return n, err
		}
		if o.Vectors != nil {
			_ = o.Vectors.Upsert(ctx, fn.ID, storage.EntityFunction, fn.Embedding)
		}
		n++
	}
	for j, m := range modules {
		if o.Vectors != nil {
			_ = o.Vectors.Upsert(ctx, m.ID, storage.EntityModule, resp.Vectors[len(functions)+j])
		}
		n++
	}
	return n, nil
}

// generateAll fans out knowledge.Generator.Generate over a bounded worker
// pool sharing o.Governor's run-level counters. It also returns each
// generated entity's confidence keyed by its owning file, so the caller
// can stamp a real per-file confidence once generation completes.
func (o *Orchestrator) generateAll(ctx context.Context, repoRoot string, functions []storage.Function, modules []storage.Module, byPath map[string]FileEntry, workers int) ([]knowledge.Outcome, map[string][]float64, error) {
	if workers < 1 {
		workers = 1
	}
	sem := semaphore.NewWeighted(int64(workers))
	g, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	outcomes := make([]knowledge.Outcome, 0, len(functions)+len(modules))
	confByFile := make(map[string][]float64)

	submit := func(filePath string, in knowledge.Input) {
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			result, err := o.Generator.Generate(gctx, in)
			if err != nil {
				return err
			}
			mu.Lock()
			outcomes = append(outcomes, result.Outcome)
			if result.Outcome != knowledge.OutcomeFailure {
				confByFile[filePath] = append(confByFile[filePath], result.Record.Confidence)
			}
			mu.Unlock()
			return nil
		})
	}

	for _, fn := range functions {
		entry := byPath[fn.FilePath]
		submit(fn.FilePath, knowledge.Input{
			EntityID:       fn.ID,
			EntityType:     storage.EntityFunction,
			QualifiedName:  fn.FilePath + "." + fn.Name,
			FilePath:       fn.FilePath,
			RepoRoot:       repoRoot,
			Signature:      fn.Signature,
			SourceText:     sliceLines(strings.Split(string(entry.Content), "\n"), fn.StartLine, fn.EndLine),
			TestFileSource: testFileSourceFor(byPath, fn.FilePath),
		})
	}
	for _, m := range modules {
		entry := byPath[m.Path]
		exports := make([]string, 0, len(m.Exports))
		for e := range m.Exports {
			exports = append(exports, e)
		}
		deps := make([]string, 0, len(m.Dependencies))
		for d := range m.Dependencies {
			deps = append(deps, d)
		}
		submit(m.Path, knowledge.Input{
			EntityID:      m.ID,
			EntityType:    storage.EntityModule,
			QualifiedName: m.Path,
			FilePath:      m.Path,
			RepoRoot:      repoRoot,
			SourceText:    string(entry.Content),
			Exports:       exports,
			Dependencies:  deps,
		})
	}

	if err := g.Wait(); err != nil {
		return outcomes, confByFile, fmt.Errorf("bootstrap: knowledge generation failed: %w", err)
	}
	return outcomes, confByFile, nil
}

func testFileSourceFor(byPath map[string]FileEntry, filePath string) string {
	testPath := strings.TrimSuffix(filePath, ".go") + "_test.go"
	if e, ok := byPath[testPath]; ok {
		return string(e.Content)
	}
	return ""
}
