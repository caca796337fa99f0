// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package knowledge implements the per-entity knowledge generator: the
// eleven-phase pipeline (identity through evidence/defeater activation)
// that fills a storage.UniversalKnowledgeRecord for one function or
// module.
package knowledge

import "github.com/AleutianAI/librarian/internal/storage"

// Outcome is the per-entity result the generator reports, independent of
// each phase's own confidence.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeFailure Outcome = "failure"
	OutcomeSkipped Outcome = "skipped" // identity hash unchanged: idempotent re-bootstrap
)

// PhaseError records which phase failed and why, without stopping the
// remaining phases from running.
type PhaseError struct {
	Phase storage.Phase
	Err   error
}

// Input is everything the generator needs for one entity. Callers (the
// bootstrap orchestrator) assemble it from the parser's output, the file
// on disk, and the store.
type Input struct {
	EntityID      string
	EntityType    storage.EntityType
	QualifiedName string
	FilePath      string
	RepoRoot      string

	// Signature is empty for modules.
	Signature string
	// SourceText is the function body or, for a module, the whole file.
	SourceText string
	// DocComment is the doc comment immediately preceding the entity, if any.
	DocComment string
	// TestFileSource is the sibling _test.go file's content, if one exists.
	TestFileSource string

	// Exports/Dependencies are only populated for modules.
	Exports      []string
	Dependencies []string
}

// Result bundles the generated record with its outcome and any
// per-phase errors collected along the way.
type Result struct {
	Record      storage.UniversalKnowledgeRecord
	Outcome     Outcome
	PhaseErrors []PhaseError
}
