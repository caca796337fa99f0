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
	"crypto/sha256"
	"encoding/hex"
)

// VectorIndex is the narrow port for nearest-neighbor search. It is
// best-effort: callers tolerate approximate results and must not
// assume determinism across calls.
type VectorIndex interface {
	Upsert(ctx context.Context, entityID string, entityType EntityType, vector []float32) error
	Delete(ctx context.Context, entityID string) error
	FindSimilar(ctx context.Context, vector []float32, k int, filter SimilarityFilter) ([]SimilarityHit, error)
}

// SimilarityFilter narrows FindSimilar to entity types.
type SimilarityFilter struct {
	EntityTypes []EntityType
}

// Store is the full substrate interface the core consumes. Implementations
// must be single-writer linearizable within a process and
// must never silently fall back to an in-memory store on failure — every
// method returns errs.StorageError instead.
type Store interface {
	// Files
	UpsertFile(ctx context.Context, f File) error
	GetFiles(ctx context.Context, paths []string) ([]File, error)
	DeleteFile(ctx context.Context, path string) error

	// Functions
	UpsertFunction(ctx context.Context, fn Function) error
	GetFunctions(ctx context.Context, ids []string) ([]Function, error)
	GetFunctionsByName(ctx context.Context, name string) ([]Function, error)
	GetFunctionsByFile(ctx context.Context, path string) ([]Function, error)

	// Modules
	UpsertModule(ctx context.Context, m Module) error
	GetModules(ctx context.Context, ids []string) ([]Module, error)
	GetModuleByPath(ctx context.Context, path string) (Module, bool, error)
	DeleteModule(ctx context.Context, id string) error

	// Graph edges
	UpsertGraphEdge(ctx context.Context, e GraphEdge) error
	ReplaceFileEdges(ctx context.Context, sourceFile string, edges []GraphEdge) error
	GetGraphEdges(ctx context.Context, filter EdgeFilter) ([]GraphEdge, error)

	// Context packs
	UpsertContextPack(ctx context.Context, p ContextPack) error
	GetContextPacks(ctx context.Context, ids []string) ([]ContextPack, error)
	GetContextPacksByTarget(ctx context.Context, targetID string) ([]ContextPack, error)
	DeleteContextPack(ctx context.Context, packID string) error
	IncrementPackAccess(ctx context.Context, packID string) error

	// Universal knowledge
	UpsertUniversalKnowledge(ctx context.Context, k UniversalKnowledgeRecord) error
	GetUniversalKnowledge(ctx context.Context, entityID string) (UniversalKnowledgeRecord, bool, error)

	// Feedback
	UpsertFeedback(ctx context.Context, f FeedbackRecord) error
	GetFeedback(ctx context.Context, packID string) ([]FeedbackRecord, error)
	DeleteFeedbackForPack(ctx context.Context, packID string) error

	// Metadata key/value
	GetMeta(ctx context.Context, key string) (string, bool, error)
	SetMeta(ctx context.Context, key, value string) error

	// WithTx runs fn inside one transaction; a full-file reindex is
	// exactly one such transaction.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error

	Close() error
}

// ID namespaces librarian's deterministic id derivations.
var ID = struct {
	Function func(filePath, name string, startLine int) string
	Module   func(path string) string
}{
	Function: functionID,
	Module:   moduleID,
}

func functionID(filePath, name string, startLine int) string {
	h := sha256.New()
	h.Write([]byte(filePath))
	h.Write([]byte{0})
	h.Write([]byte(name))
	h.Write([]byte{0})
	h.Write([]byte{byte(startLine), byte(startLine >> 8), byte(startLine >> 16), byte(startLine >> 24)})
	return hex.EncodeToString(h.Sum(nil))[:32]
}

func moduleID(path string) string {
	h := sha256.Sum256([]byte(path))
	return hex.EncodeToString(h[:])[:32]
}

// HashContent returns the hex SHA-256 of its parts, each followed by a NUL
// byte. File.Hash hashes the file's content, Function.Hash the signature
// plus source text, and the identity phase's record hash the signature
// plus source (functions) or source plus comma-joined exports (modules).
// The purpose summary is not an input to any of these hashes.
func HashContent(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
