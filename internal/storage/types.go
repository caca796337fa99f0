// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package storage defines the durable data model and the interface
// (Store) the rest of librarian consumes. Two implementations
// exist: BadgerStore (system of record) and weaviate.Index (vector
// search only) — components never talk to either engine directly.
package storage

import "time"

// EntityType discriminates what a graph edge endpoint, or a universal
// knowledge record, refers to.
type EntityType string

const (
	EntityFile     EntityType = "file"
	EntityFunction EntityType = "function"
	EntityModule   EntityType = "module"
	EntityPack     EntityType = "pack"
)

// EdgeType enumerates the five edge kinds the graph recognizes. Modeled
// as a closed sum type — never an open string outside this set.
type EdgeType string

const (
	EdgeImports   EdgeType = "imports"
	EdgeCalls     EdgeType = "calls"
	EdgeExtends   EdgeType = "extends"
	EdgeImplements EdgeType = "implements"
	EdgeCochange  EdgeType = "cochange"
)

// File is the unit of freshness: its Hash is the sole change key.
type File struct {
	Path       string
	Hash       string
	Language   string
	IndexedAt  time.Time
	Purpose    string
	Confidence float64
	Version    int
}

// Function is exactly one per (FilePath, Name, StartLine); ID is derived
// from that triple (see ID.Function).
type Function struct {
	ID         string
	Name       string
	FilePath   string
	Signature  string
	StartLine  int
	EndLine    int
	Purpose    string
	Embedding  []float32
	Confidence float64
	Hash       string
}

// Module groups exports/dependencies for one logical unit. Exports and
// Dependencies are sets: order carries no meaning, membership does.
type Module struct {
	ID           string
	Path         string
	Exports      map[string]struct{}
	Dependencies map[string]struct{}
	Purpose      string
	Confidence   float64
}

// GraphEdge is append-on-reindex: a full reindex of SourceFile replaces
// every edge whose SourceFile equals it (see Store.ReplaceFileEdges).
type GraphEdge struct {
	FromID     string
	FromType   EntityType
	ToID       string
	ToType     EntityType
	EdgeType   EdgeType
	SourceFile string
	SourceLine int // 0 means unset/unknown
	Confidence float64
}

// Outcome tags the last feedback applied to a pack.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomePartial Outcome = "partial"
	OutcomeUnknown Outcome = "unknown"
	OutcomeStale   Outcome = "stale"
)

// ContextPack is a unit of retrieval. Invariant (enforced by every writer
// in this package): SuccessCount+FailureCount <= AccessCount, and
// Confidence is always in [0,1].
type ContextPack struct {
	PackID              string
	PackType            string
	TargetID            string
	Summary             string
	KeyFacts            []string
	CodeSnippets        []string
	RelatedFiles        []string
	Confidence          float64
	AccessCount         int64
	SuccessCount        int64
	FailureCount        int64
	LastOutcome         Outcome
	Version             int
	InvalidationTriggers []string
}

// EvidenceBand is the qualitative confidence tag on one evidence ref.
type EvidenceBand string

const (
	EvidenceVerified       EvidenceBand = "verified"
	EvidenceInferred       EvidenceBand = "inferred"
	EvidenceLiterature     EvidenceBand = "literature"
	EvidenceFormalAnalysis EvidenceBand = "formal_analysis"
	EvidenceInsufficient   EvidenceBand = "insufficient_data"
	EvidenceAbsent         EvidenceBand = "absent"
)

// EvidenceRef cites the file region supporting one claim in a knowledge
// record section.
type EvidenceRef struct {
	File       string
	Line       int
	Snippet    string
	Claim      string
	Confidence EvidenceBand
}

// Defeater is the record of one activated (or checked) defeater.
type Defeater struct {
	Name      string
	Activated bool
	Reason    string
}

// SectionMeta holds the per-section confidence plus evidence and
// defeater bookkeeping that backs meta.confidence.
type SectionMeta struct {
	BySection        map[string]float64
	Overall          float64
	EvidenceBySection map[string][]EvidenceRef
	ActiveDefeaters  []Defeater
}

// KnowledgeSections is the blob holding one field per
// universal-knowledge-record section.
type KnowledgeSections struct {
	Identity      IdentitySection
	Semantics     SemanticsSection
	Contract      ContractSection
	Quality       QualitySection
	Security      SecuritySection
	Testing       TestingSection
	History       HistorySection
	Ownership     OwnershipSection
	Rationale     RationaleSection
	Traceability  TraceabilitySection
	Relationships RelationshipsSection
	Meta          SectionMeta
}

type IdentitySection struct {
	ID            string
	QualifiedName string
	Hash          string
}

type SemanticsSection struct {
	Summary          string
	CognitiveTags    []string
	CognitiveComplex int
}

type ContractParam struct {
	Name     string
	Type     string
	Optional bool
}

type ContractSection struct {
	Inputs  []ContractParam
	Output  string
	IsAsync bool
}

type QualitySection struct {
	CyclomaticComplexity int
	CognitiveComplexity  int
	MaintainabilityIndex float64
	Smells               []string
	DocCoverage          float64
}

type SecuritySection struct {
	RiskScore float64
	Controls  []string
	Tags      []string // OWASP/CWE tags
}

type TestingSection struct {
	CoLocatedTests []string
	CoverageMarkers []string
}

type HistorySection struct {
	CommitFrequency float64
	Churn           int
	PrimaryAuthor   string
	LastCommit      time.Time
}

type OwnershipSection struct {
	Owner string
	Team  string
}

type RationaleSection struct {
	ADRRefs []string
}

type TraceabilitySection struct {
	RequirementRefs []string
	IssueRefs       []string
}

type RelationshipsSection struct {
	Cochange   []string
	Similar    []string
	CallEdges  []string
}

// Phase names the generator phases that have a phase constant (evidence
// collection has none), used for partial-result and error classification.
type Phase string

const (
	PhaseIdentity      Phase = "identity"
	PhaseSemantics     Phase = "semantics"
	PhaseContract      Phase = "contract"
	PhaseQuality       Phase = "quality"
	PhaseSecurity      Phase = "security"
	PhaseTesting       Phase = "testing"
	PhaseHistory       Phase = "history"
	PhaseRationale     Phase = "rationale"
	PhaseTraceability  Phase = "traceability"
	PhaseRelationships Phase = "relationships"
)

// UniversalKnowledgeRecord is the per-function/module record. Indexed
// columns are promoted to top-level fields; Sections carries the rest of
// the JSON-shaped blob.
type UniversalKnowledgeRecord struct {
	EntityID             string
	EntityType           EntityType
	PurposeSummary       string
	MaintainabilityIndex float64
	RiskScore            float64
	TestCoverage         float64
	CyclomaticComplexity int
	CognitiveComplexity  int
	Confidence           float64
	Embedding            []float32
	Hash                 string
	ValidUntil           time.Time
	Sections             KnowledgeSections
}

// FeedbackRecord is owned by its pack: deleting the pack deletes these
// (see Store.DeleteContextPack).
type FeedbackRecord struct {
	QueryID   string
	PackID    string
	Outcome   Outcome
	Delta     float64
	Timestamp time.Time
	AgentID   string
}

// SimilarityHit is one vector-search result.
type SimilarityHit struct {
	EntityID   string
	EntityType EntityType
	Score      float64
}

// EdgeFilter narrows GetGraphEdges. Zero-value fields mean "no filter on
// this dimension".
type EdgeFilter struct {
	EdgeTypes   []EdgeType
	FromIDs     []string
	ToIDs       []string
	SourceFiles []string
	Limit       int
}
