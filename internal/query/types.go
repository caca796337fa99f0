// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package query implements the hybrid query engine: intent
// classification, target resolution, structural + semantic retrieval,
// multi-signal perspective-aware scoring, and cited LLM synthesis.
package query

import "github.com/AleutianAI/librarian/internal/storage"

// Depth bounds how exhaustively structural retrieval traverses the graph.
type Depth string

const (
	DepthL0 Depth = "L0"
	DepthL1 Depth = "L1"
	DepthL2 Depth = "L2"
)

// Intent is the classified shape of a query.
type Intent string

const (
	IntentStructural    Intent = "structural"
	IntentArchitectural Intent = "architectural"
	IntentTaskPlanning  Intent = "task_planning"
	IntentGeneral       Intent = "general"
)

// Direction narrows a structural query to incoming or outgoing edges.
type Direction string

const (
	DirectionDependents   Direction = "dependents"   // who depends on / calls into the target
	DirectionDependencies Direction = "dependencies" // what the target depends on / calls out to
)

// Perspective weights scoring toward a particular task.
type Perspective string

const (
	PerspectiveDebugging     Perspective = "debugging"
	PerspectiveSecurity      Perspective = "security"
	PerspectivePerformance   Perspective = "performance"
	PerspectiveArchitecture  Perspective = "architecture"
	PerspectiveModification  Perspective = "modification"
	PerspectiveTesting       Perspective = "testing"
	PerspectiveUnderstanding Perspective = "understanding"
)

// Request is the full input to Engine.Query.
type Request struct {
	Text          string
	Depth         Depth
	TaskType      string
	Perspective   Perspective
	AffectedFiles []string
	TopK          int
}

// Classification is step 1's output.
type Classification struct {
	Intent     Intent
	Direction  Direction
	Target     string
	Exhaustive bool
}

// Candidate is one entity under consideration before it's packaged as a
// ContextPack: scoring operates on candidates, not packs, so the same
// entity seen via both structural and semantic paths can be merged.
type Candidate struct {
	EntityID   string
	EntityType storage.EntityType
	Depth      int
	Signals    Signals
	Score      float64
}

// Signals are the ten normalized [0,1] inputs to scoring.
type Signals struct {
	Semantic   float64
	Keyword    float64
	Structural float64
	Dependency float64
	History    float64
	Recency    float64
	Risk       float64
	Test       float64
	Domain     float64
	Ownership  float64
}

// Citation is one synthesis citation; packId must name a pack in the
// returned set or it is dropped.
type Citation struct {
	PackID string
	Quote  string
}

// Synthesis is the LLM-backed answer, omitted when the LLM port is
// unavailable.
type Synthesis struct {
	Text      string
	Citations []Citation
}

// Response is what Engine.Query returns.
type Response struct {
	Packs           []storage.ContextPack
	Synthesis       *Synthesis
	TotalConfidence float64
	Alternatives    []string // up to 5 alternative target matches, for diagnostics
}
