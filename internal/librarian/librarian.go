// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package librarian is the top-level facade exposing Query,
// SubmitFeedback and PlanTask. It wires together the query engine,
// feedback application and session manager, and holds the task planner
// behind PlanTask (classification, complexity, steps, risks, preflight).
package librarian

import (
	"context"

	"github.com/google/uuid"

	"github.com/AleutianAI/librarian/internal/feedback"
	"github.com/AleutianAI/librarian/internal/query"
	"github.com/AleutianAI/librarian/internal/storage"
)

// Librarian composes the query engine, storage substrate and session
// manager into the librarian's external interface.
type Librarian struct {
	Store    storage.Store
	Engine   *query.Engine
	Sessions *feedback.Manager
}

// New wires a Librarian from its already-constructed dependencies.
func New(store storage.Store, engine *query.Engine) *Librarian {
	return &Librarian{
		Store:    store,
		Engine:   engine,
		Sessions: feedback.NewManager(0, 0, 0),
	}
}

// QueryResult is Query's output: query.Response plus the facade-level
// drillDownHints and traceId fields, which the query engine itself
// doesn't need to know about.
type QueryResult struct {
	Packs           []storage.ContextPack
	Synthesis       *query.Synthesis
	TotalConfidence float64
	DrillDownHints  []string
	TraceID         string
}

// Query runs a query end to end and stamps the result with a trace id
// and drill-down hints (the resolution cascade's alternative matches).
func (l *Librarian) Query(ctx context.Context, req query.Request) (QueryResult, error) {
	resp, err := l.Engine.Query(ctx, req)
	if err != nil {
		return QueryResult{}, err
	}
	return QueryResult{
		Packs:           resp.Packs,
		Synthesis:       resp.Synthesis,
		TotalConfidence: resp.TotalConfidence,
		DrillDownHints:  resp.Alternatives,
		TraceID:         uuid.NewString(),
	}, nil
}

// FeedbackRequest is SubmitFeedback's input.
type FeedbackRequest struct {
	QueryID  string
	PackIDs  []string
	Outcome  storage.Outcome
	AgentID  string
}

// Adjustment is one pack's applied confidence delta.
type Adjustment struct {
	PackID string
	Delta  float64
}

// FeedbackResult is SubmitFeedback's output.
type FeedbackResult struct {
	AdjustmentsApplied int
	Adjustments        []Adjustment
}

// SubmitFeedback applies an outcome to every named pack, one
// transaction per (queryId, packId).
func (l *Librarian) SubmitFeedback(ctx context.Context, req FeedbackRequest) (FeedbackResult, error) {
	result := FeedbackResult{Adjustments: make([]Adjustment, 0, len(req.PackIDs))}
	for _, packID := range req.PackIDs {
		if err := feedback.ApplyOutcome(ctx, l.Store, req.QueryID, packID, req.Outcome, req.AgentID); err != nil {
			return result, err
		}
		result.Adjustments = append(result.Adjustments, Adjustment{PackID: packID, Delta: feedback.OutcomeDelta(req.Outcome)})
		result.AdjustmentsApplied++
	}
	return result, nil
}
