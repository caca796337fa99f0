// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package governor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// BudgetReport is the BudgetReport.v1 artifact bootstrap writes at the end
// of a run. Field names are stable across versions; SchemaVersion gates
// breaking changes.
type BudgetReport struct {
	Kind          string            `json:"kind"`
	SchemaVersion string            `json:"schema_version"`
	CreatedAt     time.Time         `json:"created_at"`
	Canon         string            `json:"canon"`
	Environment   map[string]string `json:"environment"`
	Phase         string            `json:"phase"`
	BudgetLimits  Limits            `json:"budget_limits"`
	Usage         Usage             `json:"usage"`
	Outcome       string            `json:"outcome"`
}

// Report builds a BudgetReport.v1 snapshot for the given canon (the
// workspace or repository identifier this run covers), phase, and final
// outcome string (e.g. "completed", "deferred", "partial").
func (g *Governor) Report(canon, phase, outcome string, env map[string]string) BudgetReport {
	return BudgetReport{
		Kind:          "BudgetReport",
		SchemaVersion: "v1",
		CreatedAt:     time.Now(),
		Canon:         canon,
		Environment:   env,
		Phase:         phase,
		BudgetLimits:  g.limits,
		Usage:         g.Snapshot(),
		Outcome:       outcome,
	}
}

// WriteReport serializes report as indented JSON under
// <stateDir>/audits/librarian/governor/<timestamp>/report.json, creating
// directories as needed, and returns the written path.
func WriteReport(stateDir string, report BudgetReport) (string, error) {
	dir := filepath.Join(stateDir, "audits", "librarian", "governor", report.CreatedAt.UTC().Format("20060102T150405Z"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("governor: create report dir: %w", err)
	}

	path := filepath.Join(dir, "report.json")
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("governor: marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("governor: write report: %w", err)
	}
	return path, nil
}
