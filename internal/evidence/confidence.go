// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package evidence implements a cross-cutting layer: evidence-ref
// confidence composition and the defeater registry the knowledge generator
// runs before persisting a record.
package evidence

import "github.com/AleutianAI/librarian/internal/storage"

// bandMedian is the representative numeric value for one qualitative
// confidence band. absent has no median: it collapses composition instead
// of contributing a factor (see Compose).
var bandMedian = map[storage.EvidenceBand]float64{
	storage.EvidenceVerified:       0.95,
	storage.EvidenceFormalAnalysis: 0.85,
	storage.EvidenceInferred:       0.70,
	storage.EvidenceLiterature:     0.60,
	storage.EvidenceInsufficient:   0.30,
}

// Compose multiplies the band medians of a sequence of evidence refs,
// clamped to [0,1]. An empty slice composes to 0 — no evidence supports no
// claim. A single EvidenceAbsent ref anywhere in the sequence collapses
// the whole composition to 0, regardless of what else is present.
func Compose(refs []storage.EvidenceRef) float64 {
	if len(refs) == 0 {
		return 0
	}
	product := 1.0
	for _, r := range refs {
		if r.Confidence == storage.EvidenceAbsent {
			return 0
		}
		m, ok := bandMedian[r.Confidence]
		if !ok {
			m = 0 // unrecognized band composes as if absent evidence
		}
		product *= m
	}
	if product < 0 {
		product = 0
	}
	if product > 1 {
		product = 1
	}
	return product
}

// OverallConfidence derives meta.confidence.overall from the per-section
// confidences: the minimum across sections, per the record invariant that
// overall can never exceed any section's own confidence. An empty map
// yields 0 rather than panicking on min-of-nothing.
func OverallConfidence(bySection map[string]float64) float64 {
	if len(bySection) == 0 {
		return 0
	}
	min := 1.0
	first := true
	for _, c := range bySection {
		if first || c < min {
			min = c
			first = false
		}
	}
	if min < 0 {
		min = 0
	}
	return min
}

// ApplyDefeaterPenalty lowers overall confidence when one or more
// defeaters activated. The penalty is proportional to the fraction of
// checked defeaters that activated, floor 0.
func ApplyDefeaterPenalty(overall float64, defeaters []storage.Defeater) float64 {
	if len(defeaters) == 0 {
		return overall
	}
	activated := 0
	for _, d := range defeaters {
		if d.Activated {
			activated++
		}
	}
	if activated == 0 {
		return overall
	}
	penalty := float64(activated) / float64(len(defeaters))
	adjusted := overall * (1 - penalty)
	if adjusted < 0 {
		adjusted = 0
	}
	return adjusted
}
