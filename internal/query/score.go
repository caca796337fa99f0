// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package query

import (
	"regexp"
	"sort"
	"strings"

	"github.com/AleutianAI/librarian/internal/storage"
)

// baseWeights is the unmodified signal weight vector before any
// perspective multiplies it. Order matches Signals' field order.
var baseWeights = signalWeights{
	Semantic: 1, Keyword: 1, Structural: 1, Dependency: 1,
	History: 1, Recency: 1, Risk: 1, Test: 1, Domain: 1, Ownership: 1,
}

type signalWeights struct {
	Semantic, Keyword, Structural, Dependency, History, Recency, Risk, Test, Domain, Ownership float64
}

// entityWeight is the function/module/document multiplier applied per
// perspective.
type entityWeight struct {
	Function, Module, Document float64
}

type perspectiveProfile struct {
	entity  entityWeight
	modify  signalWeights // multiplicative modifiers, 1 = unchanged
	boosts  []*regexp.Regexp
	penalty []*regexp.Regexp
}

var perspectiveProfiles = map[Perspective]perspectiveProfile{
	PerspectiveDebugging: {
		entity: entityWeight{1.0, 0.7, 0.3},
		modify: mod(signalWeights{History: 1.3, Risk: 1.5, Test: 1.2}),
		boosts: mustCompileAll(`\berror\b`, `\bbug\b`, `\brace\b`, `\bleak\b`),
		penalty: mustCompileAll(`\btest\b`, `\bmock\b`),
	},
	PerspectiveSecurity: {
		entity: entityWeight{1.0, 0.8, 0.5},
		modify: mod(signalWeights{Risk: 2.0, Domain: 1.3}),
		boosts: mustCompileAll(`\bauth\b`, `\bcrypto\b`, `\binject`),
	},
	PerspectivePerformance: {
		entity: entityWeight{1.0, 0.6, 0.2},
		modify: mod(signalWeights{History: 1.2, Structural: 1.2}),
		boosts: mustCompileAll(`\basync\b`, `\bcache\b`, `\bio\b`),
	},
	PerspectiveArchitecture: {
		entity: entityWeight{0.6, 1.0, 0.7},
		modify: mod(signalWeights{Structural: 1.5, Dependency: 1.5}),
		boosts: mustCompileAll(`\bmodule\b`, `\blayer\b`, `\bboundary\b`),
	},
	PerspectiveModification: {
		entity: entityWeight{1.0, 0.8, 0.4},
		modify: mod(signalWeights{Dependency: 1.3, Test: 1.3}),
		boosts: mustCompileAll(`\busage\b`, `\bcaller\b`, `\bimpact\b`),
	},
	PerspectiveTesting: {
		entity: entityWeight{1.0, 0.7, 0.3},
		modify: mod(signalWeights{Test: 2.0}),
		boosts: mustCompileAll(`\btest\b`, `\bspec\b`, `\bcoverage\b`),
	},
	PerspectiveUnderstanding: {
		entity: entityWeight{1.0, 0.9, 0.9},
		modify: mod(signalWeights{Semantic: 1.3, Keyword: 1.2}),
		boosts: mustCompileAll(`\bwhat\b`, `\bhow\b`, `\bwhy\b`),
	},
}

// mod fills in the zero fields of a partially-specified modifier vector
// with 1 (no-op multiplier) so callers only name what they change.
func mod(m signalWeights) signalWeights {
	one := func(v float64) float64 {
		if v == 0 {
			return 1
		}
		return v
	}
	return signalWeights{
		Semantic: one(m.Semantic), Keyword: one(m.Keyword), Structural: one(m.Structural),
		Dependency: one(m.Dependency), History: one(m.History), Recency: one(m.Recency),
		Risk: one(m.Risk), Test: one(m.Test), Domain: one(m.Domain), Ownership: one(m.Ownership),
	}
}

func mustCompileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(`(?i)` + p)
	}
	return out
}

// Score computes a candidate's final rank: start from the base
// weight vector, multiply by the perspective's modifiers, re-normalize
// to sum to 1, dot with the candidate's signals, then apply the
// boost/penalty term derived from whether the query text matches the
// perspective's boost/penalty patterns. Clamped to [0,1].
func Score(c Candidate, perspective Perspective, queryText string, confidence float64) float64 {
	profile, ok := perspectiveProfiles[perspective]
	if !ok {
		profile = perspectiveProfiles[PerspectiveUnderstanding]
	}

	w := weighted(baseWeights, profile.modify)
	w = normalize(w)

	s := c.Signals
	raw := w.Semantic*s.Semantic + w.Keyword*s.Keyword + w.Structural*s.Structural +
		w.Dependency*s.Dependency + w.History*s.History + w.Recency*s.Recency +
		w.Risk*s.Risk + w.Test*s.Test + w.Domain*s.Domain + w.Ownership*s.Ownership

	raw *= entityMultiplier(profile.entity, c.EntityType)
	raw *= boostFactor(profile, queryText)

	if raw < 0 {
		return 0
	}
	if raw > 1 {
		return 1
	}
	return raw
}

func weighted(base, mult signalWeights) signalWeights {
	return signalWeights{
		Semantic: base.Semantic * mult.Semantic, Keyword: base.Keyword * mult.Keyword,
		Structural: base.Structural * mult.Structural, Dependency: base.Dependency * mult.Dependency,
		History: base.History * mult.History, Recency: base.Recency * mult.Recency,
		Risk: base.Risk * mult.Risk, Test: base.Test * mult.Test,
		Domain: base.Domain * mult.Domain, Ownership: base.Ownership * mult.Ownership,
	}
}

func normalize(w signalWeights) signalWeights {
	sum := w.Semantic + w.Keyword + w.Structural + w.Dependency + w.History +
		w.Recency + w.Risk + w.Test + w.Domain + w.Ownership
	if sum == 0 {
		return w
	}
	return signalWeights{
		Semantic: w.Semantic / sum, Keyword: w.Keyword / sum, Structural: w.Structural / sum,
		Dependency: w.Dependency / sum, History: w.History / sum, Recency: w.Recency / sum,
		Risk: w.Risk / sum, Test: w.Test / sum, Domain: w.Domain / sum, Ownership: w.Ownership / sum,
	}
}

func entityMultiplier(e entityWeight, t storage.EntityType) float64 {
	switch t {
	case storage.EntityFunction:
		return e.Function
	case storage.EntityModule:
		return e.Module
	default:
		return e.Document
	}
}

// boostFactor nudges the score by +0.1 per matched boost term and -0.1
// per matched penalty term, floored at 0.5 so no single query can zero
// out an otherwise-relevant candidate.
func boostFactor(p perspectiveProfile, text string) float64 {
	lower := strings.ToLower(text)
	factor := 1.0
	for _, re := range p.boosts {
		if re.MatchString(lower) {
			factor += 0.1
		}
	}
	for _, re := range p.penalty {
		if re.MatchString(lower) {
			factor -= 0.1
		}
	}
	if factor < 0.5 {
		factor = 0.5
	}
	return factor
}

// RankCandidates scores every candidate under perspective and sorts
// descending by score, breaking ties by confidence then id.
func RankCandidates(candidates []Candidate, perspective Perspective, queryText string, confidence map[string]float64) []Candidate {
	scored := make([]Candidate, len(candidates))
	copy(scored, candidates)
	for i := range scored {
		scored[i].Score = Score(scored[i], perspective, queryText, confidence[scored[i].EntityID])
	}

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if confidence[a.EntityID] != confidence[b.EntityID] {
			return confidence[a.EntityID] > confidence[b.EntityID]
		}
		return a.EntityID < b.EntityID
	})
	return scored
}
