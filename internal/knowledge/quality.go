// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package knowledge

import (
	"strings"

	"github.com/AleutianAI/librarian/internal/storage"
)

// decisionKeywords are the tokens that add one branch to cyclomatic
// complexity under the standard McCabe approximation: count of decision
// points + 1.
var decisionKeywords = []string{" if ", " for ", " case ", " &&", " ||", " switch ", "select {"}

// AnalyzeQuality computes deterministic quality metrics from a function or
// module's source text: cyclomatic/cognitive complexity, a maintainability
// index, a smell list, and doc-comment coverage. All purely textual —
// no AST walk — matching the generator's deterministic-phase contract.
func AnalyzeQuality(source string, hasDocComment bool) storage.QualitySection {
	cyclomatic := 1
	padded := " " + source + " "
	for _, kw := range decisionKeywords {
		cyclomatic += strings.Count(padded, kw)
	}

	cognitive := cognitiveComplexity(source)
	smells := detectSmells(source, cyclomatic)
	lines := strings.Count(source, "\n") + 1
	docCoverage := 0.0
	if hasDocComment {
		docCoverage = 1.0
	}

	mi := maintainabilityIndex(cyclomatic, lines)

	return storage.QualitySection{
		CyclomaticComplexity: cyclomatic,
		CognitiveComplexity:  cognitive,
		MaintainabilityIndex: mi,
		Smells:               smells,
		DocCoverage:          docCoverage,
	}
}

// cognitiveComplexity approximates Sonar's cognitive-complexity metric by
// weighting nesting depth: each decision keyword costs 1 plus the current
// brace nesting depth at that point in the text.
func cognitiveComplexity(source string) int {
	depth := 0
	total := 0
	i := 0
	for i < len(source) {
		switch source[i] {
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		}
		for _, kw := range []string{"if ", "for ", "case ", "&&", "||"} {
			if strings.HasPrefix(source[i:], kw) {
				total += 1 + depth
				break
			}
		}
		i++
	}
	return total
}

func detectSmells(source string, cyclomatic int) []string {
	var smells []string
	lines := strings.Count(source, "\n") + 1
	if lines > 80 {
		smells = append(smells, "long_function")
	}
	if cyclomatic > 15 {
		smells = append(smells, "high_cyclomatic_complexity")
	}
	if strings.Count(source, "\t\t\t\t\t") > 0 {
		smells = append(smells, "deep_nesting")
	}
	if strings.Contains(source, "TODO") || strings.Contains(source, "FIXME") {
		smells = append(smells, "unresolved_todo")
	}
	if strings.Count(source, "panic(") > 0 {
		smells = append(smells, "uses_panic")
	}
	return smells
}

// maintainabilityIndex is a simplified variant of the classic formula,
// bounded to [0, 100]: higher cyclomatic complexity and length both pull
// it down.
func maintainabilityIndex(cyclomatic, lines int) float64 {
	mi := 100.0 - float64(cyclomatic)*2.0 - float64(lines)*0.1
	if mi < 0 {
		mi = 0
	}
	if mi > 100 {
		mi = 100
	}
	return mi
}
