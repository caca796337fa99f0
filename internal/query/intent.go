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
	"strings"
	"sync"
)

var (
	dependentsPatterns = []string{
		`what (?:imports|depends on|calls|uses)`,
		`who (?:imports|depends on|calls|uses)`,
		`what's affected by`,
	}
	dependenciesPatterns = []string{
		`what does .* (?:import|depend on|call)`,
		`what are .*'s dependencies`,
	}
	architecturalPatterns = []string{
		`architecture`, `layers?`, `overview`, `how (?:is|are) .* (?:structured|organized)`,
	}
	taskPlanningPatterns = []string{
		`^how do i`, `^how can i`, `^how should i`, `^what's the best way to`,
	}
	exhaustivePatterns = []string{
		`\ball\b`, `\bevery\b`, `\btransitive\b`, `impact analysis`,
	}

	compileOnce      sync.Once
	dependentsRe     []*regexp.Regexp
	dependenciesRe   []*regexp.Regexp
	architecturalRe  []*regexp.Regexp
	taskPlanningRe   []*regexp.Regexp
	exhaustiveRe     []*regexp.Regexp
)

func compilePatterns() {
	compileOnce.Do(func() {
		dependentsRe = compileAll(dependentsPatterns)
		dependenciesRe = compileAll(dependenciesPatterns)
		architecturalRe = compileAll(architecturalPatterns)
		taskPlanningRe = compileAll(taskPlanningPatterns)
		exhaustiveRe = compileAll(exhaustivePatterns)
	})
}

func compileAll(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(`(?i)` + p)
	}
	return out
}

func anyMatch(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// Classify decides the query's intent, direction (for structural
// queries) and candidate target string. Target extraction is heuristic:
// the first backticked span, else the first double-quoted span, else the
// last identifier-shaped token of the sentence.
func Classify(text string) Classification {
	compilePatterns()
	lower := strings.ToLower(strings.TrimSpace(text))

	c := Classification{Exhaustive: anyMatch(exhaustiveRe, lower)}

	switch {
	case anyMatch(architecturalRe, lower):
		c.Intent = IntentArchitectural
		return c
	case anyMatch(dependentsRe, lower):
		c.Intent = IntentStructural
		c.Direction = DirectionDependents
		c.Target = extractTarget(text)
		return c
	case anyMatch(dependenciesRe, lower):
		c.Intent = IntentStructural
		c.Direction = DirectionDependencies
		c.Target = extractTarget(text)
		return c
	case anyMatch(taskPlanningRe, lower):
		c.Intent = IntentTaskPlanning
		return c
	default:
		c.Intent = IntentGeneral
		return c
	}
}

// extractTarget pulls the most likely entity name out of a free-text
// query: a backtick- or quote-delimited span takes priority, else the
// last identifier-shaped token.
func extractTarget(text string) string {
	if span := firstDelimited(text, '`', '`'); span != "" {
		return span
	}
	if span := firstDelimited(text, '"', '"'); span != "" {
		return span
	}
	fields := strings.Fields(text)
	for i := len(fields) - 1; i >= 0; i-- {
		tok := strings.Trim(fields[i], ".,?!()")
		if looksLikeIdentifier(tok) {
			return tok
		}
	}
	return ""
}

func firstDelimited(s string, open, close byte) string {
	start := strings.IndexByte(s, open)
	if start == -1 {
		return ""
	}
	end := strings.IndexByte(s[start+1:], close)
	if end == -1 {
		return ""
	}
	return s[start+1 : start+1+end]
}

func looksLikeIdentifier(tok string) bool {
	if tok == "" {
		return false
	}
	for _, r := range tok {
		if !(r == '_' || r == '.' || r == '/' || r == '-' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}
