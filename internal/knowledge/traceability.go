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
	"regexp"

	"github.com/AleutianAI/librarian/internal/storage"
)

var requirementRefPattern = regexp.MustCompile(`(?i)\b(REQ|ADR)-\d+\b`)

// ExtractTraceability pulls requirement and issue references out of an
// entity's doc comment and the commit messages that touched its file.
// issueRefs is pre-extracted by the history phase so this phase doesn't
// re-run git.
func ExtractTraceability(docComment string, issueRefs []string) storage.TraceabilitySection {
	return storage.TraceabilitySection{
		RequirementRefs: dedupe(requirementRefPattern.FindAllString(docComment, -1)),
		IssueRefs:       dedupe(issueRefs),
	}
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
