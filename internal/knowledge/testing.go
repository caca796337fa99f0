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
	"strings"

	"github.com/AleutianAI/librarian/internal/storage"
)

var coverageMarkerPattern = regexp.MustCompile(`(?i)//\s*(coverage|nocover|testcase):\s*(\S+)`)

// DiscoverTesting finds co-located tests and inline coverage markers for
// one entity, purely from text already available to the generator: the
// entity's own source and the sibling test file's source, if any.
func DiscoverTesting(entityName string, testFileSource string) storage.TestingSection {
	var section storage.TestingSection

	if testFileSource != "" && referencesEntity(testFileSource, entityName) {
		section.CoLocatedTests = append(section.CoLocatedTests, "Test"+strings.Title(entityName))
	}

	for _, m := range coverageMarkerPattern.FindAllStringSubmatch(testFileSource, -1) {
		section.CoverageMarkers = append(section.CoverageMarkers, m[2])
	}
	return section
}

// referencesEntity checks whether a test file plausibly tests entityName:
// a call to it, or a Test<Name>/Test_<Name> function, appears in the text.
func referencesEntity(testSource, entityName string) bool {
	if entityName == "" {
		return false
	}
	candidates := []string{
		"Test" + strings.Title(entityName),
		"Test_" + entityName,
		entityName + "(",
	}
	for _, c := range candidates {
		if strings.Contains(testSource, c) {
			return true
		}
	}
	return false
}
