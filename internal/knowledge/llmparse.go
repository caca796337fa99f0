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
	"strconv"
	"strings"
)

// parseSummaryAndTags parses the "SUMMARY: ...\nTAGS: a, b" response shape
// every semantics prompt in this package requests.
func parseSummaryAndTags(content string) (summary string, tags []string) {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(strings.ToUpper(line), "SUMMARY:"):
			summary = strings.TrimSpace(line[len("SUMMARY:"):])
		case strings.HasPrefix(strings.ToUpper(line), "TAGS:"):
			tags = splitCSV(line[len("TAGS:"):])
		}
	}
	return
}

// parseSecurity parses the "RISK: 0.4\nCONTROLS: a, b\nTAGS: c, d" shape.
func parseSecurity(content string) (risk float64, controls []string, tags []string) {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "RISK:"):
			v := strings.TrimSpace(line[len("RISK:"):])
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				risk = clamp01(f)
			}
		case strings.HasPrefix(upper, "CONTROLS:"):
			controls = splitCSV(line[len("CONTROLS:"):])
		case strings.HasPrefix(upper, "TAGS:"):
			tags = splitCSV(line[len("TAGS:"):])
		}
	}
	return
}

// parseADRRefs parses the "ADR_REFS: r1, r2" shape.
func parseADRRefs(content string) []string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToUpper(line), "ADR_REFS:") {
			return splitCSV(line[len("ADR_REFS:"):])
		}
	}
	return nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
