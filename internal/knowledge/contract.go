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

// ParseContract extracts a ContractSection from a Go signature string of
// the shape the parser registry emits: "(params) (results)". It is purely
// textual — no parser round-trip — so it tolerates any language's
// signature text as long as parameters are comma-separated inside
// parens.
func ParseContract(signature string) storage.ContractSection {
	params, result := splitSignature(signature)
	out := strings.TrimSpace(result)
	if strings.HasPrefix(out, "(") {
		// "(int, error)" -> "int, error"; anything after the group is kept as is.
		if inner, rest := splitSignature(out); strings.TrimSpace(rest) == "" {
			out = strings.TrimSpace(inner)
		}
	}
	return storage.ContractSection{
		Inputs:  parseParams(params),
		Output:  out,
		IsAsync: strings.Contains(signature, "chan ") || strings.Contains(signature, "<-chan"),
	}
}

// splitSignature pulls the first top-level parenthesized group as params
// and whatever follows as the result clause.
func splitSignature(sig string) (params, result string) {
	sig = strings.TrimSpace(sig)
	depth := 0
	start, end := -1, -1
	for i, r := range sig {
		switch r {
		case '(':
			if depth == 0 {
				start = i
			}
			depth++
		case ')':
			depth--
			if depth == 0 {
				end = i
				break
			}
		}
		if end != -1 {
			break
		}
	}
	if start == -1 || end == -1 || end <= start {
		return "", sig
	}
	return sig[start+1 : end], sig[end+1:]
}

// parseParams splits a parameter list on top-level commas and classifies
// each "name type" pair. Variadic and grouped names ("a, b int") are
// handled; optionality is inferred from a leading "optional " marker some
// doc-comment conventions use, since Go itself has no optional params.
func parseParams(params string) []storage.ContractParam {
	groups := splitTopLevel(params, ',')
	var out []storage.ContractParam
	for _, g := range groups {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		fields := strings.Fields(g)
		if len(fields) == 0 {
			continue
		}
		name := fields[0]
		typ := strings.TrimSpace(strings.TrimPrefix(g, name))
		optional := strings.HasPrefix(typ, "optional ")
		if optional {
			typ = strings.TrimPrefix(typ, "optional ")
		}
		out = append(out, storage.ContractParam{Name: name, Type: strings.TrimSpace(typ), Optional: optional})
	}
	// Grouped names ("a, b int") share the type of the next typed entry.
	next := ""
	for i := len(out) - 1; i >= 0; i-- {
		if out[i].Type == "" {
			out[i].Type = next
		} else {
			next = out[i].Type
		}
	}
	return out
}

// splitTopLevel splits s on sep, ignoring occurrences nested inside
// parens/brackets/braces (e.g. "a, b map[string]int, c func(int) error").
func splitTopLevel(s string, sep rune) []string {
	var out []string
	depth := 0
	last := 0
	for i, r := range s {
		switch r {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case sep:
			if depth == 0 {
				out = append(out, s[last:i])
				last = i + 1
			}
		}
	}
	out = append(out, s[last:])
	return out
}
