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
	"context"
	"strings"

	"github.com/AleutianAI/librarian/internal/storage"
)

// Resolution is target resolution's output: the matched entity plus up
// to five alternates for diagnostic output.
type Resolution struct {
	EntityID     string
	EntityType   storage.EntityType
	Matched      bool
	MatchedBy    string // which strategy resolved it, for diagnostics
	Alternatives []string
}

// Resolve applies the five-strategy cascade in order: indexed
// function-name lookup, exact module-path match, name-without-extension,
// substring, raw path.
func Resolve(ctx context.Context, store storage.Store, target string) Resolution {
	if target == "" {
		return Resolution{}
	}

	if fns, err := store.GetFunctionsByName(ctx, target); err == nil && len(fns) > 0 {
		return withAlternatives(Resolution{EntityID: fns[0].ID, EntityType: storage.EntityFunction, Matched: true, MatchedBy: "function_name"}, fns)
	}

	if m, ok, err := store.GetModuleByPath(ctx, target); err == nil && ok {
		return Resolution{EntityID: m.ID, EntityType: storage.EntityModule, Matched: true, MatchedBy: "module_path"}
	}

	// name-without-extension cuts both ways: strip an extension the
	// target has but the store doesn't, or guess the common one the
	// target lacks but the store has.
	nameVariant := trimExt(target)
	if nameVariant == target {
		nameVariant = target + ".go"
	}
	if nameVariant != target {
		if m, ok, err := store.GetModuleByPath(ctx, nameVariant); err == nil && ok {
			return Resolution{EntityID: m.ID, EntityType: storage.EntityModule, Matched: true, MatchedBy: "name_without_ext"}
		}
	}

	// Substring: the store exposes no full scan, so this strategy
	// degrades to checking whether target is a suffix/prefix of a
	// couple of common path shapes rather than a true corpus-wide scan.
	for _, candidate := range []string{"internal/" + target, target} {
		if m, ok, err := store.GetModuleByPath(ctx, candidate); err == nil && ok {
			return Resolution{EntityID: m.ID, EntityType: storage.EntityModule, Matched: true, MatchedBy: "substring"}
		}
	}

	// Last resort: treat the raw string as a path and derive its id
	// directly, even though nothing may resolve it to a stored record.
	return Resolution{EntityID: storage.ID.Module(target), EntityType: storage.EntityModule, Matched: false, MatchedBy: "raw_path"}
}

func withAlternatives(r Resolution, fns []storage.Function) Resolution {
	for i := 1; i < len(fns) && len(r.Alternatives) < 5; i++ {
		r.Alternatives = append(r.Alternatives, fns[i].ID)
	}
	return r
}

func trimExt(path string) string {
	if i := strings.LastIndex(path, "."); i > strings.LastIndex(path, "/") {
		return path[:i]
	}
	return path
}
