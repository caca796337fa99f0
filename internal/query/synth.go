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
	"fmt"
	"regexp"
	"strings"

	"github.com/AleutianAI/librarian/internal/provider"
	"github.com/AleutianAI/librarian/internal/storage"
)

const synthesisSystemRole = "You answer questions about a codebase using only the " +
	"context packs provided. Every factual claim must cite the packId it came from " +
	"using the form [cite:packId]. Never cite a packId that was not given to you."

var citationPattern = regexp.MustCompile(`\[cite:([a-zA-Z0-9_-]+)\]`)

// Synthesize sends the top-K packs plus the query to the LLM port with a
// fixed system role, then parses and filters citations. If chat is nil
// or returns errs.ProviderUnavailable, synthesis is
// omitted and the caller treats the response as unverified — packs are
// still returned by the engine regardless.
func Synthesize(ctx context.Context, chat provider.Chat, modelID, queryText string, packs []storage.ContextPack) (*Synthesis, error) {
	if chat == nil || len(packs) == 0 {
		return nil, nil
	}

	valid := make(map[string]bool, len(packs))
	for _, p := range packs {
		valid[p.PackID] = true
	}

	resp, err := chat.Chat(ctx, provider.ChatRequest{
		ModelID:  modelID,
		Messages: []provider.Message{
			{Role: provider.RoleSystem, Content: synthesisSystemRole},
			{Role: provider.RoleUser, Content: buildPrompt(queryText, packs)},
		},
	})
	if err != nil {
		return nil, err
	}

	return &Synthesis{
		Text:      resp.Content,
		Citations: extractCitations(resp.Content, valid),
	}, nil
}

func buildPrompt(queryText string, packs []storage.ContextPack) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nContext packs:\n", queryText)
	for _, p := range packs {
		fmt.Fprintf(&b, "- packId=%s summary=%q keyFacts=%v\n", p.PackID, p.Summary, p.KeyFacts)
	}
	return b.String()
}

// extractCitations parses [cite:packId] markers out of the response
// text and drops any whose packId isn't in the valid set.
func extractCitations(text string, valid map[string]bool) []Citation {
	matches := citationPattern.FindAllStringSubmatchIndex(text, -1)
	var out []Citation
	for _, m := range matches {
		packID := text[m[2]:m[3]]
		if !valid[packID] {
			continue
		}
		out = append(out, Citation{PackID: packID, Quote: surroundingQuote(text, m[0])})
	}
	return out
}

// surroundingQuote grabs the sentence fragment leading up to a citation
// marker as a best-effort supporting quote.
func surroundingQuote(text string, citationStart int) string {
	start := strings.LastIndexAny(text[:citationStart], ".\n")
	if start < 0 {
		start = 0
	} else {
		start++
	}
	return strings.TrimSpace(text[start:citationStart])
}
