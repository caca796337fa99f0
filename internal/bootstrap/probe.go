// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package bootstrap

import (
	"context"
	"fmt"

	"github.com/AleutianAI/librarian/internal/provider"
)

// Probe verifies both the LLM and embedding ports are reachable before a
// bootstrap run commits to any work, failing fast unless a skip flag is
// set.
func Probe(ctx context.Context, p provider.Provider) error {
	if p == nil {
		return fmt.Errorf("bootstrap: no provider configured")
	}
	if _, err := p.Chat(ctx, provider.ChatRequest{Messages: []provider.Message{{Role: provider.RoleUser, Content: "ping"}}, MaxTokens: 1}); err != nil {
		return fmt.Errorf("chat port: %w", err)
	}
	if _, err := p.Embed(ctx, provider.EmbedRequest{Texts: []string{"ping"}}); err != nil {
		return fmt.Errorf("embed port: %w", err)
	}
	return nil
}
