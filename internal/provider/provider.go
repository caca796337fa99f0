// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package provider defines two narrow ports: Chat and Embed. The core
// never inspects provider identity; callers pass the model id in each
// request — no component imports an SDK type from outside this package's
// adapters.
package provider

import "context"

// Role mirrors chat-completion message roles.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in a Chat request.
type Message struct {
	Role    Role
	Content string
}

// ChatRequest is the full input to Chat.
type ChatRequest struct {
	Provider  string
	ModelID   string
	Messages  []Message
	MaxTokens int
}

// ChatResponse is Chat's output.
type ChatResponse struct {
	Content string
	Tokens  int
}

// EmbedRequest is the full input to Embed.
type EmbedRequest struct {
	ModelID string
	Texts   []string
}

// EmbedResponse is Embed's output: one vector per input text, same order.
type EmbedResponse struct {
	Vectors [][]float32
}

// Chat is the LLM port. Implementations return errs.ProviderUnavailable
// when the backend cannot be reached — never a degraded/guessed answer.
type Chat interface {
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
}

// Embed is the embedding port.
type Embed interface {
	Embed(ctx context.Context, req EmbedRequest) (EmbedResponse, error)
}

// Provider bundles both ports, since a single adapter (e.g. OpenAI) is the
// common case of backing both with one API key/client.
type Provider interface {
	Chat
	Embed
}
