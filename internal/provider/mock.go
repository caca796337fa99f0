// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package provider

import (
	"context"
	"crypto/sha256"
	"sync"

	"github.com/AleutianAI/librarian/internal/errs"
)

// MockProvider is an in-memory Chat+Embed double for tests. It is never
// wired in production — only tests import it directly.
//
// Thread Safety: safe for concurrent use.
type MockProvider struct {
	mu            sync.Mutex
	ChatFunc      func(ChatRequest) (ChatResponse, error)
	EmbedFunc     func(EmbedRequest) (EmbedResponse, error)
	Unavailable   bool
	Calls         []ChatRequest
}

func (m *MockProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	m.mu.Unlock()
	if m.Unavailable {
		return ChatResponse{}, errs.ProviderUnavailable("mock.chat", nil)
	}
	if m.ChatFunc != nil {
		return m.ChatFunc(req)
	}
	return ChatResponse{Content: "mock response", Tokens: 10}, nil
}

func (m *MockProvider) Embed(ctx context.Context, req EmbedRequest) (EmbedResponse, error) {
	if m.Unavailable {
		return EmbedResponse{}, errs.ProviderUnavailable("mock.embed", nil)
	}
	if m.EmbedFunc != nil {
		return m.EmbedFunc(req)
	}
	vectors := make([][]float32, len(req.Texts))
	for i, t := range req.Texts {
		vectors[i] = deterministicVector(t, 8)
	}
	return EmbedResponse{Vectors: vectors}, nil
}

// deterministicVector derives a small reproducible vector from text so
// mock-backed tests can assert on similarity ordering without a real
// embedding model.
func deterministicVector(text string, dims int) []float32 {
	h := sha256.Sum256([]byte(text))
	v := make([]float32, dims)
	for i := 0; i < dims; i++ {
		v[i] = float32(h[i%len(h)]) / 255.0
	}
	return v
}
