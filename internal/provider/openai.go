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

	openai "github.com/sashabaranov/go-openai"

	"github.com/AleutianAI/librarian/internal/errs"
)

// OpenAIProvider is the concrete Chat+Embed adapter wired by default. It
// never leaks an *openai.Client type past this file — callers only see
// the provider.Provider port.
type OpenAIProvider struct {
	client *openai.Client
}

// NewOpenAIProvider builds an adapter from an API key. An empty key is
// accepted at construction time; the first call fails with
// provider_unavailable rather than panicking, so the bootstrap probe gets
// a clean failure instead of a crash.
func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	return &OpenAIProvider{client: openai.NewClient(apiKey)}
}

func (p *OpenAIProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	if p.client == nil {
		return ChatResponse{}, errs.ProviderUnavailable("openai.chat", nil)
	}
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     req.ModelID,
		Messages:  msgs,
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		return ChatResponse{}, errs.ProviderUnavailable("openai.chat", err)
	}
	if len(resp.Choices) == 0 {
		return ChatResponse{}, errs.ProviderUnavailable("openai.chat", nil)
	}
	return ChatResponse{
		Content: resp.Choices[0].Message.Content,
		Tokens:  resp.Usage.TotalTokens,
	}, nil
}

func (p *OpenAIProvider) Embed(ctx context.Context, req EmbedRequest) (EmbedResponse, error) {
	if p.client == nil {
		return EmbedResponse{}, errs.ProviderUnavailable("openai.embed", nil)
	}
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: req.Texts,
		Model: openai.EmbeddingModel(req.ModelID),
	})
	if err != nil {
		return EmbedResponse{}, errs.ProviderUnavailable("openai.embed", err)
	}
	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}
	return EmbedResponse{Vectors: vectors}, nil
}
