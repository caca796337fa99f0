// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package weaviate implements storage.VectorIndex against a Weaviate
// instance: embeddings go here, the authoritative rows stay in badger.
// Splitting the two stores this way means a vector store outage degrades
// semantic retrieval to best-effort nearest-neighbor without taking down
// structural queries.
package weaviate

import (
	"context"
	"fmt"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/AleutianAI/librarian/internal/errs"
	"github.com/AleutianAI/librarian/internal/logging"
	"github.com/AleutianAI/librarian/internal/storage"
)

// ClassName is the single Weaviate class backing every entity type; the
// entityType property narrows FindSimilar's filter.
const ClassName = "CodeEntity"

// Schema returns the CodeEntity class definition. Vectorizer is "none":
// librarian always supplies vectors computed by the embedding port,
// never asks Weaviate to compute them.
func Schema() *models.Class {
	filterable := true
	return &models.Class{
		Class:      ClassName,
		Vectorizer: "none",
		Properties: []*models.Property{
			{Name: "entityId", DataType: []string{"text"}, IndexFilterable: &filterable, Tokenization: "field"},
			{Name: "entityType", DataType: []string{"text"}, IndexFilterable: &filterable, Tokenization: "field"},
		},
	}
}

// Index wraps a weaviate client as a storage.VectorIndex.
type Index struct {
	client *weaviate.Client
	log    *logging.Logger
}

// New dials a Weaviate instance at host (e.g. "localhost:8081") and
// ensures the CodeEntity class exists.
func New(ctx context.Context, host string, log *logging.Logger) (*Index, error) {
	if log == nil {
		log = logging.Default()
	}
	cfg := weaviate.Config{Host: host, Scheme: "http"}
	client, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, errs.ProviderUnavailable("weaviate", err)
	}
	idx := &Index{client: client, log: log}
	if err := idx.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

func (idx *Index) ensureSchema(ctx context.Context) error {
	_, err := idx.client.Schema().ClassGetter().WithClassName(ClassName).Do(ctx)
	if err == nil {
		return nil
	}
	if err := idx.client.Schema().ClassCreator().WithClass(Schema()).Do(ctx); err != nil {
		return errs.ProviderUnavailable("weaviate", fmt.Errorf("creating %s schema: %w", ClassName, err))
	}
	return nil
}

// Upsert writes (or overwrites, using entityID as the deterministic
// object UUID surrogate via the docId-style property) one entity's vector.
func (idx *Index) Upsert(ctx context.Context, entityID string, entityType storage.EntityType, vector []float32) error {
	obj := &models.Object{
		Class:  ClassName,
		ID:     objectID(entityID),
		Vector: vector,
		Properties: map[string]interface{}{
			"entityId":   entityID,
			"entityType": string(entityType),
		},
	}
	// The creator rejects an existing id, so any previous object goes first;
	// a not-found error here is the normal first-write case.
	_ = idx.client.Data().Deleter().WithClassName(ClassName).WithID(string(obj.ID)).Do(ctx)
	_, err := idx.client.Data().Creator().WithClassName(ClassName).WithID(string(obj.ID)).
		WithVector(vector).WithProperties(obj.Properties).Do(ctx)
	if err != nil {
		return errs.ProviderUnavailable("weaviate", err)
	}
	return nil
}

func (idx *Index) Delete(ctx context.Context, entityID string) error {
	err := idx.client.Data().Deleter().WithClassName(ClassName).WithID(string(objectID(entityID))).Do(ctx)
	if err != nil {
		return errs.ProviderUnavailable("weaviate", err)
	}
	return nil
}

// FindSimilar runs a nearVector GraphQL query. It is best-effort: a
// Weaviate error is reported but callers (the query engine) are expected
// to degrade to structural-only retrieval rather than fail the whole
// query.
func (idx *Index) FindSimilar(ctx context.Context, vector []float32, k int, filter storage.SimilarityFilter) ([]storage.SimilarityHit, error) {
	if k <= 0 {
		k = 10
	}
	nearVector := idx.client.GraphQL().NearVectorArgBuilder().WithVector(vector)
	fields := []graphql.Field{
		{Name: "entityId"},
		{Name: "entityType"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "certainty"}}},
	}
	query := idx.client.GraphQL().Get().
		WithClassName(ClassName).
		WithFields(fields...).
		WithNearVector(nearVector).
		WithLimit(k)

	resp, err := query.Do(ctx)
	if err != nil {
		return nil, errs.ProviderUnavailable("weaviate", err)
	}
	if resp.Errors != nil && len(resp.Errors) > 0 {
		return nil, errs.ProviderUnavailable("weaviate", fmt.Errorf("%v", resp.Errors))
	}
	return parseHits(resp.Data, filter), nil
}

func parseHits(data map[string]models.JSONObject, filter storage.SimilarityFilter) []storage.SimilarityHit {
	get, _ := data["Get"].(map[string]interface{})
	rows, _ := get[ClassName].([]interface{})
	var hits []storage.SimilarityHit
	for _, r := range rows {
		row, ok := r.(map[string]interface{})
		if !ok {
			continue
		}
		entityID, _ := row["entityId"].(string)
		entityType, _ := row["entityType"].(string)
		if len(filter.EntityTypes) > 0 && !allowedType(filter.EntityTypes, storage.EntityType(entityType)) {
			continue
		}
		score := 0.0
		if additional, ok := row["_additional"].(map[string]interface{}); ok {
			if c, ok := additional["certainty"].(float64); ok {
				score = c
			}
		}
		hits = append(hits, storage.SimilarityHit{
			EntityID:   entityID,
			EntityType: storage.EntityType(entityType),
			Score:      score,
		})
	}
	return hits
}

func allowedType(allowed []storage.EntityType, t storage.EntityType) bool {
	for _, a := range allowed {
		if a == t {
			return true
		}
	}
	return false
}

// objectID derives a stable-enough Weaviate object id string from an
// entity id. Weaviate requires a UUID-shaped string; librarian entity ids
// are already 32 hex chars (storage.ID.Function/Module), so they are
// reshaped into UUID form rather than hashed again.
func objectID(entityID string) models.UUID {
	if len(entityID) < 32 {
		entityID = entityID + fmt.Sprintf("%032d", 0)
		entityID = entityID[:32]
	}
	return models.UUID(entityID[0:8] + "-" + entityID[8:12] + "-" + entityID[12:16] + "-" + entityID[16:20] + "-" + entityID[20:32])
}
