// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/librarian/internal/errs"
	"github.com/AleutianAI/librarian/internal/logging"
)

// key prefixes. Every logical table (files, functions, modules,
// graph_edges, context_packs, universal_knowledge, feedback, metadata)
// lives under its own prefix in one badger keyspace.
const (
	prefixFile        = "file:"
	prefixFunc        = "func:"
	prefixFuncByName  = "funcname:"
	prefixModule      = "module:"
	prefixModuleByPath = "modulepath:"
	prefixEdge        = "edge:"
	prefixPack        = "pack:"
	prefixPackByTarget = "packtarget:"
	prefixKnowledge   = "uk:"
	prefixFeedback    = "feedback:"
	prefixMeta        = "meta:"
)

// BadgerStore is the storage substrate backed by an embedded badger.DB.
//
// # Description
//
// It is the system of record for files, functions, modules, graph edges,
// context packs, universal knowledge and feedback, each under its own
// key prefix in one badger keyspace. Vector search is delegated to a
// storage.VectorIndex (see the weaviate subpackage) so embeddings never
// need to round-trip through badger's b-tree for nearest-neighbor
// queries. ContextPack writes enforce the AccessCount/SuccessCount/
// FailureCount and Confidence invariants before any key is touched.
//
// # Thread Safety
//
// Safe for concurrent use. Single-call methods run in their own badger
// transaction; WithTx exposes a txStore so a full reindex of one file
// commits or rolls back as a unit.
type BadgerStore struct {
	db     *badger.DB
	vector VectorIndex
	log    *logging.Logger
}

// Option configures a BadgerStore at construction.
type Option func(*BadgerStore)

// WithVectorIndex attaches a vector search port to the store. BadgerStore
// keeps it but none of its methods searches through it; semantic retrieval
// goes through the query engine's own VectorIndex.
func WithVectorIndex(v VectorIndex) Option { return func(s *BadgerStore) { s.vector = v } }

// WithLogger attaches a logger; Default() is used otherwise.
func WithLogger(l *logging.Logger) Option { return func(s *BadgerStore) { s.log = l } }

// OpenWithPath opens (creating if necessary) a persistent store at path.
func OpenWithPath(path string, opts ...Option) (*BadgerStore, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, errs.StorageError("mkdir", err)
	}
	opt := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opt)
	if err != nil {
		return nil, errs.StorageError("open", err)
	}
	return newStore(db, opts...), nil
}

// OpenInMemory opens a store with no disk persistence, used by the tests.
func OpenInMemory(opts ...Option) (*BadgerStore, error) {
	opt := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opt)
	if err != nil {
		return nil, errs.StorageError("open", err)
	}
	return newStore(db, opts...), nil
}

func newStore(db *badger.DB, opts ...Option) *BadgerStore {
	s := &BadgerStore{db: db, log: logging.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *BadgerStore) Close() error {
	if err := s.db.Close(); err != nil {
		return errs.StorageError("close", err)
	}
	return nil
}

// txn abstracts the subset of *badger.Txn our record helpers need, so the
// same encode/decode logic runs whether we're inside db.Update (one-shot
// calls) or inside a caller-held transaction opened by WithTx.
type txn interface {
	Set(key, value []byte) error
	Get(key []byte) (*badger.Item, error)
	Delete(key []byte) error
	NewIterator(opts badger.IteratorOptions) *badger.Iterator
}

func putJSON(t txn, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return t.Set([]byte(key), b)
}

func getJSON(t txn, key string, v any) (bool, error) {
	item, err := t.Get([]byte(key))
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	var found bool
	err = item.Value(func(val []byte) error {
		found = true
		return json.Unmarshal(val, v)
	})
	return found, err
}

func scanPrefix(t txn, prefix string, fn func(key, value []byte) error) error {
	it := t.NewIterator(badger.IteratorOptions{Prefix: []byte(prefix), PrefetchValues: true, PrefetchSize: 64})
	defer it.Close()
	for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
		item := it.Item()
		if err := item.Value(func(val []byte) error {
			return fn(item.Key(), val)
		}); err != nil {
			return err
		}
	}
	return nil
}

// ---- Files ----

func upsertFile(t txn, f File) error {
	return putJSON(t, prefixFile+f.Path, f)
}

func getFiles(t txn, paths []string) ([]File, error) {
	var out []File
	for _, p := range paths {
		var f File
		ok, err := getJSON(t, prefixFile+p, &f)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *BadgerStore) UpsertFile(ctx context.Context, f File) error {
	return s.update(func(t txn) error { return upsertFile(t, f) })
}

func (s *BadgerStore) GetFiles(ctx context.Context, paths []string) ([]File, error) {
	var out []File
	err := s.view(func(t txn) error {
		var err error
		out, err = getFiles(t, paths)
		return err
	})
	return out, err
}

func (s *BadgerStore) DeleteFile(ctx context.Context, path string) error {
	return s.update(func(t txn) error { return t.Delete([]byte(prefixFile + path)) })
}

// ---- Functions ----

func upsertFunction(t txn, fn Function) error {
	if err := putJSON(t, prefixFunc+fn.ID, fn); err != nil {
		return err
	}
	return putJSON(t, prefixFuncByName+fn.Name+":"+fn.ID, fn.ID)
}

func (s *BadgerStore) UpsertFunction(ctx context.Context, fn Function) error {
	return s.update(func(t txn) error { return upsertFunction(t, fn) })
}

func (s *BadgerStore) GetFunctions(ctx context.Context, ids []string) ([]Function, error) {
	var out []Function
	err := s.view(func(t txn) error {
		for _, id := range ids {
			var fn Function
			ok, err := getJSON(t, prefixFunc+id, &fn)
			if err != nil {
				return err
			}
			if ok {
				out = append(out, fn)
			}
		}
		return nil
	})
	return out, err
}

func (s *BadgerStore) GetFunctionsByName(ctx context.Context, name string) ([]Function, error) {
	var ids []string
	err := s.view(func(t txn) error {
		return scanPrefix(t, prefixFuncByName+name+":", func(key, value []byte) error {
			var id string
			if err := json.Unmarshal(value, &id); err != nil {
				return err
			}
			ids = append(ids, id)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return s.GetFunctions(ctx, ids)
}

func (s *BadgerStore) GetFunctionsByFile(ctx context.Context, path string) ([]Function, error) {
	var out []Function
	err := s.view(func(t txn) error {
		return scanPrefix(t, prefixFunc, func(key, value []byte) error {
			var fn Function
			if err := json.Unmarshal(value, &fn); err != nil {
				return err
			}
			if fn.FilePath == path {
				out = append(out, fn)
			}
			return nil
		})
	})
	return out, err
}

// ---- Modules ----

func upsertModule(t txn, m Module) error {
	if err := putJSON(t, prefixModule+m.ID, m); err != nil {
		return err
	}
	return putJSON(t, prefixModuleByPath+m.Path, m.ID)
}

func (s *BadgerStore) UpsertModule(ctx context.Context, m Module) error {
	return s.update(func(t txn) error { return upsertModule(t, m) })
}

func (s *BadgerStore) GetModules(ctx context.Context, ids []string) ([]Module, error) {
	var out []Module
	err := s.view(func(t txn) error {
		for _, id := range ids {
			var m Module
			ok, err := getJSON(t, prefixModule+id, &m)
			if err != nil {
				return err
			}
			if ok {
				out = append(out, m)
			}
		}
		return nil
	})
	return out, err
}

func (s *BadgerStore) GetModuleByPath(ctx context.Context, path string) (Module, bool, error) {
	var id string
	var m Module
	found := false
	err := s.view(func(t txn) error {
		ok, err := getJSON(t, prefixModuleByPath+path, &id)
		if err != nil || !ok {
			return err
		}
		found, err = getJSON(t, prefixModule+id, &m)
		return err
	})
	return m, found, err
}

// DeleteModule removes a module. No other package in this repository
// calls it; the bootstrap orchestrator does not delete modules or files.
func (s *BadgerStore) DeleteModule(ctx context.Context, id string) error {
	return s.update(func(t txn) error { return t.Delete([]byte(prefixModule + id)) })
}

// ---- Graph edges ----

func edgeKey(e GraphEdge) string {
	return fmt.Sprintf("%s%s\x00%s\x00%s\x00%s", prefixEdge, e.SourceFile, e.FromID, e.ToID, e.EdgeType)
}

func (s *BadgerStore) UpsertGraphEdge(ctx context.Context, e GraphEdge) error {
	return s.update(func(t txn) error { return putJSON(t, edgeKey(e), e) })
}

// ReplaceFileEdges implements the append-on-reindex invariant: all edges
// whose SourceFile equals sourceFile are deleted, then the new set is
// written, in one transaction.
func (s *BadgerStore) ReplaceFileEdges(ctx context.Context, sourceFile string, edges []GraphEdge) error {
	return s.update(func(t txn) error {
		var stale [][]byte
		if err := scanPrefix(t, prefixEdge+sourceFile+"\x00", func(key, _ []byte) error {
			k := make([]byte, len(key))
			copy(k, key)
			stale = append(stale, k)
			return nil
		}); err != nil {
			return err
		}
		for _, k := range stale {
			if err := t.Delete(k); err != nil {
				return err
			}
		}
		for _, e := range edges {
			if e.SourceFile != sourceFile {
				return fmt.Errorf("edge sourceFile %q does not match reindex target %q", e.SourceFile, sourceFile)
			}
			if err := putJSON(t, edgeKey(e), e); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BadgerStore) GetGraphEdges(ctx context.Context, filter EdgeFilter) ([]GraphEdge, error) {
	var out []GraphEdge
	err := s.view(func(t txn) error {
		return scanPrefix(t, prefixEdge, func(key, value []byte) error {
			var e GraphEdge
			if err := json.Unmarshal(value, &e); err != nil {
				return err
			}
			if edgeMatches(e, filter) {
				out = append(out, e)
			}
			if filter.Limit > 0 && len(out) >= filter.Limit {
				return errStopScan
			}
			return nil
		})
	})
	if err == errStopScan {
		err = nil
	}
	return out, err
}

var errStopScan = fmt.Errorf("stop scan")

func edgeMatches(e GraphEdge, f EdgeFilter) bool {
	if len(f.EdgeTypes) > 0 && !containsEdgeType(f.EdgeTypes, e.EdgeType) {
		return false
	}
	if len(f.FromIDs) > 0 && !containsString(f.FromIDs, e.FromID) {
		return false
	}
	if len(f.ToIDs) > 0 && !containsString(f.ToIDs, e.ToID) {
		return false
	}
	if len(f.SourceFiles) > 0 && !containsString(f.SourceFiles, e.SourceFile) {
		return false
	}
	return true
}

func containsString(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func containsEdgeType(xs []EdgeType, x EdgeType) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

// ---- Context packs ----

func (s *BadgerStore) UpsertContextPack(ctx context.Context, p ContextPack) error {
	if p.SuccessCount+p.FailureCount > p.AccessCount {
		return errs.New(errs.KindStorageError, "invariant violated: successCount+failureCount > accessCount")
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return errs.New(errs.KindStorageError, "invariant violated: confidence out of [0,1]")
	}
	return s.update(func(t txn) error {
		if err := putJSON(t, prefixPack+p.PackID, p); err != nil {
			return err
		}
		return putJSON(t, prefixPackByTarget+p.TargetID+":"+p.PackID, p.PackID)
	})
}

func (s *BadgerStore) GetContextPacks(ctx context.Context, ids []string) ([]ContextPack, error) {
	var out []ContextPack
	err := s.view(func(t txn) error {
		for _, id := range ids {
			var p ContextPack
			ok, err := getJSON(t, prefixPack+id, &p)
			if err != nil {
				return err
			}
			if ok {
				out = append(out, p)
			}
		}
		return nil
	})
	return out, err
}

func (s *BadgerStore) GetContextPacksByTarget(ctx context.Context, targetID string) ([]ContextPack, error) {
	var ids []string
	err := s.view(func(t txn) error {
		return scanPrefix(t, prefixPackByTarget+targetID+":", func(key, value []byte) error {
			var id string
			if err := json.Unmarshal(value, &id); err != nil {
				return err
			}
			ids = append(ids, id)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return s.GetContextPacks(ctx, ids)
}

func (s *BadgerStore) DeleteContextPack(ctx context.Context, packID string) error {
	return s.update(func(t txn) error {
		if err := t.Delete([]byte(prefixPack + packID)); err != nil {
			return err
		}
		return deleteFeedbackForPack(t, packID)
	})
}

func (s *BadgerStore) IncrementPackAccess(ctx context.Context, packID string) error {
	return s.update(func(t txn) error {
		var p ContextPack
		ok, err := getJSON(t, prefixPack+packID, &p)
		if err != nil {
			return err
		}
		if !ok {
			return errs.New(errs.KindStorageError, "pack not found: "+packID)
		}
		p.AccessCount++
		return putJSON(t, prefixPack+packID, p)
	})
}

// ---- Universal knowledge ----

func (s *BadgerStore) UpsertUniversalKnowledge(ctx context.Context, k UniversalKnowledgeRecord) error {
	return s.update(func(t txn) error { return putJSON(t, prefixKnowledge+k.EntityID, k) })
}

func (s *BadgerStore) GetUniversalKnowledge(ctx context.Context, entityID string) (UniversalKnowledgeRecord, bool, error) {
	var k UniversalKnowledgeRecord
	var found bool
	err := s.view(func(t txn) error {
		var err error
		found, err = getJSON(t, prefixKnowledge+entityID, &k)
		return err
	})
	return k, found, err
}

// ---- Feedback ----

func feedbackKey(f FeedbackRecord) string {
	return prefixFeedback + f.PackID + ":" + f.QueryID
}

func (s *BadgerStore) UpsertFeedback(ctx context.Context, f FeedbackRecord) error {
	return s.update(func(t txn) error { return putJSON(t, feedbackKey(f), f) })
}

func (s *BadgerStore) GetFeedback(ctx context.Context, packID string) ([]FeedbackRecord, error) {
	var out []FeedbackRecord
	err := s.view(func(t txn) error {
		return scanPrefix(t, prefixFeedback+packID+":", func(key, value []byte) error {
			var f FeedbackRecord
			if err := json.Unmarshal(value, &f); err != nil {
				return err
			}
			out = append(out, f)
			return nil
		})
	})
	return out, err
}

func deleteFeedbackForPack(t txn, packID string) error {
	var stale [][]byte
	if err := scanPrefix(t, prefixFeedback+packID+":", func(key, _ []byte) error {
		k := make([]byte, len(key))
		copy(k, key)
		stale = append(stale, k)
		return nil
	}); err != nil {
		return err
	}
	for _, k := range stale {
		if err := t.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func (s *BadgerStore) DeleteFeedbackForPack(ctx context.Context, packID string) error {
	return s.update(func(t txn) error { return deleteFeedbackForPack(t, packID) })
}

// ---- Metadata ----

func (s *BadgerStore) GetMeta(ctx context.Context, key string) (string, bool, error) {
	var v string
	var found bool
	err := s.view(func(t txn) error {
		var err error
		found, err = getJSON(t, prefixMeta+key, &v)
		return err
	})
	return v, found, err
}

func (s *BadgerStore) SetMeta(ctx context.Context, key, value string) error {
	return s.update(func(t txn) error { return putJSON(t, prefixMeta+key, value) })
}

// ---- Transaction plumbing ----

func (s *BadgerStore) update(fn func(t txn) error) error {
	err := s.db.Update(func(bt *badger.Txn) error { return fn(bt) })
	if err != nil {
		return errs.StorageError("update", err)
	}
	return nil
}

func (s *BadgerStore) view(fn func(t txn) error) error {
	err := s.db.View(func(bt *badger.Txn) error { return fn(bt) })
	if err != nil {
		return errs.StorageError("view", err)
	}
	return nil
}

// txStore is the Store handed to WithTx's callback: every method runs
// against the same *badger.Txn, so a full-file reindex really is one
// transaction.
type txStore struct {
	t   *badger.Txn
	vec VectorIndex
}

func (s *BadgerStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	bt := s.db.NewTransaction(true)
	defer bt.Discard()
	txs := &txStore{t: bt, vec: s.vector}
	if err := fn(ctx, txs); err != nil {
		return err
	}
	if err := bt.Commit(); err != nil {
		return errs.StorageError("commit", err)
	}
	return nil
}

func (s *txStore) UpsertFile(ctx context.Context, f File) error { return upsertFile(s.t, f) }
func (s *txStore) GetFiles(ctx context.Context, paths []string) ([]File, error) {
	return getFiles(s.t, paths)
}
func (s *txStore) DeleteFile(ctx context.Context, path string) error {
	return s.t.Delete([]byte(prefixFile + path))
}
func (s *txStore) UpsertFunction(ctx context.Context, fn Function) error {
	return upsertFunction(s.t, fn)
}
func (s *txStore) GetFunctions(ctx context.Context, ids []string) ([]Function, error) {
	var out []Function
	for _, id := range ids {
		var fn Function
		ok, err := getJSON(s.t, prefixFunc+id, &fn)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, fn)
		}
	}
	return out, nil
}
func (s *txStore) GetFunctionsByName(ctx context.Context, name string) ([]Function, error) {
	var ids []string
	if err := scanPrefix(s.t, prefixFuncByName+name+":", func(key, value []byte) error {
		var id string
		if err := json.Unmarshal(value, &id); err != nil {
			return err
		}
		ids = append(ids, id)
		return nil
	}); err != nil {
		return nil, err
	}
	return s.GetFunctions(ctx, ids)
}
func (s *txStore) GetFunctionsByFile(ctx context.Context, path string) ([]Function, error) {
	var out []Function
	err := scanPrefix(s.t, prefixFunc, func(key, value []byte) error {
		var fn Function
		if err := json.Unmarshal(value, &fn); err != nil {
			return err
		}
		if fn.FilePath == path {
			out = append(out, fn)
		}
		return nil
	})
	return out, err
}
func (s *txStore) UpsertModule(ctx context.Context, m Module) error { return upsertModule(s.t, m) }
func (s *txStore) GetModules(ctx context.Context, ids []string) ([]Module, error) {
	var out []Module
	for _, id := range ids {
		var m Module
		ok, err := getJSON(s.t, prefixModule+id, &m)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, m)
		}
	}
	return out, nil
}
func (s *txStore) GetModuleByPath(ctx context.Context, path string) (Module, bool, error) {
	var id string
	var m Module
	ok, err := getJSON(s.t, prefixModuleByPath+path, &id)
	if err != nil || !ok {
		return m, false, err
	}
	found, err := getJSON(s.t, prefixModule+id, &m)
	return m, found, err
}
func (s *txStore) DeleteModule(ctx context.Context, id string) error {
	return s.t.Delete([]byte(prefixModule + id))
}
func (s *txStore) UpsertGraphEdge(ctx context.Context, e GraphEdge) error {
	return putJSON(s.t, edgeKey(e), e)
}
func (s *txStore) ReplaceFileEdges(ctx context.Context, sourceFile string, edges []GraphEdge) error {
	var stale [][]byte
	if err := scanPrefix(s.t, prefixEdge+sourceFile+"\x00", func(key, _ []byte) error {
		k := make([]byte, len(key))
		copy(k, key)
		stale = append(stale, k)
		return nil
	}); err != nil {
		return err
	}
	for _, k := range stale {
		if err := s.t.Delete(k); err != nil {
			return err
		}
	}
	for _, e := range edges {
		if err := putJSON(s.t, edgeKey(e), e); err != nil {
			return err
		}
	}
	return nil
}
func (s *txStore) GetGraphEdges(ctx context.Context, filter EdgeFilter) ([]GraphEdge, error) {
	var out []GraphEdge
	err := scanPrefix(s.t, prefixEdge, func(key, value []byte) error {
		var e GraphEdge
		if err := json.Unmarshal(value, &e); err != nil {
			return err
		}
		if edgeMatches(e, filter) {
			out = append(out, e)
		}
		return nil
	})
	return out, err
}
func (s *txStore) UpsertContextPack(ctx context.Context, p ContextPack) error {
	if p.SuccessCount+p.FailureCount > p.AccessCount {
		return errs.New(errs.KindStorageError, "invariant violated: successCount+failureCount > accessCount")
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return errs.New(errs.KindStorageError, "invariant violated: confidence out of [0,1]")
	}
	if err := putJSON(s.t, prefixPack+p.PackID, p); err != nil {
		return err
	}
	return putJSON(s.t, prefixPackByTarget+p.TargetID+":"+p.PackID, p.PackID)
}
func (s *txStore) GetContextPacks(ctx context.Context, ids []string) ([]ContextPack, error) {
	var out []ContextPack
	for _, id := range ids {
		var p ContextPack
		ok, err := getJSON(s.t, prefixPack+id, &p)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, p)
		}
	}
	return out, nil
}
func (s *txStore) GetContextPacksByTarget(ctx context.Context, targetID string) ([]ContextPack, error) {
	var ids []string
	if err := scanPrefix(s.t, prefixPackByTarget+targetID+":", func(key, value []byte) error {
		var id string
		if err := json.Unmarshal(value, &id); err != nil {
			return err
		}
		ids = append(ids, id)
		return nil
	}); err != nil {
		return nil, err
	}
	return s.GetContextPacks(ctx, ids)
}
func (s *txStore) DeleteContextPack(ctx context.Context, packID string) error {
	if err := s.t.Delete([]byte(prefixPack + packID)); err != nil {
		return err
	}
	return deleteFeedbackForPack(s.t, packID)
}
func (s *txStore) IncrementPackAccess(ctx context.Context, packID string) error {
	var p ContextPack
	ok, err := getJSON(s.t, prefixPack+packID, &p)
	if err != nil {
		return err
	}
	if !ok {
		return errs.New(errs.KindStorageError, "pack not found: "+packID)
	}
	p.AccessCount++
	return putJSON(s.t, prefixPack+packID, p)
}
func (s *txStore) UpsertUniversalKnowledge(ctx context.Context, k UniversalKnowledgeRecord) error {
	return putJSON(s.t, prefixKnowledge+k.EntityID, k)
}
func (s *txStore) GetUniversalKnowledge(ctx context.Context, entityID string) (UniversalKnowledgeRecord, bool, error) {
	var k UniversalKnowledgeRecord
	found, err := getJSON(s.t, prefixKnowledge+entityID, &k)
	return k, found, err
}
func (s *txStore) UpsertFeedback(ctx context.Context, f FeedbackRecord) error {
	return putJSON(s.t, feedbackKey(f), f)
}
func (s *txStore) GetFeedback(ctx context.Context, packID string) ([]FeedbackRecord, error) {
	var out []FeedbackRecord
	err := scanPrefix(s.t, prefixFeedback+packID+":", func(key, value []byte) error {
		var f FeedbackRecord
		if err := json.Unmarshal(value, &f); err != nil {
			return err
		}
		out = append(out, f)
		return nil
	})
	return out, err
}
func (s *txStore) DeleteFeedbackForPack(ctx context.Context, packID string) error {
	return deleteFeedbackForPack(s.t, packID)
}
func (s *txStore) GetMeta(ctx context.Context, key string) (string, bool, error) {
	var v string
	found, err := getJSON(s.t, prefixMeta+key, &v)
	return v, found, err
}
func (s *txStore) SetMeta(ctx context.Context, key, value string) error {
	return putJSON(s.t, prefixMeta+key, value)
}
func (s *txStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	// Nested transactions reuse the outer one: badger has no savepoints,
	// and the orchestrator never nests WithTx calls in practice.
	return fn(ctx, s)
}
func (s *txStore) Close() error { return nil }
