// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package evidence

import (
	"context"
	"sync"
	"time"

	"github.com/AleutianAI/librarian/internal/storage"
)

// Context supplies a defeater predicate with the state it needs to decide
// whether a knowledge record is still valid: the file's current content
// hash, a storage handle, and the workspace root.
type Context struct {
	CurrentHash string
	Store       storage.Store
	Workspace   string
}

// Result is what a defeater predicate reports.
type Result struct {
	Activated bool
	Reason    string
}

// Predicate is one defeater: (record, context) -> result. Implementations
// must return promptly; Run enforces the timeout regardless.
type Predicate func(ctx context.Context, record storage.UniversalKnowledgeRecord, dctx Context) Result

// Named pairs a predicate with the name recorded on storage.Defeater.
type Named struct {
	Name      string
	Predicate Predicate
}

// DefaultTimeout is the bounded timeout a defeater check runs under
// unless the caller overrides it.
const DefaultTimeout = 2 * time.Second

// Registry holds the named defeaters the generator runs before persisting
// a record. Construction is the only global-singleton pattern this
// package allows: callers build one Registry via New and pass it where
// needed rather than reaching for package-level state.
type Registry struct {
	mu        sync.RWMutex
	defeaters []Named
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{}
}

// Register adds a named defeater. Registering the same name twice keeps
// both; Run reports every activation under its own name.
func (r *Registry) Register(name string, p Predicate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defeaters = append(r.defeaters, Named{Name: name, Predicate: p})
}

// Run evaluates every registered defeater against record under timeout,
// and returns one storage.Defeater per registered predicate. A predicate
// that does not return within timeout, or whose result is otherwise
// unusable, is recorded as activated with reason "timeout" — a malformed
// defeater result is treated as a timeout, not a crash.
func (r *Registry) Run(ctx context.Context, record storage.UniversalKnowledgeRecord, dctx Context, timeout time.Duration) []storage.Defeater {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	r.mu.RLock()
	defeaters := make([]Named, len(r.defeaters))
	copy(defeaters, r.defeaters)
	r.mu.RUnlock()

	out := make([]storage.Defeater, len(defeaters))
	var wg sync.WaitGroup
	for i, d := range defeaters {
		wg.Add(1)
		go func(i int, d Named) {
			defer wg.Done()
			out[i] = runOne(ctx, d, record, dctx, timeout)
		}(i, d)
	}
	wg.Wait()
	return out
}

func runOne(ctx context.Context, d Named, record storage.UniversalKnowledgeRecord, dctx Context, timeout time.Duration) storage.Defeater {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resCh := make(chan Result, 1)
	go func() {
		defer func() {
			// A panicking predicate is a malformed result, not a crash
			// that should take down the generation worker.
			if recover() != nil {
				resCh <- Result{Activated: true, Reason: "timeout"}
			}
		}()
		resCh <- d.Predicate(callCtx, record, dctx)
	}()

	select {
	case res := <-resCh:
		if callCtx.Err() != nil {
			return storage.Defeater{Name: d.Name, Activated: true, Reason: "timeout"}
		}
		if res.Reason == "" && !res.Activated {
			return storage.Defeater{Name: d.Name, Activated: false, Reason: ""}
		}
		return storage.Defeater{Name: d.Name, Activated: res.Activated, Reason: res.Reason}
	case <-callCtx.Done():
		return storage.Defeater{Name: d.Name, Activated: true, Reason: "timeout"}
	}
}

// HashMismatch is the one stock defeater every generator wires: the
// record's identity hash must still match the file's current content
// hash, or the record is stale.
func HashMismatch(_ context.Context, record storage.UniversalKnowledgeRecord, dctx Context) Result {
	if record.Hash == "" || dctx.CurrentHash == "" {
		return Result{Activated: false}
	}
	if record.Hash != dctx.CurrentHash {
		return Result{Activated: true, Reason: "content hash changed since generation"}
	}
	return Result{Activated: false}
}
