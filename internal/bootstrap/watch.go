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
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeHandler receives a debounced, deduplicated batch of the paths
// (as fsnotify reports them under the watched root) that changed since
// the last batch.
type ChangeHandler func(paths []string)

// Watcher watches a workspace root with fsnotify and hands its
// ChangeHandler debounced, deduplicated batches of changed files in
// recognized languages. It runs no bootstrap itself; the librarian CLI's
// watch command reruns an incremental bootstrap on each batch.
type Watcher struct {
	root     string
	watcher  *fsnotify.Watcher
	handler  ChangeHandler
	debounce time.Duration

	changes  chan string
	done     chan struct{}
	stopOnce sync.Once

	mu       sync.RWMutex
	watching bool
}

// DefaultDebounce is how long Watcher waits for a quiet period before
// flushing a batch to its handler.
const DefaultDebounce = 250 * time.Millisecond

// NewWatcher builds a Watcher rooted at a workspace, skipping the same
// directories Walk skips.
func NewWatcher(root string, handler ChangeHandler) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		root:     root,
		watcher:  fw,
		handler:  handler,
		debounce: DefaultDebounce,
		changes:  make(chan string, 256),
		done:     make(chan struct{}),
	}, nil
}

// Start recursively watches root and begins debouncing changes. Only
// recognized-language files (per languageByExt) reach the handler;
// everything else is still watched (a new subdirectory needs a watch
// added even if the file that triggered it isn't itself relevant).
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	if err := w.addRecursive(w.root); err != nil {
		return err
	}
	go w.processEvents(ctx)
	go w.debounceLoop(ctx)
	return nil
}

// Stop releases the underlying fsnotify watcher. Safe to call more than
// once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.watcher.Close()
		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if _, ignored := defaultIgnoredDirs[d.Name()]; ignored && path != root {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Create) {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					_ = w.watcher.Add(ev.Name)
				}
			}
			if _, ok := languageByExt[strings.ToLower(filepath.Ext(ev.Name))]; !ok {
				continue
			}
			select {
			case w.changes <- ev.Name:
			default:
			}
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	seen := map[string]struct{}{}
	var batch []string
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if w.handler != nil {
			w.handler(batch)
		}
		batch = nil
		seen = map[string]struct{}{}
		if timer != nil {
			timer.Stop()
			timer, timerC = nil, nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-w.done:
			flush()
			return
		case path := <-w.changes:
			if _, dup := seen[path]; !dup {
				seen[path] = struct{}{}
				batch = append(batch, path)
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			flush()
		}
	}
}
