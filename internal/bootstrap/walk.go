// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package bootstrap implements the orchestrator: provider probe, file
// enumeration, parse+insert, batch embedding, knowledge generation
// fan-out and the final budget report.
package bootstrap

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/AleutianAI/librarian/internal/storage"
)

// languageByExt is the fixed extension -> language map librarian walks
// with by default. Walk keeps only files whose extension is listed here;
// a walked file whose language has no registered parser is skipped by
// the orchestrator and no File record is written for it.
var languageByExt = map[string]string{
	".go": "go",
}

// defaultIgnoredDirs are never descended into.
var defaultIgnoredDirs = map[string]struct{}{
	".git":         {},
	"node_modules": {},
	"vendor":       {},
	".librarian":   {},
}

// FileEntry is one file discovered during enumeration, already hashed.
type FileEntry struct {
	Path     string // relative to workspace root
	AbsPath  string
	Language string
	Hash     string
	Content  []byte
}

// Walk enumerates every recognized-language file under root, skipping
// ignored directories, and computes each file's content hash up front.
func Walk(root string) ([]FileEntry, error) {
	var entries []FileEntry
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if _, ignored := defaultIgnoredDirs[info.Name()]; ignored && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		lang, ok := languageByExt[strings.ToLower(filepath.Ext(path))]
		if !ok {
			return nil
		}
		content, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil // unreadable file: skip rather than abort the whole walk
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		entries = append(entries, FileEntry{
			Path:     rel,
			AbsPath:  path,
			Language: lang,
			Hash:     storage.HashContent(string(content)),
			Content:  content,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Changed filters entries against the store's current File records,
// returning only those whose content hash differs (or that are new).
// full bootstrap mode should pass an empty existing map so every file is
// treated as changed.
func Changed(entries []FileEntry, existing map[string]storage.File) []FileEntry {
	var out []FileEntry
	for _, e := range entries {
		if prev, ok := existing[e.Path]; ok && prev.Hash == e.Hash {
			continue
		}
		out = append(out, e)
	}
	return out
}
