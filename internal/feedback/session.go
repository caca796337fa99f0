// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package feedback

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/librarian/internal/errs"
)

// Defaults for the session protocol.
const (
	DefaultMaxConcurrentSessions = 50
	DefaultPackCap               = 200
	DefaultTTL                   = 30 * time.Minute
)

// TurnType discriminates one session turn.
type TurnType string

const (
	TurnStart     TurnType = "start"
	TurnFollowUp  TurnType = "follow_up"
	TurnDrillDown TurnType = "drill_down"
	TurnSummarize TurnType = "summarize"
)

// Turn is one appended record in a session's history.
type Turn struct {
	Type      TurnType
	Question  string
	Response  string
	PackIDs   []string
	CreatedAt time.Time
}

// ContextAssemblySession accumulates a multi-turn context-assembly
// conversation: start, zero or more followUp/drillDown calls, and an
// eventual summarize/close. Every mutating method is serialized through
// a per-session fair lock so concurrent callers never interleave turns.
type ContextAssemblySession struct {
	ID              string
	Query           string
	CreatedAt       time.Time
	ExpiresAt       time.Time
	ExploredEntities []string
	Turns           []Turn

	packCap int
	mu      sync.Mutex // fair: Go's sync.Mutex already queues FIFO-ish under contention
	packSet map[string]struct{}
}

func (s *ContextAssemblySession) expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

func (s *ContextAssemblySession) recordTurn(t Turn, packIDs []string) error {
	if len(s.packSet)+len(packIDs) > s.packCap {
		return errs.ContextSession("pack_cap")
	}
	for _, id := range packIDs {
		s.packSet[id] = struct{}{}
	}
	s.Turns = append(s.Turns, t)
	return nil
}

// FollowUp appends a follow-up question's turn.
func (s *ContextAssemblySession) FollowUp(question string, response string, packIDs []string, now time.Time) error {
	if question == "" {
		return errs.ContextSession("invalid_question")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expired(now) {
		return errs.ContextSession("expired")
	}
	return s.recordTurn(Turn{Type: TurnFollowUp, Question: question, Response: response, PackIDs: packIDs, CreatedAt: now}, packIDs)
}

// DrillDown refocuses the session onto a specific entity, adding it to
// ExploredEntities so subsequent queries can be biased toward it.
func (s *ContextAssemblySession) DrillDown(entityID string, packIDs []string, now time.Time) error {
	if entityID == "" {
		return errs.ContextSession("invalid_question")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expired(now) {
		return errs.ContextSession("expired")
	}
	if err := s.recordTurn(Turn{Type: TurnDrillDown, Question: entityID, PackIDs: packIDs, CreatedAt: now}, packIDs); err != nil {
		return err
	}
	s.ExploredEntities = append(s.ExploredEntities, entityID)
	return nil
}

// Summarize appends a summary turn and returns the full turn history.
func (s *ContextAssemblySession) Summarize(now time.Time) ([]Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expired(now) {
		return nil, errs.ContextSession("expired")
	}
	s.Turns = append(s.Turns, Turn{Type: TurnSummarize, CreatedAt: now})
	out := make([]Turn, len(s.Turns))
	copy(out, s.Turns)
	return out, nil
}

// Manager tracks live sessions and enforces the concurrency cap.
type Manager struct {
	mu             sync.Mutex
	sessions       map[string]*ContextAssemblySession
	maxConcurrent  int
	packCap        int
	ttl            time.Duration
	now            func() time.Time
}

// NewManager validates and applies defaults for invalid (zero or
// negative) configuration values, mirroring the rest of this tree's
// NewXxx(config) constructor idiom.
func NewManager(maxConcurrent, packCap int, ttl time.Duration) *Manager {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentSessions
	}
	if packCap <= 0 {
		packCap = DefaultPackCap
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		sessions:      make(map[string]*ContextAssemblySession),
		maxConcurrent: maxConcurrent,
		packCap:       packCap,
		ttl:           ttl,
		now:           time.Now,
	}
}

// Start begins a new session, rejecting it if the manager is already at
// its concurrent-session cap. Expired sessions are swept first so a
// long-idle manager doesn't falsely report itself full.
func (m *Manager) Start(query string) (*ContextAssemblySession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweepLocked(now)

	if len(m.sessions) >= m.maxConcurrent {
		return nil, errs.ContextSession("limit_exceeded")
	}

	id := uuid.NewString()

	s := &ContextAssemblySession{
		ID:        id,
		Query:     query,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
		packCap:   m.packCap,
		packSet:   make(map[string]struct{}),
		Turns:     []Turn{{Type: TurnStart, Question: query, CreatedAt: now}},
	}
	m.sessions[id] = s
	return s, nil
}

// Get returns a live, unexpired session.
func (m *Manager) Get(id string) (*ContextAssemblySession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, errs.ContextSession("not_found")
	}
	if s.expired(m.now()) {
		delete(m.sessions, id)
		return nil, errs.ContextSession("expired")
	}
	return s, nil
}

// Close ends a session explicitly, freeing its concurrency slot.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

func (m *Manager) sweepLocked(now time.Time) {
	for id, s := range m.sessions {
		if s.expired(now) {
			delete(m.sessions, id)
		}
	}
}
