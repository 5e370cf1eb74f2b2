// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package viewer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ManuGH/imjs-viewer/internal/identity"
	"github.com/ManuGH/imjs-viewer/internal/store"
)

const recordPrefix = "session:"

// Record is everything persisted for one browser session.
type Record struct {
	ID        string         `json:"id"`
	App       AppState       `json:"app"`
	Auth      identity.State `json:"auth"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Sessions persists records in a store. Mutations of the same session are
// serialized.
type Sessions struct {
	store store.Store
	ttl   time.Duration
	now   func() time.Time
	locks keyedMutex
}

// NewSessions creates a repository whose records expire ttl after their last update.
func NewSessions(s store.Store, ttl time.Duration) *Sessions {
	return &Sessions{store: s, ttl: ttl, now: time.Now}
}

// Load returns the record of id, or a fresh one when none is stored.
func (s *Sessions) Load(ctx context.Context, id string) (*Record, error) {
	data, err := s.store.Get(ctx, recordPrefix+id)
	if errors.Is(err, store.ErrNotFound) {
		return &Record{ID: id}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		// A record we cannot read is treated as a new session.
		return &Record{ID: id}, nil
	}
	rec.ID = id
	return &rec, nil
}

// Save stores rec and extends its lifetime.
func (s *Sessions) Save(ctx context.Context, rec *Record) error {
	rec.UpdatedAt = s.now().UTC()
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.store.Put(ctx, recordPrefix+rec.ID, data, s.ttl); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Delete removes the record of id.
func (s *Sessions) Delete(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()
	if err := s.store.Delete(ctx, recordPrefix+id); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Update loads the record of id, applies fn and saves the result while holding
// the session's lock. The record is saved even when fn fails; fn's error is
// returned.
func (s *Sessions) Update(ctx context.Context, id string, fn func(*Record) error) (*Record, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	rec, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	fnErr := fn(rec)
	if err := s.Save(ctx, rec); err != nil {
		return rec, errors.Join(fnErr, err)
	}
	return rec, fnErr
}

// keyedMutex is a set of mutexes created on demand and dropped when unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

// Lock locks key and returns its unlock function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
