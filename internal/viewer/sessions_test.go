// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package viewer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/ManuGH/imjs-viewer/internal/auth"
	"github.com/ManuGH/imjs-viewer/internal/identity"
	"github.com/ManuGH/imjs-viewer/internal/imodel"
	"github.com/ManuGH/imjs-viewer/internal/store"
)

func newTestSessions(t *testing.T) (*Sessions, *store.MemoryStore) {
	t.Helper()
	mem := store.NewMemoryStore(time.Minute)
	t.Cleanup(func() { _ = mem.Close() })
	return NewSessions(mem, time.Hour), mem
}

func TestSessions_LoadMissingIsFresh(t *testing.T) {
	s, _ := newTestSessions(t)
	rec, err := s.Load(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", rec.ID)
	assert.Nil(t, rec.App.Container())
}

func TestSessions_SaveLoad(t *testing.T) {
	s, _ := newTestSessions(t)
	ctx := context.Background()

	rec := &Record{ID: "abc"}
	rec.App.Session = SessionState{IsAuthorized: true}
	rec.App.Select(&imodel.Handle{ProjectID: "p", IModelID: "m", Key: "m:0"}, "0x1")
	rec.Auth = identity.State{
		Token:     &oauth2.Token{AccessToken: "a", RefreshToken: "r"},
		Principal: &auth.Principal{ID: "user-1"},
	}
	require.NoError(t, s.Save(ctx, rec))
	assert.False(t, rec.UpdatedAt.IsZero())

	got, err := s.Load(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "m", got.App.Container().IModelID)
	assert.Equal(t, "0x1", got.App.ViewID().String())
	assert.Equal(t, "r", got.Auth.Token.RefreshToken)
	assert.Equal(t, "user-1", got.Auth.Principal.ID)

	require.NoError(t, s.Delete(ctx, "abc"))
	got, err = s.Load(ctx, "abc")
	require.NoError(t, err)
	assert.Nil(t, got.Auth.Token)
}

func TestSessions_CorruptRecordStartsOver(t *testing.T) {
	s, mem := newTestSessions(t)
	ctx := context.Background()
	require.NoError(t, mem.Put(ctx, recordPrefix+"abc", []byte("{not json"), time.Hour))

	rec, err := s.Load(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, &Record{ID: "abc"}, rec)
}

func TestSessions_UpdateSavesEvenOnError(t *testing.T) {
	s, _ := newTestSessions(t)
	ctx := context.Background()
	boom := errors.New("boom")

	_, err := s.Update(ctx, "abc", func(r *Record) error {
		r.App.Session.IsLoading = true
		return boom
	})
	assert.ErrorIs(t, err, boom)

	rec, err := s.Load(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, rec.App.Session.IsLoading)
}

func TestSessions_UpdateSerializesPerSession(t *testing.T) {
	s, _ := newTestSessions(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Update(ctx, "abc", func(r *Record) error {
				// Each writer appends to the principal id; lost updates
				// would leave it shorter.
				if r.Auth.Principal == nil {
					r.Auth.Principal = &auth.Principal{}
				}
				r.Auth.Principal.ID += "x"
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	rec, err := s.Load(ctx, "abc")
	require.NoError(t, err)
	assert.Len(t, rec.Auth.Principal.ID, 20)
	assert.Zero(t, s.locks.size())
}

func TestKeyedMutex_IndependentKeys(t *testing.T) {
	var k keyedMutex
	unlockA := k.Lock("a")
	done := make(chan struct{})
	go func() {
		unlockB := k.Lock("b")
		unlockB()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b blocked behind a")
	}
	unlockA()
	assert.Zero(t, k.size())
}
