package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorePutGet(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()
	sid := uuid.New()

	_, err := store.Get(ctx, sid)
	assert.ErrorIs(t, err, ErrMiss)

	want := SessionState{Status: "active", Version: 7}
	require.NoError(t, store.Put(ctx, sid, want, 30*time.Second))

	got, err := store.Get(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestMemoryStoreInvalidate(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()
	sid := uuid.New()

	require.NoError(t, store.Put(ctx, sid, SessionState{Status: "active", Version: 1}, 0))
	require.NoError(t, store.Invalidate(ctx, sid))

	_, err := store.Get(ctx, sid)
	assert.ErrorIs(t, err, ErrMiss)

	// Invalidating an absent key is not an error.
	assert.NoError(t, store.Invalidate(ctx, sid))
}

func TestMemoryStoreClampsTTL(t *testing.T) {
	store := NewMemoryStore(20 * time.Millisecond)
	ctx := context.Background()
	sid := uuid.New()

	// Requested TTL exceeds the cap, so the entry must still expire
	// within maxTTL.
	require.NoError(t, store.Put(ctx, sid, SessionState{Status: "active", Version: 1}, time.Hour))
	time.Sleep(40 * time.Millisecond)

	_, err := store.Get(ctx, sid)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemoryStoreResultRoundtrip(t *testing.T) {
	type pair struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}

	store := NewMemoryStore(time.Minute)
	ctx := context.Background()
	tokenID := uuid.New()

	var missing pair
	assert.ErrorIs(t, store.GetResult(ctx, tokenID, &missing), ErrMiss)

	require.NoError(t, store.PutResult(ctx, tokenID, pair{Access: "a", Refresh: "r"}, time.Second))

	var got pair
	require.NoError(t, store.GetResult(ctx, tokenID, &got))
	assert.Equal(t, pair{Access: "a", Refresh: "r"}, got)
}

func TestMemoryStoreResultExpires(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()
	tokenID := uuid.New()

	require.NoError(t, store.PutResult(ctx, tokenID, map[string]string{"k": "v"}, 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	var got map[string]string
	assert.ErrorIs(t, store.GetResult(ctx, tokenID, &got), ErrMiss)
}
