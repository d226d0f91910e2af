package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"fabula/api/internal/store"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	sessions, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	return sessions, s
}

func TestSaveAndLookupRefreshSession(t *testing.T) {
	sessions, _ := setupTestRedis(t)
	defer sessions.Close()
	ctx := context.Background()

	user := store.User{ID: "usr_1", Name: "Quinn", Email: "quinn@example.com"}
	if err := sessions.SaveRefreshSession(ctx, "hash-1", user, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}

	got, err := sessions.LookupRefreshSession(ctx, "hash-1")
	if err != nil {
		t.Fatalf("LookupRefreshSession failed: %v", err)
	}
	if got.ID != user.ID || got.Name != user.Name || got.Email != user.Email {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestLookupUnknownToken(t *testing.T) {
	sessions, _ := setupTestRedis(t)
	defer sessions.Close()

	if _, err := sessions.LookupRefreshSession(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for unknown token")
	}
}

func TestRevokeRefreshSession(t *testing.T) {
	sessions, _ := setupTestRedis(t)
	defer sessions.Close()
	ctx := context.Background()

	user := store.User{ID: "usr_2", Name: "Ridley", Email: "ridley@example.com"}
	if err := sessions.SaveRefreshSession(ctx, "hash-2", user, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}
	if err := sessions.RevokeRefreshSession(ctx, "hash-2"); err != nil {
		t.Fatalf("RevokeRefreshSession failed: %v", err)
	}
	if _, err := sessions.LookupRefreshSession(ctx, "hash-2"); err == nil {
		t.Fatal("expected error after revoke")
	}
}

func TestRefreshSessionExpiry(t *testing.T) {
	sessions, mr := setupTestRedis(t)
	defer sessions.Close()
	ctx := context.Background()

	user := store.User{ID: "usr_3", Name: "Sam", Email: "sam@example.com"}
	if err := sessions.SaveRefreshSession(ctx, "hash-3", user, time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}

	// Fast-forward past the TTL in miniredis
	mr.FastForward(2 * time.Minute)

	if _, err := sessions.LookupRefreshSession(ctx, "hash-3"); err == nil {
		t.Fatal("expected error after expiry")
	}
}
