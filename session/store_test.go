package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewStore(rdb, "ms", false, false, 0), rdb
}

func newTestSession(sessionID, memberID string, ttl time.Duration) *Session {
	now := time.Now()
	return &Session{
		SessionID:    sessionID,
		MemberID:     memberID,
		IP:           "203.0.113.7",
		UserAgent:    "test-agent",
		Active:       true,
		CreatedAt:    now.Unix(),
		LastActiveAt: now.Unix(),
		ExpiresAt:    now.Add(ttl).Unix(),
	}
}

func TestSaveGetRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	sess := newTestSession("sess-1", "member-1", time.Hour)
	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.MemberID != "member-1" || got.IP != "203.0.113.7" || got.UserAgent != "test-agent" {
		t.Fatalf("round trip lost fields: %+v", got)
	}
	if !got.Active {
		t.Fatalf("session not active after save")
	}
}

func TestGetUnknownSession(t *testing.T) {
	store, _ := newTestStore(t)

	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, redis.Nil) {
		t.Fatalf("expected redis.Nil, got %v", err)
	}
}

func TestRevokeHidesButRetains(t *testing.T) {
	store, rdb := newTestStore(t)
	ctx := context.Background()

	sess := newTestSession("sess-1", "member-1", time.Hour)
	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Revoke(ctx, "sess-1"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	// Revoked and never-existed must be indistinguishable through Get.
	if _, err := store.Get(ctx, "sess-1"); !errors.Is(err, redis.Nil) {
		t.Fatalf("expected redis.Nil for revoked session, got %v", err)
	}

	if rdb.Exists(ctx, "ms:sess-1").Val() != 1 {
		t.Fatalf("revoked record not retained")
	}
	got, err := store.GetReadOnly(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetReadOnly: %v", err)
	}
	if got.Active {
		t.Fatalf("revoked record still marked active")
	}

	// Index entry must be gone.
	if n, _ := store.ActiveSessionCount(ctx, "member-1"); n != 0 {
		t.Fatalf("expected 0 indexed sessions, got %d", n)
	}
}

func TestRevokeIsIdempotent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Revoke(ctx, "missing"); err != nil {
		t.Fatalf("Revoke unknown session: %v", err)
	}

	sess := newTestSession("sess-1", "member-1", time.Hour)
	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Revoke(ctx, "sess-1"); err != nil {
		t.Fatalf("first Revoke: %v", err)
	}
	if err := store.Revoke(ctx, "sess-1"); err != nil {
		t.Fatalf("second Revoke: %v", err)
	}
}

func TestMultiDeviceRevokeAll(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"sess-1", "sess-2", "sess-3"} {
		if err := store.Save(ctx, newTestSession(id, "member-1", time.Hour), time.Hour); err != nil {
			t.Fatalf("Save %s: %v", id, err)
		}
	}
	if err := store.Save(ctx, newTestSession("other-1", "member-2", time.Hour), time.Hour); err != nil {
		t.Fatalf("Save other: %v", err)
	}

	if n, _ := store.ActiveSessionCount(ctx, "member-1"); n != 3 {
		t.Fatalf("expected 3 sessions, got %d", n)
	}

	if err := store.RevokeAllForMember(ctx, "member-1"); err != nil {
		t.Fatalf("RevokeAllForMember: %v", err)
	}

	for _, id := range []string{"sess-1", "sess-2", "sess-3"} {
		if _, err := store.Get(ctx, id); !errors.Is(err, redis.Nil) {
			t.Fatalf("session %s survived revoke-all: %v", id, err)
		}
	}

	// Other member untouched.
	if _, err := store.Get(ctx, "other-1"); err != nil {
		t.Fatalf("unrelated session revoked: %v", err)
	}
}

func TestLazyExpiry(t *testing.T) {
	store, rdb := newTestStore(t)
	ctx := context.Background()

	sess := newTestSession("sess-1", "member-1", -time.Second)
	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, err := store.Get(ctx, "sess-1"); !errors.Is(err, redis.Nil) {
		t.Fatalf("expected redis.Nil for expired session, got %v", err)
	}

	// Expired record is deleted on observation, index included.
	if rdb.Exists(ctx, "ms:sess-1").Val() != 0 {
		t.Fatalf("expired record not deleted")
	}
	if n, _ := store.ActiveSessionCount(ctx, "member-1"); n != 0 {
		t.Fatalf("expired session still indexed")
	}
}

func TestTouchUpdatesLastActive(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	sess := newTestSession("sess-1", "member-1", time.Hour)
	sess.LastActiveAt = time.Now().Add(-time.Hour).Unix()
	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("Save: %v", err)
	}

	at := time.Now()
	if err := store.Touch(ctx, "sess-1", at); err != nil {
		t.Fatalf("Touch: %v", err)
	}

	got, err := store.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.LastActiveAt != at.Unix() {
		t.Fatalf("LastActiveAt not updated: got %d want %d", got.LastActiveAt, at.Unix())
	}
}

func TestTouchUnknownSessionIsNoop(t *testing.T) {
	store, _ := newTestStore(t)

	if err := store.Touch(context.Background(), "missing", time.Now()); err != nil {
		t.Fatalf("Touch unknown session: %v", err)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	sess := &Session{
		MemberID:     "member-1",
		IP:           "198.51.100.23",
		UserAgent:    "Mozilla/5.0",
		RememberMe:   true,
		Active:       true,
		CreatedAt:    1700000000,
		LastActiveAt: 1700000100,
		ExpiresAt:    1700003600,
	}

	data, err := Encode(sess)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.MemberID != sess.MemberID || got.IP != sess.IP || got.UserAgent != sess.UserAgent {
		t.Fatalf("string fields lost: %+v", got)
	}
	if !got.RememberMe || !got.Active {
		t.Fatalf("flags lost: %+v", got)
	}
	if got.CreatedAt != sess.CreatedAt || got.LastActiveAt != sess.LastActiveAt || got.ExpiresAt != sess.ExpiresAt {
		t.Fatalf("timestamps lost: %+v", got)
	}
}

func TestDecodeRejectsBadVersion(t *testing.T) {
	if _, err := Decode([]byte{99, 0}); err == nil {
		t.Fatalf("expected error for unknown version")
	}
	if _, err := Decode(nil); err == nil {
		t.Fatalf("expected error for empty payload")
	}
}
