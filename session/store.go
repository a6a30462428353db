package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable is an exported constant or variable used by the authentication engine.
var ErrRedisUnavailable = errors.New("redis unavailable")

const minSlidingTTL = time.Second

const deleteSessionScript = `
local existed = redis.call("EXISTS", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
if existed == 1 then
  redis.call("DEL", KEYS[1])
end
return existed
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

// Store is a Redis-backed session registry that handles persistence, lazy
// expiration, sliding renewal, revocation, and the per-member session index
// used for multi-device logout.
//
//	Docs: docs/session.md
type Store struct {
	redis         redis.UniversalClient
	prefix        string
	sliding       bool
	jitterEnabled bool
	jitterRange   time.Duration
}

// NewStore creates a session [Store] backed by the given Redis client.
// prefix sets the Redis key namespace; slidingExp, jitterEnabled, and
// jitterRange control expiration behavior.
//
//	Docs: docs/session.md
func NewStore(
	redis redis.UniversalClient,
	prefix string,
	sliding bool,
	jitterEnabled bool,
	jitterRange time.Duration,
) *Store {
	return &Store{
		redis:         redis,
		prefix:        prefix,
		sliding:       sliding,
		jitterEnabled: jitterEnabled,
		jitterRange:   jitterRange,
	}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

func (s *Store) memberKey(memberID string) string {
	return s.prefix + "m:" + memberID
}

// Save persists a [Session] to Redis with the given TTL and registers it in
// the member's session index.
//
//	Performance: 2 Redis commands (SET + SADD).
//	Docs: docs/session.md
func (s *Store) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	data, err := Encode(sess)
	if err != nil {
		return err
	}

	sessionKey := s.key(sess.SessionID)
	memberKey := s.memberKey(sess.MemberID)

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey, data, ttl)
		pipe.SAdd(ctx, memberKey, sess.SessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Get retrieves a live session by ID. Revoked-but-retained sessions and
// sessions that never existed are indistinguishable: both return redis.Nil.
//
//	Performance: 1 Redis GET (+1 EXPIRE when sliding).
//	Docs: docs/session.md
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	key := s.key(sessionID)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, err
	}
	sess.SessionID = sessionID

	if !sess.Active {
		return nil, redis.Nil
	}

	now := time.Now()
	remaining := time.Unix(sess.ExpiresAt, 0).Sub(now)
	if remaining <= 0 {
		if err := s.deleteSessionAndIndex(ctx, sess.MemberID, sessionID); err != nil {
			return nil, err
		}
		return nil, redis.Nil
	}

	if s.sliding {
		nextTTL, err := s.nextSlidingTTL(remaining)
		if err != nil {
			return nil, err
		}

		if err := s.redis.Expire(ctx, key, nextTTL).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return sess, nil
}

// Touch updates LastActiveAt on a live session, preserving the remaining TTL.
// Touch is best-effort: losing one update under contention is not a fault,
// so no WATCH transaction guards the rewrite.
func (s *Store) Touch(ctx context.Context, sessionID string, at time.Time) error {
	key := s.key(sessionID)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return err
	}
	if !sess.Active {
		return nil
	}

	pttl, err := s.redis.PTTL(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if pttl <= 0 {
		return nil
	}

	sess.LastActiveAt = at.Unix()
	encoded, err := Encode(sess)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, key, encoded, pttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Revoke marks a session inactive and removes it from the member index. The
// record is retained under its original TTL so audits can still read it;
// callers observe it as gone. Revoking an unknown or already revoked session
// is a no-op.
//
//	Performance: 1 GET + WATCH/MULTI rewrite.
//	Docs: docs/session.md
func (s *Store) Revoke(ctx context.Context, sessionID string) error {
	const maxRetries = 4
	key := s.key(sessionID)

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			sess, err := Decode(data)
			if err != nil {
				return err
			}
			if !sess.Active {
				return nil
			}

			pttl, err := tx.PTTL(ctx, key).Result()
			if err != nil {
				return err
			}
			if pttl <= 0 {
				return nil
			}

			sess.Active = false
			encoded, err := Encode(sess)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, encoded, pttl)
				pipe.SRem(ctx, s.memberKey(sess.MemberID), sessionID)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return nil
			}
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return nil
	}

	return fmt.Errorf("%w: revoke contention", ErrRedisUnavailable)
}

// RevokeAllForMember revokes every indexed session of a member.
//
// ATOMICITY NOTE: This operation is NOT fully atomic. It reads the member's
// session set (SMembers) and then revokes each session. A session created
// between the read and revoke phases will not be captured by this call. In
// practice this race is extremely narrow and only affects logout-all
// semantics; the stray session will expire naturally or be caught by the
// next RevokeAllForMember call.
//
// RevokeAllForMember may return an error when input validation, dependency calls, or security checks fail.
// RevokeAllForMember does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) RevokeAllForMember(ctx context.Context, memberID string) error {
	memberKey := s.memberKey(memberID)

	sessionIDs, err := s.redis.SMembers(ctx, memberKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	for _, sessionID := range sessionIDs {
		if err := s.Revoke(ctx, sessionID); err != nil {
			return err
		}
	}

	if err := s.redis.Del(ctx, memberKey).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// ActiveSessionCount returns the number of indexed session IDs for a member.
func (s *Store) ActiveSessionCount(ctx context.Context, memberID string) (int, error) {
	count, err := s.redis.SCard(ctx, s.memberKey(memberID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(count), nil
}

// ActiveSessionIDs returns indexed session IDs for a member.
func (s *Store) ActiveSessionIDs(ctx context.Context, memberID string) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, s.memberKey(memberID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ids, nil
}

// GetReadOnly fetches a session without mutating TTL, index, or any Redis
// state. Unlike Get it returns revoked records, so audit tooling can inspect
// them before natural expiry.
func (s *Store) GetReadOnly(ctx context.Context, sessionID string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, err
	}
	sess.SessionID = sessionID
	if time.Now().Unix() > sess.ExpiresAt {
		return nil, redis.Nil
	}

	return sess, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func (s *Store) nextSlidingTTL(remainingAbsolute time.Duration) (time.Duration, error) {
	nextTTL := remainingAbsolute

	if s.jitterEnabled && s.jitterRange > 0 {
		jitter, err := randomJitter(s.jitterRange)
		if err != nil {
			return 0, err
		}
		nextTTL += jitter
	}

	if nextTTL > remainingAbsolute {
		nextTTL = remainingAbsolute
	}

	minTTL := minSlidingTTL
	if remainingAbsolute < minTTL {
		minTTL = remainingAbsolute
	}
	if nextTTL < minTTL {
		nextTTL = minTTL
	}

	return nextTTL, nil
}

func randomJitter(jitterRange time.Duration) (time.Duration, error) {
	if jitterRange <= 0 {
		return 0, nil
	}

	max := jitterRange.Nanoseconds()
	if max > (math.MaxInt64-1)/2 {
		return 0, errors.New("jitter range too large")
	}
	span := max*2 + 1

	n, err := rand.Int(rand.Reader, big.NewInt(span))
	if err != nil {
		return 0, err
	}

	return time.Duration(n.Int64() - max), nil
}

func (s *Store) deleteSessionAndIndex(ctx context.Context, memberID, sessionID string) error {
	key := s.key(sessionID)
	memberKey := s.memberKey(memberID)

	_, err := deleteSessionLua.Run(ctx, s.redis, []string{key, memberKey}, sessionID).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}
