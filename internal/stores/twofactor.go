package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	twoFactorRecordVersion1 = 1
)

var (
	ErrChallengeNotFound = errors.New("two-factor challenge not found")
	ErrChallengeExpired  = errors.New("two-factor challenge expired")
	ErrChallengeExceeded = errors.New("two-factor challenge attempts exceeded")
	ErrChallengeBackend  = errors.New("two-factor challenge backend unavailable")
)

type TwoFactorChallenge struct {
	MemberID   string
	Method     string
	CodeHash   [32]byte
	RememberMe bool
	ExpiresAt  int64
	Attempts   uint16
}

// TwoFactorChallengeStore keeps at most one live challenge per member: Save
// watches a per-member pointer key and deletes the previous challenge before
// installing the new one.
type TwoFactorChallengeStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewTwoFactorChallengeStore(redisClient redis.UniversalClient, prefix string) *TwoFactorChallengeStore {
	if prefix == "" {
		prefix = "mtc"
	}
	return &TwoFactorChallengeStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *TwoFactorChallengeStore) key(challengeID string) string {
	return s.prefix + ":" + challengeID
}

func (s *TwoFactorChallengeStore) memberKey(memberID string) string {
	return s.prefix + "m:" + memberID
}

func (s *TwoFactorChallengeStore) Save(
	ctx context.Context,
	challengeID string,
	record *TwoFactorChallenge,
	ttl time.Duration,
) error {
	encoded, err := encodeTwoFactorChallenge(record)
	if err != nil {
		return err
	}

	const maxRetries = 4
	memberKey := s.memberKey(record.MemberID)

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			previous, err := tx.Get(ctx, memberKey).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				if previous != "" && previous != challengeID {
					pipe.Del(ctx, s.key(previous))
				}
				pipe.Set(ctx, s.key(challengeID), encoded, ttl)
				pipe.Set(ctx, memberKey, challengeID, ttl)
				return nil
			})
			return err
		}, memberKey)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrChallengeBackend, err)
		}
		return nil
	}

	return fmt.Errorf("%w: save contention", ErrChallengeBackend)
}

func (s *TwoFactorChallengeStore) Get(ctx context.Context, challengeID string) (*TwoFactorChallenge, error) {
	data, err := s.redis.Get(ctx, s.key(challengeID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrChallengeBackend, err)
	}

	record, err := decodeTwoFactorChallenge(data)
	if err != nil {
		return nil, err
	}
	if time.Now().Unix() > record.ExpiresAt {
		_, _ = s.redis.Del(ctx, s.key(challengeID)).Result()
		return nil, ErrChallengeExpired
	}
	return record, nil
}

// Consume is an atomic check-and-delete. A second Consume of the same
// challenge observes ErrChallengeNotFound, which callers treat as replay.
func (s *TwoFactorChallengeStore) Consume(ctx context.Context, challengeID string) (*TwoFactorChallenge, error) {
	const maxRetries = 4
	key := s.key(challengeID)

	for i := 0; i < maxRetries; i++ {
		var matched *TwoFactorChallenge

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodeTwoFactorChallenge(data)
			if err != nil {
				return err
			}
			if time.Now().Unix() > record.ExpiresAt {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return ErrChallengeExpired
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				pipe.Del(ctx, s.memberKey(record.MemberID))
				return nil
			})
			if err != nil {
				return err
			}

			matched = record
			return nil
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil):
				return nil, ErrChallengeNotFound
			case errors.Is(err, ErrChallengeExpired):
				return nil, err
			default:
				return nil, fmt.Errorf("%w: %v", ErrChallengeBackend, err)
			}
		}
		return matched, nil
	}

	return nil, ErrChallengeNotFound
}

func (s *TwoFactorChallengeStore) Delete(ctx context.Context, challengeID string) (bool, error) {
	n, err := s.redis.Del(ctx, s.key(challengeID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrChallengeBackend, err)
	}
	return n > 0, nil
}

func (s *TwoFactorChallengeStore) RecordFailure(
	ctx context.Context,
	challengeID string,
	maxAttempts int,
) (bool, error) {
	const maxRetries = 4
	key := s.key(challengeID)

	for i := 0; i < maxRetries; i++ {
		var exceeded bool
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodeTwoFactorChallenge(data)
			if err != nil {
				return err
			}
			if time.Now().Unix() > record.ExpiresAt {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return ErrChallengeExpired
			}

			record.Attempts++
			if int(record.Attempts) >= maxAttempts {
				exceeded = true
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					pipe.Del(ctx, s.memberKey(record.MemberID))
					return nil
				})
				if err != nil {
					return err
				}
				return nil
			}

			ttl := time.Until(time.Unix(record.ExpiresAt, 0))
			if ttl <= 0 {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return ErrChallengeExpired
			}

			updated, err := encodeTwoFactorChallenge(record)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, ttl)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return false, ErrChallengeNotFound
			}
			if errors.Is(err, ErrChallengeExpired) {
				return false, err
			}
			return false, fmt.Errorf("%w: %v", ErrChallengeBackend, err)
		}
		return exceeded, nil
	}

	return false, ErrChallengeNotFound
}

func encodeTwoFactorChallenge(record *TwoFactorChallenge) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(twoFactorRecordVersion1)
	if record.RememberMe {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}

	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	if len(record.MemberID) > 65535 || len(record.Method) > 255 {
		return nil, errors.New("two-factor challenge field length exceeded")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.MemberID))); err != nil {
		return nil, err
	}
	buf.WriteString(record.MemberID)
	buf.WriteByte(byte(len(record.Method)))
	buf.WriteString(record.Method)
	buf.Write(record.CodeHash[:])

	return buf.Bytes(), nil
}

func decodeTwoFactorChallenge(data []byte) (*TwoFactorChallenge, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != twoFactorRecordVersion1 {
		return nil, errors.New("invalid two-factor challenge version")
	}

	rememberMe, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}

	record := &TwoFactorChallenge{RememberMe: rememberMe == 1}
	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	var memberLen uint16
	if err := binary.Read(reader, binary.BigEndian, &memberLen); err != nil {
		return nil, err
	}
	member := make([]byte, memberLen)
	if _, err := io.ReadFull(reader, member); err != nil {
		return nil, err
	}
	record.MemberID = string(member)

	methodLen, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	method := make([]byte, methodLen)
	if _, err := io.ReadFull(reader, method); err != nil {
		return nil, err
	}
	record.Method = string(method)

	if _, err := io.ReadFull(reader, record.CodeHash[:]); err != nil {
		return nil, err
	}

	return record, nil
}
