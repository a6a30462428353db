package password

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	minIterations = 10_000
	minSaltLength = 16
	minKeyLength  = 16
)

// Config defines a public type used by memberauth APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Iterations int
	SaltLength int
	KeyLength  int
}

// PBKDF2 defines a public type used by memberauth APIs.
//
// PBKDF2 instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PBKDF2 struct {
	config Config
}

// NewPBKDF2 describes the newpbkdf2 operation and its observable behavior.
//
// NewPBKDF2 may return an error when input validation, dependency calls, or security checks fail.
// NewPBKDF2 does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewPBKDF2(cfg Config) (*PBKDF2, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return &PBKDF2{config: cfg}, nil
}

// Hash describes the hash operation and its observable behavior.
//
// Hash may return an error when input validation, dependency calls, or security checks fail.
// Hash does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (p *PBKDF2) Hash(password string) (string, error) {
	// Password processing uses raw string bytes exactly as provided (no Unicode normalization).
	if password == "" {
		return "", errors.New("password must not be empty")
	}

	salt := make([]byte, p.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := pbkdf2.Key([]byte(password), salt, p.config.Iterations, p.config.KeyLength, sha256.New)

	payload := make([]byte, 0, len(salt)+len(key))
	payload = append(payload, salt...)
	payload = append(payload, key...)

	return base64.StdEncoding.EncodeToString(payload), nil
}

// Verify describes the verify operation and its observable behavior.
//
// Verify reports whether password matches the stored blob. A malformed blob
// (bad base64 or wrong decoded length) verifies false; Verify never returns
// an error so stored-credential corruption is indistinguishable from a
// wrong password at the call site.
// Verify does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (p *PBKDF2) Verify(password string, encoded string) bool {
	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return false
	}
	if len(payload) != p.config.SaltLength+p.config.KeyLength {
		return false
	}

	salt := payload[:p.config.SaltLength]
	stored := payload[p.config.SaltLength:]

	computed := pbkdf2.Key([]byte(password), salt, p.config.Iterations, p.config.KeyLength, sha256.New)

	return subtle.ConstantTimeCompare(computed, stored) == 1
}

func validateConfig(cfg Config) error {
	if cfg.Iterations < minIterations {
		return errors.New("password iterations must be >= 10000")
	}
	if cfg.SaltLength < minSaltLength {
		return errors.New("password salt length must be >= 16")
	}
	if cfg.KeyLength < minKeyLength {
		return errors.New("password key length must be >= 16")
	}

	return nil
}
