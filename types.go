package memberauth

import "context"

// MemberProvider is the primary interface that callers must implement to
// integrate memberauth with their member database. It covers credential
// lookup, lockout-state persistence, password updates with history, and
// TOTP secret management.
//
// The engine lowercases and trims every address before calling
// GetMemberByEmail, so implementations can compare exactly as long as stored
// emails are lowercase.
//
// UpdateLoginState is a compare-and-swap: implementations must reject the
// write with [ErrVersionConflict] when the stored record's Version no longer
// equals expectedVersion, and bump Version on every successful write. The
// engine retries conflicted writes a bounded number of times.
//
//	Docs: docs/engine.md, docs/usage.md
type MemberProvider interface {
	GetMemberByEmail(email string) (MemberRecord, error)
	GetMemberByID(memberID string) (MemberRecord, error)
	UpdateLoginState(ctx context.Context, memberID string, state LoginState, expectedVersion uint64) error
	UpdatePasswordHash(memberID string, newHash string) error
	PasswordHistory(ctx context.Context, memberID string, depth int) ([]string, error)
	AppendPasswordHistory(ctx context.Context, memberID string, hash string, depth int) error
	SetTwoFactorSecret(ctx context.Context, memberID string, secret []byte) error
	EnableTwoFactor(ctx context.Context, memberID string) error
	DisableTwoFactor(ctx context.Context, memberID string) error
	UpdateTOTPLastUsedCounter(ctx context.Context, memberID string, counter int64) error
}

// MemberRecord is the full account record returned by [MemberProvider].
// It carries the credential hash, lockout counters, password age data, and
// two-factor state. Version guards concurrent login-state writes.
type MemberRecord struct {
	MemberID     string
	Email        string
	PasswordHash string

	FailedLoginAttempts int
	LockedUntil         int64

	LastLoginAt          int64
	LastPasswordChangeAt int64

	TwoFactorEnabled bool
	TwoFactorSecret  []byte
	// TOTPLastUsedCounter is the time step of the last accepted TOTP code.
	// Codes at or before it are rejected as replays.
	TOTPLastUsedCounter int64

	Version uint64
}

// LoginState is the slice of [MemberRecord] mutated on every login attempt,
// written through [MemberProvider.UpdateLoginState].
type LoginState struct {
	FailedLoginAttempts int
	LockedUntil         int64
	LastLoginAt         int64
}

// Mailer delivers security mail. Implementations may block; the engine treats
// delivery failures as non-fatal and logs them.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, token string) error
	SendOneTimeCode(ctx context.Context, email, code string) error
}

// CaptchaVerifier scores a client-supplied captcha token. Verify returns the
// score in [0,1]; the engine compares it against [CaptchaConfig.MinScore]
// and treats transport errors as verification failure.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) (float64, error)
}

// LoginResult is returned by [Engine.Login] and [Engine.ConfirmTwoFactor].
// Exactly one of three outcomes is populated: SessionToken on full success,
// TwoFactorRequired plus challenge metadata when a second factor is pending,
// or PasswordExpired when the account is in must-change state.
type LoginResult struct {
	SessionToken string

	TwoFactorRequired bool
	TwoFactorMethod   string
	ChallengeToken    string
	MaskedEmail       string

	PasswordExpired bool
}

// LoginOptions carries optional per-attempt login inputs.
type LoginOptions struct {
	RememberMe bool
}

// TOTPSetup holds the base32-encoded TOTP secret and otpauth:// URI returned
// by [Engine.BeginTOTPEnrollment].
type TOTPSetup struct {
	SecretBase32 string
	URI          string
}

// SessionInfo is a read-only session view returned by
// [Engine.ActiveSessions].
type SessionInfo struct {
	SessionID    string
	IP           string
	UserAgent    string
	RememberMe   bool
	CreatedAt    int64
	LastActiveAt int64
	ExpiresAt    int64
}
