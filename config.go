package memberauth

import (
	"errors"
	"time"
)

// Config defines a public type used by memberauth APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Password       PasswordConfig
	PasswordPolicy PasswordPolicyConfig
	Lockout        LockoutConfig
	Session        SessionConfig
	TwoFactor      TwoFactorConfig
	TOTP           TOTPConfig
	PasswordReset  PasswordResetConfig
	Captcha        CaptchaConfig
	JWT            JWTConfig
	Audit          AuditConfig
	Metrics        MetricsConfig
	Security       SecurityConfig
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig defines a public type used by memberauth APIs.
//
// PasswordConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordConfig struct {
	Iterations int
	SaltLength int
	KeyLength  int
}

/*
====================================
PASSWORD POLICY CONFIG
====================================
*/

// PasswordPolicyConfig defines a public type used by memberauth APIs.
//
// PasswordPolicyConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordPolicyConfig struct {
	// MinAge rejects a change attempted sooner than MinAge after the last
	// change. Expiry-forced changes and reset-token flows bypass it.
	MinAge time.Duration
	// MaxAge puts the account in must-change state once exceeded. Zero
	// disables expiry.
	MaxAge time.Duration
	// HistoryDepth is the number of retired hashes a new password is
	// checked against, in addition to the current hash.
	HistoryDepth int
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig defines a public type used by memberauth APIs.
//
// LockoutConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LockoutConfig struct {
	MaxAttempts int
	Duration    time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig defines a public type used by memberauth APIs.
//
// SessionConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SessionConfig struct {
	RedisPrefix       string
	TTL               time.Duration
	RememberMeTTL     time.Duration
	SlidingExpiration bool
	JitterEnabled     bool
	JitterRange       time.Duration
}

/*
====================================
TWO-FACTOR CONFIG
====================================
*/

// TwoFactorConfig defines a public type used by memberauth APIs.
//
// TwoFactorConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TwoFactorConfig struct {
	ChallengeTTL   time.Duration
	MaxAttempts    int
	EmailOTPDigits int
	RedisPrefix    string
}

/*
====================================
TOTP CONFIG
====================================
*/

// TOTPConfig defines a public type used by memberauth APIs.
//
// TOTPConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TOTPConfig struct {
	Issuer    string
	Digits    int
	Period    int
	Algorithm string // "SHA1" (default), "SHA256", "SHA512"
	Skew      int
}

/*
====================================
PASSWORD RESET CONFIG
====================================
*/

// ResetStrategyType defines a public type used by memberauth APIs.
//
// ResetStrategyType instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ResetStrategyType int

const (
	// ResetToken is an exported constant or variable used by the authentication engine.
	ResetToken ResetStrategyType = iota
	// ResetOTP is an exported constant or variable used by the authentication engine.
	ResetOTP
	// ResetUUID is an exported constant or variable used by the authentication engine.
	ResetUUID
)

// PasswordResetConfig defines a public type used by memberauth APIs.
//
// PasswordResetConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordResetConfig struct {
	Strategy    ResetStrategyType
	ResetTTL    time.Duration
	MaxAttempts int
	OTPDigits   int
	RedisPrefix string
}

/*
====================================
CAPTCHA CONFIG
====================================
*/

// CaptchaConfig defines a public type used by memberauth APIs.
//
// CaptchaConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CaptchaConfig struct {
	Enabled  bool
	MinScore float64
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig defines a public type used by memberauth APIs.
//
// JWTConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type JWTConfig struct {
	Enabled       bool
	AccessTTL     time.Duration
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig defines a public type used by memberauth APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig defines a public type used by memberauth APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig defines a public type used by memberauth APIs.
//
// SecurityConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SecurityConfig struct {
	ProductionMode bool
}

/*
====================================
DEFAULTS
====================================
*/

// DefaultConfig returns the baseline configuration used by [New]. The
// returned value is a copy; callers may adjust fields before passing it to
// [Builder.WithConfig].
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Password: PasswordConfig{
			Iterations: 100_000,
			SaltLength: 32,
			KeyLength:  32,
		},
		PasswordPolicy: PasswordPolicyConfig{
			MinAge:       5 * time.Minute,
			MaxAge:       90 * 24 * time.Hour,
			HistoryDepth: 2,
		},
		Lockout: LockoutConfig{
			MaxAttempts: 3,
			Duration:    15 * time.Minute,
		},
		Session: SessionConfig{
			RedisPrefix:       "ms",
			TTL:               24 * time.Hour,
			RememberMeTTL:     30 * 24 * time.Hour,
			SlidingExpiration: false,
			JitterEnabled:     false,
			JitterRange:       0,
		},
		TwoFactor: TwoFactorConfig{
			ChallengeTTL:   5 * time.Minute,
			MaxAttempts:    5,
			EmailOTPDigits: 6,
			RedisPrefix:    "mtc",
		},
		TOTP: TOTPConfig{
			Issuer:    "",
			Digits:    6,
			Period:    30,
			Algorithm: "SHA1",
			Skew:      2,
		},
		PasswordReset: PasswordResetConfig{
			Strategy:    ResetToken,
			ResetTTL:    15 * time.Minute,
			MaxAttempts: 5,
			OTPDigits:   6,
			RedisPrefix: "mpr",
		},
		Captcha: CaptchaConfig{
			Enabled:  false,
			MinScore: 0.5,
		},
		JWT: JWTConfig{
			Enabled:       false,
			AccessTTL:     5 * time.Minute,
			SigningMethod: "ed25519",
			Leeway:        30 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Security: SecurityConfig{
			ProductionMode: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// Password
	if c.Password.Iterations < 10_000 {
		return errors.New("Password Iterations must be >= 10000")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}

	// PasswordPolicy
	if c.PasswordPolicy.MinAge < 0 {
		return errors.New("PasswordPolicy MinAge must be >= 0")
	}
	if c.PasswordPolicy.MaxAge < 0 {
		return errors.New("PasswordPolicy MaxAge must be >= 0")
	}
	if c.PasswordPolicy.MaxAge > 0 && c.PasswordPolicy.MinAge >= c.PasswordPolicy.MaxAge {
		return errors.New("PasswordPolicy MinAge must be < MaxAge")
	}
	if c.PasswordPolicy.HistoryDepth < 0 {
		return errors.New("PasswordPolicy HistoryDepth must be >= 0")
	}

	// Lockout
	if c.Lockout.MaxAttempts < 1 {
		return errors.New("Lockout MaxAttempts must be >= 1")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("Lockout Duration must be > 0")
	}

	// Session
	if c.Session.RedisPrefix == "" {
		return errors.New("Session RedisPrefix must not be empty")
	}
	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}
	if c.Session.RememberMeTTL < c.Session.TTL {
		return errors.New("Session RememberMeTTL must be >= TTL")
	}
	if c.Session.JitterEnabled && c.Session.JitterRange <= 0 {
		return errors.New("Session JitterRange must be > 0 when jitter is enabled")
	}

	// TwoFactor
	if c.TwoFactor.ChallengeTTL <= 0 {
		return errors.New("TwoFactor ChallengeTTL must be > 0")
	}
	if c.TwoFactor.MaxAttempts < 1 {
		return errors.New("TwoFactor MaxAttempts must be >= 1")
	}
	if c.TwoFactor.EmailOTPDigits < 6 || c.TwoFactor.EmailOTPDigits > 10 {
		return errors.New("TwoFactor EmailOTPDigits must be in [6,10]")
	}

	// TOTP
	if c.TOTP.Digits < 6 || c.TOTP.Digits > 10 {
		return errors.New("TOTP Digits must be in [6,10]")
	}
	if c.TOTP.Period < 15 || c.TOTP.Period > 120 {
		return errors.New("TOTP Period must be in [15,120] seconds")
	}
	if c.TOTP.Skew < 0 || c.TOTP.Skew > 4 {
		return errors.New("TOTP Skew must be in [0,4]")
	}
	switch c.TOTP.Algorithm {
	case "", "SHA1", "SHA256", "SHA512":
		// valid
	default:
		return errors.New("TOTP Algorithm must be SHA1, SHA256, or SHA512")
	}

	// PasswordReset
	switch c.PasswordReset.Strategy {
	case ResetToken, ResetOTP, ResetUUID:
		// valid
	default:
		return errors.New("PasswordReset Strategy is not a known strategy")
	}
	if c.PasswordReset.ResetTTL <= 0 {
		return errors.New("PasswordReset ResetTTL must be > 0")
	}
	if c.PasswordReset.MaxAttempts < 1 {
		return errors.New("PasswordReset MaxAttempts must be >= 1")
	}
	if c.PasswordReset.OTPDigits < 6 || c.PasswordReset.OTPDigits > 10 {
		return errors.New("PasswordReset OTPDigits must be in [6,10]")
	}

	// Captcha
	if c.Captcha.MinScore < 0 || c.Captcha.MinScore > 1 {
		return errors.New("Captcha MinScore must be in [0,1]")
	}

	// JWT
	if c.JWT.Enabled {
		if c.JWT.AccessTTL <= 0 {
			return errors.New("JWT AccessTTL must be > 0")
		}
		switch c.JWT.SigningMethod {
		case "ed25519", "hs256":
			// valid
		default:
			return errors.New("JWT SigningMethod must be ed25519 or hs256")
		}
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("JWT PrivateKey must be set when JWT is enabled")
		}
		if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
			return errors.New("JWT Leeway must be in [0,2m]")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	// ProductionMode strictures
	if c.Security.ProductionMode {
		if c.Password.Iterations < 100_000 {
			return errors.New("ProductionMode requires Password Iterations >= 100000")
		}
		if c.Password.SaltLength < 32 || c.Password.KeyLength < 32 {
			return errors.New("ProductionMode requires Password SaltLength and KeyLength >= 32")
		}
		if c.Lockout.Duration < 5*time.Minute {
			return errors.New("ProductionMode requires Lockout Duration >= 5m")
		}
		if c.JWT.Enabled && c.JWT.SigningMethod == "hs256" && len(c.JWT.PrivateKey) < 32 {
			return errors.New("ProductionMode requires hs256 key length >= 256 bits")
		}
	}

	return nil
}
