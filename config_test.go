package memberauth

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"weak iterations", func(c *Config) { c.Password.Iterations = 9_999 }, "Iterations"},
		{"short salt", func(c *Config) { c.Password.SaltLength = 8 }, "SaltLength"},
		{"short key", func(c *Config) { c.Password.KeyLength = 8 }, "KeyLength"},
		{"negative min age", func(c *Config) { c.PasswordPolicy.MinAge = -time.Hour }, "MinAge"},
		{"min age above max age", func(c *Config) {
			c.PasswordPolicy.MinAge = 48 * time.Hour
			c.PasswordPolicy.MaxAge = 24 * time.Hour
		}, "MinAge must be < MaxAge"},
		{"negative history depth", func(c *Config) { c.PasswordPolicy.HistoryDepth = -1 }, "HistoryDepth"},
		{"zero lockout attempts", func(c *Config) { c.Lockout.MaxAttempts = 0 }, "Lockout MaxAttempts"},
		{"zero lockout duration", func(c *Config) { c.Lockout.Duration = 0 }, "Lockout Duration"},
		{"empty session prefix", func(c *Config) { c.Session.RedisPrefix = "" }, "RedisPrefix"},
		{"zero session ttl", func(c *Config) { c.Session.TTL = 0 }, "Session TTL"},
		{"remember-me below ttl", func(c *Config) {
			c.Session.TTL = 24 * time.Hour
			c.Session.RememberMeTTL = time.Hour
		}, "RememberMeTTL"},
		{"jitter without range", func(c *Config) {
			c.Session.JitterEnabled = true
			c.Session.JitterRange = 0
		}, "JitterRange"},
		{"zero challenge ttl", func(c *Config) { c.TwoFactor.ChallengeTTL = 0 }, "ChallengeTTL"},
		{"zero challenge attempts", func(c *Config) { c.TwoFactor.MaxAttempts = 0 }, "TwoFactor MaxAttempts"},
		{"short email otp", func(c *Config) { c.TwoFactor.EmailOTPDigits = 4 }, "EmailOTPDigits"},
		{"short totp digits", func(c *Config) { c.TOTP.Digits = 4 }, "TOTP Digits"},
		{"tiny totp period", func(c *Config) { c.TOTP.Period = 5 }, "TOTP Period"},
		{"excessive totp skew", func(c *Config) { c.TOTP.Skew = 9 }, "TOTP Skew"},
		{"unknown totp algorithm", func(c *Config) { c.TOTP.Algorithm = "MD5" }, "TOTP Algorithm"},
		{"unknown reset strategy", func(c *Config) { c.PasswordReset.Strategy = ResetStrategyType(42) }, "Strategy"},
		{"zero reset ttl", func(c *Config) { c.PasswordReset.ResetTTL = 0 }, "ResetTTL"},
		{"zero reset attempts", func(c *Config) { c.PasswordReset.MaxAttempts = 0 }, "PasswordReset MaxAttempts"},
		{"long reset otp", func(c *Config) { c.PasswordReset.OTPDigits = 11 }, "OTPDigits"},
		{"captcha score above one", func(c *Config) { c.Captcha.MinScore = 1.5 }, "MinScore"},
		{"jwt without key", func(c *Config) { c.JWT.Enabled = true; c.JWT.PrivateKey = nil }, "PrivateKey"},
		{"jwt unknown method", func(c *Config) {
			c.JWT.Enabled = true
			c.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
			c.JWT.SigningMethod = "rs256"
		}, "SigningMethod"},
		{"jwt excessive leeway", func(c *Config) {
			c.JWT.Enabled = true
			c.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
			c.JWT.Leeway = 5 * time.Minute
		}, "Leeway"},
		{"audit without buffer", func(c *Config) {
			c.Audit.Enabled = true
			c.Audit.BufferSize = 0
		}, "BufferSize"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation to fail")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestValidateProductionMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Security.ProductionMode = true
	cfg.Password.SaltLength = 32
	cfg.Password.KeyLength = 32
	if err := cfg.Validate(); err != nil {
		t.Fatalf("hardened production config must validate: %v", err)
	}

	weak := cfg
	weak.Password.Iterations = 50_000
	if err := weak.Validate(); err == nil {
		t.Fatal("production mode must reject weakened iterations")
	}

	shortSalt := cfg
	shortSalt.Password.SaltLength = 16
	if err := shortSalt.Validate(); err == nil {
		t.Fatal("production mode must reject short salts")
	}

	shortLock := cfg
	shortLock.Lockout.Duration = time.Minute
	if err := shortLock.Validate(); err == nil {
		t.Fatal("production mode must reject short lockouts")
	}

	weakHMAC := cfg
	weakHMAC.JWT.Enabled = true
	weakHMAC.JWT.SigningMethod = "hs256"
	weakHMAC.JWT.PrivateKey = []byte("short-key")
	if err := weakHMAC.Validate(); err == nil {
		t.Fatal("production mode must reject short hs256 keys")
	}
}

func TestDefaultConfigIsolation(t *testing.T) {
	first := DefaultConfig()
	first.Session.RedisPrefix = "mutated"
	first.JWT.PrivateKey = []byte("not-shared")

	second := DefaultConfig()
	if second.Session.RedisPrefix == "mutated" {
		t.Fatal("DefaultConfig must hand out independent values")
	}
	if second.JWT.PrivateKey != nil {
		t.Fatal("DefaultConfig must not share key material")
	}
}
