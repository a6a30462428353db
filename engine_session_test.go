package memberauth

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"
)

func TestValidateSessionUnknownToken(t *testing.T) {
	env := newTestEngine(t, nil)

	if _, err := env.engine.ValidateSession(context.Background(), "no-such-token"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	env := newTestEngine(t, nil)
	env.seedMember(t, "alice@example.com", "Correct-Horse-9", nil)
	token := loginSession(t, env, "alice@example.com", "Correct-Horse-9")

	if err := env.engine.Logout(context.Background(), token); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if _, err := env.engine.ValidateSession(context.Background(), token); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected revoked session, got %v", err)
	}
}

func TestLogoutAllRevokesEverySession(t *testing.T) {
	env := newTestEngine(t, nil)
	member := env.seedMember(t, "alice@example.com", "Correct-Horse-9", nil)

	first := loginSession(t, env, "alice@example.com", "Correct-Horse-9")
	second := loginSession(t, env, "alice@example.com", "Correct-Horse-9")

	if err := env.engine.LogoutAll(context.Background(), member.MemberID); err != nil {
		t.Fatalf("LogoutAll failed: %v", err)
	}

	for _, token := range []string{first, second} {
		if _, err := env.engine.ValidateSession(context.Background(), token); !errors.Is(err, ErrSessionNotFound) {
			t.Fatalf("expected revoked session, got %v", err)
		}
	}
}

func TestActiveSessionsExcludesRevoked(t *testing.T) {
	env := newTestEngine(t, nil)
	member := env.seedMember(t, "alice@example.com", "Correct-Horse-9", nil)

	first := loginSession(t, env, "alice@example.com", "Correct-Horse-9")
	second := loginSession(t, env, "alice@example.com", "Correct-Horse-9")

	infos, err := env.engine.ActiveSessions(context.Background(), member.MemberID)
	if err != nil {
		t.Fatalf("ActiveSessions failed: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 active sessions, got %d", len(infos))
	}

	if err := env.engine.Logout(context.Background(), first); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	infos, err = env.engine.ActiveSessions(context.Background(), member.MemberID)
	if err != nil {
		t.Fatalf("ActiveSessions failed: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("expected 1 active session after logout, got %d", len(infos))
	}
	if infos[0].SessionID != second {
		t.Fatalf("surviving session mismatch: got %q want %q", infos[0].SessionID, second)
	}
}

func TestValidateSessionSurfacesPasswordExpiry(t *testing.T) {
	env := newTestEngine(t, func(cfg *Config) {
		cfg.PasswordPolicy.MaxAge = 24 * time.Hour
	})
	member := env.seedMember(t, "alice@example.com", "Correct-Horse-9", nil)
	token := loginSession(t, env, "alice@example.com", "Correct-Horse-9")

	// The password crosses the maximum age while the session is live.
	member = env.member(t, member.MemberID)
	member.LastPasswordChangeAt = time.Now().Add(-48 * time.Hour).Unix()
	env.provider.put(member)

	if _, err := env.engine.ValidateSession(context.Background(), token); !errors.Is(err, ErrPasswordExpired) {
		t.Fatalf("expected ErrPasswordExpired, got %v", err)
	}
}

func TestAccessTokenFacade(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}

	env := newTestEngine(t, func(cfg *Config) {
		cfg.JWT.Enabled = true
		cfg.JWT.PrivateKey = priv.Seed()
	})
	env.seedMember(t, "alice@example.com", "Correct-Horse-9", nil)
	token := loginSession(t, env, "alice@example.com", "Correct-Horse-9")

	access, err := env.engine.IssueAccessToken(context.Background(), token)
	if err != nil {
		t.Fatalf("IssueAccessToken failed: %v", err)
	}
	if access == "" {
		t.Fatal("expected a signed token")
	}

	info, err := env.engine.ValidateAccessToken(context.Background(), access)
	if err != nil {
		t.Fatalf("ValidateAccessToken failed: %v", err)
	}
	if info.SessionID != token {
		t.Fatalf("access token bound to wrong session: got %q want %q", info.SessionID, token)
	}

	if _, err := env.engine.ValidateAccessToken(context.Background(), "not.a.jwt"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}

	// Revoking the backing session kills the token even before it expires.
	if err := env.engine.Logout(context.Background(), token); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if _, err := env.engine.ValidateAccessToken(context.Background(), access); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after logout, got %v", err)
	}
}

func TestAccessTokenRequiresJWTEnabled(t *testing.T) {
	env := newTestEngine(t, nil)
	env.seedMember(t, "alice@example.com", "Correct-Horse-9", nil)
	token := loginSession(t, env, "alice@example.com", "Correct-Horse-9")

	if _, err := env.engine.IssueAccessToken(context.Background(), token); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if _, err := env.engine.ValidateAccessToken(context.Background(), "anything"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
}
