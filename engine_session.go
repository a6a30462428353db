package memberauth

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/hireloop/memberauth/session"
	"github.com/redis/go-redis/v9"
)

// ValidateSession describes the validatesession operation and its observable behavior.
//
// ValidateSession may return an error when input validation, dependency calls, or security checks fail.
// ValidateSession does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Revoked, expired, and unknown tokens are indistinguishable: all return
// [ErrSessionNotFound]. A valid session whose account has crossed the
// password maximum age returns [ErrPasswordExpired] instead of a view.
//
//	Docs: docs/session.md
func (e *Engine) ValidateSession(ctx context.Context, sessionToken string) (*SessionInfo, error) {
	if e == nil || e.sessionStore == nil || e.memberProvider == nil {
		return nil, ErrEngineNotReady
	}
	if e.metrics != nil && e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricValidateLatency, time.Since(start)) }()
	}

	sess, err := e.sessionStore.Get(ctx, sessionToken)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, wrapSessionErr(err)
	}

	member, err := e.memberProvider.GetMemberByID(sess.MemberID)
	if err != nil {
		return nil, ErrSessionNotFound
	}
	if e.passwordExpired(member, time.Now()) {
		return nil, ErrPasswordExpired
	}

	// Touch is best-effort; a lost activity update never fails validation.
	if err := e.sessionStore.Touch(ctx, sessionToken, time.Now()); err != nil {
		log.Print("memberauth: session activity update failed")
	}

	return sessionInfoFrom(sess), nil
}

// Logout describes the logout operation and its observable behavior.
//
// Logout may return an error when input validation, dependency calls, or security checks fail.
// Logout does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
//	Docs: docs/session.md
func (e *Engine) Logout(ctx context.Context, sessionToken string) error {
	if e == nil || e.sessionStore == nil {
		return ErrEngineNotReady
	}

	err := wrapSessionErr(e.sessionStore.Revoke(ctx, sessionToken))
	if err == nil {
		e.metricInc(MetricLogout)
		e.metricInc(MetricSessionInvalidated)
	}
	e.emitAudit(ctx, auditEventLogoutSession, err == nil, "", sessionToken, err, nil)
	return err
}

// LogoutAll describes the logoutall operation and its observable behavior.
//
// LogoutAll may return an error when input validation, dependency calls, or security checks fail.
// LogoutAll does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
//	Docs: docs/session.md
func (e *Engine) LogoutAll(ctx context.Context, memberID string) error {
	if e == nil || e.sessionStore == nil {
		return ErrEngineNotReady
	}

	err := wrapSessionErr(e.sessionStore.RevokeAllForMember(ctx, memberID))
	if err == nil {
		e.metricInc(MetricLogoutAll)
		e.metricInc(MetricSessionInvalidated)
	}
	e.emitAudit(ctx, auditEventLogoutAll, err == nil, memberID, "", err, nil)
	return err
}

// ActiveSessions describes the activesessions operation and its observable behavior.
//
// ActiveSessions may return an error when input validation, dependency calls, or security checks fail.
// ActiveSessions does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ActiveSessions(ctx context.Context, memberID string) ([]SessionInfo, error) {
	if e == nil || e.sessionStore == nil {
		return nil, ErrEngineNotReady
	}

	ids, err := e.sessionStore.ActiveSessionIDs(ctx, memberID)
	if err != nil {
		return nil, wrapSessionErr(err)
	}

	infos := make([]SessionInfo, 0, len(ids))
	for _, id := range ids {
		sess, err := e.sessionStore.GetReadOnly(ctx, id)
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, wrapSessionErr(err)
		}
		if !sess.Active {
			continue
		}
		infos = append(infos, *sessionInfoFrom(sess))
	}

	return infos, nil
}

// IssueAccessToken describes the issueaccesstoken operation and its observable behavior.
//
// IssueAccessToken may return an error when input validation, dependency calls, or security checks fail.
// IssueAccessToken does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// The token is a short-lived signed view of an existing live session; it does
// not extend or replace it.
//
//	Docs: docs/jwt.md
func (e *Engine) IssueAccessToken(ctx context.Context, sessionToken string) (string, error) {
	if e == nil || e.sessionStore == nil {
		return "", ErrEngineNotReady
	}
	if !e.config.JWT.Enabled || e.jwtManager == nil {
		return "", ErrEngineNotReady
	}

	sess, err := e.sessionStore.Get(ctx, sessionToken)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrSessionNotFound
		}
		return "", wrapSessionErr(err)
	}

	return e.jwtManager.CreateAccess(sess.MemberID, sess.SessionID)
}

// ValidateAccessToken describes the validateaccesstoken operation and its observable behavior.
//
// ValidateAccessToken may return an error when input validation, dependency calls, or security checks fail.
// ValidateAccessToken does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Validation is strict: the signature must check out and the backing session
// must still be live in Redis.
//
//	Docs: docs/jwt.md
func (e *Engine) ValidateAccessToken(ctx context.Context, tokenStr string) (*SessionInfo, error) {
	if e == nil || e.sessionStore == nil {
		return nil, ErrEngineNotReady
	}
	if !e.config.JWT.Enabled || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.jwtManager.ParseAccess(tokenStr)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	sess, err := e.sessionStore.Get(ctx, claims.SID)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, wrapSessionErr(err)
	}
	if sess.MemberID != claims.UID {
		return nil, ErrTokenInvalid
	}

	return sessionInfoFrom(sess), nil
}

func sessionInfoFrom(sess *session.Session) *SessionInfo {
	return &SessionInfo{
		SessionID:    sess.SessionID,
		IP:           sess.IP,
		UserAgent:    sess.UserAgent,
		RememberMe:   sess.RememberMe,
		CreatedAt:    sess.CreatedAt,
		LastActiveAt: sess.LastActiveAt,
		ExpiresAt:    sess.ExpiresAt,
	}
}
