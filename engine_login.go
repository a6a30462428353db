package memberauth

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/hireloop/memberauth/internal"
	"github.com/hireloop/memberauth/internal/stores"
	"github.com/hireloop/memberauth/lockout"
	"github.com/hireloop/memberauth/session"
)

const (
	unknownEmailDelayMin = 100 * time.Millisecond
	unknownEmailDelayMax = 500 * time.Millisecond
)

const (
	twoFactorMethodTOTP  = "totp"
	twoFactorMethodEmail = "email"
)

// Login describes the login operation and its observable behavior.
//
// Login may return an error when input validation, dependency calls, or security checks fail.
// Login does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
//	Docs: docs/engine.md
func (e *Engine) Login(ctx context.Context, email, password, captchaToken string) (*LoginResult, error) {
	return e.LoginWithOptions(ctx, email, password, captchaToken, LoginOptions{})
}

// LoginWithOptions describes the loginwithoptions operation and its observable behavior.
//
// LoginWithOptions may return an error when input validation, dependency calls, or security checks fail.
// LoginWithOptions does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
//	Docs: docs/engine.md
func (e *Engine) LoginWithOptions(
	ctx context.Context,
	email, password, captchaToken string,
	opts LoginOptions,
) (*LoginResult, error) {
	if e == nil || e.passwordHash == nil || e.memberProvider == nil {
		return nil, ErrEngineNotReady
	}
	email = normalizeEmail(email)

	if e.config.Captcha.Enabled {
		if err := e.verifyCaptcha(ctx, captchaToken); err != nil {
			e.metricInc(MetricCaptchaRejected)
			e.emitAudit(ctx, auditEventCaptchaRejected, false, "", "", err, func() map[string]string {
				return map[string]string{
					"identifier": email,
				}
			})
			return nil, err
		}
	}

	if password == "" {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"identifier": email,
				"reason":     "empty_password",
			}
		})
		return nil, ErrInvalidCredentials
	}

	member, err := e.memberProvider.GetMemberByEmail(email)
	if err != nil {
		// Unknown accounts burn roughly as much wall time as a real hash
		// check so enumeration by timing stays impractical.
		sleepWithJitter(ctx, unknownEmailDelayMin, unknownEmailDelayMax)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"identifier": email,
				"reason":     "member_not_found",
			}
		})
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	state := lockoutStateFromRecord(member)
	if cleared := lockout.ExpireIfDue(state, now); cleared != state {
		persisted, err := e.persistLoginState(ctx, member, func(m MemberRecord) LoginState {
			return loginStateFrom(lockout.ExpireIfDue(lockoutStateFromRecord(m), now), m.LastLoginAt)
		})
		if err != nil {
			return nil, err
		}
		// The retried write may have observed a concurrent relock, so the
		// full persisted state feeds the lock check below.
		state = lockoutStateFromLoginState(persisted)
		member.FailedLoginAttempts = persisted.FailedLoginAttempts
		member.LockedUntil = persisted.LockedUntil
	}

	if lockout.Locked(state, now) {
		e.metricInc(MetricLoginLocked)
		e.emitAudit(ctx, auditEventLoginAttemptLocked, false, member.MemberID, "", ErrAccountLocked, func() map[string]string {
			return map[string]string{
				"identifier": email,
			}
		})
		return nil, &LockedOutError{Remaining: lockout.Remaining(state, now)}
	}

	if !e.passwordHash.Verify(password, member.PasswordHash) {
		persisted, perr := e.persistLoginState(ctx, member, func(m MemberRecord) LoginState {
			st := lockout.ExpireIfDue(lockoutStateFromRecord(m), now)
			st = lockout.Fail(st, e.lockoutPolicy(), now)
			return loginStateFrom(st, m.LastLoginAt)
		})
		if perr != nil {
			return nil, perr
		}

		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, member.MemberID, "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"identifier": email,
				"reason":     "password_mismatch",
			}
		})

		if persisted.LockedUntil != 0 && time.Unix(persisted.LockedUntil, 0).After(now) {
			e.metricInc(MetricAccountLocked)
			e.emitAudit(ctx, auditEventAccountLocked, false, member.MemberID, "", ErrAccountLocked, func() map[string]string {
				return map[string]string{
					"identifier":      email,
					"failed_attempts": "max",
				}
			})
		}
		return nil, ErrInvalidCredentials
	}
	password = ""

	if e.passwordExpired(member, now) {
		if _, err := e.persistLoginState(ctx, member, func(m MemberRecord) LoginState {
			return loginStateFrom(lockout.Succeed(lockoutStateFromRecord(m)), m.LastLoginAt)
		}); err != nil {
			return nil, err
		}

		e.metricInc(MetricPasswordExpired)
		e.emitAudit(ctx, auditEventPasswordExpiredLogin, false, member.MemberID, "", ErrPasswordExpired, nil)
		return &LoginResult{PasswordExpired: true}, nil
	}

	if member.TwoFactorEnabled {
		return e.beginTwoFactorChallenge(ctx, member, now, opts)
	}

	return e.finalizeLogin(ctx, member, now, opts.RememberMe)
}

func (e *Engine) verifyCaptcha(ctx context.Context, token string) error {
	if e.captcha == nil {
		return ErrEngineNotReady
	}

	score, err := e.captcha.Verify(ctx, token, clientIPFromContext(ctx))
	if err != nil {
		// Fail closed: a verifier outage must not open the captcha gate.
		return ErrCaptchaRejected
	}
	if score < e.config.Captcha.MinScore {
		return ErrCaptchaRejected
	}
	return nil
}

// beginTwoFactorChallenge clears the lockout counter for the verified
// password, installs a fresh challenge, and reports which second factor the
// caller must complete. Installing a new challenge supersedes any previous
// live one for the member.
func (e *Engine) beginTwoFactorChallenge(
	ctx context.Context,
	member MemberRecord,
	now time.Time,
	opts LoginOptions,
) (*LoginResult, error) {
	if e.twoFactorStore == nil {
		return nil, ErrEngineNotReady
	}

	if _, err := e.persistLoginState(ctx, member, func(m MemberRecord) LoginState {
		return loginStateFrom(lockout.Succeed(lockoutStateFromRecord(m)), m.LastLoginAt)
	}); err != nil {
		return nil, err
	}

	method := twoFactorMethodEmail
	if len(member.TwoFactorSecret) > 0 {
		method = twoFactorMethodTOTP
	}

	challenge := &stores.TwoFactorChallenge{
		MemberID:   member.MemberID,
		Method:     method,
		RememberMe: opts.RememberMe,
		ExpiresAt:  now.Add(e.config.TwoFactor.ChallengeTTL).Unix(),
	}

	if method == twoFactorMethodEmail {
		code, err := internal.NewOTP(e.config.TwoFactor.EmailOTPDigits)
		if err != nil {
			return nil, err
		}
		challenge.CodeHash = internal.HashBytes([]byte(code))

		if e.mailer == nil {
			return nil, ErrMailDeliveryFailed
		}
		// Delivery is attempted before the challenge is installed so a dead
		// mailer does not strand the member on an unanswerable challenge.
		if err := e.mailer.SendOneTimeCode(ctx, member.Email, code); err != nil {
			e.metricInc(MetricMailDeliveryFailure)
			log.Print("memberauth: one-time code delivery failed")
			e.emitAudit(ctx, auditEventTwoFactorRequired, false, member.MemberID, "", ErrMailDeliveryFailed, nil)
			return nil, ErrMailDeliveryFailed
		}
	}

	challengeID, err := internal.NewTokenID()
	if err != nil {
		return nil, err
	}
	token := challengeID.String()

	if err := e.twoFactorStore.Save(ctx, token, challenge, e.config.TwoFactor.ChallengeTTL); err != nil {
		return nil, wrapTwoFactorErr(err)
	}

	e.metricInc(MetricTwoFactorRequired)
	e.emitAudit(ctx, auditEventTwoFactorRequired, true, member.MemberID, "", nil, func() map[string]string {
		return map[string]string{
			"method": method,
		}
	})

	return &LoginResult{
		TwoFactorRequired: true,
		TwoFactorMethod:   method,
		ChallengeToken:    token,
		MaskedEmail:       maskEmail(member.Email),
	}, nil
}

// finalizeLogin persists the success transition and creates the session.
func (e *Engine) finalizeLogin(
	ctx context.Context,
	member MemberRecord,
	now time.Time,
	rememberMe bool,
) (*LoginResult, error) {
	if e.sessionStore == nil {
		return nil, ErrEngineNotReady
	}

	if _, err := e.persistLoginState(ctx, member, func(MemberRecord) LoginState {
		return loginStateFrom(lockout.State{}, now.Unix())
	}); err != nil {
		return nil, err
	}

	sid, err := internal.NewTokenID()
	if err != nil {
		return nil, err
	}
	sessionID := sid.String()
	lifetime := e.sessionLifetime(rememberMe)

	sess := &session.Session{
		SessionID:    sessionID,
		MemberID:     member.MemberID,
		IP:           clientIPFromContext(ctx),
		UserAgent:    userAgentFromContext(ctx),
		RememberMe:   rememberMe,
		Active:       true,
		CreatedAt:    now.Unix(),
		LastActiveAt: now.Unix(),
		ExpiresAt:    now.Add(lifetime).Unix(),
	}

	if err := e.sessionStore.Save(ctx, sess, lifetime); err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, member.MemberID, sessionID, ErrSessionCreationFailed, func() map[string]string {
			return map[string]string{
				"reason": "session_save_failed",
			}
		})
		return nil, errors.Join(ErrSessionCreationFailed, err)
	}

	e.metricInc(MetricSessionCreated)
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, member.MemberID, sessionID, nil, nil)

	return &LoginResult{SessionToken: sessionID}, nil
}

// normalizeEmail lowercases and trims the address. Stored emails are unique
// case-insensitively, so every provider lookup goes through this.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// maskEmail keeps the first and last rune of the local part, so
// "jane@example.com" becomes "j***e@example.com".
func maskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}

	local := []rune(email[:at])
	domain := email[at:]

	if len(local) == 1 {
		return string(local[0]) + "***" + domain
	}
	return string(local[0]) + "***" + string(local[len(local)-1]) + domain
}
