package memberauth

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/hireloop/memberauth/lockout"
	"github.com/hireloop/memberauth/password"
	"github.com/redis/go-redis/v9"
)

// ChangePassword describes the changepassword operation and its observable behavior.
//
// ChangePassword may return an error when input validation, dependency calls, or security checks fail.
// ChangePassword does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// The caller proves possession of a live session and the current password.
// Every session of the member, including the calling one, is revoked on
// success.
//
//	Docs: docs/engine.md
func (e *Engine) ChangePassword(ctx context.Context, sessionToken, oldPassword, newPassword string) error {
	if e == nil || e.passwordHash == nil || e.memberProvider == nil || e.sessionStore == nil {
		return ErrEngineNotReady
	}
	if sessionToken == "" || oldPassword == "" || newPassword == "" {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, "", "", ErrPasswordPolicy, func() map[string]string {
			return map[string]string{
				"reason": "invalid_input",
			}
		})
		return ErrPasswordPolicy
	}

	sess, err := e.sessionStore.Get(ctx, sessionToken)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			e.emitAudit(ctx, auditEventPasswordChangeFailure, false, "", "", ErrSessionNotFound, nil)
			return ErrSessionNotFound
		}
		return wrapSessionErr(err)
	}

	member, err := e.memberProvider.GetMemberByID(sess.MemberID)
	if err != nil {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, sess.MemberID, sess.SessionID, ErrMemberNotFound, nil)
		return ErrMemberNotFound
	}

	if !e.passwordHash.Verify(oldPassword, member.PasswordHash) {
		e.metricInc(MetricPasswordChangeInvalidOld)
		e.emitAudit(ctx, auditEventPasswordChangeInvalidOld, false, member.MemberID, sess.SessionID, ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}

	now := time.Now()
	if remaining := e.minAgeRemaining(member, now); remaining > 0 {
		e.metricInc(MetricPasswordChangeTooSoon)
		e.emitAudit(ctx, auditEventPasswordChangeTooSoon, false, member.MemberID, sess.SessionID, ErrPasswordChangeTooSoon, nil)
		return &TooSoonError{Remaining: remaining}
	}

	return e.completePasswordChange(ctx, member, sess.SessionID, newPassword)
}

// ChangeExpiredPassword describes the changeexpiredpassword operation and its observable behavior.
//
// ChangeExpiredPassword may return an error when input validation, dependency calls, or security checks fail.
// ChangeExpiredPassword does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// This is the recovery path for accounts in must-change state, so there is no
// session to present and the minimum password age does not apply. The current
// password is still required and failed checks feed the lockout counter like
// a login attempt. Accounts whose password has not actually aged out are
// refused with [ErrPasswordNotExpired], so the path cannot be used to skirt
// the minimum-age rule.
//
//	Docs: docs/engine.md
func (e *Engine) ChangeExpiredPassword(ctx context.Context, email, oldPassword, newPassword string) error {
	if e == nil || e.passwordHash == nil || e.memberProvider == nil || e.sessionStore == nil {
		return ErrEngineNotReady
	}
	if oldPassword == "" || newPassword == "" {
		return ErrPasswordPolicy
	}

	member, err := e.memberProvider.GetMemberByEmail(normalizeEmail(email))
	if err != nil {
		sleepWithJitter(ctx, unknownEmailDelayMin, unknownEmailDelayMax)
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, "", "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"identifier": email,
				"reason":     "member_not_found",
			}
		})
		return ErrInvalidCredentials
	}

	now := time.Now()
	state := lockout.ExpireIfDue(lockoutStateFromRecord(member), now)
	if lockout.Locked(state, now) {
		e.metricInc(MetricLoginLocked)
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, member.MemberID, "", ErrAccountLocked, nil)
		return &LockedOutError{Remaining: lockout.Remaining(state, now)}
	}

	if !e.passwordHash.Verify(oldPassword, member.PasswordHash) {
		if _, perr := e.persistLoginState(ctx, member, func(m MemberRecord) LoginState {
			st := lockout.ExpireIfDue(lockoutStateFromRecord(m), now)
			st = lockout.Fail(st, e.lockoutPolicy(), now)
			return loginStateFrom(st, m.LastLoginAt)
		}); perr != nil {
			return perr
		}
		e.metricInc(MetricPasswordChangeInvalidOld)
		e.emitAudit(ctx, auditEventPasswordChangeInvalidOld, false, member.MemberID, "", ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}

	if !e.passwordExpired(member, now) {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, member.MemberID, "", ErrPasswordNotExpired, func() map[string]string {
			return map[string]string{
				"reason": "not_expired",
			}
		})
		return ErrPasswordNotExpired
	}

	if err := e.completePasswordChange(ctx, member, "", newPassword); err != nil {
		return err
	}

	_, err = e.persistLoginState(ctx, member, func(m MemberRecord) LoginState {
		return loginStateFrom(lockout.Succeed(lockoutStateFromRecord(m)), m.LastLoginAt)
	})
	return err
}

// completePasswordChange runs the shared tail of both change paths: policy,
// reuse window, hash install, and full session revocation.
func (e *Engine) completePasswordChange(ctx context.Context, member MemberRecord, sessionID, newPassword string) error {
	if violations := password.CheckComplexity(newPassword); len(violations) > 0 {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, member.MemberID, sessionID, ErrPasswordPolicy, nil)
		return &PolicyViolationsError{Violations: violations}
	}

	if err := e.rejectReusedPassword(ctx, member, newPassword); err != nil {
		if errors.Is(err, ErrPasswordReuse) {
			e.metricInc(MetricPasswordChangeReuseRejected)
			e.emitAudit(ctx, auditEventPasswordChangeReuse, false, member.MemberID, sessionID, ErrPasswordReuse, nil)
		}
		return err
	}

	if err := e.applyNewPassword(ctx, member, newPassword); err != nil {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, member.MemberID, sessionID, err, func() map[string]string {
			return map[string]string{
				"reason": "update_hash_failed",
			}
		})
		return err
	}

	if err := e.sessionStore.RevokeAllForMember(ctx, member.MemberID); err != nil {
		log.Print("memberauth: session invalidation failed after password change")
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, member.MemberID, sessionID, ErrSessionInvalidationFailed, func() map[string]string {
			return map[string]string{
				"reason": "session_invalidation_failed",
			}
		})
		return errors.Join(ErrSessionInvalidationFailed, err)
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.metricInc(MetricSessionInvalidated)
	e.emitAudit(ctx, auditEventPasswordChangeSuccess, true, member.MemberID, sessionID, nil, nil)
	return nil
}

func (e *Engine) minAgeRemaining(member MemberRecord, now time.Time) time.Duration {
	minAge := e.config.PasswordPolicy.MinAge
	if minAge <= 0 || member.LastPasswordChangeAt == 0 {
		return 0
	}

	eligibleAt := time.Unix(member.LastPasswordChangeAt, 0).Add(minAge)
	if now.Before(eligibleAt) {
		return eligibleAt.Sub(now)
	}
	return 0
}
