package memberauth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hireloop/memberauth/internal"
	"github.com/hireloop/memberauth/internal/stores"
)

// ConfirmTwoFactor describes the confirmtwofactor operation and its observable behavior.
//
// ConfirmTwoFactor may return an error when input validation, dependency calls, or security checks fail.
// ConfirmTwoFactor does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
//	Docs: docs/two_factor.md
func (e *Engine) ConfirmTwoFactor(ctx context.Context, challengeToken, code string) (*LoginResult, error) {
	if e == nil || e.twoFactorStore == nil || e.memberProvider == nil {
		return nil, ErrEngineNotReady
	}

	challenge, err := e.twoFactorStore.Get(ctx, challengeToken)
	if err != nil {
		e.metricInc(MetricTwoFactorFailure)
		mapped := wrapTwoFactorErr(err)
		var meta func() map[string]string
		if errors.Is(err, stores.ErrChallengeExpired) {
			meta = func() map[string]string {
				return map[string]string{
					"reason": "challenge_expired",
				}
			}
		}
		e.emitAudit(ctx, auditEventTwoFactorFailure, false, "", "", mapped, meta)
		return nil, mapped
	}

	member, err := e.memberProvider.GetMemberByID(challenge.MemberID)
	if err != nil {
		return nil, ErrMemberNotFound
	}

	ok, matchedCounter, err := e.checkSecondFactor(challenge, member, code)
	if err != nil {
		e.metricInc(MetricTwoFactorFailure)
		e.emitAudit(ctx, auditEventTwoFactorFailure, false, member.MemberID, "", err, nil)
		return nil, err
	}

	if !ok {
		exceeded, recErr := e.twoFactorStore.RecordFailure(ctx, challengeToken, e.config.TwoFactor.MaxAttempts)
		if recErr != nil {
			e.metricInc(MetricTwoFactorFailure)
			mapped := wrapTwoFactorErr(recErr)
			e.emitAudit(ctx, auditEventTwoFactorFailure, false, member.MemberID, "", mapped, nil)
			return nil, mapped
		}
		if exceeded {
			e.metricInc(MetricTwoFactorFailure)
			e.emitAudit(ctx, auditEventTwoFactorAttemptsExceed, false, member.MemberID, "", ErrTwoFactorAttemptsExceeded, nil)
			return nil, ErrTwoFactorAttemptsExceeded
		}

		e.metricInc(MetricTwoFactorFailure)
		e.emitAudit(ctx, auditEventTwoFactorFailure, false, member.MemberID, "", ErrTwoFactorInvalid, nil)
		return nil, ErrTwoFactorInvalid
	}

	// Single use is enforced here: the code checked out, but only the caller
	// that wins the atomic consume completes the login.
	consumed, err := e.twoFactorStore.Consume(ctx, challengeToken)
	if err != nil {
		if errors.Is(err, stores.ErrChallengeNotFound) {
			e.metricInc(MetricTwoFactorReplayAttempt)
			e.emitAudit(ctx, auditEventTwoFactorFailure, false, member.MemberID, "", ErrTwoFactorReplay, nil)
			return nil, ErrTwoFactorReplay
		}
		e.metricInc(MetricTwoFactorFailure)
		mapped := wrapTwoFactorErr(err)
		e.emitAudit(ctx, auditEventTwoFactorFailure, false, member.MemberID, "", mapped, nil)
		return nil, mapped
	}

	if consumed.Method == twoFactorMethodTOTP {
		// Persisting the accepted step is what makes the code single use
		// across logins inside the skew window.
		if err := e.memberProvider.UpdateTOTPLastUsedCounter(ctx, member.MemberID, matchedCounter); err != nil {
			e.metricInc(MetricTwoFactorFailure)
			e.emitAudit(ctx, auditEventTwoFactorFailure, false, member.MemberID, "", err, nil)
			return nil, err
		}
	}

	e.metricInc(MetricTwoFactorSuccess)
	e.emitAudit(ctx, auditEventTwoFactorSuccess, true, member.MemberID, "", nil, func() map[string]string {
		return map[string]string{
			"method": consumed.Method,
		}
	})

	return e.finalizeLogin(ctx, member, time.Now(), consumed.RememberMe)
}

// ResendTwoFactorCode describes the resendtwofactorcode operation and its observable behavior.
//
// ResendTwoFactorCode may return an error when input validation, dependency calls, or security checks fail.
// ResendTwoFactorCode does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
//	Docs: docs/two_factor.md
func (e *Engine) ResendTwoFactorCode(ctx context.Context, challengeToken string) error {
	if e == nil || e.twoFactorStore == nil || e.memberProvider == nil {
		return ErrEngineNotReady
	}

	challenge, err := e.twoFactorStore.Get(ctx, challengeToken)
	if err != nil {
		return wrapTwoFactorErr(err)
	}
	if challenge.Method != twoFactorMethodEmail {
		return ErrTwoFactorNotConfigured
	}
	if e.mailer == nil {
		return ErrMailDeliveryFailed
	}

	member, err := e.memberProvider.GetMemberByID(challenge.MemberID)
	if err != nil {
		return ErrMemberNotFound
	}

	code, err := internal.NewOTP(e.config.TwoFactor.EmailOTPDigits)
	if err != nil {
		return err
	}

	if err := e.mailer.SendOneTimeCode(ctx, member.Email, code); err != nil {
		e.metricInc(MetricMailDeliveryFailure)
		e.emitAudit(ctx, auditEventTwoFactorResend, false, member.MemberID, "", ErrMailDeliveryFailed, nil)
		return ErrMailDeliveryFailed
	}

	// The failure counter carries over so resending never buys extra guesses.
	updated := &stores.TwoFactorChallenge{
		MemberID:   challenge.MemberID,
		Method:     challenge.Method,
		CodeHash:   internal.HashBytes([]byte(code)),
		RememberMe: challenge.RememberMe,
		ExpiresAt:  time.Now().Add(e.config.TwoFactor.ChallengeTTL).Unix(),
		Attempts:   challenge.Attempts,
	}
	if err := e.twoFactorStore.Save(ctx, challengeToken, updated, e.config.TwoFactor.ChallengeTTL); err != nil {
		return wrapTwoFactorErr(err)
	}

	e.metricInc(MetricTwoFactorResend)
	e.emitAudit(ctx, auditEventTwoFactorResend, true, member.MemberID, "", nil, nil)
	return nil
}

// checkSecondFactor reports whether the code matches and, for TOTP, the
// matched time step so the caller can persist it.
func (e *Engine) checkSecondFactor(
	challenge *stores.TwoFactorChallenge,
	member MemberRecord,
	code string,
) (bool, int64, error) {
	switch challenge.Method {
	case twoFactorMethodTOTP:
		if len(member.TwoFactorSecret) == 0 {
			return false, 0, ErrTwoFactorNotConfigured
		}
		ok, counter, err := e.totp.VerifyCode(member.TwoFactorSecret, code, time.Now())
		if err != nil {
			return false, 0, ErrTwoFactorInvalid
		}
		// A code at or before the last accepted step is a replay and counts
		// as a plain mismatch.
		if ok && counter <= member.TOTPLastUsedCounter {
			return false, 0, nil
		}
		return ok, counter, nil

	case twoFactorMethodEmail:
		provided := internal.HashBytes([]byte(strings.TrimSpace(code)))
		return subtle.ConstantTimeCompare(provided[:], challenge.CodeHash[:]) == 1, 0, nil

	default:
		return false, 0, ErrTwoFactorNotConfigured
	}
}

func wrapTwoFactorErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, stores.ErrChallengeNotFound),
		errors.Is(err, stores.ErrChallengeExpired):
		// Expiry and absence are indistinguishable to the caller. The audit
		// trail keeps them apart through event metadata.
		return ErrTwoFactorInvalid
	case errors.Is(err, stores.ErrChallengeExceeded):
		return ErrTwoFactorAttemptsExceeded
	default:
		return fmt.Errorf("%w: %v", ErrTwoFactorUnavailable, err)
	}
}
