package memberauth

import (
	"context"
	"encoding/base32"
	"time"
)

// BeginTOTPEnrollment describes the begintotpenrollment operation and its observable behavior.
//
// BeginTOTPEnrollment may return an error when input validation, dependency calls, or security checks fail.
// BeginTOTPEnrollment does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Calling it again before confirmation returns the same pending secret, so a
// member who loses the setup screen can retry without invalidating the
// authenticator entry they may already have scanned. Enrollment takes effect
// only after [Engine.ConfirmTOTPEnrollment] verifies a code.
//
//	Docs: docs/totp.md
func (e *Engine) BeginTOTPEnrollment(ctx context.Context, memberID string) (*TOTPSetup, error) {
	if e == nil || e.totp == nil || e.memberProvider == nil {
		return nil, ErrEngineNotReady
	}
	if memberID == "" {
		return nil, ErrMemberNotFound
	}

	member, err := e.memberProvider.GetMemberByID(memberID)
	if err != nil {
		return nil, ErrMemberNotFound
	}

	var secretBase32 string
	if !member.TwoFactorEnabled && len(member.TwoFactorSecret) > 0 {
		enc := base32.StdEncoding.WithPadding(base32.NoPadding)
		secretBase32 = enc.EncodeToString(member.TwoFactorSecret)
	} else {
		raw, encoded, err := e.totp.GenerateSecret()
		if err != nil {
			return nil, err
		}
		if err := e.memberProvider.SetTwoFactorSecret(ctx, memberID, raw); err != nil {
			return nil, err
		}
		secretBase32 = encoded
	}

	e.metricInc(MetricTOTPEnrollStarted)
	e.emitAudit(ctx, auditEventTOTPSetupRequested, true, memberID, "", nil, nil)

	return &TOTPSetup{
		SecretBase32: secretBase32,
		URI:          e.totp.ProvisionURI(secretBase32, member.Email),
	}, nil
}

// ConfirmTOTPEnrollment describes the confirmtotpenrollment operation and its observable behavior.
//
// ConfirmTOTPEnrollment may return an error when input validation, dependency calls, or security checks fail.
// ConfirmTOTPEnrollment does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
//	Docs: docs/totp.md
func (e *Engine) ConfirmTOTPEnrollment(ctx context.Context, memberID, code string) error {
	if e == nil || e.totp == nil || e.memberProvider == nil {
		return ErrEngineNotReady
	}

	member, err := e.memberProvider.GetMemberByID(memberID)
	if err != nil {
		return ErrMemberNotFound
	}
	if len(member.TwoFactorSecret) == 0 {
		return ErrTwoFactorNotConfigured
	}

	ok, counter, err := e.totp.VerifyCode(member.TwoFactorSecret, code, time.Now())
	if err != nil || !ok || counter <= member.TOTPLastUsedCounter {
		e.metricInc(MetricTwoFactorFailure)
		e.emitAudit(ctx, auditEventTwoFactorFailure, false, memberID, "", ErrTwoFactorInvalid, func() map[string]string {
			return map[string]string{
				"phase": "enrollment",
			}
		})
		return ErrTwoFactorInvalid
	}

	// The enrollment code is burned before the factor goes live, so the same
	// step cannot be redeemed again at login.
	if err := e.memberProvider.UpdateTOTPLastUsedCounter(ctx, memberID, counter); err != nil {
		return err
	}
	if err := e.memberProvider.EnableTwoFactor(ctx, memberID); err != nil {
		return err
	}

	e.metricInc(MetricTOTPEnabled)
	e.emitAudit(ctx, auditEventTOTPEnabled, true, memberID, "", nil, nil)
	return nil
}

// DisableTOTP describes the disabletotp operation and its observable behavior.
//
// DisableTOTP may return an error when input validation, dependency calls, or security checks fail.
// DisableTOTP does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// A current valid code is required so a hijacked session alone cannot strip
// the second factor.
//
//	Docs: docs/totp.md
func (e *Engine) DisableTOTP(ctx context.Context, memberID, code string) error {
	if e == nil || e.totp == nil || e.memberProvider == nil {
		return ErrEngineNotReady
	}

	member, err := e.memberProvider.GetMemberByID(memberID)
	if err != nil {
		return ErrMemberNotFound
	}
	if !member.TwoFactorEnabled || len(member.TwoFactorSecret) == 0 {
		return ErrTwoFactorNotConfigured
	}

	ok, counter, err := e.totp.VerifyCode(member.TwoFactorSecret, code, time.Now())
	if err != nil || !ok || counter <= member.TOTPLastUsedCounter {
		e.metricInc(MetricTwoFactorFailure)
		e.emitAudit(ctx, auditEventTwoFactorFailure, false, memberID, "", ErrTwoFactorInvalid, func() map[string]string {
			return map[string]string{
				"phase": "disable",
			}
		})
		return ErrTwoFactorInvalid
	}

	if err := e.memberProvider.UpdateTOTPLastUsedCounter(ctx, memberID, counter); err != nil {
		return err
	}
	if err := e.memberProvider.DisableTwoFactor(ctx, memberID); err != nil {
		return err
	}
	if err := e.memberProvider.SetTwoFactorSecret(ctx, memberID, nil); err != nil {
		return err
	}

	e.metricInc(MetricTOTPDisabled)
	e.emitAudit(ctx, auditEventTOTPDisabled, true, memberID, "", nil, nil)
	return nil
}
