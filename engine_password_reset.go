package memberauth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hireloop/memberauth/internal"
	"github.com/hireloop/memberauth/internal/stores"
	"github.com/hireloop/memberauth/lockout"
	"github.com/hireloop/memberauth/password"
	"github.com/redis/go-redis/v9"
)

const (
	resetAckDelayMin = 500 * time.Millisecond
	resetAckDelayMax = 1500 * time.Millisecond
)

// RequestPasswordReset describes the requestpasswordreset operation and its observable behavior.
//
// RequestPasswordReset acknowledges every well-formed request identically:
// unknown addresses return nil after a randomized delay, so the caller cannot
// tell whether an account exists. Delivery failures for known accounts are
// logged and also acknowledged with nil.
//
//	Docs: docs/password_reset.md
func (e *Engine) RequestPasswordReset(ctx context.Context, email, captchaToken string) error {
	if e == nil || e.resetStore == nil || e.memberProvider == nil || e.mailer == nil {
		return ErrEngineNotReady
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
			return err
		}
	}

	member, err := e.memberProvider.GetMemberByEmail(email)
	if err != nil {
		sleepWithJitter(ctx, resetAckDelayMin, resetAckDelayMax)
		e.metricInc(MetricPasswordResetRequest)
		e.emitAudit(ctx, auditEventPasswordResetRequest, true, "", "", nil, func() map[string]string {
			return map[string]string{
				"identifier": email,
				"reason":     "member_not_found",
			}
		})
		return nil
	}

	resetID, challenge, secretHash, err := e.generatePasswordResetChallenge(
		e.config.PasswordReset.Strategy,
		e.config.PasswordReset.OTPDigits,
	)
	if err != nil {
		return err
	}

	record := &stores.PasswordResetRecord{
		MemberID:   member.MemberID,
		SecretHash: secretHash,
		ExpiresAt:  time.Now().Add(e.config.PasswordReset.ResetTTL).Unix(),
		Strategy:   int(e.config.PasswordReset.Strategy),
	}
	if err := e.resetStore.Save(ctx, resetID, record, e.config.PasswordReset.ResetTTL); err != nil {
		return mapPasswordResetStoreError(err)
	}

	if err := e.mailer.SendPasswordReset(ctx, member.Email, challenge); err != nil {
		e.metricInc(MetricMailDeliveryFailure)
		log.Print("memberauth: password reset mail delivery failed")
		e.emitAudit(ctx, auditEventPasswordResetRequest, false, member.MemberID, "", ErrMailDeliveryFailed, nil)
		return nil
	}

	e.metricInc(MetricPasswordResetRequest)
	e.emitAudit(ctx, auditEventPasswordResetRequest, true, member.MemberID, "", nil, nil)
	return nil
}

// ConfirmPasswordReset describes the confirmpasswordreset operation and its observable behavior.
//
// ConfirmPasswordReset may return an error when input validation, dependency calls, or security checks fail.
// ConfirmPasswordReset does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// A successful confirm consumes the challenge, clears any lockout, and
// revokes every session of the member. The minimum password age is not
// enforced on this path.
//
//	Docs: docs/password_reset.md
func (e *Engine) ConfirmPasswordReset(ctx context.Context, challenge, newPassword string) error {
	if e == nil || e.resetStore == nil || e.memberProvider == nil || e.passwordHash == nil {
		return ErrEngineNotReady
	}

	strategy := e.config.PasswordReset.Strategy
	resetID, providedHash, err := parsePasswordResetChallenge(strategy, challenge, e.config.PasswordReset.OTPDigits)
	if err != nil {
		e.metricInc(MetricPasswordResetConfirmFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, "", "", ErrPasswordResetInvalid, func() map[string]string {
			return map[string]string{
				"reason": "challenge_parse_failed",
			}
		})
		return ErrPasswordResetInvalid
	}

	if violations := password.CheckComplexity(newPassword); len(violations) > 0 {
		e.metricInc(MetricPasswordResetConfirmFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, "", "", ErrPasswordPolicy, nil)
		return &PolicyViolationsError{Violations: violations}
	}

	record, err := e.resetStore.Consume(
		ctx,
		resetID,
		providedHash,
		int(strategy),
		e.config.PasswordReset.MaxAttempts,
	)
	if err != nil {
		mapped := mapPasswordResetStoreError(err)
		switch {
		case errors.Is(err, stores.ErrResetNotFound):
			// A consumed record reads back as not-found, so replays land here.
			e.metricInc(MetricPasswordResetConfirmFailure)
			e.emitAudit(ctx, auditEventPasswordResetReplay, false, "", "", mapped, nil)
		case errors.Is(err, stores.ErrResetAttemptsExceeded):
			e.metricInc(MetricPasswordResetAttemptsExceeded)
			e.emitAudit(ctx, auditEventPasswordResetConfirm, false, "", "", mapped, nil)
		default:
			e.metricInc(MetricPasswordResetConfirmFailure)
			e.emitAudit(ctx, auditEventPasswordResetConfirm, false, "", "", mapped, nil)
		}
		return mapped
	}

	member, err := e.memberProvider.GetMemberByID(record.MemberID)
	if err != nil {
		e.metricInc(MetricPasswordResetConfirmFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, record.MemberID, "", ErrMemberNotFound, nil)
		return ErrMemberNotFound
	}

	if err := e.rejectReusedPassword(ctx, member, newPassword); err != nil {
		e.metricInc(MetricPasswordResetConfirmFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, member.MemberID, "", err, nil)
		return err
	}

	if err := e.applyNewPassword(ctx, member, newPassword); err != nil {
		e.metricInc(MetricPasswordResetConfirmFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, member.MemberID, "", err, nil)
		return err
	}

	if _, err := e.persistLoginState(ctx, member, func(m MemberRecord) LoginState {
		return loginStateFrom(lockout.Succeed(lockoutStateFromRecord(m)), m.LastLoginAt)
	}); err != nil {
		return err
	}

	if err := e.sessionStore.RevokeAllForMember(ctx, member.MemberID); err != nil {
		log.Print("memberauth: session invalidation failed after password reset")
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, member.MemberID, "", ErrSessionInvalidationFailed, nil)
		return errors.Join(ErrSessionInvalidationFailed, err)
	}

	e.metricInc(MetricPasswordResetConfirmSuccess)
	e.metricInc(MetricSessionInvalidated)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, member.MemberID, "", nil, nil)
	return nil
}

// rejectReusedPassword checks the candidate against the current hash and the
// retired history window.
func (e *Engine) rejectReusedPassword(ctx context.Context, member MemberRecord, candidate string) error {
	if e.passwordHash.Verify(candidate, member.PasswordHash) {
		return ErrPasswordReuse
	}

	depth := e.config.PasswordPolicy.HistoryDepth
	if depth <= 0 {
		return nil
	}

	history, err := e.memberProvider.PasswordHistory(ctx, member.MemberID, depth)
	if err != nil {
		return err
	}
	for _, retired := range history {
		if e.passwordHash.Verify(candidate, retired) {
			return ErrPasswordReuse
		}
	}
	return nil
}

// applyNewPassword retires the current hash into history and installs the
// new one.
func (e *Engine) applyNewPassword(ctx context.Context, member MemberRecord, newPassword string) error {
	newHash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		return err
	}

	if depth := e.config.PasswordPolicy.HistoryDepth; depth > 0 && member.PasswordHash != "" {
		if err := e.memberProvider.AppendPasswordHistory(ctx, member.MemberID, member.PasswordHash, depth); err != nil {
			return err
		}
	}

	return e.memberProvider.UpdatePasswordHash(member.MemberID, newHash)
}

func (e *Engine) generatePasswordResetChallenge(
	strategy ResetStrategyType,
	otpDigits int,
) (string, string, [32]byte, error) {
	var emptyHash [32]byte

	switch strategy {
	case ResetToken:
		resetID, err := internal.NewTokenID()
		if err != nil {
			return "", "", emptyHash, err
		}

		secret, err := internal.NewResetSecret()
		if err != nil {
			return "", "", emptyHash, err
		}

		challenge, err := internal.EncodeResetToken(resetID.String(), secret)
		if err != nil {
			return "", "", emptyHash, err
		}

		return resetID.String(), challenge, internal.HashResetSecret(secret), nil

	case ResetUUID:
		resetUUID := uuid.New()
		resetID := resetUUID.String()
		return resetID, resetID, internal.HashBytes([]byte(resetID)), nil

	case ResetOTP:
		resetID, err := internal.NewTokenID()
		if err != nil {
			return "", "", emptyHash, err
		}

		otp, err := internal.NewOTP(otpDigits)
		if err != nil {
			return "", "", emptyHash, err
		}

		challenge := resetID.String() + "." + otp
		return resetID.String(), challenge, internal.HashBytes([]byte(otp)), nil

	default:
		return "", "", emptyHash, fmt.Errorf("unsupported reset strategy")
	}
}

func parsePasswordResetChallenge(
	strategy ResetStrategyType,
	challenge string,
	otpDigits int,
) (string, [32]byte, error) {
	var emptyHash [32]byte

	switch strategy {
	case ResetToken:
		resetID, secret, err := internal.DecodeResetToken(challenge)
		if err != nil {
			return "", emptyHash, err
		}
		return resetID, internal.HashResetSecret(secret), nil

	case ResetUUID:
		parsed, err := uuid.Parse(challenge)
		if err != nil {
			return "", emptyHash, err
		}
		resetID := parsed.String()
		return resetID, internal.HashBytes([]byte(resetID)), nil

	case ResetOTP:
		parts := strings.SplitN(challenge, ".", 2)
		if len(parts) != 2 {
			return "", emptyHash, errors.New("invalid otp challenge format")
		}

		resetID := parts[0]
		otp := parts[1]

		if _, err := internal.ParseTokenID(resetID); err != nil {
			return "", emptyHash, err
		}
		if len(otp) != otpDigits {
			return "", emptyHash, errors.New("invalid otp length")
		}
		if !isNumericString(otp) {
			return "", emptyHash, errors.New("invalid otp format")
		}

		return resetID, internal.HashBytes([]byte(otp)), nil

	default:
		return "", emptyHash, errors.New("unsupported strategy")
	}
}

func mapPasswordResetStoreError(err error) error {
	switch {
	case errors.Is(err, stores.ErrResetSecretMismatch), errors.Is(err, stores.ErrResetNotFound), errors.Is(err, redis.Nil):
		return ErrPasswordResetInvalid
	case errors.Is(err, stores.ErrResetAttemptsExceeded):
		return ErrPasswordResetAttempts
	case errors.Is(err, stores.ErrResetRedisUnavailable):
		return ErrPasswordResetUnavailable
	default:
		return ErrPasswordResetUnavailable
	}
}

func isNumericString(v string) bool {
	for i := 0; i < len(v); i++ {
		if v[i] < '0' || v[i] > '9' {
			return false
		}
	}
	return true
}
