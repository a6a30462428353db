package memberauth

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventLoginSuccess             = "login_success"
	auditEventLoginFailure             = "login_failure"
	auditEventLoginAttemptLocked       = "login_attempt_locked"
	auditEventAccountLocked            = "account_locked"
	auditEventCaptchaRejected          = "captcha_rejected"
	auditEventPasswordExpiredLogin     = "password_expired_login"
	auditEventTwoFactorRequired        = "two_factor_required"
	auditEventTwoFactorSuccess         = "two_factor_success"
	auditEventTwoFactorFailure         = "two_factor_failure"
	auditEventTwoFactorAttemptsExceed  = "two_factor_attempts_exceeded"
	auditEventTwoFactorResend          = "two_factor_resend"
	auditEventPasswordChangeSuccess    = "password_change_success"
	auditEventPasswordChangeInvalidOld = "password_change_invalid_old"
	auditEventPasswordChangeReuse      = "password_change_reuse_attempt"
	auditEventPasswordChangeTooSoon    = "password_change_too_soon"
	auditEventPasswordChangeFailure    = "password_change_failure"
	auditEventPasswordResetRequest     = "password_reset_request"
	auditEventPasswordResetConfirm     = "password_reset_confirm"
	auditEventPasswordResetReplay      = "password_reset_replay"
	auditEventLogoutSession            = "logout_session"
	auditEventLogoutAll                = "logout_all"
	auditEventTOTPSetupRequested       = "totp_setup_requested"
	auditEventTOTPEnabled              = "totp_enabled"
	auditEventTOTPDisabled             = "totp_disabled"
)

// AuditErrorCode defines a public type used by memberauth APIs.
//
// AuditErrorCode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditErrorCode string

const (
	auditErrInvalidCredentials  AuditErrorCode = "invalid_credentials"
	auditErrMemberNotFound      AuditErrorCode = "member_not_found"
	auditErrAccountLocked       AuditErrorCode = "account_locked"
	auditErrCaptchaRejected     AuditErrorCode = "captcha_rejected"
	auditErrPasswordPolicy      AuditErrorCode = "password_policy"
	auditErrPasswordReuse       AuditErrorCode = "password_reuse"
	auditErrPasswordTooSoon     AuditErrorCode = "password_change_too_soon"
	auditErrPasswordExpired     AuditErrorCode = "password_expired"
	auditErrPasswordNotExpired  AuditErrorCode = "password_not_expired"
	auditErrInvalidToken        AuditErrorCode = "invalid_token"
	auditErrTwoFactorInvalid    AuditErrorCode = "two_factor_invalid"
	auditErrTwoFactorReplay     AuditErrorCode = "two_factor_replay"
	auditErrAttemptsExceeded    AuditErrorCode = "attempts_exceeded"
	auditErrSessionNotFound     AuditErrorCode = "session_not_found"
	auditErrSessionCreation     AuditErrorCode = "session_creation_failed"
	auditErrSessionInvalidation AuditErrorCode = "session_invalidation_failed"
	auditErrMailDelivery        AuditErrorCode = "mail_delivery_failed"
	auditErrUnavailable         AuditErrorCode = "backend_unavailable"
	auditErrInternal            AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	memberID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		MemberID:  memberID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrMemberNotFound):
		return auditErrMemberNotFound
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrCaptchaRejected):
		return auditErrCaptchaRejected
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrPasswordReuse):
		return auditErrPasswordReuse
	case errors.Is(err, ErrPasswordChangeTooSoon):
		return auditErrPasswordTooSoon
	case errors.Is(err, ErrPasswordExpired):
		return auditErrPasswordExpired
	case errors.Is(err, ErrPasswordNotExpired):
		return auditErrPasswordNotExpired
	case errors.Is(err, ErrPasswordResetInvalid),
		errors.Is(err, ErrTokenInvalid):
		return auditErrInvalidToken
	case errors.Is(err, ErrTwoFactorInvalid),
		errors.Is(err, ErrTwoFactorNotConfigured):
		return auditErrTwoFactorInvalid
	case errors.Is(err, ErrTwoFactorReplay):
		return auditErrTwoFactorReplay
	case errors.Is(err, ErrTwoFactorAttemptsExceeded),
		errors.Is(err, ErrPasswordResetAttempts):
		return auditErrAttemptsExceeded
	case errors.Is(err, ErrSessionNotFound):
		return auditErrSessionNotFound
	case errors.Is(err, ErrSessionCreationFailed):
		return auditErrSessionCreation
	case errors.Is(err, ErrSessionInvalidationFailed):
		return auditErrSessionInvalidation
	case errors.Is(err, ErrMailDeliveryFailed):
		return auditErrMailDelivery
	case errors.Is(err, ErrSessionUnavailable),
		errors.Is(err, ErrTwoFactorUnavailable),
		errors.Is(err, ErrPasswordResetUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
