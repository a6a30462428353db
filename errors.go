package memberauth

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrEngineNotReady is an exported constant or variable used by the authentication engine.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrInvalidCredentials is an exported constant or variable used by the authentication engine.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrMemberNotFound is an exported constant or variable used by the authentication engine.
	ErrMemberNotFound = errors.New("member not found")
	// ErrVersionConflict is an exported constant or variable used by the authentication engine.
	ErrVersionConflict = errors.New("member record version conflict")
	// ErrAccountLocked is an exported constant or variable used by the authentication engine.
	ErrAccountLocked = errors.New("account locked")
	// ErrCaptchaRejected is an exported constant or variable used by the authentication engine.
	ErrCaptchaRejected = errors.New("captcha verification failed")
	// ErrPasswordPolicy is an exported constant or variable used by the authentication engine.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrPasswordReuse is an exported constant or variable used by the authentication engine.
	ErrPasswordReuse = errors.New("password reuse rejected")
	// ErrPasswordChangeTooSoon is an exported constant or variable used by the authentication engine.
	ErrPasswordChangeTooSoon = errors.New("password changed too recently")
	// ErrPasswordExpired is an exported constant or variable used by the authentication engine.
	ErrPasswordExpired = errors.New("password expired")
	// ErrPasswordNotExpired is an exported constant or variable used by the authentication engine.
	ErrPasswordNotExpired = errors.New("password not expired")
	// ErrTwoFactorInvalid is an exported constant or variable used by the authentication engine.
	ErrTwoFactorInvalid = errors.New("two-factor code invalid")
	// ErrTwoFactorAttemptsExceeded is an exported constant or variable used by the authentication engine.
	ErrTwoFactorAttemptsExceeded = errors.New("two-factor attempts exceeded")
	// ErrTwoFactorReplay is an exported constant or variable used by the authentication engine.
	ErrTwoFactorReplay = errors.New("two-factor challenge replay")
	// ErrTwoFactorUnavailable is an exported constant or variable used by the authentication engine.
	ErrTwoFactorUnavailable = errors.New("two-factor backend unavailable")
	// ErrTwoFactorNotConfigured is an exported constant or variable used by the authentication engine.
	ErrTwoFactorNotConfigured = errors.New("two-factor not configured")
	// ErrPasswordResetInvalid is an exported constant or variable used by the authentication engine.
	ErrPasswordResetInvalid = errors.New("password reset token invalid")
	// ErrPasswordResetAttempts is an exported constant or variable used by the authentication engine.
	ErrPasswordResetAttempts = errors.New("password reset attempts exceeded")
	// ErrPasswordResetUnavailable is an exported constant or variable used by the authentication engine.
	ErrPasswordResetUnavailable = errors.New("password reset backend unavailable")
	// ErrSessionNotFound is an exported constant or variable used by the authentication engine.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionUnavailable is an exported constant or variable used by the authentication engine.
	ErrSessionUnavailable = errors.New("session backend unavailable")
	// ErrSessionCreationFailed is an exported constant or variable used by the authentication engine.
	ErrSessionCreationFailed = errors.New("session creation failed")
	// ErrSessionInvalidationFailed is an exported constant or variable used by the authentication engine.
	ErrSessionInvalidationFailed = errors.New("session invalidation failed")
	// ErrTokenInvalid is an exported constant or variable used by the authentication engine.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrMailDeliveryFailed is an exported constant or variable used by the authentication engine.
	ErrMailDeliveryFailed = errors.New("mail delivery failed")
)

// LockedOutError reports an active lockout window with the remaining wait.
// Matches [ErrAccountLocked] through errors.Is.
type LockedOutError struct {
	Remaining time.Duration
}

func (e *LockedOutError) Error() string {
	return fmt.Sprintf("account locked, retry in %s", e.Remaining.Round(time.Second))
}

func (e *LockedOutError) Is(target error) bool {
	return target == ErrAccountLocked
}

// TooSoonError reports a password change attempted inside the minimum-age
// window with the remaining wait. Matches [ErrPasswordChangeTooSoon] through
// errors.Is.
type TooSoonError struct {
	Remaining time.Duration
}

func (e *TooSoonError) Error() string {
	return fmt.Sprintf("password changed too recently, retry in %s", e.Remaining.Round(time.Second))
}

func (e *TooSoonError) Is(target error) bool {
	return target == ErrPasswordChangeTooSoon
}

// PolicyViolationsError carries every complexity rule the candidate password
// violated. Matches [ErrPasswordPolicy] through errors.Is.
type PolicyViolationsError struct {
	Violations []string
}

func (e *PolicyViolationsError) Error() string {
	return "password policy violation: " + strings.Join(e.Violations, "; ")
}

func (e *PolicyViolationsError) Is(target error) bool {
	return target == ErrPasswordPolicy
}
