package internaldefs

import (
	memberauth "github.com/hireloop/memberauth"
)

// CounterDef defines a public type used by memberauth APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   memberauth.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by memberauth APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   memberauth.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the authentication engine.
var CounterDefs = []CounterDef{
	{ID: memberauth.MetricLoginSuccess, Name: "memberauth_login_success_total", Help: "Successful login attempts."},
	{ID: memberauth.MetricLoginFailure, Name: "memberauth_login_failure_total", Help: "Failed login attempts."},
	{ID: memberauth.MetricLoginLocked, Name: "memberauth_login_locked_total", Help: "Login attempts rejected while the account was locked."},
	{ID: memberauth.MetricAccountLocked, Name: "memberauth_account_locked_total", Help: "Lockout windows opened by failed attempts."},
	{ID: memberauth.MetricCaptchaRejected, Name: "memberauth_captcha_rejected_total", Help: "Login attempts rejected by the captcha gate."},
	{ID: memberauth.MetricPasswordExpired, Name: "memberauth_password_expired_total", Help: "Logins short-circuited by an expired password."},
	{ID: memberauth.MetricTwoFactorRequired, Name: "memberauth_two_factor_required_total", Help: "Logins that required a second factor."},
	{ID: memberauth.MetricTwoFactorSuccess, Name: "memberauth_two_factor_success_total", Help: "Successful second-factor confirmations."},
	{ID: memberauth.MetricTwoFactorFailure, Name: "memberauth_two_factor_failure_total", Help: "Failed second-factor confirmations."},
	{ID: memberauth.MetricTwoFactorReplayAttempt, Name: "memberauth_two_factor_replay_attempt_total", Help: "Detected second-factor replay attempts."},
	{ID: memberauth.MetricTwoFactorResend, Name: "memberauth_two_factor_resend_total", Help: "Resent one-time codes."},
	{ID: memberauth.MetricTOTPEnrollStarted, Name: "memberauth_totp_enroll_started_total", Help: "Started TOTP enrollments."},
	{ID: memberauth.MetricTOTPEnabled, Name: "memberauth_totp_enabled_total", Help: "Confirmed TOTP enrollments."},
	{ID: memberauth.MetricTOTPDisabled, Name: "memberauth_totp_disabled_total", Help: "TOTP disable operations."},
	{ID: memberauth.MetricPasswordChangeSuccess, Name: "memberauth_password_change_success_total", Help: "Successful password changes."},
	{ID: memberauth.MetricPasswordChangeInvalidOld, Name: "memberauth_password_change_invalid_old_total", Help: "Password change attempts with invalid current password."},
	{ID: memberauth.MetricPasswordChangeReuseRejected, Name: "memberauth_password_change_reuse_rejected_total", Help: "Password change attempts rejected for reuse."},
	{ID: memberauth.MetricPasswordChangeTooSoon, Name: "memberauth_password_change_too_soon_total", Help: "Password change attempts inside the minimum-age window."},
	{ID: memberauth.MetricPasswordResetRequest, Name: "memberauth_password_reset_request_total", Help: "Password reset requests."},
	{ID: memberauth.MetricPasswordResetConfirmSuccess, Name: "memberauth_password_reset_confirm_success_total", Help: "Successful password reset confirmations."},
	{ID: memberauth.MetricPasswordResetConfirmFailure, Name: "memberauth_password_reset_confirm_failure_total", Help: "Failed password reset confirmations."},
	{ID: memberauth.MetricPasswordResetAttemptsExceeded, Name: "memberauth_password_reset_attempts_exceeded_total", Help: "Password reset challenges invalidated due to attempt cap."},
	{ID: memberauth.MetricSessionCreated, Name: "memberauth_session_created_total", Help: "Created sessions."},
	{ID: memberauth.MetricSessionInvalidated, Name: "memberauth_session_invalidated_total", Help: "Invalidated sessions."},
	{ID: memberauth.MetricLogout, Name: "memberauth_logout_total", Help: "Single-session logout operations."},
	{ID: memberauth.MetricLogoutAll, Name: "memberauth_logout_all_total", Help: "Logout-all operations."},
	{ID: memberauth.MetricMailDeliveryFailure, Name: "memberauth_mail_delivery_failure_total", Help: "Failed security mail deliveries."},
}

// HistogramDefs is an exported constant or variable used by the authentication engine.
var HistogramDefs = []HistogramDef{
	{ID: memberauth.MetricValidateLatency, Name: "memberauth_validate_latency_seconds", Help: "Session validation latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the authentication engine.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the authentication engine.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
