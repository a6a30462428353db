// Package lockout implements the failed-login lockout decision machine.
//
// The package is intentionally free of I/O and clocks. Every function is a
// pure transformation of (State, Policy, now) so the caller can evaluate the
// same attempt deterministically in tests and persist the resulting State
// wherever account records live.
package lockout

import "time"

// Policy defines a public type used by memberauth APIs.
//
// Policy instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Policy struct {
	MaxAttempts int
	Duration    time.Duration
}

// State defines a public type used by memberauth APIs.
//
// State instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type State struct {
	FailedAttempts int
	LockedUntil    time.Time
}

// Locked describes the locked operation and its observable behavior.
//
// Locked reports whether the account is inside an active lockout window at
// the supplied instant. A zero LockedUntil means the account was never
// locked, or the lock has been cleared.
func Locked(s State, now time.Time) bool {
	return !s.LockedUntil.IsZero() && now.Before(s.LockedUntil)
}

// ExpireIfDue describes the expire-if-due operation and its observable behavior.
//
// ExpireIfDue clears an elapsed lock and zeroes the failure counter. It must
// run before the credential is evaluated so an attempt arriving after the
// window observes a clean State.
func ExpireIfDue(s State, now time.Time) State {
	if s.LockedUntil.IsZero() || now.Before(s.LockedUntil) {
		return s
	}
	return State{}
}

// Fail describes the fail operation and its observable behavior.
//
// Fail records one failed credential check. Reaching MaxAttempts transitions
// the State into a lockout window of Policy.Duration. The counter is not
// reset on the locking transition; it is cleared only by success or by
// ExpireIfDue.
func Fail(s State, p Policy, now time.Time) State {
	s.FailedAttempts++
	if p.MaxAttempts > 0 && s.FailedAttempts >= p.MaxAttempts {
		s.LockedUntil = now.Add(p.Duration)
	}
	return s
}

// Succeed describes the succeed operation and its observable behavior.
//
// Succeed returns the clean State produced by a successful credential check.
func Succeed(s State) State {
	return State{}
}

// Remaining describes the remaining operation and its observable behavior.
//
// Remaining returns how long the active lockout window still has to run.
// It returns zero when the account is not locked.
func Remaining(s State, now time.Time) time.Duration {
	if !Locked(s, now) {
		return 0
	}
	return s.LockedUntil.Sub(now)
}
