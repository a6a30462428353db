package memberauth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/hireloop/memberauth/internal/stores"
	"github.com/hireloop/memberauth/jwt"
	"github.com/hireloop/memberauth/lockout"
	"github.com/hireloop/memberauth/password"
	"github.com/hireloop/memberauth/session"
)

// Engine defines a public type used by memberauth APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config         Config
	sessionStore   *session.Store
	resetStore     *stores.PasswordResetStore
	twoFactorStore *stores.TwoFactorChallengeStore
	audit          *auditDispatcher
	metrics        *Metrics
	passwordHash   *password.PBKDF2
	totp           *totpManager
	jwtManager     *jwt.Manager
	memberProvider MemberProvider
	mailer         Mailer
	captcha        CaptchaVerifier
}

// Close describes the close operation and its observable behavior.
//
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) lockoutPolicy() lockout.Policy {
	return lockout.Policy{
		MaxAttempts: e.config.Lockout.MaxAttempts,
		Duration:    e.config.Lockout.Duration,
	}
}

func lockoutStateFromRecord(member MemberRecord) lockout.State {
	state := lockout.State{
		FailedAttempts: member.FailedLoginAttempts,
	}
	if member.LockedUntil != 0 {
		state.LockedUntil = time.Unix(member.LockedUntil, 0)
	}
	return state
}

func loginStateFrom(state lockout.State, lastLoginAt int64) LoginState {
	out := LoginState{
		FailedLoginAttempts: state.FailedAttempts,
		LastLoginAt:         lastLoginAt,
	}
	if !state.LockedUntil.IsZero() {
		out.LockedUntil = state.LockedUntil.Unix()
	}
	return out
}

func lockoutStateFromLoginState(persisted LoginState) lockout.State {
	state := lockout.State{
		FailedAttempts: persisted.FailedLoginAttempts,
	}
	if persisted.LockedUntil != 0 {
		state.LockedUntil = time.Unix(persisted.LockedUntil, 0)
	}
	return state
}

const maxLoginStateRetries = 4

// persistLoginState writes the lockout slice through the provider's
// compare-and-swap, re-reading the record and re-deriving the state on
// version conflict. transition must be a pure function of the freshly
// loaded record so a retried write observes concurrent attempts.
func (e *Engine) persistLoginState(
	ctx context.Context,
	member MemberRecord,
	transition func(MemberRecord) LoginState,
) (LoginState, error) {
	state := transition(member)

	for i := 0; i < maxLoginStateRetries; i++ {
		err := e.memberProvider.UpdateLoginState(ctx, member.MemberID, state, member.Version)
		if err == nil {
			return state, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return LoginState{}, err
		}

		member, err = e.memberProvider.GetMemberByID(member.MemberID)
		if err != nil {
			return LoginState{}, err
		}
		state = transition(member)
	}

	return LoginState{}, ErrVersionConflict
}

// sleepWithJitter blocks for a uniformly random duration in [min, max],
// or until the context is cancelled.
func sleepWithJitter(ctx context.Context, min, max time.Duration) {
	if max < min {
		max = min
	}

	d := min
	if span := int64(max - min); span > 0 {
		n, err := rand.Int(rand.Reader, big.NewInt(span+1))
		if err == nil {
			d += time.Duration(n.Int64())
		}
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (e *Engine) sessionLifetime(rememberMe bool) time.Duration {
	if rememberMe && e.config.Session.RememberMeTTL > 0 {
		return e.config.Session.RememberMeTTL
	}
	return e.config.Session.TTL
}

func (e *Engine) passwordExpired(member MemberRecord, now time.Time) bool {
	if e.config.PasswordPolicy.MaxAge <= 0 {
		return false
	}
	if member.LastPasswordChangeAt == 0 {
		return false
	}
	changedAt := time.Unix(member.LastPasswordChangeAt, 0)
	return now.Sub(changedAt) > e.config.PasswordPolicy.MaxAge
}

func wrapSessionErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, session.ErrRedisUnavailable) {
		return fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
	}
	return err
}
