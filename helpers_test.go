package memberauth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("starting miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func testConfig() Config {
	cfg := defaultConfig()
	cfg.Password.Iterations = 10_000
	cfg.Password.SaltLength = 16
	cfg.Password.KeyLength = 16
	cfg.PasswordPolicy.MinAge = 0
	return cfg
}

type testEnv struct {
	mr       *miniredis.Miniredis
	engine   *Engine
	provider *fakeProvider
	mailer   *fakeMailer
	captcha  *fakeCaptcha
}

func newTestEngine(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()

	mr, client := newTestRedis(t)

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	provider := newFakeProvider()
	mailer := &fakeMailer{}
	captcha := &fakeCaptcha{score: 1}

	engine, err := New().
		WithConfig(cfg).
		WithRedis(client).
		WithMemberProvider(provider).
		WithMailer(mailer).
		WithCaptchaVerifier(captcha).
		Build()
	if err != nil {
		t.Fatalf("building engine: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{
		mr:       mr,
		engine:   engine,
		provider: provider,
		mailer:   mailer,
		captcha:  captcha,
	}
}

func (env *testEnv) seedMember(t *testing.T, email, plaintext string, mutate func(*MemberRecord)) MemberRecord {
	t.Helper()

	hash, err := env.engine.passwordHash.Hash(plaintext)
	if err != nil {
		t.Fatalf("hashing seed password: %v", err)
	}

	member := MemberRecord{
		MemberID:             "member-" + email,
		Email:                email,
		PasswordHash:         hash,
		LastPasswordChangeAt: time.Now().Add(-time.Hour).Unix(),
		Version:              1,
	}
	if mutate != nil {
		mutate(&member)
	}

	env.provider.put(member)
	return member
}

func (env *testEnv) member(t *testing.T, memberID string) MemberRecord {
	t.Helper()

	m, err := env.provider.GetMemberByID(memberID)
	if err != nil {
		t.Fatalf("loading member %s: %v", memberID, err)
	}
	return m
}

// totpCodeAt returns the code an authenticator would display for the secret
// at the given time offset from now.
func (env *testEnv) totpCodeAt(t *testing.T, secret []byte, offset time.Duration) string {
	t.Helper()

	cfg := env.engine.config.TOTP
	counter := time.Now().Add(offset).Unix() / int64(cfg.Period)
	code, err := hotpCode(secret, counter, cfg.Digits, cfg.Algorithm)
	if err != nil {
		t.Fatalf("computing totp code: %v", err)
	}
	return code
}

/*
====================================
FAKE MEMBER PROVIDER
====================================
*/

type fakeProvider struct {
	mu      sync.Mutex
	byID    map[string]MemberRecord
	byEmail map[string]string
	history map[string][]string

	failUpdateLoginState error
	conflictsRemaining   int
	mutateOnConflict     func(*MemberRecord)
	updateStateCalls     int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		byID:    make(map[string]MemberRecord),
		byEmail: make(map[string]string),
		history: make(map[string][]string),
	}
}

func (p *fakeProvider) put(m MemberRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byID[m.MemberID] = m
	p.byEmail[m.Email] = m.MemberID
}

func (p *fakeProvider) GetMemberByEmail(email string) (MemberRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id, ok := p.byEmail[email]
	if !ok {
		return MemberRecord{}, fmt.Errorf("member not found")
	}
	return p.byID[id], nil
}

func (p *fakeProvider) GetMemberByID(memberID string) (MemberRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	m, ok := p.byID[memberID]
	if !ok {
		return MemberRecord{}, fmt.Errorf("member not found")
	}
	return m, nil
}

func (p *fakeProvider) UpdateLoginState(_ context.Context, memberID string, state LoginState, expectedVersion uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.updateStateCalls++
	if p.failUpdateLoginState != nil {
		return p.failUpdateLoginState
	}

	m, ok := p.byID[memberID]
	if !ok {
		return fmt.Errorf("member not found")
	}

	if p.conflictsRemaining > 0 {
		p.conflictsRemaining--
		m.Version++
		if p.mutateOnConflict != nil {
			p.mutateOnConflict(&m)
		}
		p.byID[memberID] = m
		return ErrVersionConflict
	}
	if m.Version != expectedVersion {
		return ErrVersionConflict
	}

	m.FailedLoginAttempts = state.FailedLoginAttempts
	m.LockedUntil = state.LockedUntil
	m.LastLoginAt = state.LastLoginAt
	m.Version++
	p.byID[memberID] = m
	return nil
}

func (p *fakeProvider) UpdatePasswordHash(memberID string, newHash string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	m, ok := p.byID[memberID]
	if !ok {
		return fmt.Errorf("member not found")
	}
	m.PasswordHash = newHash
	m.LastPasswordChangeAt = time.Now().Unix()
	p.byID[memberID] = m
	return nil
}

func (p *fakeProvider) PasswordHistory(_ context.Context, memberID string, depth int) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	h := p.history[memberID]
	if len(h) > depth {
		h = h[len(h)-depth:]
	}
	return append([]string(nil), h...), nil
}

func (p *fakeProvider) AppendPasswordHistory(_ context.Context, memberID string, hash string, depth int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	h := append(p.history[memberID], hash)
	if len(h) > depth {
		h = h[len(h)-depth:]
	}
	p.history[memberID] = h
	return nil
}

func (p *fakeProvider) SetTwoFactorSecret(_ context.Context, memberID string, secret []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	m, ok := p.byID[memberID]
	if !ok {
		return fmt.Errorf("member not found")
	}
	m.TwoFactorSecret = append([]byte(nil), secret...)
	if len(secret) == 0 {
		m.TwoFactorSecret = nil
	}
	p.byID[memberID] = m
	return nil
}

func (p *fakeProvider) UpdateTOTPLastUsedCounter(_ context.Context, memberID string, counter int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	m, ok := p.byID[memberID]
	if !ok {
		return fmt.Errorf("member not found")
	}
	m.TOTPLastUsedCounter = counter
	p.byID[memberID] = m
	return nil
}

func (p *fakeProvider) EnableTwoFactor(_ context.Context, memberID string) error {
	return p.setTwoFactorEnabled(memberID, true)
}

func (p *fakeProvider) DisableTwoFactor(_ context.Context, memberID string) error {
	return p.setTwoFactorEnabled(memberID, false)
}

func (p *fakeProvider) setTwoFactorEnabled(memberID string, enabled bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	m, ok := p.byID[memberID]
	if !ok {
		return fmt.Errorf("member not found")
	}
	m.TwoFactorEnabled = enabled
	p.byID[memberID] = m
	return nil
}

/*
====================================
FAKE MAILER AND CAPTCHA
====================================
*/

type fakeMailer struct {
	mu          sync.Mutex
	resetTokens []string
	codes       []string
	fail        bool
}

var errMailerDown = errors.New("mailer down")

func (m *fakeMailer) SendPasswordReset(_ context.Context, _, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errMailerDown
	}
	m.resetTokens = append(m.resetTokens, token)
	return nil
}

func (m *fakeMailer) SendOneTimeCode(_ context.Context, _, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errMailerDown
	}
	m.codes = append(m.codes, code)
	return nil
}

func (m *fakeMailer) setFail(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = fail
}

func (m *fakeMailer) lastResetToken(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.resetTokens) == 0 {
		t.Fatal("no reset token was delivered")
	}
	return m.resetTokens[len(m.resetTokens)-1]
}

func (m *fakeMailer) lastCode(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.codes) == 0 {
		t.Fatal("no one-time code was delivered")
	}
	return m.codes[len(m.codes)-1]
}

func (m *fakeMailer) resetTokenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.resetTokens)
}

func (m *fakeMailer) codeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.codes)
}

type fakeCaptcha struct {
	mu    sync.Mutex
	score float64
	err   error
	calls int
}

func (c *fakeCaptcha) Verify(context.Context, string, string) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.score, c.err
}

func (c *fakeCaptcha) set(score float64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.score = score
	c.err = err
}
