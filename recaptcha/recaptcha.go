// Package recaptcha verifies reCAPTCHA v3 tokens against the Google
// siteverify endpoint.
//
// It implements the engine's CaptchaVerifier contract: Verify returns the
// risk score reported for the token, and any transport or rejection outcome
// surfaces as an error so the caller fails closed.
package recaptcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultEndpoint = "https://www.google.com/recaptcha/api/siteverify"
	defaultTimeout  = 5 * time.Second

	// siteverify responses are small; anything larger is malformed.
	maxResponseBytes = 1 << 16
)

// ErrTokenRejected is an exported constant or variable used by the authentication engine.
var ErrTokenRejected = errors.New("recaptcha: token rejected")

// Config defines a public type used by memberauth APIs.
//
// Config instances are intended to be configured during initialization and
// then treated as immutable unless documented otherwise.
type Config struct {
	// Secret is the server-side reCAPTCHA key.
	Secret string

	// Endpoint overrides the siteverify URL. Used by tests.
	Endpoint string

	// HTTPClient overrides the transport. A default client with a 5s
	// timeout is used when nil.
	HTTPClient *http.Client
}

// Verifier calls the reCAPTCHA v3 siteverify API. Construct it with [New];
// the zero value is not usable.
type Verifier struct {
	secret   string
	endpoint string
	client   *http.Client
}

type siteverifyResponse struct {
	Success    bool     `json:"success"`
	Score      float64  `json:"score"`
	Action     string   `json:"action"`
	Hostname   string   `json:"hostname"`
	ErrorCodes []string `json:"error-codes"`
}

// New creates a Verifier from the given configuration.
//
// New may return an error when input validation, dependency calls, or security checks fail.
func New(cfg Config) (*Verifier, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("recaptcha: secret is required")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}

	return &Verifier{
		secret:   cfg.Secret,
		endpoint: endpoint,
		client:   client,
	}, nil
}

// Verify describes the verify operation and its observable behavior.
//
// Verify may return an error when input validation, dependency calls, or security checks fail.
// Verify does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// The returned score is in [0,1]. A non-nil error means the token could not
// be positively verified; callers must treat that as a failed check.
func (v *Verifier) Verify(ctx context.Context, token, remoteIP string) (float64, error) {
	if v == nil {
		return 0, fmt.Errorf("recaptcha: nil verifier")
	}
	if token == "" {
		return 0, fmt.Errorf("%w: empty token", ErrTokenRejected)
	}

	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, fmt.Errorf("recaptcha: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("recaptcha: siteverify call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("recaptcha: siteverify returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, fmt.Errorf("recaptcha: reading response: %w", err)
	}

	var parsed siteverifyResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, fmt.Errorf("recaptcha: decoding response: %w", err)
	}

	if !parsed.Success {
		if len(parsed.ErrorCodes) > 0 {
			return 0, fmt.Errorf("%w: %s", ErrTokenRejected, strings.Join(parsed.ErrorCodes, ", "))
		}
		return 0, ErrTokenRejected
	}

	return parsed.Score, nil
}
