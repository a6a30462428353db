package memberauth

import (
	"strings"
	"testing"
	"time"
)

// Vectors from RFC 6238 appendix B.
func TestHOTPCodeReferenceVectors(t *testing.T) {
	sha1Secret := []byte("12345678901234567890")
	sha256Secret := []byte("12345678901234567890123456789012")
	sha512Secret := []byte("1234567890123456789012345678901234567890123456789012345678901234")

	cases := []struct {
		unix      int64
		algorithm string
		secret    []byte
		want      string
	}{
		{59, "SHA1", sha1Secret, "94287082"},
		{1111111109, "SHA1", sha1Secret, "07081804"},
		{1111111111, "SHA1", sha1Secret, "14050471"},
		{1234567890, "SHA1", sha1Secret, "89005924"},
		{2000000000, "SHA1", sha1Secret, "69279037"},
		{59, "SHA256", sha256Secret, "46119246"},
		{1111111109, "SHA256", sha256Secret, "68084774"},
		{59, "SHA512", sha512Secret, "90693936"},
		{1111111109, "SHA512", sha512Secret, "25091201"},
	}

	for _, tc := range cases {
		counter := tc.unix / 30
		got, err := hotpCode(tc.secret, counter, 8, tc.algorithm)
		if err != nil {
			t.Fatalf("hotpCode(T=%d, %s): %v", tc.unix, tc.algorithm, err)
		}
		if got != tc.want {
			t.Errorf("hotpCode(T=%d, %s) = %q, want %q", tc.unix, tc.algorithm, got, tc.want)
		}
	}
}

func TestHOTPCodeRejectsUnknownAlgorithm(t *testing.T) {
	if _, err := hotpCode([]byte("secret"), 1, 6, "MD5"); err == nil {
		t.Fatal("expected unsupported algorithm error")
	}
}

func TestVerifyCodeFormatRejectedWithoutWork(t *testing.T) {
	m := newTOTPManager(TOTPConfig{Digits: 6, Period: 30, Skew: 1, Algorithm: "SHA1"})
	secret := []byte("12345678901234567890")

	for _, code := range []string{"", "12345", "1234567", "12a456", "......"} {
		ok, _, err := m.VerifyCode(secret, code, time.Now())
		if err != nil {
			t.Fatalf("VerifyCode(%q): %v", code, err)
		}
		if ok {
			t.Fatalf("VerifyCode(%q) accepted a malformed code", code)
		}
	}
}

func TestVerifyCodeEmptySecret(t *testing.T) {
	m := newTOTPManager(TOTPConfig{Digits: 6, Period: 30, Skew: 1, Algorithm: "SHA1"})

	if _, _, err := m.VerifyCode(nil, "123456", time.Now()); err == nil {
		t.Fatal("expected an error for an empty secret")
	}
}

func TestVerifyCodeSkewWindow(t *testing.T) {
	m := newTOTPManager(TOTPConfig{Digits: 6, Period: 30, Skew: 1, Algorithm: "SHA1"})
	secret := []byte("12345678901234567890")
	now := time.Unix(1111111109, 0)
	base := now.Unix() / 30

	previous, err := hotpCode(secret, base-1, 6, "SHA1")
	if err != nil {
		t.Fatalf("hotpCode: %v", err)
	}
	ok, counter, err := m.VerifyCode(secret, previous, now)
	if err != nil || !ok {
		t.Fatalf("expected previous-step code inside skew to verify, ok=%v err=%v", ok, err)
	}
	if counter != base-1 {
		t.Fatalf("expected matched counter %d, got %d", base-1, counter)
	}

	outside, err := hotpCode(secret, base-2, 6, "SHA1")
	if err != nil {
		t.Fatalf("hotpCode: %v", err)
	}
	if ok, _, _ := m.VerifyCode(secret, outside, now); ok {
		t.Fatal("code two steps back must not verify with skew 1")
	}
}

func TestVerifyCodeTrimsWhitespace(t *testing.T) {
	m := newTOTPManager(TOTPConfig{Digits: 6, Period: 30, Skew: 0, Algorithm: "SHA1"})
	secret := []byte("12345678901234567890")
	now := time.Unix(1234567890, 0)

	code, err := hotpCode(secret, now.Unix()/30, 6, "SHA1")
	if err != nil {
		t.Fatalf("hotpCode: %v", err)
	}
	if ok, _, err := m.VerifyCode(secret, "  "+code+"\n", now); err != nil || !ok {
		t.Fatalf("expected padded code to verify, ok=%v err=%v", ok, err)
	}
}

func TestProvisionURIShape(t *testing.T) {
	m := newTOTPManager(TOTPConfig{Issuer: "Hireloop", Digits: 6, Period: 30, Skew: 1, Algorithm: "SHA1"})

	uri := m.ProvisionURI("JBSWY3DPEHPK3PXP", "alice@example.com")
	if !strings.HasPrefix(uri, "otpauth://totp/Hireloop:alice@example.com?") {
		t.Fatalf("unexpected label in %q", uri)
	}
	for _, fragment := range []string{"secret=JBSWY3DPEHPK3PXP", "issuer=Hireloop", "digits=6", "period=30", "algorithm=SHA1"} {
		if !strings.Contains(uri, fragment) {
			t.Errorf("uri %q missing %q", uri, fragment)
		}
	}
}
