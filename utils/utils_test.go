package utils

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestEncryptDecrypt(t *testing.T) {
	sealed, err := Encrypt(testKey, []byte("JBSWY3DPEHPK3PXP"))
	if err != nil {
		t.Fatal(err)
	}
	plain, err := Decrypt(testKey, sealed)
	if err != nil {
		t.Fatal(err)
	}
	if string(plain) != "JBSWY3DPEHPK3PXP" {
		t.Fatalf("got %q", plain)
	}
	if _, err := Decrypt("ffffffffffffffffffffffffffffffff", sealed); err == nil {
		t.Fatal("expected failure with the wrong key")
	}
	if _, err := Encrypt("short", []byte("x")); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestSecretBox(t *testing.T) {
	box := NewSecretBox(testKey)
	sealed, err := box.Seal("secret")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(sealed, sealedPrefix) {
		t.Fatalf("expected sealed value, got %q", sealed)
	}
	opened, err := box.Open(sealed)
	if err != nil || opened != "secret" {
		t.Fatalf("open: %q %v", opened, err)
	}
	if plain, _ := box.Open("legacy"); plain != "legacy" {
		t.Fatalf("plain values should pass through, got %q", plain)
	}

	passthrough := NewSecretBox("")
	if v, _ := passthrough.Seal("secret"); v != "secret" {
		t.Fatalf("empty key stores values as they are, got %q", v)
	}
	if _, err := passthrough.Open(sealed); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey opening a sealed value without key, got %v", err)
	}
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("hunter22")
	if err != nil {
		t.Fatal(err)
	}
	if !CheckPassword("hunter22", hash) {
		t.Fatal("expected password to match")
	}
	if CheckPassword("hunter23", hash) {
		t.Fatal("expected mismatch")
	}
}

func TestTokenIssuer(t *testing.T) {
	issuer := NewTokenIssuer("a-very-long-secret-for-tests-123", time.Minute)
	token, err := issuer.GenerateAccessToken("user-1", "ana@example.com")
	if err != nil {
		t.Fatal(err)
	}
	claims, err := issuer.ParseAccessToken(token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Subject != "user-1" || claims.Email != "ana@example.com" {
		t.Fatalf("unexpected claims %+v", claims)
	}

	other := NewTokenIssuer("another-very-long-secret-for-tests", time.Minute)
	if _, err := other.ParseAccessToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for a foreign signature, got %v", err)
	}

	issuer.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, err := issuer.ParseAccessToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken once expired, got %v", err)
	}
	if GenerateRefreshToken() == GenerateRefreshToken() {
		t.Fatal("refresh tokens must be unique")
	}
}

func TestTOTP(t *testing.T) {
	secret, url, err := GenerateTOTPSecret("ana@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if secret == "" || !strings.HasPrefix(url, "otpauth://totp/") {
		t.Fatalf("unexpected secret/url %q %q", secret, url)
	}
	if VerifyTOTP(secret, "000000") && VerifyTOTP(secret, "111111") {
		t.Fatal("two different codes cannot both be valid")
	}
	if VerifyTOTP("", "123456") {
		t.Fatal("empty secret must not verify")
	}
}

func TestMaskString(t *testing.T) {
	in := "login ana@example.com card 4111 1111 1111 1111 id 3f2b8c1e-1234-4abc-9def-0123456789ab paid R$ 1.234,56"
	out := maskString(in)
	for _, leaked := range []string{"ana@example.com", "4111 1111", "0123456789ab", "1.234,56"} {
		if strings.Contains(out, leaked) {
			t.Fatalf("%q leaked in %q", leaked, out)
		}
	}
	if !strings.Contains(out, "3f2b8c1e...") {
		t.Fatalf("uuid should keep its prefix: %q", out)
	}
}

func TestProductionLoggerMasks(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo, true)
	logger.Info("signup ana@example.com", "email", "bia@example.com", "count", 3)
	out := buf.String()
	if strings.Contains(out, "@example.com") {
		t.Fatalf("email leaked: %s", out)
	}
	if !strings.Contains(out, `"count":3`) {
		t.Fatalf("non-string attributes must be kept: %s", out)
	}

	buf.Reset()
	dev := NewLogger(&buf, slog.LevelInfo, false)
	dev.Info("signup", "email", "bia@example.com")
	if !strings.Contains(buf.String(), "bia@example.com") {
		t.Fatalf("development logs are not masked: %s", buf.String())
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARNING": slog.LevelWarn,
		"ERROR":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLogLevel(in); got != want {
			t.Fatalf("%q: expected %v, got %v", in, want, got)
		}
	}
}
