package jwt

import (
	"errors"
	"testing"
	"time"
)

func TestSignAndVerify(t *testing.T) {
	t.Parallel()

	signer := NewSigner()

	tok, err := signer.Sign(123, "super-secret", time.Hour)
	if err != nil {
		t.Fatalf("Sign error: %v", err)
	}

	uid, err := signer.Verify(tok, "super-secret")
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if uid != 123 {
		t.Fatalf("subject mismatch: got %d want 123", uid)
	}
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	signer := NewSigner()

	tok, err := signer.Sign(1, "secret", -time.Second)
	if err != nil {
		t.Fatalf("Sign error: %v", err)
	}

	_, err = signer.Verify(tok, "secret")
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	t.Parallel()

	signer := NewSigner()

	tok, err := signer.Sign(1, "right-secret", time.Hour)
	if err != nil {
		t.Fatalf("Sign error: %v", err)
	}

	_, err = signer.Verify(tok, "wrong-secret")
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong secret, got %v", err)
	}
}

func TestVerify_Malformed(t *testing.T) {
	t.Parallel()

	signer := NewSigner()

	_, err := signer.Verify("not.a.jwt", "secret")
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for malformed token, got %v", err)
	}
}
