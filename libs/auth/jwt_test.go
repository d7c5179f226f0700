package auth

import (
	"testing"
	"time"
)

func TestSignAndVerifyHS256(t *testing.T) {
	claims := Claims{
		Sub:  "admin",
		Role: "admin",
		Iat:  time.Now().Unix(),
		Exp:  time.Now().Add(time.Hour).Unix(),
	}

	token, err := SignHS256(claims, "secret")
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}

	got, err := ParseAndVerifyHS256(token, "secret")
	if err != nil {
		t.Fatalf("ParseAndVerifyHS256 failed: %v", err)
	}
	if got.Sub != "admin" || got.Role != "admin" {
		t.Fatalf("unexpected claims: %+v", got)
	}

	if _, err := ParseAndVerifyHS256(token, "wrong-secret"); err == nil {
		t.Fatal("expected verification failure with wrong secret")
	}
}

func TestParseAndVerifyHS256_Expired(t *testing.T) {
	claims := Claims{
		Sub: "admin",
		Exp: time.Now().Add(-time.Minute).Unix(),
	}
	token, err := SignHS256(claims, "secret")
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	if _, err := ParseAndVerifyHS256(token, "secret"); err == nil {
		t.Fatal("expected expired token to fail verification")
	}
}

func TestParseAndVerifyHS256_Malformed(t *testing.T) {
	for _, token := range []string{"", "a.b", "a.b.c.d", "not-a-token"} {
		if _, err := ParseAndVerifyHS256(token, "secret"); err == nil {
			t.Fatalf("expected malformed token %q to fail", token)
		}
	}
}
