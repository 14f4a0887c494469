package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokenIssuer_Issue(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := NewTokenIssuer(testSigningKey, "clinichub", 2*time.Hour)
	issuer.now = func() time.Time { return fixed }

	token, expires, err := issuer.Issue("user-42", RolePatient)
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	if !expires.Equal(fixed.Add(2 * time.Hour)) {
		t.Errorf("unexpected expiry %s", expires)
	}

	claims := &Claims{}
	_, err = jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return testSigningKey, nil
	}, jwt.WithTimeFunc(func() time.Time { return fixed.Add(time.Minute) }))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if claims.Subject != "user-42" {
		t.Errorf("sub = %q", claims.Subject)
	}
	if claims.Role != RolePatient || len(claims.Roles) != 1 || claims.Roles[0] != RolePatient {
		t.Errorf("unexpected role claims %q %v", claims.Role, claims.Roles)
	}
	if claims.Issuer != "clinichub" {
		t.Errorf("iss = %q", claims.Issuer)
	}
	if claims.IssuedAt == nil || !claims.IssuedAt.Time.Equal(fixed) {
		t.Errorf("iat = %v", claims.IssuedAt)
	}
}

func TestTokenIssuer_RejectsBadInput(t *testing.T) {
	issuer := NewTokenIssuer(testSigningKey, "clinichub", time.Hour)
	if _, _, err := issuer.Issue("", RoleAdmin); err == nil {
		t.Error("expected error for empty user id")
	}
	if _, _, err := issuer.Issue("user-1", "superuser"); err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestPasswordHashing(t *testing.T) {
	if _, err := HashPassword("short"); err == nil {
		t.Error("expected error for short password")
	}

	hash, err := HashPassword("correct horse battery")
	if err != nil {
		t.Fatalf("HashPassword() error: %v", err)
	}
	if hash == "correct horse battery" {
		t.Fatal("hash must not equal the password")
	}
	if !CheckPassword(hash, "correct horse battery") {
		t.Error("expected password to match")
	}
	if CheckPassword(hash, "wrong password") {
		t.Error("expected wrong password to fail")
	}
	if CheckPassword("", "anything") {
		t.Error("expected empty hash to fail")
	}
}
