package auth

import (
	"errors"
	"testing"
	"time"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPasswordHash("correct horse", hash) {
		t.Error("matching password rejected")
	}
	if CheckPasswordHash("wrong", hash) {
		t.Error("wrong password accepted")
	}
}

func TestTokenManagerRoundTrip(t *testing.T) {
	tm, err := NewTokenManager("test-secret", time.Hour, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}

	access, err := tm.GenerateAccessToken("u1", "admin")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	claims, err := tm.Parse(access, TokenTypeAccess)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.UserID() != "u1" || claims.Role != "admin" {
		t.Errorf("claims = %+v", claims)
	}

	if _, err := tm.Parse(access, TokenTypeRefresh); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("access token accepted as refresh: %v", err)
	}
}

func TestTokenManagerRejectsExpiredAndForeignTokens(t *testing.T) {
	tm, _ := NewTokenManager("secret-a", -time.Minute, time.Hour)
	expired, _ := tm.GenerateAccessToken("u1", "user")
	if _, err := tm.Parse(expired, TokenTypeAccess); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired token err = %v", err)
	}

	other, _ := NewTokenManager("secret-b", time.Hour, time.Hour)
	foreign, _ := other.GenerateAccessToken("u1", "user")
	if _, err := tm.Parse(foreign, TokenTypeAccess); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("foreign token err = %v", err)
	}
}

func TestNewTokenManagerRequiresSecret(t *testing.T) {
	if _, err := NewTokenManager("", time.Hour, time.Hour); err == nil {
		t.Error("expected error for empty secret")
	}
}
