package auth

import (
	"testing"
	"time"

	"github.com/arinc839/cmcore/internal/config"
)

func testService(t *testing.T) *Service {
	hash, err := HashPassword("cleared-hot")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	sec := config.SecurityConfig{JWTSigningKey: "test-signing-key", JWTTokenTTLMinutes: 30}
	operators := []config.OperatorConfig{
		{Username: "pilot-ops", PasswordHash: hash, Role: "admin"},
	}
	return NewService(sec, operators)
}

func TestLoginSuccess(t *testing.T) {
	s := testService(t)
	token, sess, err := s.Login("pilot-ops", "cleared-hot")
	if err != nil {
		t.Fatalf("unexpected login error: %v", err)
	}
	if token == "" || sess.Role != RoleAdmin {
		t.Fatalf("expected signed token and admin role, got token=%q sess=%+v", token, sess)
	}
}

func TestLoginBadPassword(t *testing.T) {
	s := testService(t)
	if _, _, err := s.Login("pilot-ops", "wrong"); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginUnknownUser(t *testing.T) {
	s := testService(t)
	if _, _, err := s.Login("nobody", "cleared-hot"); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestValidateTokenRoundTrip(t *testing.T) {
	s := testService(t)
	token, _, _ := s.Login("pilot-ops", "cleared-hot")

	sess, err := s.ValidateToken(token)
	if err != nil || sess.Username != "pilot-ops" {
		t.Fatalf("expected valid session, got %+v err=%v", sess, err)
	}
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	s := testService(t)
	if _, err := s.ValidateToken("not-a-jwt"); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	s := testService(t)
	token, _, _ := s.Login("pilot-ops", "cleared-hot")
	s.Logout(token)

	if _, err := s.ValidateToken(token); err != ErrInvalidToken {
		t.Fatalf("expected revoked token to be rejected, got %v", err)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	sec := config.SecurityConfig{JWTSigningKey: "k", JWTTokenTTLMinutes: 0}
	s := NewService(sec, nil)
	s.ttl = -1 * time.Second // force immediate expiry for the test
	hash, _ := HashPassword("pw")
	s.operators["u"] = config.OperatorConfig{Username: "u", PasswordHash: hash, Role: "viewer"}

	token, _, err := s.Login("u", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := s.ValidateToken(token); err != ErrTokenExpired {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}
