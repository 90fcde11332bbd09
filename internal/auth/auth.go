// Package auth issues and validates the JWT sessions used by the admin
// dashboard. It is distinct from the north-bound MCAR credential check
// (internal/northbound uses bcrypt directly against the configured shared
// client secret) — operators log into cmcored as named individuals with a
// role, not as one of the north-bound client profiles.
package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/arinc839/cmcore/internal/config"
)

// Role is the admin-dashboard authorization level.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleViewer Role = "viewer"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
)

// Claims is the JWT payload minted for an operator session.
type Claims struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
	jwt.RegisteredClaims
}

// Session is the validated result of a successful login or token check.
type Session struct {
	Username  string
	Role      Role
	ExpiresAt time.Time
}

// Service authenticates operators against the configured account list and
// mints/validates JWTs for the admin dashboard.
type Service struct {
	jwtSecret []byte
	ttl       time.Duration
	operators map[string]config.OperatorConfig

	mu       sync.Mutex
	revoked  map[string]struct{}
}

// NewService builds a Service from the security section of the loaded config.
func NewService(sec config.SecurityConfig, operators []config.OperatorConfig) *Service {
	byUsername := make(map[string]config.OperatorConfig, len(operators))
	for _, op := range operators {
		byUsername[op.Username] = op
	}
	ttl := time.Duration(sec.JWTTokenTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Service{
		jwtSecret: []byte(sec.JWTSigningKey),
		ttl:       ttl,
		operators: byUsername,
		revoked:   make(map[string]struct{}),
	}
}

// Login checks username/password against the configured operator accounts
// and, on success, signs a JWT carrying the operator's role.
func (s *Service) Login(username, password string) (string, *Session, error) {
	op, ok := s.operators[username]
	if !ok {
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	expiresAt := time.Now().Add(s.ttl)
	claims := &Claims{
		Username: op.Username,
		Role:     Role(op.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   op.Username,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}

	return signed, &Session{Username: op.Username, Role: Role(op.Role), ExpiresAt: expiresAt}, nil
}

// ValidateToken parses and verifies a bearer token, rejecting expired or
// explicitly revoked (logged-out) tokens.
func (s *Service) ValidateToken(tokenString string) (*Session, error) {
	s.mu.Lock()
	_, revoked := s.revoked[tokenString]
	s.mu.Unlock()
	if revoked {
		return nil, ErrInvalidToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return &Session{Username: claims.Username, Role: claims.Role, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Logout revokes a token for the remainder of its lifetime.
func (s *Service) Logout(token string) {
	s.mu.Lock()
	s.revoked[token] = struct{}{}
	s.mu.Unlock()
}

// HashPassword bcrypt-hashes a password for storage in an OperatorConfig entry.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
