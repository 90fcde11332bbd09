package adminweb

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/arinc839/cmcore/internal/auth"
	"github.com/arinc839/cmcore/internal/config"
	"github.com/arinc839/cmcore/internal/health"
	"github.com/arinc839/cmcore/internal/linkregistry"
	"github.com/arinc839/cmcore/internal/sessionregistry"
)

func testServer(t *testing.T) *Server {
	hash, err := auth.HashPassword("runway-2-7")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	authSvc := auth.NewService(
		config.SecurityConfig{JWTSigningKey: "k", JWTTokenTTLMinutes: 30},
		[]config.OperatorConfig{{Username: "ops", PasswordHash: hash, Role: "admin"}},
	)
	links := linkregistry.NewRegistry(4, 30*time.Second, 5*time.Second)
	sessions := sessionregistry.NewRegistry(16)
	mon := health.NewMonitor(0)
	mon.UpdateComponent("north-bound", true, "")
	return New("127.0.0.1:0", authSvc, links, sessions, mon)
}

func TestHealthUnauthenticated(t *testing.T) {
	s := testServer(t)
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestStatusRequiresAuth(t *testing.T) {
	s := testServer(t)
	handler := s.requireAuth(s.handleStatus)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestLoginThenStatus(t *testing.T) {
	s := testServer(t)

	loginReq := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"username":"ops","password":"runway-2-7"}`))
	loginRec := httptest.NewRecorder()
	s.handleLogin(loginRec, loginReq)
	if loginRec.Code != http.StatusOK {
		t.Fatalf("expected 200 login, got %d: %s", loginRec.Code, loginRec.Body.String())
	}

	var loginResp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(loginRec.Body.Bytes(), &loginResp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}

	statusReq := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	statusReq.Header.Set("Authorization", "Bearer "+loginResp.Token)
	statusRec := httptest.NewRecorder()
	s.requireAuth(s.handleStatus)(statusRec, statusReq)

	if statusRec.Code != http.StatusOK {
		t.Fatalf("expected 200 status with valid token, got %d", statusRec.Code)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"username":"ops","password":"wrong"}`))
	rec := httptest.NewRecorder()
	s.handleLogin(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
