// Package adminweb serves the cmcored operator dashboard: a JWT-gated HTTP
// status snapshot and a WebSocket event feed, replacing the teacher's
// SIGUSR1-triggered stats dump with a live view an operator can actually
// watch (§5.3/§6). Grounded on pkg/web/server.go's mux/middleware/broadcast
// shape, narrowed to the handlers CM Core actually needs.
package adminweb

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/arinc839/cmcore/internal/auth"
	"github.com/arinc839/cmcore/internal/health"
	"github.com/arinc839/cmcore/internal/linkregistry"
	"github.com/arinc839/cmcore/internal/logger"
	"github.com/arinc839/cmcore/internal/sessionregistry"
)

// Server is the admin dashboard's HTTP+WS listener.
type Server struct {
	addr    string
	auth    *auth.Service
	links   *linkregistry.Registry
	sessions *sessionregistry.Registry
	health  *health.Monitor

	server   *http.Server
	upgrader websocket.Upgrader

	wsMu      sync.RWMutex
	wsClients map[*websocket.Conn]struct{}
}

// New builds a Server bound to addr, serving snapshots from links/sessions
// and gating every route but /health and /api/login behind auth. mon may be
// nil, in which case /health reports a bare "healthy" with no component detail.
func New(addr string, authSvc *auth.Service, links *linkregistry.Registry, sessions *sessionregistry.Registry, mon *health.Monitor) *Server {
	return &Server{
		addr:      addr,
		auth:      authSvc,
		links:     links,
		sessions:  sessions,
		health:    mon,
		wsClients: make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ListenAndServe builds the route table and serves HTTP until Stop.
func (s *Server) ListenAndServe() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/login", s.handleLogin)
	mux.HandleFunc("/api/logout", s.requireAuth(s.handleLogout))
	mux.HandleFunc("/api/status", s.requireAuth(s.handleStatus))
	mux.HandleFunc("/api/links", s.requireAuth(s.handleLinks))
	mux.HandleFunc("/api/sessions", s.requireAuth(s.handleSessions))
	mux.HandleFunc("/ws", s.handleWebSocket)

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("admin dashboard listening", "addr", s.addr)

	go s.broadcastLoop()

	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully shuts down the HTTP server and closes every WS client.
func (s *Server) Stop(ctx context.Context) error {
	s.wsMu.Lock()
	for c := range s.wsClients {
		c.Close()
	}
	s.wsMu.Unlock()

	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			s.sendError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if _, err := s.auth.ValidateToken(parts[1]); err != nil {
			s.sendError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, sess, err := s.auth.Login(req.Username, req.Password)
	if err != nil {
		s.sendError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"role":  sess.Role,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	header := r.Header.Get("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	s.auth.Logout(token)
	s.sendJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		s.sendJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
		return
	}
	status := s.health.Snapshot()
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	s.sendJSON(w, code, status)
}

func (s *Server) handleLinks(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, s.links.All())
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, s.sessions.All())
}

// statusSnapshot bundles both registries for the /api/status and WS feed.
type statusSnapshot struct {
	Links    []linkregistry.Link        `json:"links"`
	Sessions []sessionregistry.Session  `json:"sessions"`
}

func (s *Server) snapshot() statusSnapshot {
	return statusSnapshot{Links: s.links.All(), Sessions: s.sessions.All()}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, s.snapshot())
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if _, err := s.auth.ValidateToken(token); err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("admin dashboard: websocket upgrade failed", "error", err.Error())
		return
	}

	s.wsMu.Lock()
	s.wsClients[conn] = struct{}{}
	s.wsMu.Unlock()

	defer func() {
		s.wsMu.Lock()
		delete(s.wsClients, conn)
		s.wsMu.Unlock()
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Broadcast pushes a typed event to every connected operator dashboard.
func (s *Server) Broadcast(kind string, payload interface{}) {
	message := map[string]interface{}{
		"type":      kind,
		"payload":   payload,
		"timestamp": time.Now().Unix(),
	}
	data, err := json.Marshal(message)
	if err != nil {
		logger.Warn("admin dashboard: failed to marshal broadcast", "error", err.Error())
		return
	}

	s.wsMu.RLock()
	defer s.wsMu.RUnlock()
	for conn := range s.wsClients {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			logger.Debug("admin dashboard: websocket send failed", "error", err.Error())
		}
	}
}

func (s *Server) broadcastLoop() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		s.Broadcast("status", s.snapshot())
	}
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Warn("admin dashboard: failed to encode response", "error", err.Error())
	}
}

func (s *Server) sendError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, map[string]string{"error": message})
}
