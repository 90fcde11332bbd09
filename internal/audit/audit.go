// Package audit is cmcored's accounting sink: a write-only JSONL log of
// bearer grants/releases and link/session state transitions, with an
// optional Postgres mirror for sites that want queryable history. Grounded
// on pkg/storage/storage.go's daily-rotated JSONL writer and
// pkg/database/database.go's lib/pq connection + migration-table pattern.
package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"github.com/arinc839/cmcore/internal/config"
	"github.com/arinc839/cmcore/internal/logger"
)

// Record is one accounting event. Kind distinguishes the event shape;
// Fields carries the event-specific payload as a flat map so the JSONL
// writer never needs a union type.
type Record struct {
	Kind      string                 `json:"kind"`
	Timestamp time.Time              `json:"timestamp"`
	Fields    map[string]interface{} `json:"fields"`
}

const (
	KindBearerGrant      = "bearer_grant"
	KindBearerRelease    = "bearer_release"
	KindLinkTransition   = "link_transition"
	KindSessionTransition = "session_transition"
)

// Sink fans accounting records out to a daily-rotated JSONL file and,
// optionally, a Postgres table.
type Sink struct {
	mu         sync.Mutex
	basePath   string
	file       *os.File
	encoder    *json.Encoder
	lastRotate time.Time

	db *sql.DB
}

// NewSink builds a Sink from the audit section of the loaded config. The
// JSONL path is required; PostgresDSN is optional — an empty DSN disables
// the Postgres mirror entirely.
func NewSink(cfg config.AuditConfig) (*Sink, error) {
	if cfg.JSONLPath == "" {
		return nil, fmt.Errorf("audit.jsonl_path is required")
	}
	if err := os.MkdirAll(cfg.JSONLPath, 0755); err != nil {
		return nil, fmt.Errorf("create audit directory: %w", err)
	}

	s := &Sink{basePath: cfg.JSONLPath}
	if err := s.rotate(); err != nil {
		return nil, err
	}

	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := runMigrations(db); err != nil {
			return nil, fmt.Errorf("run audit migrations: %w", err)
		}
		s.db = db
	}

	return s, nil
}

func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS accounting_records (
			id BIGSERIAL PRIMARY KEY,
			kind VARCHAR(50) NOT NULL,
			recorded_at TIMESTAMP NOT NULL,
			fields JSONB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_accounting_kind ON accounting_records(kind);
		CREATE INDEX IF NOT EXISTS idx_accounting_recorded_at ON accounting_records(recorded_at);
	`)
	return err
}

func (s *Sink) rotate() error {
	if s.file != nil {
		s.file.Close()
	}
	filename := fmt.Sprintf("accounting_%s.jsonl", time.Now().Format("2006-01-02"))
	path := filepath.Join(s.basePath, filename)

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	s.file = file
	s.encoder = json.NewEncoder(file)
	s.lastRotate = time.Now()
	return nil
}

func (s *Sink) write(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if time.Since(s.lastRotate) > 24*time.Hour {
		if err := s.rotate(); err != nil {
			logger.Warn("audit: rotation failed", "error", err.Error())
			return
		}
	}

	if err := s.encoder.Encode(rec); err != nil {
		logger.Warn("audit: jsonl encode failed", "error", err.Error(), "kind", rec.Kind)
	}

	if s.db != nil {
		fieldsJSON, err := json.Marshal(rec.Fields)
		if err != nil {
			logger.Warn("audit: fields marshal failed", "error", err.Error())
			return
		}
		if _, err := s.db.Exec(
			`INSERT INTO accounting_records (kind, recorded_at, fields) VALUES ($1, $2, $3)`,
			rec.Kind, rec.Timestamp, fieldsJSON,
		); err != nil {
			logger.Warn("audit: postgres insert failed", "error", err.Error(), "kind", rec.Kind)
		}
	}
}

// RecordBearerGrant logs a Link_Resource.request allocation (§4.4, §5).
func (s *Sink) RecordBearerGrant(linkName string, bearerID, cosID uint8, forwardRate, returnRate uint32) {
	s.write(Record{
		Kind:      KindBearerGrant,
		Timestamp: time.Now(),
		Fields: map[string]interface{}{
			"link_name":    linkName,
			"bearer_id":    bearerID,
			"cos_id":       cosID,
			"forward_rate": forwardRate,
			"return_rate":  returnRate,
		},
	})
}

// RecordBearerRelease logs a bearer being freed, whether by explicit
// release or by link teardown.
func (s *Sink) RecordBearerRelease(linkName string, bearerID uint8) {
	s.write(Record{
		Kind:      KindBearerRelease,
		Timestamp: time.Now(),
		Fields: map[string]interface{}{
			"link_name": linkName,
			"bearer_id": bearerID,
		},
	})
}

// RecordLinkTransition logs a Link Registry state change (§4.1).
func (s *Sink) RecordLinkTransition(linkName, fromState, toState string) {
	s.write(Record{
		Kind:      KindLinkTransition,
		Timestamp: time.Now(),
		Fields: map[string]interface{}{
			"link_name":  linkName,
			"from_state": fromState,
			"to_state":   toState,
		},
	})
}

// RecordSessionTransition logs a Session Registry state change (§4.2).
func (s *Sink) RecordSessionTransition(sessionID, fromState, toState string) {
	s.write(Record{
		Kind:      KindSessionTransition,
		Timestamp: time.Now(),
		Fields: map[string]interface{}{
			"session_id": sessionID,
			"from_state": fromState,
			"to_state":   toState,
		},
	})
}

// Close flushes and closes the JSONL file and, if present, the Postgres connection.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var fileErr error
	if s.file != nil {
		fileErr = s.file.Close()
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return err
		}
	}
	return fileErr
}
