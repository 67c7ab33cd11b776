package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ashureev/willow-sdr/internal/domain"
	_ "modernc.org/sqlite"
)

const defaultListLimit = 50

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	writeMu sync.Mutex // Serializes writes to avoid SQLITE_BUSY under WAL
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// modernc applies _pragma parameters on every new connection.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS leads (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		artifact_id TEXT,
		company TEXT,
		summary TEXT,
		lead_json TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_leads_created ON leads(created_at);
	CREATE INDEX IF NOT EXISTS idx_leads_session ON leads(session_id);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveLead stores a completed lead.
// Implements retry logic with exponential backoff to handle SQLITE_BUSY errors.
func (s *SQLiteStore) SaveLead(ctx context.Context, lead domain.StoredLead) error {
	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	var err error
	for i := 0; i < maxRetries; i++ {
		err = s.saveLeadOnce(ctx, lead)
		if err == nil {
			return nil
		}
		if !isConflict(err) || i == maxRetries-1 {
			break
		}

		delay := baseDelay * time.Duration(1<<i) // exponential backoff: 100ms, 200ms, 400ms
		slog.Debug("SaveLead failed with SQLITE_BUSY, retrying",
			"lead_id", lead.ID,
			"attempt", i+1,
			"delay", delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("failed to save lead %s: %w", lead.ID, err)
}

func (s *SQLiteStore) saveLeadOnce(ctx context.Context, lead domain.StoredLead) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	body, err := json.Marshal(lead.Lead)
	if err != nil {
		return fmt.Errorf("marshal lead: %w", err)
	}

	query := `
	INSERT INTO leads (id, session_id, artifact_id, company, summary, lead_json, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		artifact_id = excluded.artifact_id,
		company = excluded.company,
		summary = excluded.summary,
		lead_json = excluded.lead_json`

	_, err = s.db.ExecContext(ctx, query,
		lead.ID, lead.SessionID, nullable(lead.ArtifactID),
		ptrValue(lead.Lead.Company), ptrValue(lead.Lead.Summary),
		string(body), lead.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert lead: %w", err)
	}
	return nil
}

// GetLead retrieves a lead by ID.
func (s *SQLiteStore) GetLead(ctx context.Context, id string) (*domain.StoredLead, error) {
	query := `SELECT id, session_id, artifact_id, lead_json, created_at FROM leads WHERE id = ?`

	lead, err := scanLead(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return lead, nil
}

// ListLeads returns up to limit leads, newest first. A non-positive limit uses a default.
func (s *SQLiteStore) ListLeads(ctx context.Context, limit int) ([]domain.StoredLead, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	query := `
		SELECT id, session_id, artifact_id, lead_json, created_at
		FROM leads ORDER BY created_at DESC, id LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query leads: %w", err)
	}
	defer rows.Close()

	leads := make([]domain.StoredLead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leads: %w", err)
	}
	return leads, nil
}

// DeleteLead removes a lead.
func (s *SQLiteStore) DeleteLead(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM leads WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete lead: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (*domain.StoredLead, error) {
	var (
		lead       domain.StoredLead
		artifactID sql.NullString
		body       string
		createdAt  int64
	)
	if err := row.Scan(&lead.ID, &lead.SessionID, &artifactID, &body, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan lead row: %w", err)
	}
	if err := json.Unmarshal([]byte(body), &lead.Lead); err != nil {
		return nil, fmt.Errorf("decode lead %s: %w", lead.ID, err)
	}
	lead.ArtifactID = artifactID.String
	lead.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &lead, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func ptrValue(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
