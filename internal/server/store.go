// Package server exposes wizard sessions over HTTP and persists them
// locally so a restart does not lose in-progress drafts.
package server

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/Malith-nethsiri/valuerpro-project-sub001/internal/aimerge"
	"github.com/Malith-nethsiri/valuerpro-project-sub001/internal/draft"
	"github.com/Malith-nethsiri/valuerpro-project-sub001/internal/wizard"
)

// SessionStore keeps live wizard sessions in memory and writes their
// snapshots through to SQLite. Merge results append to an audit journal
// so applied AI changes stay reviewable after the fact.
type SessionStore struct {
	db *sqlx.DB

	mu      sync.Mutex
	entries map[string]*SessionEntry
}

// SessionEntry binds a token to its live session.
type SessionEntry struct {
	Token     string
	FlowName  string
	Session   *wizard.Session
	CreatedAt time.Time
}

// Snapshot is a persisted session row, used for rehydration.
type Snapshot struct {
	Token       string
	FlowName    string
	ReportID    string
	PropertyID  string
	CurrentStep int
	Data        draft.Data
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AuditRecord is one applied merge in a session's journal.
type AuditRecord struct {
	ID            int64            `json:"id"`
	Token         string           `json:"-"`
	Source        string           `json:"source"`
	FieldsUpdated int              `json:"fields_updated"`
	Changes       []aimerge.Change `json:"changes,omitempty"`
	Warnings      []string         `json:"warnings,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

const sessionSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	token        TEXT PRIMARY KEY,
	flow         TEXT NOT NULL DEFAULT 'full',
	report_id    TEXT NOT NULL DEFAULT '',
	property_id  TEXT NOT NULL DEFAULT '',
	current_step INTEGER NOT NULL DEFAULT 0,
	data         TEXT NOT NULL DEFAULT '{}',
	created_at   TEXT NOT NULL,
	updated_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS merge_audit (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	token          TEXT NOT NULL,
	source         TEXT NOT NULL,
	fields_updated INTEGER NOT NULL DEFAULT 0,
	changes        TEXT NOT NULL DEFAULT '[]',
	warnings       TEXT NOT NULL DEFAULT '[]',
	created_at     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_merge_audit_token ON merge_audit (token);
`

func NewSessionStore(dbPath string) (*SessionStore, error) {
	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sessionSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SessionStore{
		db:      db,
		entries: make(map[string]*SessionEntry),
	}, nil
}

// Close shuts down every live session and the database.
func (s *SessionStore) Close() error {
	s.mu.Lock()
	for _, e := range s.entries {
		e.Session.Close()
	}
	s.entries = map[string]*SessionEntry{}
	s.mu.Unlock()
	return s.db.Close()
}

func generateToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// Add registers a live session under a fresh token and persists its
// first snapshot.
func (s *SessionStore) Add(flowName string, sess *wizard.Session) (*SessionEntry, error) {
	entry := &SessionEntry{
		Token:     generateToken(),
		FlowName:  flowName,
		Session:   sess,
		CreatedAt: time.Now(),
	}
	s.mu.Lock()
	s.entries[entry.Token] = entry
	s.mu.Unlock()
	if err := s.Persist(entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Attach registers an already-persisted session that was just
// rehydrated. No new row is written.
func (s *SessionStore) Attach(snap Snapshot, sess *wizard.Session) *SessionEntry {
	entry := &SessionEntry{
		Token:     snap.Token,
		FlowName:  snap.FlowName,
		Session:   sess,
		CreatedAt: snap.CreatedAt,
	}
	s.mu.Lock()
	s.entries[entry.Token] = entry
	s.mu.Unlock()
	return entry
}

// Get returns the live session entry, or nil when the token is unknown
// or not currently hydrated.
func (s *SessionStore) Get(token string) *SessionEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[token]
}

// Remove closes and deletes a session, its snapshot, and its journal.
func (s *SessionStore) Remove(token string) error {
	s.mu.Lock()
	entry := s.entries[token]
	delete(s.entries, token)
	s.mu.Unlock()
	if entry != nil {
		entry.Session.Close()
	}
	if _, err := s.db.Exec(`DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	_, err := s.db.Exec(`DELETE FROM merge_audit WHERE token = ?`, token)
	return err
}

// Persist writes the session's current state through to SQLite.
func (s *SessionStore) Persist(entry *SessionEntry) error {
	st := entry.Session.State()
	blob, err := json.Marshal(st.Data)
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.Exec(`INSERT INTO sessions (token, flow, report_id, property_id, current_step, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(token) DO UPDATE SET
			report_id = excluded.report_id,
			property_id = excluded.property_id,
			current_step = excluded.current_step,
			data = excluded.data,
			updated_at = excluded.updated_at`,
		entry.Token,
		entry.FlowName,
		st.ReportID,
		entry.Session.PropertyID(),
		st.CurrentStep,
		string(blob),
		entry.CreatedAt.UTC().Format(time.RFC3339Nano),
		now,
	)
	if err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

// LoadSnapshot reads a persisted session row for rehydration.
func (s *SessionStore) LoadSnapshot(token string) (Snapshot, bool, error) {
	row := s.db.QueryRow(`SELECT token, flow, report_id, property_id, current_step, data, created_at, updated_at
		FROM sessions WHERE token = ?`, token)

	var snap Snapshot
	var blob, createdAt, updatedAt string
	err := row.Scan(&snap.Token, &snap.FlowName, &snap.ReportID, &snap.PropertyID, &snap.CurrentStep, &blob, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("load session: %w", err)
	}
	var raw map[string]map[string]any
	if err := json.Unmarshal([]byte(blob), &raw); err != nil {
		return Snapshot{}, false, fmt.Errorf("decode draft: %w", err)
	}
	snap.Data = draft.New()
	for step, fields := range raw {
		if !draft.KnownStep(step) {
			continue
		}
		sd := snap.Data.Step(step)
		for k, v := range fields {
			sd[k] = v
		}
	}
	snap.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	snap.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return snap, true, nil
}

// AppendAudit journals an applied merge.
func (s *SessionStore) AppendAudit(token string, res aimerge.Result) error {
	changes, err := json.Marshal(res.ChangesApplied)
	if err != nil {
		return fmt.Errorf("marshal changes: %w", err)
	}
	warnings, err := json.Marshal(res.ValidationErrors)
	if err != nil {
		return fmt.Errorf("marshal warnings: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO merge_audit (token, source, fields_updated, changes, warnings, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		token,
		string(res.Source),
		res.FieldsUpdated,
		string(changes),
		string(warnings),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

// Audits returns a session's merge journal, oldest first.
func (s *SessionStore) Audits(token string) ([]AuditRecord, error) {
	rows, err := s.db.Query(`SELECT id, token, source, fields_updated, changes, warnings, created_at
		FROM merge_audit WHERE token = ? ORDER BY id`, token)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()

	var out []AuditRecord
	for rows.Next() {
		var rec AuditRecord
		var changes, warnings, createdAt string
		if err := rows.Scan(&rec.ID, &rec.Token, &rec.Source, &rec.FieldsUpdated, &changes, &warnings, &createdAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(changes), &rec.Changes)
		_ = json.Unmarshal([]byte(warnings), &rec.Warnings)
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}
