// Package sqlite records question answers and contact custom fields in a
// SQLite database. It implements ports.AnswerLog and ports.CustomFieldStore.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/domain"
)

//go:embed schema.sql
var schemaSQL string

// Store is a SQLite-backed answer log and custom field store.
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at path and applies the schema.
// It is safe to call on an existing database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// AppendAnswer records one question answer.
func (s *Store) AppendAnswer(ctx context.Context, a domain.Answer) error {
	at := a.AnsweredAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO flow_answers (flow_id, session_id, step_id, question, answer, option_id, answered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.FlowID, a.SessionID, a.StepID, a.Question, a.Answer, a.OptionID, at.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to append answer for session %q: %w", a.SessionID, err)
	}
	return nil
}

// Answers returns the answers of a session in recording order.
func (s *Store) Answers(ctx context.Context, sessionID string) ([]domain.Answer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT flow_id, session_id, step_id, question, answer, option_id, answered_at
		FROM flow_answers WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query answers: %w", err)
	}
	defer rows.Close()

	var out []domain.Answer
	for rows.Next() {
		var a domain.Answer
		var at string
		if err := rows.Scan(&a.FlowID, &a.SessionID, &a.StepID, &a.Question, &a.Answer, &a.OptionID, &at); err != nil {
			return nil, fmt.Errorf("failed to scan answer: %w", err)
		}
		if a.AnsweredAt, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("failed to parse answered_at %q: %w", at, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpsertCustomFieldValue sets a contact custom field, replacing any previous value.
func (s *Store) UpsertCustomFieldValue(ctx context.Context, contactKey, fieldID, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO custom_field_values (contact_key, field_id, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (contact_key, field_id) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		contactKey, fieldID, value, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert custom field %q: %w", fieldID, err)
	}
	return nil
}

// CustomFieldValue returns the stored value of a contact custom field.
func (s *Store) CustomFieldValue(ctx context.Context, contactKey, fieldID string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM custom_field_values WHERE contact_key = ? AND field_id = ?`,
		contactKey, fieldID,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read custom field %q: %w", fieldID, err)
	}
	return value, true, nil
}
