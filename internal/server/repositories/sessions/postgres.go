// Package sessions stores chat sessions. Ownership is not enforced here;
// callers check it before touching a session.
package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/nazarriya/chatrelay/internal/common"
	"github.com/nazarriya/chatrelay/internal/dbx"
	"github.com/nazarriya/chatrelay/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, s *models.ChatSession) (*models.ChatSession, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}

	query :=
		`INSERT INTO chat_sessions (id, user_id, title)
		 VALUES ($1, $2, $3)
		 RETURNING created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query, s.ID, s.UserID, s.Title).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return s, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.ChatSession, error) {
	query :=
		`SELECT id, user_id, title, created_at, updated_at FROM chat_sessions
		 WHERE id = $1
		 `

	s := &models.ChatSession{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.UserID, &s.Title, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return s, nil
}

// ListByUser returns the user's sessions, most recently active first, with
// the number of messages in each.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.SessionSummary, error) {
	query :=
		`SELECT s.id, s.title, s.created_at, s.updated_at, COUNT(m.id)
		 FROM chat_sessions s
		 LEFT JOIN chat_messages m ON m.session_id = s.id
		 WHERE s.user_id = $1
		 GROUP BY s.id
		 ORDER BY s.updated_at DESC, s.id
		 LIMIT $2 OFFSET $3
		 `

	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.SessionSummary, 0)
	for rows.Next() {
		var s models.SessionSummary
		if err := rows.Scan(&s.ID, &s.Title, &s.CreatedAt, &s.UpdatedAt, &s.MessageCount); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) UpdateTitle(ctx context.Context, id, title string) (*models.ChatSession, error) {
	query :=
		`UPDATE chat_sessions SET title = $2, updated_at = now()
		 WHERE id = $1
		 RETURNING id, user_id, title, created_at, updated_at
		 `

	s := &models.ChatSession{}
	err := r.db.QueryRowContext(ctx, query, id, title).Scan(&s.ID, &s.UserID, &s.Title, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return s, nil
}

// Touch bumps updated_at so the session sorts as recently active.
func (r *PostgresRepository) Touch(ctx context.Context, id string) error {
	query := `UPDATE chat_sessions SET updated_at = now() WHERE id = $1`
	return r.execOne(ctx, query, id)
}

// Delete removes the session; its messages go with it via ON DELETE CASCADE.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM chat_sessions WHERE id = $1`
	return r.execOne(ctx, query, id)
}

func (r *PostgresRepository) PutData(ctx context.Context, id string, data models.SessionData) error {
	query :=
		`UPDATE chat_sessions
		 SET encrypted_session_data = $2, session_encryption_metadata = $3, updated_at = now()
		 WHERE id = $1
		 `

	var meta any
	if len(data.Metadata) > 0 {
		meta = string(data.Metadata)
	}
	return r.execOne(ctx, query, id, data.EncryptedData, meta)
}

func (r *PostgresRepository) GetData(ctx context.Context, id string) (*models.SessionData, error) {
	query :=
		`SELECT encrypted_session_data, session_encryption_metadata FROM chat_sessions
		 WHERE id = $1
		 `

	var blob, meta []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(&blob, &meta)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return &models.SessionData{EncryptedData: blob, Metadata: meta}, nil
}

// execOne runs a statement that must affect exactly one session row.
func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
