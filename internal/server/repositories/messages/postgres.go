// Package messages persists write-once encrypted chat messages.
package messages

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/nazarriya/chatrelay/internal/dbx"
	"github.com/nazarriya/chatrelay/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, msg *models.ChatMessage) (*models.ChatMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}

	meta, err := json.Marshal(msg.Envelope.Metadata())
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}

	query :=
		`INSERT INTO chat_messages (id, session_id, sender_type, encrypted_content, encryption_metadata, content_hash)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING seq, created_at
		 `

	err = r.db.QueryRowContext(ctx, query,
		msg.ID, msg.SessionID, msg.SenderType,
		msg.Envelope.Ciphertext(), string(meta), msg.Envelope.ContentHash(),
	).Scan(&msg.Seq, &msg.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return msg, nil
}

// ListBySession returns the session's messages in conversation order.
func (r *PostgresRepository) ListBySession(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	query :=
		`SELECT id, session_id, sender_type, encrypted_content, encryption_metadata, content_hash, seq, created_at
		 FROM chat_messages
		 WHERE session_id = $1
		 ORDER BY created_at ASC, seq ASC
		 `

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.ChatMessage, 0)
	for rows.Next() {
		var (
			m          models.ChatMessage
			ciphertext []byte
			metaRaw    []byte
			hash       string
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &m.SenderType, &ciphertext, &metaRaw, &hash, &m.Seq, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}

		var meta models.EncryptionMetadata
		if err := json.Unmarshal(metaRaw, &meta); err != nil {
			return nil, fmt.Errorf("decode metadata of message %s: %w", m.ID, err)
		}
		m.Envelope, err = models.NewEnvelope(ciphertext, meta, hash)
		if err != nil {
			return nil, fmt.Errorf("stored message %s: %w", m.ID, err)
		}

		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}
