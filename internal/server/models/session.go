package models

import (
	"encoding/json"
	"time"
)

// ChatSession belongs to exactly one user for its whole life.
type ChatSession struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionSummary is one row of a session listing.
type SessionSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// SessionData is opaque client-encrypted per-session state, stored verbatim.
type SessionData struct {
	EncryptedData []byte          `json:"encrypted_session_data"`
	Metadata      json.RawMessage `json:"session_encryption_metadata"`
}
