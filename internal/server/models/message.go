package models

import "time"

// ChatMessage is a write-once encrypted message. Seq is assigned by the
// database and breaks ties between messages created in the same instant.
type ChatMessage struct {
	ID         string
	SessionID  string
	SenderType string
	Envelope   Envelope
	Seq        int64
	CreatedAt  time.Time
}

// MessageView is the client-facing form of a message. Ciphertext is returned
// exactly as the sender supplied it.
type MessageView struct {
	ID                 string             `json:"id"`
	SenderType         string             `json:"sender_type"`
	EncryptedContent   string             `json:"encrypted_content"`
	EncryptionMetadata EncryptionMetadata `json:"encryption_metadata"`
	ContentHash        string             `json:"content_hash"`
	CreatedAt          time.Time          `json:"created_at"`
}

func (m *ChatMessage) View() MessageView {
	return MessageView{
		ID:                 m.ID,
		SenderType:         m.SenderType,
		EncryptedContent:   string(m.Envelope.Ciphertext()),
		EncryptionMetadata: m.Envelope.Metadata(),
		ContentHash:        m.Envelope.ContentHash(),
		CreatedAt:          m.CreatedAt,
	}
}
