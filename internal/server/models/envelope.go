package models

import "errors"

// EncryptionMetadata describes how a client encrypted a payload. The server
// stores it verbatim and never interprets it.
type EncryptionMetadata struct {
	Algorithm string `json:"algorithm"`
	KeyID     string `json:"key_id"`
	Nonce     string `json:"nonce"`
}

// Envelope is an opaque encrypted payload. Its fields are unexported so that
// nothing outside this package can rewrite ciphertext after validation.
type Envelope struct {
	ciphertext  []byte
	metadata    EncryptionMetadata
	contentHash string
}

var (
	ErrEmptyCiphertext = errors.New("encrypted content is required")
	ErrBadMetadata     = errors.New("encryption metadata requires algorithm, key_id and nonce")
	ErrNoContentHash   = errors.New("content hash is required")
)

// NewEnvelope validates the schema of an envelope and copies ciphertext.
func NewEnvelope(ciphertext []byte, metadata EncryptionMetadata, contentHash string) (Envelope, error) {
	if len(ciphertext) == 0 {
		return Envelope{}, ErrEmptyCiphertext
	}
	if metadata.Algorithm == "" || metadata.KeyID == "" || metadata.Nonce == "" {
		return Envelope{}, ErrBadMetadata
	}
	if contentHash == "" {
		return Envelope{}, ErrNoContentHash
	}
	return Envelope{
		ciphertext:  append([]byte(nil), ciphertext...),
		metadata:    metadata,
		contentHash: contentHash,
	}, nil
}

// Ciphertext returns a copy of the encrypted bytes.
func (e Envelope) Ciphertext() []byte { return append([]byte(nil), e.ciphertext...) }

func (e Envelope) Metadata() EncryptionMetadata { return e.metadata }

func (e Envelope) ContentHash() string { return e.contentHash }

func (e Envelope) IsZero() bool { return len(e.ciphertext) == 0 }
