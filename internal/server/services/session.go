package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nazarriya/chatrelay/internal/common"
	"github.com/nazarriya/chatrelay/internal/dbx"
	"github.com/nazarriya/chatrelay/internal/logging"
	"github.com/nazarriya/chatrelay/internal/server/models"
	"github.com/nazarriya/chatrelay/internal/server/objectstore"
	"github.com/nazarriya/chatrelay/internal/server/relay"
	"github.com/nazarriya/chatrelay/internal/server/repositories/repomanager"
	"github.com/nazarriya/chatrelay/internal/server/repositories/sessions"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
	maxTitleLength  = 255
	exportLinkTTL   = 15 * time.Minute
)

// ChatRequest is an encrypted message sent by a client. The ciphertext is an
// opaque string kept byte for byte; its encoding is the client's business.
// An empty SessionID
// opens a new session. Title, when given, replaces the placeholder title of
// the session; the server cannot derive one from ciphertext.
type ChatRequest struct {
	SessionID          string                    `json:"session_id"`
	EncryptedMessage   string                    `json:"encrypted_message"`
	EncryptionMetadata models.EncryptionMetadata `json:"encryption_metadata"`
	ContentHash        string                    `json:"content_hash"`
	Title              string                    `json:"title,omitempty"`
}

// ChatReply is the relayed, still encrypted, answer.
type ChatReply struct {
	SessionID          string                    `json:"session_id"`
	EncryptedResponse  string                    `json:"encrypted_response"`
	EncryptionMetadata models.EncryptionMetadata `json:"encryption_metadata"`
	ContentHash        string                    `json:"content_hash"`
	Sources            []json.RawMessage         `json:"sources,omitempty"`
}

type History struct {
	SessionID string               `json:"session_id"`
	Messages  []models.MessageView `json:"history"`
}

type ExportResult struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// sessionExport is the document written to object storage.
type sessionExport struct {
	SessionID  string               `json:"session_id"`
	Title      string               `json:"title"`
	CreatedAt  time.Time            `json:"created_at"`
	ExportedAt time.Time            `json:"exported_at"`
	Messages   []models.MessageView `json:"messages"`
}

// SessionService owns chat sessions and the encrypted message flow. Every
// operation on an existing session goes through requireOwner.
type SessionService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	gateway     relay.Gateway
	store       objectstore.Store
	logger      logging.Logger
	now         func() time.Time
}

// NewSessionService wires the session service. store may be nil, which
// disables exports.
func NewSessionService(db *sql.DB, m repomanager.RepositoryManager, gateway relay.Gateway, store objectstore.Store, logger logging.Logger) *SessionService {
	return &SessionService{
		db:          db,
		repomanager: m,
		gateway:     gateway,
		store:       store,
		logger:      logger,
		now:         time.Now,
	}
}

// requireOwner loads the session and checks that userID owns it. A session
// id that cannot exist is reported as not found.
func (s *SessionService) requireOwner(ctx context.Context, repo sessions.Repository, userID, sessionID string) (*models.ChatSession, error) {
	if _, err := uuid.Parse(sessionID); err != nil {
		return nil, common.ErrorNotFound
	}

	session, err := repo.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, common.ErrorForbidden
	}
	return session, nil
}

func (s *SessionService) CreateSession(ctx context.Context, userID, title string) (*models.ChatSession, error) {
	title, err := sessionTitle(title, true)
	if err != nil {
		return nil, err
	}

	session, err := s.repomanager.Sessions(s.db).Create(ctx, &models.ChatSession{UserID: userID, Title: title})
	if err != nil {
		return nil, fmt.Errorf("error creating session: %w", err)
	}
	return session, nil
}

// ListSessions pages through the user's sessions, most recently active first.
// A zero limit means the default page size; larger limits are capped.
func (s *SessionService) ListSessions(ctx context.Context, userID string, limit, offset int) ([]models.SessionSummary, error) {
	if limit < 0 || offset < 0 {
		return nil, fmt.Errorf("%w: limit and offset must not be negative", common.ErrorInvalidArgument)
	}
	if limit == 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	return s.repomanager.Sessions(s.db).ListByUser(ctx, userID, limit, offset)
}

func (s *SessionService) GetHistory(ctx context.Context, userID, sessionID string) (*History, error) {
	if _, err := s.requireOwner(ctx, s.repomanager.Sessions(s.db), userID, sessionID); err != nil {
		return nil, err
	}

	msgs, err := s.repomanager.Messages(s.db).ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("error loading history: %w", err)
	}
	return &History{SessionID: sessionID, Messages: views(msgs)}, nil
}

// UpdateTitle renames a session. Setting the current title again changes
// nothing, updated_at included.
func (s *SessionService) UpdateTitle(ctx context.Context, userID, sessionID, title string) (*models.ChatSession, error) {
	title, err := sessionTitle(title, false)
	if err != nil {
		return nil, err
	}

	repo := s.repomanager.Sessions(s.db)
	session, err := s.requireOwner(ctx, repo, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Title == title {
		return session, nil
	}

	return repo.UpdateTitle(ctx, sessionID, title)
}

// DeleteSession removes the session and, by cascade, all of its messages.
func (s *SessionService) DeleteSession(ctx context.Context, userID, sessionID string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Sessions(tx)
		if _, err := s.requireOwner(ctx, repo, userID, sessionID); err != nil {
			return err
		}
		return repo.Delete(ctx, sessionID)
	})
}

// SendMessage stores the client's envelope, relays it and stores the reply.
// The inbound message is committed before the relay call, so it survives an
// upstream failure; the caller then gets common.ErrUpstreamUnavailable.
func (s *SessionService) SendMessage(ctx context.Context, userID string, req ChatRequest) (*ChatReply, error) {
	env, err := models.NewEnvelope([]byte(req.EncryptedMessage), req.EncryptionMetadata, req.ContentHash)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}
	title := strings.TrimSpace(req.Title)
	if len([]rune(title)) > maxTitleLength {
		return nil, fmt.Errorf("%w: title must be at most %d characters", common.ErrorValidation, maxTitleLength)
	}

	var sessionID string
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Sessions(tx)

		var (
			session *models.ChatSession
			err     error
		)
		if req.SessionID == "" {
			t := title
			if t == "" {
				t = common.DefaultSessionTitle
			}
			session, err = repo.Create(ctx, &models.ChatSession{UserID: userID, Title: t})
			if err != nil {
				return fmt.Errorf("error creating session: %w", err)
			}
		} else {
			session, err = s.requireOwner(ctx, repo, userID, req.SessionID)
			if err != nil {
				return err
			}
		}
		sessionID = session.ID

		msg := &models.ChatMessage{SessionID: session.ID, SenderType: common.SenderUser, Envelope: env}
		if _, err := s.repomanager.Messages(tx).Create(ctx, msg); err != nil {
			return fmt.Errorf("error saving message: %w", err)
		}

		if title != "" && session.Title == common.DefaultSessionTitle {
			_, err := repo.UpdateTitle(ctx, session.ID, title)
			return err
		}
		return repo.Touch(ctx, session.ID)
	})
	if err != nil {
		return nil, err
	}

	reply, err := s.gateway.Relay(ctx, env)
	if err != nil {
		s.logger.Warn(ctx, "relay failed", "session_id", sessionID, "error", err)
		if !errors.Is(err, common.ErrUpstreamUnavailable) {
			err = fmt.Errorf("%w: %w", common.ErrUpstreamUnavailable, err)
		}
		return nil, err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		msg := &models.ChatMessage{SessionID: sessionID, SenderType: common.SenderBot, Envelope: reply.Envelope}
		if _, err := s.repomanager.Messages(tx).Create(ctx, msg); err != nil {
			return fmt.Errorf("error saving reply: %w", err)
		}
		return s.repomanager.Sessions(tx).Touch(ctx, sessionID)
	})
	if err != nil {
		return nil, err
	}

	return &ChatReply{
		SessionID:          sessionID,
		EncryptedResponse:  string(reply.Envelope.Ciphertext()),
		EncryptionMetadata: reply.Envelope.Metadata(),
		ContentHash:        reply.Envelope.ContentHash(),
		Sources:            reply.Sources,
	}, nil
}

// PutSessionData stores opaque client-encrypted session state verbatim.
func (s *SessionService) PutSessionData(ctx context.Context, userID, sessionID string, data models.SessionData) error {
	if len(data.Metadata) > 0 && !json.Valid(data.Metadata) {
		return fmt.Errorf("%w: session_encryption_metadata must be JSON", common.ErrorValidation)
	}

	repo := s.repomanager.Sessions(s.db)
	if _, err := s.requireOwner(ctx, repo, userID, sessionID); err != nil {
		return err
	}
	return repo.PutData(ctx, sessionID, data)
}

func (s *SessionService) GetSessionData(ctx context.Context, userID, sessionID string) (*models.SessionData, error) {
	repo := s.repomanager.Sessions(s.db)
	if _, err := s.requireOwner(ctx, repo, userID, sessionID); err != nil {
		return nil, err
	}
	return repo.GetData(ctx, sessionID)
}

// ExportSession uploads the encrypted history to object storage and returns
// a short-lived download link.
func (s *SessionService) ExportSession(ctx context.Context, userID, sessionID string) (*ExportResult, error) {
	if s.store == nil {
		return nil, fmt.Errorf("%w: session export is not configured", common.ErrorUnavailable)
	}

	session, err := s.requireOwner(ctx, s.repomanager.Sessions(s.db), userID, sessionID)
	if err != nil {
		return nil, err
	}

	msgs, err := s.repomanager.Messages(s.db).ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("error loading history: %w", err)
	}

	now := s.now()
	body, err := json.Marshal(sessionExport{
		SessionID:  session.ID,
		Title:      session.Title,
		CreatedAt:  session.CreatedAt,
		ExportedAt: now.UTC(),
		Messages:   views(msgs),
	})
	if err != nil {
		return nil, fmt.Errorf("error encoding export: %w", err)
	}

	key := objectstore.ExportKey(userID, now)
	if err := s.store.Put(ctx, key, body, "application/json"); err != nil {
		return nil, fmt.Errorf("error uploading export: %w", err)
	}
	url, err := s.store.PresignGet(ctx, key, exportLinkTTL)
	if err != nil {
		return nil, fmt.Errorf("error signing export link: %w", err)
	}

	s.logger.Info(ctx, "session exported", "session_id", sessionID, "key", key, "messages", len(msgs))
	return &ExportResult{URL: url, Key: key, ExpiresAt: now.Add(exportLinkTTL).UTC()}, nil
}

// sessionTitle trims title and checks its length. When allowEmpty is set an
// empty title becomes the placeholder.
func sessionTitle(title string, allowEmpty bool) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		if allowEmpty {
			return common.DefaultSessionTitle, nil
		}
		return "", fmt.Errorf("%w: title must not be empty", common.ErrorValidation)
	}
	if len([]rune(title)) > maxTitleLength {
		return "", fmt.Errorf("%w: title must be at most %d characters", common.ErrorValidation, maxTitleLength)
	}
	return title, nil
}

func views(msgs []models.ChatMessage) []models.MessageView {
	out := make([]models.MessageView, 0, len(msgs))
	for i := range msgs {
		out = append(out, msgs[i].View())
	}
	return out
}
