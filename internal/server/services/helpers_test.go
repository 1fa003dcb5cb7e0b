package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/nazarriya/chatrelay/internal/cryptox"
	"github.com/nazarriya/chatrelay/internal/dbx"
	"github.com/nazarriya/chatrelay/internal/server/auth"
	"github.com/nazarriya/chatrelay/internal/server/config"
	"github.com/nazarriya/chatrelay/internal/server/models"
	"github.com/nazarriya/chatrelay/internal/server/repositories/memory"
	"github.com/nazarriya/chatrelay/internal/server/repositories/messages"
	"github.com/nazarriya/chatrelay/internal/server/repositories/repomanager"
	"github.com/nazarriya/chatrelay/internal/server/repositories/sessions"
	"github.com/nazarriya/chatrelay/internal/server/repositories/users"
	"github.com/stretchr/testify/require"
)

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

// expectTx registers n begin/commit pairs.
func expectTx(mock sqlmock.Sqlmock, n int) {
	for i := 0; i < n; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
	}
}

var testSecret = []byte("test-secret")

func newTokens(now func() time.Time) *auth.TokenService {
	if now == nil {
		now = time.Now
	}
	return auth.NewTokenService(testSecret, 30*time.Minute, auth.WithClock(now))
}

func newUserService(t *testing.T, db *sql.DB, rm repomanager.RepositoryManager, tokens *auth.TokenService, minPassword int) *UserService {
	t.Helper()
	cfg := &config.Config{MinPasswordLength: minPassword}
	s, err := NewUserService(db, rm, tokens, cryptox.NewBcryptHasher(4), cfg)
	require.NoError(t, err)
	return s
}

func strPtr(s string) *string { return &s }

func mustEnvelope(t *testing.T, ct, hash string) models.Envelope {
	t.Helper()
	env, err := models.NewEnvelope([]byte(ct), models.EncryptionMetadata{Algorithm: "AES-256-GCM", KeyID: "k1", Nonce: "n-" + ct}, hash)
	require.NoError(t, err)
	return env
}

// stubRepoManager overrides single repositories of an in-memory manager.
type stubRepoManager struct {
	*memory.InMemoryRepositoryManager
	users    users.Repository
	sessions sessions.Repository
	messages messages.Repository
}

func (m *stubRepoManager) Users(db dbx.DBTX) users.Repository {
	if m.users != nil {
		return m.users
	}
	return m.InMemoryRepositoryManager.Users(db)
}

func (m *stubRepoManager) Sessions(db dbx.DBTX) sessions.Repository {
	if m.sessions != nil {
		return m.sessions
	}
	return m.InMemoryRepositoryManager.Sessions(db)
}

func (m *stubRepoManager) Messages(db dbx.DBTX) messages.Repository {
	if m.messages != nil {
		return m.messages
	}
	return m.InMemoryRepositoryManager.Messages(db)
}

// racingUsersRepo finds nobody but loses the insert race.
type racingUsersRepo struct {
	users.Repository
}

func (racingUsersRepo) GetByEmail(context.Context, string) (*models.User, error) {
	return nil, errNotFound()
}

func (racingUsersRepo) GetByPhone(context.Context, string) (*models.User, error) {
	return nil, errNotFound()
}

func (racingUsersRepo) Create(context.Context, *models.User) (*models.User, error) {
	return nil, errAlreadyExists()
}

// brokenUsersRepo fails every lookup with a driver error.
type brokenUsersRepo struct {
	users.Repository
}

func (brokenUsersRepo) GetByEmail(context.Context, string) (*models.User, error) {
	return nil, errBoom{}
}

func (brokenUsersRepo) GetByPhone(context.Context, string) (*models.User, error) {
	return nil, errBoom{}
}
