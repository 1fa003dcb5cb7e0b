package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/nazarriya/chatrelay/internal/common"
	"github.com/nazarriya/chatrelay/internal/cryptox"
	"github.com/nazarriya/chatrelay/internal/server/models"
	"github.com/nazarriya/chatrelay/internal/server/repositories/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func errNotFound() error      { return common.ErrorNotFound }
func errAlreadyExists() error { return fmt.Errorf("%w: ix_users_email", common.ErrorAlreadyExists) }

func registerAlice(t *testing.T, s *UserService) *models.User {
	t.Helper()
	u, err := s.Register(context.Background(), RegisterInput{
		Email:       strPtr("Alice@Example.com "),
		PhoneNumber: strPtr("+15550001"),
		Password:    "correct horse",
		FirstName:   strPtr("Alice"),
	})
	require.NoError(t, err)
	return u
}

func TestRegister_Success(t *testing.T) {
	db, _ := newSQLMockDB(t)
	s := newUserService(t, db, memory.NewInMemoryRepositoryManager(), newTokens(nil), 8)

	u := registerAlice(t, s)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "alice@example.com", *u.Email, "email is trimmed and lower-cased")
	assert.True(t, u.IsActive)
	assert.NotEqual(t, "correct horse", u.PasswordHash)
	assert.True(t, cryptox.VerifyPassword("correct horse", u.PasswordHash))
}

func TestRegister_Duplicate(t *testing.T) {
	db, _ := newSQLMockDB(t)
	s := newUserService(t, db, memory.NewInMemoryRepositoryManager(), newTokens(nil), 1)
	registerAlice(t, s)

	tests := []struct {
		name string
		in   RegisterInput
	}{
		{"same email", RegisterInput{Email: strPtr("alice@example.com"), Password: "pw"}},
		{"same email other case", RegisterInput{Email: strPtr("ALICE@example.com"), Password: "pw"}},
		{"same phone", RegisterInput{PhoneNumber: strPtr("+15550001"), Password: "pw"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Register(context.Background(), tt.in)
			assert.ErrorIs(t, err, common.ErrorAlreadyExists)
		})
	}
}

func TestRegister_RaceMapsUniqueViolation(t *testing.T) {
	db, _ := newSQLMockDB(t)
	rm := &stubRepoManager{InMemoryRepositoryManager: memory.NewInMemoryRepositoryManager(), users: racingUsersRepo{}}
	s := newUserService(t, db, rm, newTokens(nil), 1)

	_, err := s.Register(context.Background(), RegisterInput{Email: strPtr("a@x.io"), Password: "pw"})
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestRegister_WeakInput(t *testing.T) {
	db, _ := newSQLMockDB(t)
	s := newUserService(t, db, memory.NewInMemoryRepositoryManager(), newTokens(nil), 8)

	tests := []struct {
		name string
		in   RegisterInput
	}{
		{"no identity", RegisterInput{Password: "long enough"}},
		{"blank identity", RegisterInput{Email: strPtr("  "), PhoneNumber: strPtr(""), Password: "long enough"}},
		{"empty password", RegisterInput{Email: strPtr("a@x.io")}},
		{"short password", RegisterInput{Email: strPtr("a@x.io"), Password: "short"}},
		{"malformed email", RegisterInput{Email: strPtr("not-an-email"), Password: "long enough"}},
		{"negative age", RegisterInput{Email: strPtr("a@x.io"), Password: "long enough", Age: func() *int { v := -3; return &v }()}},
		{"long name", RegisterInput{Email: strPtr("a@x.io"), Password: "long enough", FirstName: strPtr(strings.Repeat("x", 101))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Register(context.Background(), tt.in)
			assert.ErrorIs(t, err, common.ErrorValidation)
		})
	}
}

func TestRegister_LookupError(t *testing.T) {
	db, _ := newSQLMockDB(t)
	rm := &stubRepoManager{InMemoryRepositoryManager: memory.NewInMemoryRepositoryManager(), users: brokenUsersRepo{}}
	s := newUserService(t, db, rm, newTokens(nil), 1)

	_, err := s.Register(context.Background(), RegisterInput{Email: strPtr("a@x.io"), Password: "pw"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, common.ErrorAlreadyExists))
	assert.Contains(t, err.Error(), "boom")
}

func TestLogin(t *testing.T) {
	db, _ := newSQLMockDB(t)
	tokens := newTokens(nil)
	s := newUserService(t, db, memory.NewInMemoryRepositoryManager(), tokens, 1)
	alice := registerAlice(t, s)

	tests := []struct {
		name       string
		identifier string
		password   string
		wantErr    error
	}{
		{"by email", "alice@example.com", "correct horse", nil},
		{"by email any case", " ALICE@example.com", "correct horse", nil},
		{"by phone", "+15550001", "correct horse", nil},
		{"wrong password", "alice@example.com", "battery staple", common.ErrorInvalidCredentials},
		{"unknown email", "bob@example.com", "correct horse", common.ErrorInvalidCredentials},
		{"unknown phone", "+19990000", "correct horse", common.ErrorInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.Login(context.Background(), tt.identifier, tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, res)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "bearer", res.TokenType)
			assert.Equal(t, alice.ID, res.User.ID)

			sub, err := tokens.Validate(res.AccessToken)
			require.NoError(t, err)
			assert.Equal(t, alice.ID, sub)
		})
	}
}

func TestLogin_SameErrorForUnknownAndWrongPassword(t *testing.T) {
	db, _ := newSQLMockDB(t)
	s := newUserService(t, db, memory.NewInMemoryRepositoryManager(), newTokens(nil), 1)
	registerAlice(t, s)

	_, errWrong := s.Login(context.Background(), "alice@example.com", "nope")
	_, errUnknown := s.Login(context.Background(), "ghost@example.com", "nope")
	assert.Equal(t, errWrong, errUnknown)
}

func TestLogin_InactiveUser(t *testing.T) {
	db, _ := newSQLMockDB(t)
	rm := memory.NewInMemoryRepositoryManager()
	s := newUserService(t, db, rm, newTokens(nil), 1)
	alice := registerAlice(t, s)
	rm.SetActive(alice.ID, false)

	_, err := s.Login(context.Background(), "alice@example.com", "correct horse")
	assert.ErrorIs(t, err, common.ErrorInactiveUser)

	_, err = s.Login(context.Background(), "alice@example.com", "wrong")
	assert.ErrorIs(t, err, common.ErrorInvalidCredentials, "inactive state is not revealed without the password")
}

func TestLogin_LookupError(t *testing.T) {
	db, _ := newSQLMockDB(t)
	rm := &stubRepoManager{InMemoryRepositoryManager: memory.NewInMemoryRepositoryManager(), users: brokenUsersRepo{}}
	s := newUserService(t, db, rm, newTokens(nil), 1)

	_, err := s.Login(context.Background(), "a@x.io", "pw")
	require.Error(t, err)
	assert.False(t, errors.Is(err, common.ErrorInvalidCredentials))
}

func TestAuthenticate(t *testing.T) {
	db, _ := newSQLMockDB(t)
	rm := memory.NewInMemoryRepositoryManager()

	now := time.Now().Truncate(time.Second)
	clock := now
	tokens := newTokens(func() time.Time { return clock })
	s := newUserService(t, db, rm, tokens, 1)
	alice := registerAlice(t, s)

	res, err := s.Login(context.Background(), "alice@example.com", "correct horse")
	require.NoError(t, err)

	u, err := s.Authenticate(context.Background(), res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, u.ID)

	_, err = s.Authenticate(context.Background(), "garbage")
	assert.ErrorIs(t, err, common.ErrInvalidToken)

	clock = now.Add(29*time.Minute + 59*time.Second)
	_, err = s.Authenticate(context.Background(), res.AccessToken)
	assert.NoError(t, err, "valid just before expiry")

	clock = now.Add(30 * time.Minute)
	_, err = s.Authenticate(context.Background(), res.AccessToken)
	assert.ErrorIs(t, err, common.ErrTokenExpired)

	clock = now
	rm.SetActive(alice.ID, false)
	_, err = s.Authenticate(context.Background(), res.AccessToken)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestProfile(t *testing.T) {
	db, _ := newSQLMockDB(t)
	s := newUserService(t, db, memory.NewInMemoryRepositoryManager(), newTokens(nil), 1)
	alice := registerAlice(t, s)
	ctx := context.Background()

	got, err := s.GetProfile(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", *got.FirstName)

	age := 34
	updated, err := s.UpdateProfile(ctx, alice.ID, models.ProfilePatch{Age: &age, PreferredLanguage: strPtr("Tamil")})
	require.NoError(t, err)
	assert.Equal(t, 34, *updated.Age)
	assert.Equal(t, "Tamil", *updated.PreferredLanguage)
	assert.Equal(t, "Alice", *updated.FirstName, "unset fields are unchanged")
	assert.Equal(t, alice.PasswordHash, updated.PasswordHash)

	same, err := s.UpdateProfile(ctx, alice.ID, models.ProfilePatch{})
	require.NoError(t, err)
	assert.Equal(t, updated.UpdatedAt, same.UpdatedAt)

	bad := -1
	_, err = s.UpdateProfile(ctx, alice.ID, models.ProfilePatch{Age: &bad})
	assert.ErrorIs(t, err, common.ErrorValidation)

	_, err = s.GetProfile(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}
