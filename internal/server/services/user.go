// Package services contains server-side business logic. This file implements
// UserService, which handles registration, login, bearer token resolution
// and profile maintenance.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/nazarriya/chatrelay/internal/common"
	"github.com/nazarriya/chatrelay/internal/cryptox"
	"github.com/nazarriya/chatrelay/internal/server/auth"
	"github.com/nazarriya/chatrelay/internal/server/config"
	"github.com/nazarriya/chatrelay/internal/server/models"
	"github.com/nazarriya/chatrelay/internal/server/repositories/repomanager"
	"github.com/nazarriya/chatrelay/internal/validation"
)

// RegisterInput carries a registration request. At least one of Email and
// PhoneNumber must be present.
type RegisterInput struct {
	Email             *string `json:"email" validate:"omitempty,email,max=255"`
	PhoneNumber       *string `json:"phone_number" validate:"omitempty,min=5,max=20"`
	Password          string  `json:"password"`
	FirstName         *string `json:"first_name" validate:"omitempty,max=100"`
	Age               *int    `json:"age" validate:"omitempty,min=0,max=150"`
	PreferredLanguage *string `json:"preferred_language" validate:"omitempty,max=50"`
	State             *string `json:"state" validate:"omitempty,max=100"`
	Gender            *string `json:"gender" validate:"omitempty,max=20"`
	PreferredBot      *string `json:"preferred_bot" validate:"omitempty,max=50"`
}

// LoginResult is what a successful login hands back to the client.
type LoginResult struct {
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
	User        models.UserView `json:"user"`
}

// UserService provides identity operations:
//   - Register: create users with a hashed password
//   - Login: verify credentials and issue an access token
//   - Authenticate: resolve a bearer token to an active user
//   - GetProfile / UpdateProfile: read and patch display fields
type UserService struct {
	db                *sql.DB
	repomanager       repomanager.RepositoryManager
	tokens            *auth.TokenService
	hasher            cryptox.PasswordHasher
	minPasswordLength int
	// dummyHash is compared against on unknown identifiers so that a miss
	// costs about as much as a wrong password.
	dummyHash string
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, tokens *auth.TokenService,
	hasher cryptox.PasswordHasher, cfg *config.Config) (*UserService, error) {

	seed, err := common.MakeRandHexString(16)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	dummy, err := hasher.Hash(seed)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}

	return &UserService{
		db:                db,
		repomanager:       m,
		tokens:            tokens,
		hasher:            hasher,
		minPasswordLength: cfg.MinPasswordLength,
		dummyHash:         dummy,
	}, nil
}

// Register creates a new active user. Duplicate email or phone number yields
// common.ErrorAlreadyExists, whether it is caught by the lookup or by the
// unique index when two registrations race.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Email = normalizeEmail(in.Email)
	in.PhoneNumber = trimmed(in.PhoneNumber)

	if in.Email == nil && in.PhoneNumber == nil {
		return nil, fmt.Errorf("%w: email or phone_number is required", common.ErrorValidation)
	}
	if in.Password == "" || len([]rune(in.Password)) < s.minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", common.ErrorValidation, max(s.minPasswordLength, 1))
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	repo := s.repomanager.Users(s.db)

	if in.Email != nil {
		if err := s.ensureFree(repo.GetByEmail(ctx, *in.Email)); err != nil {
			return nil, fmt.Errorf("email: %w", err)
		}
	}
	if in.PhoneNumber != nil {
		if err := s.ensureFree(repo.GetByPhone(ctx, *in.PhoneNumber)); err != nil {
			return nil, fmt.Errorf("phone_number: %w", err)
		}
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user := &models.User{
		Email:             in.Email,
		PhoneNumber:       in.PhoneNumber,
		PasswordHash:      hash,
		FirstName:         in.FirstName,
		Age:               in.Age,
		PreferredLanguage: in.PreferredLanguage,
		State:             in.State,
		Gender:            in.Gender,
		PreferredBot:      in.PreferredBot,
		IsActive:          true,
	}

	u, err := repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return u, nil
}

// ensureFree turns the result of an identity lookup into an availability
// verdict.
func (s *UserService) ensureFree(_ *models.User, err error) error {
	switch {
	case err == nil:
		return common.ErrorAlreadyExists
	case errors.Is(err, common.ErrorNotFound):
		return nil
	default:
		return err
	}
}

// Login verifies credentials and issues an access token. Unknown identifier
// and wrong password are indistinguishable. An inactive account is reported
// only once the password has been verified.
func (s *UserService) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	identifier = strings.TrimSpace(identifier)
	repo := s.repomanager.Users(s.db)

	var (
		user *models.User
		err  error
	)
	if strings.Contains(identifier, "@") {
		user, err = repo.GetByEmail(ctx, strings.ToLower(identifier))
	} else {
		user, err = repo.GetByPhone(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.hasher.Verify(password, s.dummyHash)
			return nil, common.ErrorInvalidCredentials
		}
		return nil, fmt.Errorf("error looking up user: %w", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, common.ErrorInvalidCredentials
	}
	if !user.IsActive {
		return nil, common.ErrorInactiveUser
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("error issuing token: %w", err)
	}

	return &LoginResult{AccessToken: token, TokenType: common.TokenType, User: user.View()}, nil
}

// Authenticate validates a bearer token and loads its user. A token whose
// user is gone or deactivated is reported as common.ErrInvalidToken.
func (s *UserService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	userID, err := s.tokens.Validate(token)
	if err != nil {
		return nil, err
	}

	user, err := s.activeUser(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, err
	}
	return user, nil
}

func (s *UserService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	return s.activeUser(ctx, userID)
}

// UpdateProfile applies patch to the user's display fields. An empty patch
// returns the profile unchanged.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, patch models.ProfilePatch) (*models.User, error) {
	if err := validation.Struct(profileRules(patch)); err != nil {
		return nil, err
	}

	user, err := s.activeUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return user, nil
	}

	patch.Apply(user)
	updated, err := s.repomanager.Users(s.db).UpdateProfile(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("error updating profile: %w", err)
	}
	return updated, nil
}

func (s *UserService) activeUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}
	if !user.IsActive {
		return nil, common.ErrorNotFound
	}
	return user, nil
}

// profileUpdate mirrors models.ProfilePatch with validation rules.
type profileUpdate struct {
	FirstName         *string `json:"first_name" validate:"omitempty,max=100"`
	Age               *int    `json:"age" validate:"omitempty,min=0,max=150"`
	PreferredLanguage *string `json:"preferred_language" validate:"omitempty,max=50"`
	State             *string `json:"state" validate:"omitempty,max=100"`
	Gender            *string `json:"gender" validate:"omitempty,max=20"`
	PreferredBot      *string `json:"preferred_bot" validate:"omitempty,max=50"`
}

func profileRules(p models.ProfilePatch) profileUpdate {
	return profileUpdate(p)
}

func normalizeEmail(email *string) *string {
	email = trimmed(email)
	if email == nil {
		return nil
	}
	lower := strings.ToLower(*email)
	return &lower
}

// trimmed returns nil for absent or blank values.
func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}
