package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/nazarriya/chatrelay/internal/common"
	"github.com/nazarriya/chatrelay/internal/server/models"
)

type userRepo struct {
	st *store
}

func (r *userRepo) Create(_ context.Context, user *models.User) (*models.User, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	for _, u := range r.st.users {
		if user.Email != nil && u.Email != nil && *u.Email == *user.Email {
			return nil, fmt.Errorf("%w: ix_users_email", common.ErrorAlreadyExists)
		}
		if user.PhoneNumber != nil && u.PhoneNumber != nil && *u.PhoneNumber == *user.PhoneNumber {
			return nil, fmt.Errorf("%w: ix_users_phone_number", common.ErrorAlreadyExists)
		}
	}

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := r.st.tick()
	user.CreatedAt, user.UpdatedAt = now, now
	r.st.users[user.ID] = *user

	out := *user
	return &out, nil
}

func (r *userRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.ID == id })
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Email != nil && *u.Email == email })
}

func (r *userRepo) GetByPhone(_ context.Context, phone string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.PhoneNumber != nil && *u.PhoneNumber == phone })
}

func (r *userRepo) find(match func(*models.User) bool) (*models.User, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	for _, u := range r.st.users {
		if match(&u) {
			out := u
			return &out, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *userRepo) UpdateProfile(_ context.Context, user *models.User) (*models.User, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	cur, ok := r.st.users[user.ID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cur.FirstName = user.FirstName
	cur.Age = user.Age
	cur.PreferredLanguage = user.PreferredLanguage
	cur.State = user.State
	cur.Gender = user.Gender
	cur.PreferredBot = user.PreferredBot
	cur.UpdatedAt = r.st.tick()
	r.st.users[user.ID] = cur

	out := cur
	return &out, nil
}
