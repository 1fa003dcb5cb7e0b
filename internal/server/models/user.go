// Package models defines the server-side data models persisted in the
// database and the immutable envelope exchanged with clients and the relay.
package models

import "time"

// User is an identity record. PasswordHash never leaves the server; use
// View for anything client-facing.
type User struct {
	ID                string
	Email             *string
	PhoneNumber       *string
	PasswordHash      string
	FirstName         *string
	Age               *int
	PreferredLanguage *string
	State             *string
	Gender            *string
	PreferredBot      *string
	IsActive          bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// UserView is the outward representation of a User.
type UserView struct {
	ID                string  `json:"id"`
	Email             *string `json:"email"`
	PhoneNumber       *string `json:"phone_number"`
	FirstName         *string `json:"first_name"`
	Age               *int    `json:"age"`
	PreferredLanguage *string `json:"preferred_language"`
	State             *string `json:"state"`
	Gender            *string `json:"gender"`
	PreferredBot      *string `json:"preferred_bot"`
	CreatedAt         string  `json:"created_at"`
}

func (u *User) View() UserView {
	return UserView{
		ID:                u.ID,
		Email:             u.Email,
		PhoneNumber:       u.PhoneNumber,
		FirstName:         u.FirstName,
		Age:               u.Age,
		PreferredLanguage: u.PreferredLanguage,
		State:             u.State,
		Gender:            u.Gender,
		PreferredBot:      u.PreferredBot,
		CreatedAt:         u.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ProfilePatch is a partial profile update; nil fields are left unchanged.
type ProfilePatch struct {
	FirstName         *string `json:"first_name"`
	Age               *int    `json:"age"`
	PreferredLanguage *string `json:"preferred_language"`
	State             *string `json:"state"`
	Gender            *string `json:"gender"`
	PreferredBot      *string `json:"preferred_bot"`
}

// Empty reports whether the patch changes nothing.
func (p ProfilePatch) Empty() bool {
	return p.FirstName == nil && p.Age == nil && p.PreferredLanguage == nil &&
		p.State == nil && p.Gender == nil && p.PreferredBot == nil
}

// Apply copies the set fields of p onto u.
func (p ProfilePatch) Apply(u *User) {
	if p.FirstName != nil {
		u.FirstName = p.FirstName
	}
	if p.Age != nil {
		u.Age = p.Age
	}
	if p.PreferredLanguage != nil {
		u.PreferredLanguage = p.PreferredLanguage
	}
	if p.State != nil {
		u.State = p.State
	}
	if p.Gender != nil {
		u.Gender = p.Gender
	}
	if p.PreferredBot != nil {
		u.PreferredBot = p.PreferredBot
	}
}
