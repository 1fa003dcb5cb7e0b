package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/nazarriya/chatrelay/internal/common"
	"github.com/nazarriya/chatrelay/internal/server/models"
)

type sessionRepo struct {
	st *store
}

func (r *sessionRepo) Create(_ context.Context, s *models.ChatSession) (*models.ChatSession, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	if _, ok := r.st.users[s.UserID]; !ok {
		return nil, fmt.Errorf("db error: user %s does not exist", s.UserID)
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := r.st.tick()
	s.CreatedAt, s.UpdatedAt = now, now
	r.st.sessions[s.ID] = &sessionRow{session: *s}

	out := *s
	return &out, nil
}

func (r *sessionRepo) Get(_ context.Context, id string) (*models.ChatSession, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	row, ok := r.st.sessions[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := row.session
	return &out, nil
}

func (r *sessionRepo) ListByUser(_ context.Context, userID string, limit, offset int) ([]models.SessionSummary, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	all := make([]models.SessionSummary, 0)
	for id, row := range r.st.sessions {
		if row.session.UserID != userID {
			continue
		}
		all = append(all, models.SessionSummary{
			ID:           id,
			Title:        row.session.Title,
			CreatedAt:    row.session.CreatedAt,
			UpdatedAt:    row.session.UpdatedAt,
			MessageCount: len(r.st.messages[id]),
		})
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].UpdatedAt.Equal(all[j].UpdatedAt) {
			return all[i].UpdatedAt.After(all[j].UpdatedAt)
		}
		return all[i].ID < all[j].ID
	})

	if offset >= len(all) {
		return []models.SessionSummary{}, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r *sessionRepo) UpdateTitle(_ context.Context, id, title string) (*models.ChatSession, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	row, ok := r.st.sessions[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	row.session.Title = title
	row.session.UpdatedAt = r.st.tick()

	out := row.session
	return &out, nil
}

func (r *sessionRepo) Touch(_ context.Context, id string) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	row, ok := r.st.sessions[id]
	if !ok {
		return common.ErrorNotFound
	}
	row.session.UpdatedAt = r.st.tick()
	return nil
}

func (r *sessionRepo) Delete(_ context.Context, id string) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	if _, ok := r.st.sessions[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.st.sessions, id)
	delete(r.st.messages, id)
	return nil
}

func (r *sessionRepo) PutData(_ context.Context, id string, data models.SessionData) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	row, ok := r.st.sessions[id]
	if !ok {
		return common.ErrorNotFound
	}
	row.data = models.SessionData{
		EncryptedData: append([]byte(nil), data.EncryptedData...),
		Metadata:      append([]byte(nil), data.Metadata...),
	}
	row.session.UpdatedAt = r.st.tick()
	return nil
}

func (r *sessionRepo) GetData(_ context.Context, id string) (*models.SessionData, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	row, ok := r.st.sessions[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := row.data
	return &out, nil
}
