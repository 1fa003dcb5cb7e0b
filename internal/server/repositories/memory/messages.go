package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/nazarriya/chatrelay/internal/server/models"
)

type messageRepo struct {
	st *store
}

func (r *messageRepo) Create(_ context.Context, msg *models.ChatMessage) (*models.ChatMessage, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	if _, ok := r.st.sessions[msg.SessionID]; !ok {
		return nil, fmt.Errorf("db error: session %s does not exist", msg.SessionID)
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	r.st.seq++
	msg.Seq = r.st.seq
	msg.CreatedAt = r.st.tick()
	r.st.messages[msg.SessionID] = append(r.st.messages[msg.SessionID], *msg)

	out := *msg
	return &out, nil
}

// ListBySession returns messages in insertion order, which matches
// (created_at, seq) because both only grow.
func (r *messageRepo) ListBySession(_ context.Context, sessionID string) ([]models.ChatMessage, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	return append([]models.ChatMessage{}, r.st.messages[sessionID]...), nil
}
