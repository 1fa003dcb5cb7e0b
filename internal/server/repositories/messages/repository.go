package messages

import (
	"context"

	"github.com/nazarriya/chatrelay/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, msg *models.ChatMessage) (*models.ChatMessage, error)
	ListBySession(ctx context.Context, sessionID string) ([]models.ChatMessage, error)
}
