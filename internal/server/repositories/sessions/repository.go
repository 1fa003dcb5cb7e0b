package sessions

import (
	"context"

	"github.com/nazarriya/chatrelay/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, session *models.ChatSession) (*models.ChatSession, error)
	Get(ctx context.Context, id string) (*models.ChatSession, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.SessionSummary, error)
	UpdateTitle(ctx context.Context, id, title string) (*models.ChatSession, error)
	Touch(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	PutData(ctx context.Context, id string, data models.SessionData) error
	GetData(ctx context.Context, id string) (*models.SessionData, error)
}
