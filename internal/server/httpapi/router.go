// Package httpapi exposes the REST surface of the relay: authentication,
// session management and the encrypted chat endpoint.
package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/nazarriya/chatrelay/internal/logging"
	"github.com/nazarriya/chatrelay/internal/server/models"
	"github.com/nazarriya/chatrelay/internal/server/services"
)

type UserService interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.User, error)
	Login(ctx context.Context, identifier, password string) (*services.LoginResult, error)
	Authenticate(ctx context.Context, token string) (*models.User, error)
	GetProfile(ctx context.Context, userID string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID string, patch models.ProfilePatch) (*models.User, error)
}

type SessionService interface {
	CreateSession(ctx context.Context, userID, title string) (*models.ChatSession, error)
	ListSessions(ctx context.Context, userID string, limit, offset int) ([]models.SessionSummary, error)
	GetHistory(ctx context.Context, userID, sessionID string) (*services.History, error)
	UpdateTitle(ctx context.Context, userID, sessionID, title string) (*models.ChatSession, error)
	DeleteSession(ctx context.Context, userID, sessionID string) error
	SendMessage(ctx context.Context, userID string, req services.ChatRequest) (*services.ChatReply, error)
	PutSessionData(ctx context.Context, userID, sessionID string, data models.SessionData) error
	GetSessionData(ctx context.Context, userID, sessionID string) (*models.SessionData, error)
	ExportSession(ctx context.Context, userID, sessionID string) (*services.ExportResult, error)
}

// Pinger reports database reachability; *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type API struct {
	users    UserService
	sessions SessionService
	db       Pinger
	logger   logging.Logger
}

func New(users UserService, sessions SessionService, db Pinger, logger logging.Logger) *API {
	return &API{users: users, sessions: sessions, db: db, logger: logger}
}

// Routes builds the chi router. Protected handlers call authenticate
// themselves; there is no implicit current-user middleware.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(a.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/health", a.handleJSON(a.health))

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", a.handleJSON(a.register))
		r.Post("/login", a.handleJSON(a.login))
		r.Get("/me", a.handleJSON(a.me))
		r.Put("/profile", a.handleJSON(a.updateProfile))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", a.handleJSON(a.chat))

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", a.handleJSON(a.createSession))
			r.Get("/", a.handleJSON(a.listSessions))

			r.Route("/{id}", func(r chi.Router) {
				r.Delete("/", a.handleJSON(a.deleteSession))
				r.Get("/history", a.handleJSON(a.history))
				r.Put("/title", a.handleJSON(a.updateTitle))
				r.Put("/data", a.handleJSON(a.putSessionData))
				r.Get("/data", a.handleJSON(a.getSessionData))
				r.Post("/export", a.handleJSON(a.exportSession))
			})
		})
	})

	return r
}
