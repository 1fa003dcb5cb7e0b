package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nazarriya/chatrelay/internal/common"
	"github.com/nazarriya/chatrelay/internal/server/models"
	"github.com/nazarriya/chatrelay/internal/server/services"
)

type loginRequest struct {
	EmailOrPhone string `json:"email_or_phone"`
	Password     string `json:"password"`
}

type createSessionRequest struct {
	Title string `json:"title"`
}

type titleRequest struct {
	Title string `json:"title"`
}

type sessionDataRequest struct {
	EncryptedData []byte          `json:"encrypted_session_data"`
	Metadata      json.RawMessage `json:"session_encryption_metadata"`
}

func (a *API) health(r *http.Request) (any, int, error) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.db.PingContext(ctx); err != nil {
		a.logger.Warn(r.Context(), "health check failed", "error", err)
		return nil, 0, fmt.Errorf("%w: database unreachable", common.ErrorUnavailable)
	}
	return map[string]string{"status": "ok"}, http.StatusOK, nil
}

func (a *API) register(r *http.Request) (any, int, error) {
	var in services.RegisterInput
	if err := decodeJSON(r, &in); err != nil {
		return nil, 0, err
	}
	u, err := a.users.Register(r.Context(), in)
	if err != nil {
		return nil, 0, err
	}
	a.logger.Info(r.Context(), "user registered", "user_id", u.ID)
	return u.View(), http.StatusCreated, nil
}

func (a *API) login(r *http.Request) (any, int, error) {
	var in loginRequest
	if err := decodeJSON(r, &in); err != nil {
		return nil, 0, err
	}
	res, err := a.users.Login(r.Context(), in.EmailOrPhone, in.Password)
	if err != nil {
		return nil, 0, err
	}
	return res, http.StatusOK, nil
}

func (a *API) me(r *http.Request) (any, int, error) {
	u, err := a.authenticate(r)
	if err != nil {
		return nil, 0, err
	}
	return u.View(), http.StatusOK, nil
}

func (a *API) updateProfile(r *http.Request) (any, int, error) {
	u, err := a.authenticate(r)
	if err != nil {
		return nil, 0, err
	}
	var patch models.ProfilePatch
	if err := decodeJSON(r, &patch); err != nil {
		return nil, 0, err
	}
	updated, err := a.users.UpdateProfile(r.Context(), u.ID, patch)
	if err != nil {
		return nil, 0, err
	}
	return updated.View(), http.StatusOK, nil
}

func (a *API) createSession(r *http.Request) (any, int, error) {
	u, err := a.authenticate(r)
	if err != nil {
		return nil, 0, err
	}
	var in createSessionRequest
	if err := decodeJSON(r, &in); err != nil && !errors.Is(err, io.EOF) {
		return nil, 0, err
	}
	s, err := a.sessions.CreateSession(r.Context(), u.ID, in.Title)
	if err != nil {
		return nil, 0, err
	}
	return s, http.StatusCreated, nil
}

func (a *API) listSessions(r *http.Request) (any, int, error) {
	u, err := a.authenticate(r)
	if err != nil {
		return nil, 0, err
	}
	limit, err := intQuery(r, "limit")
	if err != nil {
		return nil, 0, err
	}
	offset, err := intQuery(r, "offset")
	if err != nil {
		return nil, 0, err
	}
	list, err := a.sessions.ListSessions(r.Context(), u.ID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return list, http.StatusOK, nil
}

func (a *API) history(r *http.Request) (any, int, error) {
	u, err := a.authenticate(r)
	if err != nil {
		return nil, 0, err
	}
	h, err := a.sessions.GetHistory(r.Context(), u.ID, chi.URLParam(r, "id"))
	if err != nil {
		return nil, 0, err
	}
	return h, http.StatusOK, nil
}

func (a *API) updateTitle(r *http.Request) (any, int, error) {
	u, err := a.authenticate(r)
	if err != nil {
		return nil, 0, err
	}
	var in titleRequest
	if err := decodeJSON(r, &in); err != nil {
		return nil, 0, err
	}
	s, err := a.sessions.UpdateTitle(r.Context(), u.ID, chi.URLParam(r, "id"), in.Title)
	if err != nil {
		return nil, 0, err
	}
	return s, http.StatusOK, nil
}

func (a *API) deleteSession(r *http.Request) (any, int, error) {
	u, err := a.authenticate(r)
	if err != nil {
		return nil, 0, err
	}
	if err := a.sessions.DeleteSession(r.Context(), u.ID, chi.URLParam(r, "id")); err != nil {
		return nil, 0, err
	}
	return nil, http.StatusNoContent, nil
}

func (a *API) chat(r *http.Request) (any, int, error) {
	u, err := a.authenticate(r)
	if err != nil {
		return nil, 0, err
	}
	var in services.ChatRequest
	if err := decodeJSON(r, &in); err != nil {
		return nil, 0, err
	}
	reply, err := a.sessions.SendMessage(r.Context(), u.ID, in)
	if err != nil {
		return nil, 0, err
	}
	return reply, http.StatusOK, nil
}

func (a *API) putSessionData(r *http.Request) (any, int, error) {
	u, err := a.authenticate(r)
	if err != nil {
		return nil, 0, err
	}
	var in sessionDataRequest
	if err := decodeJSON(r, &in); err != nil {
		return nil, 0, err
	}
	data := models.SessionData{EncryptedData: in.EncryptedData, Metadata: in.Metadata}
	if err := a.sessions.PutSessionData(r.Context(), u.ID, chi.URLParam(r, "id"), data); err != nil {
		return nil, 0, err
	}
	return nil, http.StatusNoContent, nil
}

func (a *API) getSessionData(r *http.Request) (any, int, error) {
	u, err := a.authenticate(r)
	if err != nil {
		return nil, 0, err
	}
	data, err := a.sessions.GetSessionData(r.Context(), u.ID, chi.URLParam(r, "id"))
	if err != nil {
		return nil, 0, err
	}
	return data, http.StatusOK, nil
}

func (a *API) exportSession(r *http.Request) (any, int, error) {
	u, err := a.authenticate(r)
	if err != nil {
		return nil, 0, err
	}
	res, err := a.sessions.ExportSession(r.Context(), u.ID, chi.URLParam(r, "id"))
	if err != nil {
		return nil, 0, err
	}
	return res, http.StatusOK, nil
}

// intQuery parses an optional integer query parameter; absent means 0.
func intQuery(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", common.ErrorInvalidArgument, name)
	}
	return n, nil
}
