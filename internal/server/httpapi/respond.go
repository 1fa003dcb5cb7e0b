package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/nazarriya/chatrelay/internal/common"
	"github.com/nazarriya/chatrelay/internal/server/models"
)

// maxBodyBytes bounds request bodies; envelopes are base64 inside JSON.
const maxBodyBytes = 10 << 20

type errorBody struct {
	Detail string `json:"detail"`
}

func (a *API) handleJSON(handler func(r *http.Request) (any, int, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, status, err := handler(r)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		if status == http.StatusNoContent {
			w.WriteHeader(status)
			return
		}
		writeJSON(w, status, res)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps service errors onto HTTP. The bool reports whether the
// message is safe to show to the client.
func statusFor(err error) (int, bool) {
	switch {
	case errors.Is(err, common.ErrorInvalidCredentials),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized, true
	case errors.Is(err, common.ErrorAlreadyExists):
		return http.StatusConflict, true
	case errors.Is(err, common.ErrorValidation):
		return http.StatusUnprocessableEntity, true
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, common.ErrorForbidden):
		return http.StatusForbidden, true
	case errors.Is(err, common.ErrorInvalidArgument), errors.Is(err, common.ErrorInactiveUser):
		return http.StatusBadRequest, true
	case errors.Is(err, common.ErrUpstreamUnavailable):
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout, false
		}
		return http.StatusBadGateway, false
	case errors.Is(err, common.ErrorUnavailable):
		return http.StatusServiceUnavailable, true
	}
	return http.StatusInternalServerError, false
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, public := statusFor(err)

	detail := err.Error()
	switch {
	case errors.Is(err, common.ErrorNotFound):
		detail = "not found"
	case status == http.StatusBadGateway:
		detail = common.ErrUpstreamUnavailable.Error()
	case status == http.StatusGatewayTimeout:
		detail = "upstream timed out"
	case !public:
		detail = common.ErrorInternal.Error()
	}

	if status >= 500 {
		a.logger.Error(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "status", status,
			"request_id", middleware.GetReqID(r.Context()), "error", err)
	}

	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	writeJSON(w, status, errorBody{Detail: detail})
}

// decodeJSON reads a JSON body into v. Malformed input is a validation error;
// an empty body additionally matches io.EOF.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v); err != nil {
		return fmt.Errorf("%w: malformed request body: %w", common.ErrorValidation, err)
	}
	return nil
}

// authenticate resolves the bearer token of r to an active user.
func (a *API) authenticate(r *http.Request) (*models.User, error) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: not authenticated", common.ErrInvalidToken)
	}
	return a.users.Authenticate(r.Context(), strings.TrimSpace(token))
}

// accessLog writes one line per request.
func (a *API) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		a.logger.Info(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
