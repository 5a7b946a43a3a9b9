package refresh

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"vidstream/internal/http_server/cookies"
	resp "vidstream/internal/lib/api/response"
	sl "vidstream/internal/lib/logger"
	"vidstream/internal/session"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Request struct {
	RefreshToken string `json:"refresh_token"`
}

type Response struct {
	resp.Response
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (session.TokenPair, error)
}

func New(
	log *slog.Logger,
	sessions Refresher,
	accessTTL, refreshTTL time.Duration,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.refresh.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		token := presentedToken(r)

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		pair, err := sessions.Refresh(ctx, token)
		if err != nil {
			if errors.Is(err, session.ErrInvalidCredentials) {
				log.Warn("refresh rejected", sl.Err(err))

				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("Invalid credentials"))

				return
			}

			log.Error("failed to refresh tokens", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("Tokens refreshed successfully")

		cookies.Set(w, cookies.AccessToken, pair.AccessToken, accessTTL)
		cookies.Set(w, cookies.RefreshToken, pair.RefreshToken, refreshTTL)

		ResponseOK(w, r, pair)
	}
}

// presentedToken prefers the cookie and falls back to the request body.
func presentedToken(r *http.Request) string {
	if c, err := r.Cookie(cookies.RefreshToken); err == nil && c.Value != "" {
		return c.Value
	}

	var req Request
	if err := render.DecodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
		return ""
	}

	return req.RefreshToken
}

func ResponseOK(w http.ResponseWriter, r *http.Request, pair session.TokenPair) {
	render.JSON(w, r, Response{
		Response:     resp.OK(),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}
